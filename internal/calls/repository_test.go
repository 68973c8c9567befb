package calls

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var callRowColumns = []string{
	"id", "provider", "provider_call_id", "contact_id", "campaign_id", "phone_number", "status",
	"duration_seconds", "qualified", "recording_url", "started_at", "ended_at", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*PostgresRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgresRepo(db), mock
}

func TestPostgresRepo_Create(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO calls")).
		WithArgs("rec-1", "vapi", "vapi-1", "contact-1", sql.NullString{}, "+1555", CallStatusInitiated, 0,
			sql.NullBool{}, sql.NullString{}, sql.NullTime{}, sql.NullTime{}, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), Call{
		ID: "rec-1", Provider: "vapi", ProviderCallID: "vapi-1", ContactID: "contact-1",
		PhoneNumber: "+1555", Status: CallStatusInitiated, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
}

func TestPostgresRepo_GetScansNullableColumns(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(callRowColumns).
		AddRow("rec-1", "vapi", "vapi-1", "contact-1", nil, "+1555", "completed", 45, true, nil, now, now.Add(time.Minute), now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM calls")).WithArgs("vapi", "vapi-1").WillReturnRows(rows)

	c, err := repo.Get(context.Background(), "vapi", "vapi-1")
	require.NoError(t, err)
	assert.Equal(t, CallStatusCompleted, c.Status)
	assert.Equal(t, "", c.CampaignID)
	require.NotNil(t, c.Qualified)
	assert.True(t, *c.Qualified)
	require.NotNil(t, c.EndedAt)
	assert.Equal(t, now.Add(time.Minute), *c.EndedAt)
}

func TestPostgresRepo_GetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM calls")).WithArgs("vapi", "missing").
		WillReturnRows(sqlmock.NewRows(callRowColumns))

	_, err := repo.Get(context.Background(), "vapi", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepo_UpdateIsConditionalOnPreviousStatus(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := Call{ID: "rec-1", Status: CallStatusCompleted, DurationSeconds: 40, UpdatedAt: now}

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = $10")).
		WithArgs("rec-1", sqlmock.AnyArg(), CallStatusCompleted, 40, sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), now, CallStatusInProgress).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), c, CallStatusInProgress))
}

func TestPostgresRepo_UpdateStatusChanged(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE calls")).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), Call{ID: "rec-x", Status: CallStatusCompleted}, CallStatusInProgress)
	assert.ErrorIs(t, err, ErrStatusChanged)
}

func TestMemoryRepo_UpdateIsConditionalOnPreviousStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	c := Call{ID: "rec-1", Provider: ProviderVapi, ProviderCallID: "vapi-1", Status: CallStatusInProgress}
	require.NoError(t, repo.Create(ctx, c))

	done := c
	done.Status = CallStatusCompleted
	require.NoError(t, repo.Update(ctx, done, CallStatusInProgress))
	// second writer read in_progress too and must lose
	assert.ErrorIs(t, repo.Update(ctx, done, CallStatusInProgress), ErrStatusChanged)

	missing := Call{Provider: ProviderVapi, ProviderCallID: "nope"}
	assert.ErrorIs(t, repo.Update(ctx, missing, CallStatusInitiated), ErrStatusChanged)
}

func TestPostgresRepo_ListBuildsFilters(t *testing.T) {
	repo, mock := newMockRepo(t)
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE created_at >= $1 AND created_at < $2 AND campaign_id = $3 ORDER BY created_at DESC LIMIT $4")).
		WithArgs(from, to, "camp-1", 10).
		WillReturnRows(sqlmock.NewRows(callRowColumns).
			AddRow("rec-1", "vapi", "vapi-1", nil, "camp-1", "+1555", "initiated", 0, nil, nil, nil, nil, from, from))

	out, err := repo.List(context.Background(), ListFilter{From: from, To: to, CampaignID: "camp-1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Nil(t, out[0].Qualified)
	assert.Nil(t, out[0].StartedAt)
	assert.Equal(t, "camp-1", out[0].CampaignID)
}

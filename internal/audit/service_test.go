package audit

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_AppendRequiresType(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	assert.ErrorIs(t, svc.Append(context.Background(), Event{}), ErrInvalidEvent)
}

func TestService_RecordCapturesActor(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return now }

	svc.Record(context.Background(),
		Actor{UserID: "ops@example.com", Role: "operator", IP: "1.2.3.4"},
		Event{Type: EventTypeCallInitiated, CallID: "vapi-1", ContactID: "contact-1"},
		map[string]any{"campaignId": "camp"})

	evs := repo.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, "1.2.3.4", evs[0].IPAddress)
	assert.Equal(t, "operator", evs[0].ActorRole)
	assert.Equal(t, `{"campaignId":"camp"}`, evs[0].Metadata)
	assert.Equal(t, now, evs[0].CreatedAt)
	assert.NotEmpty(t, evs[0].ID)
}

type failingRepo struct{}

func (failingRepo) Append(context.Context, Event) error { return errors.New("db down") }

func TestService_RecordIsBestEffort(t *testing.T) {
	svc := NewService(failingRepo{})
	svc.Record(context.Background(), Actor{}, Event{Type: EventTypeLeadCreated}, nil)

	var nilSvc *Service
	nilSvc.Record(context.Background(), Actor{}, Event{Type: EventTypeLeadCreated}, nil)
}

func TestPostgresRepo_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_events")).WillReturnResult(sqlmock.NewResult(0, 1))
	err = NewPostgresRepo(db).Append(context.Background(), Event{ID: "e1", Type: EventTypeSMSSent, CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

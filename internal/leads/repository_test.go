package leads

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

func TestPostgresRepo_ListAndCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepo(db)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM leads")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $1 OFFSET $2")).
		WithArgs(2, 1).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "first_name", "last_name", "phone", "email", "business_name", "credit_score", "funding_needed",
			"monthly_revenue", "time_in_business", "status", "source", "notes", "created_at", "updated_at",
		}).AddRow("c-1", "Ana", nil, "+1555", nil, "Diaz Bakery", 690.0, nil, nil, 3.5, "new", "manual", nil, now, now))

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	out, err := repo.List(context.Background(), 2, 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Ana", out[0].FirstName)
	assert.Equal(t, "", out[0].LastName)
	require.NotNil(t, out[0].CreditScore)
	assert.Equal(t, 690.0, *out[0].CreditScore)
	assert.Nil(t, out[0].FundingNeeded)
	assert.Equal(t, StatusNew, out[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO leads")).
		WithArgs("c-1", "Ana", sql.NullString{}, "+1555", sql.NullString{}, sql.NullString{},
			sql.NullFloat64{}, 40000.0, sql.NullFloat64{}, sql.NullFloat64{}, StatusNew, SourceManual, sql.NullString{}, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	funding := 40000.0
	err = NewPostgresRepo(db).Create(context.Background(), Lead{
		ID: "c-1", FirstName: "Ana", Phone: "+1555", FundingNeeded: &funding,
		Status: StatusNew, Source: SourceManual, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"voice-campaigns/pkg/utils"
)

// Repository persists the call log.
type Repository interface {
	Create(ctx context.Context, c Call) error
	Get(ctx context.Context, provider, providerCallID string) (Call, error)
	// Update saves c only while the stored row still has status prev.
	// It returns ErrStatusChanged otherwise, so two concurrent writers
	// cannot both move a call out of the same status.
	Update(ctx context.Context, c Call, prev CallStatus) error
	List(ctx context.Context, f ListFilter) ([]Call, error)
}

// PostgresRepo stores calls in the calls table (migrations/001_init.sql).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const callColumns = `id, provider, provider_call_id, contact_id, campaign_id, phone_number, status,
duration_seconds, qualified, recording_url, started_at, ended_at, created_at, updated_at`

func (r *PostgresRepo) Create(ctx context.Context, c Call) error {
	const q = `
INSERT INTO calls (
  id, provider, provider_call_id, contact_id, campaign_id, phone_number, status,
  duration_seconds, qualified, recording_url, started_at, ended_at, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
)
`
	_, err := r.db.ExecContext(ctx, q,
		c.ID,
		c.Provider,
		c.ProviderCallID,
		utils.NullString(c.ContactID),
		utils.NullString(c.CampaignID),
		c.PhoneNumber,
		c.Status,
		c.DurationSeconds,
		nullBool(c.Qualified),
		utils.NullString(c.RecordingURL),
		utils.NullTime(c.StartedAt),
		utils.NullTime(c.EndedAt),
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Get(ctx context.Context, provider, providerCallID string) (Call, error) {
	q := `SELECT ` + callColumns + `
FROM calls
WHERE provider = $1 AND provider_call_id = $2
`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, provider, providerCallID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func (r *PostgresRepo) Update(ctx context.Context, c Call, prev CallStatus) error {
	const q = `
UPDATE calls
SET contact_id = $2, status = $3, duration_seconds = $4, qualified = $5, recording_url = $6,
    started_at = $7, ended_at = $8, updated_at = $9
WHERE id = $1 AND status = $10
`
	res, err := r.db.ExecContext(ctx, q,
		c.ID,
		utils.NullString(c.ContactID),
		c.Status,
		c.DurationSeconds,
		nullBool(c.Qualified),
		utils.NullString(c.RecordingURL),
		utils.NullTime(c.StartedAt),
		utils.NullTime(c.EndedAt),
		c.UpdatedAt,
		prev,
	)
	if err != nil {
		return fmt.Errorf("update call: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (r *PostgresRepo) List(ctx context.Context, f ListFilter) ([]Call, error) {
	var (
		where []string
		args  []any
	)
	if !f.From.IsZero() {
		args = append(args, f.From.UTC())
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To.UTC())
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if f.CampaignID != "" {
		args = append(args, f.CampaignID)
		where = append(where, fmt.Sprintf("campaign_id = $%d", len(args)))
	}

	q := `SELECT ` + callColumns + ` FROM calls`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var (
		c                     Call
		contactID, campaignID sql.NullString
		recordingURL          sql.NullString
		qualified             sql.NullBool
		startedAt, endedAt    sql.NullTime
	)
	if err := row.Scan(
		&c.ID,
		&c.Provider,
		&c.ProviderCallID,
		&contactID,
		&campaignID,
		&c.PhoneNumber,
		&c.Status,
		&c.DurationSeconds,
		&qualified,
		&recordingURL,
		&startedAt,
		&endedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return Call{}, err
	}
	c.ContactID = contactID.String
	c.CampaignID = campaignID.String
	c.RecordingURL = recordingURL.String
	if qualified.Valid {
		v := qualified.Bool
		c.Qualified = &v
	}
	if startedAt.Valid {
		t := startedAt.Time
		c.StartedAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time
		c.EndedAt = &t
	}
	return c, nil
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

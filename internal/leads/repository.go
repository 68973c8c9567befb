package leads

import (
	"context"
	"database/sql"
	"fmt"

	"voice-campaigns/pkg/utils"
)

type Repository interface {
	Create(ctx context.Context, l Lead) error
	// List returns leads newest first.
	List(ctx context.Context, limit, offset int) ([]Lead, error)
	Count(ctx context.Context) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Create(ctx context.Context, l Lead) error {
	const q = `
INSERT INTO leads (
  id, first_name, last_name, phone, email, business_name, credit_score, funding_needed,
  monthly_revenue, time_in_business, status, source, notes, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
)
`
	_, err := r.db.ExecContext(ctx, q,
		l.ID,
		utils.NullString(l.FirstName),
		utils.NullString(l.LastName),
		l.Phone,
		utils.NullString(l.Email),
		utils.NullString(l.BusinessName),
		nullFloat(l.CreditScore),
		nullFloat(l.FundingNeeded),
		nullFloat(l.MonthlyRevenue),
		nullFloat(l.TimeInBusiness),
		l.Status,
		l.Source,
		utils.NullString(l.Notes),
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

func (r *PostgresRepo) List(ctx context.Context, limit, offset int) ([]Lead, error) {
	const q = `
SELECT id, first_name, last_name, phone, email, business_name, credit_score, funding_needed,
       monthly_revenue, time_in_business, status, source, notes, created_at, updated_at
FROM leads
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`
	rows, err := r.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	out := []Lead{}
	for rows.Next() {
		var (
			l                                   Lead
			first, last, email, business, notes sql.NullString
			credit, funding, revenue, tib       sql.NullFloat64
		)
		if err := rows.Scan(
			&l.ID,
			&first,
			&last,
			&l.Phone,
			&email,
			&business,
			&credit,
			&funding,
			&revenue,
			&tib,
			&l.Status,
			&l.Source,
			&notes,
			&l.CreatedAt,
			&l.UpdatedAt,
		); err != nil {
			return nil, err
		}
		l.FirstName = first.String
		l.LastName = last.String
		l.Email = email.String
		l.BusinessName = business.String
		l.Notes = notes.String
		l.CreditScore = floatPtr(credit)
		l.FundingNeeded = floatPtr(funding)
		l.MonthlyRevenue = floatPtr(revenue)
		l.TimeInBusiness = floatPtr(tib)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	const q = `SELECT COUNT(*) FROM leads`
	var n int
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count leads: %w", err)
	}
	return n, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

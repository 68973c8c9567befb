package audit

import (
	"context"
	"database/sql"
	"fmt"

	"voice-campaigns/pkg/utils"
)

// PostgresRepo writes to audit_events. The table has no UPDATE/DELETE path here.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, type, actor_user_id, actor_role, ip_address, call_id, contact_id, campaign_id,
  message, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.Type,
		utils.NullString(e.ActorUserID),
		utils.NullString(e.ActorRole),
		utils.NullString(e.IPAddress),
		utils.NullString(e.CallID),
		utils.NullString(e.ContactID),
		utils.NullString(e.CampaignID),
		utils.NullString(e.Message),
		utils.NullString(e.Metadata),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo persists audit events to the audit_events table.
// Inserts only; the table carries no update path by design.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const insertEventSQL = `
INSERT INTO audit_events (id, type, vendor, device_id, conversation_id, message, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, insertEventSQL,
		e.ID,
		string(e.Type),
		e.Vendor,
		e.DeviceID,
		e.ConversationID,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}

package database

import (
	"context"
	"database/sql"
	"fmt"

	"backoffice_notifier/internal/domain/notification"
)

type PostgresAuditRepository struct {
	db *sql.DB
}

func NewPostgresAuditRepository(db *sql.DB) *PostgresAuditRepository {
	return &PostgresAuditRepository{db: db}
}

// Create appends a dispatch attempt record. The table is append-only; there
// are no update or delete paths.
func (r *PostgresAuditRepository) Create(ctx context.Context, entry *notification.AuditEntry) error {
	query := `INSERT INTO notification_audit (entity_kind, entity_refs, recipient, subject, body, channel, sender_id)
               VALUES ($1, $2, $3, $4, $5, $6, $7)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		entry.EntityKind, entry.EntityRefs, entry.Recipient, entry.Subject,
		entry.Body, entry.Channel, entry.SenderID,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating notification audit entry: %w", err)
	}
	return nil
}

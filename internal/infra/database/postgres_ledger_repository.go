package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"backoffice_notifier/internal/domain/notification"

	"github.com/lib/pq"
)

// ErrDuplicateLedgerEntry signals that the unique constraint on the lock key
// rejected the insert: another invocation already claimed this reminder.
// Callers treat it as "skip, already handled", never as a failure.
var ErrDuplicateLedgerEntry = fmt.Errorf("duplicate notification ledger entry (lock already claimed)")

const uniqueViolationCode = "23505"

type PostgresLedgerRepository struct {
	db *sql.DB
}

func NewPostgresLedgerRepository(db *sql.DB) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{db: db}
}

// Claim inserts the ledger row. The insert is the lock: the table's unique
// index on lock_key is the only mutual-exclusion primitive across concurrent
// invocations. Rows are never updated or deleted.
func (r *PostgresLedgerRepository) Claim(ctx context.Context, entry *notification.LedgerEntry) error {
	query := `INSERT INTO notification_ledger (lock_key, lock_day, entity_id, target, label)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		entry.LockKey, entry.LockDay, entry.EntityID, entry.Target, entry.Label,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
			return ErrDuplicateLedgerEntry
		}
		return fmt.Errorf("error claiming notification ledger entry: %w", err)
	}
	return nil
}

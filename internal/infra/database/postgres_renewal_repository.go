package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"backoffice_notifier/internal/domain/renewal"

	"github.com/lib/pq"
)

type PostgresRenewalRepository struct {
	db *sql.DB
}

func NewPostgresRenewalRepository(db *sql.DB) *PostgresRenewalRepository {
	return &PostgresRenewalRepository{db: db}
}

// ListReadyToBill applies the eligibility gate in SQL: confirmed, ready to
// bill and never billing-notified.
func (r *PostgresRenewalRepository) ListReadyToBill(ctx context.Context) ([]*renewal.Line, error) {
	query := `SELECT id, client_id, client_name, item_type, reference, due_date, status,
                     installation_ref, invoice_code, confirmed_at, billing_notified_at, billing_notified_to
               FROM renewal_lines
               WHERE status = $1
                 AND confirmed_at IS NOT NULL
                 AND billing_notified_at IS NULL
               ORDER BY client_id, due_date, id`

	rows, err := r.db.QueryContext(ctx, query, renewal.StatusReadyToBill)
	if err != nil {
		return nil, fmt.Errorf("error listing ready-to-bill renewal lines: %w", err)
	}
	defer rows.Close()

	lines := make([]*renewal.Line, 0)
	for rows.Next() {
		line := renewal.Line{}
		if err := rows.Scan(
			&line.ID, &line.ClientID, &line.ClientName, &line.ItemType, &line.Reference,
			&line.DueDate, &line.Status, &line.InstallationRef, &line.InvoiceCode,
			&line.ConfirmedAt, &line.BillingNotifiedAt, &line.BillingNotifiedTo,
		); err != nil {
			return nil, fmt.Errorf("error scanning renewal line: %w", err)
		}
		lines = append(lines, &line)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating renewal lines: %w", err)
	}
	return lines, nil
}

// MarkNotified stamps every line of a client group in one statement. The
// timestamp is the row's only re-notification guard, so callers invoke this
// strictly after a confirmed successful send.
func (r *PostgresRenewalRepository) MarkNotified(ctx context.Context, ids []int64, at time.Time, recipient string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE renewal_lines
               SET billing_notified_at = $1, billing_notified_to = $2
               WHERE id = ANY($3::bigint[]) AND billing_notified_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, at, recipient, pq.Array(ids)); err != nil {
		return fmt.Errorf("error marking renewal lines notified: %w", err)
	}
	return nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"backoffice_notifier/internal/domain/perishable"
)

type PostgresPerishableRepository struct {
	db   *sql.DB
	caps *Capabilities
}

func NewPostgresPerishableRepository(db *sql.DB, caps *Capabilities) *PostgresPerishableRepository {
	return &PostgresPerishableRepository{db: db, caps: caps}
}

// alertColumns picks the select expressions for the optional alert stamps.
func alertColumns(present bool) string {
	if present {
		return "last_alert_at, last_alert_to"
	}
	return "NULL::timestamptz AS last_alert_at, NULL::text AS last_alert_to"
}

// ListExpiringWithin returns licenses and service coupons whose expiry falls
// inside the lookahead window, oldest expiry first.
func (r *PostgresPerishableRepository) ListExpiringWithin(ctx context.Context, days int) ([]*perishable.Item, error) {
	query := fmt.Sprintf(`SELECT 'LICENSE' AS kind, id, reference, client_name, expiry_date, status, %s
               FROM licenses
               WHERE expiry_date <= CURRENT_DATE + $1::int
              UNION ALL
              SELECT 'COUPON' AS kind, id, reference, client_name, expiry_date, status, %s
               FROM service_coupons
               WHERE expiry_date <= CURRENT_DATE + $1::int
              ORDER BY expiry_date, kind, id`,
		alertColumns(r.caps.LicenseAlertStamps), alertColumns(r.caps.CouponAlertStamps))

	rows, err := r.db.QueryContext(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("error listing expiring perishable items: %w", err)
	}
	defer rows.Close()

	items := make([]*perishable.Item, 0)
	for rows.Next() {
		item := perishable.Item{}
		if err := rows.Scan(&item.Kind, &item.ID, &item.Reference, &item.ClientName,
			&item.ExpiryDate, &item.Status, &item.LastAlertAt, &item.LastAlertTo); err != nil {
			return nil, fmt.Errorf("error scanning perishable item: %w", err)
		}
		items = append(items, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating perishable items: %w", err)
	}
	return items, nil
}

// StampAlert records the last successful alert on the item. On schemas that
// lack the alert columns this degrades to a no-op; the dedup ledger remains
// the actual re-send guard.
func (r *PostgresPerishableRepository) StampAlert(ctx context.Context, kind perishable.Kind, id int64, at time.Time, recipient string) error {
	var table string
	switch kind {
	case perishable.KindLicense:
		if !r.caps.LicenseAlertStamps {
			return nil
		}
		table = "licenses"
	case perishable.KindCoupon:
		if !r.caps.CouponAlertStamps {
			return nil
		}
		table = "service_coupons"
	default:
		return fmt.Errorf("unknown perishable kind: %s", kind)
	}

	query := fmt.Sprintf(`UPDATE %s SET last_alert_at = $1, last_alert_to = $2 WHERE id = $3`, table)
	if _, err := r.db.ExecContext(ctx, query, at, recipient, id); err != nil {
		return fmt.Errorf("error stamping alert on %s %d: %w", table, id, err)
	}
	return nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Capabilities describes which optional columns the shared store actually
// carries. Deployments drift: older schemas predate the operator opt-in flag,
// the per-item alert stamps and the weekly rule column. The descriptor is
// resolved once at startup and handed to the repositories, which select a
// reduced column set and backfill safe defaults in memory when a column is
// missing. Services above the repositories never see the difference.
type Capabilities struct {
	OperatorOptIn      bool // operators.notify_opt_in
	LicenseAlertStamps bool // licenses.last_alert_at / last_alert_to
	CouponAlertStamps  bool // service_coupons.last_alert_at / last_alert_to
	RuleWeekday        bool // notification_rules.weekday
}

var probedTables = []string{"operators", "licenses", "service_coupons", "notification_rules"}

// DetectCapabilities probes information_schema.columns for the optional
// columns and returns the resulting descriptor.
func DetectCapabilities(ctx context.Context, db *sql.DB) (*Capabilities, error) {
	query := `SELECT table_name, column_name
               FROM information_schema.columns
               WHERE table_schema = current_schema()
                 AND table_name = ANY($1)`

	rows, err := db.QueryContext(ctx, query, pq.Array(probedTables))
	if err != nil {
		return nil, fmt.Errorf("error probing store schema: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, fmt.Errorf("error scanning schema probe row: %w", err)
		}
		columns[table+"."+column] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schema probe rows: %w", err)
	}

	caps := &Capabilities{
		OperatorOptIn:      columns["operators.notify_opt_in"],
		LicenseAlertStamps: columns["licenses.last_alert_at"] && columns["licenses.last_alert_to"],
		CouponAlertStamps:  columns["service_coupons.last_alert_at"] && columns["service_coupons.last_alert_to"],
		RuleWeekday:        columns["notification_rules.weekday"],
	}
	return caps, nil
}

// FullCapabilities returns a descriptor with every optional column present,
// for tests and fresh schemas.
func FullCapabilities() *Capabilities {
	return &Capabilities{
		OperatorOptIn:      true,
		LicenseAlertStamps: true,
		CouponAlertStamps:  true,
		RuleWeekday:        true,
	}
}

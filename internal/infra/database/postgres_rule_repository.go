package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"backoffice_notifier/internal/domain/notification"

	"github.com/lib/pq"
)

// Custom errors specific to rule persistence
var ErrRuleNotFound = fmt.Errorf("notification rule not found")

type PostgresRuleRepository struct {
	db   *sql.DB
	caps *Capabilities
}

func NewPostgresRuleRepository(db *sql.DB, caps *Capabilities) *PostgresRuleRepository {
	return &PostgresRuleRepository{db: db, caps: caps}
}

// weekdayColumn picks the select expression for the optional weekday column.
func (r *PostgresRuleRepository) weekdayColumn() string {
	if r.caps.RuleWeekday {
		return "weekday"
	}
	return "NULL::int AS weekday"
}

func (r *PostgresRuleRepository) Upsert(ctx context.Context, rule *notification.Rule) error {
	if !r.caps.RuleWeekday {
		query := `INSERT INTO notification_rules
                   (task_title, target, enabled, mode, template_id, extra_recipients, frequency,
                    send_time, timezone, closed_statuses, only_future, send_on_create)
                  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
                  ON CONFLICT (task_title, target) DO UPDATE SET
                    enabled = EXCLUDED.enabled, mode = EXCLUDED.mode,
                    template_id = EXCLUDED.template_id, extra_recipients = EXCLUDED.extra_recipients,
                    frequency = EXCLUDED.frequency, send_time = EXCLUDED.send_time,
                    timezone = EXCLUDED.timezone, closed_statuses = EXCLUDED.closed_statuses,
                    only_future = EXCLUDED.only_future, send_on_create = EXCLUDED.send_on_create,
                    updated_at = NOW()
                  RETURNING id, created_at, updated_at`
		err := r.db.QueryRowContext(ctx, query,
			rule.TaskTitle, rule.Target, rule.Enabled, rule.Mode, rule.TemplateID,
			pq.Array(rule.ExtraRecipients), rule.Frequency, rule.SendTime, rule.Timezone,
			pq.Array(rule.ClosedStatuses), rule.OnlyFuture, rule.SendOnCreate,
		).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
		if err != nil {
			return fmt.Errorf("error upserting notification rule: %w", err)
		}
		return nil
	}

	query := `INSERT INTO notification_rules
               (task_title, target, enabled, mode, template_id, extra_recipients, frequency,
                send_time, timezone, weekday, closed_statuses, only_future, send_on_create)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
              ON CONFLICT (task_title, target) DO UPDATE SET
                enabled = EXCLUDED.enabled, mode = EXCLUDED.mode,
                template_id = EXCLUDED.template_id, extra_recipients = EXCLUDED.extra_recipients,
                frequency = EXCLUDED.frequency, send_time = EXCLUDED.send_time,
                timezone = EXCLUDED.timezone, weekday = EXCLUDED.weekday,
                closed_statuses = EXCLUDED.closed_statuses,
                only_future = EXCLUDED.only_future, send_on_create = EXCLUDED.send_on_create,
                updated_at = NOW()
              RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		rule.TaskTitle, rule.Target, rule.Enabled, rule.Mode, rule.TemplateID,
		pq.Array(rule.ExtraRecipients), rule.Frequency, rule.SendTime, rule.Timezone,
		rule.Weekday, pq.Array(rule.ClosedStatuses), rule.OnlyFuture, rule.SendOnCreate,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error upserting notification rule: %w", err)
	}
	return nil
}

func (r *PostgresRuleRepository) selectColumns() string {
	return fmt.Sprintf(`id, task_title, target, enabled, mode, template_id, extra_recipients,
               frequency, send_time, timezone, %s, closed_statuses, only_future,
               send_on_create, last_fired_date, created_at, updated_at`, r.weekdayColumn())
}

func scanRule(row interface{ Scan(...any) error }) (*notification.Rule, error) {
	rule := notification.Rule{}
	var extras, closed pq.StringArray
	err := row.Scan(
		&rule.ID, &rule.TaskTitle, &rule.Target, &rule.Enabled, &rule.Mode,
		&rule.TemplateID, &extras, &rule.Frequency, &rule.SendTime, &rule.Timezone,
		&rule.Weekday, &closed, &rule.OnlyFuture, &rule.SendOnCreate,
		&rule.LastFiredDate, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rule.ExtraRecipients = []string(extras)
	rule.ClosedStatuses = []string(closed)
	return &rule, nil
}

func (r *PostgresRuleRepository) GetByIdentity(ctx context.Context, taskTitle, target string) (*notification.Rule, error) {
	query := fmt.Sprintf(`SELECT %s FROM notification_rules WHERE task_title = $1 AND target = $2`, r.selectColumns())
	rule, err := scanRule(r.db.QueryRowContext(ctx, query, taskTitle, target))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("error getting notification rule by identity: %w", err)
	}
	return rule, nil
}

func (r *PostgresRuleRepository) listWhere(ctx context.Context, where string) ([]*notification.Rule, error) {
	query := fmt.Sprintf(`SELECT %s FROM notification_rules WHERE %s ORDER BY task_title, target`, r.selectColumns(), where)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing notification rules: %w", err)
	}
	defer rows.Close()

	rules := make([]*notification.Rule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning notification rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rules: %w", err)
	}
	return rules, nil
}

func (r *PostgresRuleRepository) ListEnabledAutomatic(ctx context.Context) ([]*notification.Rule, error) {
	return r.listWhere(ctx, `enabled = TRUE AND mode = 'AUTOMATIC'`)
}

func (r *PostgresRuleRepository) ListSendOnCreate(ctx context.Context) ([]*notification.Rule, error) {
	return r.listWhere(ctx, `enabled = TRUE AND send_on_create = TRUE`)
}

func (r *PostgresRuleRepository) AdvanceLastFired(ctx context.Context, id int64, day time.Time) error {
	query := `UPDATE notification_rules
               SET last_fired_date = $1, updated_at = NOW()
               WHERE id = $2 AND (last_fired_date IS NULL OR last_fired_date < $1)`
	if _, err := r.db.ExecContext(ctx, query, day, id); err != nil {
		return fmt.Errorf("error advancing rule last-fired date: %w", err)
	}
	return nil
}

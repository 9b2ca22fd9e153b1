package database

import (
	"context"
	"database/sql"
	"fmt"

	"backoffice_notifier/internal/domain/operator"
)

// Custom errors
var ErrOperatorNotFound = fmt.Errorf("operator not found")

// Reserved sender identity. Provisioned by EnsureSystemAccount at startup.
const (
	systemAccountName  = "Notification Engine"
	systemAccountEmail = "notifier@system.invalid"
)

type PostgresOperatorRepository struct {
	db   *sql.DB
	caps *Capabilities
}

func NewPostgresOperatorRepository(db *sql.DB, caps *Capabilities) *PostgresOperatorRepository {
	return &PostgresOperatorRepository{db: db, caps: caps}
}

// optInColumn picks the select expression for the opt-in flag. Older schemas
// lack the dedicated column; there the active flag stands in, which gives
// every active operator the default-true opt-in semantic.
func (r *PostgresOperatorRepository) optInColumn() string {
	if r.caps.OperatorOptIn {
		return "notify_opt_in"
	}
	return "is_active AS notify_opt_in"
}

func (r *PostgresOperatorRepository) selectColumns() string {
	return fmt.Sprintf(`id, name, email, role, is_active, %s, alert_recipient, is_system, created_at, updated_at`,
		r.optInColumn())
}

func scanOperator(row interface{ Scan(...any) error }) (*operator.Operator, error) {
	op := &operator.Operator{}
	err := row.Scan(&op.ID, &op.Name, &op.Email, &op.Role, &op.Active,
		&op.NotifyOptIn, &op.AlertRecipient, &op.System, &op.CreatedAt, &op.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return op, nil
}

func (r *PostgresOperatorRepository) ListActiveOptedIn(ctx context.Context) ([]*operator.Operator, error) {
	optIn := "notify_opt_in = TRUE AND"
	if !r.caps.OperatorOptIn {
		optIn = "" // legacy schema: active implies opted in
	}
	query := fmt.Sprintf(`SELECT %s FROM operators
               WHERE is_active = TRUE AND %s is_system = FALSE
               ORDER BY name`, r.selectColumns(), optIn)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing active opted-in operators: %w", err)
	}
	defer rows.Close()

	operators := make([]*operator.Operator, 0)
	for rows.Next() {
		op, err := scanOperator(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning operator: %w", err)
		}
		operators = append(operators, op)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operators: %w", err)
	}
	return operators, nil
}

func (r *PostgresOperatorRepository) FirstByRole(ctx context.Context, role string) (*operator.Operator, error) {
	query := fmt.Sprintf(`SELECT %s FROM operators
               WHERE is_active = TRUE AND is_system = FALSE AND role = $1
               ORDER BY id LIMIT 1`, r.selectColumns())
	op, err := scanOperator(r.db.QueryRowContext(ctx, query, role))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOperatorNotFound
		}
		return nil, fmt.Errorf("error getting operator by role: %w", err)
	}
	return op, nil
}

func (r *PostgresOperatorRepository) FirstAlertRecipient(ctx context.Context) (*operator.Operator, error) {
	query := fmt.Sprintf(`SELECT %s FROM operators
               WHERE is_active = TRUE AND is_system = FALSE AND alert_recipient = TRUE
               ORDER BY id LIMIT 1`, r.selectColumns())
	op, err := scanOperator(r.db.QueryRowContext(ctx, query))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOperatorNotFound
		}
		return nil, fmt.Errorf("error getting alert recipient operator: %w", err)
	}
	return op, nil
}

// EnsureSystemAccount returns the reserved sender account, creating it when
// missing. ON CONFLICT DO NOTHING makes concurrent provisioning attempts
// harmless, though wiring calls this exactly once at startup.
func (r *PostgresOperatorRepository) EnsureSystemAccount(ctx context.Context) (*operator.Operator, error) {
	get := fmt.Sprintf(`SELECT %s FROM operators WHERE is_system = TRUE ORDER BY id LIMIT 1`, r.selectColumns())

	op, err := scanOperator(r.db.QueryRowContext(ctx, get))
	if err == nil {
		return op, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("error getting system account: %w", err)
	}

	insert := `INSERT INTO operators (name, email, role, is_active, alert_recipient, is_system)
               VALUES ($1, $2, 'GENERICA', FALSE, FALSE, TRUE)
               ON CONFLICT (email) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insert, systemAccountName, systemAccountEmail); err != nil {
		return nil, fmt.Errorf("error creating system account: %w", err)
	}

	op, err = scanOperator(r.db.QueryRowContext(ctx, get))
	if err != nil {
		return nil, fmt.Errorf("error re-reading system account after create: %w", err)
	}
	return op, nil
}

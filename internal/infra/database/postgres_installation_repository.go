package database

import (
	"context"
	"database/sql"
	"fmt"

	"backoffice_notifier/internal/domain/installation"
)

// Custom errors
var ErrInstallationNotFound = fmt.Errorf("installation not found")

type PostgresInstallationRepository struct {
	db *sql.DB
}

func NewPostgresInstallationRepository(db *sql.DB) *PostgresInstallationRepository {
	return &PostgresInstallationRepository{db: db}
}

func (r *PostgresInstallationRepository) ListWithTasks(ctx context.Context) ([]*installation.Installation, error) {
	query := `SELECT i.id, i.client_name, i.hard_date, i.soft_date, i.created_at, i.updated_at,
                     t.id, t.title, t.status
               FROM installations i
               LEFT JOIN installation_tasks t ON t.installation_id = i.id
               ORDER BY i.id, t.id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing installations with tasks: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*installation.Installation)
	ordered := make([]*installation.Installation, 0)
	for rows.Next() {
		inst := installation.Installation{}
		var taskID sql.NullInt64
		var taskTitle, taskStatus sql.NullString
		if err := rows.Scan(
			&inst.ID, &inst.ClientName, &inst.HardDate, &inst.SoftDate,
			&inst.CreatedAt, &inst.UpdatedAt, &taskID, &taskTitle, &taskStatus,
		); err != nil {
			return nil, fmt.Errorf("error scanning installation row: %w", err)
		}

		current, ok := byID[inst.ID]
		if !ok {
			current = &inst
			byID[inst.ID] = current
			ordered = append(ordered, current)
		}
		if taskID.Valid {
			current.Tasks = append(current.Tasks, installation.Task{
				ID:             taskID.Int64,
				InstallationID: current.ID,
				Title:          taskTitle.String,
				Status:         taskStatus.String,
			})
		}
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating installation rows: %w", err)
	}
	return ordered, nil
}

func (r *PostgresInstallationRepository) GetByID(ctx context.Context, id int64) (*installation.Installation, error) {
	query := `SELECT id, client_name, hard_date, soft_date, created_at, updated_at
               FROM installations WHERE id = $1`
	inst := &installation.Installation{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&inst.ID, &inst.ClientName, &inst.HardDate, &inst.SoftDate, &inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInstallationNotFound
		}
		return nil, fmt.Errorf("error getting installation by ID: %w", err)
	}

	taskQuery := `SELECT id, installation_id, title, status
                   FROM installation_tasks WHERE installation_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, taskQuery, id)
	if err != nil {
		return nil, fmt.Errorf("error listing installation tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		task := installation.Task{}
		if err := rows.Scan(&task.ID, &task.InstallationID, &task.Title, &task.Status); err != nil {
			return nil, fmt.Errorf("error scanning installation task: %w", err)
		}
		inst.Tasks = append(inst.Tasks, task)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating installation tasks: %w", err)
	}
	return inst, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/repository"
)

const taskColumns = `id, creator_id, COALESCE(assignee_id, 0), title, description, status, priority, due_at, created_at, updated_at`

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	return scanTask(row)
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + `
	FROM tasks
	WHERE ($1::bigint = 0 OR creator_id = $1 OR assignee_id = $1)
	  AND ($2::bigint = 0 OR assignee_id = $2)
	  AND ($3::text = '' OR status = $3)
	ORDER BY created_at DESC, id DESC
	LIMIT $4 OFFSET $5
	`
	rows, err := r.pool.Query(ctx, query,
		filter.ParticipantID,
		filter.AssigneeID,
		string(filter.Status),
		clampLimit(filter.Limit),
		filter.Offset,
	)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (r *taskRepository) ListDueBetween(ctx context.Context, assigneeID int64, from, to time.Time) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + `
	FROM tasks
	WHERE assignee_id = $1
	  AND due_at IS NOT NULL
	  AND due_at >= $2
	  AND due_at < $3
	ORDER BY due_at, id
	`
	rows, err := r.pool.Query(ctx, query, assigneeID, from, to)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO tasks (creator_id, assignee_id, title, description, status, priority, due_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()), COALESCE($8, NOW()))
	RETURNING id, created_at, updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		task.CreatorID,
		nullInt(task.AssigneeID),
		task.Title,
		task.Description,
		string(task.Status),
		task.Priority.String(),
		nullTimePtr(task.DueAt),
		nullTime(task.CreatedAt),
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, err
	}

	return task, nil
}

// Update persists every mutable column and always refreshes updated_at.
func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE tasks
	SET assignee_id = $2,
		title = $3,
		description = $4,
		status = $5,
		priority = $6,
		due_at = $7,
		updated_at = NOW()
	WHERE id = $1
	RETURNING updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		task.ID,
		nullInt(task.AssigneeID),
		task.Title,
		task.Description,
		string(task.Status),
		task.Priority.String(),
		nullTimePtr(task.DueAt),
	).Scan(&task.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTaskNotFound
		}
		return err
	}

	return nil
}

func (r *taskRepository) Replay(ctx context.Context, task *domain.Task, mutatedAt time.Time) error {
	if task == nil || mutatedAt.IsZero() {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE tasks
	SET assignee_id = $2,
		title = $3,
		description = $4,
		status = $5,
		priority = $6,
		due_at = $7,
		updated_at = $8
	WHERE id = $1 AND updated_at <= $8
	RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		task.ID,
		nullInt(task.AssigneeID),
		task.Title,
		task.Description,
		string(task.Status),
		task.Priority.String(),
		nullTimePtr(task.DueAt),
		mutatedAt,
	).Scan(&task.CreatedAt, &task.UpdatedAt)
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, task.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrTaskNotFound
	}
	return domain.ErrTaskChanged
}

func (r *taskRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM tasks WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func collectTasks(rows pgx.Rows) ([]domain.Task, error) {
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var (
		status   string
		priority string
		due      *time.Time
	)

	if err := row.Scan(
		&task.ID,
		&task.CreatorID,
		&task.AssigneeID,
		&task.Title,
		&task.Description,
		&status,
		&priority,
		&due,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	p, err := domain.ParsePriority(priority)
	if err != nil {
		return nil, fmt.Errorf("task %d: %w", task.ID, err)
	}
	task.Priority = p
	task.Status = domain.Status(status)
	task.DueAt = due

	return &task, nil
}

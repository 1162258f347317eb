package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/repository"
)

type taskEventRepository struct {
	pool *pgxpool.Pool
}

// NewTaskEventRepository creates a Postgres-backed activity log.
func NewTaskEventRepository(pool *pgxpool.Pool) repository.TaskEventRepository {
	return &taskEventRepository{pool: pool}
}

func (r *taskEventRepository) Append(ctx context.Context, event domain.TaskEvent) error {
	const query = `
	INSERT INTO task_events (id, task_id, actor_id, name, payload, created_at)
	VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
	`

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	var payload interface{}
	if len(event.Payload) > 0 {
		payload = []byte(event.Payload)
	}

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.TaskID,
		event.ActorID,
		event.Name,
		payload,
		nullTime(event.CreatedAt),
	)
	return err
}

func (r *taskEventRepository) ListByTask(ctx context.Context, taskID int64, limit, offset int) ([]domain.TaskEvent, error) {
	const query = `
	SELECT id, task_id, actor_id, name, payload, created_at
	FROM task_events
	WHERE task_id = $1
	ORDER BY created_at, id
	LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, taskID, clampLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.TaskEvent
	for rows.Next() {
		var (
			event   domain.TaskEvent
			payload []byte
		)
		if err := rows.Scan(&event.ID, &event.TaskID, &event.ActorID, &event.Name, &payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			event.Payload = append([]byte(nil), payload...)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

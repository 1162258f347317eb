package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/repository"
)

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository returns a Postgres-backed conversation store.
func NewMessageRepository(pool *pgxpool.Pool) repository.MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.TaskMessage) (*domain.TaskMessage, error) {
	if msg == nil {
		return nil, domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO task_messages (task_id, sender_id, peer_id, text, source)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, created_at
	`
	if err := r.pool.QueryRow(ctx, query,
		msg.TaskID,
		msg.SenderID,
		msg.PeerID,
		msg.Text,
		string(msg.Source),
	).Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *messageRepository) List(ctx context.Context, filter repository.MessageFilter) ([]domain.TaskMessage, error) {
	const query = `
	SELECT id, task_id, sender_id, peer_id, text, source, created_at
	FROM task_messages
	WHERE task_id = $1
	  AND ($2::bigint = 0 OR sender_id = $2 OR peer_id = $2)
	ORDER BY created_at, id
	LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query, filter.TaskID, filter.UserID, clampLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.TaskMessage
	for rows.Next() {
		var (
			msg    domain.TaskMessage
			source string
		)
		if err := rows.Scan(&msg.ID, &msg.TaskID, &msg.SenderID, &msg.PeerID, &msg.Text, &source, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.Source = domain.MessageSource(source)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

package repository

import (
	"context"

	"github.com/fastygo/taskpulse/domain"
)

type MessageFilter struct {
	TaskID int64
	// UserID narrows the thread to messages sent by or addressed to the user.
	UserID int64
	Limit  int
	Offset int
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.TaskMessage) (*domain.TaskMessage, error)
	List(ctx context.Context, filter MessageFilter) ([]domain.TaskMessage, error)
}

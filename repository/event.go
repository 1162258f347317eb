package repository

import (
	"context"

	"github.com/fastygo/taskpulse/domain"
)

type TaskEventRepository interface {
	Append(ctx context.Context, event domain.TaskEvent) error
	ListByTask(ctx context.Context, taskID int64, limit, offset int) ([]domain.TaskEvent, error)
}

package usecase

import (
	"context"

	"github.com/fastygo/taskpulse/domain"
)

const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// OperationBuffer defers task mutations while primary storage is unavailable.
type OperationBuffer interface {
	BufferTask(ctx context.Context, operation string, actorID int64, task *domain.Task) error
}

// Notifier delivers text to the Telegram chat linked to userID. Users
// without a linked chat are skipped silently.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

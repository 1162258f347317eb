package repository

import (
	"context"
	"time"

	"github.com/fastygo/taskpulse/domain"
)

type TaskFilter struct {
	// ParticipantID limits the list to tasks created by or assigned to the user.
	ParticipantID int64
	AssigneeID    int64
	Status        domain.Status
	Limit         int
	Offset        int
}

type TaskRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id int64) error
	// Replay writes a buffered snapshot with updated_at set to mutatedAt.
	// It returns domain.ErrTaskChanged when the stored row was modified
	// after mutatedAt.
	Replay(ctx context.Context, task *domain.Task, mutatedAt time.Time) error
	TaskDueReader
}

// TaskDueReader is the read path used by the KPI report. Implementations
// return tasks of assigneeID whose due_at is non-null and within [from, to).
type TaskDueReader interface {
	ListDueBetween(ctx context.Context, assigneeID int64, from, to time.Time) ([]domain.Task, error)
}

package domain

import (
	"encoding/json"
	"time"
)

const (
	EventTaskCreated       = "task.created"
	EventTaskUpdated       = "task.updated"
	EventTaskStatusChanged = "task.status_changed"
	EventTaskDeleted       = "task.deleted"
)

// TaskEvent represents a change applied to a task.
type TaskEvent struct {
	ID        string          `json:"id"`
	TaskID    int64           `json:"task_id"`
	ActorID   int64           `json:"actor_id"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EntityTask         = "task"
	EntityNotification = "notification"

	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
	OperationSend   = "send"
)

// Priorities order the drain; lower values are replayed first.
const (
	PriorityTaskMutation = 2
	PriorityNotification = 4
	defaultPriority      = 3
)

// Item is a deferred operation waiting for a dependency to come back.
type Item struct {
	ID        string          `json:"id"`
	ActorID   int64           `json:"actor_id"`
	Entity    string          `json:"entity"`
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data"`
	Priority  int             `json:"priority"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	bucketKey []byte
}

// Notification is the payload of an EntityNotification item.
type Notification struct {
	UserID int64  `json:"user_id"`
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Priority <= 0 || i.Priority > 5 {
		i.Priority = defaultPriority
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}

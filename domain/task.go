package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status tracks the lifecycle of a task.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// Priority is a closed enumeration. Values are dense from zero so they can
// index fixed-size arrays of PriorityCount elements.
type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh

	// PriorityCount is the number of declared priorities.
	PriorityCount = int(PriorityHigh) + 1
)

// Priorities lists every priority in declaration order.
var Priorities = [PriorityCount]Priority{PriorityLow, PriorityMedium, PriorityHigh}

var priorityNames = [PriorityCount]string{"low", "medium", "high"}

func (p Priority) Valid() bool {
	return int(p) < PriorityCount
}

func (p Priority) String() string {
	if !p.Valid() {
		return fmt.Sprintf("priority(%d)", uint8(p))
	}
	return priorityNames[p]
}

// ParsePriority accepts the lowercase names, case-insensitively.
func ParsePriority(s string) (Priority, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for i, name := range priorityNames {
		if name == needle {
			return Priority(i), nil
		}
	}
	return 0, Invalid(fmt.Sprintf("unknown priority %q", s))
}

func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, Invalid(fmt.Sprintf("unknown priority %d", uint8(p)))
	}
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Task represents a unit of work handed from a creator to an assignee.
type Task struct {
	ID          int64      `json:"id"`
	CreatorID   int64      `json:"creator"`
	AssigneeID  int64      `json:"assignee"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	DueAt       *time.Time `json:"due_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsCompleted reports whether the task is done. UpdatedAt of a done task is
// treated as its completion moment.
func (t *Task) IsCompleted() bool {
	return t != nil && t.Status == StatusDone
}

// HasParticipant reports whether userID created or is assigned to the task.
func (t *Task) HasParticipant(userID int64) bool {
	return t != nil && (t.CreatorID == userID || t.AssigneeID == userID)
}

// Counterpart returns the other participant of a conversation started by userID.
func (t *Task) Counterpart(userID int64) int64 {
	if t.CreatorID == userID {
		return t.AssigneeID
	}
	return t.CreatorID
}

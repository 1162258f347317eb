package transport

import "encoding/json"

type TaskCreateRequest struct {
	AssigneeID  int64   `json:"assignee"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Priority    *string `json:"priority"`
	DueAt       *string `json:"due_at"`
}

// TaskPatchRequest distinguishes an absent due_at from an explicit null,
// which clears the deadline.
type TaskPatchRequest struct {
	AssigneeID  *int64          `json:"assignee"`
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Status      *string         `json:"status"`
	Priority    *string         `json:"priority"`
	DueAt       json.RawMessage `json:"due_at"`
}

type MessageCreateRequest struct {
	TaskID int64  `json:"task_id"`
	UserID int64  `json:"user_id"`
	Text   string `json:"text"`
}

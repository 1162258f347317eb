package domain

import "time"

// MessageSource tells where a conversation message was written.
type MessageSource string

const (
	SourceApp      MessageSource = "app"
	SourceTelegram MessageSource = "telegram"
)

// TaskMessage is one entry of a per-task conversation between two participants.
type TaskMessage struct {
	ID        int64         `json:"id"`
	TaskID    int64         `json:"task_id"`
	SenderID  int64         `json:"sender"`
	PeerID    int64         `json:"user_id"`
	Text      string        `json:"text"`
	Source    MessageSource `json:"source"`
	CreatedAt time.Time     `json:"created_at"`
}

package testutil

import (
	"context"
	"sync"

	"github.com/fastygo/taskpulse/domain"
)

// Notification is a message captured by Notifier.
type Notification struct {
	UserID int64
	Text   string
}

// Notifier records notifications instead of sending them.
type Notifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *Notifier) Notify(ctx context.Context, userID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Notification{UserID: userID, Text: text})
	return nil
}

func (n *Notifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}

// Buffer records deferred task mutations.
type Buffer struct {
	mu    sync.Mutex
	Err   error
	Items []BufferedTask
}

type BufferedTask struct {
	Operation string
	ActorID   int64
	Task      domain.Task
}

func (b *Buffer) BufferTask(ctx context.Context, operation string, actorID int64, task *domain.Task) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return b.Err
	}
	b.Items = append(b.Items, BufferedTask{Operation: operation, ActorID: actorID, Task: *task})
	return nil
}

package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/internal/infrastructure/outbox"
	"github.com/fastygo/taskpulse/repository"
	"github.com/fastygo/taskpulse/usecase"
)

// OutboxBridge adapts the processor to the use case ports.
type OutboxBridge struct {
	processor *OutboxProcessor
	profiles  repository.TelegramProfileRepository
}

func NewOutboxBridge(processor *OutboxProcessor, profiles repository.TelegramProfileRepository) *OutboxBridge {
	return &OutboxBridge{processor: processor, profiles: profiles}
}

func (b *OutboxBridge) BufferTask(ctx context.Context, operation string, actorID int64, task *domain.Task) error {
	if b.processor == nil || task == nil {
		return domain.ErrInvalidPayload
	}
	// The snapshot carries the moment of the mutation; replay keeps it as
	// updated_at, which the KPI report treats as the completion time.
	mutatedAt := b.processor.now()
	switch operation {
	case outbox.OperationCreate:
		task.CreatedAt = mutatedAt
		task.UpdatedAt = mutatedAt
	case outbox.OperationUpdate:
		task.UpdatedAt = mutatedAt
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	item := outbox.Item{
		ActorID:   actorID,
		Entity:    outbox.EntityTask,
		Operation: operation,
		Data:      payload,
		Priority:  outbox.PriorityTaskMutation,
	}
	return b.processor.store.Enqueue(item)
}

func (b *OutboxBridge) Notify(ctx context.Context, userID int64, text string) error {
	if b.processor == nil || b.processor.sender == nil || !b.processor.sender.Enabled() || userID == 0 {
		return nil
	}
	profile, err := b.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return nil
		}
		return err
	}

	payload, err := json.Marshal(outbox.Notification{
		UserID: userID,
		ChatID: profile.ChatID,
		Text:   text,
	})
	if err != nil {
		return err
	}
	return b.processor.Submit(ctx, outbox.Item{
		ActorID:   userID,
		Entity:    outbox.EntityNotification,
		Operation: outbox.OperationSend,
		Data:      payload,
		Priority:  outbox.PriorityNotification,
	})
}

var (
	_ usecase.OperationBuffer = (*OutboxBridge)(nil)
	_ usecase.Notifier        = (*OutboxBridge)(nil)
)

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/internal/infrastructure/outbox"
	"github.com/fastygo/taskpulse/repository"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// MessageSender delivers Telegram messages.
type MessageSender interface {
	Enabled() bool
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// ProcessorConfig controls how frequently the outbox is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	// MaxAge bounds how long an item may wait before it is discarded.
	MaxAge time.Duration
}

// OutboxProcessor replays deferred task mutations and delivers queued
// notifications.
type OutboxProcessor struct {
	store    *outbox.Store
	monitor  ConnectionHealth
	taskRepo repository.TaskRepository
	events   repository.TaskEventRepository
	sender   MessageSender
	logger   *zap.Logger
	cron     *cron.Cron
	cfg      ProcessorConfig
	now      func() time.Time
}

func NewOutboxProcessor(
	store *outbox.Store,
	monitor ConnectionHealth,
	taskRepo repository.TaskRepository,
	events repository.TaskEventRepository,
	sender MessageSender,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *OutboxProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	// @every schedules have whole-second resolution.
	cfg.Interval = max(cfg.Interval.Truncate(time.Second), time.Second)
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 72 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &OutboxProcessor{
		store:    store,
		monitor:  monitor,
		taskRepo: taskRepo,
		events:   events,
		sender:   sender,
		logger:   logger,
		cfg:      cfg,
		cron:     cron.New(cron.WithSeconds()),
		now:      time.Now,
	}

	schedule := "@every " + cfg.Interval.String()
	if _, err := p.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := p.Drain(ctx); err != nil {
			p.logger.Error("outbox drain failed", zap.Error(err))
		}
	}); err != nil {
		p.logger.Error("failed to schedule outbox drain", zap.String("schedule", schedule), zap.Error(err))
	}
	if _, err := p.cron.AddFunc("@hourly", func() {
		removed, err := p.store.Cleanup(time.Now().Add(-p.cfg.MaxAge))
		if err != nil {
			p.logger.Error("outbox cleanup failed", zap.Error(err))
			return
		}
		if removed > 0 {
			p.logger.Warn("expired outbox items discarded", zap.Int("count", removed))
		}
	}); err != nil {
		p.logger.Error("failed to schedule outbox cleanup", zap.Error(err))
	}

	return p
}

// Start launches the cron scheduler.
func (p *OutboxProcessor) Start() {
	if p == nil || p.cron == nil {
		return
	}
	p.cron.Start()
	p.logger.Info("outbox processor started")
}

// Stop gracefully stops the scheduler.
func (p *OutboxProcessor) Stop(ctx context.Context) {
	if p == nil || p.cron == nil {
		return
	}
	stopCtx := p.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	p.logger.Info("outbox processor stopped")
}

// Drain processes one batch synchronously. Task mutations wait while the
// primary storage is offline; notifications are attempted regardless.
func (p *OutboxProcessor) Drain(ctx context.Context) error {
	if p == nil || p.store == nil {
		return nil
	}
	online := p.online()

	items, err := p.store.GetBatch(p.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		if item.Entity == outbox.EntityTask && !online {
			continue
		}
		if err := p.processItem(ctx, item); err != nil {
			p.logger.Error("failed to process outbox item",
				zap.String("item_id", item.ID),
				zap.String("entity", item.Entity),
				zap.Error(err))

			item.Retries++
			if item.Retries >= p.cfg.MaxRetries || !retryable(err) {
				p.logger.Warn("dropping outbox item",
					zap.String("item_id", item.ID),
					zap.Int("retries", item.Retries))
				_ = p.store.Remove(item)
				continue
			}
			if err := p.store.Requeue(item); err != nil {
				p.logger.Error("failed to requeue outbox item", zap.Error(err))
			}
			continue
		}

		if err := p.store.Remove(item); err != nil {
			p.logger.Warn("failed to purge processed outbox item", zap.Error(err))
		}
	}
	return nil
}

// Submit attempts to run item immediately and falls back to persisting it.
func (p *OutboxProcessor) Submit(ctx context.Context, item outbox.Item) error {
	if p == nil || p.store == nil {
		return fmt.Errorf("outbox processor not configured")
	}

	if item.Entity == outbox.EntityNotification || p.online() {
		err := p.processItem(ctx, item)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		p.logger.Warn("immediate processing failed, queueing",
			zap.String("entity", item.Entity),
			zap.Error(err))
	}
	return p.store.Enqueue(item)
}

// Size returns the number of queued items.
func (p *OutboxProcessor) Size() int {
	if p == nil || p.store == nil {
		return 0
	}
	size, err := p.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (p *OutboxProcessor) online() bool {
	return p.monitor == nil || p.monitor.IsOnline()
}

func (p *OutboxProcessor) processItem(ctx context.Context, item outbox.Item) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch item.Entity {
	case outbox.EntityTask:
		return p.replayTask(ctx, item)

	case outbox.EntityNotification:
		var n outbox.Notification
		if err := json.Unmarshal(item.Data, &n); err != nil {
			return err
		}
		if p.sender == nil {
			return domain.ErrTelegramUnavailable
		}
		return p.sender.SendMessage(ctx, n.ChatID, n.Text)

	default:
		return fmt.Errorf("unsupported entity %s", item.Entity)
	}
}

func (p *OutboxProcessor) replayTask(ctx context.Context, item outbox.Item) error {
	var task domain.Task
	if err := json.Unmarshal(item.Data, &task); err != nil {
		return err
	}

	var event string
	switch item.Operation {
	case outbox.OperationCreate:
		if _, err := p.taskRepo.Create(ctx, &task); err != nil {
			return err
		}
		event = domain.EventTaskCreated
	case outbox.OperationUpdate:
		mutatedAt := task.UpdatedAt
		if mutatedAt.IsZero() {
			mutatedAt = item.Timestamp
		}
		if err := p.taskRepo.Replay(ctx, &task, mutatedAt); err != nil {
			return err
		}
		event = domain.EventTaskUpdated
	case outbox.OperationDelete:
		if err := p.taskRepo.Delete(ctx, task.ID); err != nil {
			return err
		}
		event = domain.EventTaskDeleted
	default:
		return fmt.Errorf("unsupported operation %s", item.Operation)
	}

	if p.events != nil && task.ID != 0 {
		payload, _ := json.Marshal(map[string]interface{}{"replayed": true, "task": task})
		if err := p.events.Append(ctx, domain.TaskEvent{
			TaskID:  task.ID,
			ActorID: item.ActorID,
			Name:    event,
			Payload: payload,
		}); err != nil {
			p.logger.Warn("failed to record replayed task event", zap.Int64("task_id", task.ID), zap.Error(err))
		}
	}
	return nil
}

// retryable treats domain errors and permanent Bot API rejections as final.
func retryable(err error) bool {
	var dErr *domain.Error
	if errors.As(err, &dErr) {
		return false
	}
	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) {
		return temp.Temporary()
	}
	return true
}

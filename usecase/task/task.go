package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/pkg/logger"
	"github.com/fastygo/taskpulse/repository"
	"github.com/fastygo/taskpulse/usecase"
)

const maxTitleLength = 255

var (
	errTitleRequired  = domain.Invalid("title is required")
	errTitleTooLong   = domain.Invalid(fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	errUnknownStatus  = domain.Invalid("unknown status")
	errNotVisible     = domain.Forbidden("task is not visible to the current user")
	errCreatorOnly    = domain.Forbidden("only the task creator can do this")
	errAssigneeStatus = domain.Forbidden("the assignee may change only the status")
	errSelfAssignOnly = domain.Forbidden("executors may create tasks only for themselves")
)

// CreateInput carries the fields accepted when creating a task.
type CreateInput struct {
	AssigneeID  int64
	Title       string
	Description string
	Status      domain.Status
	Priority    *domain.Priority
	DueAt       *time.Time
}

// Patch lists optional changes; nil fields are left untouched.
type Patch struct {
	AssigneeID  *int64
	Title       *string
	Description *string
	Status      *domain.Status
	Priority    *domain.Priority
	DueAt       *time.Time
	ClearDueAt  bool
}

func (p Patch) onlyStatus() bool {
	return p.AssigneeID == nil && p.Title == nil && p.Description == nil &&
		p.Priority == nil && p.DueAt == nil && !p.ClearDueAt
}

type UseCase struct {
	tasks    repository.TaskRepository
	users    repository.UserRepository
	events   repository.TaskEventRepository
	buffer   usecase.OperationBuffer
	notifier usecase.Notifier
	logger   *zap.Logger
}

func New(
	tasks repository.TaskRepository,
	users repository.UserRepository,
	events repository.TaskEventRepository,
	buffer usecase.OperationBuffer,
	notifier usecase.Notifier,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:    tasks,
		users:    users,
		events:   events,
		buffer:   buffer,
		notifier: notifier,
		logger:   logger,
	}
}

// ListTasks returns tasks the actor created or is assigned to.
func (uc *UseCase) ListTasks(ctx context.Context, actorID int64, filter repository.TaskFilter) ([]domain.Task, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, errUnknownStatus
	}
	filter.ParticipantID = actorID
	return uc.tasks.List(ctx, filter)
}

// GetTask returns a task visible to the actor.
func (uc *UseCase) GetTask(ctx context.Context, actorID, id int64) (*domain.Task, error) {
	task, err := uc.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !task.HasParticipant(actorID) {
		return nil, errNotVisible
	}
	return task, nil
}

func (uc *UseCase) CreateTask(ctx context.Context, actorID int64, in CreateInput) (*domain.Task, error) {
	actor, err := uc.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	title, err := normalizeTitle(in.Title)
	if err != nil {
		return nil, err
	}

	task := &domain.Task{
		CreatorID:   actor.ID,
		AssigneeID:  in.AssigneeID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Status:      domain.StatusNew,
		Priority:    domain.PriorityMedium,
		DueAt:       in.DueAt,
	}
	if in.Status != "" {
		if !in.Status.Valid() {
			return nil, errUnknownStatus
		}
		task.Status = in.Status
	}
	if in.Priority != nil {
		task.Priority = *in.Priority
	}

	if !actor.IsCreator() {
		if task.AssigneeID == 0 {
			task.AssigneeID = actor.ID
		}
		if task.AssigneeID != actor.ID {
			return nil, errSelfAssignOnly
		}
	}
	if err := uc.checkAssignee(ctx, task.AssigneeID); err != nil {
		return nil, err
	}

	created, err := uc.tasks.Create(ctx, task)
	if err != nil {
		if uc.shouldBuffer(ctx, usecase.OperationCreate, actorID, task, err) {
			return task, nil
		}
		return nil, err
	}

	uc.record(ctx, actorID, created.ID, domain.EventTaskCreated, created)
	if created.AssigneeID != 0 && created.AssigneeID != actorID {
		uc.notify(ctx, created.AssigneeID, fmt.Sprintf("New task: %s %s", created.Title, Link(created.ID)))
	}
	return created, nil
}

func (uc *UseCase) UpdateTask(ctx context.Context, actorID, id int64, patch Patch) (*domain.Task, error) {
	task, err := uc.GetTask(ctx, actorID, id)
	if err != nil {
		return nil, err
	}

	if task.CreatorID != actorID {
		if !patch.onlyStatus() {
			return nil, errAssigneeStatus
		}
	}

	before := *task
	if err := applyPatch(task, patch); err != nil {
		return nil, err
	}
	if task.AssigneeID != before.AssigneeID {
		if err := uc.checkAssignee(ctx, task.AssigneeID); err != nil {
			return nil, err
		}
	}

	if err := uc.tasks.Update(ctx, task); err != nil {
		if uc.shouldBuffer(ctx, usecase.OperationUpdate, actorID, task, err) {
			return task, nil
		}
		return nil, err
	}

	if task.Status != before.Status {
		uc.record(ctx, actorID, task.ID, domain.EventTaskStatusChanged, map[string]interface{}{
			"from": before.Status,
			"to":   task.Status,
		})
		if counterpart := task.Counterpart(actorID); counterpart != 0 && counterpart != actorID {
			uc.notify(ctx, counterpart, fmt.Sprintf("Task %q is now %s %s", task.Title, task.Status, Link(task.ID)))
		}
	}
	if changes := diff(&before, task); len(changes) > 0 {
		uc.record(ctx, actorID, task.ID, domain.EventTaskUpdated, changes)
	}
	if task.AssigneeID != before.AssigneeID && task.AssigneeID != 0 && task.AssigneeID != actorID {
		uc.notify(ctx, task.AssigneeID, fmt.Sprintf("New task: %s %s", task.Title, Link(task.ID)))
	}
	return task, nil
}

func (uc *UseCase) DeleteTask(ctx context.Context, actorID, id int64) error {
	task, err := uc.GetTask(ctx, actorID, id)
	if err != nil {
		return err
	}
	if task.CreatorID != actorID {
		return errCreatorOnly
	}

	if err := uc.tasks.Delete(ctx, id); err != nil {
		if uc.shouldBuffer(ctx, usecase.OperationDelete, actorID, task, err) {
			return nil
		}
		return err
	}
	uc.record(ctx, actorID, id, domain.EventTaskDeleted, task)
	return nil
}

// ListEvents returns the activity log of a task visible to the actor.
func (uc *UseCase) ListEvents(ctx context.Context, actorID, id int64, limit, offset int) ([]domain.TaskEvent, error) {
	if _, err := uc.GetTask(ctx, actorID, id); err != nil {
		return nil, err
	}
	return uc.events.ListByTask(ctx, id, limit, offset)
}

// Link renders the task reference that Telegram replies are matched against.
func Link(id int64) string {
	return fmt.Sprintf("/tasks/%d", id)
}

func (uc *UseCase) checkAssignee(ctx context.Context, assigneeID int64) error {
	if assigneeID == 0 {
		return nil
	}
	if _, err := uc.users.GetByID(ctx, assigneeID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.WrapError(domain.ErrCodeInvalid, "assignee does not exist", err)
		}
		return err
	}
	return nil
}

func applyPatch(task *domain.Task, p Patch) error {
	if p.Title != nil {
		title, err := normalizeTitle(*p.Title)
		if err != nil {
			return err
		}
		task.Title = title
	}
	if p.Description != nil {
		task.Description = strings.TrimSpace(*p.Description)
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return errUnknownStatus
		}
		task.Status = *p.Status
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return domain.Invalid("unknown priority")
		}
		task.Priority = *p.Priority
	}
	if p.ClearDueAt {
		task.DueAt = nil
	} else if p.DueAt != nil {
		due := *p.DueAt
		task.DueAt = &due
	}
	if p.AssigneeID != nil {
		task.AssigneeID = *p.AssigneeID
	}
	return nil
}

// diff lists changed fields other than status.
func diff(before, after *domain.Task) map[string]interface{} {
	changes := make(map[string]interface{})
	if before.Title != after.Title {
		changes["title"] = after.Title
	}
	if before.Description != after.Description {
		changes["description"] = after.Description
	}
	if before.Priority != after.Priority {
		changes["priority"] = after.Priority
	}
	if before.AssigneeID != after.AssigneeID {
		changes["assignee"] = after.AssigneeID
	}
	if !sameDeadline(before.DueAt, after.DueAt) {
		changes["due_at"] = after.DueAt
	}
	return changes
}

func sameDeadline(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func normalizeTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", errTitleRequired
	}
	if len([]rune(title)) > maxTitleLength {
		return "", errTitleTooLong
	}
	return title, nil
}

func (uc *UseCase) record(ctx context.Context, actorID, taskID int64, name string, payload interface{}) {
	if uc.events == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		uc.logger.Warn("failed to encode task event", zap.String("event", name), zap.Error(err))
		return
	}
	if err := uc.events.Append(ctx, domain.TaskEvent{
		TaskID:  taskID,
		ActorID: actorID,
		Name:    name,
		Payload: raw,
	}); err != nil {
		logger.WithRequestID(ctx, uc.logger).Warn("failed to record task event",
			zap.String("event", name),
			zap.Int64("task_id", taskID),
			zap.Error(err))
	}
}

func (uc *UseCase) notify(ctx context.Context, userID int64, text string) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.Notify(ctx, userID, text); err != nil {
		logger.WithRequestID(ctx, uc.logger).Warn("failed to notify user",
			zap.Int64("user_id", userID),
			zap.Error(err))
	}
}

// shouldBuffer defers the mutation when the failure came from storage
// rather than from a domain rule.
func (uc *UseCase) shouldBuffer(ctx context.Context, operation string, actorID int64, task *domain.Task, cause error) bool {
	if uc.buffer == nil {
		return false
	}
	var dErr *domain.Error
	if errors.As(cause, &dErr) {
		return false
	}
	log := logger.WithRequestID(ctx, uc.logger)
	if err := uc.buffer.BufferTask(ctx, operation, actorID, task); err != nil {
		log.Error("failed to buffer task operation", zap.String("operation", operation), zap.Error(err))
		return false
	}
	log.Warn("task operation buffered", zap.String("operation", operation), zap.Error(cause))
	return true
}

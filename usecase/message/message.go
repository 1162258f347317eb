package message

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/pkg/logger"
	"github.com/fastygo/taskpulse/repository"
	"github.com/fastygo/taskpulse/usecase"
	taskUC "github.com/fastygo/taskpulse/usecase/task"
)

const maxTextLength = 4000

var (
	ErrTaskRequired = domain.Invalid("task_id is required")
	ErrUserRequired = domain.Invalid("user_id is required: the conversation peer must be specified")
	ErrTextRequired = domain.Invalid("text is required")
	errTextTooLong  = domain.Invalid(fmt.Sprintf("text must be at most %d characters", maxTextLength))
	errNotMember    = domain.Forbidden("only task participants can access its conversation")
	errPeerOutside  = domain.Invalid("user_id must be the other participant of the task")
)

// PostInput is a new conversation message.
type PostInput struct {
	TaskID int64
	PeerID int64
	Text   string
	Source domain.MessageSource
}

type UseCase struct {
	tasks    repository.TaskRepository
	messages repository.MessageRepository
	notifier usecase.Notifier
	logger   *zap.Logger
}

func New(tasks repository.TaskRepository, messages repository.MessageRepository, notifier usecase.Notifier, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:    tasks,
		messages: messages,
		notifier: notifier,
		logger:   logger,
	}
}

// List returns the conversation of a task, optionally narrowed to the
// exchange with peerID.
func (uc *UseCase) List(ctx context.Context, actorID int64, filter repository.MessageFilter) ([]domain.TaskMessage, error) {
	if filter.TaskID <= 0 {
		return nil, ErrTaskRequired
	}
	if _, err := uc.participantTask(ctx, actorID, filter.TaskID); err != nil {
		return nil, err
	}
	return uc.messages.List(ctx, filter)
}

// Post stores a message from senderID to the peer and notifies the peer.
func (uc *UseCase) Post(ctx context.Context, senderID int64, in PostInput) (*domain.TaskMessage, error) {
	if in.TaskID <= 0 {
		return nil, ErrTaskRequired
	}
	if in.PeerID <= 0 {
		return nil, ErrUserRequired
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrTextRequired
	}
	if len([]rune(text)) > maxTextLength {
		return nil, errTextTooLong
	}

	task, err := uc.participantTask(ctx, senderID, in.TaskID)
	if err != nil {
		return nil, err
	}
	if !task.HasParticipant(in.PeerID) {
		return nil, errPeerOutside
	}

	source := in.Source
	if source == "" {
		source = domain.SourceApp
	}

	msg, err := uc.messages.Create(ctx, &domain.TaskMessage{
		TaskID:   task.ID,
		SenderID: senderID,
		PeerID:   in.PeerID,
		Text:     text,
		Source:   source,
	})
	if err != nil {
		return nil, err
	}

	if in.PeerID != senderID && uc.notifier != nil {
		note := fmt.Sprintf("%s\n\nReply to this message to answer. %s", text, taskUC.Link(task.ID))
		if err := uc.notifier.Notify(ctx, in.PeerID, note); err != nil {
			logger.WithRequestID(ctx, uc.logger).Warn("failed to notify conversation peer",
				zap.Int64("task_id", task.ID),
				zap.Int64("peer_id", in.PeerID),
				zap.Error(err))
		}
	}
	return msg, nil
}

func (uc *UseCase) participantTask(ctx context.Context, actorID, taskID int64) (*domain.Task, error) {
	task, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.HasParticipant(actorID) {
		return nil, errNotMember
	}
	return task, nil
}

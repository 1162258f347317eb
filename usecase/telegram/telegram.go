package telegram

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/taskpulse/domain"
	tg "github.com/fastygo/taskpulse/internal/infrastructure/telegram"
	"github.com/fastygo/taskpulse/pkg/logger"
	"github.com/fastygo/taskpulse/repository"
	"github.com/fastygo/taskpulse/usecase"
	messageUC "github.com/fastygo/taskpulse/usecase/message"
)

// Outcome describes what the webhook did with an update.
type Outcome string

const (
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeLinked    Outcome = "linked"
	OutcomeMessage   Outcome = "message_created"
	OutcomeIgnored   Outcome = "ignored"
)

type Config struct {
	BotUsername   string
	WebhookSecret string
	LinkTTL       time.Duration
	UpdateTTL     time.Duration
}

type UseCase struct {
	profiles repository.TelegramProfileRepository
	tokens   repository.LinkTokenRepository
	dedup    repository.UpdateDeduplicator
	tasks    repository.TaskRepository
	messages *messageUC.UseCase
	notifier usecase.Notifier
	cfg      Config
	now      func() time.Time
	logger   *zap.Logger
}

func New(
	profiles repository.TelegramProfileRepository,
	tokens repository.LinkTokenRepository,
	dedup repository.UpdateDeduplicator,
	tasks repository.TaskRepository,
	messages *messageUC.UseCase,
	notifier usecase.Notifier,
	cfg Config,
	logger *zap.Logger,
) *UseCase {
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = 15 * time.Minute
	}
	if cfg.UpdateTTL <= 0 {
		cfg.UpdateTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		profiles: profiles,
		tokens:   tokens,
		dedup:    dedup,
		tasks:    tasks,
		messages: messages,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
	}
}

// VerifySecret checks the webhook path secret. An unset secret rejects
// every request.
func (uc *UseCase) VerifySecret(secret string) bool {
	if uc.cfg.WebhookSecret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(uc.cfg.WebhookSecret)) == 1
}

// IssueLinkToken creates a one-time token the user sends to the bot.
func (uc *UseCase) IssueLinkToken(ctx context.Context, userID int64) (*domain.LinkToken, error) {
	if userID <= 0 {
		return nil, domain.ErrUnauthorized
	}
	token := &domain.LinkToken{
		Token:     uuid.NewString(),
		UserID:    userID,
		ExpiresAt: uc.now().Add(uc.cfg.LinkTTL),
	}
	if uc.cfg.BotUsername != "" {
		token.DeepLink = fmt.Sprintf("https://t.me/%s?start=%s", uc.cfg.BotUsername, url.QueryEscape(token.Token))
	}
	if err := uc.tokens.Save(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

// HandleUpdate processes one webhook update. Updates that carry nothing
// actionable are ignored without error; only storage failures are returned,
// in which case the update may be redelivered.
func (uc *UseCase) HandleUpdate(ctx context.Context, update tg.Update) (Outcome, error) {
	log := logger.WithRequestID(ctx, uc.logger).With(zap.Int64("update_id", update.UpdateID))

	if update.UpdateID != 0 && uc.dedup != nil {
		fresh, err := uc.dedup.MarkProcessed(ctx, update.UpdateID, uc.cfg.UpdateTTL)
		if err != nil {
			return "", fmt.Errorf("dedup update: %w", err)
		}
		if !fresh {
			log.Debug("duplicate telegram update")
			return OutcomeDuplicate, nil
		}
	}

	outcome, err := uc.dispatch(ctx, update, log)
	if err != nil {
		if update.UpdateID != 0 && uc.dedup != nil {
			if relErr := uc.dedup.Release(ctx, update.UpdateID); relErr != nil {
				log.Warn("failed to release telegram update", zap.Error(relErr))
			}
		}
		return "", err
	}
	log.Debug("telegram update handled", zap.String("outcome", string(outcome)))
	return outcome, nil
}

func (uc *UseCase) dispatch(ctx context.Context, update tg.Update, log *zap.Logger) (Outcome, error) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return OutcomeIgnored, nil
	}

	if token, ok := parseStart(msg.Text); ok {
		return uc.link(ctx, msg, token, log)
	}
	if msg.ReplyToMessage != nil {
		if taskID, ok := ParseTaskLink(msg.ReplyToMessage.Text); ok {
			return uc.reply(ctx, msg, taskID, log)
		}
	}
	return OutcomeIgnored, nil
}

func (uc *UseCase) link(ctx context.Context, msg *tg.Message, token string, log *zap.Logger) (Outcome, error) {
	if token == "" {
		return OutcomeIgnored, nil
	}
	link, err := uc.tokens.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrLinkTokenNotFound) {
			log.Info("telegram link token rejected", zap.Int64("telegram_user_id", msg.From.ID))
			return OutcomeIgnored, nil
		}
		return "", err
	}

	profile := &domain.TelegramProfile{
		UserID:         link.UserID,
		TelegramUserID: msg.From.ID,
		ChatID:         msg.Chat.ID,
		LinkedAt:       uc.now(),
	}
	if err := uc.profiles.Upsert(ctx, profile); err != nil {
		return "", err
	}
	log.Info("telegram account linked",
		zap.Int64("user_id", link.UserID),
		zap.Int64("telegram_user_id", msg.From.ID))

	if uc.notifier != nil {
		if err := uc.notifier.Notify(ctx, link.UserID, "Telegram is linked. Reply to task notifications to answer in the task conversation."); err != nil {
			log.Warn("failed to confirm telegram link", zap.Error(err))
		}
	}
	return OutcomeLinked, nil
}

func (uc *UseCase) reply(ctx context.Context, msg *tg.Message, taskID int64, log *zap.Logger) (Outcome, error) {
	if msg.Text == "" {
		return OutcomeIgnored, nil
	}
	profile, err := uc.profiles.GetByTelegramUserID(ctx, msg.From.ID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			log.Info("reply from unlinked telegram account", zap.Int64("telegram_user_id", msg.From.ID))
			return OutcomeIgnored, nil
		}
		return "", err
	}

	task, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return OutcomeIgnored, nil
		}
		return "", err
	}
	if !task.HasParticipant(profile.UserID) {
		log.Info("reply to a task the user does not participate in",
			zap.Int64("user_id", profile.UserID),
			zap.Int64("task_id", taskID))
		return OutcomeIgnored, nil
	}
	peer := task.Counterpart(profile.UserID)
	if peer == 0 {
		peer = profile.UserID
	}

	if _, err := uc.messages.Post(ctx, profile.UserID, messageUC.PostInput{
		TaskID: task.ID,
		PeerID: peer,
		Text:   msg.Text,
		Source: domain.SourceTelegram,
	}); err != nil {
		var dErr *domain.Error
		if errors.As(err, &dErr) {
			log.Info("telegram reply rejected", zap.Error(err))
			return OutcomeIgnored, nil
		}
		return "", err
	}
	return OutcomeMessage, nil
}

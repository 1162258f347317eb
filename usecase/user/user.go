package user

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/repository"
)

// Profile is the caller's account together with its Telegram binding.
type Profile struct {
	User           *domain.User            `json:"user"`
	TelegramLinked bool                    `json:"telegram_linked"`
	Telegram       *domain.TelegramProfile `json:"telegram,omitempty"`
}

type UseCase struct {
	users    repository.UserRepository
	profiles repository.TelegramProfileRepository
	logger   *zap.Logger
}

func New(users repository.UserRepository, profiles repository.TelegramProfileRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:    users,
		profiles: profiles,
		logger:   logger,
	}
}

// GetUser returns an active user.
func (uc *UseCase) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	if id <= 0 {
		return nil, domain.ErrUnauthorized
	}
	u, err := uc.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsActive() {
		return nil, domain.Forbidden("user is disabled")
	}
	return u, nil
}

// Lookup returns any existing user, active or not.
func (uc *UseCase) Lookup(ctx context.Context, id int64) (*domain.User, error) {
	if id <= 0 {
		return nil, domain.ErrUserNotFound
	}
	return uc.users.GetByID(ctx, id)
}

func (uc *UseCase) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	u, err := uc.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := &Profile{User: u}
	if uc.profiles == nil {
		return profile, nil
	}

	tg, err := uc.profiles.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		profile.TelegramLinked = true
		profile.Telegram = tg
	case errors.Is(err, domain.ErrProfileNotFound):
	default:
		uc.logger.Warn("telegram profile lookup failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	return profile, nil
}

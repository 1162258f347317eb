package repository

import (
	"context"
	"time"

	"github.com/fastygo/taskpulse/domain"
)

type TelegramProfileRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*domain.TelegramProfile, error)
	GetByTelegramUserID(ctx context.Context, telegramUserID int64) (*domain.TelegramProfile, error)
	Upsert(ctx context.Context, profile *domain.TelegramProfile) error
}

// LinkTokenRepository stores one-time Telegram link tokens.
type LinkTokenRepository interface {
	Save(ctx context.Context, token *domain.LinkToken) error
	// Consume returns the token owner and invalidates the token atomically.
	Consume(ctx context.Context, token string) (*domain.LinkToken, error)
}

// UpdateDeduplicator remembers processed webhook update ids.
type UpdateDeduplicator interface {
	// MarkProcessed returns false when the update id was already seen.
	MarkProcessed(ctx context.Context, updateID int64, ttl time.Duration) (bool, error)
	// Release forgets updateID so a redelivery is processed again.
	Release(ctx context.Context, updateID int64) error
}

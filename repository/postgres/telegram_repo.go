package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/repository"
)

type telegramProfileRepository struct {
	pool *pgxpool.Pool
}

// NewTelegramProfileRepository returns a Postgres-backed TelegramProfileRepository.
func NewTelegramProfileRepository(pool *pgxpool.Pool) repository.TelegramProfileRepository {
	return &telegramProfileRepository{pool: pool}
}

func (r *telegramProfileRepository) GetByUserID(ctx context.Context, userID int64) (*domain.TelegramProfile, error) {
	const query = `
	SELECT user_id, telegram_user_id, chat_id, linked_at
	FROM telegram_profiles
	WHERE user_id = $1
	`
	return scanProfile(r.pool.QueryRow(ctx, query, userID))
}

func (r *telegramProfileRepository) GetByTelegramUserID(ctx context.Context, telegramUserID int64) (*domain.TelegramProfile, error) {
	const query = `
	SELECT user_id, telegram_user_id, chat_id, linked_at
	FROM telegram_profiles
	WHERE telegram_user_id = $1
	`
	return scanProfile(r.pool.QueryRow(ctx, query, telegramUserID))
}

// Upsert links the user, moving the Telegram account away from any previous owner.
func (r *telegramProfileRepository) Upsert(ctx context.Context, profile *domain.TelegramProfile) error {
	if profile == nil || profile.UserID == 0 {
		return domain.ErrInvalidPayload
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM telegram_profiles WHERE telegram_user_id = $1 AND user_id <> $2`,
		profile.TelegramUserID, profile.UserID,
	); err != nil {
		return err
	}

	const query = `
	INSERT INTO telegram_profiles (user_id, telegram_user_id, chat_id, linked_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (user_id) DO UPDATE
	SET telegram_user_id = EXCLUDED.telegram_user_id,
		chat_id = EXCLUDED.chat_id,
		linked_at = NOW()
	RETURNING linked_at
	`
	if err := tx.QueryRow(ctx, query,
		profile.UserID,
		profile.TelegramUserID,
		profile.ChatID,
	).Scan(&profile.LinkedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func scanProfile(row rowScanner) (*domain.TelegramProfile, error) {
	var profile domain.TelegramProfile
	if err := row.Scan(&profile.UserID, &profile.TelegramUserID, &profile.ChatID, &profile.LinkedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

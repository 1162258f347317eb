package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/repository"
)

type linkTokenRepository struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
}

// NewLinkTokenRepository creates a Redis-backed store of one-time Telegram link tokens.
func NewLinkTokenRepository(client *redislib.Client, ttl time.Duration) repository.LinkTokenRepository {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &linkTokenRepository{
		client: client,
		prefix: "telegram:link:",
		ttl:    ttl,
	}
}

func (r *linkTokenRepository) Save(ctx context.Context, token *domain.LinkToken) error {
	if token == nil || token.Token == "" || token.UserID == 0 {
		return domain.ErrInvalidPayload
	}

	now := time.Now()
	if !token.ExpiresAt.After(now) {
		token.ExpiresAt = now.Add(r.ttl)
	}

	payload, err := json.Marshal(token)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, r.key(token.Token), payload, time.Until(token.ExpiresAt)).Err()
}

func (r *linkTokenRepository) Consume(ctx context.Context, token string) (*domain.LinkToken, error) {
	result, err := r.client.GetDel(ctx, r.key(token)).Result()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, domain.ErrLinkTokenNotFound
		}
		return nil, err
	}

	var link domain.LinkToken
	if err := json.Unmarshal([]byte(result), &link); err != nil {
		return nil, err
	}
	if link.IsExpired(time.Now()) {
		return nil, domain.ErrLinkTokenNotFound
	}
	return &link, nil
}

func (r *linkTokenRepository) key(token string) string {
	return fmt.Sprintf("%s%s", r.prefix, token)
}

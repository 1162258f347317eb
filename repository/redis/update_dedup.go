package redis

import (
	"context"
	"strconv"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskpulse/repository"
)

type updateDeduplicator struct {
	client *redislib.Client
	prefix string
}

// NewUpdateDeduplicator tracks Telegram update ids so redelivered webhooks are ignored.
func NewUpdateDeduplicator(client *redislib.Client) repository.UpdateDeduplicator {
	return &updateDeduplicator{client: client, prefix: "telegram:update:"}
}

func (d *updateDeduplicator) MarkProcessed(ctx context.Context, updateID int64, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return d.client.SetNX(ctx, d.key(updateID), 1, ttl).Result()
}

func (d *updateDeduplicator) Release(ctx context.Context, updateID int64) error {
	return d.client.Del(ctx, d.key(updateID)).Err()
}

func (d *updateDeduplicator) key(updateID int64) string {
	return d.prefix + strconv.FormatInt(updateID, 10)
}

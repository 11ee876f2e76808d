package storage

import (
	"context"
	"fmt"

	"hospital-queue/internal/queue"

	"github.com/redis/go-redis/v9"
)

const GlobalNumberKey = "queue:number:global"

// RedisCounter hands out queue numbers with INCR so they survive restarts
// and stay unique across server instances.
type RedisCounter struct {
	client redis.Cmdable
	key    string
}

var _ queue.NumberSource = (*RedisCounter)(nil)

func NewRedisCounter(client redis.Cmdable) *RedisCounter {
	return &RedisCounter{client: client, key: GlobalNumberKey}
}

func (c *RedisCounter) Next(ctx context.Context) (int64, error) {
	n, err := c.client.Incr(ctx, c.key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", c.key, err)
	}
	return n, nil
}

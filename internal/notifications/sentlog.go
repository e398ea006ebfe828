package notifications

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const sentKeyPrefix = "hallbook:notification:sent:"

// SentLog remembers which notification ids were delivered so a redelivered
// record does not send the same email twice.
type SentLog interface {
	Delivered(ctx context.Context, id string) (bool, error)
	MarkDelivered(ctx context.Context, id string) error
}

type RedisSentLog struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisSentLog(client redis.Cmdable, ttl time.Duration) *RedisSentLog {
	return &RedisSentLog{client: client, ttl: ttl}
}

func (s *RedisSentLog) Delivered(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, sentKeyPrefix+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisSentLog) MarkDelivered(ctx context.Context, id string) error {
	return s.client.Set(ctx, sentKeyPrefix+id, time.Now().UTC().Format(time.RFC3339), s.ttl).Err()
}

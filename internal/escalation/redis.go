package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// streamAdder is the part of a redis client the stream channel uses.
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStream appends the alert to a Redis stream.
type RedisStream struct {
	name   string
	client streamAdder
	stream string
	maxLen int64
}

// NewRedisStream creates a Redis stream channel. maxLen > 0 trims the
// stream approximately to that length.
func NewRedisStream(name string, client streamAdder, stream string, maxLen int64) *RedisStream {
	return &RedisStream{name: name, client: client, stream: stream, maxLen: maxLen}
}

// Name implements Broadcaster.
func (r *RedisStream) Name() string { return r.name }

// Send implements Broadcaster.
func (r *RedisStream) Send(ctx context.Context, text string) error {
	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"text":    text,
			"sent_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis xadd %s: %w", r.stream, err)
	}
	return nil
}

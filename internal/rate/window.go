package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window counts hits per key in fixed windows of Length.
type Window struct {
	redis  redis.UniversalClient
	prefix string
	max    int
	length time.Duration
}

// NewWindow returns a window allowing max hits per key per length. Keys are
// stored as prefix + ":" + key.
func NewWindow(redisClient redis.UniversalClient, prefix string, max int, length time.Duration) *Window {
	return &Window{
		redis:  redisClient,
		prefix: prefix,
		max:    max,
		length: length,
	}
}

// Hit records one hit for key and returns ErrRateLimited once the count
// passes the budget. INCR and EXPIRE NX run in one MULTI/EXEC, so a key
// never outlives its window and the TTL is set only by the first hit.
func (w *Window) Hit(ctx context.Context, key string) error {
	var incr *redis.IntCmd
	_, err := w.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, w.key(key))
		pipe.ExpireNX(ctx, w.key(key), w.length)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if incr.Val() > int64(w.max) {
		return ErrRateLimited
	}
	return nil
}

func (w *Window) key(key string) string {
	return w.prefix + ":" + key
}

package server

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter in Redis, keyed per visitor. The
// first request of a window creates the key with the window TTL; subsequent
// requests just increment it.
type RateLimiter struct {
	Rdb      *redis.Client
	Limit    int
	Window   time.Duration
	Recorder interface{ RecordRateLimited() }
}

// Allow reports whether the caller is within budget. Redis failures allow the
// request through so a cache outage never takes the chat widget down.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if rl == nil || rl.Rdb == nil || rl.Limit <= 0 {
		return true, nil
	}
	redisKey := "chat:rate:" + key
	n, err := rl.Rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, err
	}
	if n == 1 {
		rl.Rdb.Expire(ctx, redisKey, rl.Window)
	}
	if n > int64(rl.Limit) {
		if rl.Recorder != nil {
			rl.Recorder.RecordRateLimited()
		}
		return false, nil
	}
	return true, nil
}

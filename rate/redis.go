package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingLog prunes the sorted set to the window, then either records the
// attempt or reports how long until the oldest entry leaves the window.
var slidingLog = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count < max then
	redis.call('ZADD', key, now, ARGV[4])
	redis.call('PEXPIRE', key, window)
	return {1, max - count - 1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {0, 0, tonumber(oldest[2]) + window - now}
`)

// RedisWindow is the shared-state counterpart of Window, for deployments with
// more than one handler instance.
type RedisWindow struct {
	client redis.Scripter
	prefix string
	max    int
	window time.Duration
	now    func() time.Time
}

func NewRedisWindow(client redis.Scripter, prefix string, max int, window time.Duration) (*RedisWindow, error) {
	if err := checkLimit(max, window); err != nil {
		return nil, err
	}

	w := RedisWindow{
		client: client,
		prefix: prefix,
		max:    max,
		window: window,
		now:    time.Now,
	}
	return &w, nil
}

func (w *RedisWindow) Allow(ctx context.Context, key string) (Decision, error) {
	now := w.now().UnixMilli()

	res, err := slidingLog.Run(ctx, w.client,
		[]string{w.prefix + key},
		now, w.window.Milliseconds(), w.max, fmt.Sprintf("%d-%s", now, uuid.NewString()),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("running sliding log for %s: %w", key, err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("unexpected sliding log reply %v", res)
	}

	return Decision{
		Allowed:    res[0] == 1,
		Remaining:  int(res[1]),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

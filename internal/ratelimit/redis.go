package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the shared-counter limiter for multi-instance deployments.
// Check-and-increment runs as a single Lua script so it stays atomic
// across instances.
type Redis struct {
	client *redis.Client
	prefix string
	tiers  map[Tier]Config
}

// allowScript implements a fixed window: the first hit in a window sets the
// expiry, later hits only read the remaining TTL. Rejected requests still
// pass through INCR, but the window expiry is never extended, so a blocked
// client is not blocked longer by retrying.
var allowScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	return {count, ttl}
`)

// NewRedis builds a Redis-backed limiter and verifies connectivity.
func NewRedis(ctx context.Context, client *redis.Client, prefix string, tiers map[Tier]Config) (*Redis, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &Redis{client: client, prefix: prefix, tiers: tiers}, nil
}

func (r *Redis) Allow(ctx context.Context, clientID string, tier Tier) (Result, error) {
	cfg, ok := r.tiers[tier]
	if !ok {
		return Result{}, ErrUnknownTier
	}

	key := r.prefix + string(tier) + ":" + clientID
	vals, err := allowScript.Run(ctx, r.client, []string{key}, cfg.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(vals) != 2 {
		return Result{}, fmt.Errorf("unexpected script response length: %d", len(vals))
	}

	count, ttlMs := vals[0], vals[1]
	resetAt := time.Now().Add(cfg.Window)
	if ttlMs > 0 {
		resetAt = time.Now().Add(time.Duration(ttlMs) * time.Millisecond)
	}

	remaining := cfg.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   count <= int64(cfg.Limit),
		Limit:     cfg.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

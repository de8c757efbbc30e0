package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"custodian/internal/domain"

	"github.com/redis/go-redis/v9"
)

// redisLimiter counts requests per key in redis so the limit holds across
// process restarts and replicas. The verdict is computed inside the
// script: the counter, the expiry, and the allow/deny decision move as
// one atomic step.
type redisLimiter struct {
	client *redis.Client
	now    func() time.Time
}

// verdictScript increments the window counter, arms the expiry on the
// first hit, and answers {allowed, remaining, ttl_millis} in one round
// trip. ARGV[1] is the limit, ARGV[2] the window in milliseconds.
var verdictScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
local allowed = 0
if count <= limit then
  allowed = 1
end
local remaining = limit - count
if remaining < 0 then
  remaining = 0
end
return {allowed, remaining, redis.call("PTTL", KEYS[1])}
`)

type RedisLimiterConfig struct {
	Addr     string
	Password string
	DB       int
	Now      func() time.Time
}

func NewRedisLimiter(cfg RedisLimiterConfig) (domain.RateLimiter, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &redisLimiter{client: client, now: cfg.Now}, nil
}

func (r *redisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	windowMillis := window.Milliseconds()
	if windowMillis <= 0 {
		windowMillis = 1000
	}
	reply, err := verdictScript.Run(ctx, r.client, []string{key}, limit, windowMillis).Result()
	if err != nil {
		return domain.RateLimitDecision{}, err
	}
	return decodeVerdict(reply, limit, r.now())
}

// decodeVerdict maps the script reply onto a decision. A negative ttl
// (key without expiry, or a reply raced with expiry) resets at now.
func decodeVerdict(reply any, limit int, now time.Time) (domain.RateLimitDecision, error) {
	values, ok := reply.([]any)
	if !ok || len(values) != 3 {
		return domain.RateLimitDecision{}, fmt.Errorf("malformed rate limit verdict %v", reply)
	}
	allowed, okAllowed := values[0].(int64)
	remaining, okRemaining := values[1].(int64)
	ttlMillis, okTTL := values[2].(int64)
	if !okAllowed || !okRemaining || !okTTL {
		return domain.RateLimitDecision{}, fmt.Errorf("malformed rate limit verdict %v", reply)
	}
	resetAt := now
	if ttlMillis > 0 {
		resetAt = resetAt.Add(time.Duration(ttlMillis) * time.Millisecond)
	}
	return domain.RateLimitDecision{
		Allowed:   allowed == 1,
		Limit:     limit,
		Remaining: int(remaining),
		ResetAt:   resetAt,
	}, nil
}

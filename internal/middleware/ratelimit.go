package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shinyyama/directchat/internal/metrics"
)

// Limiter decides whether one more hit on key fits in the window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RedisLimiter implements a sliding window on a sorted set per key.
type RedisLimiter struct {
	client *redis.Client
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-window)

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(windowStart.UnixMilli(), 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	pipe.Expire(ctx, key, window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, err
	}
	return countCmd.Val() < int64(limit), nil
}

type RateLimiter struct {
	limiter  Limiter
	limit    int
	window   time.Duration
	endpoint string
	logger   zerolog.Logger
}

// NewRateLimiter limits each authenticated user to limit hits per window on
// the routes it wraps. A limit of zero disables it.
func NewRateLimiter(limiter Limiter, endpoint string, limit int, window time.Duration, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{limiter: limiter, limit: limit, window: window, endpoint: endpoint, logger: logger}
}

func (rl *RateLimiter) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		uid, _ := c.Get("uid").(string)
		if rl.limiter == nil || rl.limit <= 0 || uid == "" {
			return next(c)
		}
		key := fmt.Sprintf("ratelimit:%s:%s", rl.endpoint, uid)
		allowed, err := rl.limiter.Allow(c.Request().Context(), key, rl.limit, rl.window)
		if err != nil {
			// fail open
			rl.logger.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable")
			return next(c)
		}
		if !allowed {
			metrics.RateLimitHits.WithLabelValues(rl.endpoint).Inc()
			c.Response().Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			return c.JSON(http.StatusTooManyRequests, errorBody("rate_limited", "too many requests"))
		}
		return next(c)
	}
}

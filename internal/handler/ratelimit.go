package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitConfig configures the plan rate limiter.
type RateLimitConfig struct {
	// RequestsPerSecond is the maximum number of plan requests per client.
	RequestsPerSecond int
}

// WindowCounter records a hit for key and reports whether the key is still
// within limit hits over the trailing window.
type WindowCounter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit creates middleware that limits requests per client IP. Counter
// errors fail open.
func RateLimit(counter WindowCounter, cfg RateLimitConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.RequestsPerSecond <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			client := clientIP(r)
			key := "plan_ratelimit:" + client
			allowed, err := counter.Allow(r.Context(), key, cfg.RequestsPerSecond, time.Second)
			if err != nil {
				logger.Warn("rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("client", client),
				)
			} else if !allowed {
				logger.Info("rate limit exceeded",
					slog.String("client", client),
					slog.Int("limit", cfg.RequestsPerSecond),
				)
				w.Header().Set("Retry-After", "1")
				writeError(w, &APIError{Code: CodeRateLimited, Message: "Rate limit exceeded", Status: http.StatusTooManyRequests})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RedisCounter is a sliding window counter on Redis sorted sets.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter connects to the Redis server at url
// (redis://[user:pass@]host:port/db).
func NewRedisCounter(ctx context.Context, url string) (*RedisCounter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCounter{client: client}, nil
}

// Allow implements WindowCounter.
func (c *RedisCounter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now().UnixNano()
	windowStart := now - int64(window)

	pipe := c.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: strconv.FormatInt(now, 10)})
	pipe.Expire(ctx, key, 2*window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return countCmd.Val() < int64(limit), nil
}

// Close closes the Redis connection.
func (c *RedisCounter) Close() error {
	return c.client.Close()
}

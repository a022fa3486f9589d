package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/edgelift/gateway/internal/common/configtypes"
	"github.com/edgelift/gateway/internal/common/redis"
)

const defaultWindow = time.Minute

// Limiter enforces a per-client-IP fixed-window request limit backed by Redis,
// so the limit holds across gateway instances sharing one Redis. Redis being
// down fails open: blocking all traffic is worse than briefly not limiting it.
type Limiter struct {
	client   *redis.Client
	keys     *redis.KeyGenerator
	requests int
	window   time.Duration
	logger   *zap.Logger

	now func() time.Time
}

// NewLimiter creates a rate limiter from config. The limiter assumes cfg has
// passed validation; zero/negative values degrade to "no limit" and a default
// window rather than misbehaving.
func NewLimiter(cfg *configtypes.RateLimitConfig, client *redis.Client, logger *zap.Logger) *Limiter {
	window := cfg.Window.ToDuration()
	if window <= 0 {
		window = defaultWindow
	}

	return &Limiter{
		client:   client,
		keys:     redis.NewKeyGenerator(),
		requests: cfg.Requests,
		window:   window,
		logger:   logger,
		now:      time.Now,
	}
}

// Allow reports whether this client may make another request in the current
// window. The first request of a window creates the counter with the window's
// TTL; subsequent requests increment it.
func (l *Limiter) Allow(ctx context.Context, hostID int, clientIP string) bool {
	if l.requests <= 0 {
		return true
	}

	nowUnix := l.now().Unix()
	windowSecs := int64(l.window.Seconds())
	windowStart := nowUnix - nowUnix%windowSecs

	key := l.keys.RateLimitKey(hostID, clientIP, windowStart)

	count, err := l.client.Incr(ctx, key)
	if err != nil {
		l.logger.Warn("Rate limit check failed, allowing request",
			zap.String("client_ip", clientIP),
			zap.Int("host_id", hostID),
			zap.Error(err))
		return true
	}

	if count == 1 {
		// Expire one window past the boundary so a counter never lingers
		if err := l.client.Expire(ctx, key, l.window*2); err != nil {
			l.logger.Warn("Failed to set rate limit key expiry",
				zap.String("key", key),
				zap.Error(err))
		}
	}

	if count > int64(l.requests) {
		l.logger.Debug("Rate limit exceeded",
			zap.String("client_ip", clientIP),
			zap.Int("host_id", hostID),
			zap.Int64("count", count),
			zap.Int("limit", l.requests))
		return false
	}

	return true
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration {
	return l.window
}

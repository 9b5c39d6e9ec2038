// Package ratelimit implements fixed-window admission control keyed by
// client identifier.
package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Decision is the advisory outcome of one admission check.
type Decision struct {
	Allowed bool      `json:"allowed"`
	Current int64     `json:"current"`
	Limit   int64     `json:"limit"`
	ResetAt time.Time `json:"resetAt"`
	// Known is false when the backing store was unreachable and the count
	// is best-effort.
	Known bool `json:"-"`
}

// Counter is the backing store for per-identifier window counters.
// Incr returns the post-increment count along with the remaining window; the
// first increment of a window arms an expiry of exactly window length.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)
}

// Config holds limiter knobs.
type Config struct {
	Max    int64
	Window time.Duration
}

// Limiter counts requests per identifier over a rolling fixed window and
// fails open when the counter store is unreachable.
type Limiter struct {
	counter Counter
	max     int64
	window  time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// New constructs a Limiter. Zero config fields fall back to 100 requests per
// hour.
func New(counter Counter, cfg Config, logger *zap.Logger) *Limiter {
	if cfg.Max <= 0 {
		cfg.Max = 100
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		counter: counter,
		max:     cfg.Max,
		window:  cfg.Window,
		logger:  logger,
		now:     time.Now,
	}
}

// Check increments the identifier's window counter and decides admission.
// Counter-store failure degrades to unlimited: plan generation availability
// outranks strict quota enforcement.
func (l *Limiter) Check(ctx context.Context, identifier string) Decision {
	now := l.now()
	if l.counter == nil {
		return Decision{Allowed: true, Limit: l.max, ResetAt: now.Add(l.window)}
	}

	count, remaining, err := l.counter.Incr(ctx, "rate_limit:"+identifier, l.window)
	if err != nil {
		l.logger.Warn("rate limit store unreachable, allowing request",
			zap.String("identifier", identifier),
			zap.Error(err),
		)
		return Decision{Allowed: true, Limit: l.max, ResetAt: now.Add(l.window)}
	}
	if remaining <= 0 {
		remaining = l.window
	}
	return Decision{
		Allowed: count <= l.max,
		Current: count,
		Limit:   l.max,
		ResetAt: now.Add(remaining),
		Known:   true,
	}
}

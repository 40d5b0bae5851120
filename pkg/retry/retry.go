package retry

import (
	"context"
	"math/rand"
	"time"

	internalerrors "github.com/kvkthecreator/yarnnn/internal/errors"
)

// Config tunes exponential backoff between retry attempts.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultConfig returns the orchestrator's standard retry policy: up to
// 3 attempts, starting at 250ms and doubling up to a 5s ceiling.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
	}
}

// Do calls fn, retrying with exponential backoff (plus jitter) while
// fn returns a transient error, up to cfg.MaxAttempts. Non-transient
// errors (per internal/errors.Retryable) are returned immediately
// without being retried. Do stops early if ctx is cancelled.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	backoff := cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !internalerrors.Retryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := jitter(backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		backoff = time.Duration(float64(backoff) * cfg.Multiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	return lastErr
}

// jitter returns d plus up to 20% random variance, so concurrent
// callers retrying the same failing dependency don't all wake up in
// lockstep.
func jitter(d time.Duration) time.Duration {
	spread := float64(d) * 0.2
	return d + time.Duration(rand.Float64()*spread)
}

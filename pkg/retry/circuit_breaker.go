// Package retry provides the orchestrator's single shared helper for
// calling unreliable external dependencies (platform APIs, LLM
// providers): a named circuit breaker plus exponential backoff, so
// every outbound call goes through the same failure-isolation policy
// instead of each package inventing its own.
package retry

import (
	"time"

	"github.com/sony/gobreaker"
)

// Breaker wraps a named gobreaker circuit breaker with the
// failure-rate trip policy the orchestrator standardizes on: open once
// at least 5 requests have been observed and the failure ratio reaches
// threshold, half-open after resetTimeout.
type Breaker struct {
	name             string
	failureThreshold float64
	resetTimeout     time.Duration
	cb               *gobreaker.CircuitBreaker
}

// NewBreaker constructs a Breaker. threshold is a failure ratio in
// [0,1]; resetTimeout is how long the breaker stays open before
// probing with a single half-open request.
func NewBreaker(name string, threshold float64, resetTimeout time.Duration) *Breaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     resetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= threshold
		},
	}

	return &Breaker{
		name:             name,
		failureThreshold: threshold,
		resetTimeout:     resetTimeout,
		cb:               gobreaker.NewCircuitBreaker(settings),
	}
}

// Name returns the breaker's name.
func (b *Breaker) Name() string {
	return b.name
}

// FailureThreshold returns the configured trip threshold.
func (b *Breaker) FailureThreshold() float64 {
	return b.failureThreshold
}

// ResetTimeout returns the configured open-state duration.
func (b *Breaker) ResetTimeout() time.Duration {
	return b.resetTimeout
}

// State returns the breaker's current state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Call executes fn through the breaker. If the breaker is open, fn is
// not invoked and gobreaker.ErrOpenState is returned.
func (b *Breaker) Call(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// Counts returns the breaker's current request/failure counters,
// mostly useful for tests asserting on failure-rate math.
func (b *Breaker) Counts() gobreaker.Counts {
	return b.cb.Counts()
}

package deliver

import (
	"context"
	"time"
)

// Sender exports sender for fakes.
type Sender = sender

// WithSleep replaces the backoff sleeper.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(a *Agent) { a.sleep = fn }
}

// WithJitter replaces the random source used in backoff.
func WithJitter(fn func() float64) Option {
	return func(a *Agent) { a.jitter = fn }
}

// Backoff exports the backoff formula.
func (a *Agent) Backoff(attempt int) time.Duration {
	return a.backoff(attempt)
}

// Classify exports classify, returning the fault name.
func Classify(err error) (string, time.Duration) {
	f, d := classify(err)
	return f.String(), d
}

// SleepContext exports sleepContext.
var SleepContext = sleepContext

// Package retry wraps rate-limited remote calls with exponential
// backoff. Only failures that look like a rate-limit signal are
// retried; anything else propagates to the caller immediately.
package retry

import (
	"context"
	"errors"
	"strings"
	"time"

	"heating_bridge/internal/clock"
)

// Defaults mirror the vendor API's observed throttling behaviour.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
)

// Notifier receives a human-readable notice before each backoff wait.
// Optional; a nil Notifier is ignored.
type Notifier func(message string)

type config struct {
	maxRetries int
	baseDelay  time.Duration
	notify     Notifier
}

// Option tunes a Do call.
type Option func(*config)

func WithMaxRetries(n int) Option {
	return func(c *config) { c.maxRetries = n }
}

func WithBaseDelay(d time.Duration) Option {
	return func(c *config) { c.baseDelay = d }
}

func WithNotifier(n Notifier) Option {
	return func(c *config) { c.notify = n }
}

// rateLimited is implemented by errors that represent an HTTP 429 or
// an equivalent vendor throttling response.
type rateLimited interface {
	RateLimited() bool
}

// IsRateLimit reports whether err is a throttling signal: a typed
// error exposing RateLimited(), or a message carrying the vendor's
// throttle markers for errors that lost their type through wrapping.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var rl rateLimited
	if errors.As(err, &rl) {
		return rl.RateLimited()
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "TOO_MANY_REQUESTS")
}

// Do invokes op, retrying up to maxRetries additional times when the
// failure is a rate-limit signal. The wait before attempt n (0-based)
// is baseDelay * 2^n, pure exponential with no jitter. Non-rate-limit
// errors and exhaustion propagate as-is.
func Do[T any](ctx context.Context, clk clock.Clock, op func() (T, error), opts ...Option) (T, error) {
	cfg := config{maxRetries: DefaultMaxRetries, baseDelay: DefaultBaseDelay}
	for _, o := range opts {
		o(&cfg)
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		out, err := op()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !IsRateLimit(err) || attempt == cfg.maxRetries {
			return zero, err
		}
		wait := cfg.baseDelay << uint(attempt)
		if cfg.notify != nil {
			cfg.notify("rate limited, waiting " + wait.String() + " before retry")
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-clk.After(wait):
		}
	}
	return zero, lastErr
}

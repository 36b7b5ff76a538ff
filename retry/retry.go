package retry

import (
	"context"
	"net/http"
	"time"

	"github.com/Keksclan/rawrcache/transport"
)

// Config controls the retry behaviour of [Do].
type Config struct {
	// MaxAttempts is the maximum number of times fn is called (including the
	// first attempt). Values ≤ 1 mean no retries.
	MaxAttempts int

	// BaseDelay is the delay before the first retry. Subsequent retries use
	// exponential back-off: BaseDelay * 2^attempt.
	BaseDelay time.Duration

	// MaxDelay caps the computed back-off delay.
	MaxDelay time.Duration

	// Jitter adds randomness to the delay. A value of 0.2 means ±20 % of
	// the computed delay. Zero disables jitter.
	Jitter float64

	// Retryable decides whether an error is worth another attempt. When nil
	// [Transient] is used.
	Retryable func(error) bool
}

// DefaultConfig retries transient failures three times starting at 100 ms.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Jitter:      0.2,
	}
}

// Transient reports whether err is a network failure, a 5xx response or a
// 429. Cancelled requests and decode errors are never transient.
func Transient(err error) bool {
	switch transport.KindOf(err) {
	case transport.KindNetwork:
		return true
	case transport.KindStatus:
		code := transport.StatusCode(err)
		return code >= 500 || code == http.StatusTooManyRequests
	default:
		return false
	}
}

// Do calls fn up to cfg.MaxAttempts times, retrying only while the returned
// error is retryable. Cancellation is never retried. Between attempts an
// exponential back-off delay (with optional jitter) is applied.
//
// The context is checked before every retry; if ctx is done the function
// returns immediately with the context error.
func Do[T any](ctx context.Context, cfg Config, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(cfg.MaxAttempts, 1)
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = Transient
	}

	for i := range attempts {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		// Last attempt: return immediately regardless of kind.
		if i == attempts-1 {
			return zero, err
		}
		if transport.IsCancelled(err) || !retryable(err) {
			return zero, err
		}

		// Wait with back-off, but respect context cancellation.
		delay := backoff(cfg, i)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	// Unreachable, but keeps the compiler happy.
	return zero, nil
}

// Middleware returns a transport middleware that retries failed requests
// according to cfg. Only idempotent methods are retried.
func Middleware(cfg Config) transport.Middleware {
	return func(next transport.Transport) transport.Transport {
		return transport.Func(func(ctx context.Context, req transport.Request) ([]byte, error) {
			if !idempotent(req.Method) {
				return next.Do(ctx, req)
			}
			return Do(ctx, cfg, func(ctx context.Context) ([]byte, error) {
				return next.Do(ctx, req)
			})
		})
	}
}

func idempotent(method string) bool {
	switch method {
	case "", http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

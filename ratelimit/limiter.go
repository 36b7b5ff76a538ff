// Package ratelimit throttles outbound API calls with a token bucket backed
// by golang.org/x/time/rate.
package ratelimit

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/Keksclan/rawrcache/transport"
)

// Limiter wraps a token-bucket limiter shared by every request sent through
// the same transport.
type Limiter struct {
	lim *rate.Limiter
}

// NewLimiter creates a Limiter that permits rps requests per second with the
// given burst size. A burst below one is raised to one.
func NewLimiter(rps float64, burst int) *Limiter {
	burst = max(burst, 1)
	return &Limiter{lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Allow reports whether a single request may proceed right now.
func (l *Limiter) Allow() bool {
	return l.lim.Allow()
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.lim.Wait(ctx)
}

// Middleware returns a transport middleware that waits for a token before
// every request. A wait abandoned through ctx is reported as a cancelled
// transport error; a wait that would exceed the ctx deadline as a network
// error.
func Middleware(l *Limiter) transport.Middleware {
	return func(next transport.Transport) transport.Transport {
		return transport.Func(func(ctx context.Context, req transport.Request) ([]byte, error) {
			if err := l.Wait(ctx); err != nil {
				kind := transport.KindNetwork
				if errors.Is(err, context.Canceled) {
					kind = transport.KindCancelled
				}
				return nil, &transport.Error{Kind: kind, Method: req.Method, URL: req.URL, Err: err}
			}
			return next.Do(ctx, req)
		})
	}
}

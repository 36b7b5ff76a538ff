// Package breaker fails API calls fast while the remote side is known to be
// down.
//
// States:
//   - Closed: calls flow; consecutive failures are counted.
//   - Open: calls are refused with [ErrOpen] until OpenTimeout has passed.
//   - HalfOpen: up to HalfOpenMaxSuccess trial calls are let through; that many
//     successes close the breaker, a single failure reopens it.
//
// Only failures that say something about the remote side count: network
// errors and 5xx responses. Cancelled calls and 4xx responses are ignored.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Keksclan/rawrcache/transport"
)

// ErrOpen is returned by the middleware while the breaker refuses calls.
var ErrOpen = errors.New("breaker: circuit open")

// State represents the current circuit breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds the circuit breaker parameters.
type Config struct {
	// FailureThreshold is the number of consecutive failures in Closed state
	// before the breaker opens.
	FailureThreshold int

	// OpenTimeout is how long the breaker stays Open before probing.
	OpenTimeout time.Duration

	// HalfOpenMaxSuccess is the number of consecutive trial successes needed
	// to close the breaker again.
	HalfOpenMaxSuccess int
}

// DefaultConfig opens after five consecutive failures and starts trial calls after 10s.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:   5,
		OpenTimeout:        10 * time.Second,
		HalfOpenMaxSuccess: 1,
	}
}

// Breaker is a minimal circuit breaker. All methods are safe for concurrent use.
type Breaker struct {
	cfg     Config
	nowFunc func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
}

// New creates a Breaker with the given configuration.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg, nowFunc: time.Now}
}

// State returns the current state, moving Open to HalfOpen once the timeout
// has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.halfOpenIfDueLocked()
	return b.state
}

// Allow reports whether a call may go out now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.halfOpenIfDueLocked()

	switch b.state {
	case Open:
		return false
	case HalfOpen:
		return b.successes < b.cfg.HalfOpenMaxSuccess
	default:
		return true
	}
}

// OnSuccess records a successful call.
func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.halfOpenIfDueLocked()

	switch b.state {
	case Closed:
		b.failures = 0
	case HalfOpen:
		b.successes++
		if b.successes >= b.cfg.HalfOpenMaxSuccess {
			b.state, b.failures, b.successes = Closed, 0, 0
		}
	}
}

// OnFailure records a failed call.
func (b *Breaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.halfOpenIfDueLocked()

	switch b.state {
	case Closed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.openLocked()
		}
	case HalfOpen:
		b.openLocked()
	}
}

// Record classifies err and updates the breaker. Errors that do not reflect
// on the remote side's health are ignored.
func (b *Breaker) Record(err error) {
	switch {
	case err == nil:
		b.OnSuccess()
	case countsAsFailure(err):
		b.OnFailure()
	}
}

func countsAsFailure(err error) bool {
	switch transport.KindOf(err) {
	case transport.KindNetwork:
		return true
	case transport.KindStatus:
		return transport.StatusCode(err) >= 500
	default:
		return false
	}
}

// Middleware returns a transport middleware guarded by b.
func Middleware(b *Breaker) transport.Middleware {
	return func(next transport.Transport) transport.Transport {
		return transport.Func(func(ctx context.Context, req transport.Request) ([]byte, error) {
			if !b.Allow() {
				return nil, &transport.Error{Kind: transport.KindNetwork, Method: req.Method, URL: req.URL, Err: ErrOpen}
			}
			body, err := next.Do(ctx, req)
			b.Record(err)
			return body, err
		})
	}
}

// halfOpenIfDueLocked moves Open to HalfOpen after OpenTimeout. Must be called
// with b.mu held.
func (b *Breaker) halfOpenIfDueLocked() {
	if b.state == Open && b.nowFunc().Sub(b.openedAt) >= b.cfg.OpenTimeout {
		b.state = HalfOpen
		b.successes = 0
	}
}

func (b *Breaker) openLocked() {
	b.state = Open
	b.openedAt = b.nowFunc()
	b.successes = 0
}

// Package coalesce shares one in-flight call between concurrent callers that
// issue the same request.
//
// The first caller for a signature reserves it and dispatches; callers that
// arrive while that call is outstanding wait for its result instead of
// dispatching their own. The reservation is released as soon as the call
// settles, successfully or not, so later non-overlapping requests dispatch
// again.
package coalesce

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrCoalescingCancelled marks a shared call that was abandoned by a
// de-duplication layer rather than failed. Waiters never see it: the registry
// re-dispatches instead.
var ErrCoalescingCancelled = errors.New("coalesce: shared request cancelled")

// maxRedispatch bounds how often a single caller re-dispatches after a
// cancelled shared call.
const maxRedispatch = 1

// Func performs the actual call for a signature.
type Func func(ctx context.Context) (any, error)

// Registry maps request signatures to their in-flight call. The zero value is
// not usable; create one with [New].
type Registry struct {
	group   singleflight.Group
	metrics *Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	calls   map[string]int // signature -> dispatched fns still running
	waiters map[string]int // signature -> callers currently in Run
}

// Option configures a Registry.
type Option func(*Registry)

// WithMetrics records dispatches and shared results on m.
func WithMetrics(m *Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithLogger sets the logger used for coalescing decisions.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{calls: make(map[string]int), waiters: make(map[string]int)}
	for _, o := range opts {
		o(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r
}

// Run returns the result of fn for signature, sharing a single execution of
// fn between all callers that overlap in time.
//
// fn runs with a context that keeps ctx's values but not its cancellation,
// so the caller that happened to dispatch cannot fail the other waiters by
// giving up. A caller whose own ctx is done stops waiting and gets ctx.Err().
//
// If the shared call reports a cancellation ([ErrCoalescingCancelled] or an
// error with a Cancelled() bool method returning true) and this caller's ctx
// is still live, the call is dispatched again rather than surfaced.
func (r *Registry) Run(ctx context.Context, signature string, fn Func) (any, error) {
	for attempt := 0; ; attempt++ {
		out := r.await(ctx, signature, fn)
		if out.err != nil && isCancellation(out.err) && ctx.Err() == nil && attempt < maxRedispatch {
			r.logger.Debug("shared request cancelled, dispatching again", "signature", signature)
			continue
		}
		if out.shared && !out.leader {
			r.metrics.coalesced()
			r.logger.Debug("request coalesced", "signature", signature)
		}
		return out.val, out.err
	}
}

// outcome is what one caller observed from a shared call.
type outcome struct {
	val    any
	err    error
	shared bool // the result went to more than one caller
	leader bool // this caller's fn was the one executed
}

// await joins or starts the call for signature and waits for it or for ctx.
func (r *Registry) await(ctx context.Context, signature string, fn Func) outcome {
	// leader is written by the singleflight goroutine and read only after
	// its result has been received.
	var leader bool
	ch := r.group.DoChan(signature, func() (any, error) {
		leader = true
		r.metrics.dispatch()
		track(r, r.calls, signature)
		defer untrack(r, r.calls, signature)
		return fn(context.WithoutCancel(ctx))
	})
	track(r, r.waiters, signature)
	defer untrack(r, r.waiters, signature)

	select {
	case res := <-ch:
		return outcome{val: res.Val, err: res.Err, shared: res.Shared, leader: leader}
	case <-ctx.Done():
		return outcome{err: ctx.Err()}
	}
}

// InFlight returns the number of signatures whose dispatched call is still
// running. A call keeps counting after every caller has stopped waiting on
// it, until fn itself returns.
func (r *Registry) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// Pending reports whether a dispatched call for signature is still running.
func (r *Registry) Pending(signature string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[signature] > 0
}

func track(r *Registry, m map[string]int, signature string) {
	r.mu.Lock()
	m[signature]++
	r.mu.Unlock()
}

func untrack(r *Registry, m map[string]int, signature string) {
	r.mu.Lock()
	if m[signature] <= 1 {
		delete(m, signature)
	} else {
		m[signature]--
	}
	r.mu.Unlock()
}

// cancellation is implemented by transport errors.
type cancellation interface {
	Cancelled() bool
}

func isCancellation(err error) bool {
	if errors.Is(err, ErrCoalescingCancelled) {
		return true
	}
	var c cancellation
	return errors.As(err, &c) && c.Cancelled()
}

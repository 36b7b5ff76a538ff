// Package core holds wiring helpers shared by the composition root that are
// not part of the public API.
package core

import (
	"cmp"
	"slices"

	"github.com/Keksclan/rawrcache/transport"
)

// Fixed middleware priorities. Lower values wrap the transport further out.
const (
	OrderBreaker   = 100
	OrderRetry     = 200
	OrderRateLimit = 300
	OrderTracing   = 400
)

type middleware struct {
	mw    transport.Middleware
	order int
}

// MiddlewareBuilder collects transport middleware and produces a slice sorted
// by priority, ready for [transport.Wrap].
type MiddlewareBuilder struct {
	entries []middleware
}

// Add registers mw with the given order. A nil mw is ignored.
func (b *MiddlewareBuilder) Add(order int, mw transport.Middleware) {
	if mw == nil {
		return
	}
	b.entries = append(b.entries, middleware{mw: mw, order: order})
}

// Len returns the number of registered middleware.
func (b *MiddlewareBuilder) Len() int { return len(b.entries) }

// Build sorts the collected middleware by order (stable) and returns them
// outermost first.
func (b *MiddlewareBuilder) Build() []transport.Middleware {
	slices.SortStableFunc(b.entries, func(a, c middleware) int {
		return cmp.Compare(a.order, c.order)
	})

	out := make([]transport.Middleware, 0, len(b.entries))
	for _, m := range b.entries {
		out = append(out, m.mw)
	}
	return out
}

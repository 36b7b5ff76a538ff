package invalidate

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Keksclan/rawrcache/cache"
)

var (
	// ErrUnknownStore is returned by New when a rule names a store that was
	// not supplied.
	ErrUnknownStore = errors.New("invalidate: unknown store")

	// ErrUnknownMutation is returned by Apply for a mutation without rule.
	ErrUnknownMutation = errors.New("invalidate: unknown mutation")

	// ErrInvalidTarget is returned by New for a target that does not set
	// exactly one of Prefix, Entity and Tag.
	ErrInvalidTarget = errors.New("invalidate: invalid target")
)

// Invalidator applies a rule table to a set of stores.
type Invalidator struct {
	stores  map[string]*cache.Store
	rules   Rules
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures an Invalidator.
type Option func(*Invalidator)

// WithLogger sets the logger used to report applied mutations.
func WithLogger(l *slog.Logger) Option {
	return func(inv *Invalidator) {
		inv.logger = l
	}
}

// WithMetrics records applied mutations on m.
func WithMetrics(m *Metrics) Option {
	return func(inv *Invalidator) {
		inv.metrics = m
	}
}

// New creates an Invalidator for stores, keyed by domain name. Every store a
// rule refers to must be present. A nil rules table means [DefaultRules].
func New(stores map[string]*cache.Store, rules Rules, opts ...Option) (*Invalidator, error) {
	if rules == nil {
		rules = DefaultRules
	}
	for m, targets := range rules {
		for _, t := range targets {
			if _, ok := stores[t.Store]; !ok {
				return nil, fmt.Errorf("%w %q in rule %s", ErrUnknownStore, t.Store, m)
			}
			if countSet(t.Prefix, t.Entity, t.Tag) != 1 {
				return nil, fmt.Errorf("%w in rule %s: %+v", ErrInvalidTarget, m, t)
			}
		}
	}

	inv := &Invalidator{stores: stores, rules: rules}
	for _, o := range opts {
		o(inv)
	}
	if inv.logger == nil {
		inv.logger = slog.New(slog.DiscardHandler)
	}
	return inv, nil
}

// Apply clears every target of m and returns the number of removed entries.
// Targets matching nothing are no-ops.
func (inv *Invalidator) Apply(m Mutation, p Params) (int, error) {
	targets, ok := inv.rules[m]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMutation, m)
	}

	removed := 0
	for _, t := range targets {
		st := inv.stores[t.Store]
		switch {
		case t.Prefix != "":
			removed += st.Clear(expand(t.Prefix, p))
		case t.Entity != "":
			if st.Delete(t.Entity, p.ID) {
				removed++
			}
			removed += st.InvalidateTag(EntityTag(t.Entity, p.ID))
		case t.Tag != "":
			removed += st.InvalidateTag(expand(t.Tag, p))
		}
	}

	inv.metrics.observe(m, removed)
	inv.logger.Debug("cache invalidated",
		"mutation", string(m),
		"id", p.ID,
		"post_id", p.PostID,
		"removed", removed,
	)
	return removed, nil
}

// After applies m only when writeErr is nil and returns writeErr unchanged
// otherwise, so a failed write leaves the cache untouched.
func (inv *Invalidator) After(writeErr error, m Mutation, p Params) error {
	if writeErr != nil {
		return writeErr
	}
	_, err := inv.Apply(m, p)
	return err
}

// Rules returns the table the invalidator applies.
func (inv *Invalidator) Rules() Rules { return inv.rules }

func countSet(vals ...string) int {
	n := 0
	for _, v := range vals {
		if v != "" {
			n++
		}
	}
	return n
}

// Package policy selects per-endpoint read settings. Groups of URL paths are
// described with exact, prefix and regex rules; the most specific match
// decides which [Policy] a read runs with.
//
//	res := policy.NewResolver(
//		policy.Group("search").Prefix("/recipes/search").Policy(policy.Policy{TTL: 30 * time.Second}),
//		policy.Group("me").Exact("/users/me").Policy(policy.Policy{NoStore: true}),
//	)
package policy

// Resolver holds a set of endpoint groups and resolves a URL path to the
// best-matching group and its associated policy. A nil *Resolver matches
// nothing.
type Resolver struct {
	groups []*GroupBuilder
}

// NewResolver creates a Resolver from the supplied group builders.
func NewResolver(groups ...*GroupBuilder) *Resolver {
	return &Resolver{groups: groups}
}

// Resolve finds the best-matching group for path.
//
// Priority rules:
//   - Exact matches beat prefix matches, which beat regex matches.
//   - Among matches of the same kind the longer match wins.
//   - When two matches have equal kind and length the group that was
//     registered first (stable order) wins.
//
// If no group matches, ok is false.
func (res *Resolver) Resolve(path string) (groupName string, pol *Policy, ok bool) {
	if res == nil {
		return "", nil, false
	}
	bestKind := matchKind(-1)
	bestLen := -1

	for _, g := range res.groups {
		for _, r := range g.rules {
			matched, mLen := r.match(path)
			if !matched {
				continue
			}
			// A lower kind value means higher priority.
			better := bestKind < 0 ||
				r.kind < bestKind ||
				(r.kind == bestKind && mLen > bestLen)
			if better {
				bestKind = r.kind
				bestLen = mLen
				groupName = g.name
				pol = g.policy
				ok = true
			}
		}
	}
	return groupName, pol, ok
}

// Lookup returns the policy for path, or the zero Policy when nothing
// matches or the matched group carries none.
func (res *Resolver) Lookup(path string) Policy {
	_, pol, ok := res.Resolve(path)
	if !ok || pol == nil {
		return Policy{}
	}
	return *pol
}

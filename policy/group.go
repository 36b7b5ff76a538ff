package policy

import (
	"regexp"
	"time"
)

// Policy holds the read settings that apply to a matched endpoint group.
type Policy struct {
	// TTL overrides the store's default lifetime for results of matched
	// reads. Zero keeps the default.
	TTL time.Duration

	// NoStore keeps results of matched reads out of the cache. Concurrent
	// identical reads are still coalesced.
	NoStore bool

	// Timeout bounds each dispatched call. Zero means no extra deadline.
	Timeout time.Duration
}

// matchKind distinguishes the three matching strategies.
type matchKind int

const (
	kindExact  matchKind = iota // highest priority
	kindPrefix                  // medium priority
	kindRegex                   // lowest priority
)

// rule is a single matching rule inside a group.
type rule struct {
	kind    matchKind
	pattern string         // used for exact and prefix matches
	re      *regexp.Regexp // used for regex matches
}

// GroupBuilder constructs an endpoint group with one or more matching rules
// and a policy. Rules match the request URL path, e.g. "/recipes/search".
type GroupBuilder struct {
	name   string
	rules  []rule
	policy *Policy
}

// Group starts building a new endpoint group with the given name.
func Group(name string) *GroupBuilder {
	return &GroupBuilder{name: name}
}

// Exact adds an exact-match rule for pattern.
func (g *GroupBuilder) Exact(pattern string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindExact, pattern: pattern})
	return g
}

// Prefix adds a prefix-match rule for pattern.
func (g *GroupBuilder) Prefix(pattern string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindPrefix, pattern: pattern})
	return g
}

// Regex adds a regex-match rule for pattern.
// The pattern is compiled immediately; an invalid regex will panic.
func (g *GroupBuilder) Regex(pattern string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindRegex, pattern: pattern, re: regexp.MustCompile(pattern)})
	return g
}

// Policy attaches a Policy to the group and returns the finished builder.
func (g *GroupBuilder) Policy(p Policy) *GroupBuilder {
	g.policy = &p
	return g
}

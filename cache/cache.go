// Package cache provides the in-memory, TTL based key/value stores that back
// every data service, together with the key codec and the periodic sweeper
// that bounds memory for entries nobody reads again.
package cache

import "time"

// Well-known store domains. Each domain gets its own [Store] with its own
// default TTL.
const (
	Users    = "users"
	Recipes  = "recipes"
	Posts    = "posts"
	Comments = "comments"
)

// fallbackTTL is used when a store is constructed without a positive default.
const fallbackTTL = time.Minute

// DefaultTTLs are the default entry lifetimes per domain. Posts and comments
// change more often than users and recipes and therefore expire sooner.
var DefaultTTLs = map[string]time.Duration{
	Users:    5 * time.Minute,
	Recipes:  10 * time.Minute,
	Posts:    2 * time.Minute,
	Comments: 2 * time.Minute,
}

// Domains returns the well-known domain names in a stable order.
func Domains() []string {
	return []string{Users, Recipes, Posts, Comments}
}

package cache

import "time"

// Entry is a stored value together with its lifetime.
type Entry struct {
	Value     any
	CreatedAt time.Time
	ExpiresAt time.Time

	// Tags lists the logical tags the entry was registered under.
	Tags []string
}

// Live reports whether the entry is still valid at now. Liveness is computed
// on every call and never stored.
func (e *Entry) Live(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

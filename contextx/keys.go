// Package contextx carries per-call values through a context: the request
// id attached to outbound API calls and the cache bypass flag honoured by the
// data services.
package contextx

// contextKey is an unexported type used as context key to avoid collisions
// with keys defined in other packages.
type contextKey int

const (
	requestIDKey contextKey = iota
	bypassKey
)

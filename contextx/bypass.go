package contextx

import "context"

// WithCacheBypass marks ctx so that reads skip the cache lookup and go to the
// network. The fresh result is still stored.
func WithCacheBypass(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassKey, true)
}

// CacheBypass reports whether ctx was marked with [WithCacheBypass].
func CacheBypass(ctx context.Context) bool {
	b, _ := ctx.Value(bypassKey).(bool)
	return b
}

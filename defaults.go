package rawrcache

import (
	"maps"
	"time"

	"github.com/Keksclan/rawrcache/breaker"
	"github.com/Keksclan/rawrcache/cache"
	"github.com/Keksclan/rawrcache/retry"
)

const defaultSweepInterval = cache.DefaultSweepInterval

func defaultTTLs() map[string]time.Duration {
	return maps.Clone(cache.DefaultTTLs)
}

// DefaultOptions returns the recommended set of options for talking to a
// production API: retries with backoff for idempotent reads and a circuit
// breaker in front of them.
func DefaultOptions() []Option {
	return []Option{
		WithRetry(retry.DefaultConfig()),
		WithCircuitBreaker(breaker.DefaultConfig()),
	}
}

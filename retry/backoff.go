// Package retry re-issues failed API calls with exponential backoff and
// jitter. Cancelled calls are never retried.
package retry

import (
	"math/rand/v2"
	"time"
)

// backoff returns the delay before retry number attempt (0-indexed):
// BaseDelay doubled per attempt, capped at MaxDelay, then spread by ±Jitter.
func backoff(cfg Config, attempt int) time.Duration {
	delay := cfg.BaseDelay << attempt
	if delay <= 0 || (cfg.MaxDelay > 0 && delay > cfg.MaxDelay) {
		// A shift overflow also lands here.
		delay = cfg.MaxDelay
	}
	if cfg.Jitter > 0 {
		spread := float64(delay) * cfg.Jitter * (rand.Float64()*2 - 1)
		delay += time.Duration(spread)
	}
	return max(delay, 0)
}

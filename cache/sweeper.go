package cache

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often a Sweeper scans its stores when no
// interval is configured.
const DefaultSweepInterval = time.Minute

// Sweeper periodically removes expired entries from a set of stores. Entries
// that are written but never read again are otherwise kept until their key
// is overwritten or cleared.
type Sweeper struct {
	interval time.Duration
	stores   []*Store
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper over stores. A non-positive interval means
// [DefaultSweepInterval]; a nil logger discards output.
func NewSweeper(interval time.Duration, logger *slog.Logger, stores ...*Store) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sweeper{
		interval: interval,
		stores:   stores,
		logger:   logger,
	}
}

// Interval returns the configured sweep period.
func (s *Sweeper) Interval() time.Duration { return s.interval }

// Sweep runs one pass over all stores and returns the total number of
// removed entries.
func (s *Sweeper) Sweep() int {
	total := 0
	for _, st := range s.stores {
		n := st.ClearExpired()
		if n > 0 {
			s.logger.Debug("expired entries swept", "store", st.Name(), "removed", n)
		}
		total += n
	}
	return total
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

package cache

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Removal reasons reported on the removals counter.
const (
	reasonExpired = "expired"
	reasonSweep   = "sweep"
	reasonDelete  = "delete"
	reasonClear   = "clear"
	reasonTag     = "tag"
)

// Metrics holds the Prometheus collectors shared by all stores. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	hits     *prometheus.CounterVec
	misses   *prometheus.CounterVec
	sets     *prometheus.CounterVec
	removals *prometheus.CounterVec
	entries  *prometheus.GaugeVec
}

// NewMetrics creates the cache collectors and registers them on reg. When a
// collector with the same descriptor is already registered the existing one
// is reused, so several clients may share one registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rawrcache",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Reads answered from a live cache entry.",
		}, []string{"store"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rawrcache",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Reads that found no live entry.",
		}, []string{"store"}),
		sets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rawrcache",
			Subsystem: "cache",
			Name:      "sets_total",
			Help:      "Entries written.",
		}, []string{"store"}),
		removals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rawrcache",
			Subsystem: "cache",
			Name:      "removals_total",
			Help:      "Entries removed, by reason.",
		}, []string{"store", "reason"}),
		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rawrcache",
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Entries currently held, live or not yet swept.",
		}, []string{"store"}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.hits, err = register(reg, m.hits); err != nil {
		return nil, err
	}
	if m.misses, err = register(reg, m.misses); err != nil {
		return nil, err
	}
	if m.sets, err = register(reg, m.sets); err != nil {
		return nil, err
	}
	if m.removals, err = register(reg, m.removals); err != nil {
		return nil, err
	}
	if m.entries, err = register(reg, m.entries); err != nil {
		return nil, err
	}
	return m, nil
}

// register registers c on reg, returning the already registered collector
// when one exists.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) hit(store string) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(store).Inc()
}

func (m *Metrics) miss(store string) {
	if m == nil {
		return
	}
	m.misses.WithLabelValues(store).Inc()
}

func (m *Metrics) set(store string) {
	if m == nil {
		return
	}
	m.sets.WithLabelValues(store).Inc()
}

func (m *Metrics) removed(store, reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.removals.WithLabelValues(store, reason).Add(float64(n))
}

func (m *Metrics) size(store string, n int) {
	if m == nil {
		return
	}
	m.entries.WithLabelValues(store).Set(float64(n))
}

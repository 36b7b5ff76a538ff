package invalidate

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts applied mutations and the entries they removed. A nil
// *Metrics records nothing.
type Metrics struct {
	applied *prometheus.CounterVec
	removed *prometheus.CounterVec
}

// NewMetrics creates the invalidation collectors and registers them on reg,
// reusing collectors that are already registered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	applied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rawrcache",
		Subsystem: "invalidate",
		Name:      "mutations_total",
		Help:      "Mutations applied to the cache.",
	}, []string{"mutation"})
	removed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rawrcache",
		Subsystem: "invalidate",
		Name:      "removed_total",
		Help:      "Entries removed by applied mutations.",
	}, []string{"mutation"})

	if reg != nil {
		var err error
		if applied, err = register(reg, applied); err != nil {
			return nil, err
		}
		if removed, err = register(reg, removed); err != nil {
			return nil, err
		}
	}
	return &Metrics{applied: applied, removed: removed}, nil
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

func (m *Metrics) observe(mu Mutation, n int) {
	if m == nil {
		return
	}
	m.applied.WithLabelValues(string(mu)).Inc()
	m.removed.WithLabelValues(string(mu)).Add(float64(n))
}

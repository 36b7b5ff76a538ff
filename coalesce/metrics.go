package coalesce

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts dispatched calls and callers served from a shared call. A
// nil *Metrics records nothing.
type Metrics struct {
	dispatched prometheus.Counter
	shared     prometheus.Counter
}

// NewMetrics creates the coalescing collectors and registers them on reg,
// reusing collectors that are already registered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rawrcache",
			Subsystem: "coalesce",
			Name:      "dispatched_total",
			Help:      "Calls actually sent to the transport.",
		}),
		shared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rawrcache",
			Subsystem: "coalesce",
			Name:      "shared_total",
			Help:      "Callers answered with the result of another caller's in-flight call.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []*prometheus.Counter{&m.dispatched, &m.shared} {
		if err := reg.Register(*c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
			existing, ok := are.ExistingCollector.(prometheus.Counter)
			if !ok {
				return nil, err
			}
			*c = existing
		}
	}
	return m, nil
}

func (m *Metrics) dispatch() {
	if m == nil {
		return
	}
	m.dispatched.Inc()
}

func (m *Metrics) coalesced() {
	if m == nil {
		return
	}
	m.shared.Inc()
}

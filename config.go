package rawrcache

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Keksclan/rawrcache/breaker"
	"github.com/Keksclan/rawrcache/invalidate"
	"github.com/Keksclan/rawrcache/policy"
	"github.com/Keksclan/rawrcache/retry"
	"github.com/Keksclan/rawrcache/tracing"
)

// config holds the internal configuration assembled via functional options.
type config struct {
	ttls          map[string]time.Duration
	sweepInterval time.Duration
	logger        *slog.Logger
	registry      *prometheus.Registry
	rules         invalidate.Rules
	policies      *policy.Resolver
	clock         func() time.Time

	tracing *tracing.Config
	retry   *retry.Config
	breaker *breaker.Config

	rateLimitRPS   float64
	rateLimitBurst int
}

func newConfig() *config {
	return &config{
		ttls:          defaultTTLs(),
		sweepInterval: defaultSweepInterval,
	}
}

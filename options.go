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

// Option configures a Client.
type Option func(*config)

// WithTTL overrides the default entry lifetime of one domain store.
func WithTTL(domain string, ttl time.Duration) Option {
	return func(c *config) {
		c.ttls[domain] = ttl
	}
}

// WithSweepInterval sets how often expired entries are removed from all
// stores once the client is started. A non-positive interval disables the
// sweeper.
func WithSweepInterval(d time.Duration) Option {
	return func(c *config) {
		c.sweepInterval = d
	}
}

// WithLogger sets the structured logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithMetrics registers the client's collectors on reg instead of a private
// registry. [Client.MetricsHandler] serves reg.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) {
		c.registry = reg
	}
}

// WithRules replaces the invalidation rule table.
func WithRules(rules invalidate.Rules) Option {
	return func(c *config) {
		c.rules = rules
	}
}

// WithPolicies sets per-endpoint read policies. Groups match the request
// URL path; the most specific match wins (see [policy.Resolver]).
func WithPolicies(groups ...*policy.GroupBuilder) Option {
	return func(c *config) {
		c.policies = policy.NewResolver(groups...)
	}
}

// WithClock replaces time.Now in every store.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.clock = now
	}
}

// WithTracing starts a client span for every API call.
func WithTracing(cfg tracing.Config) Option {
	return func(c *config) {
		c.tracing = &cfg
	}
}

// WithRetry retries transient failures of idempotent API calls.
func WithRetry(cfg retry.Config) Option {
	return func(c *config) {
		c.retry = &cfg
	}
}

// WithCircuitBreaker stops calling the API after repeated failures until it
// recovers.
func WithCircuitBreaker(cfg breaker.Config) Option {
	return func(c *config) {
		c.breaker = &cfg
	}
}

// WithRateLimit caps outbound API calls at rps with bursts of up to burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *config) {
		c.rateLimitRPS = rps
		c.rateLimitBurst = burst
	}
}

// Package rawrcache is the composition root of the client-side data cache.
// [New] builds one TTL store per data domain, the request-coalescing
// registry, the invalidation rule table and the data services on top of a
// caller supplied [transport.Transport]:
//
//	c, err := rawrcache.New(transport.NewHTTPClient("https://api.example.com"),
//		rawrcache.WithTTL(cache.Posts, time.Minute),
//		rawrcache.WithRateLimit(20, 5),
//	)
//	if err != nil {
//		return err
//	}
//	c.Start(ctx)
//	defer c.Close()
//
//	post, err := c.Posts().GetByID(ctx, 9)
//
// Optional outbound middleware is installed in a fixed order, outermost
// first: circuit breaker, retry, rate limit, tracing. The order does not
// depend on the order options are passed in.
package rawrcache

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Keksclan/rawrcache/breaker"
	"github.com/Keksclan/rawrcache/cache"
	"github.com/Keksclan/rawrcache/coalesce"
	"github.com/Keksclan/rawrcache/internal/core"
	"github.com/Keksclan/rawrcache/invalidate"
	"github.com/Keksclan/rawrcache/ratelimit"
	"github.com/Keksclan/rawrcache/retry"
	"github.com/Keksclan/rawrcache/service"
	"github.com/Keksclan/rawrcache/tracing"
	"github.com/Keksclan/rawrcache/transport"
)

// Client owns the stores, the registry and the services built over them.
type Client struct {
	stores      map[string]*cache.Store
	registry    *coalesce.Registry
	invalidator *invalidate.Invalidator
	sweeper     *cache.Sweeper
	services    *service.Services
	transport   transport.Transport
	breaker     *breaker.Breaker
	metrics     *prometheus.Registry
	logger      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Client that issues API calls through t.
func New(t transport.Transport, opts ...Option) (*Client, error) {
	if t == nil {
		return nil, fmt.Errorf("rawrcache: nil transport")
	}
	cfg := newConfig()
	for _, o := range opts {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.registry == nil {
		cfg.registry = prometheus.NewRegistry()
	}

	cacheMetrics, err := cache.NewMetrics(cfg.registry)
	if err != nil {
		return nil, fmt.Errorf("rawrcache: cache metrics: %w", err)
	}
	coalesceMetrics, err := coalesce.NewMetrics(cfg.registry)
	if err != nil {
		return nil, fmt.Errorf("rawrcache: coalesce metrics: %w", err)
	}
	invalidateMetrics, err := invalidate.NewMetrics(cfg.registry)
	if err != nil {
		return nil, fmt.Errorf("rawrcache: invalidate metrics: %w", err)
	}

	c := &Client{
		stores:  make(map[string]*cache.Store, len(cache.Domains())),
		metrics: cfg.registry,
		logger:  cfg.logger,
	}

	storeOpts := []cache.StoreOption{
		cache.WithMetrics(cacheMetrics),
		cache.WithLogger(cfg.logger),
	}
	if cfg.clock != nil {
		storeOpts = append(storeOpts, cache.WithClock(cfg.clock))
	}
	all := make([]*cache.Store, 0, len(cache.Domains()))
	for _, d := range cache.Domains() {
		st := cache.NewStore(d, cfg.ttls[d], storeOpts...)
		c.stores[d] = st
		all = append(all, st)
	}

	c.invalidator, err = invalidate.New(c.stores, cfg.rules,
		invalidate.WithLogger(cfg.logger),
		invalidate.WithMetrics(invalidateMetrics),
	)
	if err != nil {
		return nil, err
	}
	c.registry = coalesce.New(
		coalesce.WithLogger(cfg.logger),
		coalesce.WithMetrics(coalesceMetrics),
	)
	if cfg.sweepInterval > 0 {
		c.sweeper = cache.NewSweeper(cfg.sweepInterval, cfg.logger, all...)
	}

	c.transport = c.buildTransport(t, cfg)

	c.services, err = service.New(c.stores, service.Deps{
		Transport:   c.transport,
		Registry:    c.registry,
		Invalidator: c.invalidator,
		Logger:      cfg.logger,
		Policies:    cfg.policies,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// buildTransport installs the configured middleware around t in priority
// order.
func (c *Client) buildTransport(t transport.Transport, cfg *config) transport.Transport {
	var b core.MiddlewareBuilder
	if cfg.tracing != nil {
		b.Add(core.OrderTracing, tracing.Middleware(cfg.tracing))
	}
	if cfg.rateLimitRPS > 0 {
		b.Add(core.OrderRateLimit, ratelimit.Middleware(ratelimit.NewLimiter(cfg.rateLimitRPS, cfg.rateLimitBurst)))
	}
	if cfg.retry != nil {
		b.Add(core.OrderRetry, retry.Middleware(*cfg.retry))
	}
	if cfg.breaker != nil {
		c.breaker = breaker.New(*cfg.breaker)
		b.Add(core.OrderBreaker, breaker.Middleware(c.breaker))
	}
	return transport.Wrap(t, b.Build()...)
}

// Start launches the background sweeper. It stops when ctx is done or Close
// is called. Calling Start on a running client is a no-op.
func (c *Client) Start(ctx context.Context) {
	if c.sweeper == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		c.sweeper.Run(ctx)
	}(c.done)
	c.logger.Info("cache sweeper started", "interval", c.sweeper.Interval().String())
}

// Close stops the sweeper and waits for it to exit.
func (c *Client) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Store returns the store of domain, or nil for an unknown domain.
func (c *Client) Store(domain string) *cache.Store { return c.stores[domain] }

// Registry returns the request-coalescing registry.
func (c *Client) Registry() *coalesce.Registry { return c.registry }

// Invalidator returns the invalidator applying the rule table.
func (c *Client) Invalidator() *invalidate.Invalidator { return c.invalidator }

// Transport returns the transport with all configured middleware applied.
func (c *Client) Transport() transport.Transport { return c.transport }

// Breaker returns the circuit breaker, or nil when none is configured.
func (c *Client) Breaker() *breaker.Breaker { return c.breaker }

// Users returns the users service.
func (c *Client) Users() *service.Users { return c.services.Users }

// Recipes returns the recipes service.
func (c *Client) Recipes() *service.Recipes { return c.services.Recipes }

// Posts returns the posts service.
func (c *Client) Posts() *service.Posts { return c.services.Posts }

// Comments returns the comments service.
func (c *Client) Comments() *service.Comments { return c.services.Comments }

// Sweep removes expired entries from every store immediately.
func (c *Client) Sweep() int {
	n := 0
	for _, st := range c.stores {
		n += st.ClearExpired()
	}
	return n
}

// Clear empties every store.
func (c *Client) Clear() {
	for _, st := range c.stores {
		st.Clear("")
	}
}

// MetricsHandler returns an http.Handler that serves the client's Prometheus
// metrics.
func (c *Client) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(c.metrics, promhttp.HandlerOpts{Registry: c.metrics})
}

package rawrcache

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Keksclan/rawrcache/breaker"
	"github.com/Keksclan/rawrcache/cache"
	"github.com/Keksclan/rawrcache/invalidate"
	"github.com/Keksclan/rawrcache/policy"
	"github.com/Keksclan/rawrcache/retry"
	"github.com/Keksclan/rawrcache/service"
	"github.com/Keksclan/rawrcache/transport"
)

func postTransport(calls *atomic.Int32) transport.Transport {
	return transport.Func(func(_ context.Context, req transport.Request) ([]byte, error) {
		calls.Add(1)
		return json.Marshal(service.Post{ID: 9, Title: "nine"})
	})
}

func TestNewRejectsNilTransport(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil transport")
	}
}

func TestNewBuildsStoresWithTTLs(t *testing.T) {
	var calls atomic.Int32
	c, err := New(postTransport(&calls), WithTTL(cache.Posts, 30*time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, d := range cache.Domains() {
		if c.Store(d) == nil {
			t.Fatalf("missing %s store", d)
		}
	}
	if got := c.Store(cache.Posts).DefaultTTL(); got != 30*time.Second {
		t.Fatalf("posts TTL = %v, want 30s", got)
	}
	if got := c.Store(cache.Recipes).DefaultTTL(); got != 10*time.Minute {
		t.Fatalf("recipes TTL = %v, want 10m", got)
	}
	if c.Store("nope") != nil {
		t.Fatal("unknown domain returned a store")
	}
	if c.Breaker() != nil {
		t.Fatal("breaker configured without option")
	}
}

func TestClientsDoNotShareStores(t *testing.T) {
	var calls atomic.Int32
	a, err := New(postTransport(&calls))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := New(postTransport(&calls))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	a.Store(cache.Users).Set("user", "ada", 0, 1)
	if b.Store(cache.Users).Has("user", 1) {
		t.Fatal("entry leaked between clients")
	}
}

func TestReadThroughServices(t *testing.T) {
	var calls atomic.Int32
	c, err := New(postTransport(&calls))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for range 3 {
		p, err := c.Posts().GetByID(t.Context(), 9)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if p.Title != "nine" {
			t.Fatalf("got %+v", p)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("transport called %d times, want 1", calls.Load())
	}

	if _, err := c.Invalidator().Apply(invalidate.UpdatePost, invalidate.Params{ID: 9}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if c.Store(cache.Posts).Has("post", 9) {
		t.Fatal("post 9 still cached after invalidation")
	}
}

func TestSweeperRemovesExpiredEntries(t *testing.T) {
	var mu sync.Mutex
	now := time.Unix(1_000, 0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	var calls atomic.Int32
	c, err := New(postTransport(&calls), WithClock(clock), WithSweepInterval(5*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	st := c.Store(cache.Comments)
	st.Set("comments:post:1", "page", time.Second, 1, 20)

	c.Start(t.Context())
	defer c.Close()

	mu.Lock()
	now = now.Add(2 * time.Second)
	mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	for st.Size() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweeper never removed the expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStartCloseIdempotent(t *testing.T) {
	var calls atomic.Int32
	c, err := New(postTransport(&calls))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Start(t.Context())
	c.Start(t.Context())
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestBreakerWrapsRetry(t *testing.T) {
	var calls atomic.Int32
	failing := transport.Func(func(_ context.Context, req transport.Request) ([]byte, error) {
		calls.Add(1)
		return nil, &transport.Error{Kind: transport.KindStatus, Method: req.Method, URL: req.URL, Status: http.StatusBadGateway}
	})

	c, err := New(failing,
		WithRetry(retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}),
		WithCircuitBreaker(breaker.Config{FailureThreshold: 1, OpenTimeout: time.Hour, HalfOpenMaxSuccess: 1}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := c.Posts().GetByID(t.Context(), 1); transport.StatusCode(err) != http.StatusBadGateway {
		t.Fatalf("expected 502, got %v", err)
	}
	// Retries happen inside the breaker: one logical failure, three attempts.
	if calls.Load() != 3 {
		t.Fatalf("transport called %d times, want 3", calls.Load())
	}
	if c.Breaker().State() != breaker.Open {
		t.Fatalf("breaker state = %v, want open", c.Breaker().State())
	}

	_, err = c.Posts().GetByID(t.Context(), 1)
	if !errors.Is(err, breaker.ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("open breaker let a call through")
	}
}

func TestMetricsHandler(t *testing.T) {
	var calls atomic.Int32
	reg := prometheus.NewRegistry()
	c, err := New(postTransport(&calls), WithMetrics(reg))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Posts().GetByID(t.Context(), 9); err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if _, err := c.Posts().GetByID(t.Context(), 9); err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	srv := httptest.NewServer(c.MetricsHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`rawrcache_cache_hits_total{store="posts"} 1`,
		`rawrcache_cache_misses_total{store="posts"} 1`,
		`rawrcache_coalesce_dispatched_total 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}

	// A second client on the same registry reuses the collectors.
	if _, err := New(postTransport(&calls), WithMetrics(reg)); err != nil {
		t.Fatalf("second New on shared registry: %v", err)
	}
}

func TestWithRulesUnknownStore(t *testing.T) {
	var calls atomic.Int32
	rules := invalidate.Rules{
		invalidate.CreatePost: {{Store: "archive", Prefix: "posts:"}},
	}
	if _, err := New(postTransport(&calls), WithRules(rules)); !errors.Is(err, invalidate.ErrUnknownStore) {
		t.Fatalf("expected ErrUnknownStore, got %v", err)
	}
}

func TestWithPolicies(t *testing.T) {
	var calls atomic.Int32
	c, err := New(postTransport(&calls),
		WithPolicies(policy.Group("live").Exact("/posts/9").Policy(policy.Policy{NoStore: true})),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for range 2 {
		if _, err := c.Posts().GetByID(t.Context(), 9); err != nil {
			t.Fatalf("GetByID: %v", err)
		}
	}
	if calls.Load() != 2 {
		t.Fatalf("transport called %d times, want 2", calls.Load())
	}
}

package retry

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Keksclan/rawrcache/transport"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
	}
}

func statusErr(code int) error {
	return &transport.Error{Kind: transport.KindStatus, Method: "GET", URL: "/x", Status: code}
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	result, err := Do(t.Context(), fastConfig(4), func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &transport.Error{Kind: transport.KindNetwork, Method: "GET", URL: "/x"}
		}
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Fatalf("expected %q, got %q", "ok", result)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDo_StopsOnClientError(t *testing.T) {
	calls := 0
	_, err := Do(t.Context(), fastConfig(5), func(_ context.Context) (string, error) {
		calls++
		return "", statusErr(http.StatusBadRequest)
	})

	if transport.StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call (no retries), got %d", calls)
	}
}

func TestDo_NeverRetriesCancelled(t *testing.T) {
	calls := 0
	cfg := fastConfig(5)
	cfg.Retryable = func(error) bool { return true }

	_, err := Do(t.Context(), cfg, func(_ context.Context) (int, error) {
		calls++
		return 0, &transport.Error{Kind: transport.KindCancelled, Method: "GET", URL: "/x"}
	})

	if !transport.IsCancelled(err) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("cancelled call retried: %d calls", calls)
	}
}

func TestDo_RespectsContextDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	cfg := Config{
		MaxAttempts: 100,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    100 * time.Millisecond,
	}

	_, err := Do(ctx, cfg, func(_ context.Context) (int, error) {
		return 0, statusErr(http.StatusServiceUnavailable)
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestDo_MaxAttemptsExhausted(t *testing.T) {
	calls := 0
	_, err := Do(t.Context(), fastConfig(3), func(_ context.Context) (string, error) {
		calls++
		return "", statusErr(http.StatusBadGateway)
	})

	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&transport.Error{Kind: transport.KindNetwork}, true},
		{statusErr(500), true},
		{statusErr(429), true},
		{statusErr(404), false},
		{&transport.Error{Kind: transport.KindDecode}, false},
		{&transport.Error{Kind: transport.KindCancelled}, false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := Transient(tt.err); got != tt.want {
			t.Errorf("Transient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestMiddleware_SkipsNonIdempotent(t *testing.T) {
	var calls atomic.Int32
	base := transport.Func(func(context.Context, transport.Request) ([]byte, error) {
		calls.Add(1)
		return nil, statusErr(http.StatusServiceUnavailable)
	})
	tr := transport.Wrap(base, Middleware(fastConfig(3)))

	_, _ = tr.Do(t.Context(), transport.Request{Method: http.MethodPost, URL: "/posts"})
	if n := calls.Load(); n != 1 {
		t.Fatalf("POST attempted %d times, want 1", n)
	}

	calls.Store(0)
	_, _ = tr.Do(t.Context(), transport.Get("/posts", nil))
	if n := calls.Load(); n != 3 {
		t.Fatalf("GET attempted %d times, want 3", n)
	}
}

func TestBackoff_ExponentialWithCap(t *testing.T) {
	cfg := Config{
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  500 * time.Millisecond,
	}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		500 * time.Millisecond, // capped
	}
	for i, w := range want {
		if got := backoff(cfg, i); got != w {
			t.Fatalf("attempt %d: expected %v, got %v", i, w, got)
		}
	}
}

func TestBackoff_JitterBounds(t *testing.T) {
	cfg := Config{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Jitter: 0.2}
	for range 50 {
		d := backoff(cfg, 0)
		if d < 80*time.Millisecond || d > 120*time.Millisecond {
			t.Fatalf("jittered delay %v outside ±20%%", d)
		}
	}
}

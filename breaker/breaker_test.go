package breaker

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Keksclan/rawrcache/transport"
)

func newTestBreaker(cfg Config) (*Breaker, *time.Time) {
	b := New(cfg)
	now := time.Now()
	b.nowFunc = func() time.Time { return now }
	return b, &now
}

func TestClosedToOpen(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, OpenTimeout: 5 * time.Second, HalfOpenMaxSuccess: 1})

	b.OnFailure()
	b.OnFailure()
	if s := b.State(); s != Closed {
		t.Fatalf("expected closed after 2 failures, got %s", s)
	}

	b.OnFailure()
	if s := b.State(); s != Open {
		t.Fatalf("expected open after 3 failures, got %s", s)
	}
	if b.Allow() {
		t.Fatal("expected Allow()=false while open")
	}
}

func TestOpenToHalfOpenToClosed(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 1, OpenTimeout: 5 * time.Second, HalfOpenMaxSuccess: 2})

	b.OnFailure()
	*now = now.Add(6 * time.Second)

	if s := b.State(); s != HalfOpen {
		t.Fatalf("expected half-open after timeout, got %s", s)
	}
	b.OnSuccess()
	if s := b.State(); s != HalfOpen {
		t.Fatalf("expected half-open after 1 success, got %s", s)
	}
	b.OnSuccess()
	if s := b.State(); s != Closed {
		t.Fatalf("expected closed after 2 successes, got %s", s)
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 1, OpenTimeout: 5 * time.Second, HalfOpenMaxSuccess: 3})

	b.OnFailure()
	*now = now.Add(6 * time.Second)
	b.OnFailure()

	if s := b.State(); s != Open {
		t.Fatalf("expected open after half-open failure, got %s", s)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, OpenTimeout: 5 * time.Second, HalfOpenMaxSuccess: 1})

	b.OnFailure()
	b.OnFailure()
	b.OnSuccess()
	b.OnFailure()
	b.OnFailure()
	if s := b.State(); s != Closed {
		t.Fatalf("expected closed, got %s", s)
	}
}

func TestRecordIgnoresClientSideErrors(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 1, OpenTimeout: time.Minute, HalfOpenMaxSuccess: 1})

	b.Record(&transport.Error{Kind: transport.KindCancelled})
	b.Record(&transport.Error{Kind: transport.KindStatus, Status: http.StatusNotFound})
	b.Record(errors.New("plain"))
	if s := b.State(); s != Closed {
		t.Fatalf("non-remote failures opened the breaker: %s", s)
	}

	b.Record(&transport.Error{Kind: transport.KindStatus, Status: http.StatusBadGateway})
	if s := b.State(); s != Open {
		t.Fatalf("502 did not open the breaker: %s", s)
	}
}

func TestMiddlewareFailsFastWhenOpen(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 2, OpenTimeout: time.Minute, HalfOpenMaxSuccess: 1})

	var calls atomic.Int32
	base := transport.Func(func(context.Context, transport.Request) ([]byte, error) {
		calls.Add(1)
		return nil, &transport.Error{Kind: transport.KindNetwork, Method: "GET", URL: "/x"}
	})
	tr := transport.Wrap(base, Middleware(b))

	for range 2 {
		_, _ = tr.Do(t.Context(), transport.Get("/x", nil))
	}
	_, err := tr.Do(t.Context(), transport.Get("/x", nil))
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("transport called %d times, want 2", n)
	}
}

func TestSuccessAfterTimeoutClosesHalfOpen(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 1, OpenTimeout: 5 * time.Second, HalfOpenMaxSuccess: 1})

	b.OnFailure()
	*now = now.Add(6 * time.Second)
	b.OnSuccess()

	if s := b.State(); s != Closed {
		t.Fatalf("expected closed after trial success, got %s", s)
	}
}

package cache

import (
	"context"
	"testing"
	"time"
)

func TestSweeper_SweepAcrossStores(t *testing.T) {
	clk := newFakeClock()
	users := NewStore(Users, 5*time.Minute, WithClock(clk.Now))
	posts := NewStore(Posts, 2*time.Minute, WithClock(clk.Now))

	users.Set("user", "alice", 0, 1)
	posts.Set("post", "hello", 0, 1)
	posts.Set("posts", "page", 0, 1, 10)

	sw := NewSweeper(0, nil, users, posts)
	if sw.Interval() != DefaultSweepInterval {
		t.Fatalf("interval = %v, want %v", sw.Interval(), DefaultSweepInterval)
	}

	clk.Advance(3 * time.Minute)
	if n := sw.Sweep(); n != 2 {
		t.Fatalf("Sweep removed %d, want 2", n)
	}
	if users.Size() != 1 || posts.Size() != 0 {
		t.Fatalf("sizes after sweep: users=%d posts=%d", users.Size(), posts.Size())
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	s := NewStore("run", 10*time.Millisecond)
	s.Set("k", "v", time.Millisecond)

	sw := NewSweeper(5*time.Millisecond, nil, s)
	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for s.Size() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweeper never removed the expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

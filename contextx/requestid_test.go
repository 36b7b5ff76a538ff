package contextx

import "testing"

func TestWithRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(t.Context(), "req-abc-123")
	got := RequestIDFromContext(ctx)
	if got != "req-abc-123" {
		t.Fatalf("got %q, want %q", got, "req-abc-123")
	}
}

func TestRequestIDFromContextMissing(t *testing.T) {
	got := RequestIDFromContext(t.Context())
	if got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestEnsureRequestIDGenerates(t *testing.T) {
	ctx := EnsureRequestID(t.Context())
	id := RequestIDFromContext(ctx)
	if id == "" {
		t.Fatal("expected a generated request id")
	}
	if again := RequestIDFromContext(EnsureRequestID(ctx)); again != id {
		t.Fatalf("existing id replaced: got %q, want %q", again, id)
	}
}

func TestEnsureRequestIDKeepsExisting(t *testing.T) {
	ctx := EnsureRequestID(WithRequestID(t.Context(), "fixed"))
	if got := RequestIDFromContext(ctx); got != "fixed" {
		t.Fatalf("got %q, want %q", got, "fixed")
	}
}

package chat

import (
	"testing"
	"time"
)

func TestBackoffGrowsExponentiallyThenCaps(t *testing.T) {
	b := NewBackoff(time.Second)
	var prev time.Duration
	for i := 0; i < 5; i++ {
		got := b.Next()
		if got <= prev {
			t.Fatalf("expected strictly increasing backoff, got %v after %v", got, prev)
		}
		prev = got
	}
	for i := 0; i < 5; i++ {
		if got := b.Next(); got != maxBackoff {
			t.Fatalf("expected backoff capped at %v, got %v", maxBackoff, got)
		}
	}
}

func TestBackoffResetReturnsToInitialGrowth(t *testing.T) {
	b := NewBackoff(time.Second)
	first := b.Next()
	for i := 0; i < 10; i++ {
		b.Next()
	}
	b.Reset()
	if got := b.Next(); got != first {
		t.Fatalf("expected reset to replay first delay %v, got %v", first, got)
	}
}

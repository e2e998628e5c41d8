package ratelimit

import (
	"errors"
	"testing"
)

func TestAllow_WithinBurst(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 60, BurstSize: 3})

	for i := 0; i < 3; i++ {
		if err := l.Allow("client-a"); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}
	if err := l.Allow("client-a"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}
}

func TestAllow_ClientsAreIsolated(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 60, BurstSize: 1})

	if err := l.Allow("client-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Allow("client-a"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}
	// A different client still has a full bucket.
	if err := l.Allow("client-b"); err != nil {
		t.Fatalf("client-b throttled by client-a's usage: %v", err)
	}
}

func TestAllow_UnlimitedWhenRateZero(t *testing.T) {
	l := NewLimiter(Config{})

	for i := 0; i < 100; i++ {
		if err := l.Allow("client-a"); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}
}

func TestAllow_BurstDefaultsToRate(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 2})

	if err := l.Allow("client-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Allow("client-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Allow("client-a"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}
}

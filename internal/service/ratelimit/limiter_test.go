package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterBurstAndRefill(t *testing.T) {
	now := time.Unix(0, 0)
	l := New(1, 2, WithClock(func() time.Time { return now }))

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatalf("burst of 2 should be allowed")
	}
	if l.Allow("a") {
		t.Fatalf("third request should be limited")
	}
	if !l.Allow("b") {
		t.Fatalf("keys are independent")
	}
	now = now.Add(time.Second)
	if !l.Allow("a") {
		t.Fatalf("token should refill after one second")
	}
}

func TestLimiterDelay(t *testing.T) {
	now := time.Unix(0, 0)
	l := New(2, 1, WithClock(func() time.Time { return now }))

	if d := l.Delay("a"); d != 0 {
		t.Fatalf("unknown key should not wait, got %v", d)
	}
	l.Allow("a")
	if d := l.Delay("a"); d != 500*time.Millisecond {
		t.Fatalf("expected 500ms, got %v", d)
	}
	now = now.Add(250 * time.Millisecond)
	if d := l.Delay("a"); d != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", d)
	}
	now = now.Add(250 * time.Millisecond)
	if d := l.Delay("a"); d != 0 {
		t.Fatalf("token should be back, got %v", d)
	}
}

package realtime

import (
	"testing"
	"time"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	b := newBackoff(time.Second, 5*time.Second, 0)
	b.jitter = func() float64 { return 0 }
	now := time.Now()

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := b.next(now); got != w {
			t.Errorf("attempt %d: delay = %v, want %v", i, got, w)
		}
	}
}

func TestBackoffJitterBounded(t *testing.T) {
	b := newBackoff(time.Second, time.Minute, 0)
	b.jitter = func() float64 { return 1 }
	if got := b.next(time.Now()); got != 1500*time.Millisecond {
		t.Errorf("delay = %v, want 1.5s", got)
	}
}

func TestBackoffResetsAfterStableConnection(t *testing.T) {
	b := newBackoff(time.Second, time.Minute, 0)
	b.jitter = func() float64 { return 0 }
	now := time.Now()
	b.next(now)
	b.next(now)
	b.connected(now)
	if got := b.next(now.Add(2 * stableAfter)); got != time.Second {
		t.Errorf("delay after stable connection = %v, want base", got)
	}
}

func TestBackoffExhausted(t *testing.T) {
	b := newBackoff(time.Millisecond, time.Millisecond, 2)
	b.next(time.Now())
	if b.exhausted() {
		t.Fatal("exhausted after one attempt")
	}
	b.next(time.Now())
	if !b.exhausted() {
		t.Error("not exhausted after max attempts")
	}
}

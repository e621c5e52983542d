package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunner_SingleFlightAndStop(t *testing.T) {
	var ticks atomic.Int64
	r := NewRunner(func(ctx context.Context) time.Duration {
		ticks.Add(1)
		return 5 * time.Millisecond
	})

	r.Start(context.Background(), time.Millisecond)
	r.Start(context.Background(), time.Millisecond) // no-op while running

	time.Sleep(40 * time.Millisecond)
	r.Stop()
	if r.Running() {
		t.Fatalf("expected stopped runner")
	}

	n := ticks.Load()
	if n == 0 {
		t.Fatalf("expected at least one tick")
	}

	time.Sleep(20 * time.Millisecond)
	if ticks.Load() != n {
		t.Fatalf("expected no ticks after Stop")
	}
}

func TestRunner_TickReturnValueStops(t *testing.T) {
	var ticks atomic.Int64
	r := NewRunner(func(ctx context.Context) time.Duration {
		ticks.Add(1)
		return 0
	})

	r.Start(context.Background(), time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if got := ticks.Load(); got != 1 {
		t.Fatalf("expected exactly 1 tick, got %d", got)
	}
}

func TestRunner_SlowTickNeverOverlaps(t *testing.T) {
	var inFlight atomic.Int64
	var maxSeen atomic.Int64

	r := NewRunner(func(ctx context.Context) time.Duration {
		cur := inFlight.Add(1)
		if cur > maxSeen.Load() {
			maxSeen.Store(cur)
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return time.Millisecond
	})

	r.Start(context.Background(), time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	r.Stop()

	if maxSeen.Load() != 1 {
		t.Fatalf("expected single-flight ticks, saw %d concurrent", maxSeen.Load())
	}
}

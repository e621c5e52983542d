// Package task provides a cancellable repeating task used for vendor polling.
package task

import (
	"context"
	"sync"
	"time"
)

// Func is one tick of a repeating task. It returns the delay before the next
// tick; returning zero or a negative duration stops the task.
type Func func(ctx context.Context) time.Duration

// Runner executes a Func repeatedly. The next tick is scheduled only after
// the previous one returns, so at most one tick is ever in flight and a slow
// tick can never overlap its own successor.
type Runner struct {
	mu     sync.Mutex
	fn     Func
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRunner(fn Func) *Runner {
	return &Runner{fn: fn}
}

// Start schedules the first tick after delay. Starting a running runner is a
// no-op.
func (r *Runner) Start(ctx context.Context, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	done := make(chan struct{})
	r.done = done

	go func() {
		defer close(done)
		t := time.NewTimer(delay)
		defer t.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-t.C:
			}

			next := r.fn(runCtx)
			if next <= 0 || runCtx.Err() != nil {
				return
			}
			t.Reset(next)
		}
	}()
}

// Stop cancels the runner and waits for any in-flight tick to finish.
// Stopping a stopped runner is a no-op.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the runner has been started and not yet stopped.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

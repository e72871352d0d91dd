package service

import (
	"context"
	"sync"
	"time"
)

// Debouncer runs the most recently scheduled task after a quiet period. A
// newer Schedule cancels the pending task, and the context of a task that is
// already running, so superseded work cannot commit.
type Debouncer struct {
	delay time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDebouncer creates a debouncer with the given quiet period
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Schedule replaces any pending task with fn
func (d *Debouncer) Schedule(ctx context.Context, fn func(ctx context.Context)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.supersede()

	taskCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.wg.Add(1)
	d.timer = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		defer cancel()
		if taskCtx.Err() != nil {
			return
		}
		fn(taskCtx)
	})
}

// Stop cancels pending work and waits for a running task to return
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.supersede()
	d.mu.Unlock()

	d.wg.Wait()
}

// supersede requires d.mu
func (d *Debouncer) supersede() {
	if d.timer != nil && d.timer.Stop() {
		// The callback will never run, so release its slot here
		d.wg.Done()
	}
	if d.cancel != nil {
		d.cancel()
	}
	d.timer = nil
	d.cancel = nil
}

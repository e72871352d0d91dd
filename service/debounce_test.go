package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncerRunsLatestOnly(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var runs, last atomic.Int64

	for i := int64(1); i <= 5; i++ {
		i := i
		d.Schedule(testContext(t), func(ctx context.Context) {
			runs.Add(1)
			last.Store(i)
		})
	}

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	d.Stop()
	assert.Equal(t, int64(5), last.Load())
	assert.Equal(t, int64(1), runs.Load())
}

func TestDebouncerCancelsRunningTask(t *testing.T) {
	d := NewDebouncer(0)
	started := make(chan struct{})
	cancelled := make(chan struct{})

	d.Schedule(testContext(t), func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	})
	<-started

	d.Schedule(testContext(t), func(ctx context.Context) {})

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("superseded task was not cancelled")
	}
	d.Stop()
}

func TestDebouncerStop(t *testing.T) {
	d := NewDebouncer(time.Hour)
	var ran atomic.Bool
	d.Schedule(testContext(t), func(ctx context.Context) { ran.Store(true) })
	d.Stop()
	assert.False(t, ran.Load())
}

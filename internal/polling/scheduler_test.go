package polling

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSchedulerTicks(t *testing.T) {
	var calls atomic.Int32
	s := NewScheduler(20*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, zerolog.Nop())

	s.Start(context.Background())
	time.Sleep(110 * time.Millisecond)
	s.Stop()

	got := calls.Load()
	assert.GreaterOrEqual(t, got, int32(3))

	// After Stop no further tick runs.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, got, calls.Load())
}

func TestSlowTickSkipsNext(t *testing.T) {
	var running atomic.Int32
	var overlapped atomic.Bool

	s := NewScheduler(15*time.Millisecond, func(ctx context.Context) error {
		if running.Add(1) > 1 {
			overlapped.Store(true)
		}
		defer running.Add(-1)
		time.Sleep(50 * time.Millisecond)
		return nil
	}, zerolog.Nop())

	s.Start(context.Background())
	time.Sleep(130 * time.Millisecond)
	s.Stop()

	assert.False(t, overlapped.Load(), "ticks must never run concurrently")
}

func TestRefreshCollapsesWithTick(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})

	s := NewScheduler(time.Hour, func(ctx context.Context) error {
		calls.Add(1)
		<-release
		return nil
	}, zerolog.Nop())

	done := make(chan error, 2)
	go func() { done <- s.Refresh(context.Background()) }()
	go func() { done <- s.Refresh(context.Background()) }()

	time.Sleep(30 * time.Millisecond)
	close(release)
	assert.NoError(t, <-done)
	assert.NoError(t, <-done)
	assert.Equal(t, int32(1), calls.Load(), "concurrent refreshes share one fetch")
}

func TestRefreshSurfacesError(t *testing.T) {
	boom := errors.New("backend down")
	s := NewScheduler(time.Hour, func(ctx context.Context) error { return boom }, zerolog.Nop())

	assert.ErrorIs(t, s.Refresh(context.Background()), boom)
}

func TestStopWithoutStart(t *testing.T) {
	s := NewScheduler(time.Second, func(ctx context.Context) error { return nil }, zerolog.Nop())
	s.Stop()
	s.Stop()
}

package polling

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// TickFunc performs one authoritative re-fetch. It must feed its result
// through the store's ApplyServerFetch path; the scheduler adds no merge
// logic of its own.
type TickFunc func(ctx context.Context) error

// Scheduler re-fetches on a fixed interval as the consistency backstop for
// views without a live channel (and for missed push events everywhere
// else). A tick still in flight when the next fires makes the next a
// no-op; a manual Refresh racing a tick collapses into the same fetch.
type Scheduler struct {
	interval time.Duration
	tick     TickFunc
	log      zerolog.Logger

	group    singleflight.Group
	inFlight atomic.Bool

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewScheduler(interval time.Duration, tick TickFunc, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		tick:     tick,
		log:      log.With().Str("component", "polling").Logger(),
		done:     make(chan struct{}),
	}
}

// Start launches the loop. Safe to call once; the loop stops when Stop is
// called or ctx ends.
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		go s.loop(ctx)
	})
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.inFlight.CompareAndSwap(false, true) {
				s.log.Debug().Msg("previous tick still in flight, skipping")
				continue
			}
			if err := s.run(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn().Err(err).Msg("poll tick failed")
			}
		}
	}
}

func (s *Scheduler) run(ctx context.Context) error {
	defer s.inFlight.Store(false)
	_, err, _ := s.group.Do("fetch", func() (any, error) {
		return nil, s.tick(ctx)
	})
	return err
}

// Refresh runs one fetch immediately, deduplicated against a concurrent
// tick. Unlike tick errors, the caller sees the failure.
func (s *Scheduler) Refresh(ctx context.Context) error {
	_, err, _ := s.group.Do("fetch", func() (any, error) {
		return nil, s.tick(ctx)
	})
	return err
}

// Stop halts the loop and waits for it to exit. Deterministic teardown:
// after Stop returns no further tick will run.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel == nil {
			return
		}
		s.cancel()
		<-s.done
	})
}

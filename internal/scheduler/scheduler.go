// Package scheduler provides the cancellable periodic-collection loop shared
// by every metric: one worker goroutine that alternates a synchronous
// collection pass with an interruptible wait.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	plog "github.com/phuslu/log"

	"memcapture/internal/logger"
)

// CollectFunc performs one synchronous collection pass. A pass always runs
// to completion once started; cancellation is only observed between passes.
type CollectFunc func()

// Scheduler runs a collection callback on a fixed period until stopped.
//
// The wait between passes is driven by the runtime timer, which uses the
// monotonic clock: wall-clock adjustments (NTP synchronisation during device
// boot) never foreshorten or extend it. A stop request wakes the worker
// immediately if it is waiting, or is observed right after the in-flight
// pass completes.
type Scheduler struct {
	name    string
	collect CollectFunc
	clock   clock.Clock
	log     plog.Logger

	mu         sync.Mutex
	collecting bool
	stop       chan struct{}
	done       chan struct{}

	// Pipeline diagnostics, read by the self-telemetry collector.
	passes        atomic.Uint64
	lastPassNanos atomic.Int64
	passNanosSum  atomic.Int64
	running       atomic.Bool
}

// New creates a scheduler for the named metric. The clock is injectable so
// tests can drive the wait; production callers pass clock.New().
func New(name string, clk clock.Clock, collect CollectFunc) *Scheduler {
	l := logger.NewLoggerWithContext("scheduler")
	l.Context = plog.NewContext(l.Context).Str("metric", name).Value()

	return &Scheduler{
		name:    name,
		collect: collect,
		clock:   clk,
		log:     l,
	}
}

// Name returns the metric name given at construction.
func (s *Scheduler) Name() string {
	return s.name
}

// Start spawns the worker that runs the collection loop every period.
// Calling Start while a previous collection is still running (no
// intervening Stop) is illegal and returns an error. Restarting after a
// completed Stop is allowed.
//
// The context is the shared cancellation token: when it is cancelled the
// worker exits on its own after the in-flight pass, but the caller must
// still call Stop to join it.
func (s *Scheduler) Start(ctx context.Context, period time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collecting {
		return fmt.Errorf("scheduler %q already collecting", s.name)
	}

	s.collecting = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.running.Store(true)

	go s.run(ctx, period, s.stop, s.done)
	return nil
}

// Stop requests the worker to exit and blocks until it has. It is safe to
// call when collection was never started, and safe to call again after the
// worker has already exited.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.collecting {
		s.mu.Unlock()
		return
	}
	stop, done := s.stop, s.done
	s.mu.Unlock()

	select {
	case <-stop:
		// Already closed by a concurrent Stop.
	default:
		close(stop)
	}

	s.log.Info().Msg("Waiting for collection worker to terminate")
	<-done

	s.mu.Lock()
	s.collecting = false
	s.mu.Unlock()
}

func (s *Scheduler) run(ctx context.Context, period time.Duration, stop, done chan struct{}) {
	defer close(done)
	defer s.running.Store(false)

	for {
		start := s.clock.Now()
		s.collect()
		elapsed := s.clock.Since(start)

		s.passes.Add(1)
		s.lastPassNanos.Store(int64(elapsed))
		s.passNanosSum.Add(int64(elapsed))
		s.log.Info().Dur("elapsed", elapsed).Msg("Collection pass completed")

		// Wait for the period, or wake immediately on cancellation. A stop
		// requested mid-pass is observed here without waiting: a closed
		// channel is always ready.
		timer := s.clock.Timer(period)
		select {
		case <-stop:
			timer.Stop()
			s.log.Info().Msg("Collection worker quit")
			return
		case <-ctx.Done():
			timer.Stop()
			s.log.Info().Msg("Collection worker cancelled")
			return
		case <-timer.C:
		}
	}
}

// Stats is a point-in-time snapshot of the scheduler's diagnostics.
type Stats struct {
	Passes            uint64
	LastPassDuration  time.Duration
	TotalPassDuration time.Duration
	Running           bool
}

// Stats returns the current pipeline diagnostics. Safe to call from any
// goroutine.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Passes:            s.passes.Load(),
		LastPassDuration:  time.Duration(s.lastPassNanos.Load()),
		TotalPassDuration: time.Duration(s.passNanosSum.Load()),
		Running:           s.running.Load(),
	}
}

// Package capture drives a fixed-duration sampling run across a set of
// metrics and hands their reduced results to the report layer.
package capture

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	plog "github.com/phuslu/log"

	"memcapture/internal/logger"
	"memcapture/internal/scheduler"
)

// Metric is a periodically-sampled memory statistic. Implementations own
// their scheduler and accumulate reduced samples between StartCollection and
// StopCollection; SaveResults must only be called once collection has
// stopped.
type Metric interface {
	Name() string
	Scheduler() *scheduler.Scheduler
	StartCollection(ctx context.Context, interval time.Duration) error
	StopCollection()
	SaveResults()
}

// Session runs a set of metrics for a fixed duration, then stops them all
// and saves their results. It enforces the start -> wait -> stop -> save
// ordering so no metric's results are read while its worker still runs.
type Session struct {
	metrics []Metric
	clock   clock.Clock
	log     plog.Logger

	started time.Time
	elapsed time.Duration
	stopped bool
}

// NewSession creates a session over the given metrics. The clock is
// injectable for tests; production callers pass clock.New().
func NewSession(clk clock.Clock, metrics []Metric) *Session {
	return &Session{
		metrics: metrics,
		clock:   clk,
		log:     logger.NewLoggerWithContext("session"),
	}
}

// Schedulers returns the scheduler of every metric in the session, for the
// self-telemetry collector.
func (s *Session) Schedulers() []*scheduler.Scheduler {
	scheds := make([]*scheduler.Scheduler, 0, len(s.metrics))
	for _, m := range s.metrics {
		scheds = append(scheds, m.Scheduler())
	}
	return scheds
}

// Start begins collection on every metric. If any metric fails to start,
// the ones already started are stopped and the error is returned.
func (s *Session) Start(ctx context.Context, interval time.Duration) error {
	s.started = s.clock.Now()
	s.stopped = false

	for i, m := range s.metrics {
		if err := m.StartCollection(ctx, interval); err != nil {
			for _, started := range s.metrics[:i] {
				started.StopCollection()
			}
			return err
		}
		s.log.Info().Str("metric", m.Name()).Msg("Collection started")
	}
	return nil
}

// Wait blocks until the capture duration elapses or the context is
// cancelled, whichever comes first. Cancellation ends the run early with
// whatever samples were gathered.
func (s *Session) Wait(ctx context.Context, duration time.Duration) {
	timer := s.clock.Timer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("Capture interrupted, stopping early")
	case <-timer.C:
	}
}

// Stop ends collection on every metric and joins their workers. After Stop
// returns no sampling goroutine is running and results are stable.
func (s *Session) Stop() {
	for _, m := range s.metrics {
		m.StopCollection()
		s.log.Info().Str("metric", m.Name()).Msg("Collection stopped")
	}
	s.elapsed = s.clock.Since(s.started)
	s.stopped = true
}

// Elapsed returns the wall time between Start and Stop.
func (s *Session) Elapsed() time.Duration {
	return s.elapsed
}

// SaveResults flushes every metric's reduced results to its recorder. It
// must be called after Stop; calling it on a running session logs an error
// and does nothing, since the workers could still be mutating state.
func (s *Session) SaveResults() {
	if !s.stopped {
		s.log.Error().Msg("SaveResults called before Stop, ignoring")
		return
	}
	for _, m := range s.metrics {
		m.SaveResults()
	}
}

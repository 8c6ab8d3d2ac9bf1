package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memcapture/internal/scheduler"
)

// fakeMetric records the lifecycle calls made against it.
type fakeMetric struct {
	name     string
	sched    *scheduler.Scheduler
	startErr error

	started bool
	stopped bool
	saved   bool
}

func newFakeMetric(name string) *fakeMetric {
	return &fakeMetric{
		name:  name,
		sched: scheduler.New(name, clock.NewMock(), func() {}),
	}
}

func (m *fakeMetric) Name() string { return m.name }

func (m *fakeMetric) Scheduler() *scheduler.Scheduler { return m.sched }

func (m *fakeMetric) StartCollection(ctx context.Context, interval time.Duration) error {
	if m.startErr != nil {
		return m.startErr
	}
	m.started = true
	return m.sched.Start(ctx, interval)
}

func (m *fakeMetric) StopCollection() {
	m.stopped = true
	m.sched.Stop()
}

func (m *fakeMetric) SaveResults() { m.saved = true }

func TestSessionLifecycle(t *testing.T) {
	a := newFakeMetric("process")
	b := newFakeMetric("memory")
	s := NewSession(clock.NewMock(), []Metric{a, b})

	require.NoError(t, s.Start(context.Background(), time.Hour))
	assert.True(t, a.started)
	assert.True(t, b.started)

	s.Stop()
	assert.True(t, a.stopped)
	assert.True(t, b.stopped)

	s.SaveResults()
	assert.True(t, a.saved)
	assert.True(t, b.saved)
}

func TestSessionStartFailureStopsStartedMetrics(t *testing.T) {
	a := newFakeMetric("process")
	b := newFakeMetric("memory")
	b.startErr = errors.New("no such file")
	s := NewSession(clock.NewMock(), []Metric{a, b})

	err := s.Start(context.Background(), time.Hour)
	require.Error(t, err)

	// The already-started metric must not be left running.
	assert.True(t, a.stopped)
}

func TestSessionSaveBeforeStopIsIgnored(t *testing.T) {
	a := newFakeMetric("process")
	s := NewSession(clock.NewMock(), []Metric{a})

	require.NoError(t, s.Start(context.Background(), time.Hour))
	s.SaveResults()
	assert.False(t, a.saved)

	s.Stop()
	s.SaveResults()
	assert.True(t, a.saved)
}

func TestSessionWaitEndsOnCancellation(t *testing.T) {
	s := NewSession(clock.New(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		s.Wait(ctx, time.Hour)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return on context cancellation")
	}
}

func TestSessionElapsed(t *testing.T) {
	clk := clock.NewMock()
	a := newFakeMetric("process")
	s := NewSession(clk, []Metric{a})

	require.NoError(t, s.Start(context.Background(), time.Hour))
	clk.Add(42 * time.Second)
	s.Stop()

	assert.Equal(t, 42*time.Second, s.Elapsed())
}

func TestSessionSchedulers(t *testing.T) {
	a := newFakeMetric("process")
	b := newFakeMetric("memory")
	s := NewSession(clock.NewMock(), []Metric{a, b})

	scheds := s.Schedulers()
	require.Len(t, scheds, 2)
	assert.Equal(t, "process", scheds[0].Name())
	assert.Equal(t, "memory", scheds[1].Name())
}

func TestPipelineStatsCollector(t *testing.T) {
	sched := scheduler.New("process", clock.NewMock(), func() {})
	c := NewPipelineStatsCollector([]*scheduler.Scheduler{sched})

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(c))

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["memcapture_collection_passes_total"])
	assert.True(t, names["memcapture_collection_last_pass_duration_seconds"])
	assert.True(t, names["memcapture_collection_pass_duration_seconds_total"])
	assert.True(t, names["memcapture_collection_worker_running"])
}

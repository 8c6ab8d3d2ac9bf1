package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitFor fails the test if ch doesn't receive within the deadline.
func waitFor(t *testing.T, ch <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal(msg)
	}
}

func TestSchedulerFirstPassIsImmediate(t *testing.T) {
	collected := make(chan struct{}, 16)
	s := New("test", clock.NewMock(), func() { collected <- struct{}{} })

	require.NoError(t, s.Start(context.Background(), time.Hour))
	defer s.Stop()

	// The first pass runs right away, before any wait.
	waitFor(t, collected, "first collection pass never ran")
}

func TestSchedulerStopWakesWaitingWorker(t *testing.T) {
	collected := make(chan struct{}, 16)
	s := New("test", clock.NewMock(), func() { collected <- struct{}{} })

	require.NoError(t, s.Start(context.Background(), 24*time.Hour))
	waitFor(t, collected, "first collection pass never ran")

	// The worker is now waiting on a timer a day out; Stop must not wait
	// for it.
	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	waitFor(t, stopped, "Stop did not wake the waiting worker")

	assert.False(t, s.Stats().Running)
	assert.Equal(t, uint64(1), s.Stats().Passes)
}

func TestSchedulerPeriodicPasses(t *testing.T) {
	clk := clock.NewMock()
	collected := make(chan struct{}, 16)
	s := New("test", clk, func() { collected <- struct{}{} })

	require.NoError(t, s.Start(context.Background(), time.Second))
	defer s.Stop()
	waitFor(t, collected, "first collection pass never ran")

	// Drive the mock clock until the second pass fires. The worker arms its
	// timer asynchronously, so advancing may need a few attempts.
	for i := 0; ; i++ {
		clk.Add(time.Second)
		select {
		case <-collected:
			return
		case <-time.After(10 * time.Millisecond):
		}
		if i > 500 {
			t.Fatal("second collection pass never ran")
		}
	}
}

func TestSchedulerStartWhileCollectingFails(t *testing.T) {
	s := New("test", clock.NewMock(), func() {})

	require.NoError(t, s.Start(context.Background(), time.Hour))
	defer s.Stop()

	err := s.Start(context.Background(), time.Hour)
	assert.Error(t, err)
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	s := New("test", clock.NewMock(), func() {})

	// Must not panic or block.
	s.Stop()
	s.Stop()
}

func TestSchedulerRestartAfterStop(t *testing.T) {
	collected := make(chan struct{}, 16)
	s := New("test", clock.NewMock(), func() { collected <- struct{}{} })

	require.NoError(t, s.Start(context.Background(), time.Hour))
	waitFor(t, collected, "first run: pass never ran")
	s.Stop()

	require.NoError(t, s.Start(context.Background(), time.Hour))
	waitFor(t, collected, "second run: pass never ran")
	s.Stop()

	assert.Equal(t, uint64(2), s.Stats().Passes)
}

func TestSchedulerContextCancellation(t *testing.T) {
	collected := make(chan struct{}, 16)
	s := New("test", clock.NewMock(), func() { collected <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx, time.Hour))
	waitFor(t, collected, "first collection pass never ran")

	cancel()

	// Stop joins the worker even though the context already terminated it.
	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	waitFor(t, stopped, "Stop did not join cancelled worker")
	assert.False(t, s.Stats().Running)
}

func TestSchedulerName(t *testing.T) {
	s := New("memory", clock.NewMock(), func() {})
	assert.Equal(t, "memory", s.Name())
}

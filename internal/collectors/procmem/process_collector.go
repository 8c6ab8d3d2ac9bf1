// Package procmem implements the per-process memory metric: every tick it
// samples the memory usage of all running processes and folds each quantity
// into running per-identity statistics.
package procmem

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	plog "github.com/phuslu/log"

	"memcapture/internal/logger"
	"memcapture/internal/procfs"
	"memcapture/internal/report"
	"memcapture/internal/scheduler"
	"memcapture/internal/stats"
)

// measurement is the running statistics for one process identity. The
// identity is never removed during a run; dead duplicates are only pruned
// by the deduplication pass after collection stops.
type measurement struct {
	process *procfs.Process

	pss      *stats.Measurement
	rss      *stats.Measurement
	uss      *stats.Measurement
	vss      *stats.Measurement
	swap     *stats.Measurement
	swapPss  *stats.Measurement
	swapZram *stats.Measurement
	locked   *stats.Measurement
}

func newMeasurement(p *procfs.Process) *measurement {
	return &measurement{
		process:  p,
		pss:      stats.NewMeasurement("PSS"),
		rss:      stats.NewMeasurement("RSS"),
		uss:      stats.NewMeasurement("USS"),
		vss:      stats.NewMeasurement("VSS"),
		swap:     stats.NewMeasurement("Swap"),
		swapPss:  stats.NewMeasurement("SwapPSS"),
		swapZram: stats.NewMeasurement("SwapZram"),
		locked:   stats.NewMeasurement("Locked"),
	}
}

func (m *measurement) addSample(s procfs.ProcessMemoryUsage) {
	m.pss.AddDataPoint(float64(s.Pss))
	m.rss.AddDataPoint(float64(s.Rss))
	m.uss.AddDataPoint(float64(s.Uss))
	m.vss.AddDataPoint(float64(s.Vss))
	m.swap.AddDataPoint(float64(s.Swap))
	m.swapPss.AddDataPoint(float64(s.SwapPss))
	m.swapZram.AddDataPoint(s.SwapZram)
	m.locked.AddDataPoint(float64(s.Locked))
}

// Collector drives the procrank sampler from a scheduler worker and owns
// the per-identity result list. The list is touched only by the worker
// while collecting; SaveResults must not be called until StopCollection has
// returned.
type Collector struct {
	sched    *scheduler.Scheduler
	procrank *procfs.Procrank
	recorder report.Recorder
	log      plog.Logger

	measurements []*measurement
}

// NewCollector creates the process memory metric.
func NewCollector(procrank *procfs.Procrank, recorder report.Recorder, clk clock.Clock) *Collector {
	c := &Collector{
		procrank: procrank,
		recorder: recorder,
		log:      logger.NewLoggerWithContext("process_metric"),
	}
	c.sched = scheduler.New("process", clk, c.collect)
	return c
}

// Name identifies the metric in logs and self-telemetry.
func (c *Collector) Name() string { return "process" }

// Scheduler exposes the underlying scheduler for pipeline diagnostics.
func (c *Collector) Scheduler() *scheduler.Scheduler { return c.sched }

// StartCollection begins periodic sampling.
func (c *Collector) StartCollection(ctx context.Context, interval time.Duration) error {
	return c.sched.Start(ctx, interval)
}

// StopCollection stops the worker and blocks until it has exited.
func (c *Collector) StopCollection() {
	c.sched.Stop()
}

// collect is one pass: a full procrank sweep folded into the per-identity
// measurements. A single point-in-time sweep won't capture every spike, but
// over the run it smooths into a sound average.
func (c *Collector) collect() {
	for _, sample := range c.procrank.Sample() {
		c.find(sample.Process).addSample(sample)
	}

	// Refresh dead/alive on everything we've ever seen, including processes
	// missing from this sweep.
	for _, m := range c.measurements {
		m.process.UpdateAliveStatus()
	}
}

// find returns the measurement matching the sample's identity, creating it
// on first observation. Identity is (pid, cmdline), so a recycled PID with a
// different cmdline gets a fresh row.
func (c *Collector) find(p *procfs.Process) *measurement {
	for _, m := range c.measurements {
		if m.process.SameProcessAs(p) {
			return m
		}
	}
	m := newMeasurement(p)
	c.measurements = append(c.measurements, m)
	return m
}

// SaveResults deduplicates the collected data and flushes it into the
// recorder. Precondition: StopCollection has returned, so the worker no
// longer writes the measurement list.
func (c *Collector) SaveResults() {
	c.deduplicate()

	records := make([]report.ProcessRecord, 0, len(c.measurements))

	// The grand-total contribution sums fractional averages, so it stays in
	// float64 end to end.
	var pssSum float64

	for _, m := range c.measurements {
		records = append(records, report.ProcessRecord{
			PID:       m.process.PID,
			PPID:      m.process.PPID,
			Name:      m.process.Name,
			Cmdline:   m.process.Cmdline,
			Service:   m.process.Service,
			Container: m.process.Container,

			Pss:      m.pss,
			Rss:      m.rss,
			Uss:      m.uss,
			Vss:      m.vss,
			Swap:     m.swap,
			SwapPss:  m.swapPss,
			SwapZram: m.swapZram,
			Locked:   m.locked,
		})
		pssSum += m.pss.Average()
	}

	c.recorder.AddProcesses(records)
	c.recorder.AddToAccumulatedMemoryUsage(pssSum)
}

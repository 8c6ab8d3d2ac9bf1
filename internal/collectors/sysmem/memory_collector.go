// Package sysmem implements the system-wide memory metric: global meminfo
// categories, CMA pools, GPU allocations, per-container usage, DDR
// bandwidth, buddy-allocator fragmentation, and Broadcom BMEM regions.
package sysmem

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	plog "github.com/phuslu/log"

	"memcapture/internal/logger"
	"memcapture/internal/platform"
	"memcapture/internal/procfs"
	"memcapture/internal/report"
	"memcapture/internal/scheduler"
	"memcapture/internal/stats"
)

// linuxCategories are the whole-system meminfo quantities tracked every
// tick, in report order.
var linuxCategories = []string{
	"Total", "Used", "Buffered", "Cached", "Free", "Available",
	"Slab Total", "Slab Reclaimable", "Slab Unreclaimable", "Swap Used",
}

// Options toggles the optional scans. The capability flags in the platform
// profile still gate what is actually attempted.
type Options struct {
	GPU        bool
	Bandwidth  bool
	Containers bool
}

type cmaMeasurement struct {
	sizeKb float64
	used   *stats.Measurement
	unused *stats.Measurement
}

type gpuMeasurement struct {
	process *procfs.Process
	used    *stats.Measurement
}

type fragMeasurement struct {
	freePages     *stats.Measurement
	fragmentation *stats.Measurement
}

// Collector owns the system-wide measurement maps. Keyed entries (CMA
// region, container, PID, zone) are created lazily on first observation and
// persist for the run's lifetime. Like every metric, the maps are owned by
// the scheduler worker while collecting and must only be read after
// StopCollection has returned.
type Collector struct {
	sched    *scheduler.Scheduler
	fs       procfs.FS
	profile  platform.Profile
	opts     Options
	recorder report.Recorder
	log      plog.Logger

	// Capability computed once at construction: the profile must support
	// bandwidth monitoring and the control file must actually exist.
	bandwidthSupported bool

	linux       map[string]*stats.Measurement
	cma         map[string]*cmaMeasurement
	cmaFree     *stats.Measurement
	cmaBorrowed *stats.Measurement
	gpu         map[int]*gpuMeasurement
	containers  map[string]*stats.Measurement
	bandwidth   *stats.Measurement
	frag        map[string][]fragMeasurement
	bmem        map[string]*stats.Measurement
}

// NewCollector creates the system memory metric for the given platform.
func NewCollector(fs procfs.FS, profile platform.Profile, opts Options, recorder report.Recorder, clk clock.Clock) *Collector {
	c := &Collector{
		fs:       fs,
		profile:  profile,
		opts:     opts,
		recorder: recorder,
		log:      logger.NewLoggerWithContext("memory_metric"),

		linux:       make(map[string]*stats.Measurement, len(linuxCategories)),
		cma:         make(map[string]*cmaMeasurement),
		cmaFree:     stats.NewMeasurement("Value (KB)"),
		cmaBorrowed: stats.NewMeasurement("Value (KB)"),
		gpu:         make(map[int]*gpuMeasurement),
		containers:  make(map[string]*stats.Measurement),
		bandwidth:   stats.NewMeasurement("Memory Bandwidth (kbps)"),
		frag:        make(map[string][]fragMeasurement),
		bmem:        make(map[string]*stats.Measurement),
	}

	for _, category := range linuxCategories {
		c.linux[category] = stats.NewMeasurement("Value KB")
	}

	if profile.SupportsBandwidth && opts.Bandwidth {
		if _, err := os.Stat(profile.Paths.DdrModeFile); err == nil {
			c.bandwidthSupported = true
		}
	}

	c.sched = scheduler.New("memory", clk, c.collect)
	return c
}

// Name identifies the metric in logs and self-telemetry.
func (c *Collector) Name() string { return "memory" }

// Scheduler exposes the underlying scheduler for pipeline diagnostics.
func (c *Collector) Scheduler() *scheduler.Scheduler { return c.sched }

// StartCollection enables bandwidth monitoring when supported and begins
// periodic sampling.
func (c *Collector) StartCollection(ctx context.Context, interval time.Duration) error {
	c.setBandwidthMonitoring(true)
	return c.sched.Start(ctx, interval)
}

// StopCollection stops the worker, blocks until it has exited, then turns
// bandwidth monitoring back off.
func (c *Collector) StopCollection() {
	c.sched.Stop()
	c.setBandwidthMonitoring(false)
}

func (c *Collector) setBandwidthMonitoring(enabled bool) {
	if !c.bandwidthSupported {
		return
	}
	mode := "0"
	if enabled {
		mode = "1"
	}
	if err := os.WriteFile(c.profile.Paths.DdrModeFile, []byte(mode), 0o644); err != nil {
		c.log.Warn().Err(err).Str("mode", mode).Msg("Failed to set DDR monitoring mode")
	}
}

// collect is one pass over every supported system-wide pool.
func (c *Collector) collect() {
	c.collectLinux()
	c.collectCma()
	if c.profile.SupportsGPU && c.opts.GPU {
		c.collectGpu()
	}
	if c.opts.Containers {
		c.collectContainers()
	}
	c.collectBandwidth()
	c.collectFragmentation()
	if c.profile.SupportsBMEM {
		c.collectBmem()
	}
}

// collectLinux folds the global meminfo counters into the category
// measurements. An unreadable meminfo yields zero data points for the tick,
// not an abort.
func (c *Collector) collectLinux() {
	memInfo := c.fs.MemInfo()
	c.linux["Total"].AddDataPoint(float64(memInfo.Total))
	c.linux["Used"].AddDataPoint(float64(memInfo.Used))
	c.linux["Buffered"].AddDataPoint(float64(memInfo.Buffers))
	c.linux["Cached"].AddDataPoint(float64(memInfo.Cached))
	c.linux["Free"].AddDataPoint(float64(memInfo.Free))
	c.linux["Available"].AddDataPoint(float64(memInfo.Available))
	c.linux["Slab Total"].AddDataPoint(float64(memInfo.Slab))
	c.linux["Slab Reclaimable"].AddDataPoint(float64(memInfo.SReclaimable))
	c.linux["Slab Unreclaimable"].AddDataPoint(float64(memInfo.SUnreclaimable))
	c.linux["Swap Used"].AddDataPoint(float64(memInfo.SwapUsed()))
}

// SaveResults flushes every measurement map into the recorder.
// Precondition: StopCollection has returned.
func (c *Collector) SaveResults() {
	// Linux memory categories.
	rows := make([]report.Row, 0, len(linuxCategories))
	for _, category := range linuxCategories {
		rows = append(rows, report.Row{
			report.Text("Value", category),
			report.Value(c.linux[category]),
		})
	}
	c.recorder.AddDataset("Linux Memory", rows)
	c.recorder.SetAverageLinuxMemoryUsage(c.linux["Used"].AverageRounded())

	// GPU allocations per process.
	if c.profile.SupportsGPU && c.opts.GPU {
		rows = rows[:0]
		var gpuSum float64
		for _, pid := range sortedIntKeys(c.gpu) {
			m := c.gpu[pid]
			container := m.process.Container
			if container == "" {
				container = "-"
			}
			rows = append(rows, report.Row{
				report.Text("PID", fmt.Sprintf("%d", pid)),
				report.Text("Process", m.process.Name),
				report.Text("Container", container),
				report.Text("Cmdline", m.process.Cmdline),
				report.Value(m.used),
			})
			gpuSum += m.used.Average()
		}
		c.recorder.AddDataset("GPU Memory", rows)
		c.recorder.AddToAccumulatedMemoryUsage(gpuSum)
	}

	// CMA regions and summary.
	rows = rows[:0]
	var cmaSum float64
	for _, region := range sortedStringKeys(c.cma) {
		m := c.cma[region]
		rows = append(rows, report.Row{
			report.Text("Region", region),
			report.Text("Size KB", fmt.Sprintf("%.0f", m.sizeKb)),
			report.Value(m.used),
			report.Value(m.unused),
		})
		cmaSum += m.used.Average()
	}
	c.recorder.AddDataset("CMA Regions", rows)
	c.recorder.AddToAccumulatedMemoryUsage(cmaSum)

	c.recorder.AddDataset("CMA Summary", []report.Row{
		{report.Text("Value", "CMA Free"), report.Value(c.cmaFree)},
		{report.Text("Value", "CMA Borrowed by Kernel"), report.Value(c.cmaBorrowed)},
	})

	// Containers.
	rows = rows[:0]
	for _, name := range sortedStringKeys(c.containers) {
		rows = append(rows, report.Row{
			report.Text("Container", name),
			report.Value(c.containers[name]),
		})
	}
	c.recorder.AddDataset("Containers", rows)

	// DDR bandwidth.
	if c.bandwidthSupported {
		c.recorder.AddDataset("Memory Bandwidth", []report.Row{
			{report.Value(c.bandwidth)},
		})
	}

	// Fragmentation, one dataset per zone.
	for _, zone := range sortedStringKeys(c.frag) {
		rows = rows[:0]
		for order, m := range c.frag[zone] {
			rows = append(rows, report.Row{
				report.Text("Order", fmt.Sprintf("%d", order)),
				report.Value(m.freePages),
				report.Value(m.fragmentation),
			})
		}
		c.recorder.AddDataset("Memory Fragmentation - Zone "+zone, rows)
	}

	// Broadcom BMEM.
	if c.profile.SupportsBMEM {
		rows = rows[:0]
		var bmemSum float64
		for _, region := range sortedStringKeys(c.bmem) {
			rows = append(rows, report.Row{
				report.Text("Region", region),
				report.Value(c.bmem[region]),
			})
			bmemSum += c.bmem[region].Average()
		}
		c.recorder.AddDataset("BMEM", rows)
		c.recorder.AddToAccumulatedMemoryUsage(bmemSum)
	}
}

func sortedStringKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedIntKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

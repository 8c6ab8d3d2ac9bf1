package procfs

import (
	"github.com/phuslu/log"
)

// ProcessMemoryUsage is one per-tick memory snapshot attributed to a
// process. It is transient: the owning metric folds it into its running
// measurements immediately. All values are in kB except SwapZram, which is
// an estimate and kept fractional.
type ProcessMemoryUsage struct {
	Process *Process

	Pss    int64
	Rss    int64
	Uss    int64
	Vss    int64
	Swap   int64
	Locked int64

	SwapPss int64

	// SwapZram estimates the physical memory the process's swapped pages
	// occupy inside the compressed zram device: swap-PSS scaled by the
	// system-wide zram compression ratio.
	SwapZram float64
}

// Procrank samples the memory usage of every running process, smaps-style.
// The zram compression ratio is computed once at construction; the ratio
// drifts slowly enough that per-tick recomputation is not worth the reads.
type Procrank struct {
	fs    FS
	ratio float64
	log   log.Logger
}

// NewProcrank builds a sampler over the given FS roots.
func NewProcrank(fs FS, logger log.Logger) *Procrank {
	p := &Procrank{fs: fs, log: logger}
	p.ratio = p.zramCompressionRatio()
	return p
}

// SwapEnabled reports whether the system has any swap configured.
func (p *Procrank) SwapEnabled() bool {
	return p.fs.MemInfo().SwapTotal > 0
}

// Sample builds one memory-usage snapshot per live process. Processes whose
// name could not be read (they exited between enumeration and the per-PID
// reads) are skipped rather than recorded as degenerate rows. This is the
// dominant per-tick cost: O(PIDs x mappings), bounded to O(PIDs) on kernels
// with smaps_rollup.
func (p *Procrank) Sample() []ProcessMemoryUsage {
	pids, err := p.fs.Pids()
	if err != nil || len(pids) == 0 {
		p.log.Warn().Err(err).Msg("No PIDs found")
		return nil
	}

	usage := make([]ProcessMemoryUsage, 0, len(pids))
	for _, pid := range pids {
		process := p.fs.NewProcess(pid)
		if process.Name == "" {
			continue
		}

		smaps := p.fs.Smaps(pid)
		usage = append(usage, ProcessMemoryUsage{
			Process:  process,
			Pss:      smaps.Pss,
			Rss:      smaps.Rss,
			Uss:      smaps.Uss(),
			Vss:      smaps.Vss(),
			Swap:     smaps.Swap,
			SwapPss:  smaps.SwapPss,
			Locked:   smaps.Locked,
			SwapZram: float64(smaps.SwapPss) * p.ratio,
		})
	}
	return usage
}

// zramCompressionRatio is total zram backing-store size over total swap
// used. Returns 0 when swap is disabled, no zram devices exist, or no swap
// is in use, so the swap-in-zram estimate degrades to zero instead of
// dividing by zero.
func (p *Procrank) zramCompressionRatio() float64 {
	memInfo := p.fs.MemInfo()
	if memInfo.SwapTotal == 0 {
		return 0
	}

	zramTotalKb := p.fs.ZramTotalKb()
	swapUsedKb := memInfo.SwapUsed()
	if zramTotalKb == 0 || swapUsedKb == 0 {
		return 0
	}

	ratio := float64(zramTotalKb) / float64(swapUsedKb)
	p.log.Debug().Float64("ratio", ratio).Msg("Zram compression ratio")
	return ratio
}

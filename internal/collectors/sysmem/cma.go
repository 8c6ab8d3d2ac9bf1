package sysmem

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"memcapture/internal/stats"
)

// collectCma scans the CMA debugfs directory: one subdirectory per region,
// each exposing "count" (region size) and "used" page counts. Regions whose
// directory name has no mapping in the platform profile are malformed input:
// logged and skipped, without aborting the scan or polluting the totals.
func (c *Collector) collectCma() {
	entries, err := os.ReadDir(c.profile.Paths.CmaDir)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to open CMA debug directory")
		return
	}

	var cmaTotalKb, cmaTotalUsedKb float64

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		name, ok := c.profile.CmaNames[entry.Name()]
		if !ok {
			c.log.Warn().Str("directory", entry.Name()).
				Msg("Could not find CMA name for directory")
			continue
		}

		dir := filepath.Join(c.profile.Paths.CmaDir, entry.Name())
		countPages, err := readPageCount(filepath.Join(dir, "count"))
		if err != nil {
			c.log.Warn().Err(err).Str("region", name).Msg("Failed to read CMA region size")
			continue
		}
		usedPages, err := readPageCount(filepath.Join(dir, "used"))
		if err != nil {
			c.log.Warn().Err(err).Str("region", name).Msg("Failed to read CMA region usage")
			continue
		}

		countKb := float64(countPages) * float64(c.profile.PageSize) / 1024
		usedKb := float64(usedPages) * float64(c.profile.PageSize) / 1024
		unusedKb := countKb - usedKb

		cmaTotalKb += countKb
		cmaTotalUsedKb += usedKb

		m, ok := c.cma[name]
		if !ok {
			m = &cmaMeasurement{
				used:   stats.NewMeasurement("Used KB"),
				unused: stats.NewMeasurement("Unused KB"),
			}
			c.cma[name] = m
		}
		m.sizeKb = countKb
		m.used.AddDataPoint(usedKb)
		m.unused.AddDataPoint(unusedKb)
	}

	// How much CMA the kernel has borrowed for its own purposes: this
	// happens under memory pressure when there is not enough memory
	// elsewhere for regular allocations.
	memInfo := c.fs.MemInfo()
	c.cmaFree.AddDataPoint(float64(memInfo.CmaFree))

	totalUnused := cmaTotalKb - cmaTotalUsedKb
	c.cmaBorrowed.AddDataPoint(totalUnused - float64(memInfo.CmaFree))
}

func readPageCount(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}

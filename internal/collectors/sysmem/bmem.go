package sysmem

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"memcapture/internal/stats"
)

// collectBmem parses Broadcom's BMEM region table. A region row looks like
//
//	0  BMEM 0 MAPPED   512 MB  43% 12% bmem-main
//
// where the size is in MB and usage is only given as a percentage, so the
// recorded kB value is size * usage% * 1024. Rows that don't match the
// shape (headers, separators) are skipped.
func (c *Collector) collectBmem() {
	f, err := os.Open(c.profile.Paths.BmemFile)
	if err != nil {
		c.log.Warn().Err(err).Msg("Could not open BMEM core file")
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		sizeMb, usagePercent, region, ok := parseBmemLine(scanner.Text())
		if !ok {
			continue
		}

		usageKb := float64(sizeMb) * (float64(usagePercent) / 100.0) * 1024

		m, seen := c.bmem[region]
		if !seen {
			m = stats.NewMeasurement("Memory Usage (KB)")
			c.bmem[region] = m
		}
		m.AddDataPoint(usageKb)
	}
}

// parseBmemLine extracts (size MB, usage %, region name) from a BMEM row:
// columns are index, label, index, state, size, unit, usage%, peak%, name.
func parseBmemLine(line string) (int64, int64, string, bool) {
	fields := strings.Fields(line)
	if len(fields) < 9 {
		return 0, 0, "", false
	}

	size, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return 0, 0, "", false
	}

	usageStr, ok := strings.CutSuffix(fields[6], "%")
	if !ok {
		return 0, 0, "", false
	}
	usage, err := strconv.ParseInt(usageStr, 10, 64)
	if err != nil {
		return 0, 0, "", false
	}

	return size, usage, fields[8], true
}

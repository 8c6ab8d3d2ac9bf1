package sysmem

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// collectBandwidth reads the DDR bandwidth counter (Amlogic only). The
// monitor occasionally reports zero between windows; those samples carry no
// information and are dropped.
func (c *Collector) collectBandwidth() {
	if !c.bandwidthSupported {
		return
	}

	f, err := os.Open(c.profile.Paths.DdrBandwidthFile)
	if err != nil {
		c.log.Warn().Err(err).Msg("Cannot get DDR usage")
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		// "Total bandwidth:   123456 KB/s, usage:  12.3%"
		rest, ok := strings.CutPrefix(scanner.Text(), "Total bandwidth:")
		if !ok {
			continue
		}
		rest = strings.TrimSpace(rest)
		end := 0
		for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
			end++
		}
		kbps, err := strconv.Atoi(rest[:end])
		if err != nil || kbps == 0 {
			continue
		}
		c.bandwidth.AddDataPoint(float64(kbps))
	}
}

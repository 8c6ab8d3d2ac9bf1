package sysmem

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"memcapture/internal/platform"
	"memcapture/internal/stats"
)

// collectGpu reads the per-process GPU allocations in the vendor's dialect.
func (c *Collector) collectGpu() {
	switch c.profile.Vendor {
	case platform.VendorAmlogic:
		c.collectGpuAmlogic()
	case platform.VendorRealtek:
		c.collectGpuRealtek()
	case platform.VendorBroadcom:
		c.collectGpuBroadcom()
	}
}

// addGpuSample folds one allocation observation (in kB) into the
// measurement for that PID, resolving the process identity on first sight.
func (c *Collector) addGpuSample(pid int, usedKb float64) {
	m, ok := c.gpu[pid]
	if !ok {
		m = &gpuMeasurement{
			process: c.fs.NewProcess(pid),
			used:    stats.NewMeasurement("Memory Usage KB"),
		}
		c.gpu[pid] = m
	}
	m.used.AddDataPoint(usedKb)
}

// collectGpuAmlogic parses the Mali allocation table. Sizes are pages.
//
//	mali0            total used_pages      25939
//	----------------------------------------------------
//	kctx             pid              used_pages
//	----------------------------------------------------
//	f1dbf000      14880       4558
//	f1c19000      14438        135
func (c *Collector) collectGpuAmlogic() {
	f, err := os.Open(c.profile.Paths.GpuMemoryFile)
	if err != nil {
		c.log.Warn().Err(err).Msg("Could not open gpu_memory file")
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 3 {
			continue
		}
		// Allocation rows start with the kctx address in hex.
		if _, err := strconv.ParseUint(fields[0], 16, 64); err != nil {
			continue
		}
		pid, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		pages, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			continue
		}
		c.addGpuSample(pid, float64(pages*int64(c.profile.PageSize))/1024)
	}
}

// collectGpuRealtek parses Realtek's rendering of the same table. Sizes are
// pages.
//
//	mali0                  45605
//	kctx-0xfa847000      14102      15898
//	kctx-0xf7953000         42      15833
func (c *Collector) collectGpuRealtek() {
	f, err := os.Open(c.profile.Paths.GpuMemoryFile)
	if err != nil {
		c.log.Warn().Err(err).Msg("Could not open gpu_memory file")
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 3 || !strings.HasPrefix(fields[0], "kctx-0x") {
			continue
		}
		pages, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		pid, err := strconv.Atoi(fields[2])
		if err != nil {
			continue
		}
		c.addGpuSample(pid, float64(pages*int64(c.profile.PageSize))/1024)
	}
}

// collectGpuBroadcom walks the DRM debugfs: one "<tid>-<hex>" directory per
// allocating thread, each with a "client" file like
//
//	        command objects    Virtual  SHM pages Huge Pages
//	SkyBrowserLaunc       2     4096KB        0KB        4MB
//
// The thread id is resolved to its thread-group id so allocations correlate
// with the process results.
func (c *Collector) collectGpuBroadcom() {
	entries, err := os.ReadDir(c.profile.Paths.DriDir)
	if err != nil {
		c.log.Warn().Err(err).Msg("Could not open dri debug directory")
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		tidStr, _, ok := strings.Cut(entry.Name(), "-")
		if !ok {
			continue
		}
		tid, err := strconv.Atoi(tidStr)
		if err != nil {
			continue
		}

		clientPath := filepath.Join(c.profile.Paths.DriDir, entry.Name(), "client")
		f, err := os.Open(clientPath)
		if err != nil {
			c.log.Warn().Err(err).Str("path", clientPath).Msg("Could not open gpu client file")
			continue
		}

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			usedBytes, ok := parseBroadcomClientLine(line)
			if !ok {
				continue
			}

			pid, ok := c.fs.Tgid(tid)
			if !ok {
				// The thread has likely exited; skip rather than attribute
				// the allocation to a bogus PID.
				c.log.Warn().Int("tid", tid).Msg("Could not resolve GPU allocation thread to a process")
				continue
			}
			c.addGpuSample(pid, float64(usedBytes)/1024)
		}
		f.Close()
	}
}

// parseBroadcomClientLine extracts the virtual allocation size in bytes from
// a client-file row. Header rows fail the numeric checks and are skipped.
func parseBroadcomClientLine(line string) (int64, bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return 0, false
	}
	if _, err := strconv.Atoi(fields[1]); err != nil {
		return 0, false
	}

	size := fields[2]
	if len(size) < 3 {
		return 0, false
	}
	value, err := strconv.ParseInt(size[:len(size)-2], 10, 64)
	if err != nil {
		return 0, false
	}

	switch size[len(size)-2:] {
	case "KB":
		return value * 1024, true
	case "MB":
		return value * 1024 * 1024, true
	case "GB":
		return value * 1024 * 1024 * 1024, true
	default:
		return 0, false
	}
}


package procfs

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/phuslu/log"
)

// MemInfo holds the global memory counters from /proc/meminfo, all in kB.
// Used is derived: total minus everything the kernel can hand back cheaply
// (free, buffers, page cache, reclaimable slab).
type MemInfo struct {
	Total          int64
	Free           int64
	Available      int64
	Used           int64
	Buffers        int64
	Cached         int64
	Slab           int64
	SReclaimable   int64
	SUnreclaimable int64
	SwapTotal      int64
	SwapFree       int64
	CmaTotal       int64
	CmaFree        int64
}

// SwapUsed returns the amount of swap currently in use, in kB.
func (m MemInfo) SwapUsed() int64 {
	return m.SwapTotal - m.SwapFree
}

// MemInfo reads and parses the meminfo pseudo-file. An unreadable file is
// non-fatal: all fields stay zero and the caller proceeds with zeroed data.
// A read where total is smaller than free+buffers+cached+slab is treated as
// corrupt; it is logged and a zeroed struct returned.
func (fs FS) MemInfo() MemInfo {
	var m MemInfo

	f, err := os.Open(fs.procPath("meminfo"))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to open meminfo")
		return m
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		key, value, ok := meminfoLine(line)
		if !ok {
			continue
		}
		switch key {
		case "MemTotal":
			m.Total = value
		case "MemFree":
			m.Free = value
		case "MemAvailable":
			m.Available = value
		case "Buffers":
			m.Buffers = value
		case "Cached":
			m.Cached = value
		case "Slab":
			m.Slab = value
		case "SReclaimable":
			m.SReclaimable = value
		case "SUnreclaim":
			m.SUnreclaimable = value
		case "SwapTotal":
			m.SwapTotal = value
		case "SwapFree":
			m.SwapFree = value
		case "CmaTotal":
			m.CmaTotal = value
		case "CmaFree":
			m.CmaFree = value
		}
	}

	if m.Total < (m.Free + m.Buffers + m.Cached + m.Slab) {
		log.Warn().
			Int64("total_kb", m.Total).
			Msg("MemTotal smaller than free+buffers+cached+slab, discarding corrupt meminfo read")
		return MemInfo{}
	}

	m.Used = m.Total - (m.Free + m.Buffers + m.Cached + m.SReclaimable)
	return m
}

// meminfoLine splits a "Key:   12345 kB" line into its key and kB value.
func meminfoLine(line string) (string, int64, bool) {
	colon := strings.IndexByte(line, ':')
	if colon <= 0 {
		return "", 0, false
	}
	key := line[:colon]

	rest := strings.TrimSpace(line[colon+1:])
	rest = strings.TrimSuffix(rest, " kB")

	value, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return "", 0, false
	}
	return key, value, true
}

package sysmem

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"memcapture/internal/stats"
)

// cgroups created by the system itself, not containers.
var containerIgnoreList = map[string]bool{
	"init.scope":   true,
	"system.slice": true,
}

// collectContainers reports memory usage per memory-cgroup directory. The
// simplest reliable signal is memory.usage_in_bytes of each child cgroup,
// although a cgroup created by something other than a container runtime
// shows up too.
func (c *Collector) collectContainers() {
	entries, err := os.ReadDir(c.profile.Paths.CgroupMemoryDir)
	if err != nil {
		// No memory cgroup hierarchy on this image.
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() || containerIgnoreList[entry.Name()] {
			continue
		}

		usagePath := filepath.Join(c.profile.Paths.CgroupMemoryDir, entry.Name(), "memory.usage_in_bytes")
		data, err := os.ReadFile(usagePath)
		if err != nil {
			continue
		}
		usageBytes, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			c.log.Warn().Str("container", entry.Name()).Msg("Malformed container memory usage")
			continue
		}

		m, ok := c.containers[entry.Name()]
		if !ok {
			m = stats.NewMeasurement("Memory Used KB")
			c.containers[entry.Name()] = m
		}
		m.AddDataPoint(float64(usageBytes) / 1024)
	}
}

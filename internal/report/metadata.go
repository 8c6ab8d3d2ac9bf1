package report

import (
	"bufio"
	"os"
	"strings"
	"time"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// Metadata is the environment block of the report. Every source degrades to
// "Unknown" (or zero) when unreadable, since not all images carry every
// file.
type Metadata struct {
	Image       string  `json:"image"`
	Platform    string  `json:"platform"`
	Mac         string  `json:"mac"`
	Timestamp   string  `json:"timestamp"`
	Duration    int64   `json:"duration"`
	SwapEnabled bool    `json:"swapEnabled"`
	Kernel      string  `json:"kernel"`
	LoadAverage float64 `json:"loadAverage"`
}

// CollectMetadata gathers the device identity at capture start. swapEnabled
// comes from the sampler, which has already read meminfo.
func CollectMetadata(swapEnabled bool) *Metadata {
	return &Metadata{
		Image:       imageName("/version.txt"),
		Platform:    friendlyID("/etc/device.properties"),
		Mac:         macAddress("/sys/class/net/eth0/address"),
		Timestamp:   time.Now().Format("2006-01-02T15:04:05-0700"),
		SwapEnabled: swapEnabled,
		Kernel:      kernelRelease(),
		LoadAverage: loadAverage(),
	}
}

// SetDuration records the actual capture duration once the run ends.
func (m *Metadata) SetDuration(d time.Duration) {
	m.Duration = int64(d.Seconds())
}

// imageName pulls the "imagename:" line out of the version file.
func imageName(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return "Unknown"
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if rest, ok := strings.CutPrefix(scanner.Text(), "imagename:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return "Unknown"
}

// friendlyID pulls FRIENDLY_ID out of the device properties file, dropping
// any quoting.
func friendlyID(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return "Unknown"
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		field, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok || field != "FRIENDLY_ID" {
			continue
		}
		return strings.ReplaceAll(value, "\"", "")
	}
	return "Unknown"
}

func macAddress(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "Unknown"
	}
	return strings.TrimSpace(string(data))
}

func kernelRelease() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "Unknown"
	}
	return unix.ByteSliceToString(uts.Release[:])
}

func loadAverage() float64 {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return 0
	}
	avg, err := fs.LoadAvg()
	if err != nil {
		return 0
	}
	return avg.Load1
}

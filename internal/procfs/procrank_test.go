package procfs

import (
	"testing"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() log.Logger {
	return log.Logger{Level: log.PanicLevel}
}

func TestProcrankSampleSkipsNamelessProcesses(t *testing.T) {
	fs := newTestFS(t)
	writeProcFile(t, fs, "meminfo", sampleMeminfo)

	writeProcessFiles(t, fs, 10, []byte("/bin/app\x00"), "PPid:\t1\n", "")
	writeProcFile(t, fs, "10/smaps_rollup", sampleRollup)

	// Kernel thread / exited process: pid dir exists, cmdline is empty.
	writeProcessFiles(t, fs, 20, nil, "", "")

	p := NewProcrank(fs, testLogger())
	usage := p.Sample()

	require.Len(t, usage, 1)
	u := usage[0]
	assert.Equal(t, 10, u.Process.PID)
	assert.Equal(t, int64(3000), u.Pss)
	assert.Equal(t, int64(5000), u.Rss)
	assert.Equal(t, int64(1000), u.Uss)
	assert.Equal(t, int64(200), u.Swap)
	assert.Equal(t, int64(150), u.SwapPss)
	assert.Equal(t, int64(8), u.Locked)
}

func TestProcrankSwapEnabled(t *testing.T) {
	fs := newTestFS(t)
	writeProcFile(t, fs, "meminfo", sampleMeminfo)
	assert.True(t, NewProcrank(fs, testLogger()).SwapEnabled())

	fs2 := newTestFS(t)
	writeProcFile(t, fs2, "meminfo", "MemTotal: 1000 kB\nSwapTotal: 0 kB\n")
	assert.False(t, NewProcrank(fs2, testLogger()).SwapEnabled())
}

func TestZramCompressionRatio(t *testing.T) {
	fs := newTestFS(t)
	// SwapUsed = 512 - 312 = 200 kB; zram backing store = 100 kB.
	writeProcFile(t, fs, "meminfo", sampleMeminfo)
	writeSysFile(t, fs, "block/zram0/mm_stat", "0 0 102400 0 0 0 0\n")

	p := NewProcrank(fs, testLogger())
	assert.InDelta(t, 0.5, p.ratio, 1e-9)

	// SwapZram scales swap-PSS by the ratio.
	writeProcessFiles(t, fs, 10, []byte("/bin/app\x00"), "", "")
	writeProcFile(t, fs, "10/smaps_rollup", sampleRollup)
	usage := p.Sample()
	require.Len(t, usage, 1)
	assert.InDelta(t, 75.0, usage[0].SwapZram, 1e-9)
}

func TestZramCompressionRatioGuards(t *testing.T) {
	// No swap configured.
	fs := newTestFS(t)
	writeProcFile(t, fs, "meminfo", "MemTotal: 1000 kB\nSwapTotal: 0 kB\n")
	writeSysFile(t, fs, "block/zram0/mm_stat", "0 0 102400 0 0 0 0\n")
	assert.Zero(t, NewProcrank(fs, testLogger()).ratio)

	// Swap configured but no zram devices.
	fs = newTestFS(t)
	writeProcFile(t, fs, "meminfo", sampleMeminfo)
	assert.Zero(t, NewProcrank(fs, testLogger()).ratio)

	// Swap configured but unused: no division by zero.
	fs = newTestFS(t)
	writeProcFile(t, fs, "meminfo", "MemTotal: 1000 kB\nSwapTotal: 512 kB\nSwapFree: 512 kB\n")
	writeSysFile(t, fs, "block/zram0/mm_stat", "0 0 102400 0 0 0 0\n")
	assert.Zero(t, NewProcrank(fs, testLogger()).ratio)
}

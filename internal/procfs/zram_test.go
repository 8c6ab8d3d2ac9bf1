package procfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZramTotalSumsDevices(t *testing.T) {
	fs := newTestFS(t)
	// mm_stat fields: orig_data_size compr_data_size mem_used_total ...
	writeSysFile(t, fs, "block/zram0/mm_stat", "4096 2048 1048576 0 0 0 0\n")
	writeSysFile(t, fs, "block/zram1/mm_stat", "4096 2048 2097152 0 0 0 0\n")

	// (1048576 + 2097152) bytes = 3072 kB
	assert.Equal(t, int64(3072), fs.ZramTotalKb())
}

func TestZramScanStopsAtFirstGap(t *testing.T) {
	fs := newTestFS(t)
	writeSysFile(t, fs, "block/zram0/mm_stat", "0 0 1048576 0 0 0 0\n")
	// zram2 without zram1 is unreachable: devices number sequentially.
	writeSysFile(t, fs, "block/zram2/mm_stat", "0 0 1048576 0 0 0 0\n")

	assert.Equal(t, int64(1024), fs.ZramTotalKb())
}

func TestZramNoDevices(t *testing.T) {
	fs := newTestFS(t)

	assert.Equal(t, int64(0), fs.ZramTotalKb())
}

func TestZramMalformedDeviceSkipped(t *testing.T) {
	fs := newTestFS(t)
	writeSysFile(t, fs, "block/zram0/mm_stat", "bad\n")
	writeSysFile(t, fs, "block/zram1/mm_stat", "0 0 1048576 0 0 0 0\n")

	assert.Equal(t, int64(1024), fs.ZramTotalKb())
}

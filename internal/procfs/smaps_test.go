package procfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleRollup = `00400000-7fff4b1d5000 ---p 00000000 00:00 0      [rollup]
Rss:                5000 kB
Pss:                3000 kB
Private_Clean:       400 kB
Private_Dirty:       600 kB
Swap:                200 kB
SwapPss:             150 kB
Locked:                8 kB
`

// Two mappings whose field sums equal the rollup above, plus Size lines.
const sampleFullSmaps = `00400000-00452000 r-xp 00000000 08:02 173521 /usr/bin/dbus-daemon
Size:               4096 kB
Rss:                2000 kB
Pss:                1000 kB
Private_Clean:       100 kB
Private_Dirty:       500 kB
Swap:                200 kB
SwapPss:             150 kB
Locked:                0 kB
VmFlags: rd ex mr mw me dw
7f9d00000000-7f9d00021000 rw-p 00000000 00:00 0
Size:               2048 kB
Rss:                3000 kB
Pss:                2000 kB
Private_Clean:       300 kB
Private_Dirty:       100 kB
Swap:                  0 kB
SwapPss:               0 kB
Locked:                8 kB
VmFlags: rd wr mr mw me ac
`

func TestSmapsPrefersRollup(t *testing.T) {
	fs := newTestFS(t)
	writeProcFile(t, fs, "100/smaps_rollup", sampleRollup)
	// A conflicting full smaps file must be ignored when the rollup exists.
	writeProcFile(t, fs, "100/smaps", sampleFullSmaps)

	s := fs.Smaps(100)
	assert.Equal(t, int64(3000), s.Pss)
	assert.Equal(t, int64(5000), s.Rss)
	assert.Equal(t, int64(200), s.Swap)
	assert.Equal(t, int64(150), s.SwapPss)
	assert.Equal(t, int64(8), s.Locked)
	assert.Equal(t, int64(1000), s.Uss())
}

func TestSmapsSumsFullFile(t *testing.T) {
	fs := newTestFS(t)
	writeProcFile(t, fs, "200/smaps", sampleFullSmaps)

	s := fs.Smaps(200)
	assert.Equal(t, int64(3000), s.Pss)
	assert.Equal(t, int64(5000), s.Rss)
	assert.Equal(t, int64(200), s.Swap)
	assert.Equal(t, int64(150), s.SwapPss)
	assert.Equal(t, int64(8), s.Locked)
	assert.Equal(t, int64(1000), s.Uss())
	assert.Equal(t, int64(6144), s.Vss())
}

func TestSmapsMissingProcessIsZero(t *testing.T) {
	fs := newTestFS(t)

	assert.Equal(t, Smaps{}, fs.Smaps(999))
}

func TestParseSmapsLine(t *testing.T) {
	tests := []struct {
		line  string
		field smapsField
		value int64
		ok    bool
	}{
		{"Pss:                1234 kB", smapsPss, 1234, true},
		{"Rss:                   4 kB", smapsRss, 4, true},
		{"Swap:                  0 kB", smapsSwap, 0, true},
		{"SwapPss:              17 kB", smapsSwapPss, 17, true},
		{"Size:               4096 kB", smapsSize, 4096, true},
		{"Locked:                8 kB", smapsLocked, 8, true},
		{"Private_Clean:       100 kB", smapsPrivateClean, 100, true},
		{"Private_Dirty:       200 kB", smapsPrivateDirty, 200, true},
		// Fields we don't track.
		{"Shared_Clean:        300 kB", 0, 0, false},
		{"Referenced:          100 kB", 0, 0, false},
		{"KernelPageSize:        4 kB", 0, 0, false},
		// Mapping headers and flag lines.
		{"00400000-00452000 r-xp 00000000 08:02 173521 /usr/bin/x", 0, 0, false},
		{"VmFlags: rd ex mr mw me dw", 0, 0, false},
		{"", 0, 0, false},
	}

	for _, tt := range tests {
		field, value, ok := parseSmapsLine(tt.line)
		assert.Equal(t, tt.ok, ok, "line %q", tt.line)
		if tt.ok {
			assert.Equal(t, tt.field, field, "line %q", tt.line)
			assert.Equal(t, tt.value, value, "line %q", tt.line)
		}
	}
}

package procfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuddyZoneFragmentation(t *testing.T) {
	zone := BuddyZone{
		Name:      "Normal",
		FreePages: []int64{100, 50, 10, 0},
	}

	// 100 + 2*50 + 4*10 + 8*0
	assert.Equal(t, int64(240), zone.TotalFreePages())

	frag, ok := zone.Fragmentation()
	require.True(t, ok)
	require.Len(t, frag, 4)

	// All free memory is reachable at order 0.
	assert.Equal(t, 0.0, frag[0])
	// Order 1 and above cannot reach the 100 single pages.
	assert.InDelta(t, 100.0/240.0, frag[1], 1e-9)
	// Order 2 can only be satisfied by the 4-page blocks.
	assert.InDelta(t, 200.0/240.0, frag[2], 1e-9)
	// No order-3 blocks exist at all.
	assert.Equal(t, 1.0, frag[3])
}

func TestBuddyZoneFragmentationEmptyZone(t *testing.T) {
	zone := BuddyZone{Name: "DMA", FreePages: []int64{0, 0, 0}}

	_, ok := zone.Fragmentation()
	assert.False(t, ok)
}

func TestBuddyInfoParsing(t *testing.T) {
	fs := newTestFS(t)
	writeProcFile(t, fs, "buddyinfo",
		"Node 0, zone      DMA 1 2 3 4\n"+
			"Node 0, zone   Normal 100 50 10 0\n")

	zones := fs.BuddyInfo(8)
	require.Len(t, zones, 2)

	assert.Equal(t, "DMA", zones[0].Name)
	assert.Equal(t, []int64{1, 2, 3, 4}, zones[0].FreePages)
	assert.Equal(t, "Normal", zones[1].Name)
	assert.Equal(t, []int64{100, 50, 10, 0}, zones[1].FreePages)
}

func TestBuddyInfoColumnMismatchSkipsLine(t *testing.T) {
	fs := newTestFS(t)
	// First line has a truncated column count and must be skipped; the
	// second parses normally.
	writeProcFile(t, fs, "buddyinfo",
		"Node 0, zone      DMA 1 2\n"+
			"Node 0, zone   Normal 100 50 10 0\n")

	zones := fs.BuddyInfo(8)
	require.Len(t, zones, 1)
	assert.Equal(t, "Normal", zones[0].Name)
}

func TestBuddyInfoMissingFile(t *testing.T) {
	fs := newTestFS(t)

	assert.Nil(t, fs.BuddyInfo(8))
}

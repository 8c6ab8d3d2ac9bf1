package procfs

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/phuslu/log"
)

// BuddyZone is one memory zone line from /proc/buddyinfo: a zone name plus
// the free-block counts per buddy-allocator order.
type BuddyZone struct {
	Name      string
	FreePages []int64
}

// TotalFreePages returns the total number of free pages in the zone,
// weighting each order's block count by its size in pages.
func (z BuddyZone) TotalFreePages() int64 {
	var total int64
	for order, count := range z.FreePages {
		total += (1 << order) * count
	}
	return total
}

// Fragmentation returns, for each order i, the fraction of the zone's free
// memory that is unreachable as a contiguous block of order >= i:
//
//	frag[i] = (totalFreePages - sum_{j>=i} 2^j * free[j]) / totalFreePages
//
// By construction frag[0] is 0. The second return is false when the zone has
// no free pages at all, which makes the fraction undefined.
func (z BuddyZone) Fragmentation() ([]float64, bool) {
	total := z.TotalFreePages()
	if total == 0 {
		return nil, false
	}

	frag := make([]float64, len(z.FreePages))
	for i := range z.FreePages {
		var reachable int64
		for j := i; j < len(z.FreePages); j++ {
			reachable += (1 << j) * z.FreePages[j]
		}
		frag[i] = float64(total-reachable) / float64(total)
	}
	return frag, true
}

// BuddyInfo parses /proc/buddyinfo into per-zone free-block counts. columns
// is the platform-specific expected token count per line; a line with any
// other count is logged and skipped, since the order columns cannot be
// trusted. An unreadable file returns no zones.
//
// A buddyinfo line looks like:
//
//	Node 0, zone   Normal  100  50  10  0 ...
//
// so the zone name is the fourth token and the order counts follow it.
func (fs FS) BuddyInfo(columns int) []BuddyZone {
	f, err := os.Open(fs.procPath("buddyinfo"))
	if err != nil {
		log.Warn().Err(err).Msg("Could not open buddyinfo")
		return nil
	}
	defer f.Close()

	var zones []BuddyZone

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if len(fields) != columns {
			log.Warn().
				Int("got", len(fields)).
				Int("expected", columns).
				Msg("Failed to parse buddyinfo - invalid number of columns")
			continue
		}

		zone := BuddyZone{
			Name:      fields[3],
			FreePages: make([]int64, 0, columns-4),
		}

		valid := true
		for _, field := range fields[4:] {
			count, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				log.Warn().Str("zone", zone.Name).Str("value", field).
					Msg("Failed to parse buddyinfo free count")
				valid = false
				break
			}
			zone.FreePages = append(zone.FreePages, count)
		}
		if valid {
			zones = append(zones, zone)
		}
	}
	return zones
}

package sysmem

import (
	"memcapture/internal/stats"
)

// collectFragmentation derives per-zone, per-order fragmentation from
// buddyinfo. The recorded fragmentation value is a percentage. A zone with
// no free pages at all has an undefined fraction and is skipped for the
// tick.
func (c *Collector) collectFragmentation() {
	for _, zone := range c.fs.BuddyInfo(c.profile.BuddyInfoColumns) {
		frag, ok := zone.Fragmentation()
		if !ok {
			c.log.Debug().Str("zone", zone.Name).Msg("Zone has no free pages, skipping fragmentation")
			continue
		}

		measurements, seen := c.frag[zone.Name]
		if !seen {
			measurements = make([]fragMeasurement, len(zone.FreePages))
			for i := range measurements {
				measurements[i] = fragMeasurement{
					freePages:     stats.NewMeasurement("Free Pages"),
					fragmentation: stats.NewMeasurement("Fragmentation %"),
				}
			}
			c.frag[zone.Name] = measurements
		}

		for i := range measurements {
			if i >= len(zone.FreePages) {
				break
			}
			measurements[i].freePages.AddDataPoint(float64(zone.FreePages[i]))
			measurements[i].fragmentation.AddDataPoint(frag[i] * 100)
		}
	}
}

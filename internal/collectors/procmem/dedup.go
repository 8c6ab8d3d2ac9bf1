package procmem

// dedupKey groups recurring short-lived invocations of the same command: a
// script spawning "sleep 10" every cycle would otherwise leave dozens of
// near-identical dead rows.
type dedupKey struct {
	cmdline string
	ppid    int
}

// deduplicate prunes duplicate dead processes after collection has stopped.
// Dead entries are grouped by (cmdline, parent pid); in any group with more
// than one member, only the entry with the highest average PSS is kept.
// Processes still alive at stop time are never pruned - they cannot yet be
// judged to be the same recurring invocation.
func (c *Collector) deduplicate() {
	groups := make(map[dedupKey][]*measurement)
	for _, m := range c.measurements {
		if !m.process.IsDead() {
			continue
		}
		key := dedupKey{cmdline: m.process.Cmdline, ppid: m.process.PPID}
		groups[key] = append(groups[key], m)
	}

	remove := make(map[*measurement]bool)
	duplicateGroups := 0
	for key, members := range groups {
		if len(members) < 2 {
			continue
		}
		duplicateGroups++

		// Keep the member with the highest average PSS; ties keep the
		// first-seen entry.
		keep := members[0]
		for _, m := range members[1:] {
			if m.pss.Average() > keep.pss.Average() {
				keep = m
			}
		}
		for _, m := range members {
			if m != keep {
				remove[m] = true
			}
		}

		c.log.Info().
			Str("cmdline", key.cmdline).
			Int("ppid", key.ppid).
			Int("removed", len(members)-1).
			Msg("Removing duplicate dead processes")
	}

	if duplicateGroups == 0 {
		return
	}

	kept := c.measurements[:0]
	for _, m := range c.measurements {
		if !remove[m] {
			kept = append(kept, m)
		}
	}
	c.measurements = kept
}

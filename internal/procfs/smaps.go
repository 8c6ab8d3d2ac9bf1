package procfs

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// Smaps is the per-process memory breakdown summed from /proc/<pid>/smaps,
// or taken directly from smaps_rollup when the kernel provides it. All
// values are in kB.
type Smaps struct {
	Pss          int64
	Rss          int64
	Swap         int64
	SwapPss      int64
	Locked       int64
	PrivateClean int64
	PrivateDirty int64
	Size         int64
}

// Uss is the unique set size: memory that would be returned to the system if
// the process exited.
func (s Smaps) Uss() int64 {
	return s.PrivateClean + s.PrivateDirty
}

// Vss is the total virtual size of all mappings.
func (s Smaps) Vss() int64 {
	return s.Size
}

// Smaps reads the memory breakdown for a PID. The pre-aggregated rollup file
// is preferred when the kernel exposes it (O(1) per process); otherwise
// every per-mapping block in the full smaps file is summed. An unreadable
// file yields zeroed fields silently: the process has usually exited between
// enumeration and read, which is expected.
func (fs FS) Smaps(pid int) Smaps {
	rollup := fs.pidPath(pid, "smaps_rollup")
	if _, err := os.Stat(rollup); err == nil {
		return parseSmapsFile(rollup, false)
	}
	return parseSmapsFile(fs.pidPath(pid, "smaps"), true)
}

func parseSmapsFile(path string, sum bool) Smaps {
	var s Smaps

	f, err := os.Open(path)
	if err != nil {
		// Process likely died, don't log anything.
		return s
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		field, value, ok := parseSmapsLine(scanner.Text())
		if !ok {
			continue
		}

		dst := s.fieldPtr(field)
		if sum {
			*dst += value
		} else {
			*dst = value
		}
	}
	return s
}

type smapsField int

const (
	smapsPss smapsField = iota
	smapsRss
	smapsSwap
	smapsSwapPss
	smapsLocked
	smapsPrivateClean
	smapsPrivateDirty
	smapsSize
)

func (s *Smaps) fieldPtr(f smapsField) *int64 {
	switch f {
	case smapsPss:
		return &s.Pss
	case smapsRss:
		return &s.Rss
	case smapsSwap:
		return &s.Swap
	case smapsSwapPss:
		return &s.SwapPss
	case smapsLocked:
		return &s.Locked
	case smapsPrivateClean:
		return &s.PrivateClean
	case smapsPrivateDirty:
		return &s.PrivateDirty
	default:
		return &s.Size
	}
}

// parseSmapsLine extracts the field and kB value from one smaps line. Full
// smaps files carry a lot of data, so this stays a single pass: walk to the
// first whitespace to find the key, confirm the trailing colon, dispatch on
// the first character to avoid comparing every known key, then parse the
// value. Unknown keys and mapping-header lines are ignored.
func parseSmapsLine(line string) (smapsField, int64, bool) {
	// Find the end of the key. Keys are separated from values by spaces or,
	// on newer kernels, tabs.
	end := 0
	for end < len(line) && line[end] != ' ' && line[end] != '\t' {
		end++
	}

	// A field line has a key ending in ':'; mapping headers do not.
	if end == 0 || end == len(line) || line[end-1] != ':' {
		return 0, 0, false
	}

	var field smapsField
	switch line[0] {
	case 'P':
		switch {
		case strings.HasPrefix(line, "Pss:"):
			field = smapsPss
		case strings.HasPrefix(line, "Private_Clean:"):
			field = smapsPrivateClean
		case strings.HasPrefix(line, "Private_Dirty:"):
			field = smapsPrivateDirty
		default:
			return 0, 0, false
		}
	case 'S':
		switch {
		case strings.HasPrefix(line, "Swap:"):
			field = smapsSwap
		case strings.HasPrefix(line, "SwapPss:"):
			field = smapsSwapPss
		case strings.HasPrefix(line, "Size:"):
			field = smapsSize
		default:
			return 0, 0, false
		}
	case 'R':
		if !strings.HasPrefix(line, "Rss:") {
			return 0, 0, false
		}
		field = smapsRss
	case 'L':
		if !strings.HasPrefix(line, "Locked:") {
			return 0, 0, false
		}
		field = smapsLocked
	default:
		return 0, 0, false
	}

	// Skip the whitespace run to the start of the value.
	start := end
	for start < len(line) && (line[start] == ' ' || line[start] == '\t') {
		start++
	}
	stop := start
	for stop < len(line) && line[stop] >= '0' && line[stop] <= '9' {
		stop++
	}

	value, err := strconv.ParseInt(line[start:stop], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return field, value, true
}

package procfs

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/phuslu/log"
)

// zram devices appear as /sys/block/zram0, zram1, ... and are assumed to be
// numbered sequentially, so the scan stops at the first missing device.
const maxZramDevices = 256

// ZramTotalKb sums the backing-store size (the third field of each device's
// mm_stat file, in bytes) across all zram devices and returns it in kB.
// Returns 0 when no zram devices exist.
func (fs FS) ZramTotalKb() int64 {
	var totalBytes int64

	for i := 0; i < maxZramDevices; i++ {
		device := fs.sysPath("block", fmt.Sprintf("zram%d", i))
		if _, err := os.Stat(device); err != nil {
			break
		}

		data, err := os.ReadFile(device + "/mm_stat")
		if err != nil {
			continue
		}

		fields := strings.Fields(string(data))
		if len(fields) < 3 {
			log.Error().Str("device", device).Msg("Malformed mm_stat file")
			continue
		}

		size, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			log.Error().Str("device", device).Str("value", fields[2]).
				Msg("Malformed mm_stat memory total")
			continue
		}
		totalBytes += size
	}

	return totalBytes / 1024
}

// Package procfs reads and parses the kernel pseudo-files the capture
// depends on: /proc/meminfo, per-process smaps, /proc/buddyinfo, zram
// mm_stat files, and the per-PID identity files (cmdline, status, cgroup).
//
// The parsers are hand-rolled single-pass scanners. smaps in particular is
// large and read once per process per tick, so the line parser avoids
// regexes and full string comparisons.
package procfs

import (
	"os"
	"path/filepath"
	"strconv"
)

// FS locates the proc and sys mount points. The zero value is not usable;
// construct with NewFS or NewFSWithRoots.
type FS struct {
	proc string
	sys  string
}

// NewFS returns an FS over the standard /proc and /sys mounts.
func NewFS() FS {
	return NewFSWithRoots("/proc", "/sys")
}

// NewFSWithRoots returns an FS rooted at the given directories. Tests use
// this to point the parsers at a synthetic tree.
func NewFSWithRoots(proc, sys string) FS {
	return FS{proc: proc, sys: sys}
}

func (fs FS) procPath(parts ...string) string {
	return filepath.Join(append([]string{fs.proc}, parts...)...)
}

func (fs FS) sysPath(parts ...string) string {
	return filepath.Join(append([]string{fs.sys}, parts...)...)
}

func (fs FS) pidPath(pid int, file string) string {
	return filepath.Join(fs.proc, strconv.Itoa(pid), file)
}

// Pids enumerates the live PIDs, i.e. the numeric directory entries under
// the proc root. Duplicates are impossible by construction.
func (fs FS) Pids() ([]int, error) {
	entries, err := os.ReadDir(fs.proc)
	if err != nil {
		return nil, err
	}

	pids := make([]int, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// PidExists reports whether /proc/<pid> still exists. Used for the cheap
// alive check.
func (fs FS) PidExists(pid int) bool {
	_, err := os.Stat(fs.procPath(strconv.Itoa(pid)))
	return err == nil
}

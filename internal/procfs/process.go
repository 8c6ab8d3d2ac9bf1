package procfs

import (
	"bufio"
	"os"
	"path"
	"strconv"
	"strings"
)

// Process is the identity of one observed process. The identity files
// (cmdline, status, cgroup) are read once at construction and cached; only
// the dead flag changes afterwards. A process that exits between enumeration
// and the reads here ends up with an empty Name, which callers use to skip
// it.
type Process struct {
	PID     int
	PPID    int
	Name    string
	Cmdline string

	// Container is the cgroup-derived container name, empty when the process
	// is not containerised. Service is the systemd service name, empty when
	// the process is not a service.
	Container string
	Service   string

	fs   FS
	dead bool
}

// Tgid resolves a thread id to its thread-group (main process) id via the
// Tgid field of the thread's status file. Returns false when the thread has
// exited or the field cannot be read.
func (fs FS) Tgid(tid int) (int, bool) {
	f, err := os.Open(fs.pidPath(tid, "status"))
	if err != nil {
		return 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if rest, ok := strings.CutPrefix(scanner.Text(), "Tgid:"); ok {
			tgid, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				return 0, false
			}
			return tgid, true
		}
	}
	return 0, false
}

// NewProcess resolves the identity of a PID.
func (fs FS) NewProcess(pid int) *Process {
	p := &Process{PID: pid, fs: fs}

	raw, err := os.ReadFile(fs.pidPath(pid, "cmdline"))
	if err == nil && len(raw) > 0 {
		// The name is the content up to the first embedded NUL; the cmdline
		// is the full content with NUL separators turned into spaces and the
		// trailing NUL removed.
		if i := strings.IndexByte(string(raw), 0); i >= 0 {
			p.Name = string(raw[:i])
		} else {
			p.Name = string(raw)
		}
		cmdline := strings.TrimRight(string(raw), "\x00")
		p.Cmdline = strings.ReplaceAll(cmdline, "\x00", " ")
	}

	p.PPID = p.parentPid()

	// cpuset is the reliable controller for container membership: systemd
	// does not add services to it, and the gpu controller is sometimes
	// reused by other processes to track allocations.
	p.Container = p.cgroupPath("cpuset")
	p.Service = p.systemdService()

	return p
}

// SameProcessAs reports identity equality. PIDs are reused by the kernel
// over long capture runs, so identity is (pid, cmdline), not pid alone.
func (p *Process) SameProcessAs(o *Process) bool {
	return p.PID == o.PID && p.Cmdline == o.Cmdline
}

// NameWithoutPath returns the process name with any leading directory
// stripped.
func (p *Process) NameWithoutPath() string {
	if p.Name == "" {
		return ""
	}
	return path.Base(p.Name)
}

// IsDead reports whether the process has been observed to have exited.
func (p *Process) IsDead() bool {
	return p.dead
}

// UpdateAliveStatus refreshes the dead flag with a cheap existence check of
// the /proc/<pid> directory. The flag is monotonic: once dead, stays dead.
func (p *Process) UpdateAliveStatus() {
	if p.dead {
		return
	}
	p.dead = !p.fs.PidExists(p.PID)
}

// parentPid reads the PPid field from the status file. Returns 0 when the
// file is unreadable or the field is missing.
func (p *Process) parentPid() int {
	f, err := os.Open(p.fs.pidPath(p.PID, "status"))
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if rest, ok := strings.CutPrefix(line, "PPid:"); ok {
			ppid, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				return 0
			}
			return ppid
		}
	}
	return 0
}

// systemdService resolves the service name from the pids controller, which
// systemd always adds services to. A path without a system.slice component
// belongs to something we cannot name (likely a container), reported as
// "Unknown".
func (p *Process) systemdService() string {
	slice := p.cgroupPath("pids")
	if slice == "" {
		return ""
	}

	const prefix = "system.slice/"
	pos := strings.Index(slice, prefix)
	if pos < 0 {
		return "Unknown"
	}
	return slice[pos+len(prefix):]
}

// cgroupPath returns the cgroup path of the first /proc/<pid>/cgroup line
// for the given controller, with the leading slash stripped. An empty
// string means the process is in the controller's root cgroup (or the file
// was unreadable, expected when the process has died).
func (p *Process) cgroupPath(controller string) string {
	f, err := os.Open(p.fs.pidPath(p.PID, "cgroup"))
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		// Lines look like "3:cpuset:/com.example.app".
		parts := strings.SplitN(scanner.Text(), ":", 3)
		if len(parts) != 3 {
			continue
		}
		if parts[1] != controller {
			continue
		}
		return strings.TrimPrefix(parts[2], "/")
	}
	return ""
}

package procfs

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

// writeProcessFiles lays out the identity files for one synthetic process.
func writeProcessFiles(t *testing.T, fs FS, pid int, cmdline []byte, status, cgroup string) {
	t.Helper()
	dir := strconv.Itoa(pid)
	writeProcFile(t, fs, filepath.Join(dir, "cmdline"), string(cmdline))
	if status != "" {
		writeProcFile(t, fs, filepath.Join(dir, "status"), status)
	}
	if cgroup != "" {
		writeProcFile(t, fs, filepath.Join(dir, "cgroup"), cgroup)
	}
}

func TestNewProcessIdentity(t *testing.T) {
	fs := newTestFS(t)
	writeProcessFiles(t, fs, 100,
		[]byte("/usr/bin/browser\x00--profile\x00main\x00"),
		"Name:\tbrowser\nPPid:\t1\n",
		"5:pids:/system.slice/browser.service\n3:cpuset:/com.example.app\n")

	p := fs.NewProcess(100)
	assert.Equal(t, 100, p.PID)
	assert.Equal(t, 1, p.PPID)
	assert.Equal(t, "/usr/bin/browser", p.Name)
	assert.Equal(t, "/usr/bin/browser --profile main", p.Cmdline)
	assert.Equal(t, "browser", p.NameWithoutPath())
	assert.Equal(t, "com.example.app", p.Container)
	assert.Equal(t, "browser.service", p.Service)
}

func TestNewProcessGoneBetweenEnumerationAndRead(t *testing.T) {
	fs := newTestFS(t)

	p := fs.NewProcess(12345)
	assert.Empty(t, p.Name)
	assert.Empty(t, p.Cmdline)
	assert.Equal(t, 0, p.PPID)
}

func TestSameProcessAsNeedsPidAndCmdline(t *testing.T) {
	a := &Process{PID: 10, Cmdline: "/bin/app one"}
	b := &Process{PID: 10, Cmdline: "/bin/app one"}
	c := &Process{PID: 10, Cmdline: "/bin/app two"} // reused PID
	d := &Process{PID: 11, Cmdline: "/bin/app one"}

	assert.True(t, a.SameProcessAs(b))
	assert.False(t, a.SameProcessAs(c))
	assert.False(t, a.SameProcessAs(d))
}

func TestUpdateAliveStatusIsMonotonic(t *testing.T) {
	fs := newTestFS(t)
	writeProcessFiles(t, fs, 55, []byte("sleeper\x00"), "", "")

	p := fs.NewProcess(55)
	p.UpdateAliveStatus()
	assert.False(t, p.IsDead())

	// Process exits.
	assert.NoError(t, os.RemoveAll(filepath.Join(fs.proc, "55")))
	p.UpdateAliveStatus()
	assert.True(t, p.IsDead())

	// PID reuse must not resurrect it.
	writeProcessFiles(t, fs, 55, []byte("imposter\x00"), "", "")
	p.UpdateAliveStatus()
	assert.True(t, p.IsDead())
}

func TestSystemdServiceOutsideSystemSlice(t *testing.T) {
	fs := newTestFS(t)
	writeProcessFiles(t, fs, 60, []byte("contained\x00"), "",
		"5:pids:/docker/abcdef\n")

	p := fs.NewProcess(60)
	assert.Equal(t, "Unknown", p.Service)
}

func TestSystemdServiceMissingCgroup(t *testing.T) {
	fs := newTestFS(t)
	writeProcessFiles(t, fs, 61, []byte("bare\x00"), "", "")

	p := fs.NewProcess(61)
	assert.Empty(t, p.Service)
	assert.Empty(t, p.Container)
}

func TestTgid(t *testing.T) {
	fs := newTestFS(t)
	writeProcFile(t, fs, "321/status", "Name:\tworker\nTgid:\t300\nPid:\t321\n")

	tgid, ok := fs.Tgid(321)
	assert.True(t, ok)
	assert.Equal(t, 300, tgid)

	_, ok = fs.Tgid(999)
	assert.False(t, ok)
}

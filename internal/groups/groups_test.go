package groups

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGroups = `{
    "processes": [
        {"group": "AV", "processes": ["^vdec", "audiod"]},
        {"group": "Browser", "processes": ["WPEWebProcess", "^/usr/bin/wpe"]}
    ],
    "containers": [
        {"group": "Apps", "containers": ["com\\.example\\..*"]}
    ]
}`

func TestParseAndResolve(t *testing.T) {
	m, err := Parse([]byte(sampleGroups))
	require.NoError(t, err)

	g, ok := m.Resolve("", "vdec_worker", "/usr/sbin/vdec_worker")
	assert.True(t, ok)
	assert.Equal(t, "AV", g)

	// Cmdline is the fallback when the basename doesn't match.
	g, ok = m.Resolve("", "wpe", "/usr/bin/wpe --browser")
	assert.True(t, ok)
	assert.Equal(t, "Browser", g)

	_, ok = m.Resolve("", "unrelated", "/bin/unrelated")
	assert.False(t, ok)
}

func TestResolveContainerTakesPriority(t *testing.T) {
	m, err := Parse([]byte(sampleGroups))
	require.NoError(t, err)

	// Inside the container, the container rule wins over the process rule.
	g, ok := m.Resolve("com.example.player", "WPEWebProcess", "WPEWebProcess")
	assert.True(t, ok)
	assert.Equal(t, "Apps", g)

	// Outside a container the same binary falls back to the process rule.
	g, ok = m.Resolve("", "WPEWebProcess", "WPEWebProcess")
	assert.True(t, ok)
	assert.Equal(t, "Browser", g)

	// An unmatched container name still falls through to process rules.
	g, ok = m.Resolve("org.other.app", "WPEWebProcess", "WPEWebProcess")
	assert.True(t, ok)
	assert.Equal(t, "Browser", g)
}

func TestParseSkipsMalformedEntries(t *testing.T) {
	m, err := Parse([]byte(`{
        "processes": [
            {"processes": ["x"]},
            {"group": "Empty"},
            {"group": "BadRegex", "processes": ["("]},
            {"group": "Good", "processes": ["app"]}
        ]
    }`))
	require.NoError(t, err)

	g, ok := m.ProcessGroup("app")
	assert.True(t, ok)
	assert.Equal(t, "Good", g)

	_, ok = m.ProcessGroup("x")
	assert.False(t, ok)
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse([]byte("{not json"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleGroups), 0o644))

	m, err := Load(path)
	require.NoError(t, err)

	g, ok := m.ContainerGroup("com.example.player")
	assert.True(t, ok)
	assert.Equal(t, "Apps", g)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

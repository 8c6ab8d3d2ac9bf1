// Package groups maps process and container names to logical group labels
// via regex lists loaded from a JSON file, so related processes (e.g. all
// A/V pipeline daemons) can be reported as one slice.
package groups

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	plog "github.com/phuslu/log"

	"memcapture/internal/logger"
)

// group is one named group with the patterns that match its members.
// Matching uses unanchored regex search semantics.
type group struct {
	name     string
	patterns []*regexp.Regexp
}

func (g group) matches(name string) bool {
	for _, p := range g.patterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

// Manager resolves process/container names to group labels.
type Manager struct {
	processGroups   []group
	containerGroups []group
	log             plog.Logger
}

type groupEntry struct {
	Group      string   `json:"group"`
	Processes  []string `json:"processes"`
	Containers []string `json:"containers"`
}

// Load reads and compiles a groups file. An unreadable or syntactically
// invalid file is an error (the caller treats it as fatal); individual
// malformed entries are logged and skipped.
func Load(path string) (*Manager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read groups file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Manager from raw groups JSON of the shape:
//
//	{"processes":[{"group":"AV","processes":["^vdec","audiod"]}],
//	 "containers":[{"group":"Apps","containers":["com\\.example\\..*"]}]}
func Parse(data []byte) (*Manager, error) {
	var file struct {
		Processes  []groupEntry `json:"processes"`
		Containers []groupEntry `json:"containers"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse groups JSON: %w", err)
	}

	m := &Manager{log: logger.NewLoggerWithContext("groups")}

	for _, entry := range file.Processes {
		if g, ok := m.compile(entry, entry.Processes); ok {
			m.processGroups = append(m.processGroups, g)
		}
	}
	for _, entry := range file.Containers {
		if g, ok := m.compile(entry, entry.Containers); ok {
			m.containerGroups = append(m.containerGroups, g)
		}
	}

	m.log.Info().
		Int("process_groups", len(m.processGroups)).
		Int("container_groups", len(m.containerGroups)).
		Msg("Loaded groups")
	return m, nil
}

func (m *Manager) compile(entry groupEntry, patterns []string) (group, bool) {
	if entry.Group == "" {
		m.log.Warn().Msg("Found malformed group - missing 'group' field")
		return group{}, false
	}
	if len(patterns) == 0 {
		m.log.Warn().Str("group", entry.Group).Msg("Malformed group - no patterns")
		return group{}, false
	}

	g := group{name: entry.Group}
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			m.log.Warn().Str("group", entry.Group).Str("pattern", pattern).Err(err).
				Msg("Skipping invalid group pattern")
			continue
		}
		g.patterns = append(g.patterns, re)
	}
	if len(g.patterns) == 0 {
		return group{}, false
	}
	return g, true
}

// ProcessGroup returns the group label matching the given process name or
// cmdline.
func (m *Manager) ProcessGroup(name string) (string, bool) {
	for _, g := range m.processGroups {
		if g.matches(name) {
			return g.name, true
		}
	}
	return "", false
}

// ContainerGroup returns the group label matching the given container name.
func (m *Manager) ContainerGroup(name string) (string, bool) {
	for _, g := range m.containerGroups {
		if g.matches(name) {
			return g.name, true
		}
	}
	return "", false
}

// Resolve works out the group for a process. Container is intentionally
// prioritised over everything else so a broad process rule (e.g.
// "WPEWebProcess") doesn't swallow containerised instances of the same
// binary; then the basename of the process, then the full cmdline.
func (m *Manager) Resolve(container, nameWithoutPath, cmdline string) (string, bool) {
	if container != "" {
		if g, ok := m.ContainerGroup(container); ok {
			return g, true
		}
	}
	if g, ok := m.ProcessGroup(nameWithoutPath); ok {
		return g, true
	}
	return m.ProcessGroup(cmdline)
}

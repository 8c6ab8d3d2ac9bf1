// Package report collects the flushed measurement results into the final
// report document and renders it as HTML and JSON.
package report

import (
	"memcapture/internal/stats"
)

// Cell is one column of a dataset row: either a literal string under a
// column label, or a measurement rendered as three Min/Max/Average columns.
type Cell struct {
	label string
	text  string
	m     *stats.Measurement
}

// Text returns a literal cell.
func Text(label, value string) Cell {
	return Cell{label: label, text: value}
}

// Value returns a measurement cell. The measurement's name is the column
// heading base.
func Value(m *stats.Measurement) Cell {
	return Cell{m: m}
}

// Row is one ordered dataset row.
type Row []Cell

// ProcessRecord is the flushed per-process result handed over by the
// process metric.
type ProcessRecord struct {
	PID       int
	PPID      int
	Name      string
	Cmdline   string
	Service   string
	Container string

	Pss      *stats.Measurement
	Rss      *stats.Measurement
	Uss      *stats.Measurement
	Vss      *stats.Measurement
	Swap     *stats.Measurement
	SwapPss  *stats.Measurement
	SwapZram *stats.Measurement
	Locked   *stats.Measurement
}

// Recorder is the append-only surface the metrics flush their accumulated
// statistics into once collection has stopped.
type Recorder interface {
	// AddDataset appends a named table of rows. An empty row list is a no-op.
	AddDataset(name string, rows []Row)

	// AddProcesses appends the per-process results.
	AddProcesses(records []ProcessRecord)

	// SetAverageLinuxMemoryUsage records the whole-system average used
	// memory, in kB.
	SetAverageLinuxMemoryUsage(kb int)

	// AddToAccumulatedMemoryUsage adds a scalar (in kB) to the running
	// grand-total of estimated memory usage.
	AddToAccumulatedMemoryUsage(kb float64)
}

// Package stats provides the streaming min/max/average accumulator that every
// collected quantity in the capture is reduced into.
package stats

import (
	"encoding/json"
	"math"
)

// Measurement accumulates data points for a single named quantity and keeps a
// running minimum, maximum and mean. Updates are append-only; there is no
// retraction. A Measurement is owned by the collection worker that created it
// and is not safe for concurrent use.
type Measurement struct {
	name  string
	count uint64
	min   float64
	max   float64
	total float64
}

// NewMeasurement creates an empty Measurement. The name doubles as the column
// heading when the measurement is rendered into a report dataset.
func NewMeasurement(name string) *Measurement {
	return &Measurement{
		name: name,
		min:  math.MaxFloat64,
		max:  -math.MaxFloat64,
	}
}

// AddDataPoint folds one observation into the running statistics in O(1).
//
// The running total is unbounded and not checked for overflow; for the
// intended run durations (minutes to hours at seconds-scale ticks) a float64
// total is nowhere near its limits.
func (m *Measurement) AddDataPoint(value float64) {
	if value < m.min {
		m.min = value
	}
	if value > m.max {
		m.max = value
	}
	m.total += value
	m.count++
}

// Name returns the quantity name given at construction.
func (m *Measurement) Name() string {
	return m.name
}

// Count returns the number of data points folded in so far.
func (m *Measurement) Count() uint64 {
	return m.count
}

// Min returns the smallest observed value. Undefined sentinel when Count is 0.
func (m *Measurement) Min() float64 {
	return m.min
}

// Max returns the largest observed value. Undefined sentinel when Count is 0.
func (m *Measurement) Max() float64 {
	return m.max
}

// Average returns total/count. 0 when no data points have been added.
func (m *Measurement) Average() float64 {
	if m.count == 0 {
		return 0
	}
	return m.total / float64(m.count)
}

// MinRounded returns Min rounded to the nearest integer, or 0 when empty so
// the sentinel never leaks into reports.
func (m *Measurement) MinRounded() int {
	if m.count == 0 {
		return 0
	}
	return int(math.Round(m.min))
}

// MaxRounded returns Max rounded to the nearest integer, or 0 when empty.
func (m *Measurement) MaxRounded() int {
	if m.count == 0 {
		return 0
	}
	return int(math.Round(m.max))
}

// AverageRounded returns Average rounded to the nearest integer.
func (m *Measurement) AverageRounded() int {
	return int(math.Round(m.Average()))
}

// Summary is the rounded report representation of a measurement.
type Summary struct {
	Min     int `json:"min"`
	Max     int `json:"max"`
	Average int `json:"average"`
}

// Summarize returns the rounded min/max/average triple used by reports.
func (m *Measurement) Summarize() Summary {
	return Summary{
		Min:     m.MinRounded(),
		Max:     m.MaxRounded(),
		Average: m.AverageRounded(),
	}
}

// MarshalJSON renders the measurement as its rounded summary.
func (m *Measurement) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Summarize())
}

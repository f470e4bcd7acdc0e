// Package series implements the bounded rolling window of samples that feeds
// the trend chart. The buffer is append-only FIFO: once at capacity, each
// append evicts the oldest entry, so labels and values stay index-aligned.
package series

import (
	"fmt"

	"github.com/voltlab/battwatch/internal/telemetry"
)

// Metric names one plottable value series derived from the buffered samples.
type Metric string

const (
	MetricVoltage     Metric = "voltage"
	MetricCurrent     Metric = "current"
	MetricTemperature Metric = "temperature"
	MetricBattery     Metric = "battery"
	MetricTempLimit   Metric = "temp_limit"
	// MetricTempHeadroom plots temperature minus the configured limit, the
	// comparison series the chart overlays on the trip line.
	MetricTempHeadroom Metric = "temp_headroom"
)

// DefaultWindow is the reference chart window size.
const DefaultWindow = 30

type entry struct {
	label  string
	sample telemetry.Sample
}

// Buffer is a fixed-capacity rolling window. Not safe for concurrent use;
// the owning session serializes all access.
type Buffer struct {
	capacity int
	entries  []entry
}

// NewBuffer creates an empty buffer. Capacities below 1 fall back to
// DefaultWindow.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = DefaultWindow
	}
	return &Buffer{
		capacity: capacity,
		entries:  make([]entry, 0, capacity),
	}
}

// Append pushes one labeled sample, evicting the oldest entry when the
// window is full.
func (b *Buffer) Append(label string, s telemetry.Sample) {
	b.entries = append(b.entries, entry{label: label, sample: s})
	if len(b.entries) > b.capacity {
		// Shift rather than re-slice so eviction keeps reusing the same
		// backing array.
		copy(b.entries, b.entries[1:])
		b.entries = b.entries[:b.capacity]
	}
}

// Len returns the number of buffered samples.
func (b *Buffer) Len() int {
	return len(b.entries)
}

// Capacity returns the window size N.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// View is a detached snapshot of one metric series: labels and values in
// append order, same length, plus the display range for the chart axis.
type View struct {
	Metric Metric    `json:"metric"`
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
	Min    float64   `json:"min"`
	Max    float64   `json:"max"`
}

// Select extracts the named metric as a View. The returned slices are copies;
// callers may iterate or re-read them freely while the buffer keeps moving.
func (b *Buffer) Select(m Metric) (View, error) {
	pick, err := picker(m)
	if err != nil {
		return View{}, err
	}

	v := View{
		Metric: m,
		Labels: make([]string, len(b.entries)),
		Values: make([]float64, len(b.entries)),
	}
	for i, e := range b.entries {
		v.Labels[i] = e.label
		v.Values[i] = pick(e.sample)
	}
	v.Min, v.Max = displayRange(m, v.Values)
	return v, nil
}

func picker(m Metric) (func(telemetry.Sample) float64, error) {
	switch m {
	case MetricVoltage:
		return func(s telemetry.Sample) float64 { return s.Voltage }, nil
	case MetricCurrent:
		return func(s telemetry.Sample) float64 { return s.Current }, nil
	case MetricTemperature:
		return func(s telemetry.Sample) float64 { return s.Temperature }, nil
	case MetricBattery:
		return func(s telemetry.Sample) float64 { return s.BatteryPercent }, nil
	case MetricTempLimit:
		return func(s telemetry.Sample) float64 { return s.TemperatureLimit }, nil
	case MetricTempHeadroom:
		return func(s telemetry.Sample) float64 { return s.TempHeadroom() }, nil
	default:
		return nil, fmt.Errorf("unknown metric %q", m)
	}
}

// displayRange computes the chart axis bounds for a metric: window min/max
// padded by a per-metric margin. Battery percent is pinned to [0,100]
// regardless of the data. An empty window yields just the margin around zero.
func displayRange(m Metric, values []float64) (float64, float64) {
	if m == MetricBattery {
		return 0, 100
	}

	var margin float64
	switch m {
	case MetricVoltage:
		margin = 0.5
	case MetricCurrent:
		margin = 0.1
	default:
		// temperature-class metrics
		margin = 2.0
	}

	var lo, hi float64
	for i, v := range values {
		if i == 0 || v < lo {
			lo = v
		}
		if i == 0 || v > hi {
			hi = v
		}
	}
	return lo - margin, hi + margin
}

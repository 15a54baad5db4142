package metrics

import (
	"math"

	"github.com/san-kum/robosim/internal/sim"
)

// TrackingError is the root mean square of target minus position over every
// joint sample.
type TrackingError struct {
	name    string
	sumSq   float64
	samples int
}

func NewTrackingError() *TrackingError {
	return &TrackingError{name: "tracking_rms"}
}

func (m *TrackingError) Name() string { return m.name }

func (m *TrackingError) OnTick(f sim.Frame) {
	for i, p := range f.Positions {
		if i >= len(f.Targets) {
			break
		}
		e := f.Targets[i] - p
		m.sumSq += e * e
		m.samples++
	}
}

func (m *TrackingError) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return math.Sqrt(m.sumSq / float64(m.samples))
}

func (m *TrackingError) Reset() {
	m.sumSq = 0
	m.samples = 0
}

type PeakVelocity struct {
	name string
	peak float64
}

func NewPeakVelocity() *PeakVelocity {
	return &PeakVelocity{name: "peak_velocity"}
}

func (m *PeakVelocity) Name() string { return m.name }

func (m *PeakVelocity) OnTick(f sim.Frame) {
	for _, v := range f.Velocities {
		m.peak = math.Max(m.peak, math.Abs(v))
	}
}

func (m *PeakVelocity) Value() float64 { return m.peak }

func (m *PeakVelocity) Reset() { m.peak = 0 }

// RootDrift is the largest horizontal distance of the root from where it
// stood on the first observed frame.
type RootDrift struct {
	name   string
	origin [3]float64
	seen   bool
	max    float64
}

func NewRootDrift() *RootDrift {
	return &RootDrift{name: "root_drift"}
}

func (m *RootDrift) Name() string { return m.name }

func (m *RootDrift) OnTick(f sim.Frame) {
	if !m.seen {
		m.origin = f.Root
		m.seen = true
		return
	}
	d := math.Hypot(f.Root[0]-m.origin[0], f.Root[2]-m.origin[2])
	m.max = math.Max(m.max, d)
}

func (m *RootDrift) Value() float64 { return m.max }

func (m *RootDrift) Reset() {
	m.seen = false
	m.max = 0
}

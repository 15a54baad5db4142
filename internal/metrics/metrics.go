// Package metrics summarises an episode frame by frame. Every metric is a
// sim.Observer, so it can ride along a live session or replay recorded
// frames.
package metrics

import (
	"github.com/san-kum/robosim/internal/sim"
)

type Metric interface {
	sim.Observer
	Name() string
	Value() float64
	Reset()
}

// Standard returns the metrics recorded with every saved run.
func Standard() []Metric {
	return []Metric{
		NewTrackingError(),
		NewPeakVelocity(),
		NewRootDrift(),
		NewStability(0.05),
	}
}

// Replay feeds recorded frames through ms and returns their values by name.
func Replay(frames []sim.Frame, ms ...Metric) map[string]float64 {
	for _, f := range frames {
		for _, m := range ms {
			m.OnTick(f)
		}
	}
	return Values(ms...)
}

func Values(ms ...Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}

package metrics

import (
	"math"

	"github.com/san-kum/robosim/internal/sim"
)

// Stability is the fraction of frames in which every joint moved slower
// than the threshold.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) OnTick(f sim.Frame) {
	s.samples++
	for _, v := range f.Velocities {
		if math.Abs(v) > s.threshold {
			s.violations++
			break
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

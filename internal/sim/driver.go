package sim

import (
	"math"
	"math/rand"
)

// SineDriver swings every joint sinusoidally with a per-joint phase drawn
// from the seed.
type SineDriver struct {
	Amplitude float64
	Frequency float64
	phases    map[string]float64
	rng       *rand.Rand
}

func NewSineDriver(amplitude, frequency float64, seed int64) *SineDriver {
	return &SineDriver{
		Amplitude: amplitude,
		Frequency: frequency,
		phases:    make(map[string]float64),
		rng:       rand.New(rand.NewSource(seed)),
	}
}

func (d *SineDriver) Targets(tick int, t float64, joints []string) map[string]float64 {
	out := make(map[string]float64, len(joints))
	for _, name := range joints {
		ph, ok := d.phases[name]
		if !ok {
			ph = d.rng.Float64() * 2 * math.Pi
			d.phases[name] = ph
		}
		out[name] = d.Amplitude * math.Sin(2*math.Pi*d.Frequency*t+ph)
	}
	return out
}

// Hold keeps whatever targets were last set.
type Hold struct{}

func (Hold) Targets(int, float64, []string) map[string]float64 { return nil }

package sim

import (
	"time"

	"github.com/san-kum/robosim/internal/obstacles"
)

// Frame is the observable state after one tick. Positions and Velocities
// follow Result.Joints.
type Frame struct {
	Tick       int
	Time       float64
	Root       [3]float64
	RootQuat   [4]float64
	Positions  []float64
	Velocities []float64
	Targets    []float64
	Colliders  int
}

type Observer interface {
	OnTick(f Frame)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Frame)

func (f ObserverFunc) OnTick(fr Frame) { f(fr) }

// Driver chooses joint targets before each tick.
type Driver interface {
	Targets(tick int, t float64, joints []string) map[string]float64
}

type Result struct {
	Robot     string
	Engine    string
	Physics   bool
	Seed      int64
	Joints    []string
	Frames    []Frame
	Obstacles obstacles.Stats
	Wall      time.Duration
}

// Final returns the last recorded frame.
func (r *Result) Final() (Frame, bool) {
	if len(r.Frames) == 0 {
		return Frame{}, false
	}
	return r.Frames[len(r.Frames)-1], true
}

package viz

import (
	"errors"
	"fmt"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/robosim/internal/sim"
)

var ErrNoFrames = errors.New("viz: no frames to plot")

// JointSeries pulls the position and target traces of one joint out of
// recorded frames.
func JointSeries(joints []string, frames []sim.Frame, name string) (pos, target []float64, err error) {
	col := -1
	for i, j := range joints {
		if j == name {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, nil, fmt.Errorf("viz: unknown joint %q", name)
	}
	if len(frames) == 0 {
		return nil, nil, ErrNoFrames
	}
	pos = make([]float64, 0, len(frames))
	target = make([]float64, 0, len(frames))
	for _, f := range frames {
		if col >= len(f.Positions) || col >= len(f.Targets) {
			continue
		}
		pos = append(pos, f.Positions[col])
		target = append(target, f.Targets[col])
	}
	if len(pos) == 0 {
		return nil, nil, ErrNoFrames
	}
	return pos, target, nil
}

// PlotJoint draws a joint's position (blue) against its target (red).
func PlotJoint(joints []string, frames []sim.Frame, name string, width, height int) (string, error) {
	pos, target, err := JointSeries(joints, frames, name)
	if err != nil {
		return "", err
	}
	return asciigraph.PlotMany([][]float64{pos, target},
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(3),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red),
		asciigraph.Caption(name+" position / target"),
	), nil
}

var axisNames = [3]string{"x", "y", "z"}

// PlotRoot draws one coordinate of the root position over time.
func PlotRoot(frames []sim.Frame, axis, width, height int) (string, error) {
	if axis < 0 || axis > 2 {
		return "", fmt.Errorf("viz: axis %d out of range", axis)
	}
	if len(frames) == 0 {
		return "", ErrNoFrames
	}
	data := make([]float64, len(frames))
	for i, f := range frames {
		data[i] = f.Root[axis]
	}
	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(3),
		asciigraph.Caption("root "+axisNames[axis]),
	), nil
}

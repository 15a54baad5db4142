package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/san-kum/robosim/internal/sim"
)

var fixedColumns = []string{
	"tick", "time",
	"root_x", "root_y", "root_z",
	"quat_w", "quat_x", "quat_y", "quat_z",
	"colliders",
}

// WriteFrames writes one CSV row per frame. Joint columns come in
// position, velocity, target triples in joints order.
func WriteFrames(w io.Writer, joints []string, frames []sim.Frame) error {
	cw := csv.NewWriter(w)

	header := append([]string{}, fixedColumns...)
	for _, j := range joints {
		header = append(header, "pos_"+j, "vel_"+j, "target_"+j)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, f := range frames {
		row := []string{strconv.Itoa(f.Tick), ftoa(f.Time)}
		for _, v := range f.Root {
			row = append(row, ftoa(v))
		}
		for _, v := range f.RootQuat {
			row = append(row, ftoa(v))
		}
		row = append(row, strconv.Itoa(f.Colliders))
		for i := range joints {
			row = append(row, ftoa(at(f.Positions, i)), ftoa(at(f.Velocities, i)), ftoa(at(f.Targets, i)))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadFrames parses what WriteFrames wrote.
func ReadFrames(r io.Reader) ([]string, []sim.Frame, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("storage: frames file has no header")
	}

	header := records[0]
	if len(header) < len(fixedColumns) || (len(header)-len(fixedColumns))%3 != 0 {
		return nil, nil, fmt.Errorf("storage: unexpected frames header")
	}
	var joints []string
	for i := len(fixedColumns); i < len(header); i += 3 {
		joints = append(joints, strings.TrimPrefix(header[i], "pos_"))
	}

	frames := make([]sim.Frame, 0, len(records)-1)
	for n, rec := range records[1:] {
		vals := make([]float64, len(rec))
		for i, s := range rec {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("storage: row %d column %s: %w", n+1, header[i], err)
			}
			vals[i] = v
		}
		f := sim.Frame{
			Tick:       int(vals[0]),
			Time:       vals[1],
			Root:       [3]float64{vals[2], vals[3], vals[4]},
			RootQuat:   [4]float64{vals[5], vals[6], vals[7], vals[8]},
			Colliders:  int(vals[9]),
			Positions:  make([]float64, len(joints)),
			Velocities: make([]float64, len(joints)),
			Targets:    make([]float64, len(joints)),
		}
		for j := range joints {
			base := len(fixedColumns) + 3*j
			f.Positions[j] = vals[base]
			f.Velocities[j] = vals[base+1]
			f.Targets[j] = vals[base+2]
		}
		frames = append(frames, f)
	}
	return joints, frames, nil
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func at(xs []float64, i int) float64 {
	if i < len(xs) {
		return xs[i]
	}
	return 0
}

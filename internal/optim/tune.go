package optim

import (
	"context"
	"fmt"
	"sort"

	"github.com/san-kum/robosim/internal/config"
	"github.com/san-kum/robosim/internal/metrics"
	"github.com/san-kum/robosim/internal/sim"
	"github.com/san-kum/robosim/internal/urdf"
)

// Gains maps tunable parameter names onto the config fields they set.
var Gains = map[string]func(*config.Config, float64){
	"kinematic.kp":       func(c *config.Config, v float64) { c.Robot.Kinematic.Kp = v },
	"kinematic.kd":       func(c *config.Config, v float64) { c.Robot.Kinematic.Kd = v },
	"kinematic.max_acc":  func(c *config.Config, v float64) { c.Robot.Kinematic.MaxAcceleration = v },
	"physics.kp":         func(c *config.Config, v float64) { c.Robot.Physics.Kp = v },
	"physics.kd":         func(c *config.Config, v float64) { c.Robot.Physics.Kd = v },
	"physics.max_effort": func(c *config.Config, v float64) { c.Robot.Physics.MaxEffort = v },
}

func GainNames() []string {
	names := make([]string, 0, len(Gains))
	for k := range Gains {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Apply returns a copy of base with params set.
func Apply(base *config.Config, params map[string]float64) (*config.Config, error) {
	c := *base
	for name, v := range params {
		set, ok := Gains[name]
		if !ok {
			return nil, fmt.Errorf("optim: unknown parameter %q (available: %v)", name, GainNames())
		}
		set(&c, v)
	}
	return &c, nil
}

// TrackingObjective scores gains by the RMS tracking error of one episode
// driven by the driver built for base's seed.
func TrackingObjective(desc *urdf.Robot, base *config.Config, drivers sim.DriverFactory, opts ...sim.Option) Objective {
	return func(ctx context.Context, params map[string]float64) (float64, error) {
		cfg, err := Apply(base, params)
		if err != nil {
			return 0, err
		}
		runOpts := append([]sim.Option{}, opts...)
		if drivers != nil {
			runOpts = append(runOpts, sim.WithDriver(drivers(cfg.Sim.Seed)))
		}
		s, err := sim.NewSession(desc, cfg, runOpts...)
		if err != nil {
			return 0, err
		}
		defer s.Close()

		m := metrics.NewTrackingError()
		s.AddObserver(m)
		if _, err := s.Run(ctx, cfg.Sim.Ticks); err != nil {
			return 0, err
		}
		return m.Value(), nil
	}
}

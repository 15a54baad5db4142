package sim

import (
	"context"
	"runtime"

	"github.com/san-kum/robosim/internal/config"
	"github.com/san-kum/robosim/internal/urdf"
	"golang.org/x/sync/errgroup"
)

// DriverFactory builds the driver for the run with the given seed.
type DriverFactory func(seed int64) Driver

// RunEnsemble runs n independent episodes of desc, seeds counting up from
// cfg.Sim.Seed, each in its own session and physics world. Results are in
// seed order. The first failure cancels the remaining runs.
func RunEnsemble(ctx context.Context, desc *urdf.Robot, cfg *config.Config, n int, drivers DriverFactory, opts ...Option) ([]*Result, error) {
	results := make([]*Result, n)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i := 0; i < n; i++ {
		c := *cfg
		c.Sim.Seed = cfg.Sim.Seed + int64(i)
		i := i
		g.Go(func() error {
			runOpts := append([]Option{}, opts...)
			if drivers != nil {
				runOpts = append(runOpts, WithDriver(drivers(c.Sim.Seed)))
			}
			s, err := NewSession(desc, &c, runOpts...)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.Run(ctx, c.Sim.Ticks)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

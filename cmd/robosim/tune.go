package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/san-kum/robosim/internal/logging"
	"github.com/san-kum/robosim/internal/optim"
	"github.com/spf13/cobra"
)

// parseGrid reads "name=v1,v2" specs.
func parseGrid(specs []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(specs))
	ranges := make([][]float64, 0, len(specs))
	for _, spec := range specs {
		name, list, ok := strings.Cut(spec, "=")
		if !ok || name == "" || list == "" {
			return nil, nil, fmt.Errorf("bad --param %q, want name=v1,v2,...", spec)
		}
		var vals []float64
		for _, f := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("bad value in --param %q: %w", spec, err)
			}
			vals = append(vals, v)
		}
		names = append(names, name)
		ranges = append(ranges, vals)
	}
	return names, ranges, nil
}

func tuneGains(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Log.Level = "warn"
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer log.Sync()

	desc, _, err := loadRobot(args[0])
	if err != nil {
		return err
	}
	names, ranges, err := parseGrid(tuneParams)
	if err != nil {
		return err
	}
	zeros := make(map[string]float64, len(names))
	for _, name := range names {
		zeros[name] = 0
	}
	if _, err := optim.Apply(cfg, zeros); err != nil {
		return err
	}
	drivers, err := driverFactory()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	g := optim.NewGridSearch(names, ranges)
	best, val, err := g.Search(ctx, optim.TrackingObjective(desc, cfg, drivers, sessionOptions(log)...))
	if err != nil {
		return err
	}

	fmt.Printf("best tracking rms %.5f", val)
	if n := g.Failures(); n > 0 {
		fmt.Printf(" (%d combinations failed)", n)
	}
	fmt.Println()
	for _, name := range names {
		fmt.Printf("  %s = %g\n", name, best[name])
	}
	return nil
}

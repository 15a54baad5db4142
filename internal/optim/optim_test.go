package optim

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/san-kum/robosim/internal/config"
	"github.com/san-kum/robosim/internal/engine/enginetest"
	"github.com/san-kum/robosim/internal/sim"
	"github.com/san-kum/robosim/internal/urdf"
)

func TestGridSearchFindsMinimum(t *testing.T) {
	g := NewGridSearch([]string{"a", "b"}, [][]float64{{1, 2, 3}, {0, 1}})
	calls := 0
	best, val, err := g.Search(context.Background(), func(_ context.Context, p map[string]float64) (float64, error) {
		calls++
		da, db := p["a"]-2, p["b"]-1
		return da*da + db*db, nil
	})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if calls != 6 {
		t.Errorf("expected 6 evaluations, got %d", calls)
	}
	if best["a"] != 2 || best["b"] != 1 || val != 0 {
		t.Errorf("expected a=2 b=1 at 0, got %v at %f", best, val)
	}
}

func TestGridSearchSkipsFailures(t *testing.T) {
	g := NewGridSearch([]string{"a"}, [][]float64{{1, 2, 3}})
	best, _, err := g.Search(context.Background(), func(_ context.Context, p map[string]float64) (float64, error) {
		if p["a"] == 1 {
			return 0, errors.New("boom")
		}
		return p["a"], nil
	})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if best["a"] != 2 {
		t.Errorf("expected a=2, got %v", best["a"])
	}
	if g.Failures() != 1 {
		t.Errorf("expected 1 failure, got %d", g.Failures())
	}

	_, _, err = g.Search(context.Background(), func(context.Context, map[string]float64) (float64, error) {
		return 0, errors.New("boom")
	})
	if !errors.Is(err, ErrNoCandidate) {
		t.Errorf("expected ErrNoCandidate, got %v", err)
	}
}

func TestGridSearchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := NewGridSearch([]string{"a"}, [][]float64{{1}})
	if _, _, err := g.Search(ctx, func(context.Context, map[string]float64) (float64, error) { return 0, nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestApply(t *testing.T) {
	base := config.DefaultConfig()
	cfg, err := Apply(base, map[string]float64{"kinematic.kp": 99, "physics.kd": 7})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if cfg.Robot.Kinematic.Kp != 99 || cfg.Robot.Physics.Kd != 7 {
		t.Errorf("gains not applied: %+v", cfg.Robot)
	}
	if base.Robot.Kinematic.Kp == 99 {
		t.Error("base config modified")
	}
	if _, err := Apply(base, map[string]float64{"nope": 1}); err == nil {
		t.Error("expected error for unknown parameter")
	}
}

const elbowURDF = `<robot name="elbow">
  <link name="upper"><visual><geometry><box size="0.1 0.3 0.1"/></geometry></visual></link>
  <link name="lower"/>
  <joint name="elbow" type="revolute">
    <parent link="upper"/><child link="lower"/>
    <limit lower="-2" upper="2"/>
  </joint>
</robot>`

func TestTuneKinematicGains(t *testing.T) {
	desc, err := urdf.Parse(strings.NewReader(elbowURDF))
	if err != nil {
		t.Fatal(err)
	}
	base := config.DefaultConfig()
	base.Sim.Ticks = 300

	obj := TrackingObjective(desc, base,
		func(seed int64) sim.Driver { return sim.NewSineDriver(0.5, 0.5, seed) },
		sim.WithDiscoverer(enginetest.Unavailable))

	g := NewGridSearch([]string{"kinematic.kp"}, [][]float64{{5, 60}})
	best, val, err := g.Search(context.Background(), obj)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if best["kinematic.kp"] != 60 {
		t.Errorf("expected stiffer gain to track better, got %v (rms %f)", best, val)
	}
	if val <= 0 {
		t.Errorf("expected positive tracking error, got %f", val)
	}
}

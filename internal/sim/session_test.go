package sim

import (
	"context"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/robosim/internal/config"
	"github.com/san-kum/robosim/internal/engine"
	"github.com/san-kum/robosim/internal/engine/enginetest"
	"github.com/san-kum/robosim/internal/urdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const pairURDF = `<robot name="pair">
  <link name="a"><visual><geometry><box size="0.2 0.2 0.2"/></geometry></visual></link>
  <link name="b"><visual><geometry><sphere radius="0.1"/></geometry></visual></link>
  <joint name="hinge" type="revolute">
    <parent link="a"/><child link="b"/>
    <origin xyz="0 0.3 0"/>
    <limit lower="-1.0" upper="1.0"/>
  </joint>
</robot>`

func pair(t *testing.T) *urdf.Robot {
	t.Helper()
	r, err := urdf.Parse(strings.NewReader(pairURDF))
	require.NoError(t, err)
	return r
}

func weightlessConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Physics.Gravity = [3]float64{}
	cfg.Sim.Ticks = 50
	return cfg
}

func fresh(p engine.WorldParams) (engine.Engine, error) {
	return enginetest.New().Discoverer()(p)
}

func TestKinematicSession(t *testing.T) {
	s, err := NewSession(pair(t), weightlessConfig(), WithDiscoverer(enginetest.Unavailable))
	require.NoError(t, err)
	defer s.Close()

	res, err := s.Run(context.Background(), 100)
	require.NoError(t, err)

	assert.False(t, res.Physics)
	assert.Equal(t, "none", res.Engine)
	assert.Equal(t, []string{"hinge"}, res.Joints)
	require.Len(t, res.Frames, 100)
	assert.Zero(t, res.Obstacles.FullScans, "no colliders without an engine")

	last, ok := res.Final()
	require.True(t, ok)
	assert.Equal(t, 100, last.Tick)
	assert.InDelta(t, 100*config.DefaultDt, last.Time, 1e-9)
	assert.Zero(t, last.Colliders)

	r := mgl64.Vec3{0.2, 0.2, 0.2}.Len() / 2
	assert.InDelta(t, r+config.DefaultConfig().Robot.SpawnMargin, last.Root[1], 1e-9)
	assert.Equal(t, [4]float64{1, 0, 0, 0}, last.RootQuat)
}

func TestPhysicsSessionTracksColliders(t *testing.T) {
	cfg := weightlessConfig()
	s, err := NewSession(pair(t), cfg, WithDiscoverer(fresh))
	require.NoError(t, err)
	defer s.Close()

	f := s.Tick()
	r := cfg.Obstacles.Radius
	side := 2*r + 1
	// Flat ground: every cell below y=0 collides.
	assert.Equal(t, side*side*r, f.Colliders)
	assert.InDelta(t, 0.1+cfg.Robot.SpawnMargin, f.Root[1], 1e-9)

	for i := 0; i < 2*cfg.Obstacles.Cadence; i++ {
		s.Tick()
	}
	st := s.Colliders().Stats()
	assert.Equal(t, 1, st.FullScans)
	assert.Equal(t, 2, st.IncrementalScans)
}

func TestSessionDriverAndObservers(t *testing.T) {
	s, err := NewSession(pair(t), weightlessConfig(),
		WithDiscoverer(enginetest.Unavailable),
		WithDriver(NewSineDriver(0.8, 0.5, 3)))
	require.NoError(t, err)
	defer s.Close()

	var seen []int
	s.AddObserver(ObserverFunc(func(f Frame) { seen = append(seen, f.Tick) }))

	res, err := s.Run(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, 20, len(seen))
	assert.Equal(t, 1, seen[0])

	moved := false
	for _, f := range res.Frames {
		assert.LessOrEqual(t, f.Targets[0], 0.8+1e-12)
		if f.Positions[0] != 0 {
			moved = true
		}
	}
	assert.True(t, moved)
}

func TestSessionNilDriverHolds(t *testing.T) {
	s, err := NewSession(pair(t), weightlessConfig(), WithDiscoverer(fresh), WithDriver(nil))
	require.NoError(t, err)
	defer s.Close()

	var f Frame
	require.NotPanics(t, func() { f = s.Tick() })
	require.Len(t, f.Targets, 1)
	assert.Zero(t, f.Targets[0])
}

func TestSessionRunCancelled(t *testing.T) {
	s, err := NewSession(pair(t), weightlessConfig(), WithDiscoverer(enginetest.Unavailable))
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	n := 0
	s.AddObserver(ObserverFunc(func(Frame) {
		n++
		if n == 5 {
			cancel()
		}
	}))

	res, err := s.Run(ctx, 100)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, res.Frames, 5)
}

func TestSessionReset(t *testing.T) {
	s, err := NewSession(pair(t), weightlessConfig(), WithDiscoverer(fresh))
	require.NoError(t, err)
	defer s.Close()

	s.Tick()
	spawn, ok := s.Controller().SpawnRootPosition()
	require.True(t, ok)

	require.True(t, s.Controller().ApplyExternalForce("a", 50, 0, 0))
	for i := 0; i < 10; i++ {
		s.Tick()
	}
	require.False(t, s.Controller().RootPosition().ApproxEqualThreshold(spawn, 1e-6))

	require.True(t, s.Reset())
	assert.True(t, s.Controller().RootPosition().ApproxEqualThreshold(spawn, 1e-12))
	assert.Zero(t, s.Colliders().ActiveColliders())

	f := s.Tick()
	assert.NotZero(t, f.Colliders, "colliders rebuilt after reset")
}

func TestNewSessionRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sim.Dt = 0
	_, err := NewSession(pair(t), cfg)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestNewSessionNoBodies(t *testing.T) {
	_, err := NewSession(pair(t), weightlessConfig(), WithDiscoverer(func(p engine.WorldParams) (engine.Engine, error) {
		fake := enginetest.New()
		fake.Fail("create_body", assert.AnError)
		return fake.Discoverer()(p)
	}))
	assert.Error(t, err)
}

func TestEnsemble(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := weightlessConfig()
	cfg.Sim.Seed = 10
	drivers := func(seed int64) Driver { return NewSineDriver(0.5, 1, seed) }

	results, err := RunEnsemble(context.Background(), pair(t), cfg, 4, drivers, WithDiscoverer(fresh))
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i, res := range results {
		assert.Equal(t, int64(10+i), res.Seed)
		assert.Len(t, res.Frames, cfg.Sim.Ticks)
		assert.True(t, res.Physics)
	}
	assert.Equal(t, int64(10), cfg.Sim.Seed, "caller config untouched")
}

func TestEnsembleFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := weightlessConfig()
	cfg.Sim.Terrain = "lava"
	_, err := RunEnsemble(context.Background(), pair(t), cfg, 3, nil)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

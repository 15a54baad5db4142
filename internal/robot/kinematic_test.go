package robot

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/robosim/internal/engine"
	"github.com/san-kum/robosim/internal/engine/enginetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const spinnerURDF = `<robot name="spinner">
  <link name="hub"><visual><geometry><cylinder radius="0.1" length="0.05"/></geometry></visual></link>
  <link name="rotor"/>
  <link name="arm"/>
  <joint name="spin" type="continuous"><parent link="hub"/><child link="rotor"/></joint>
  <joint name="swing" type="revolute">
    <parent link="hub"/><child link="arm"/>
    <limit lower="-0.5" upper="0.8"/>
  </joint>
</robot>`

func kinematic(t *testing.T, doc string) *Controller {
	t.Helper()
	c, err := New(parse(t, doc), nil, DefaultConfig())
	require.NoError(t, err)
	require.False(t, c.UsingPhysics())
	return c
}

func TestDiscoveryFailureFallsBack(t *testing.T) {
	b := engine.NewBinding(engine.DefaultWorldParams(), engine.WithDiscoverer(enginetest.Unavailable))

	for i := 0; i < 3; i++ {
		c, err := New(parse(t, pairURDF), b, DefaultConfig())
		require.NoError(t, err)
		assert.False(t, c.UsingPhysics())
		assert.Empty(t, c.BodyNames())
		assert.Equal(t, [4]float64{1, 0, 0, 0}, c.RootQuaternionWXYZ())
		assert.False(t, c.ApplyExternalForce("a", 1, 0, 0))
	}
	assert.Equal(t, engine.Disabled, b.State())

	c, err := New(parse(t, pairURDF), b, DefaultConfig())
	require.NoError(t, err)

	// One tick from rest toward 0.5: acc = min(kp·0.5, maxAcc), v = acc·dt, p = v·dt.
	cfg := DefaultConfig()
	dt := 0.01
	acc := math.Min(cfg.Kinematic.Kp*0.5, cfg.Kinematic.MaxAcceleration)
	require.True(t, c.SetTarget("hinge", 0.5))
	c.Update(dt, nil)

	v, _ := c.JointVelocity("hinge")
	p, _ := c.JointPosition("hinge")
	assert.InDelta(t, acc*dt, v, 1e-12)
	assert.InDelta(t, acc*dt*dt, p, 1e-12)

	require.True(t, c.SetTarget("hinge", 5))
	for i := 0; i < 1000; i++ {
		c.Update(dt, nil)
		p, _ = c.JointPosition("hinge")
		require.LessOrEqual(t, p, 1.0)
	}
	assert.InDelta(t, 1.0, p, 1e-9)
}

func TestKinematicLimitsHold(t *testing.T) {
	c := kinematic(t, spinnerURDF)
	rng := rand.New(rand.NewSource(7))

	for tick := 0; tick < 5000; tick++ {
		if tick%25 == 0 {
			c.SetTarget("swing", rng.Float64()*10-5)
			c.SetTargetVelocity("swing", rng.Float64()*20-10)
		}
		c.Update(0.01, nil)

		p, _ := c.JointPosition("swing")
		require.GreaterOrEqual(t, p, -0.5, "tick %d", tick)
		require.LessOrEqual(t, p, 0.8, "tick %d", tick)
	}
}

func TestKinematicVelocityClamp(t *testing.T) {
	c := kinematic(t, spinnerURDF)
	c.SetTarget("spin", 3)
	for i := 0; i < 200; i++ {
		c.Update(0.01, nil)
		v, _ := c.JointVelocity("spin")
		require.LessOrEqual(t, math.Abs(v), DefaultConfig().Kinematic.MaxVelocity+1e-12)
	}
}

func TestContinuousWrap(t *testing.T) {
	c := kinematic(t, spinnerURDF)
	rng := rand.New(rand.NewSource(11))

	for tick := 0; tick < 5000; tick++ {
		if tick%40 == 0 {
			require.True(t, c.SetTarget("spin", rng.Float64()*40-20))
		}
		c.Update(0.01, nil)

		p, _ := c.JointPosition("spin")
		require.Greater(t, p, -math.Pi, "tick %d", tick)
		require.LessOrEqual(t, p, math.Pi, "tick %d", tick)

		target := c.JointStates()["spin"].TargetPosition
		require.Greater(t, target, -math.Pi)
		require.LessOrEqual(t, target, math.Pi)
	}
}

func TestContinuousShortestPath(t *testing.T) {
	c := kinematic(t, spinnerURDF)
	c.SetTarget("spin", 3.0)
	for i := 0; i < 500; i++ {
		c.Update(0.01, nil)
	}
	p, _ := c.JointPosition("spin")
	require.InDelta(t, 3.0, p, 1e-3)

	// −3.0 is 0.28 rad ahead through π, not 6 rad behind.
	c.SetTarget("spin", -3.0)
	crossed := false
	for i := 0; i < 500; i++ {
		c.Update(0.01, nil)
		p, _ = c.JointPosition("spin")
		if p < 0 {
			crossed = true
		}
		if !crossed {
			require.GreaterOrEqual(t, p, 2.9, "should not swing back through zero")
		}
	}
	assert.True(t, crossed)
	assert.InDelta(t, -3.0, p, 1e-3)
}

func TestKinematicAnchorAndReset(t *testing.T) {
	c := kinematic(t, spinnerURDF)
	c.Update(0.01, flat(1))
	require.True(t, c.Anchored())

	r := primitive{shape: engine.ShapeCylinder, radius: 0.1, length: 0.05}.boundingRadius()
	assert.InDelta(t, 1+r+DefaultConfig().SpawnMargin, c.RootPosition()[1], 1e-12)

	c.SetTarget("swing", 0.7)
	for i := 0; i < 100; i++ {
		c.Update(0.01, nil)
	}

	anchor := mgl64.Vec3{3, 4, 5}
	require.True(t, c.HardResetToSpawn(anchor))
	assert.Equal(t, anchor, c.RootPosition())
	for name, st := range c.JointStates() {
		assert.Zero(t, st.Position, name)
		assert.Zero(t, st.Velocity, name)
		assert.Zero(t, st.TargetPosition, name)
	}
}

func TestKinematicResetWithoutSnapshot(t *testing.T) {
	c := kinematic(t, spinnerURDF)
	c.SetTarget("swing", 0.7)
	for i := 0; i < 20; i++ {
		c.Update(0.01, nil)
	}
	require.False(t, c.Anchored())
	before, _ := c.JointPosition("swing")
	root := c.RootPosition()

	assert.False(t, c.HardResetToSpawn(mgl64.Vec3{3, 4, 5}))
	assert.Equal(t, root, c.RootPosition(), "pose untouched")
	p, _ := c.JointPosition("swing")
	assert.Equal(t, before, p)
	v, _ := c.JointVelocity("swing")
	assert.Zero(t, v)
}

func TestRestPoseInsideLimits(t *testing.T) {
	doc := `<robot name="offset">
  <link name="a"/><link name="b"/>
  <joint name="j" type="revolute"><parent link="a"/><child link="b"/><limit lower="0.2" upper="0.9"/></joint>
</robot>`
	c := kinematic(t, doc)
	p, ok := c.JointPosition("j")
	require.True(t, ok)
	assert.InDelta(t, 0.2, p, 1e-12)
}

func TestPhysicsContinuousShortestPath(t *testing.T) {
	b, fake := weightless(t)
	c, err := New(parse(t, spinnerURDF), b, DefaultConfig())
	require.NoError(t, err)
	require.True(t, c.UsingPhysics())

	ji, ok := c.desc.JointIndex("spin")
	require.True(t, ok)
	spin := fake.Joints[c.joints[ji].id]
	require.NotNil(t, spin)
	spin.Position = 3.0
	c.states[ji].Position = 3.0

	// −3.0 is 0.28 rad ahead through π.
	require.True(t, c.SetTarget("spin", -3.0))
	c.Update(0.01, nil)

	assert.Greater(t, spin.Rate, 0.0)
	v, _ := c.JointVelocity("spin")
	assert.Greater(t, v, 0.0)
}

package robot

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/robosim/internal/engine"
	"github.com/san-kum/robosim/internal/engine/enginetest"
	"github.com/san-kum/robosim/internal/urdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pairURDF = `<robot name="pair">
  <link name="world"/>
  <link name="a">
    <inertial><mass value="3"/></inertial>
    <visual><geometry><box size="0.2 0.2 0.2"/></geometry></visual>
  </link>
  <link name="b">
    <visual><geometry><sphere radius="0.1"/></geometry></visual>
  </link>
  <joint name="pin" type="fixed">
    <parent link="world"/>
    <child link="a"/>
  </joint>
  <joint name="hinge" type="revolute">
    <parent link="a"/>
    <child link="b"/>
    <origin xyz="0 0.3 0"/>
    <axis xyz="0 0 1"/>
    <limit lower="-1.0" upper="1.0" effort="10" velocity="3"/>
  </joint>
</robot>`

type flat float64

func (f flat) GroundLevel(x, z float64) (float64, bool) { return float64(f), true }

type noGround struct{}

func (noGround) GroundLevel(x, z float64) (float64, bool) { return 0, false }

func parse(t *testing.T, doc string) *urdf.Robot {
	t.Helper()
	r, err := urdf.Parse(strings.NewReader(doc))
	require.NoError(t, err)
	return r
}

// weightless returns a ready binding over a fresh in-memory engine with
// gravity switched off, so body positions only move when told to.
func weightless(t *testing.T) (*engine.Binding, *enginetest.Engine) {
	t.Helper()
	fake := enginetest.New()
	p := engine.DefaultWorldParams()
	p.Gravity = mgl64.Vec3{}
	b := engine.NewBinding(p, engine.WithDiscoverer(fake.Discoverer()))
	require.True(t, b.Ready())
	return b, fake
}

func TestPairScenario(t *testing.T) {
	b, fake := weightless(t)
	c, err := New(parse(t, pairURDF), b, DefaultConfig())
	require.NoError(t, err)

	assert.True(t, c.UsingPhysics())
	assert.Equal(t, []string{"a", "b"}, c.BodyNames())
	assert.Len(t, fake.Bodies, 2)
	assert.Equal(t, 1, c.HingeCount())
	assert.Equal(t, 1, fake.JointsOfKind(engine.JointHinge))
	assert.Equal(t, 0, fake.JointsOfKind(engine.JointFixed), "world weld is skipped by default")

	require.True(t, c.SetTarget("hinge", 5.0))
	assert.InDelta(t, 1.0, c.JointStates()["hinge"].TargetPosition, 1e-12)

	assert.False(t, c.SetTarget("pin", 0.3), "fixed joints take no target")
	assert.False(t, c.SetTarget("nope", 0.3))
}

func TestWorldAttachmentOptIn(t *testing.T) {
	b, fake := weightless(t)
	cfg := DefaultConfig()
	cfg.AllowWorldAttachment = true
	_, err := New(parse(t, pairURDF), b, cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, fake.JointsOfKind(engine.JointFixed))
	for _, j := range fake.Joints {
		if j.Kind == engine.JointFixed {
			assert.Zero(t, j.Parent, "weld parent should be the static world")
		}
	}
}

func TestHingeSetup(t *testing.T) {
	b, fake := weightless(t)
	c, err := New(parse(t, pairURDF), b, DefaultConfig())
	require.NoError(t, err)

	hinge := fake.Joints[c.joints[1].id]
	require.NotNil(t, hinge)
	assert.True(t, hinge.Axis.ApproxEqual(mgl64.Vec3{0, 0, 1}))
	assert.True(t, hinge.Anchor.ApproxEqual(mgl64.Vec3{0, 0.3, 0}))
	assert.True(t, hinge.HasLimits)
	assert.InDelta(t, -1.0, hinge.Lower, 1e-12)
	assert.InDelta(t, 1.0, hinge.Upper, 1e-12)
}

func TestMassAndColliderAgree(t *testing.T) {
	b, fake := weightless(t)
	c, err := New(parse(t, pairURDF), b, DefaultConfig())
	require.NoError(t, err)

	for li, name := range map[int]string{1: "a", 2: "b"} {
		rec := c.bodies[li]
		body := fake.Bodies[rec.id]
		geom := fake.Geoms[rec.geom]
		require.NotNil(t, body, name)
		require.NotNil(t, geom, name)
		assert.Equal(t, geom.Shape, body.Mass.Shape, "link %s weighs and collides as different shapes", name)
		assert.True(t, geom.Dynamic)
		assert.Equal(t, rec.id, geom.Body)
	}

	a := fake.Bodies[c.bodies[1].id]
	assert.InDelta(t, 3.0, enginetest.MassOf(a.Mass), 1e-12, "declared mass overrides density")
	bb := fake.Bodies[c.bodies[2].id]
	assert.Zero(t, bb.Mass.Total)
	assert.InDelta(t, 1000.0, bb.Mass.Density, 1e-12)
}

func TestMeshAndBareLinks(t *testing.T) {
	doc := `<robot name="odd">
  <link name="shell"><collision><geometry><mesh filename="s.stl" scale="2 1 1"/></geometry></collision></link>
  <link name="ghost"/>
  <joint name="j" type="prismatic"><parent link="shell"/><child link="ghost"/><limit lower="0" upper="0.4"/></joint>
</robot>`
	b, fake := weightless(t)
	c, err := New(parse(t, doc), b, DefaultConfig())
	require.NoError(t, err)

	shell := fake.Geoms[c.bodies[0].geom]
	assert.Equal(t, engine.ShapeBox, shell.Shape)
	assert.True(t, shell.Size.ApproxEqual(mgl64.Vec3{0.2, 0.1, 0.1}))

	ghost := fake.Geoms[c.bodies[1].geom]
	assert.Equal(t, engine.ShapeSphere, ghost.Shape)
	assert.Equal(t, 1, fake.JointsOfKind(engine.JointSlider))
}

func TestBodyKeySetSkipsFailures(t *testing.T) {
	b, fake := weightless(t)
	fake.FailCall("create_body", 1, errors.New("no slot"))

	c, err := New(parse(t, pairURDF), b, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, c.BodyNames())
	assert.Zero(t, c.HingeCount(), "hinge with a missing parent body is world-attached")
	assert.Equal(t, 2, c.root, "root falls back to the first live body")
}

func TestConstructionFailsWithoutBodies(t *testing.T) {
	b, fake := weightless(t)
	fake.Fail("create_body", errors.New("no slot"))

	c, err := New(parse(t, pairURDF), b, DefaultConfig())
	assert.ErrorIs(t, err, ErrNoBodies)
	assert.Nil(t, c)
	assert.Empty(t, fake.Bodies)
	assert.Empty(t, fake.Geoms)
	assert.Empty(t, fake.Joints)
}

func TestColliderFailureKeepsBody(t *testing.T) {
	b, fake := weightless(t)
	fake.Fail("create_box", errors.New("bad size"))

	c, err := New(parse(t, pairURDF), b, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, c.BodyNames())
	assert.Zero(t, c.bodies[1].geom)
	assert.Len(t, fake.Geoms, 1)
}

func TestSpawnAnchoring(t *testing.T) {
	b, fake := weightless(t)
	c, err := New(parse(t, pairURDF), b, DefaultConfig())
	require.NoError(t, err)
	assert.False(t, c.Anchored())

	c.Update(0.01, noGround{})
	assert.False(t, c.Anchored(), "no ground, no anchoring")

	c.Update(0.01, flat(2))
	require.True(t, c.Anchored())

	// Lowest collider point is the bottom of box a, 0.1 below the root.
	want := 2 + 0.1 + DefaultConfig().SpawnMargin
	assert.InDelta(t, want, c.RootPosition()[1], 1e-9)

	bpos := fake.Bodies[c.bodies[2].id].Pos
	assert.InDelta(t, want+0.3, bpos[1], 1e-9)

	hinge := fake.Joints[c.joints[1].id]
	assert.Equal(t, 2, hinge.Anchors, "anchor set at build and rebuilt once")
	assert.True(t, hinge.Anchor.ApproxEqualThreshold(bpos, 1e-9))

	spawn, ok := c.SpawnRootPosition()
	require.True(t, ok)
	assert.InDelta(t, want, spawn[1], 1e-9)

	c.Update(0.01, flat(10))
	assert.InDelta(t, want, c.RootPosition()[1], 1e-9, "anchoring happens once")

	c.ClearAnchor()
	c.Update(0.01, flat(10))
	assert.InDelta(t, 10+0.1+DefaultConfig().SpawnMargin, c.RootPosition()[1], 1e-9)
}

func TestAnchoringFallsBackToBoundingRadius(t *testing.T) {
	b, fake := weightless(t)
	c, err := New(parse(t, pairURDF), b, DefaultConfig())
	require.NoError(t, err)

	fake.Fail("geom_bounds", errors.New("unsupported"))
	c.Update(0.01, flat(0))

	// Box a (0.2 cube) has the largest bounding radius.
	r := mgl64.Vec3{0.2, 0.2, 0.2}.Len() / 2
	assert.InDelta(t, r+DefaultConfig().SpawnMargin, c.RootPosition()[1], 1e-9)
}

func TestPhysicsActuation(t *testing.T) {
	b, fake := weightless(t)
	c, err := New(parse(t, pairURDF), b, DefaultConfig())
	require.NoError(t, err)

	require.True(t, c.SetTarget("hinge", 0.5))
	for i := 0; i < 50; i++ {
		c.Update(0.01, nil)
	}
	assert.Equal(t, 50*DefaultConfig().SubSteps, fake.Steps)

	pos, ok := c.JointPosition("hinge")
	require.True(t, ok)
	assert.Greater(t, pos, 0.0)
	assert.LessOrEqual(t, pos, 1.0)

	// A failing read keeps the last known value and the tick goes on.
	fake.Fail("joint_position", errors.New("gone"))
	assert.NotPanics(t, func() { c.Update(0.01, nil) })
	after, _ := c.JointPosition("hinge")
	assert.Equal(t, pos, after)
}

func TestExternalForce(t *testing.T) {
	b, fake := weightless(t)
	c, err := New(parse(t, pairURDF), b, DefaultConfig())
	require.NoError(t, err)

	require.True(t, c.ApplyExternalForce("b", 0, 5, 0))
	assert.Equal(t, mgl64.Vec3{0, 5, 0}, fake.Bodies[c.bodies[2].id].Force)
	assert.True(t, c.ApplyExternalTorque("a", 1, 0, 0))
	assert.False(t, c.ApplyExternalForce("world", 0, 1, 0))
}

func TestCleanupReleasesHandles(t *testing.T) {
	b, fake := weightless(t)
	c, err := New(parse(t, pairURDF), b, DefaultConfig())
	require.NoError(t, err)

	c.Cleanup()
	assert.Empty(t, fake.Bodies)
	assert.Empty(t, fake.Geoms)
	assert.Empty(t, fake.Joints)
	assert.Empty(t, c.BodyNames())
	assert.NotPanics(t, c.Cleanup)
}

//go:build ode

package engine

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func newODE(t *testing.T) *odeEngine {
	t.Helper()
	p := DefaultWorldParams()
	p.Gravity = mgl64.Vec3{}
	eng, err := Discover(p)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng.(*odeEngine)
}

// sphereOnFloor puts a unit-density sphere resting 0.1 into a static box.
func sphereOnFloor(t *testing.T, e *odeEngine) BodyID {
	t.Helper()
	floor, err := e.CreateBoxGeom(mgl64.Vec3{1, 1, 1})
	require.NoError(t, err)
	require.NoError(t, e.SetGeomPosition(floor, mgl64.Vec3{0, -0.5, 0}))
	require.NoError(t, e.RegisterStaticGeom(floor))

	body, err := e.CreateBody()
	require.NoError(t, err)
	require.NoError(t, e.SetBodyMass(body, MassSpec{Shape: ShapeSphere, Dims: mgl64.Vec3{0.25}, Density: 1}))
	require.NoError(t, e.SetBodyPosition(body, mgl64.Vec3{0, 0.15, 0}))
	ball, err := e.CreateSphereGeom(0.25)
	require.NoError(t, err)
	require.NoError(t, e.SetGeomBody(ball, body))
	require.NoError(t, e.RegisterDynamicGeom(ball))
	return body
}

func TestStaticGeomsKeptApart(t *testing.T) {
	e := newODE(t)
	sphereOnFloor(t, e)

	require.Len(t, e.static, 1)
	require.Len(t, e.dynamic, 1)
	require.NoError(t, e.Step(0.001))
	require.Positive(t, e.contacts)
}

func TestWorldAttachedBodyTouchesStatics(t *testing.T) {
	e := newODE(t)
	body := sphereOnFloor(t, e)

	j, err := e.CreateJoint(JointHinge, 0, body)
	require.NoError(t, err)
	require.Empty(t, e.linked)

	require.NoError(t, e.Step(0.001))
	require.Positive(t, e.contacts, "world hinge must not mask terrain contacts")

	require.NoError(t, e.DestroyJoint(j))
	require.Empty(t, e.linked)
}

func TestLinkedBodiesSkipContacts(t *testing.T) {
	e := newODE(t)

	var bodies [2]BodyID
	for i := range bodies {
		b, err := e.CreateBody()
		require.NoError(t, err)
		require.NoError(t, e.SetBodyPosition(b, mgl64.Vec3{float64(i) * 0.1, 2, 0}))
		g, err := e.CreateSphereGeom(0.2)
		require.NoError(t, err)
		require.NoError(t, e.SetGeomBody(g, b))
		require.NoError(t, e.RegisterDynamicGeom(g))
		bodies[i] = b
	}
	_, err := e.CreateJoint(JointHinge, bodies[0], bodies[1])
	require.NoError(t, err)

	require.NoError(t, e.Step(0.001))
	require.Zero(t, e.contacts)
}

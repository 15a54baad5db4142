package robot

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/robosim/internal/engine"
	"github.com/san-kum/robosim/internal/urdf"
)

func vec(x, y, z float64) mgl64.Vec3 { return mgl64.Vec3{x, y, z} }

func (c *Controller) JointPosition(name string) (float64, bool) {
	ji, ok := c.desc.JointIndex(name)
	if !ok {
		return 0, false
	}
	return c.states[ji].Position, true
}

func (c *Controller) JointVelocity(name string) (float64, bool) {
	ji, ok := c.desc.JointIndex(name)
	if !ok {
		return 0, false
	}
	return c.states[ji].Velocity, true
}

// AllJointPositions returns the position of every actuated joint.
func (c *Controller) AllJointPositions() map[string]float64 {
	out := make(map[string]float64, len(c.states))
	for ji := range c.desc.Joints {
		if c.desc.Joints[ji].Type.Actuated() {
			out[c.desc.Joints[ji].Name] = c.states[ji].Position
		}
	}
	return out
}

// JointStates returns a copy of every joint's runtime state.
func (c *Controller) JointStates() map[string]JointState {
	out := make(map[string]JointState, len(c.states))
	for ji := range c.desc.Joints {
		out[c.desc.Joints[ji].Name] = c.states[ji]
	}
	return out
}

// JointNames lists joints in declaration order.
func (c *Controller) JointNames() []string {
	names := make([]string, len(c.desc.Joints))
	for i := range c.desc.Joints {
		names[i] = c.desc.Joints[i].Name
	}
	return names
}

// BodyNames lists links that own a live body, in declaration order.
func (c *Controller) BodyNames() []string {
	var names []string
	for li := range c.bodies {
		if c.bodies[li].id != 0 {
			names = append(names, c.desc.Links[li].Name)
		}
	}
	return names
}

// HingeCount is the number of live hinge constraints.
func (c *Controller) HingeCount() int {
	n := 0
	for i := range c.joints {
		if c.joints[i].id != 0 && c.joints[i].kind == engine.JointHinge {
			n++
		}
	}
	return n
}

// RootPosition returns the root body position in engine units. A failed read
// returns the last known position.
func (c *Controller) RootPosition() mgl64.Vec3 {
	if !c.physics {
		return c.kinRoot
	}
	if p, ok := c.phys.BodyPosition(c.bodies[c.root].id); ok {
		c.lastRoot = p
	}
	return c.lastRoot
}

// RootQuaternionWXYZ returns the root orientation, identity in kinematic mode.
func (c *Controller) RootQuaternionWXYZ() [4]float64 {
	q := mgl64.QuatIdent()
	if c.physics {
		if r, ok := c.phys.BodyQuaternion(c.bodies[c.root].id); ok {
			c.lastRootRot = r
		}
		q = c.lastRootRot
	}
	return [4]float64{q.W, q.V[0], q.V[1], q.V[2]}
}

func (c *Controller) rootShape() urdf.Geometry {
	g, _, _ := c.desc.Links[c.root].Shape()
	return g
}

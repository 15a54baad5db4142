package robot

import (
	"math"

	"github.com/san-kum/robosim/internal/control"
	"github.com/san-kum/robosim/internal/engine"
	"github.com/san-kum/robosim/internal/urdf"
)

func (c *Controller) stepPhysics(dt float64) {
	n := c.cfg.SubSteps
	h := dt / float64(n)
	for s := 0; s < n; s++ {
		for ji := range c.joints {
			j := &c.joints[ji]
			if j.id == 0 || j.kind == engine.JointFixed {
				continue
			}
			st := &c.states[ji]
			u := c.effort.EffortWithin(c.effortTarget(ji), st.Position, st.TargetVelocity, st.Velocity,
				c.effortLimit(&c.desc.Joints[ji]))
			c.phys.AddJointEffort(j.id, u)
		}
		c.phys.Step(h)
	}
	c.syncJoints()
	c.trackRoot()
}

// effortTarget is the position target seen by the PD law. Continuous joints
// aim along the shortest arc from the current angle.
func (c *Controller) effortTarget(ji int) float64 {
	st := &c.states[ji]
	if c.desc.Joints[ji].Type == urdf.JointContinuous {
		return st.Position + control.ShortestAngle(st.Position, st.TargetPosition)
	}
	return st.TargetPosition
}

// syncJoints reads joint coordinates back from the engine. A failed read
// keeps the last known value.
func (c *Controller) syncJoints() {
	for ji := range c.joints {
		j := &c.joints[ji]
		if j.id == 0 || j.kind == engine.JointFixed {
			continue
		}
		st := &c.states[ji]
		scale := 1.0
		if j.kind == engine.JointSlider {
			scale = 1 / c.cfg.UnitScale
		}
		if p, ok := c.phys.JointPosition(j.id); ok {
			st.Position = p * scale
			if c.desc.Joints[ji].Type == urdf.JointContinuous {
				st.Position = control.WrapAngle(st.Position)
			}
		}
		if v, ok := c.phys.JointRate(j.id); ok {
			st.Velocity = v * scale
		}
	}
}

func (c *Controller) trackRoot() {
	id := c.bodies[c.root].id
	if p, ok := c.phys.BodyPosition(id); ok {
		c.lastRoot = p
	}
	if q, ok := c.phys.BodyQuaternion(id); ok {
		c.lastRootRot = q
	}
}

func (c *Controller) stepKinematic(dt float64) {
	for ji := range c.desc.Joints {
		j := &c.desc.Joints[ji]
		if !j.Type.Actuated() {
			continue
		}
		st := &c.states[ji]

		err := st.TargetPosition - st.Position
		if j.Type == urdf.JointContinuous {
			err = control.ShortestAngle(st.Position, st.TargetPosition)
		}
		acc := c.accel.Accel(err, st.Velocity)

		vmax := c.velocityLimit(j)
		st.Velocity = control.Clamp(st.Velocity+acc*dt, -vmax, vmax)
		st.Position += st.Velocity * dt

		switch {
		case j.Bounded():
			if st.Position < j.Limits.Lower {
				st.Position, st.Velocity = j.Limits.Lower, 0
			} else if st.Position > j.Limits.Upper {
				st.Position, st.Velocity = j.Limits.Upper, 0
			}
		case j.Type == urdf.JointContinuous:
			st.Position = control.WrapAngle(st.Position)
		}
	}
}

func (c *Controller) effortLimit(j *urdf.Joint) float64 {
	if j.Limits != nil && j.Limits.Effort > 0 {
		return j.Limits.Effort
	}
	return c.cfg.Physics.MaxEffort
}

func (c *Controller) velocityLimit(j *urdf.Joint) float64 {
	if j.Limits != nil && j.Limits.Velocity > 0 {
		return j.Limits.Velocity
	}
	return c.cfg.Kinematic.MaxVelocity
}

// clampTarget applies declared limits and continuous wrapping.
func clampTarget(j *urdf.Joint, v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case j.Bounded():
		return control.Clamp(v, j.Limits.Lower, j.Limits.Upper)
	case j.Type == urdf.JointContinuous:
		return control.WrapAngle(v)
	}
	return v
}

// SetTarget sets the position target of an actuated joint.
func (c *Controller) SetTarget(name string, v float64) bool {
	ji, ok := c.desc.JointIndex(name)
	if !ok || !c.desc.Joints[ji].Type.Actuated() {
		return false
	}
	c.states[ji].TargetPosition = clampTarget(&c.desc.Joints[ji], v)
	return true
}

// SetTargets applies SetTarget to every entry and returns how many were
// accepted.
func (c *Controller) SetTargets(targets map[string]float64) int {
	n := 0
	for name, v := range targets {
		if c.SetTarget(name, v) {
			n++
		}
	}
	return n
}

func (c *Controller) SetTargetVelocity(name string, v float64) bool {
	ji, ok := c.desc.JointIndex(name)
	if !ok || !c.desc.Joints[ji].Type.Actuated() || math.IsNaN(v) {
		return false
	}
	if l := c.desc.Joints[ji].Limits; l != nil && l.Velocity > 0 {
		v = control.Clamp(v, -l.Velocity, l.Velocity)
	}
	c.states[ji].TargetVelocity = v
	return true
}

// ApplyExternalForce pushes on a link's body for the next engine step.
func (c *Controller) ApplyExternalForce(link string, fx, fy, fz float64) bool {
	id, ok := c.bodyOf(link)
	return ok && c.phys.AddForce(id, vec(fx, fy, fz))
}

func (c *Controller) ApplyExternalTorque(link string, tx, ty, tz float64) bool {
	id, ok := c.bodyOf(link)
	return ok && c.phys.AddTorque(id, vec(tx, ty, tz))
}

func (c *Controller) bodyOf(link string) (engine.BodyID, bool) {
	if !c.physics {
		return 0, false
	}
	li, ok := c.desc.LinkIndex(link)
	if !ok || c.bodies[li].id == 0 {
		return 0, false
	}
	return c.bodies[li].id, true
}

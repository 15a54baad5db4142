package robot

import (
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// HardResetToSpawn moves the robot back to its spawn pose with the root at
// anchor. Without a snapshot it only zeroes velocities and returns false.
//
// In kinematic mode joints return to rest and the root moves to anchor.
func (c *Controller) HardResetToSpawn(anchor mgl64.Vec3) bool {
	if c.snap == nil {
		c.ResetBodyVelocitiesOnly()
		return false
	}
	if !c.physics {
		c.kinRoot = anchor
		c.restPose()
		return true
	}

	for i := range c.bodies {
		b := &c.bodies[i]
		if b.id == 0 {
			continue
		}
		c.phys.SetBodyPosition(b.id, anchor.Add(c.snap.offsets[i]))
		if c.snap.hasRot[i] && !c.phys.SetBodyQuaternion(b.id, c.snap.rots[i]) && !c.rotWarned {
			c.rotWarned = true
			c.log.Info("orientation write unavailable, reset keeps current orientation")
		}
	}
	c.ResetBodyVelocitiesOnly()
	c.rebuildAnchors()
	c.syncJoints()
	for i := range c.states {
		c.states[i].TargetPosition = c.states[i].Position
		c.states[i].TargetVelocity = 0
	}
	c.log.Debug("reset to spawn", zap.Float64("x", anchor[0]), zap.Float64("y", anchor[1]), zap.Float64("z", anchor[2]))
	return true
}

// ResetBodyVelocitiesOnly zeroes linear and angular velocity of every body,
// or every joint velocity in kinematic mode.
func (c *Controller) ResetBodyVelocitiesOnly() {
	if !c.physics {
		for i := range c.states {
			c.states[i].Velocity = 0
		}
		return
	}
	for i := range c.bodies {
		id := c.bodies[i].id
		if id == 0 {
			continue
		}
		c.phys.SetBodyLinearVel(id, mgl64.Vec3{})
		c.phys.SetBodyAngularVel(id, mgl64.Vec3{})
	}
}

// Package control provides the proportional-derivative law shared by both
// joint actuation modes.
//
//   - [PD.Effort]: clamped torque/force for engine-driven joints
//   - [PD.Accel]: clamped acceleration for the kinematic integrator
//
// # Usage
//
//	pd := control.NewPD(40, 4, 25) // Kp, Kd, effort limit
//	effort := pd.Effort(target, pos, targetVel, vel)
//
// Angles for continuous joints go through [WrapAngle] and [ShortestAngle].
//
// PD gains support live tuning through GetParams/SetParam.
package control

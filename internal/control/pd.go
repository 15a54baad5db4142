package control

import "math"

// PD is a proportional-derivative law with a symmetric output limit. A
// non-positive Limit leaves the output unclamped.
type PD struct {
	Kp    float64
	Kd    float64
	Limit float64
}

func NewPD(kp, kd, limit float64) *PD {
	return &PD{Kp: kp, Kd: kd, Limit: limit}
}

// Effort returns kp·(target−pos) + kd·(targetVel−vel), clamped to Limit.
func (p *PD) Effort(target, pos, targetVel, vel float64) float64 {
	return p.clamp(p.Kp*(target-pos) + p.Kd*(targetVel-vel))
}

// EffortWithin is Effort with a per-call limit, used when a joint declares
// its own effort bound.
func (p *PD) EffortWithin(target, pos, targetVel, vel, limit float64) float64 {
	u := p.Kp*(target-pos) + p.Kd*(targetVel-vel)
	if limit > 0 {
		return Clamp(u, -limit, limit)
	}
	return p.clamp(u)
}

// Accel returns kp·err − kd·vel, clamped to Limit. err is the position error
// already reduced by the caller (shortest path for continuous joints).
func (p *PD) Accel(err, vel float64) float64 {
	return p.clamp(p.Kp*err - p.Kd*vel)
}

func (p *PD) clamp(u float64) float64 {
	if p.Limit <= 0 {
		return u
	}
	return Clamp(u, -p.Limit, p.Limit)
}

// GetParams returns tunable parameters for live adjustment
func (p *PD) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp":    p.Kp,
		"Kd":    p.Kd,
		"Limit": p.Limit,
	}
}

// SetParam adjusts a PD parameter
func (p *PD) SetParam(name string, value float64) {
	switch name {
	case "Kp":
		p.Kp = value
	case "Kd":
		p.Kd = value
	case "Limit":
		p.Limit = value
	}
}

func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

package robot

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/robosim/internal/engine"
	"github.com/san-kum/robosim/internal/urdf"
	"go.uber.org/zap"
)

var defaultAxis = mgl64.Vec3{1, 0, 0}

type frame struct {
	pos mgl64.Vec3
	rot mgl64.Quat
}

// linkFrames places every link at zero joint configuration, in description
// units. The world link and the root sit at the origin.
func linkFrames(r *urdf.Robot) []frame {
	frames := make([]frame, len(r.Links))
	for i := range frames {
		frames[i].rot = mgl64.QuatIdent()
	}
	for _, li := range r.Order() {
		ji := r.ParentJoint(li)
		if ji < 0 {
			continue
		}
		j := &r.Joints[ji]
		p := frames[j.Parent]
		frames[li] = frame{
			pos: p.pos.Add(p.rot.Rotate(j.Origin.XYZ)),
			rot: p.rot.Mul(j.Origin.Quat()).Normalize(),
		}
	}
	return frames
}

func jointAxis(j *urdf.Joint) mgl64.Vec3 {
	if l := j.Axis.Len(); l > 1e-9 {
		return j.Axis.Mul(1 / l)
	}
	return defaultAxis
}

func (c *Controller) build() error {
	frames := linkFrames(c.desc)
	scale := c.cfg.UnitScale

	created := 0
	for li := range c.desc.Links {
		if c.desc.IsWorld(li) {
			continue
		}
		if c.buildBody(li, frames[li], scale) {
			created++
		}
	}
	if created == 0 {
		c.Cleanup()
		return ErrNoBodies
	}
	if c.bodies[c.root].id == 0 {
		for li := range c.bodies {
			if c.bodies[li].id != 0 {
				c.log.Warn("root link has no body, using substitute",
					zap.String("root", c.desc.Links[c.root].Name),
					zap.String("substitute", c.desc.Links[li].Name))
				c.root = li
				break
			}
		}
	}

	for ji := range c.desc.Joints {
		c.buildJoint(ji, frames, scale)
	}
	return nil
}

func (c *Controller) buildBody(li int, f frame, scale float64) bool {
	link := &c.desc.Links[li]
	geom, origin, _ := link.Shape()
	prim := primitiveFor(geom, scale)

	id := c.phys.CreateBody()
	if id == 0 {
		c.log.Warn("body creation failed, skipping link", zap.String("link", link.Name))
		return false
	}

	b := body{
		id:   id,
		prim: prim,
		pos:  f.pos.Add(f.rot.Rotate(origin.XYZ)).Mul(scale),
		rot:  f.rot.Mul(origin.Quat()).Normalize(),
	}
	c.phys.SetBodyMass(id, prim.mass(c.cfg.Density, link.Inertial))
	c.phys.SetBodyPosition(id, b.pos)
	c.phys.SetBodyQuaternion(id, b.rot)

	b.geom = prim.create(c.phys)
	switch {
	case b.geom == 0:
		c.log.Warn("collider creation failed, link will not collide", zap.String("link", link.Name))
	case !c.phys.SetGeomBody(b.geom, id) || !c.phys.RegisterDynamicGeom(b.geom):
		c.log.Warn("collider attach failed, link will not collide", zap.String("link", link.Name))
		c.phys.DestroyGeom(b.geom)
		b.geom = 0
	}

	c.bodies[li] = b
	return true
}

func (c *Controller) buildJoint(ji int, frames []frame, scale float64) {
	j := &c.desc.Joints[ji]
	parent := c.bodies[j.Parent].id
	child := c.bodies[j.Child].id

	if parent == 0 && child == 0 {
		c.log.Warn("joint has no bodies, skipping", zap.String("joint", j.Name))
		return
	}
	if (parent == 0 || child == 0) && !c.cfg.AllowWorldAttachment {
		c.log.Debug("world-attached joint skipped", zap.String("joint", j.Name))
		return
	}

	var kind engine.JointKind
	switch j.Type {
	case urdf.JointRevolute, urdf.JointContinuous:
		kind = engine.JointHinge
	case urdf.JointPrismatic:
		kind = engine.JointSlider
	default:
		kind = engine.JointFixed
	}

	id := c.phys.CreateJoint(kind, parent, child)
	if id == 0 {
		c.log.Warn("joint creation failed, skipping", zap.String("joint", j.Name))
		return
	}

	host := j.Child
	if child == 0 {
		host = j.Parent
	}
	f := frames[j.Child]
	hb := c.bodies[host]
	anchor := f.pos.Mul(scale)

	rec := joint{
		id:    id,
		kind:  kind,
		host:  host,
		local: hb.rot.Inverse().Rotate(anchor.Sub(hb.pos)),
		axis:  f.rot.Rotate(jointAxis(j)).Normalize(),
	}
	c.joints[ji] = rec

	if kind == engine.JointFixed {
		return
	}
	c.phys.SetJointAxis(id, rec.axis)
	if kind == engine.JointHinge {
		c.phys.SetJointAnchor(id, anchor)
	}
	if j.Bounded() {
		lo, hi := j.Limits.Lower, j.Limits.Upper
		if kind == engine.JointSlider {
			lo, hi = lo*scale, hi*scale
		}
		c.phys.SetJointLimits(id, lo, hi)
	}
}

// rebuildAnchors recomputes every hinge anchor from the current pose of its
// host body.
func (c *Controller) rebuildAnchors() {
	for ji := range c.joints {
		j := &c.joints[ji]
		if j.id == 0 || j.kind != engine.JointHinge {
			continue
		}
		hb := c.bodies[j.host]
		pos, ok := c.phys.BodyPosition(hb.id)
		if !ok {
			continue
		}
		rot, ok := c.phys.BodyQuaternion(hb.id)
		if !ok {
			rot = hb.rot
		}
		c.phys.SetJointAnchor(j.id, pos.Add(rot.Rotate(j.local)))
	}
}

package robot

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// anchor drops the robot onto the ground below its root. It runs once; only
// ClearAnchor re-arms it.
func (c *Controller) anchor(g Ground) {
	root := c.RootPosition()
	level, ok := g.GroundLevel(root[0], root[2])
	if !ok {
		return
	}

	if !c.physics {
		rp := primitiveFor(c.rootShape(), c.cfg.UnitScale)
		c.kinRoot = mgl64.Vec3{root[0], level + rp.boundingRadius() + c.cfg.SpawnMargin, root[2]}
		c.anchored = true
		c.snap = &snapshot{root: c.kinRoot}
		c.log.Debug("anchored", zap.Float64("ground", level), zap.Float64("root_y", c.kinRoot[1]))
		return
	}

	clearance := c.clearance(root)
	dy := level + clearance + c.cfg.SpawnMargin - root[1]
	delta := mgl64.Vec3{0, dy, 0}
	for i := range c.bodies {
		b := &c.bodies[i]
		if b.id == 0 {
			continue
		}
		p, ok := c.phys.BodyPosition(b.id)
		if !ok {
			p = b.pos
		}
		c.phys.SetBodyPosition(b.id, p.Add(delta))
	}
	c.rebuildAnchors()
	c.anchored = true
	c.log.Debug("anchored",
		zap.Float64("ground", level),
		zap.Float64("clearance", clearance),
		zap.Float64("shift", dy))

	if c.snap == nil {
		c.takeSnapshot()
	}
}

// clearance is the height of the root above the lowest point of any
// collider, or the largest bounding radius when no collider reports bounds.
func (c *Controller) clearance(root mgl64.Vec3) float64 {
	lowest := math.Inf(1)
	for i := range c.bodies {
		b := &c.bodies[i]
		if b.geom == 0 {
			continue
		}
		lo, _, ok := c.phys.GeomBounds(b.geom)
		if ok && lo[1] < lowest {
			lowest = lo[1]
		}
	}
	if !math.IsInf(lowest, 1) {
		return math.Max(0, root[1]-lowest)
	}

	r := 0.0
	for i := range c.bodies {
		if c.bodies[i].id != 0 {
			r = math.Max(r, c.bodies[i].prim.boundingRadius())
		}
	}
	c.log.Debug("collider bounds unavailable, using bounding radius", zap.Float64("radius", r))
	return r
}

func (c *Controller) takeSnapshot() {
	rootPos, ok := c.phys.BodyPosition(c.bodies[c.root].id)
	if !ok {
		return
	}
	s := &snapshot{
		root:    rootPos,
		offsets: make([]mgl64.Vec3, len(c.bodies)),
		rots:    make([]mgl64.Quat, len(c.bodies)),
		hasRot:  make([]bool, len(c.bodies)),
	}
	for i := range c.bodies {
		b := &c.bodies[i]
		if b.id == 0 {
			continue
		}
		p, ok := c.phys.BodyPosition(b.id)
		if !ok {
			p = b.pos
		}
		s.offsets[i] = p.Sub(rootPos)
		s.rots[i], s.hasRot[i] = c.phys.BodyQuaternion(b.id)
	}
	c.snap = s
}

// ClearAnchor re-arms spawn anchoring for the next Update.
func (c *Controller) ClearAnchor() { c.anchored = false }

func (c *Controller) Anchored() bool { return c.anchored }

// SpawnRootPosition returns the root position recorded in the spawn
// snapshot.
func (c *Controller) SpawnRootPosition() (mgl64.Vec3, bool) {
	if c.snap == nil {
		return mgl64.Vec3{}, false
	}
	return c.snap.root, true
}

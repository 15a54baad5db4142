// Package robot turns a parsed robot description into a live articulated
// body and actuates it.
//
// A Controller runs in one of two modes, fixed at construction. In physics
// mode every link becomes an engine body with one collider, joints become
// engine constraints and actuation is a sub-stepped PD effort. When the
// engine binding is not Ready the controller falls back to kinematic mode,
// where each joint is an independent PD-driven second-order integrator.
//
// Controllers are not safe for concurrent use; drive them from the single
// simulation thread through Update.
package robot

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/robosim/internal/control"
	"github.com/san-kum/robosim/internal/engine"
	"github.com/san-kum/robosim/internal/urdf"
	"go.uber.org/zap"
)

// ErrNoBodies is returned when physics-mode construction produced no body.
var ErrNoBodies = errors.New("robot: no bodies could be created")

// JointState is the runtime state of one joint. Prismatic coordinates are in
// description units.
type JointState struct {
	Position       float64
	Velocity       float64
	TargetPosition float64
	TargetVelocity float64
}

// Ground reports the surface height below a horizontal position, in engine
// units.
type Ground interface {
	GroundLevel(x, z float64) (float64, bool)
}

type body struct {
	id   engine.BodyID
	geom engine.GeomID
	prim primitive
	pos  mgl64.Vec3
	rot  mgl64.Quat
}

type joint struct {
	id   engine.JointID
	kind engine.JointKind
	// host is the link whose body the anchor is measured from.
	host int
	// local is the anchor offset in the host body's frame.
	local mgl64.Vec3
	axis  mgl64.Vec3
}

type snapshot struct {
	offsets []mgl64.Vec3
	rots    []mgl64.Quat
	hasRot  []bool
	root    mgl64.Vec3
}

type Controller struct {
	desc    *urdf.Robot
	cfg     Config
	phys    *engine.Binding
	physics bool
	log     *zap.Logger

	// Indexed by link; a zero id means the link has no body.
	bodies []body
	// Indexed by joint; a zero id means no engine constraint.
	joints []joint
	states []JointState
	root   int

	effort *control.PD
	accel  *control.PD

	anchored    bool
	snap        *snapshot
	rotWarned   bool
	kinRoot     mgl64.Vec3
	lastRoot    mgl64.Vec3
	lastRootRot mgl64.Quat
}

type Option func(*Controller)

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// New builds a controller for desc. A nil or non-Ready binding selects
// kinematic mode.
func New(desc *urdf.Robot, phys *engine.Binding, cfg Config, opts ...Option) (*Controller, error) {
	if desc == nil || len(desc.Links) == 0 {
		return nil, fmt.Errorf("robot: empty description")
	}
	cfg = cfg.withDefaults()

	c := &Controller{
		desc:        desc,
		cfg:         cfg,
		log:         zap.NewNop(),
		states:      make([]JointState, len(desc.Joints)),
		joints:      make([]joint, len(desc.Joints)),
		bodies:      make([]body, len(desc.Links)),
		root:        desc.Root,
		effort:      control.NewPD(cfg.Physics.Kp, cfg.Physics.Kd, cfg.Physics.MaxEffort),
		accel:       control.NewPD(cfg.Kinematic.Kp, cfg.Kinematic.Kd, cfg.Kinematic.MaxAcceleration),
		lastRootRot: mgl64.QuatIdent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("robot").With(zap.String("robot", desc.Name))

	if phys != nil && phys.Ready() {
		c.phys = phys
		c.physics = true
		if err := c.build(); err != nil {
			return nil, err
		}
	}

	c.restPose()
	c.log.Info("controller ready",
		zap.Bool("physics", c.physics),
		zap.Int("bodies", len(c.BodyNames())),
		zap.Int("joints", len(desc.Joints)))
	return c, nil
}

// UsingPhysics reports the mode chosen at construction.
func (c *Controller) UsingPhysics() bool { return c.physics }

func (c *Controller) Description() *urdf.Robot { return c.desc }

// restPose sets every joint to its rest coordinate: zero, pulled into the
// declared range.
func (c *Controller) restPose() {
	for i := range c.desc.Joints {
		j := &c.desc.Joints[i]
		p := 0.0
		if j.Bounded() {
			p = control.Clamp(p, j.Limits.Lower, j.Limits.Upper)
		}
		c.states[i] = JointState{Position: p, TargetPosition: p}
	}
	if c.physics {
		c.syncJoints()
	}
}

// Update advances the controller by dt. ground may be nil; the first update
// with a usable ground anchors the robot to it.
func (c *Controller) Update(dt float64, ground Ground) {
	if dt <= 0 {
		return
	}
	if !c.anchored && ground != nil {
		c.anchor(ground)
	}
	if c.physics {
		c.stepPhysics(dt)
		return
	}
	c.stepKinematic(dt)
}

// Cleanup releases every engine handle. The controller keeps answering
// queries from its last known state.
func (c *Controller) Cleanup() {
	if !c.physics {
		return
	}
	for i := range c.joints {
		if c.joints[i].id != 0 {
			c.phys.DestroyJoint(c.joints[i].id)
			c.joints[i].id = 0
		}
	}
	for i := range c.bodies {
		b := &c.bodies[i]
		if b.geom != 0 {
			c.phys.DestroyGeom(b.geom)
			b.geom = 0
		}
		if b.id != 0 {
			c.phys.DestroyBody(b.id)
			b.id = 0
		}
	}
	c.snap = nil
}

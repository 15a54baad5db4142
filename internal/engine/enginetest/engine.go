// Package enginetest provides an in-memory engine.Engine for tests.
//
// The engine keeps every handle it issues and integrates the simplest
// possible dynamics: free bodies under gravity and applied force, and joint
// coordinates driven by applied effort with unit inertia. It does not solve
// constraints or contacts. Individual operations can be made to fail or
// panic to exercise the binding's failure handling.
package enginetest

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/robosim/internal/engine"
)

type Body struct {
	Pos    mgl64.Vec3
	Quat   mgl64.Quat
	LinVel mgl64.Vec3
	AngVel mgl64.Vec3
	Mass   engine.MassSpec
	Force  mgl64.Vec3
	Torque mgl64.Vec3
}

type Geom struct {
	Shape   engine.Shape
	Size    mgl64.Vec3
	Radius  float64
	Length  float64
	Pos     mgl64.Vec3
	Body    engine.BodyID
	Static  bool
	Dynamic bool
}

type Joint struct {
	Kind      engine.JointKind
	Parent    engine.BodyID
	Child     engine.BodyID
	Anchor    mgl64.Vec3
	Axis      mgl64.Vec3
	Lower     float64
	Upper     float64
	HasLimits bool
	Position  float64
	Rate      float64
	Effort    float64
	// Anchors counts SetJointAnchor calls.
	Anchors int
}

type Engine struct {
	Params engine.WorldParams
	Bodies map[engine.BodyID]*Body
	Geoms  map[engine.GeomID]*Geom
	Joints map[engine.JointID]*Joint

	Steps    int
	StepTime float64
	Closed   bool

	// Calls counts invocations per operation name.
	Calls map[string]int

	failures map[string]error
	nth      map[string]map[int]error
	panics   map[string]bool
	next     uint32
}

func New() *Engine {
	return &Engine{
		Params:   engine.DefaultWorldParams(),
		Bodies:   make(map[engine.BodyID]*Body),
		Geoms:    make(map[engine.GeomID]*Geom),
		Joints:   make(map[engine.JointID]*Joint),
		Calls:    make(map[string]int),
		failures: make(map[string]error),
		nth:      make(map[string]map[int]error),
		panics:   make(map[string]bool),
	}
}

// Discoverer returns a discoverer that hands out e.
func (e *Engine) Discoverer() engine.Discoverer {
	return func(p engine.WorldParams) (engine.Engine, error) {
		e.Params = p
		return e, nil
	}
}

// Unavailable is a discoverer that always fails.
func Unavailable(engine.WorldParams) (engine.Engine, error) {
	return nil, engine.ErrEngineUnavailable
}

// Fail makes every later call of op return err; a nil err clears it.
func (e *Engine) Fail(op string, err error) {
	if err == nil {
		delete(e.failures, op)
		return
	}
	e.failures[op] = err
}

// FailCall makes only the n-th call (1-based, counted from construction) of
// op return err.
func (e *Engine) FailCall(op string, n int, err error) {
	if e.nth[op] == nil {
		e.nth[op] = make(map[int]error)
	}
	e.nth[op][n] = err
}

// Panic makes every later call of op panic.
func (e *Engine) Panic(op string) { e.panics[op] = true }

func (e *Engine) check(op string) error {
	e.Calls[op]++
	if e.panics[op] {
		panic(fmt.Sprintf("enginetest: %s exploded", op))
	}
	if err := e.nth[op][e.Calls[op]]; err != nil {
		return err
	}
	return e.failures[op]
}

func (e *Engine) id() uint32 {
	e.next++
	return e.next
}

func (e *Engine) body(op string, id engine.BodyID) (*Body, error) {
	if err := e.check(op); err != nil {
		return nil, err
	}
	b, ok := e.Bodies[id]
	if !ok {
		return nil, fmt.Errorf("%w: body %d", engine.ErrUnknownHandle, id)
	}
	return b, nil
}

func (e *Engine) geom(op string, id engine.GeomID) (*Geom, error) {
	if err := e.check(op); err != nil {
		return nil, err
	}
	g, ok := e.Geoms[id]
	if !ok {
		return nil, fmt.Errorf("%w: geom %d", engine.ErrUnknownHandle, id)
	}
	return g, nil
}

func (e *Engine) joint(op string, id engine.JointID) (*Joint, error) {
	if err := e.check(op); err != nil {
		return nil, err
	}
	j, ok := e.Joints[id]
	if !ok {
		return nil, fmt.Errorf("%w: joint %d", engine.ErrUnknownHandle, id)
	}
	return j, nil
}

// JointsOfKind counts live joints of kind k.
func (e *Engine) JointsOfKind(k engine.JointKind) int {
	n := 0
	for _, j := range e.Joints {
		if j.Kind == k {
			n++
		}
	}
	return n
}

// StaticGeoms counts registered static geoms.
func (e *Engine) StaticGeoms() int {
	n := 0
	for _, g := range e.Geoms {
		if g.Static {
			n++
		}
	}
	return n
}

func (e *Engine) Name() string { return "memory" }

func (e *Engine) CreateBody() (engine.BodyID, error) {
	if err := e.check("create_body"); err != nil {
		return 0, err
	}
	id := engine.BodyID(e.id())
	e.Bodies[id] = &Body{Quat: mgl64.QuatIdent()}
	return id, nil
}

func (e *Engine) DestroyBody(id engine.BodyID) error {
	if _, err := e.body("destroy_body", id); err != nil {
		return err
	}
	delete(e.Bodies, id)
	return nil
}

func (e *Engine) SetBodyMass(id engine.BodyID, m engine.MassSpec) error {
	b, err := e.body("set_body_mass", id)
	if err != nil {
		return err
	}
	b.Mass = m
	return nil
}

// MassOf returns the total mass m describes.
func MassOf(m engine.MassSpec) float64 {
	if m.Total > 0 {
		return m.Total
	}
	var vol float64
	switch m.Shape {
	case engine.ShapeSphere:
		vol = 4.0 / 3.0 * math.Pi * m.Dims[0] * m.Dims[0] * m.Dims[0]
	case engine.ShapeCylinder:
		vol = math.Pi * m.Dims[0] * m.Dims[0] * m.Dims[1]
	default:
		vol = m.Dims[0] * m.Dims[1] * m.Dims[2]
	}
	return m.Density * vol
}

func (e *Engine) addGeom(op string, g *Geom) (engine.GeomID, error) {
	if err := e.check(op); err != nil {
		return 0, err
	}
	id := engine.GeomID(e.id())
	e.Geoms[id] = g
	return id, nil
}

func (e *Engine) CreateBoxGeom(size mgl64.Vec3) (engine.GeomID, error) {
	return e.addGeom("create_box", &Geom{Shape: engine.ShapeBox, Size: size})
}

func (e *Engine) CreateSphereGeom(radius float64) (engine.GeomID, error) {
	return e.addGeom("create_sphere", &Geom{Shape: engine.ShapeSphere, Radius: radius})
}

func (e *Engine) CreateCylinderGeom(radius, length float64) (engine.GeomID, error) {
	return e.addGeom("create_cylinder", &Geom{Shape: engine.ShapeCylinder, Radius: radius, Length: length})
}

func (e *Engine) SetGeomPosition(id engine.GeomID, p mgl64.Vec3) error {
	g, err := e.geom("set_geom_position", id)
	if err != nil {
		return err
	}
	g.Pos = p
	return nil
}

func (e *Engine) SetGeomBody(id engine.GeomID, b engine.BodyID) error {
	g, err := e.geom("set_geom_body", id)
	if err != nil {
		return err
	}
	if _, ok := e.Bodies[b]; !ok && b != 0 {
		return fmt.Errorf("%w: body %d", engine.ErrUnknownHandle, b)
	}
	g.Body = b
	return nil
}

func (e *Engine) RegisterStaticGeom(id engine.GeomID) error {
	g, err := e.geom("register_static_geom", id)
	if err != nil {
		return err
	}
	g.Static = true
	return nil
}

func (e *Engine) RegisterDynamicGeom(id engine.GeomID) error {
	g, err := e.geom("register_dynamic_geom", id)
	if err != nil {
		return err
	}
	g.Dynamic = true
	return nil
}

// GeomBounds ignores orientation.
func (e *Engine) GeomBounds(id engine.GeomID) (mgl64.Vec3, mgl64.Vec3, error) {
	g, err := e.geom("geom_bounds", id)
	if err != nil {
		return mgl64.Vec3{}, mgl64.Vec3{}, err
	}
	center := g.Pos
	if b, ok := e.Bodies[g.Body]; ok {
		center = b.Pos
	}
	var half mgl64.Vec3
	switch g.Shape {
	case engine.ShapeSphere:
		half = mgl64.Vec3{g.Radius, g.Radius, g.Radius}
	case engine.ShapeCylinder:
		half = mgl64.Vec3{g.Radius, g.Radius, g.Length / 2}
	default:
		half = g.Size.Mul(0.5)
	}
	return center.Sub(half), center.Add(half), nil
}

func (e *Engine) DestroyGeom(id engine.GeomID) error {
	if _, err := e.geom("destroy_geom", id); err != nil {
		return err
	}
	delete(e.Geoms, id)
	return nil
}

func (e *Engine) BodyPosition(id engine.BodyID) (mgl64.Vec3, error) {
	b, err := e.body("body_position", id)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return b.Pos, nil
}

func (e *Engine) SetBodyPosition(id engine.BodyID, p mgl64.Vec3) error {
	b, err := e.body("set_body_position", id)
	if err != nil {
		return err
	}
	b.Pos = p
	return nil
}

func (e *Engine) BodyQuaternion(id engine.BodyID) (mgl64.Quat, error) {
	b, err := e.body("body_quaternion", id)
	if err != nil {
		return mgl64.QuatIdent(), err
	}
	return b.Quat, nil
}

func (e *Engine) SetBodyQuaternion(id engine.BodyID, q mgl64.Quat) error {
	b, err := e.body("set_body_quaternion", id)
	if err != nil {
		return err
	}
	b.Quat = q
	return nil
}

func (e *Engine) BodyLinearVel(id engine.BodyID) (mgl64.Vec3, error) {
	b, err := e.body("body_linear_vel", id)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return b.LinVel, nil
}

func (e *Engine) SetBodyLinearVel(id engine.BodyID, v mgl64.Vec3) error {
	b, err := e.body("set_body_linear_vel", id)
	if err != nil {
		return err
	}
	b.LinVel = v
	return nil
}

func (e *Engine) BodyAngularVel(id engine.BodyID) (mgl64.Vec3, error) {
	b, err := e.body("body_angular_vel", id)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return b.AngVel, nil
}

func (e *Engine) SetBodyAngularVel(id engine.BodyID, w mgl64.Vec3) error {
	b, err := e.body("set_body_angular_vel", id)
	if err != nil {
		return err
	}
	b.AngVel = w
	return nil
}

func (e *Engine) AddForce(id engine.BodyID, f mgl64.Vec3) error {
	b, err := e.body("add_force", id)
	if err != nil {
		return err
	}
	b.Force = b.Force.Add(f)
	return nil
}

func (e *Engine) AddTorque(id engine.BodyID, t mgl64.Vec3) error {
	b, err := e.body("add_torque", id)
	if err != nil {
		return err
	}
	b.Torque = b.Torque.Add(t)
	return nil
}

func (e *Engine) CreateJoint(kind engine.JointKind, parent, child engine.BodyID) (engine.JointID, error) {
	if err := e.check("create_joint"); err != nil {
		return 0, err
	}
	for _, b := range []engine.BodyID{parent, child} {
		if _, ok := e.Bodies[b]; b != 0 && !ok {
			return 0, fmt.Errorf("%w: body %d", engine.ErrUnknownHandle, b)
		}
	}
	id := engine.JointID(e.id())
	e.Joints[id] = &Joint{Kind: kind, Parent: parent, Child: child}
	return id, nil
}

func (e *Engine) SetJointAnchor(id engine.JointID, p mgl64.Vec3) error {
	j, err := e.joint("set_joint_anchor", id)
	if err != nil {
		return err
	}
	j.Anchor = p
	j.Anchors++
	return nil
}

func (e *Engine) SetJointAxis(id engine.JointID, axis mgl64.Vec3) error {
	j, err := e.joint("set_joint_axis", id)
	if err != nil {
		return err
	}
	j.Axis = axis
	return nil
}

func (e *Engine) SetJointLimits(id engine.JointID, lower, upper float64) error {
	j, err := e.joint("set_joint_limits", id)
	if err != nil {
		return err
	}
	j.Lower, j.Upper, j.HasLimits = lower, upper, true
	return nil
}

func (e *Engine) JointPosition(id engine.JointID) (float64, error) {
	j, err := e.joint("joint_position", id)
	if err != nil {
		return 0, err
	}
	return j.Position, nil
}

func (e *Engine) JointRate(id engine.JointID) (float64, error) {
	j, err := e.joint("joint_rate", id)
	if err != nil {
		return 0, err
	}
	return j.Rate, nil
}

func (e *Engine) AddJointEffort(id engine.JointID, effort float64) error {
	j, err := e.joint("add_joint_effort", id)
	if err != nil {
		return err
	}
	if j.Kind == engine.JointFixed {
		return engine.ErrUnsupported
	}
	j.Effort += effort
	return nil
}

func (e *Engine) DestroyJoint(id engine.JointID) error {
	if _, err := e.joint("destroy_joint", id); err != nil {
		return err
	}
	delete(e.Joints, id)
	return nil
}

func (e *Engine) Step(dt float64) error {
	if err := e.check("step"); err != nil {
		return err
	}
	g := e.Params.Gravity
	for _, b := range e.Bodies {
		m := MassOf(b.Mass)
		if m <= 0 {
			m = 1
		}
		acc := g.Add(b.Force.Mul(1 / m))
		b.LinVel = b.LinVel.Add(acc.Mul(dt))
		b.Pos = b.Pos.Add(b.LinVel.Mul(dt))
		b.AngVel = b.AngVel.Add(b.Torque.Mul(dt / m))
		b.Force, b.Torque = mgl64.Vec3{}, mgl64.Vec3{}
	}
	for _, j := range e.Joints {
		if j.Kind == engine.JointFixed {
			continue
		}
		j.Rate += j.Effort * dt
		j.Position += j.Rate * dt
		if j.HasLimits && j.Upper > j.Lower {
			if j.Position < j.Lower {
				j.Position, j.Rate = j.Lower, 0
			} else if j.Position > j.Upper {
				j.Position, j.Rate = j.Upper, 0
			}
		}
		j.Effort = 0
	}
	e.Steps++
	e.StepTime += dt
	return nil
}

func (e *Engine) SetWorldParams(p engine.WorldParams) error {
	if err := e.check("set_world_params"); err != nil {
		return err
	}
	e.Params = p
	return nil
}

func (e *Engine) Close() error {
	e.Calls["close"]++
	e.Closed = true
	return nil
}

//go:build ode

package engine

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/ianremmler/ode"
)

var odeInit sync.Once

const contactGroupSize = 1024

type odeJoint struct {
	kind   JointKind
	joint  ode.Joint
	hinge  ode.HingeJoint
	slider ode.SliderJoint
	a, b   BodyID
}

// odeEngine drives one ODE world. Dynamic geoms live in a hash space and
// static geoms in a separate simple space that is never collided against
// itself. Contacts are rebuilt every step.
type odeEngine struct {
	world   ode.World
	space   ode.Space
	statics ode.Space
	group   ode.JointGroup
	params  WorldParams

	nextID uint32
	bodies map[BodyID]ode.Body
	byBody map[ode.Body]BodyID
	geoms  map[GeomID]ode.Geom
	joints map[JointID]*odeJoint
	// linked counts joints between two bodies; world attachments are not
	// recorded so attached bodies still touch static geoms.
	linked map[[2]BodyID]int

	dynamic  map[GeomID]struct{}
	static   map[GeomID]struct{}
	contacts int
}

// Discover opens a native ODE world.
func Discover(p WorldParams) (Engine, error) {
	odeInit.Do(func() { ode.Init(0, ode.AllAFlag) })

	e := &odeEngine{
		world:  ode.NewWorld(),
		group:  ode.NewJointGroup(contactGroupSize),
		bodies: make(map[BodyID]ode.Body),
		byBody: make(map[ode.Body]BodyID),
		geoms:  make(map[GeomID]ode.Geom),
		joints: make(map[JointID]*odeJoint),
		linked: make(map[[2]BodyID]int),

		dynamic: make(map[GeomID]struct{}),
		static:  make(map[GeomID]struct{}),
	}
	e.space = ode.NilSpace().NewHashSpace()
	e.statics = ode.NilSpace().NewSimpleSpace()
	if err := e.SetWorldParams(p); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *odeEngine) Name() string { return "ode" }

func (e *odeEngine) id() uint32 {
	e.nextID++
	return e.nextID
}

func v3(v mgl64.Vec3) ode.Vector3 { return ode.V3(v[0], v[1], v[2]) }

func fromV3(v ode.Vector3) mgl64.Vec3 {
	if len(v) < 3 {
		return mgl64.Vec3{}
	}
	return mgl64.Vec3{v[0], v[1], v[2]}
}

func (e *odeEngine) body(b BodyID) (ode.Body, error) {
	if b == 0 {
		return ode.Body(0), nil
	}
	body, ok := e.bodies[b]
	if !ok {
		return 0, fmt.Errorf("%w: body %d", ErrUnknownHandle, b)
	}
	return body, nil
}

func (e *odeEngine) geom(g GeomID) (ode.Geom, error) {
	geom, ok := e.geoms[g]
	if !ok {
		return nil, fmt.Errorf("%w: geom %d", ErrUnknownHandle, g)
	}
	return geom, nil
}

func (e *odeEngine) joint(j JointID) (*odeJoint, error) {
	oj, ok := e.joints[j]
	if !ok {
		return nil, fmt.Errorf("%w: joint %d", ErrUnknownHandle, j)
	}
	return oj, nil
}

func (e *odeEngine) CreateBody() (BodyID, error) {
	body := e.world.NewBody()
	id := BodyID(e.id())
	e.bodies[id] = body
	e.byBody[body] = id
	return id, nil
}

func (e *odeEngine) DestroyBody(b BodyID) error {
	body, ok := e.bodies[b]
	if !ok {
		return fmt.Errorf("%w: body %d", ErrUnknownHandle, b)
	}
	body.Destroy()
	delete(e.bodies, b)
	delete(e.byBody, body)
	return nil
}

func (e *odeEngine) SetBodyMass(b BodyID, m MassSpec) error {
	body, err := e.body(b)
	if err != nil || body == 0 {
		return fmt.Errorf("%w: body %d", ErrUnknownHandle, b)
	}
	mass := ode.NewMass()
	switch m.Shape {
	case ShapeSphere:
		mass.SetSphere(m.Density, m.Dims[0])
	case ShapeCylinder:
		mass.SetCylinder(m.Density, 3, m.Dims[0], m.Dims[1])
	default:
		mass.SetBox(m.Density, v3(m.Dims))
	}
	if m.Total > 0 {
		mass.Adjust(m.Total)
	}
	body.SetMass(mass)
	return nil
}

func (e *odeEngine) addGeom(g ode.Geom) GeomID {
	id := GeomID(e.id())
	e.geoms[id] = g
	return id
}

func (e *odeEngine) CreateBoxGeom(size mgl64.Vec3) (GeomID, error) {
	return e.addGeom(ode.NilSpace().NewBox(v3(size))), nil
}

func (e *odeEngine) CreateSphereGeom(radius float64) (GeomID, error) {
	return e.addGeom(ode.NilSpace().NewSphere(radius)), nil
}

func (e *odeEngine) CreateCylinderGeom(radius, length float64) (GeomID, error) {
	return e.addGeom(ode.NilSpace().NewCylinder(radius, length)), nil
}

func (e *odeEngine) SetGeomPosition(g GeomID, p mgl64.Vec3) error {
	geom, err := e.geom(g)
	if err != nil {
		return err
	}
	geom.SetPosition(v3(p))
	return nil
}

func (e *odeEngine) SetGeomBody(g GeomID, b BodyID) error {
	geom, err := e.geom(g)
	if err != nil {
		return err
	}
	body, err := e.body(b)
	if err != nil {
		return err
	}
	geom.SetBody(body)
	return nil
}

func (e *odeEngine) RegisterStaticGeom(g GeomID) error {
	geom, err := e.geom(g)
	if err != nil {
		return err
	}
	e.statics.Add(geom)
	e.static[g] = struct{}{}
	return nil
}

func (e *odeEngine) RegisterDynamicGeom(g GeomID) error {
	geom, err := e.geom(g)
	if err != nil {
		return err
	}
	e.space.Add(geom)
	e.dynamic[g] = struct{}{}
	return nil
}

func (e *odeEngine) GeomBounds(g GeomID) (mgl64.Vec3, mgl64.Vec3, error) {
	geom, err := e.geom(g)
	if err != nil {
		return mgl64.Vec3{}, mgl64.Vec3{}, err
	}
	aabb := geom.AABB()
	if len(aabb) < 6 {
		return mgl64.Vec3{}, mgl64.Vec3{}, ErrUnsupported
	}
	return mgl64.Vec3{aabb[0], aabb[2], aabb[4]}, mgl64.Vec3{aabb[1], aabb[3], aabb[5]}, nil
}

func (e *odeEngine) DestroyGeom(g GeomID) error {
	geom, err := e.geom(g)
	if err != nil {
		return err
	}
	geom.Destroy()
	delete(e.geoms, g)
	delete(e.dynamic, g)
	delete(e.static, g)
	return nil
}

func (e *odeEngine) liveBody(b BodyID) (ode.Body, error) {
	body, ok := e.bodies[b]
	if !ok {
		return 0, fmt.Errorf("%w: body %d", ErrUnknownHandle, b)
	}
	return body, nil
}

func (e *odeEngine) BodyPosition(b BodyID) (mgl64.Vec3, error) {
	body, err := e.liveBody(b)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return fromV3(body.Position()), nil
}

func (e *odeEngine) SetBodyPosition(b BodyID, p mgl64.Vec3) error {
	body, err := e.liveBody(b)
	if err != nil {
		return err
	}
	body.SetPosition(v3(p))
	return nil
}

func (e *odeEngine) BodyQuaternion(b BodyID) (mgl64.Quat, error) {
	body, err := e.liveBody(b)
	if err != nil {
		return mgl64.QuatIdent(), err
	}
	q := body.Quaternion()
	if len(q) < 4 {
		return mgl64.QuatIdent(), ErrUnsupported
	}
	return mgl64.Quat{W: q[0], V: mgl64.Vec3{q[1], q[2], q[3]}}, nil
}

func (e *odeEngine) SetBodyQuaternion(b BodyID, q mgl64.Quat) error {
	body, err := e.liveBody(b)
	if err != nil {
		return err
	}
	body.SetQuaternion(ode.NewQuaternion(q.W, q.V[0], q.V[1], q.V[2]))
	return nil
}

func (e *odeEngine) BodyLinearVel(b BodyID) (mgl64.Vec3, error) {
	body, err := e.liveBody(b)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return fromV3(body.LinearVelocity()), nil
}

func (e *odeEngine) SetBodyLinearVel(b BodyID, v mgl64.Vec3) error {
	body, err := e.liveBody(b)
	if err != nil {
		return err
	}
	body.SetLinearVelocity(v3(v))
	return nil
}

func (e *odeEngine) BodyAngularVel(b BodyID) (mgl64.Vec3, error) {
	body, err := e.liveBody(b)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return fromV3(body.AngularVelocity()), nil
}

func (e *odeEngine) SetBodyAngularVel(b BodyID, w mgl64.Vec3) error {
	body, err := e.liveBody(b)
	if err != nil {
		return err
	}
	body.SetAngularVelocity(v3(w))
	return nil
}

func (e *odeEngine) AddForce(b BodyID, f mgl64.Vec3) error {
	body, err := e.liveBody(b)
	if err != nil {
		return err
	}
	body.AddForce(v3(f))
	return nil
}

func (e *odeEngine) AddTorque(b BodyID, t mgl64.Vec3) error {
	body, err := e.liveBody(b)
	if err != nil {
		return err
	}
	body.AddTorque(v3(t))
	return nil
}

func pairKey(a, b BodyID) [2]BodyID {
	if a > b {
		a, b = b, a
	}
	return [2]BodyID{a, b}
}

func (e *odeEngine) CreateJoint(kind JointKind, parent, child BodyID) (JointID, error) {
	pb, err := e.body(parent)
	if err != nil {
		return 0, err
	}
	cb, err := e.body(child)
	if err != nil {
		return 0, err
	}

	oj := &odeJoint{kind: kind, a: parent, b: child}
	switch kind {
	case JointHinge:
		oj.hinge = e.world.NewHingeJoint(ode.JointGroup(0))
		oj.joint = oj.hinge
	case JointSlider:
		oj.slider = e.world.NewSliderJoint(ode.JointGroup(0))
		oj.joint = oj.slider
	case JointFixed:
		fixed := e.world.NewFixedJoint(ode.JointGroup(0))
		oj.joint = fixed
		fixed.Attach(cb, pb)
		fixed.SetFixed()
	default:
		return 0, ErrUnsupported
	}
	if kind != JointFixed {
		oj.joint.Attach(cb, pb)
	}

	id := JointID(e.id())
	e.joints[id] = oj
	if parent != 0 && child != 0 {
		e.linked[pairKey(parent, child)]++
	}
	return id, nil
}

func (e *odeEngine) SetJointAnchor(j JointID, p mgl64.Vec3) error {
	oj, err := e.joint(j)
	if err != nil {
		return err
	}
	if oj.kind != JointHinge {
		return ErrUnsupported
	}
	oj.hinge.SetAnchor(v3(p))
	return nil
}

func (e *odeEngine) SetJointAxis(j JointID, axis mgl64.Vec3) error {
	oj, err := e.joint(j)
	if err != nil {
		return err
	}
	switch oj.kind {
	case JointHinge:
		oj.hinge.SetAxis(v3(axis))
	case JointSlider:
		oj.slider.SetAxis(v3(axis))
	default:
		return ErrUnsupported
	}
	return nil
}

func (e *odeEngine) SetJointLimits(j JointID, lower, upper float64) error {
	oj, err := e.joint(j)
	if err != nil {
		return err
	}
	switch oj.kind {
	case JointHinge:
		oj.hinge.SetParam(ode.LoStopJtParam, lower)
		oj.hinge.SetParam(ode.HiStopJtParam, upper)
	case JointSlider:
		oj.slider.SetParam(ode.LoStopJtParam, lower)
		oj.slider.SetParam(ode.HiStopJtParam, upper)
	default:
		return ErrUnsupported
	}
	return nil
}

func (e *odeEngine) JointPosition(j JointID) (float64, error) {
	oj, err := e.joint(j)
	if err != nil {
		return 0, err
	}
	switch oj.kind {
	case JointHinge:
		return oj.hinge.Angle(), nil
	case JointSlider:
		return oj.slider.Position(), nil
	}
	return 0, nil
}

func (e *odeEngine) JointRate(j JointID) (float64, error) {
	oj, err := e.joint(j)
	if err != nil {
		return 0, err
	}
	switch oj.kind {
	case JointHinge:
		return oj.hinge.AngleRate(), nil
	case JointSlider:
		return oj.slider.PositionRate(), nil
	}
	return 0, nil
}

func (e *odeEngine) AddJointEffort(j JointID, effort float64) error {
	oj, err := e.joint(j)
	if err != nil {
		return err
	}
	switch oj.kind {
	case JointHinge:
		oj.hinge.AddTorque(effort)
	case JointSlider:
		oj.slider.AddForce(effort)
	default:
		return ErrUnsupported
	}
	return nil
}

func (e *odeEngine) DestroyJoint(j JointID) error {
	oj, err := e.joint(j)
	if err != nil {
		return err
	}
	oj.joint.Destroy()
	delete(e.joints, j)
	if oj.a == 0 || oj.b == 0 {
		return nil
	}
	key := pairKey(oj.a, oj.b)
	if e.linked[key]--; e.linked[key] <= 0 {
		delete(e.linked, key)
	}
	return nil
}

func (e *odeEngine) Step(dt float64) error {
	e.contacts = 0
	e.space.Collide(nil, e.near)
	e.collideStatic()
	e.world.QuickStep(dt)
	e.group.Empty()
	return nil
}

// collideStatic pairs every dynamic geom with the static geoms whose bounds
// it overlaps.
func (e *odeEngine) collideStatic() {
	for dg := range e.dynamic {
		d := e.geoms[dg]
		da := d.AABB()
		if len(da) < 6 {
			continue
		}
		for sg := range e.static {
			s := e.geoms[sg]
			if sa := s.AABB(); len(sa) >= 6 && overlaps(da, sa) {
				e.near(nil, d, s)
			}
		}
	}
}

func overlaps(a, b []float64) bool {
	for i := 0; i < 6; i += 2 {
		if a[i] > b[i+1] || b[i] > a[i+1] {
			return false
		}
	}
	return true
}

func (e *odeEngine) near(_ interface{}, g1, g2 ode.Geom) {
	b1, b2 := g1.Body(), g2.Body()
	if b1 == 0 && b2 == 0 {
		return
	}
	if e.linked[pairKey(e.byBody[b1], e.byBody[b2])] > 0 {
		return
	}

	cp := e.params.Contact
	n := cp.MaxContacts
	if n <= 0 {
		n = 1
	}
	for _, cg := range g1.Collide(g2, uint16(n), 0) {
		contact := ode.NewContact()
		contact.Surface.Mode = ode.BounceCtParam | ode.SoftERPCtParam | ode.SoftCFMCtParam
		contact.Surface.Mu = cp.Mu
		contact.Surface.Bounce = cp.Bounce
		contact.Surface.BounceVel = cp.BounceVelocity
		contact.Surface.SoftErp = cp.SoftERP
		contact.Surface.SoftCfm = cp.SoftCFM
		contact.Geom = cg
		ct := e.world.NewContactJoint(e.group, contact)
		ct.Attach(b1, b2)
		e.contacts++
	}
}

func (e *odeEngine) SetWorldParams(p WorldParams) error {
	e.params = p
	e.world.SetGravity(v3(p.Gravity))
	e.world.SetERP(p.ERP)
	e.world.SetCFM(p.CFM)
	e.world.SetAutoDisable(p.AutoDisable.Enabled)
	e.world.SetAutoDisableLinearThreshold(p.AutoDisable.LinearThreshold)
	e.world.SetAutoDisableAngularThreshold(p.AutoDisable.AngularThreshold)
	e.world.SetAutoDisableSteps(p.AutoDisable.Steps)
	e.world.SetContactMaxCorrectingVelocity(p.Contact.MaxCorrectingVel)
	e.world.SetContactSurfaceLayer(p.Contact.SurfaceLayer)
	return nil
}

func (e *odeEngine) Close() error {
	for id, oj := range e.joints {
		oj.joint.Destroy()
		delete(e.joints, id)
	}
	for id, g := range e.geoms {
		g.Destroy()
		delete(e.geoms, id)
	}
	for id, b := range e.bodies {
		b.Destroy()
		delete(e.bodies, id)
	}
	e.group.Destroy()
	e.statics.Destroy()
	e.space.Destroy()
	e.world.Destroy()
	return nil
}

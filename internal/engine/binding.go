package engine

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
	Disabled
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Disabled:
		return "disabled"
	default:
		return "uninitialized"
	}
}

// Binding owns one physics world and exposes it as a set of calls that never
// fail loudly: every error or panic from the engine is logged and turned into
// a zero handle, false, or no-op.
//
// Initialization is lazy, idempotent and mutex-guarded. A binding that fails
// discovery stays Disabled for its lifetime. Everything else expects a single
// caller thread.
type Binding struct {
	mu       sync.Mutex
	state    State
	engine   Engine
	discover Discoverer
	params   WorldParams
	log      *zap.Logger
}

type Option func(*Binding)

func WithLogger(l *zap.Logger) Option {
	return func(b *Binding) {
		if l != nil {
			b.log = l
		}
	}
}

// WithDiscoverer replaces the native engine lookup.
func WithDiscoverer(d Discoverer) Option {
	return func(b *Binding) { b.discover = d }
}

func NewBinding(params WorldParams, opts ...Option) *Binding {
	b := &Binding{
		params:   params,
		discover: Discover,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.Named("engine")
	return b
}

// Init runs discovery once and returns the resulting state.
func (b *Binding) Init() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Uninitialized {
		return b.state
	}
	b.state = Initializing

	eng, err := b.safeDiscover()
	if err != nil {
		b.state = Disabled
		b.log.Warn("physics disabled, falling back to kinematic mode", zap.Error(err))
		return b.state
	}

	b.engine = eng
	b.state = Ready
	b.log.Info("physics engine ready", zap.String("engine", eng.Name()))
	return b.state
}

func (b *Binding) safeDiscover() (eng Engine, err error) {
	defer func() {
		if r := recover(); r != nil {
			eng, err = nil, fmt.Errorf("%w: discovery panicked: %v", ErrEngineUnavailable, r)
		}
	}()
	if b.discover == nil {
		return nil, ErrEngineUnavailable
	}
	eng, err = b.discover(b.params)
	if err == nil && eng == nil {
		err = ErrEngineUnavailable
	}
	return eng, err
}

func (b *Binding) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Ready triggers initialization if needed and reports whether the engine is
// usable.
func (b *Binding) Ready() bool {
	return b.Init() == Ready
}

func (b *Binding) EngineName() string {
	if eng := b.live(); eng != nil {
		return eng.Name()
	}
	return "none"
}

func (b *Binding) Params() WorldParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.params
}

func (b *Binding) live() Engine {
	if b.Init() != Ready {
		return nil
	}
	return b.engine
}

// call runs fn against the live engine and absorbs any failure.
func (b *Binding) call(op string, fn func(Engine) error) (ok bool) {
	eng := b.live()
	if eng == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn("engine call panicked", zap.String("op", op), zap.Any("panic", r))
			ok = false
		}
	}()
	if err := fn(eng); err != nil {
		b.log.Warn("engine call failed", zap.String("op", op), zap.Error(err))
		return false
	}
	return true
}

func (b *Binding) CreateBody() BodyID {
	var id BodyID
	b.call("create_body", func(e Engine) (err error) {
		id, err = e.CreateBody()
		return err
	})
	return id
}

func (b *Binding) DestroyBody(id BodyID) bool {
	if id == 0 {
		return false
	}
	return b.call("destroy_body", func(e Engine) error { return e.DestroyBody(id) })
}

func (b *Binding) SetBodyMass(id BodyID, m MassSpec) bool {
	return b.call("set_body_mass", func(e Engine) error { return e.SetBodyMass(id, m) })
}

func (b *Binding) CreateBoxGeom(size mgl64.Vec3) GeomID {
	var id GeomID
	b.call("create_box", func(e Engine) (err error) {
		id, err = e.CreateBoxGeom(size)
		return err
	})
	return id
}

func (b *Binding) CreateSphereGeom(radius float64) GeomID {
	var id GeomID
	b.call("create_sphere", func(e Engine) (err error) {
		id, err = e.CreateSphereGeom(radius)
		return err
	})
	return id
}

func (b *Binding) CreateCylinderGeom(radius, length float64) GeomID {
	var id GeomID
	b.call("create_cylinder", func(e Engine) (err error) {
		id, err = e.CreateCylinderGeom(radius, length)
		return err
	})
	return id
}

func (b *Binding) SetGeomPosition(id GeomID, p mgl64.Vec3) bool {
	return b.call("set_geom_position", func(e Engine) error { return e.SetGeomPosition(id, p) })
}

func (b *Binding) SetGeomBody(id GeomID, body BodyID) bool {
	return b.call("set_geom_body", func(e Engine) error { return e.SetGeomBody(id, body) })
}

func (b *Binding) RegisterStaticGeom(id GeomID) bool {
	return b.call("register_static_geom", func(e Engine) error { return e.RegisterStaticGeom(id) })
}

func (b *Binding) RegisterDynamicGeom(id GeomID) bool {
	return b.call("register_dynamic_geom", func(e Engine) error { return e.RegisterDynamicGeom(id) })
}

func (b *Binding) GeomBounds(id GeomID) (lo, hi mgl64.Vec3, ok bool) {
	ok = b.call("geom_bounds", func(e Engine) (err error) {
		lo, hi, err = e.GeomBounds(id)
		return err
	})
	return lo, hi, ok
}

func (b *Binding) DestroyGeom(id GeomID) bool {
	if id == 0 {
		return false
	}
	return b.call("destroy_geom", func(e Engine) error { return e.DestroyGeom(id) })
}

func (b *Binding) BodyPosition(id BodyID) (p mgl64.Vec3, ok bool) {
	ok = b.call("body_position", func(e Engine) (err error) {
		p, err = e.BodyPosition(id)
		return err
	})
	return p, ok
}

func (b *Binding) SetBodyPosition(id BodyID, p mgl64.Vec3) bool {
	return b.call("set_body_position", func(e Engine) error { return e.SetBodyPosition(id, p) })
}

func (b *Binding) BodyQuaternion(id BodyID) (q mgl64.Quat, ok bool) {
	ok = b.call("body_quaternion", func(e Engine) (err error) {
		q, err = e.BodyQuaternion(id)
		return err
	})
	if !ok {
		return mgl64.QuatIdent(), false
	}
	return q, true
}

func (b *Binding) SetBodyQuaternion(id BodyID, q mgl64.Quat) bool {
	return b.call("set_body_quaternion", func(e Engine) error { return e.SetBodyQuaternion(id, q) })
}

func (b *Binding) BodyLinearVel(id BodyID) (v mgl64.Vec3, ok bool) {
	ok = b.call("body_linear_vel", func(e Engine) (err error) {
		v, err = e.BodyLinearVel(id)
		return err
	})
	return v, ok
}

func (b *Binding) SetBodyLinearVel(id BodyID, v mgl64.Vec3) bool {
	return b.call("set_body_linear_vel", func(e Engine) error { return e.SetBodyLinearVel(id, v) })
}

func (b *Binding) BodyAngularVel(id BodyID) (w mgl64.Vec3, ok bool) {
	ok = b.call("body_angular_vel", func(e Engine) (err error) {
		w, err = e.BodyAngularVel(id)
		return err
	})
	return w, ok
}

func (b *Binding) SetBodyAngularVel(id BodyID, w mgl64.Vec3) bool {
	return b.call("set_body_angular_vel", func(e Engine) error { return e.SetBodyAngularVel(id, w) })
}

func (b *Binding) AddForce(id BodyID, f mgl64.Vec3) bool {
	return b.call("add_force", func(e Engine) error { return e.AddForce(id, f) })
}

func (b *Binding) AddTorque(id BodyID, t mgl64.Vec3) bool {
	return b.call("add_torque", func(e Engine) error { return e.AddTorque(id, t) })
}

func (b *Binding) CreateJoint(kind JointKind, parent, child BodyID) JointID {
	var id JointID
	b.call("create_joint", func(e Engine) (err error) {
		id, err = e.CreateJoint(kind, parent, child)
		return err
	})
	return id
}

func (b *Binding) SetJointAnchor(id JointID, p mgl64.Vec3) bool {
	return b.call("set_joint_anchor", func(e Engine) error { return e.SetJointAnchor(id, p) })
}

func (b *Binding) SetJointAxis(id JointID, axis mgl64.Vec3) bool {
	return b.call("set_joint_axis", func(e Engine) error { return e.SetJointAxis(id, axis) })
}

func (b *Binding) SetJointLimits(id JointID, lower, upper float64) bool {
	return b.call("set_joint_limits", func(e Engine) error { return e.SetJointLimits(id, lower, upper) })
}

func (b *Binding) JointPosition(id JointID) (v float64, ok bool) {
	ok = b.call("joint_position", func(e Engine) (err error) {
		v, err = e.JointPosition(id)
		return err
	})
	return v, ok
}

func (b *Binding) JointRate(id JointID) (v float64, ok bool) {
	ok = b.call("joint_rate", func(e Engine) (err error) {
		v, err = e.JointRate(id)
		return err
	})
	return v, ok
}

func (b *Binding) AddJointEffort(id JointID, effort float64) bool {
	return b.call("add_joint_effort", func(e Engine) error { return e.AddJointEffort(id, effort) })
}

func (b *Binding) DestroyJoint(id JointID) bool {
	if id == 0 {
		return false
	}
	return b.call("destroy_joint", func(e Engine) error { return e.DestroyJoint(id) })
}

func (b *Binding) Step(dt float64) bool {
	if dt <= 0 {
		return false
	}
	return b.call("step", func(e Engine) error { return e.Step(dt) })
}

// SetGravity changes gravity for every consumer of this binding.
func (b *Binding) SetGravity(g mgl64.Vec3) bool {
	b.mu.Lock()
	b.params.Gravity = g
	p := b.params
	b.mu.Unlock()
	return b.call("set_gravity", func(e Engine) error { return e.SetWorldParams(p) })
}

// SetWorldTuning updates constraint softness and auto-disable thresholds.
func (b *Binding) SetWorldTuning(erp, cfm float64, ad AutoDisable) bool {
	b.mu.Lock()
	b.params.ERP, b.params.CFM, b.params.AutoDisable = erp, cfm, ad
	p := b.params
	b.mu.Unlock()
	return b.call("set_world_tuning", func(e Engine) error { return e.SetWorldParams(p) })
}

func (b *Binding) SetContactParams(c ContactParams) bool {
	b.mu.Lock()
	b.params.Contact = c
	p := b.params
	b.mu.Unlock()
	return b.call("set_contact_params", func(e Engine) error { return e.SetWorldParams(p) })
}

// Cleanup releases the engine. The binding is Disabled afterwards; build a
// new one to simulate again.
func (b *Binding) Cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.engine != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Warn("engine close panicked", zap.Any("panic", r))
				}
			}()
			if err := b.engine.Close(); err != nil {
				b.log.Warn("engine close failed", zap.Error(err))
			}
		}()
		b.engine = nil
	}
	b.state = Disabled
}

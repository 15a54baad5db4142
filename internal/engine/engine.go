// Package engine is the narrow port between the robot and a rigid-body
// physics engine, plus the Binding that owns one engine world.
//
// The native ODE backend is only compiled with -tags ode. It needs libode
// and its headers installed, and github.com/ianremmler/ode added to go.mod
// (go get github.com/ianremmler/ode). Without the tag Discover reports
// ErrEngineUnavailable and robots run kinematically.
package engine

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
)

// Domain errors for engine operations.
var (
	// ErrEngineUnavailable indicates no physics engine could be discovered.
	ErrEngineUnavailable = errors.New("engine: physics engine unavailable")

	// ErrUnknownHandle indicates a handle that the engine never issued or
	// already destroyed.
	ErrUnknownHandle = errors.New("engine: unknown handle")

	// ErrUnsupported indicates the engine lacks the requested capability.
	ErrUnsupported = errors.New("engine: operation not supported")
)

// Handles are opaque to callers. The zero value of each means "no handle",
// and a zero BodyID passed to joint creation means the static world.
type (
	BodyID  uint32
	GeomID  uint32
	JointID uint32
)

type Shape int

const (
	ShapeBox Shape = iota
	ShapeSphere
	ShapeCylinder
)

func (s Shape) String() string {
	switch s {
	case ShapeSphere:
		return "sphere"
	case ShapeCylinder:
		return "cylinder"
	default:
		return "box"
	}
}

// MassSpec describes a uniform-density mass for a primitive. Dims holds the
// full box extents, or (radius, length, 0) for spheres and cylinders. A
// positive Total rescales the mass to that value.
type MassSpec struct {
	Shape   Shape
	Dims    mgl64.Vec3
	Density float64
	Total   float64
}

type JointKind int

const (
	JointHinge JointKind = iota
	JointSlider
	JointFixed
)

type AutoDisable struct {
	Enabled          bool
	LinearThreshold  float64
	AngularThreshold float64
	Steps            int
}

// WorldParams are world-global: every consumer of a binding shares them.
type WorldParams struct {
	Gravity     mgl64.Vec3
	ERP         float64
	CFM         float64
	AutoDisable AutoDisable
	Contact     ContactParams
}

type ContactParams struct {
	Mu               float64
	Bounce           float64
	BounceVelocity   float64
	SoftERP          float64
	SoftCFM          float64
	MaxContacts      int
	MaxCorrectingVel float64
	SurfaceLayer     float64
}

func DefaultWorldParams() WorldParams {
	return WorldParams{
		Gravity: mgl64.Vec3{0, -9.81, 0},
		ERP:     0.2,
		CFM:     1e-5,
		AutoDisable: AutoDisable{
			Enabled:          false,
			LinearThreshold:  0.01,
			AngularThreshold: 0.01,
			Steps:            10,
		},
		Contact: ContactParams{
			Mu:               1.0,
			Bounce:           0.0,
			BounceVelocity:   0.1,
			SoftERP:          0.2,
			SoftCFM:          1e-4,
			MaxContacts:      4,
			MaxCorrectingVel: 10,
			SurfaceLayer:     0.001,
		},
	}
}

// Engine is the narrow capability surface a native physics library must
// provide. Implementations may return errors or panic; Binding absorbs both.
type Engine interface {
	Name() string

	CreateBody() (BodyID, error)
	DestroyBody(b BodyID) error
	SetBodyMass(b BodyID, m MassSpec) error

	CreateBoxGeom(size mgl64.Vec3) (GeomID, error)
	CreateSphereGeom(radius float64) (GeomID, error)
	CreateCylinderGeom(radius, length float64) (GeomID, error)
	SetGeomPosition(g GeomID, p mgl64.Vec3) error
	SetGeomBody(g GeomID, b BodyID) error
	RegisterStaticGeom(g GeomID) error
	RegisterDynamicGeom(g GeomID) error
	GeomBounds(g GeomID) (lo, hi mgl64.Vec3, err error)
	DestroyGeom(g GeomID) error

	BodyPosition(b BodyID) (mgl64.Vec3, error)
	SetBodyPosition(b BodyID, p mgl64.Vec3) error
	BodyQuaternion(b BodyID) (mgl64.Quat, error)
	SetBodyQuaternion(b BodyID, q mgl64.Quat) error
	BodyLinearVel(b BodyID) (mgl64.Vec3, error)
	SetBodyLinearVel(b BodyID, v mgl64.Vec3) error
	BodyAngularVel(b BodyID) (mgl64.Vec3, error)
	SetBodyAngularVel(b BodyID, w mgl64.Vec3) error
	AddForce(b BodyID, f mgl64.Vec3) error
	AddTorque(b BodyID, t mgl64.Vec3) error

	CreateJoint(kind JointKind, parent, child BodyID) (JointID, error)
	SetJointAnchor(j JointID, p mgl64.Vec3) error
	SetJointAxis(j JointID, axis mgl64.Vec3) error
	SetJointLimits(j JointID, lower, upper float64) error
	JointPosition(j JointID) (float64, error)
	JointRate(j JointID) (float64, error)
	AddJointEffort(j JointID, effort float64) error
	DestroyJoint(j JointID) error

	Step(dt float64) error
	SetWorldParams(p WorldParams) error
	Close() error
}

// Discoverer opens an engine configured with p, or reports why it cannot.
type Discoverer func(p WorldParams) (Engine, error)

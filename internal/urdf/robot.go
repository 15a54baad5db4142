package urdf

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// WorldLink is the reserved link name for the static environment. It never
// gets a body.
const WorldLink = "world"

type GeometryKind int

const (
	GeometryNone GeometryKind = iota
	GeometryBox
	GeometrySphere
	GeometryCylinder
	GeometryMesh
)

func (k GeometryKind) String() string {
	switch k {
	case GeometryBox:
		return "box"
	case GeometrySphere:
		return "sphere"
	case GeometryCylinder:
		return "cylinder"
	case GeometryMesh:
		return "mesh"
	default:
		return "none"
	}
}

// Geometry is one of the primitive shapes a link can declare. Size holds the
// full box extents; Scale is only meaningful for meshes.
type Geometry struct {
	Kind     GeometryKind
	Size     mgl64.Vec3
	Radius   float64
	Length   float64
	Filename string
	Scale    mgl64.Vec3
}

// Origin is a translation followed by a fixed-axis roll/pitch/yaw rotation.
type Origin struct {
	XYZ mgl64.Vec3
	RPY mgl64.Vec3
}

// Quat returns the rotation as a quaternion (R = Rz(yaw)·Ry(pitch)·Rx(roll)).
func (o Origin) Quat() mgl64.Quat {
	qx := mgl64.QuatRotate(o.RPY[0], mgl64.Vec3{1, 0, 0})
	qy := mgl64.QuatRotate(o.RPY[1], mgl64.Vec3{0, 1, 0})
	qz := mgl64.QuatRotate(o.RPY[2], mgl64.Vec3{0, 0, 1})
	return qz.Mul(qy).Mul(qx).Normalize()
}

type Visual struct {
	Origin   Origin
	Geometry Geometry
}

type Collision struct {
	Origin   Origin
	Geometry Geometry
}

// Inertial carries the declared mass and inertia tensor. The tensor is parsed
// and kept but engines only receive the scalar mass.
type Inertial struct {
	Origin  Origin
	Mass    float64
	Inertia mgl64.Mat3
}

// HasMass reports whether the declared mass is usable as an override.
func (in *Inertial) HasMass() bool {
	return in != nil && in.Mass > 0 && !math.IsInf(in.Mass, 0) && !math.IsNaN(in.Mass)
}

type Link struct {
	Name      string
	Visual    *Visual
	Collision *Collision
	Inertial  *Inertial
}

// Shape returns the geometry used to size the link: visual first, then
// collision.
func (l *Link) Shape() (Geometry, Origin, bool) {
	if l.Visual != nil && l.Visual.Geometry.Kind != GeometryNone {
		return l.Visual.Geometry, l.Visual.Origin, true
	}
	if l.Collision != nil && l.Collision.Geometry.Kind != GeometryNone {
		return l.Collision.Geometry, l.Collision.Origin, true
	}
	return Geometry{}, Origin{}, false
}

type JointType int

const (
	JointFixed JointType = iota
	JointRevolute
	JointContinuous
	JointPrismatic
)

func (t JointType) String() string {
	switch t {
	case JointRevolute:
		return "revolute"
	case JointContinuous:
		return "continuous"
	case JointPrismatic:
		return "prismatic"
	default:
		return "fixed"
	}
}

// Actuated reports whether joints of this type carry a coordinate.
func (t JointType) Actuated() bool { return t != JointFixed }

type Limits struct {
	Lower    float64
	Upper    float64
	Velocity float64
	Effort   float64
}

// HasRange reports whether lower/upper describe a usable interval.
func (l *Limits) HasRange() bool {
	return l != nil && l.Upper > l.Lower
}

type Joint struct {
	Name   string
	Type   JointType
	Parent int
	Child  int
	Origin Origin
	// Axis is as declared; zero when the description omits it.
	Axis   mgl64.Vec3
	Limits *Limits
}

// Bounded reports whether the joint position must be clamped to its limits.
func (j *Joint) Bounded() bool {
	return (j.Type == JointRevolute || j.Type == JointPrismatic) && j.Limits.HasRange()
}

// Robot is an immutable arena of links and joints. Joints refer to links by
// index into Links.
type Robot struct {
	Name   string
	Links  []Link
	Joints []Joint
	// Root is the designated root link: the first parentless link that is not
	// the world link, or the first child of the world link.
	Root int

	linkIndex   map[string]int
	jointIndex  map[string]int
	parentJoint []int
	children    [][]int
	order       []int
}

func (r *Robot) LinkIndex(name string) (int, bool) {
	i, ok := r.linkIndex[name]
	return i, ok
}

func (r *Robot) JointIndex(name string) (int, bool) {
	i, ok := r.jointIndex[name]
	return i, ok
}

// IsWorld reports whether link i is the reserved static-environment link.
func (r *Robot) IsWorld(i int) bool {
	return i >= 0 && i < len(r.Links) && r.Links[i].Name == WorldLink
}

// ParentJoint returns the joint whose child is link i, or -1.
func (r *Robot) ParentJoint(i int) int {
	return r.parentJoint[i]
}

// ChildJoints returns the joints whose parent is link i, in declaration order.
func (r *Robot) ChildJoints(i int) []int {
	return r.children[i]
}

// Order returns every link index, parents before children.
func (r *Robot) Order() []int {
	return r.order
}

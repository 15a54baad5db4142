package robot

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/robosim/internal/engine"
	"github.com/san-kum/robosim/internal/urdf"
)

const (
	// meshBoxSide is the edge of the box standing in for a unit-scale mesh.
	meshBoxSide = 0.1
	// bareRadius sizes links that declare no geometry at all.
	bareRadius = 0.05
)

// primitive is the single shape a link is both weighed and collided as.
type primitive struct {
	shape  engine.Shape
	size   mgl64.Vec3
	radius float64
	length float64
}

func primitiveFor(g urdf.Geometry, scale float64) primitive {
	switch g.Kind {
	case urdf.GeometryBox:
		return primitive{shape: engine.ShapeBox, size: positive(g.Size).Mul(scale)}
	case urdf.GeometrySphere:
		return primitive{shape: engine.ShapeSphere, radius: orDefault(g.Radius, bareRadius) * scale}
	case urdf.GeometryCylinder:
		return primitive{
			shape:  engine.ShapeCylinder,
			radius: orDefault(g.Radius, bareRadius) * scale,
			length: orDefault(g.Length, 2*bareRadius) * scale,
		}
	case urdf.GeometryMesh:
		s := positive(g.Scale)
		return primitive{shape: engine.ShapeBox, size: s.Mul(meshBoxSide * scale)}
	default:
		return primitive{shape: engine.ShapeSphere, radius: bareRadius * scale}
	}
}

func (p primitive) mass(density float64, in *urdf.Inertial) engine.MassSpec {
	m := engine.MassSpec{Shape: p.shape, Density: density}
	switch p.shape {
	case engine.ShapeBox:
		m.Dims = p.size
	case engine.ShapeSphere:
		m.Dims = mgl64.Vec3{p.radius, 0, 0}
	case engine.ShapeCylinder:
		m.Dims = mgl64.Vec3{p.radius, p.length, 0}
	}
	if in.HasMass() {
		m.Total = in.Mass
	}
	return m
}

// boundingRadius is the radius of the smallest sphere around the primitive's
// center that contains it.
func (p primitive) boundingRadius() float64 {
	switch p.shape {
	case engine.ShapeSphere:
		return p.radius
	case engine.ShapeCylinder:
		return math.Hypot(p.radius, p.length/2)
	default:
		return p.size.Len() / 2
	}
}

func (p primitive) create(b *engine.Binding) engine.GeomID {
	switch p.shape {
	case engine.ShapeSphere:
		return b.CreateSphereGeom(p.radius)
	case engine.ShapeCylinder:
		return b.CreateCylinderGeom(p.radius, p.length)
	default:
		return b.CreateBoxGeom(p.size)
	}
}

// positive replaces unusable components with 1.
func positive(v mgl64.Vec3) mgl64.Vec3 {
	for i := range v {
		if !(v[i] > 0) || math.IsInf(v[i], 0) {
			v[i] = 1
		}
	}
	return v
}

func orDefault(v, d float64) float64 {
	if v > 0 && !math.IsInf(v, 0) {
		return v
	}
	return d
}

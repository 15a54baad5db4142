package urdf

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrNoLinks        = errors.New("urdf: description has no links")
	ErrDuplicateName  = errors.New("urdf: duplicate name")
	ErrUnknownLink    = errors.New("urdf: joint references unknown link")
	ErrUnknownType    = errors.New("urdf: unknown joint type")
	ErrMultipleParent = errors.New("urdf: link has more than one parent joint")
	ErrCycle          = errors.New("urdf: link graph contains a cycle")
	ErrNoRoot         = errors.New("urdf: no simulated root link")
)

type xmlRobot struct {
	Name   string     `xml:"name,attr"`
	Links  []xmlLink  `xml:"link"`
	Joints []xmlJoint `xml:"joint"`
}

type xmlLink struct {
	Name      string        `xml:"name,attr"`
	Inertial  *xmlInertial  `xml:"inertial"`
	Visuals   []xmlGeomElem `xml:"visual"`
	Collision []xmlGeomElem `xml:"collision"`
}

type xmlOrigin struct {
	XYZ string `xml:"xyz,attr"`
	RPY string `xml:"rpy,attr"`
}

type xmlInertial struct {
	Origin *xmlOrigin `xml:"origin"`
	Mass   struct {
		Value string `xml:"value,attr"`
	} `xml:"mass"`
	Inertia struct {
		IXX string `xml:"ixx,attr"`
		IXY string `xml:"ixy,attr"`
		IXZ string `xml:"ixz,attr"`
		IYY string `xml:"iyy,attr"`
		IYZ string `xml:"iyz,attr"`
		IZZ string `xml:"izz,attr"`
	} `xml:"inertia"`
}

type xmlGeomElem struct {
	Origin   *xmlOrigin `xml:"origin"`
	Geometry struct {
		Box *struct {
			Size string `xml:"size,attr"`
		} `xml:"box"`
		Sphere *struct {
			Radius string `xml:"radius,attr"`
		} `xml:"sphere"`
		Cylinder *struct {
			Radius string `xml:"radius,attr"`
			Length string `xml:"length,attr"`
		} `xml:"cylinder"`
		Mesh *struct {
			Filename string `xml:"filename,attr"`
			Scale    string `xml:"scale,attr"`
		} `xml:"mesh"`
	} `xml:"geometry"`
}

type xmlJoint struct {
	Name   string     `xml:"name,attr"`
	Type   string     `xml:"type,attr"`
	Origin *xmlOrigin `xml:"origin"`
	Parent struct {
		Link string `xml:"link,attr"`
	} `xml:"parent"`
	Child struct {
		Link string `xml:"link,attr"`
	} `xml:"child"`
	Axis *struct {
		XYZ string `xml:"xyz,attr"`
	} `xml:"axis"`
	Limit *struct {
		Lower    string `xml:"lower,attr"`
		Upper    string `xml:"upper,attr"`
		Velocity string `xml:"velocity,attr"`
		Effort   string `xml:"effort,attr"`
	} `xml:"limit"`
}

func ParseFile(path string) (*Robot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a URDF document. Unsupported elements are ignored; malformed
// numbers are errors.
func Parse(r io.Reader) (*Robot, error) {
	var doc xmlRobot
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("urdf: decode: %w", err)
	}
	if len(doc.Links) == 0 {
		return nil, ErrNoLinks
	}

	robot := &Robot{
		Name:       doc.Name,
		Links:      make([]Link, 0, len(doc.Links)),
		Joints:     make([]Joint, 0, len(doc.Joints)),
		linkIndex:  make(map[string]int, len(doc.Links)),
		jointIndex: make(map[string]int, len(doc.Joints)),
	}

	for _, xl := range doc.Links {
		if _, dup := robot.linkIndex[xl.Name]; dup {
			return nil, fmt.Errorf("%w: link %q", ErrDuplicateName, xl.Name)
		}
		link, err := convertLink(xl)
		if err != nil {
			return nil, fmt.Errorf("urdf: link %q: %w", xl.Name, err)
		}
		robot.linkIndex[xl.Name] = len(robot.Links)
		robot.Links = append(robot.Links, link)
	}

	for _, xj := range doc.Joints {
		if _, dup := robot.jointIndex[xj.Name]; dup {
			return nil, fmt.Errorf("%w: joint %q", ErrDuplicateName, xj.Name)
		}
		joint, err := convertJoint(xj, robot.linkIndex)
		if err != nil {
			return nil, fmt.Errorf("urdf: joint %q: %w", xj.Name, err)
		}
		robot.jointIndex[xj.Name] = len(robot.Joints)
		robot.Joints = append(robot.Joints, joint)
	}

	if err := robot.index(); err != nil {
		return nil, err
	}
	return robot, nil
}

func convertLink(xl xmlLink) (Link, error) {
	link := Link{Name: xl.Name}

	if xl.Inertial != nil {
		in := &Inertial{}
		var err error
		if in.Origin, err = parseOrigin(xl.Inertial.Origin); err != nil {
			return link, err
		}
		if in.Mass, err = parseFloat(xl.Inertial.Mass.Value, 0); err != nil {
			return link, fmt.Errorf("mass: %w", err)
		}
		t := xl.Inertial.Inertia
		vals := make([]float64, 6)
		for i, s := range []string{t.IXX, t.IXY, t.IXZ, t.IYY, t.IYZ, t.IZZ} {
			if vals[i], err = parseFloat(s, 0); err != nil {
				return link, fmt.Errorf("inertia: %w", err)
			}
		}
		ixx, ixy, ixz, iyy, iyz, izz := vals[0], vals[1], vals[2], vals[3], vals[4], vals[5]
		in.Inertia = mgl64.Mat3{
			ixx, ixy, ixz,
			ixy, iyy, iyz,
			ixz, iyz, izz,
		}
		link.Inertial = in
	}

	if len(xl.Visuals) > 0 {
		origin, geom, err := convertGeomElem(xl.Visuals[0])
		if err != nil {
			return link, fmt.Errorf("visual: %w", err)
		}
		link.Visual = &Visual{Origin: origin, Geometry: geom}
	}
	if len(xl.Collision) > 0 {
		origin, geom, err := convertGeomElem(xl.Collision[0])
		if err != nil {
			return link, fmt.Errorf("collision: %w", err)
		}
		link.Collision = &Collision{Origin: origin, Geometry: geom}
	}
	return link, nil
}

func convertGeomElem(e xmlGeomElem) (Origin, Geometry, error) {
	origin, err := parseOrigin(e.Origin)
	if err != nil {
		return origin, Geometry{}, err
	}
	g := e.Geometry
	var geom Geometry
	switch {
	case g.Box != nil:
		geom.Kind = GeometryBox
		geom.Size, err = parseVec3(g.Box.Size, mgl64.Vec3{})
	case g.Sphere != nil:
		geom.Kind = GeometrySphere
		geom.Radius, err = parseFloat(g.Sphere.Radius, 0)
	case g.Cylinder != nil:
		geom.Kind = GeometryCylinder
		if geom.Radius, err = parseFloat(g.Cylinder.Radius, 0); err == nil {
			geom.Length, err = parseFloat(g.Cylinder.Length, 0)
		}
	case g.Mesh != nil:
		geom.Kind = GeometryMesh
		geom.Filename = g.Mesh.Filename
		geom.Scale, err = parseVec3(g.Mesh.Scale, mgl64.Vec3{1, 1, 1})
	}
	return origin, geom, err
}

func convertJoint(xj xmlJoint, links map[string]int) (Joint, error) {
	joint := Joint{Name: xj.Name}

	switch strings.ToLower(xj.Type) {
	case "revolute":
		joint.Type = JointRevolute
	case "continuous":
		joint.Type = JointContinuous
	case "prismatic":
		joint.Type = JointPrismatic
	case "fixed":
		joint.Type = JointFixed
	default:
		return joint, fmt.Errorf("%w: %q", ErrUnknownType, xj.Type)
	}

	var ok bool
	if joint.Parent, ok = links[xj.Parent.Link]; !ok {
		return joint, fmt.Errorf("%w: parent %q", ErrUnknownLink, xj.Parent.Link)
	}
	if joint.Child, ok = links[xj.Child.Link]; !ok {
		return joint, fmt.Errorf("%w: child %q", ErrUnknownLink, xj.Child.Link)
	}
	if joint.Parent == joint.Child {
		return joint, fmt.Errorf("%w: %q is its own parent", ErrCycle, xj.Child.Link)
	}

	var err error
	if joint.Origin, err = parseOrigin(xj.Origin); err != nil {
		return joint, err
	}
	if xj.Axis != nil {
		if joint.Axis, err = parseVec3(xj.Axis.XYZ, mgl64.Vec3{}); err != nil {
			return joint, fmt.Errorf("axis: %w", err)
		}
	}
	if xj.Limit != nil {
		lim := &Limits{}
		fields := []struct {
			dst *float64
			src string
		}{
			{&lim.Lower, xj.Limit.Lower},
			{&lim.Upper, xj.Limit.Upper},
			{&lim.Velocity, xj.Limit.Velocity},
			{&lim.Effort, xj.Limit.Effort},
		}
		for _, f := range fields {
			if *f.dst, err = parseFloat(f.src, 0); err != nil {
				return joint, fmt.Errorf("limit: %w", err)
			}
		}
		joint.Limits = lim
	}
	return joint, nil
}

func parseOrigin(o *xmlOrigin) (Origin, error) {
	if o == nil {
		return Origin{}, nil
	}
	xyz, err := parseVec3(o.XYZ, mgl64.Vec3{})
	if err != nil {
		return Origin{}, fmt.Errorf("origin xyz: %w", err)
	}
	rpy, err := parseVec3(o.RPY, mgl64.Vec3{})
	if err != nil {
		return Origin{}, fmt.Errorf("origin rpy: %w", err)
	}
	return Origin{XYZ: xyz, RPY: rpy}, nil
}

func parseFloat(s string, def float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseVec3(s string, def mgl64.Vec3) (mgl64.Vec3, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return def, nil
	}
	if len(fields) != 3 {
		return def, fmt.Errorf("expected 3 components, got %d in %q", len(fields), s)
	}
	var v mgl64.Vec3
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return def, err
		}
		v[i] = x
	}
	return v, nil
}

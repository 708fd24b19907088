package math

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Plane is the set of points p with Normal·p + D = 0. The positive side is "outside".
type Plane struct {
	Normal mgl32.Vec3
	D      float32
}

// NewPlane returns the plane through point with the given normal.
func NewPlane(normal, point mgl32.Vec3) Plane {
	n := normal.Normalize()
	return Plane{Normal: n, D: -n.Dot(point)}
}

// PlaneFromVec4 interprets (a, b, c, d) as a·x + b·y + c·z + d = 0 and normalizes it.
func PlaneFromVec4(v mgl32.Vec4) Plane {
	return Plane{Normal: v.Vec3(), D: v[3]}.Normalize()
}

// Normalize scales the plane so its normal has unit length.
func (p Plane) Normalize() Plane {
	l := p.Normal.Len()
	if l == 0 {
		return p
	}
	inv := 1 / l
	return Plane{Normal: p.Normal.Mul(inv), D: p.D * inv}
}

// SignedDistance returns the distance of pt from the plane, positive outside.
func (p Plane) SignedDistance(pt mgl32.Vec3) float32 {
	return p.Normal.Dot(pt) + p.D
}

// Negate flips the plane so inside and outside swap.
func (p Plane) Negate() Plane {
	return Plane{Normal: p.Normal.Mul(-1), D: -p.D}
}

// Sphere is a bounding sphere.
type Sphere struct {
	Center mgl32.Vec3
	Radius float32
}

// SphereFromPoints returns a sphere around the centroid of points enclosing them all.
// It does not change when the points are rotated or moved together.
func SphereFromPoints(points ...mgl32.Vec3) Sphere {
	if len(points) == 0 {
		return Sphere{}
	}
	var c mgl32.Vec3
	for _, p := range points {
		c = c.Add(p)
	}
	c = c.Mul(1 / float32(len(points)))
	var r float32
	for _, p := range points {
		r = max(r, p.Sub(c).Len())
	}
	return Sphere{Center: c, Radius: r}
}

// IntersectsConvexSolid reports whether the sphere touches the volume bounded by
// outward-facing planes.
func (s Sphere) IntersectsConvexSolid(planes []Plane) bool {
	for _, p := range planes {
		if p.SignedDistance(s.Center) > s.Radius {
			return false
		}
	}
	return true
}

// Bounds returns the box enclosing the sphere.
func (s Sphere) Bounds() AABB {
	r := mgl32.Vec3{s.Radius, s.Radius, s.Radius}
	return NewAABB(s.Center.Sub(r), s.Center.Add(r))
}

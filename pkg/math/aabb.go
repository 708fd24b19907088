// Package math provides the geometry primitives used for culling and shadow fitting:
// bounding boxes, spheres, planes and frustums on top of mgl32 vectors.
package math

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Expanse describes how much of space a bounding volume covers.
type Expanse int

const (
	// ExpanseEmpty bounds contain nothing and intersect nothing.
	ExpanseEmpty Expanse = iota
	// ExpanseInfinite bounds contain everything (skyboxes, directional lights).
	ExpanseInfinite
	// ExpanseFinite bounds are described by Min and Max.
	ExpanseFinite
)

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min     mgl32.Vec3
	Max     mgl32.Vec3
	Expanse Expanse
}

// EmptyAABB returns a box that contains nothing.
func EmptyAABB() AABB {
	return AABB{Expanse: ExpanseEmpty}
}

// InfiniteAABB returns a box that contains everything.
func InfiniteAABB() AABB {
	inf := math32.Inf(1)
	return AABB{
		Min:     mgl32.Vec3{-inf, -inf, -inf},
		Max:     mgl32.Vec3{inf, inf, inf},
		Expanse: ExpanseInfinite,
	}
}

// NewAABB returns a finite box spanning min to max.
func NewAABB(min, max mgl32.Vec3) AABB {
	return AABB{Min: min, Max: max, Expanse: ExpanseFinite}
}

// AABBFromPoints returns the smallest box containing all points.
func AABBFromPoints(points ...mgl32.Vec3) AABB {
	b := EmptyAABB()
	for _, p := range points {
		b.GrowToIncludePoint(p)
	}
	return b
}

// IsEmpty reports whether the box contains nothing.
func (b AABB) IsEmpty() bool { return b.Expanse == ExpanseEmpty }

// IsInfinite reports whether the box contains everything.
func (b AABB) IsInfinite() bool { return b.Expanse == ExpanseInfinite }

// Center returns the center point of a finite box.
func (b AABB) Center() mgl32.Vec3 {
	if b.Expanse != ExpanseFinite {
		return mgl32.Vec3{}
	}
	return b.Min.Add(b.Max).Mul(0.5)
}

// HalfExtents returns half the size of the box along each axis.
func (b AABB) HalfExtents() mgl32.Vec3 {
	if b.Expanse != ExpanseFinite {
		return mgl32.Vec3{}
	}
	return b.Max.Sub(b.Min).Mul(0.5)
}

// Radius returns the distance from center to corner.
func (b AABB) Radius() float32 {
	return b.HalfExtents().Len()
}

// GrowToIncludePoint extends the box to contain p.
func (b *AABB) GrowToIncludePoint(p mgl32.Vec3) {
	switch b.Expanse {
	case ExpanseInfinite:
		return
	case ExpanseEmpty:
		b.Min, b.Max = p, p
		b.Expanse = ExpanseFinite
		return
	}
	for i := 0; i < 3; i++ {
		b.Min[i] = math32.Min(b.Min[i], p[i])
		b.Max[i] = math32.Max(b.Max[i], p[i])
	}
}

// GrowToIncludeBound extends the box to contain o.
func (b *AABB) GrowToIncludeBound(o AABB) {
	switch {
	case o.Expanse == ExpanseEmpty || b.Expanse == ExpanseInfinite:
		return
	case o.Expanse == ExpanseInfinite || b.Expanse == ExpanseEmpty:
		*b = o
		return
	}
	b.GrowToIncludePoint(o.Min)
	b.GrowToIncludePoint(o.Max)
}

// Corners returns the 8 corner points. Bit 0 of the index selects max X,
// bit 1 max Y and bit 2 max Z.
func (b AABB) Corners() [8]mgl32.Vec3 {
	var c [8]mgl32.Vec3
	for i := range c {
		c[i] = b.Min
		if i&1 != 0 {
			c[i][0] = b.Max[0]
		}
		if i&2 != 0 {
			c[i][1] = b.Max[1]
		}
		if i&4 != 0 {
			c[i][2] = b.Max[2]
		}
	}
	return c
}

// Transform returns the axis-aligned bounds of the box transformed by m.
func (b AABB) Transform(m mgl32.Mat4) AABB {
	if b.Expanse != ExpanseFinite {
		return b
	}
	// Arvo: project the half extents onto the absolute rotation/scale part.
	center := mgl32.TransformCoordinate(b.Center(), m)
	h := b.HalfExtents()
	var ext mgl32.Vec3
	for row := 0; row < 3; row++ {
		ext[row] = math32.Abs(m.At(row, 0))*h[0] +
			math32.Abs(m.At(row, 1))*h[1] +
			math32.Abs(m.At(row, 2))*h[2]
	}
	return NewAABB(center.Sub(ext), center.Add(ext))
}

// ContainsPoint reports whether p lies inside the box.
func (b AABB) ContainsPoint(p mgl32.Vec3) bool {
	switch b.Expanse {
	case ExpanseEmpty:
		return false
	case ExpanseInfinite:
		return true
	}
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

// IntersectsConvexSolid reports whether the box touches the convex volume bounded by
// planes. Plane normals point outward: the box is rejected only when it lies entirely
// on the positive side of at least one plane.
func (b AABB) IntersectsConvexSolid(planes []Plane) bool {
	switch b.Expanse {
	case ExpanseEmpty:
		return false
	case ExpanseInfinite:
		return true
	}
	c := b.Center()
	h := b.HalfExtents()
	for _, p := range planes {
		n := p.Normal
		projected := math32.Abs(n[0])*h[0] + math32.Abs(n[1])*h[1] + math32.Abs(n[2])*h[2]
		if n.Dot(c)+p.D-projected > 0 {
			return false
		}
	}
	return true
}

// IntersectsSphere reports whether the box and the sphere overlap.
func (b AABB) IntersectsSphere(s Sphere) bool {
	switch b.Expanse {
	case ExpanseEmpty:
		return false
	case ExpanseInfinite:
		return true
	}
	var distSq float32
	for i := 0; i < 3; i++ {
		v := s.Center[i]
		if v < b.Min[i] {
			d := b.Min[i] - v
			distSq += d * d
		} else if v > b.Max[i] {
			d := v - b.Max[i]
			distSq += d * d
		}
	}
	return distSq <= s.Radius*s.Radius
}

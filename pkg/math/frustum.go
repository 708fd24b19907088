package math

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Frustum plane indices.
const (
	PlaneLeft = iota
	PlaneRight
	PlaneBottom
	PlaneTop
	PlaneNear
	PlaneFar
)

// Frustum holds 6 outward-facing world planes and the 8 world corners of a
// view-projection volume. Corners 0-3 lie on the near plane and 4-7 on the far
// plane; within each group bit 0 selects +X and bit 1 selects +Y in clip space.
type Frustum struct {
	Planes  [6]Plane
	Corners [8]mgl32.Vec3
}

// NewFrustum derives the frustum of viewProjection. The inverse is used to unproject
// the clip-space cube corners.
func NewFrustum(viewProjection, inverseViewProjection mgl32.Mat4) Frustum {
	var f Frustum
	r0 := viewProjection.Row(0)
	r1 := viewProjection.Row(1)
	r2 := viewProjection.Row(2)
	r3 := viewProjection.Row(3)

	// Gribb/Hartmann yields inward planes; negate for outward normals.
	f.Planes[PlaneLeft] = PlaneFromVec4(r3.Add(r0)).Negate()
	f.Planes[PlaneRight] = PlaneFromVec4(r3.Sub(r0)).Negate()
	f.Planes[PlaneBottom] = PlaneFromVec4(r3.Add(r1)).Negate()
	f.Planes[PlaneTop] = PlaneFromVec4(r3.Sub(r1)).Negate()
	f.Planes[PlaneNear] = PlaneFromVec4(r3.Add(r2)).Negate()
	f.Planes[PlaneFar] = PlaneFromVec4(r3.Sub(r2)).Negate()

	for i := range f.Corners {
		ndc := mgl32.Vec3{-1, -1, -1}
		if i&1 != 0 {
			ndc[0] = 1
		}
		if i&2 != 0 {
			ndc[1] = 1
		}
		if i&4 != 0 {
			ndc[2] = 1
		}
		f.Corners[i] = mgl32.TransformCoordinate(ndc, inverseViewProjection)
	}
	return f
}

// SidePlanes returns the left, right, bottom and top planes.
func (f *Frustum) SidePlanes() []Plane {
	return f.Planes[:4]
}

// Bounds returns the box around the frustum corners.
func (f *Frustum) Bounds() AABB {
	return AABBFromPoints(f.Corners[:]...)
}

// SliceCorners returns the corners of the sub-frustum between the fractions nearRatio
// and farRatio of the near-to-far edge lengths.
func (f *Frustum) SliceCorners(nearRatio, farRatio float32) [8]mgl32.Vec3 {
	var c [8]mgl32.Vec3
	for i := 0; i < 4; i++ {
		n := f.Corners[i]
		d := f.Corners[i+4].Sub(n)
		c[i] = n.Add(d.Mul(nearRatio))
		c[i+4] = n.Add(d.Mul(farRatio))
	}
	return c
}

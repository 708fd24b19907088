package math

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

func testFrustum() Frustum {
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 1, 100)
	view := mgl32.Ident4()
	vp := proj.Mul4(view)
	return NewFrustum(vp, vp.Inv())
}

func boxAt(center mgl32.Vec3, half float32) AABB {
	h := mgl32.Vec3{half, half, half}
	return NewAABB(center.Sub(h), center.Add(h))
}

func TestIntersectsConvexSolid(t *testing.T) {
	f := testFrustum()

	tests := []struct {
		name string
		box  AABB
		want bool
	}{
		{"inside", boxAt(mgl32.Vec3{0, 0, -10}, 0.5), true},
		{"outside left", boxAt(mgl32.Vec3{-50, 0, -10}, 0.5), false},
		{"outside right", boxAt(mgl32.Vec3{50, 0, -10}, 0.5), false},
		{"outside bottom", boxAt(mgl32.Vec3{0, -50, -10}, 0.5), false},
		{"outside top", boxAt(mgl32.Vec3{0, 50, -10}, 0.5), false},
		{"outside near", boxAt(mgl32.Vec3{0, 0, -0.2}, 0.1), false},
		{"outside far", boxAt(mgl32.Vec3{0, 0, -200}, 0.5), false},
		{"straddle left", NewAABB(mgl32.Vec3{-15, -1, -11}, mgl32.Vec3{-5, 1, -9}), true},
		{"straddle near", NewAABB(mgl32.Vec3{-1, -1, -2}, mgl32.Vec3{1, 1, 2}), true},
		{"straddle far", NewAABB(mgl32.Vec3{-1, -1, -120}, mgl32.Vec3{1, 1, -90}), true},
		{"empty", EmptyAABB(), false},
		{"infinite", InfiniteAABB(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.box.IntersectsConvexSolid(f.Planes[:]); got != tt.want {
				t.Errorf("IntersectsConvexSolid = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIntersectsConvexSolidSinglePlane(t *testing.T) {
	f := testFrustum()
	box := boxAt(mgl32.Vec3{0, 0, -10}, 0.5)

	// Each plane alone must reject a box pushed past it and accept the centered one.
	offsets := [6]mgl32.Vec3{
		{-60, 0, -10}, {60, 0, -10}, {0, -60, -10}, {0, 60, -10}, {0, 0, 5}, {0, 0, -500},
	}
	for i, off := range offsets {
		plane := f.Planes[i : i+1]
		if !box.IntersectsConvexSolid(plane) {
			t.Errorf("plane %d rejected centered box", i)
		}
		if boxAt(off, 0.5).IntersectsConvexSolid(plane) {
			t.Errorf("plane %d accepted box at %v", i, off)
		}
	}
}

func TestFrustumCorners(t *testing.T) {
	f := testFrustum()

	// Near corners sit at z = -1, far corners at z = -100 with 90 degree fov.
	for i := 0; i < 4; i++ {
		if d := math32.Abs(f.Corners[i].Z() + 1); d > 1e-3 {
			t.Errorf("near corner %d z = %f", i, f.Corners[i].Z())
		}
		if d := math32.Abs(f.Corners[i+4].Z() + 100); d > 1e-1 {
			t.Errorf("far corner %d z = %f", i, f.Corners[i+4].Z())
		}
	}
	if f.Corners[7].X() < 99 || f.Corners[7].Y() < 99 {
		t.Errorf("far top right corner = %v", f.Corners[7])
	}

	// Every corner lies on or inside all planes.
	for i, c := range f.Corners {
		for j, p := range f.Planes {
			if d := p.SignedDistance(c); d > 1e-2 {
				t.Errorf("corner %d outside plane %d by %f", i, j, d)
			}
		}
	}
}

func TestSliceCorners(t *testing.T) {
	f := testFrustum()
	c := f.SliceCorners(0, 1)
	for i := range c {
		if !c[i].ApproxEqualThreshold(f.Corners[i], 1e-3) {
			t.Errorf("full slice corner %d = %v, want %v", i, c[i], f.Corners[i])
		}
	}
	half := f.SliceCorners(0.5, 0.5)
	want := f.Corners[0].Add(f.Corners[4]).Mul(0.5)
	if !half[0].ApproxEqualThreshold(want, 1e-3) {
		t.Errorf("half slice corner = %v, want %v", half[0], want)
	}
}

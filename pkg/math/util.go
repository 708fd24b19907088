package math

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// SnapDown rounds v down to a multiple of step.
func SnapDown(v, step float32) float32 {
	if step <= 0 {
		return v
	}
	return math32.Floor(v/step) * step
}

// SnapUp rounds v up to a multiple of step.
func SnapUp(v, step float32) float32 {
	if step <= 0 {
		return v
	}
	return math32.Ceil(v/step) * step
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(hi, v))
}

// Saturate limits v to [0, 1].
func Saturate(v float32) float32 {
	return Clamp(v, 0, 1)
}

// Lerp interpolates between a and b.
func Lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// GammaToLinear converts a gamma-encoded channel to linear space. The precise
// variant raises to 2.2, the fast one squares.
func GammaToLinear(c float32, precise bool) float32 {
	if c <= 0 {
		return 0
	}
	if precise {
		return math32.Pow(c, 2.2)
	}
	return c * c
}

// LinearToGamma is the inverse of GammaToLinear.
func LinearToGamma(c float32, precise bool) float32 {
	if c <= 0 {
		return 0
	}
	if precise {
		return math32.Pow(c, 1/2.2)
	}
	return math32.Sqrt(c)
}

// LinearizeColor converts the RGB channels of c to linear space, keeping alpha.
func LinearizeColor(c mgl32.Vec4, precise bool) mgl32.Vec4 {
	return mgl32.Vec4{
		GammaToLinear(c[0], precise),
		GammaToLinear(c[1], precise),
		GammaToLinear(c[2], precise),
		c[3],
	}
}

// OrthoBasis returns two unit vectors perpendicular to dir and each other.
func OrthoBasis(dir mgl32.Vec3) (right, up mgl32.Vec3) {
	d := dir.Normalize()
	ref := mgl32.Vec3{0, 1, 0}
	if math32.Abs(d[1]) > 0.99 {
		ref = mgl32.Vec3{0, 0, 1}
	}
	right = d.Cross(ref).Normalize()
	up = right.Cross(d).Normalize()
	return right, up
}

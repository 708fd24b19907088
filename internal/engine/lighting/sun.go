// Package lighting holds helpers for placing lights.
package lighting

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// SunDirection converts an azimuth (degrees around +Y, 0 towards +Z) and an elevation
// (degrees above the horizon) into a unit vector pointing towards the sun.
func SunDirection(azimuth, elevation float32) mgl32.Vec3 {
	az := mgl32.DegToRad(azimuth)
	el := mgl32.DegToRad(elevation)
	se, ce := math32.Sincos(el)
	sa, ca := math32.Sincos(az)
	return mgl32.Vec3{ce * sa, se, ce * ca}
}

// SunTransform returns the world matrix of a directional light shining from the sun's
// position. Directional lights shine along their local -Z axis.
func SunTransform(azimuth, elevation float32) mgl32.Mat4 {
	toSun := SunDirection(azimuth, elevation)
	up := mgl32.Vec3{0, 1, 0}
	if math32.Abs(toSun[1]) > 0.999 {
		up = mgl32.Vec3{0, 0, 1}
	}
	// LookAtV builds a view matrix; its inverse places the light
	return mgl32.LookAtV(toSun, mgl32.Vec3{}, up).Inv()
}

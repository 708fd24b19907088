package lighting

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestSunDirection(t *testing.T) {
	tests := []struct {
		name               string
		azimuth, elevation float32
		want               mgl32.Vec3
	}{
		{"zenith", 0, 90, mgl32.Vec3{0, 1, 0}},
		{"south horizon", 0, 0, mgl32.Vec3{0, 0, 1}},
		{"east horizon", 90, 0, mgl32.Vec3{1, 0, 0}},
		{"halfway", 180, 45, mgl32.Vec3{0, 0.7071068, -0.7071068}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SunDirection(tt.azimuth, tt.elevation)
			assert.InDeltaSlice(t, tt.want[:], got[:], 1e-5)
			assert.InDelta(t, 1, got.Len(), 1e-5)
		})
	}
}

func TestSunTransformShinesDown(t *testing.T) {
	for _, el := range []float32{30, 90} {
		m := SunTransform(45, el)
		// the light shines along local -Z
		dir := m.Mul4x1(mgl32.Vec4{0, 0, -1, 0}).Vec3()
		want := SunDirection(45, el).Mul(-1)
		assert.InDeltaSlice(t, want[:], dir[:], 1e-4)
	}
}

package camera

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	hmath "github.com/Faultbox/helix/pkg/math"
)

func floats(v mgl32.Vec3) []float32 { return v[:] }

func TestDefaultPlacement(t *testing.T) {
	c := NewPerspective(mgl32.DegToRad(60), 1.5, 0.1, 100)
	assert.Equal(t, Perspective, c.Projection())
	assert.False(t, c.IsOrthographic())
	assert.Equal(t, mgl32.Vec3{}, c.Position())
	assert.InDeltaSlice(t, []float32{0, 0, -1}, floats(c.Forward()), 1e-6)
	assert.Equal(t, float32(0.1), c.NearDistance())
	assert.Equal(t, float32(100), c.FarDistance())
}

func TestLookAt(t *testing.T) {
	c := NewPerspective(mgl32.DegToRad(60), 1, 0.1, 100)
	c.LookAt(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})
	assert.InDeltaSlice(t, []float32{0, 0, 10}, floats(c.Position()), 1e-5)
	assert.InDeltaSlice(t, []float32{0, 0, -1}, floats(c.Forward()), 1e-5)

	// the origin lands in the middle of the view, 10 units ahead
	v := c.ViewMatrix().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDeltaSlice(t, []float32{0, 0, -10, 1}, v[:], 1e-5)
}

func TestInverseMatrices(t *testing.T) {
	c := NewPerspective(mgl32.DegToRad(45), 1.3, 0.5, 50)
	c.LookAt(mgl32.Vec3{3, 4, 5}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 1, 0})
	id := c.ViewProjectionMatrix().Mul4(c.InverseViewProjectionMatrix())
	assert.True(t, id.ApproxEqualThreshold(mgl32.Ident4(), 1e-4))
	id = c.ProjectionMatrix().Mul4(c.InverseProjectionMatrix())
	assert.True(t, id.ApproxEqualThreshold(mgl32.Ident4(), 1e-4))
}

func TestFrustumFollowsCamera(t *testing.T) {
	c := NewPerspective(mgl32.DegToRad(60), 1, 0.1, 20)
	ahead := hmath.NewAABB(mgl32.Vec3{-0.5, -0.5, -5.5}, mgl32.Vec3{0.5, 0.5, -4.5})
	behind := hmath.NewAABB(mgl32.Vec3{-0.5, -0.5, 4.5}, mgl32.Vec3{0.5, 0.5, 5.5})
	assert.True(t, ahead.IntersectsConvexSolid(c.Frustum().SidePlanes()))

	c.LookAt(mgl32.Vec3{}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0})
	assert.True(t, behind.IntersectsConvexSolid(c.Frustum().SidePlanes()))
	assert.False(t, ahead.IntersectsConvexSolid(c.Frustum().SidePlanes()))
}

func TestOrthographic(t *testing.T) {
	c := NewOrthographic(-2, 2, -1, 1, 0, 10)
	assert.True(t, c.IsOrthographic())
	p := c.ProjectionMatrix().Mul4x1(mgl32.Vec4{2, 1, -10, 1})
	assert.InDeltaSlice(t, []float32{1, 1, 1, 1}, p[:], 1e-5)

	// aspect changes only apply to perspective cameras
	before := c.ProjectionMatrix()
	c.SetAspectRatio(3)
	assert.Equal(t, before, c.ProjectionMatrix())
}

func TestSetAspectRatio(t *testing.T) {
	c := NewPerspective(mgl32.DegToRad(60), 1, 0.1, 10)
	before := c.ProjectionMatrix()
	c.SetAspectRatio(2)
	assert.Equal(t, float32(2), c.AspectRatio())
	assert.NotEqual(t, before, c.ProjectionMatrix())
	c.SetAspectRatio(0)
	assert.Equal(t, float32(2), c.AspectRatio())
}

func TestOrbitController(t *testing.T) {
	o := NewOrbitController(60)
	o.Pitch = 0
	o.Distance = 4
	o.Snap()
	cam := NewPerspective(mgl32.DegToRad(60), 1, 0.1, 100)
	o.Update(cam)
	assert.InDeltaSlice(t, []float32{0, 0, 4}, floats(cam.Position()), 1e-4)
	assert.InDeltaSlice(t, []float32{0, 0, -1}, floats(cam.Forward()), 1e-4)

	o.HandleZoom(100)
	assert.Equal(t, o.MinDistance, o.Distance)
	o.HandleDrag(0, 1e6)
	assert.Equal(t, o.MaxPitch, o.Pitch)

	// springs converge on the target
	for range 600 {
		o.Update(cam)
	}
	assert.InDelta(t, o.MinDistance, cam.Position().Sub(o.Center).Len(), 1e-2)
}

func TestFitToBounds(t *testing.T) {
	o := NewOrbitController(60)
	o.FitToBounds(hmath.NewAABB(mgl32.Vec3{9, -1, -1}, mgl32.Vec3{11, 1, 1}), mgl32.DegToRad(60))
	assert.Equal(t, mgl32.Vec3{10, 0, 0}, o.Center)
	assert.Greater(t, o.Distance, float32(2))

	before := o.Center
	o.FitToBounds(hmath.EmptyAABB(), mgl32.DegToRad(60))
	assert.Equal(t, before, o.Center)
}

// Package camera provides the perspective and orthographic cameras the renderer views
// the scene through, and an orbit controller for interactive tools.
package camera

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/helix/internal/engine/effect"
	hmath "github.com/Faultbox/helix/pkg/math"
)

// Projection selects the projection type.
type Projection int

const (
	Perspective Projection = iota
	Orthographic
)

// Camera is a view into the scene. View space is right-handed with -Z forward.
type Camera struct {
	Name string
	// Effects run after the scene's own effects whenever this camera is rendered.
	Effects []effect.Effect

	projection Projection
	fovY       float32 // radians
	aspect     float32
	left       float32
	right      float32
	bottom     float32
	top        float32
	near       float32
	far        float32

	world mgl32.Mat4
	dirty bool

	view        mgl32.Mat4
	proj        mgl32.Mat4
	viewProj    mgl32.Mat4
	invProj     mgl32.Mat4
	invViewProj mgl32.Mat4
	frustum     hmath.Frustum
}

// NewPerspective creates a perspective camera at the origin looking down -Z.
func NewPerspective(fovY, aspect, near, far float32) *Camera {
	c := &Camera{world: mgl32.Ident4()}
	c.SetPerspective(fovY, aspect, near, far)
	return c
}

// NewOrthographic creates an orthographic camera at the origin looking down -Z.
func NewOrthographic(left, right, bottom, top, near, far float32) *Camera {
	c := &Camera{world: mgl32.Ident4()}
	c.SetOrthographic(left, right, bottom, top, near, far)
	return c
}

// SetPerspective switches to a perspective projection. fovY is in radians.
func (c *Camera) SetPerspective(fovY, aspect, near, far float32) {
	c.projection = Perspective
	c.fovY, c.aspect, c.near, c.far = fovY, aspect, near, far
	c.dirty = true
}

// SetOrthographic switches to an orthographic projection with the given view-space bounds.
func (c *Camera) SetOrthographic(left, right, bottom, top, near, far float32) {
	c.projection = Orthographic
	c.left, c.right, c.bottom, c.top = left, right, bottom, top
	c.near, c.far = near, far
	c.dirty = true
}

// SetAspectRatio updates the aspect ratio of a perspective camera. Orthographic cameras
// keep their bounds.
func (c *Camera) SetAspectRatio(aspect float32) {
	if c.projection != Perspective || aspect == c.aspect || aspect <= 0 {
		return
	}
	c.aspect = aspect
	c.dirty = true
}

// SetNearFar changes the clip distances.
func (c *Camera) SetNearFar(near, far float32) {
	c.near, c.far = near, far
	c.dirty = true
}

// Projection returns the projection type.
func (c *Camera) Projection() Projection { return c.projection }

// IsOrthographic reports whether the camera uses an orthographic projection.
func (c *Camera) IsOrthographic() bool { return c.projection == Orthographic }

// FieldOfView returns the vertical field of view in radians.
func (c *Camera) FieldOfView() float32 { return c.fovY }

// AspectRatio returns the width to height ratio.
func (c *Camera) AspectRatio() float32 { return c.aspect }

// NearDistance returns the distance to the near plane.
func (c *Camera) NearDistance() float32 { return c.near }

// FarDistance returns the distance to the far plane.
func (c *Camera) FarDistance() float32 { return c.far }

// SetWorldMatrix places the camera.
func (c *Camera) SetWorldMatrix(m mgl32.Mat4) {
	c.world = m
	c.dirty = true
}

// LookAt places the camera at eye facing target.
func (c *Camera) LookAt(eye, target, up mgl32.Vec3) {
	c.SetWorldMatrix(mgl32.LookAtV(eye, target, up).Inv())
}

// WorldMatrix returns the camera-to-world transform.
func (c *Camera) WorldMatrix() mgl32.Mat4 { return c.world }

// Position returns the world position.
func (c *Camera) Position() mgl32.Vec3 { return c.world.Col(3).Vec3() }

// Forward returns the world-space view direction.
func (c *Camera) Forward() mgl32.Vec3 {
	return c.world.Col(2).Vec3().Mul(-1).Normalize()
}

func (c *Camera) update() {
	if !c.dirty {
		return
	}
	c.dirty = false
	switch c.projection {
	case Orthographic:
		c.proj = mgl32.Ortho(c.left, c.right, c.bottom, c.top, c.near, c.far)
	default:
		c.proj = mgl32.Perspective(c.fovY, c.aspect, c.near, c.far)
	}
	c.view = c.world.Inv()
	c.viewProj = c.proj.Mul4(c.view)
	c.invProj = c.proj.Inv()
	c.invViewProj = c.world.Mul4(c.invProj)
	c.frustum = hmath.NewFrustum(c.viewProj, c.invViewProj)
}

// ViewMatrix returns the world-to-view transform.
func (c *Camera) ViewMatrix() mgl32.Mat4 {
	c.update()
	return c.view
}

// ProjectionMatrix returns the view-to-clip transform.
func (c *Camera) ProjectionMatrix() mgl32.Mat4 {
	c.update()
	return c.proj
}

// ViewProjectionMatrix returns the world-to-clip transform.
func (c *Camera) ViewProjectionMatrix() mgl32.Mat4 {
	c.update()
	return c.viewProj
}

// InverseProjectionMatrix returns the clip-to-view transform.
func (c *Camera) InverseProjectionMatrix() mgl32.Mat4 {
	c.update()
	return c.invProj
}

// InverseViewProjectionMatrix returns the clip-to-world transform.
func (c *Camera) InverseViewProjectionMatrix() mgl32.Mat4 {
	c.update()
	return c.invViewProj
}

// Frustum returns the world-space frustum. The pointer stays valid until the camera
// changes.
func (c *Camera) Frustum() *hmath.Frustum {
	c.update()
	return &c.frustum
}

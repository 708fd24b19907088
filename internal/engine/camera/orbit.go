package camera

import (
	"github.com/charmbracelet/harmonica"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	hmath "github.com/Faultbox/helix/pkg/math"
)

// orbit is the spring-animated state of an OrbitController.
type orbit struct {
	yaw, pitch, distance float64
	center               [3]float64
}

// OrbitController orbits a camera around a center point. Input changes the target
// orbit; Update moves the camera towards it on critically damped springs.
type OrbitController struct {
	// Target orbit
	Center   mgl32.Vec3
	Distance float32
	Pitch    float32 // vertical angle, radians
	Yaw      float32 // horizontal angle, radians

	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	DragSensitivity float32
	ZoomSensitivity float32

	spring   harmonica.Spring
	current  orbit
	velocity orbit
}

// NewOrbitController creates a controller updated fps times per second.
func NewOrbitController(fps int) *OrbitController {
	c := &OrbitController{
		Distance:        10,
		Pitch:           0.5,
		MinDistance:     0.5,
		MaxDistance:     500,
		MinPitch:        -1.5,
		MaxPitch:        1.5,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
		spring:          harmonica.NewSpring(harmonica.FPS(fps), 8.0, 1.0),
	}
	c.Snap()
	return c
}

// HandleDrag rotates the orbit by a mouse drag in pixels.
func (c *OrbitController) HandleDrag(deltaX, deltaY float32) {
	c.Yaw -= deltaX * c.DragSensitivity
	c.Pitch = hmath.Clamp(c.Pitch+deltaY*c.DragSensitivity, c.MinPitch, c.MaxPitch)
}

// HandleZoom scales the distance by a wheel delta.
func (c *OrbitController) HandleZoom(delta float32) {
	c.Distance = hmath.Clamp(c.Distance-delta*c.Distance*c.ZoomSensitivity, c.MinDistance, c.MaxDistance)
}

// HandleMovement pans the center on the ground plane relative to the view direction.
func (c *OrbitController) HandleMovement(forward, right, up float32) {
	speed := c.Distance * 0.01
	sy, cy := math32.Sincos(c.Yaw)
	c.Center[0] += (-sy*forward + cy*right) * speed
	c.Center[2] += (-cy*forward - sy*right) * speed
	c.Center[1] += up * speed
}

// FitToBounds centers the orbit on b at a distance that keeps it inside fovY.
func (c *OrbitController) FitToBounds(b hmath.AABB, fovY float32) {
	if b.IsEmpty() || b.IsInfinite() {
		return
	}
	c.Center = b.Center()
	r := b.Radius()
	c.Distance = hmath.Clamp(r/math32.Sin(fovY*0.5)*1.1, c.MinDistance, c.MaxDistance)
	c.Pitch = hmath.Clamp(0.6, c.MinPitch, c.MaxPitch)
	c.Yaw = 0
}

// Snap jumps to the target orbit without animation.
func (c *OrbitController) Snap() {
	c.current = c.target()
	c.velocity = orbit{}
}

func (c *OrbitController) target() orbit {
	return orbit{
		yaw:      float64(c.Yaw),
		pitch:    float64(c.Pitch),
		distance: float64(c.Distance),
		center:   [3]float64{float64(c.Center[0]), float64(c.Center[1]), float64(c.Center[2])},
	}
}

// Update advances the springs by one frame and places cam on the current orbit.
func (c *OrbitController) Update(cam *Camera) {
	t := c.target()
	c.current.yaw, c.velocity.yaw = c.spring.Update(c.current.yaw, c.velocity.yaw, t.yaw)
	c.current.pitch, c.velocity.pitch = c.spring.Update(c.current.pitch, c.velocity.pitch, t.pitch)
	c.current.distance, c.velocity.distance = c.spring.Update(c.current.distance, c.velocity.distance, t.distance)
	for i := range c.current.center {
		c.current.center[i], c.velocity.center[i] = c.spring.Update(c.current.center[i], c.velocity.center[i], t.center[i])
	}
	cam.LookAt(c.Position(), c.currentCenter(), mgl32.Vec3{0, 1, 0})
}

func (c *OrbitController) currentCenter() mgl32.Vec3 {
	return mgl32.Vec3{float32(c.current.center[0]), float32(c.current.center[1]), float32(c.current.center[2])}
}

// Position returns the current, animated eye position.
func (c *OrbitController) Position() mgl32.Vec3 {
	d := float32(c.current.distance)
	sp, cp := math32.Sincos(float32(c.current.pitch))
	sy, cy := math32.Sincos(float32(c.current.yaw))
	return c.currentCenter().Add(mgl32.Vec3{d * cp * sy, d * sp, d * cp * cy})
}

// Package shadow renders cascaded shadow maps for directional lights into a shared
// atlas.
package shadow

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/helix/internal/engine/camera"
	"github.com/Faultbox/helix/internal/engine/gpu"
	hmath "github.com/Faultbox/helix/pkg/math"
)

// MaxCascades is the largest supported cascade count.
const MaxCascades = 4

// ErrInvalidSplitRatios is returned for split ratios that are not strictly increasing
// within (0, 1].
var ErrInvalidSplitRatios = errors.New("invalid split ratios")

// DefaultSplitRatios returns the far ratio of each of n cascades, halving from 1.0
// towards the camera.
func DefaultSplitRatios(n int) []float32 {
	r := make([]float32, n)
	for i := range r {
		r[i] = math32.Pow(0.5, float32(n-1-i))
	}
	return r
}

// ValidateSplitRatios checks that r holds n strictly increasing ratios in (0, 1].
func ValidateSplitRatios(r []float32, n int) error {
	if len(r) != n {
		return fmt.Errorf("%w: have %d ratios for %d cascades", ErrInvalidSplitRatios, len(r), n)
	}
	prev := float32(0)
	for i, v := range r {
		if v <= prev || v > 1 {
			return fmt.Errorf("%w: ratio %d is %g", ErrInvalidSplitRatios, i, v)
		}
		prev = v
	}
	return nil
}

// SplitDistances converts far ratios to view-space z, which is negative in front of the
// camera. The last cascade always ends at the far plane.
func SplitDistances(near, far float32, ratios []float32) []float32 {
	d := make([]float32, len(ratios))
	for i, r := range ratios {
		d[i] = -(near + r*(far-near))
	}
	if len(d) > 0 {
		d[len(d)-1] = -far
	}
	return d
}

// AtlasLayout returns the tile grid for n cascades: 1x1, 2x1 or 2x2.
func AtlasLayout(n int) (cols, rows int) {
	switch {
	case n <= 1:
		return 1, 1
	case n == 2:
		return 2, 1
	}
	return 2, 2
}

// TileRemap maps clip space into the UV rectangle of tile within an atlas, and depth
// from [-1, 1] to [0, 1].
func TileRemap(tile gpu.Rect, atlasWidth, atlasHeight int) mgl32.Mat4 {
	sx := float32(tile.W) / float32(atlasWidth)
	sy := float32(tile.H) / float32(atlasHeight)
	ox := float32(tile.X) / float32(atlasWidth)
	oy := float32(tile.Y) / float32(atlasHeight)
	return mgl32.Translate3D(ox+0.5*sx, oy+0.5*sy, 0.5).Mul4(mgl32.Scale3D(0.5*sx, 0.5*sy, 0.5))
}

// LightRotation returns a world matrix whose -Z axis points along dir.
func LightRotation(dir mgl32.Vec3) mgl32.Mat4 {
	up := mgl32.Vec3{0, 1, 0}
	// avoid an up vector parallel to the light
	if math32.Abs(dir[1]) > 0.99 {
		up = mgl32.Vec3{0, 0, 1}
	}
	return mgl32.LookAtV(mgl32.Vec3{}, dir, up).Inv()
}

// sidePlanes returns the outward world planes bounding the light-space X/Y extent of b.
// rotation is the light's world matrix.
func sidePlanes(rotation mgl32.Mat4, b hmath.AABB) [4]hmath.Plane {
	right := rotation.Col(0).Vec3()
	up := rotation.Col(1).Vec3()
	return [4]hmath.Plane{
		{Normal: right.Mul(-1), D: b.Min[0]},
		{Normal: right, D: -b.Max[0]},
		{Normal: up.Mul(-1), D: b.Min[1]},
		{Normal: up, D: -b.Max[1]},
	}
}

func transformPoints(m mgl32.Mat4, pts []mgl32.Vec3) hmath.AABB {
	b := hmath.EmptyAABB()
	for _, p := range pts {
		b.GrowToIncludePoint(mgl32.TransformCoordinate(p, m))
	}
	return b
}

// Cascade is one depth slice of the view frustum with its own orthographic camera and
// atlas tile.
type Cascade struct {
	NearRatio float32
	FarRatio  float32
	Camera    *camera.Camera
	Tile      gpu.Rect
	// Matrix maps world positions to atlas UV and depth.
	Matrix mgl32.Mat4

	slice  hmath.AABB // light space
	texel  mgl32.Vec2 // world size of one map texel
	planes [4]hmath.Plane
}

func newCascade() *Cascade {
	return &Cascade{Camera: camera.NewOrthographic(-1, 1, -1, 1, 0.1, 1)}
}

// Planes returns the four side planes used to collect casters. Near and far are left
// open: casters outside the slice may still shadow it.
func (c *Cascade) Planes() []hmath.Plane { return c.planes[:] }

// fitSlice bounds the cascade's part of the view frustum in light space and derives
// provisional side planes. X/Y cover the slice's bounding sphere widened by margin
// texels and one texel of snapping slack, so their size only depends on the slice
// depth range and not on how the camera is turned.
func (c *Cascade) fitSlice(f *hmath.Frustum, lightView, rotation mgl32.Mat4, marginTexels float32) {
	corners := f.SliceCorners(c.NearRatio, c.FarRatio)
	sphere := hmath.SphereFromPoints(corners[:]...)
	c.slice = transformPoints(lightView, corners[:])
	center := mgl32.TransformCoordinate(sphere.Center, lightView)

	w, h := float32(max(c.Tile.W, 3)), float32(max(c.Tile.H, 3))
	size := 2 * sphere.Radius * (1 + 2*marginTexels/w)
	c.texel = mgl32.Vec2{size / (w - 2), size / (h - 2)}
	halfX := size/2 + c.texel[0]
	halfY := size/2 + c.texel[1]
	c.slice.Min[0], c.slice.Max[0] = center[0]-halfX, center[0]+halfX
	c.slice.Min[1], c.slice.Max[1] = center[1]-halfY, center[1]+halfY
	c.planes = sidePlanes(rotation, c.slice)
}

// fitCamera sets the final orthographic camera. Z extends towards the light to include
// every caster and never past the farthest frustum corner. X/Y snap to texel
// increments so the map is stable while the camera moves.
func (c *Cascade) fitCamera(rotation mgl32.Mat4, casters hmath.AABB, frustumMinZ float32, atlasWidth, atlasHeight int) {
	maxZ := c.slice.Max[2]
	if !casters.IsEmpty() {
		maxZ = math32.Max(maxZ, casters.Max[2])
	}
	minZ := math32.Max(c.slice.Min[2], frustumMinZ)

	tx, ty := max(c.texel[0], 1e-6), max(c.texel[1], 1e-6)
	minX := hmath.SnapDown(c.slice.Min[0], tx)
	minY := hmath.SnapDown(c.slice.Min[1], ty)
	maxX := minX + tx*float32(max(c.Tile.W, 1))
	maxY := minY + ty*float32(max(c.Tile.H, 1))

	// light space looks down -Z, so near and far are the negated bounds
	near, far := -maxZ, -minZ
	pad := math32.Max((far-near)*0.01, 1e-3)
	c.Camera.SetWorldMatrix(rotation)
	c.Camera.SetOrthographic(minX, maxX, minY, maxY, near-pad, far+pad)
	c.Matrix = TileRemap(c.Tile, atlasWidth, atlasHeight).Mul4(c.Camera.ViewProjectionMatrix())
}

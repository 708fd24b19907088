package shadow

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/helix/internal/engine/camera"
	"github.com/Faultbox/helix/internal/engine/effect"
	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/material"
	"github.com/Faultbox/helix/internal/engine/render"
	"github.com/Faultbox/helix/internal/engine/scene"
	"github.com/Faultbox/helix/internal/engine/shader"
	"github.com/Faultbox/helix/internal/logger"
	hmath "github.com/Faultbox/helix/pkg/math"
)

// DefaultMapSize is the tile resolution used when a light does not set one.
const DefaultMapSize = 1024

// ClearValue marks atlas texels no caster was drawn to.
var ClearValue = mgl32.Vec4{1, 1, 1, 1}

// MapRenderer renders the cascaded shadow map of one directional light. Cascade tiles
// share a single atlas texture; blurred filters ping-pong between two of them.
type MapRenderer struct {
	filter      material.ShadowFilter
	softness    float32
	splitRatios []float32

	cascades  []*Cascade
	collector CasterCollector
	planes    []hmath.Plane

	tileSize       int
	atlasW, atlasH int
	textures       [2]gpu.Texture
	targets        [2]gpu.Framebuffer
	depth          gpu.DepthBuffer
	dev            gpu.Device

	matrices []mgl32.Mat4
	splits   []float32
	data     scene.ShadowData
	log      *zap.Logger
}

// NewMapRenderer creates a renderer for numCascades cascades. It panics when the count
// is outside 1 to MaxCascades.
func NewMapRenderer(numCascades int, filter material.ShadowFilter, softness float32) *MapRenderer {
	if numCascades < 1 || numCascades > MaxCascades {
		panic(fmt.Sprintf("shadow: %d cascades, want 1 to %d", numCascades, MaxCascades))
	}
	r := &MapRenderer{
		filter:      filter,
		softness:    softness,
		splitRatios: DefaultSplitRatios(numCascades),
		cascades:    make([]*Cascade, numCascades),
		matrices:    make([]mgl32.Mat4, numCascades),
		log:         logger.Named("shadow"),
	}
	for i := range r.cascades {
		r.cascades[i] = newCascade()
	}
	return r
}

// NumCascades returns the cascade count.
func (r *MapRenderer) NumCascades() int { return len(r.cascades) }

// Cascades returns the cascades as fitted by the last Update.
func (r *MapRenderer) Cascades() []*Cascade { return r.cascades }

// Collector returns the caster collector.
func (r *MapRenderer) Collector() *CasterCollector { return &r.collector }

// SplitRatios returns the far ratio of each cascade.
func (r *MapRenderer) SplitRatios() []float32 { return r.splitRatios }

// SetSplitRatios overrides the default split ratios. nil restores the defaults.
func (r *MapRenderer) SetSplitRatios(ratios []float32) error {
	if ratios == nil {
		r.splitRatios = DefaultSplitRatios(len(r.cascades))
		return nil
	}
	if err := ValidateSplitRatios(ratios, len(r.cascades)); err != nil {
		return err
	}
	r.splitRatios = append([]float32(nil), ratios...)
	return nil
}

// SetFilter changes the filter and its softness in texels.
func (r *MapRenderer) SetFilter(f material.ShadowFilter, softness float32) {
	r.filter = f
	r.softness = softness
}

// SplitDistances returns the view-space z each cascade ends at, from the last Update.
func (r *MapRenderer) SplitDistances() []float32 { return r.splits }

// Atlas returns the shadow atlas texture, nil before the first Render.
func (r *MapRenderer) Atlas() gpu.Texture { return r.textures[0] }

func (r *MapRenderer) ratiosFor(light *scene.Light) []float32 {
	if own := light.Shadow.SplitRatios; len(own) > 0 {
		err := ValidateSplitRatios(own, len(r.cascades))
		if err == nil {
			return own
		}
		r.log.Warn("ignoring light split ratios", zap.Error(err))
	}
	return r.splitRatios
}

func (r *MapRenderer) marginTexels() float32 {
	if r.filter == material.ShadowHard {
		return 0
	}
	return r.softness
}

// Update fits the cascades of light to view and collects their casters from s.
func (r *MapRenderer) Update(view *camera.Camera, light *scene.Light, s *scene.Scene) {
	dir := light.Direction()
	rotation := LightRotation(dir)
	lightView := rotation.Inv()
	f := view.Frustum()
	all := transformPoints(lightView, f.Corners[:])

	// one culling volume for every cascade: the light-space extent of the whole
	// frustum plus the frustum planes facing away from the light
	side := sidePlanes(rotation, all)
	r.planes = append(r.planes[:0], side[:]...)
	for _, p := range f.Planes {
		if p.Normal.Dot(dir) > 0 {
			r.planes = append(r.planes, p)
		}
	}

	ratios := r.ratiosFor(light)
	size := r.tileSize
	if size == 0 {
		size = max(light.Shadow.MapSize, 1)
	}
	cols, rows := AtlasLayout(len(r.cascades))
	atlasW, atlasH := cols*size, rows*size
	near := float32(0)
	for i, c := range r.cascades {
		c.NearRatio = near
		c.FarRatio = ratios[i]
		if i == len(r.cascades)-1 {
			c.FarRatio = 1
		}
		near = c.FarRatio
		c.Tile = gpu.Rect{X: (i % cols) * size, Y: (i / cols) * size, W: size, H: size}
		c.fitSlice(f, lightView, rotation, r.marginTexels())
	}

	r.collector.Collect(s, r.planes, r.cascades, lightView)

	casters := r.collector.CasterBounds()
	for i, c := range r.cascades {
		c.fitCamera(rotation, casters, all.Min[2], atlasW, atlasH)
		r.matrices[i] = c.Matrix
	}
	r.splits = SplitDistances(view.NearDistance(), view.FarDistance(), ratios)
}

func (r *MapRenderer) resize(dev gpu.Device, size int) error {
	if size <= 0 {
		size = DefaultMapSize
	}
	if size == r.tileSize && dev == r.dev && r.targets[0] != nil {
		return nil
	}
	r.Release()
	cols, rows := AtlasLayout(len(r.cascades))
	w, h := cols*size, rows*size
	depth, err := dev.CreateDepthBuffer(w, h)
	if err != nil {
		return fmt.Errorf("shadow depth buffer: %w", err)
	}
	r.depth = depth
	for i := range r.textures {
		if i == 1 && !r.filter.NeedsBlur() {
			break
		}
		tex, err := dev.CreateTexture(gpu.TextureDesc{Width: w, Height: h, Format: gpu.FormatRGBA32F, Linear: r.filter.NeedsBlur()})
		if err != nil {
			return fmt.Errorf("shadow atlas: %w", err)
		}
		r.textures[i] = tex
		var d gpu.DepthBuffer
		if i == 0 {
			d = depth
		}
		fb, err := dev.CreateFramebuffer([]gpu.Texture{tex}, d)
		if err != nil {
			return fmt.Errorf("shadow atlas target: %w", err)
		}
		r.targets[i] = fb
	}
	r.tileSize, r.atlasW, r.atlasH, r.dev = size, w, h, dev
	return nil
}

// Render fits, collects and draws the shadow map of light and publishes it as the
// light's ShadowData. When the atlas cannot be created the light renders unshadowed.
func (r *MapRenderer) Render(ctx *effect.Context, view *camera.Camera, light *scene.Light, s *scene.Scene) {
	light.ShadowData = nil
	if r.filter.NeedsBlur() && r.targets[0] != nil && r.targets[1] == nil {
		r.Release()
	}
	if err := r.resize(ctx.GC.Device(), light.Shadow.MapSize); err != nil {
		r.log.Warn("shadow map skipped", zap.String("light", nodeName(light)), zap.Error(err))
		r.Release()
		return
	}
	r.Update(view, light, s)

	gc := ctx.GC
	gc.UnbindTexture(r.textures[0])
	gc.SetRenderTarget(r.targets[0])
	gc.SetClearColor(ClearValue)
	gc.Clear(gpu.ClearColor | gpu.ClearDepth)
	for i, c := range r.cascades {
		gc.SetViewport(c.Tile)
		pc := &render.PassContext{GC: gc, View: c.Camera}
		render.RenderPass(pc, material.DirLightShadowMapPass, r.collector.Items(i))
	}
	if r.filter.NeedsBlur() {
		if err := r.blur(ctx); err != nil {
			r.log.Warn("shadow blur skipped", zap.Error(err))
		}
	}

	r.data = scene.ShadowData{
		Atlas:          r.textures[0],
		Matrices:       r.matrices,
		SplitDistances: r.splits,
		PixelSize:      mgl32.Vec2{1 / float32(r.atlasW), 1 / float32(r.atlasH)},
		DepthBias:      light.Shadow.DepthBias,
		Softness:       r.softness,
	}
	light.ShadowData = &r.data
}

// blur runs a separable blur: front to back horizontally, back to front vertically.
func (r *MapRenderer) blur(ctx *effect.Context) error {
	prog, err := ctx.Programs.Program(shader.ProgramBlur, nil)
	if err != nil {
		return err
	}
	steps := [2]mgl32.Vec2{{1 / float32(r.atlasW), 0}, {0, 1 / float32(r.atlasH)}}
	for i, step := range steps {
		src, dst := r.textures[i], r.targets[1-i]
		ctx.GC.UnbindTexture(dst.ColorTexture(0))
		ctx.DrawQuad(prog, dst, nil, func(gc *gpu.GraphicsContext) {
			gc.SetTexture(shader.SamplerSource, 0, src)
			gc.SetVec2(shader.UniformShadowBlurDirection, step)
		})
	}
	return nil
}

// Release frees the atlas.
func (r *MapRenderer) Release() {
	for i := range r.targets {
		if r.targets[i] != nil {
			r.targets[i].Release()
			r.targets[i] = nil
		}
		if r.textures[i] != nil {
			r.textures[i].Release()
			r.textures[i] = nil
		}
	}
	if r.depth != nil {
		r.depth.Release()
		r.depth = nil
	}
	r.tileSize, r.atlasW, r.atlasH, r.dev = 0, 0, 0, nil
}

func nodeName(l *scene.Light) string {
	if n := l.Node(); n != nil {
		return n.Name
	}
	return ""
}

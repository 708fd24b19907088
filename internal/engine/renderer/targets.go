package renderer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/helix/internal/engine/gpu"
)

type target struct {
	tex gpu.Texture
	fb  gpu.Framebuffer
}

func (t *target) release(gc *gpu.GraphicsContext) {
	if t.fb != nil {
		t.fb.Release()
		t.fb = nil
	}
	if t.tex != nil {
		gc.UnbindTexture(t.tex)
		t.tex.Release()
		t.tex = nil
	}
}

const (
	planeAlbedo = iota
	planeNormalDepth
	planeSpecular
	numPlanes
)

var (
	planeFormats = [numPlanes]gpu.TextureFormat{gpu.FormatRGBA8, gpu.FormatRGBA16F, gpu.FormatRGBA8}
	// empty texels: zero albedo alpha marks no geometry, depth 1 is the far plane
	planeClear = [numPlanes]mgl32.Vec4{{0, 0, 0, 0}, {0.5, 0.5, 1, 1}, {0, 0, 0, 0}}
)

// gbuffer holds one framebuffer per plane, cleared separately, and an MRT framebuffer
// over all of them when the device can draw to several targets at once.
type gbuffer struct {
	planes [numPlanes]target
	mrt    gpu.Framebuffer
}

func (g *gbuffer) ready() bool { return g.planes[planeAlbedo].fb != nil }

func (g *gbuffer) release(gc *gpu.GraphicsContext) {
	if g.mrt != nil {
		g.mrt.Release()
		g.mrt = nil
	}
	for i := range g.planes {
		g.planes[i].release(gc)
	}
}

func newTarget(dev gpu.Device, w, h int, format gpu.TextureFormat, depth gpu.DepthBuffer) (target, error) {
	tex, err := dev.CreateTexture(gpu.TextureDesc{Width: w, Height: h, Format: format, Linear: true})
	if err != nil {
		return target{}, err
	}
	fb, err := dev.CreateFramebuffer([]gpu.Texture{tex}, depth)
	if err != nil {
		tex.Release()
		return target{}, err
	}
	return target{tex: tex, fb: fb}, nil
}

// resize recreates the frame targets when the output size changed and reports whether
// it did. A G-buffer that cannot be created is logged and left unusable.
func (r *Renderer) resize(w, h int) (bool, error) {
	if w == r.width && h == r.height && r.hdr[0].fb != nil {
		return false, nil
	}
	r.releaseTargets()
	dev := r.gc.Device()

	depth, err := dev.CreateDepthBuffer(w, h)
	if err != nil {
		return true, fmt.Errorf("depth buffer: %w", err)
	}
	r.depth = depth
	for i := range r.hdr {
		t, err := newTarget(dev, w, h, gpu.FormatRGBA16F, depth)
		if err != nil {
			r.releaseTargets()
			return true, fmt.Errorf("hdr target %d: %w", i, err)
		}
		r.hdr[i] = t
	}
	if err := r.createGBuffer(w, h); err != nil {
		r.log.Warn("gbuffer unavailable", zap.Error(err))
		r.gbuffer.release(r.gc)
	}
	r.width, r.height = w, h
	r.front = 0
	return true, nil
}

func (r *Renderer) createGBuffer(w, h int) error {
	dev := r.gc.Device()
	var textures []gpu.Texture
	for i := range r.gbuffer.planes {
		t, err := newTarget(dev, w, h, planeFormats[i], r.depth)
		if err != nil {
			return fmt.Errorf("plane %d: %w", i, err)
		}
		r.gbuffer.planes[i] = t
		textures = append(textures, t.tex)
	}
	if r.compiler.Settings().MultipleRenderTargets {
		fb, err := dev.CreateFramebuffer(textures, r.depth)
		if err != nil {
			return fmt.Errorf("mrt: %w", err)
		}
		r.gbuffer.mrt = fb
	}
	return nil
}

func (r *Renderer) releaseTargets() {
	for i := range r.hdr {
		r.hdr[i].release(r.gc)
	}
	r.gbuffer.release(r.gc)
	r.debugCopy.release(r.gc)
	if r.depth != nil {
		r.depth.Release()
		r.depth = nil
	}
	r.width, r.height = 0, 0
}

func (r *Renderer) frontTarget() *target { return &r.hdr[r.front] }
func (r *Renderer) backTarget() *target  { return &r.hdr[1-r.front] }

func (r *Renderer) swap() { r.front = 1 - r.front }

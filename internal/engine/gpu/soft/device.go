// Package soft implements gpu.Device on the CPU. Programs are not compiled from GLSL;
// each program name maps to Go kernels that mirror the GLSL library, so headless tools
// and tests exercise the same frame pipeline as the GL backend.
package soft

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/logger"
)

const numTextureSlots = 16

type texture struct {
	w, h     int
	format   gpu.TextureFormat
	linear   bool
	repeat   bool
	pix      []float32
	ready    bool
	released bool
}

func (t *texture) Width() int                { return t.w }
func (t *texture) Height() int               { return t.h }
func (t *texture) Format() gpu.TextureFormat { return t.format }
func (t *texture) IsReady() bool             { return t.ready && !t.released }
func (t *texture) Release()                  { t.released = true; t.pix = nil }

func (t *texture) at(x, y int) mgl32.Vec4 {
	i := (y*t.w + x) * 4
	return mgl32.Vec4{t.pix[i], t.pix[i+1], t.pix[i+2], t.pix[i+3]}
}

func (t *texture) set(x, y int, c mgl32.Vec4) {
	if t.format == gpu.FormatRGBA8 {
		for i := range c {
			c[i] = clamp01(c[i])
		}
	}
	i := (y*t.w + x) * 4
	copy(t.pix[i:i+4], c[:])
}

type depthBuffer struct {
	w, h int
	z    []float32
}

func (d *depthBuffer) Width() int  { return d.w }
func (d *depthBuffer) Height() int { return d.h }
func (d *depthBuffer) Release()    { d.z = nil }

type framebuffer struct {
	w, h   int
	colors []*texture
	depth  *depthBuffer
}

func (f *framebuffer) Width() int            { return f.w }
func (f *framebuffer) Height() int           { return f.h }
func (f *framebuffer) NumColorTextures() int { return len(f.colors) }
func (f *framebuffer) Release()              {}

func (f *framebuffer) ColorTexture(i int) gpu.Texture {
	if i < 0 || i >= len(f.colors) {
		return nil
	}
	return f.colors[i]
}

type meshBuffer struct {
	data    gpu.MeshData
	offsets [9]int
	sizes   [9]int
	stride  int
}

func (m *meshBuffer) IndexCount() int { return len(m.data.Indices) }
func (m *meshBuffer) Release()        {}

// Device is a software rasterizer.
type Device struct {
	caps   gpu.Capabilities
	output *framebuffer
	log    *zap.Logger

	target     *framebuffer
	viewport   gpu.Rect
	clearColor mgl32.Vec4
	cull       gpu.CullMode
	depthTest  gpu.DepthTest
	depthMask  bool
	blend      *gpu.BlendState
	program    *program
	mesh       *meshBuffer
	textures   [numTextureSlots]*texture
}

// New creates a device whose output surface is width x height RGBA8 with depth.
func New(width, height int) *Device {
	d := &Device{
		caps: gpu.Capabilities{
			MaxDrawBuffers:  4,
			MaxTextureSlots: numTextureSlots,
			MaxTextureSize:  4096,
		},
		log:       logger.Named("gpu.soft"),
		depthMask: true,
	}
	d.output = d.newOutput(width, height)
	d.target = d.output
	return d
}

func (d *Device) newOutput(width, height int) *framebuffer {
	color := &texture{w: width, h: height, format: gpu.FormatRGBA8, pix: make([]float32, width*height*4), ready: true}
	depth := &depthBuffer{w: width, h: height, z: make([]float32, width*height)}
	for i := range depth.z {
		depth.z[i] = 1
	}
	return &framebuffer{w: width, h: height, colors: []*texture{color}, depth: depth}
}

// SetMaxDrawBuffers overrides the reported MRT limit; 1 forces multi-pass G-buffer fills.
func (d *Device) SetMaxDrawBuffers(n int) {
	d.caps.MaxDrawBuffers = n
}

// Resize replaces the output surface.
func (d *Device) Resize(width, height int) {
	rebind := d.target == d.output
	d.output = d.newOutput(width, height)
	if rebind {
		d.target = d.output
	}
}

// Output returns the output surface color texture.
func (d *Device) Output() gpu.Texture { return d.output.colors[0] }

func (d *Device) Capabilities() gpu.Capabilities { return d.caps }

func (d *Device) DefaultFramebufferSize() (int, int) { return d.output.w, d.output.h }

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	if desc.Width < 0 || desc.Height < 0 || desc.Width > d.caps.MaxTextureSize || desc.Height > d.caps.MaxTextureSize {
		return nil, fmt.Errorf("soft: texture size %dx%d: %w", desc.Width, desc.Height, gpu.ErrUnsupported)
	}
	return &texture{
		w:      desc.Width,
		h:      desc.Height,
		format: desc.Format,
		linear: desc.Linear,
		repeat: desc.Repeat,
		pix:    make([]float32, desc.Width*desc.Height*4),
		ready:  desc.Width > 0 && desc.Height > 0,
	}, nil
}

// UploadTexture expects rows top to bottom, as image.RGBA stores them, and flips them
// into the bottom-up layout used for sampling.
func (d *Device) UploadTexture(t gpu.Texture, width, height int, rgba []uint8) error {
	tex, ok := t.(*texture)
	if !ok {
		return fmt.Errorf("soft: foreign texture %T", t)
	}
	if len(rgba) < width*height*4 {
		return fmt.Errorf("soft: upload of %dx%d needs %d bytes, got %d", width, height, width*height*4, len(rgba))
	}
	tex.w, tex.h = width, height
	tex.pix = make([]float32, width*height*4)
	for y := 0; y < height; y++ {
		src := rgba[(height-1-y)*width*4:]
		dst := tex.pix[y*width*4:]
		for i := 0; i < width*4; i++ {
			dst[i] = float32(src[i]) / 255
		}
	}
	tex.ready = true
	return nil
}

func (d *Device) CreateDepthBuffer(width, height int) (gpu.DepthBuffer, error) {
	db := &depthBuffer{w: width, h: height, z: make([]float32, width*height)}
	for i := range db.z {
		db.z[i] = 1
	}
	return db, nil
}

func (d *Device) CreateFramebuffer(colors []gpu.Texture, depth gpu.DepthBuffer) (gpu.Framebuffer, error) {
	fb := &framebuffer{}
	if len(colors) > d.caps.MaxDrawBuffers {
		return nil, fmt.Errorf("soft: %d color attachments exceed %d: %w", len(colors), d.caps.MaxDrawBuffers, gpu.ErrFramebufferIncomplete)
	}
	for i, c := range colors {
		tex, ok := c.(*texture)
		if !ok || !tex.IsReady() {
			return nil, fmt.Errorf("soft: color attachment %d missing: %w", i, gpu.ErrFramebufferIncomplete)
		}
		if i == 0 {
			fb.w, fb.h = tex.w, tex.h
		} else if tex.w != fb.w || tex.h != fb.h {
			return nil, fmt.Errorf("soft: attachment %d size mismatch: %w", i, gpu.ErrFramebufferIncomplete)
		}
		fb.colors = append(fb.colors, tex)
	}
	if depth != nil {
		db, ok := depth.(*depthBuffer)
		if !ok {
			return nil, fmt.Errorf("soft: foreign depth buffer %T: %w", depth, gpu.ErrFramebufferIncomplete)
		}
		if len(fb.colors) == 0 {
			fb.w, fb.h = db.w, db.h
		} else if db.w < fb.w || db.h < fb.h {
			return nil, fmt.Errorf("soft: depth buffer smaller than color: %w", gpu.ErrFramebufferIncomplete)
		}
		fb.depth = db
	}
	if fb.w == 0 || fb.h == 0 {
		return nil, fmt.Errorf("soft: no attachments: %w", gpu.ErrFramebufferIncomplete)
	}
	return fb, nil
}

func (d *Device) CreateProgram(src gpu.ProgramSource) (gpu.Program, error) {
	k, err := lookupKernel(src.Name, src.Defines)
	if err != nil {
		return nil, err
	}
	return &program{name: src.Name, kernel: k, locations: map[string]int32{}}, nil
}

func (d *Device) CreateMesh(data *gpu.MeshData) (gpu.MeshBuffer, error) {
	m := &meshBuffer{data: *data, stride: data.Stride()}
	if m.stride == 0 {
		return nil, fmt.Errorf("soft: mesh has no attributes")
	}
	for i, name := range gpu.AttributeLocations {
		m.offsets[i] = data.AttributeOffset(name)
		for _, a := range data.Attributes {
			if a.Name == name {
				m.sizes[i] = a.Size
			}
		}
	}
	if m.offsets[0] < 0 {
		return nil, fmt.Errorf("soft: mesh has no %s attribute", gpu.AttrPosition)
	}
	for _, idx := range data.Indices {
		if int(idx) >= data.VertexCount() {
			return nil, fmt.Errorf("soft: index %d out of range", idx)
		}
	}
	return m, nil
}

func (d *Device) BindFramebuffer(fb gpu.Framebuffer) {
	if fb == nil {
		d.target = d.output
		return
	}
	d.target = fb.(*framebuffer)
}

func (d *Device) SetViewport(r gpu.Rect)        { d.viewport = r }
func (d *Device) SetClearColor(c mgl32.Vec4)    { d.clearColor = c }
func (d *Device) SetCullMode(mode gpu.CullMode) { d.cull = mode }
func (d *Device) SetDepthTest(t gpu.DepthTest)  { d.depthTest = t }
func (d *Device) SetDepthMask(write bool)       { d.depthMask = write }

func (d *Device) SetBlendState(b *gpu.BlendState) {
	if b == nil {
		d.blend = nil
		return
	}
	bb := *b
	d.blend = &bb
}

// Clear clears whole attachments, ignoring the viewport like glClear without scissor.
func (d *Device) Clear(mask gpu.ClearMask) {
	fb := d.target
	if mask&gpu.ClearColor != 0 {
		for _, c := range fb.colors {
			for y := 0; y < c.h; y++ {
				for x := 0; x < c.w; x++ {
					c.set(x, y, d.clearColor)
				}
			}
		}
	}
	if mask&gpu.ClearDepth != 0 && fb.depth != nil && d.depthMask {
		for i := range fb.depth.z {
			fb.depth.z[i] = 1
		}
	}
}

func (d *Device) UseProgram(p gpu.Program) {
	if p == nil {
		d.program = nil
		return
	}
	d.program = p.(*program)
}

func (d *Device) uniform(loc int32) *uniformValue {
	if d.program == nil || loc < 0 || int(loc) >= len(d.program.values) {
		return nil
	}
	return &d.program.values[loc]
}

func (d *Device) SetUniformInt(loc int32, v int32) {
	if u := d.uniform(loc); u != nil {
		u.i = v
		u.f = []float32{float32(v)}
	}
}

func (d *Device) SetUniformFloat(loc int32, v float32) {
	if u := d.uniform(loc); u != nil {
		u.f = []float32{v}
		u.i = int32(v)
	}
}

func (d *Device) SetUniformVec2(loc int32, v mgl32.Vec2) {
	if u := d.uniform(loc); u != nil {
		u.f = v[:]
	}
}

func (d *Device) SetUniformVec3(loc int32, v mgl32.Vec3) {
	if u := d.uniform(loc); u != nil {
		u.f = v[:]
	}
}

func (d *Device) SetUniformVec4(loc int32, v mgl32.Vec4) {
	if u := d.uniform(loc); u != nil {
		u.f = v[:]
	}
}

func (d *Device) SetUniformMat4(loc int32, m mgl32.Mat4) {
	if u := d.uniform(loc); u != nil {
		u.m = []mgl32.Mat4{m}
	}
}

func (d *Device) SetUniformMat4Array(loc int32, m []mgl32.Mat4) {
	if u := d.uniform(loc); u != nil {
		u.m = append([]mgl32.Mat4(nil), m...)
	}
}

func (d *Device) SetUniformFloatArray(loc int32, v []float32) {
	if u := d.uniform(loc); u != nil {
		u.f = append([]float32(nil), v...)
	}
}

func (d *Device) BindTexture(slot int, t gpu.Texture) {
	if slot < 0 || slot >= numTextureSlots {
		return
	}
	tex, _ := t.(*texture)
	d.textures[slot] = tex
}

func (d *Device) BindMesh(m gpu.MeshBuffer) {
	mb, _ := m.(*meshBuffer)
	d.mesh = mb
}

func (d *Device) DrawElements() {
	if d.program == nil || d.mesh == nil {
		return
	}
	d.draw(d.program, d.mesh)
}

func (d *Device) ReadPixels(fb gpu.Framebuffer, attachment int, r gpu.Rect) ([]float32, error) {
	f := d.output
	if fb != nil {
		var ok bool
		if f, ok = fb.(*framebuffer); !ok {
			return nil, fmt.Errorf("soft: foreign framebuffer %T", fb)
		}
	}
	if attachment < 0 || attachment >= len(f.colors) {
		return nil, fmt.Errorf("soft: no color attachment %d", attachment)
	}
	tex := f.colors[attachment]
	if r.X < 0 || r.Y < 0 || r.X+r.W > tex.w || r.Y+r.H > tex.h {
		return nil, fmt.Errorf("soft: read rect %+v outside %dx%d", r, tex.w, tex.h)
	}
	out := make([]float32, 0, r.W*r.H*4)
	for y := r.Y; y < r.Y+r.H; y++ {
		i := (y*tex.w + r.X) * 4
		out = append(out, tex.pix[i:i+r.W*4]...)
	}
	return out, nil
}

// ReadTexture returns all texels of t, rows bottom to top.
func ReadTexture(t gpu.Texture) ([]float32, error) {
	tex, ok := t.(*texture)
	if !ok {
		return nil, fmt.Errorf("soft: foreign texture %T", t)
	}
	return append([]float32(nil), tex.pix...), nil
}

// Texel returns one texel of a texture created by this package.
func Texel(t gpu.Texture, x, y int) mgl32.Vec4 {
	tex, ok := t.(*texture)
	if !ok || x < 0 || y < 0 || x >= tex.w || y >= tex.h {
		return mgl32.Vec4{}
	}
	return tex.at(x, y)
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package opengl

import (
	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/helix/internal/engine/gpu"
)

type texture struct {
	id       uint32
	w, h     int
	format   gpu.TextureFormat
	released bool
}

func (t *texture) Width() int                { return t.w }
func (t *texture) Height() int               { return t.h }
func (t *texture) Format() gpu.TextureFormat { return t.format }
func (t *texture) IsReady() bool             { return !t.released && t.id != 0 && t.w > 0 && t.h > 0 }

func (t *texture) Release() {
	if t.id != 0 {
		gl.DeleteTextures(1, &t.id)
		t.id = 0
	}
	t.released = true
}

// TextureID returns the GL name of a texture created by this package, 0 otherwise.
// UI code uses it to show render targets.
func TextureID(t gpu.Texture) uint32 {
	if tex, ok := t.(*texture); ok {
		return tex.id
	}
	return 0
}

type depthBuffer struct {
	rbo  uint32
	w, h int
}

func (d *depthBuffer) Width() int  { return d.w }
func (d *depthBuffer) Height() int { return d.h }

func (d *depthBuffer) Release() {
	if d.rbo != 0 {
		gl.DeleteRenderbuffers(1, &d.rbo)
		d.rbo = 0
	}
}

type framebuffer struct {
	fbo    uint32
	w, h   int
	colors []gpu.Texture
}

func (f *framebuffer) Width() int            { return f.w }
func (f *framebuffer) Height() int           { return f.h }
func (f *framebuffer) NumColorTextures() int { return len(f.colors) }
func (f *framebuffer) ColorTexture(i int) gpu.Texture {
	if i < 0 || i >= len(f.colors) {
		return nil
	}
	return f.colors[i]
}

// Release deletes the framebuffer object; the attachments stay owned by the caller.
func (f *framebuffer) Release() {
	if f.fbo != 0 {
		gl.DeleteFramebuffers(1, &f.fbo)
		f.fbo = 0
	}
}

type program struct {
	id       uint32
	name     string
	uniforms map[string]int32
}

func (p *program) Name() string { return p.name }

func (p *program) UniformLocation(name string) int32 {
	if loc, ok := p.uniforms[name]; ok {
		return loc
	}
	loc := gl.GetUniformLocation(p.id, gl.Str(name+"\x00"))
	p.uniforms[name] = loc
	return loc
}

func (p *program) Release() {
	if p.id != 0 {
		gl.DeleteProgram(p.id)
		p.id = 0
	}
}

type meshBuffer struct {
	vao, vbo, ebo uint32
	indices       int
}

func (m *meshBuffer) IndexCount() int { return m.indices }

func (m *meshBuffer) Release() {
	if m.vao != 0 {
		gl.DeleteVertexArrays(1, &m.vao)
		gl.DeleteBuffers(1, &m.vbo)
		gl.DeleteBuffers(1, &m.ebo)
		m.vao, m.vbo, m.ebo = 0, 0, 0
	}
}

type textureFormat struct {
	internal int32
	typ      uint32
}

var textureFormats = map[gpu.TextureFormat]textureFormat{
	gpu.FormatRGBA8:   {gl.RGBA8, gl.UNSIGNED_BYTE},
	gpu.FormatRGBA16F: {gl.RGBA16F, gl.HALF_FLOAT},
	gpu.FormatRGBA32F: {gl.RGBA32F, gl.FLOAT},
}

var blendFactors = map[gpu.BlendFactor]uint32{
	gpu.BlendZero:             gl.ZERO,
	gpu.BlendOne:              gl.ONE,
	gpu.BlendSrcAlpha:         gl.SRC_ALPHA,
	gpu.BlendOneMinusSrcAlpha: gl.ONE_MINUS_SRC_ALPHA,
	gpu.BlendDstColor:         gl.DST_COLOR,
}

var depthFuncs = map[gpu.DepthTest]uint32{
	gpu.DepthLess:      gl.LESS,
	gpu.DepthLessEqual: gl.LEQUAL,
	gpu.DepthAlways:    gl.ALWAYS,
}

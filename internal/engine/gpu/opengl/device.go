// Package opengl implements the gpu.Device contract on OpenGL 4.1 core.
// All calls must come from the thread owning the GL context.
package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/logger"
)

// Device issues GL calls. It keeps no state cache; that is the GraphicsContext's job.
//
// Creating resources binds GL objects; the device restores the bindings the
// GraphicsContext believes are current afterwards.
type Device struct {
	caps    gpu.Capabilities
	surface func() (int, int)
	log     *zap.Logger

	fbo        uint32
	mesh       *meshBuffer
	activeUnit uint32
	units      []uint32
}

// New loads the GL entry points of the current context. surface reports the drawable
// size of the default framebuffer.
func New(surface func() (int, int)) (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("init opengl: %w", err)
	}
	d := &Device{surface: surface, log: logger.Named("gpu.gl")}

	var drawBuffers, slots, size int32
	gl.GetIntegerv(gl.MAX_DRAW_BUFFERS, &drawBuffers)
	gl.GetIntegerv(gl.MAX_COMBINED_TEXTURE_IMAGE_UNITS, &slots)
	gl.GetIntegerv(gl.MAX_TEXTURE_SIZE, &size)
	d.caps = gpu.Capabilities{
		MaxDrawBuffers:  int(drawBuffers),
		MaxTextureSlots: int(slots),
		MaxTextureSize:  int(size),
	}

	d.units = make([]uint32, max(slots, 1))

	d.log.Info("opengl initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
		zap.Int("max_draw_buffers", d.caps.MaxDrawBuffers),
		zap.Int("max_texture_slots", d.caps.MaxTextureSlots))
	return d, nil
}

func (d *Device) Capabilities() gpu.Capabilities { return d.caps }

func (d *Device) DefaultFramebufferSize() (int, int) { return d.surface() }

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	f, ok := textureFormats[desc.Format]
	if !ok {
		return nil, fmt.Errorf("texture format %s: %w", desc.Format, gpu.ErrUnsupported)
	}
	if desc.Width > d.caps.MaxTextureSize || desc.Height > d.caps.MaxTextureSize {
		return nil, fmt.Errorf("texture %dx%d exceeds %d: %w", desc.Width, desc.Height, d.caps.MaxTextureSize, gpu.ErrUnsupported)
	}
	t := &texture{w: desc.Width, h: desc.Height, format: desc.Format}
	gl.GenTextures(1, &t.id)
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	gl.TexImage2D(gl.TEXTURE_2D, 0, f.internal, int32(desc.Width), int32(desc.Height), 0, gl.RGBA, f.typ, nil)

	filter := int32(gl.NEAREST)
	if desc.Linear {
		filter = gl.LINEAR
	}
	wrap := int32(gl.CLAMP_TO_EDGE)
	if desc.Repeat {
		wrap = gl.REPEAT
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, wrap)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, wrap)
	d.restoreTexture()
	return t, nil
}

func (d *Device) UploadTexture(t gpu.Texture, width, height int, rgba []uint8) error {
	tex, ok := t.(*texture)
	if !ok {
		return fmt.Errorf("opengl: foreign texture %T", t)
	}
	if len(rgba) != width*height*4 {
		return fmt.Errorf("pixel data size mismatch: expected %d, got %d", width*height*4, len(rgba))
	}
	// GL expects the bottom row first
	flipped := make([]uint8, len(rgba))
	row := width * 4
	for y := 0; y < height; y++ {
		copy(flipped[y*row:(y+1)*row], rgba[(height-1-y)*row:])
	}
	gl.BindTexture(gl.TEXTURE_2D, tex.id)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(flipped))
	d.restoreTexture()
	tex.w, tex.h, tex.format = width, height, gpu.FormatRGBA8
	return nil
}

func (d *Device) CreateDepthBuffer(width, height int) (gpu.DepthBuffer, error) {
	db := &depthBuffer{w: width, h: height}
	gl.GenRenderbuffers(1, &db.rbo)
	gl.BindRenderbuffer(gl.RENDERBUFFER, db.rbo)
	gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH_COMPONENT24, int32(width), int32(height))
	gl.BindRenderbuffer(gl.RENDERBUFFER, 0)
	return db, nil
}

func (d *Device) CreateFramebuffer(colors []gpu.Texture, depth gpu.DepthBuffer) (gpu.Framebuffer, error) {
	if len(colors) > d.caps.MaxDrawBuffers {
		return nil, fmt.Errorf("%d color attachments, device allows %d: %w", len(colors), d.caps.MaxDrawBuffers, gpu.ErrFramebufferIncomplete)
	}
	fb := &framebuffer{colors: colors}
	gl.GenFramebuffers(1, &fb.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb.fbo)

	buffers := make([]uint32, len(colors))
	for i, c := range colors {
		tex, ok := c.(*texture)
		if !ok {
			fb.Release()
			gl.BindFramebuffer(gl.FRAMEBUFFER, d.fbo)
			return nil, fmt.Errorf("opengl: foreign texture %T", c)
		}
		buffers[i] = gl.COLOR_ATTACHMENT0 + uint32(i)
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, buffers[i], gl.TEXTURE_2D, tex.id, 0)
		fb.w, fb.h = tex.w, tex.h
	}
	if len(buffers) > 0 {
		gl.DrawBuffers(int32(len(buffers)), &buffers[0])
	} else {
		gl.DrawBuffer(gl.NONE)
	}
	if depth != nil {
		db, ok := depth.(*depthBuffer)
		if !ok {
			fb.Release()
			gl.BindFramebuffer(gl.FRAMEBUFFER, d.fbo)
			return nil, fmt.Errorf("opengl: foreign depth buffer %T", depth)
		}
		gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.RENDERBUFFER, db.rbo)
		if len(colors) == 0 {
			fb.w, fb.h = db.w, db.h
		}
	}

	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, d.fbo)
	if status != gl.FRAMEBUFFER_COMPLETE {
		fb.Release()
		return nil, fmt.Errorf("status 0x%x: %w", status, gpu.ErrFramebufferIncomplete)
	}
	return fb, nil
}

func (d *Device) CreateProgram(src gpu.ProgramSource) (gpu.Program, error) {
	id, err := compileProgram(src)
	if err != nil {
		return nil, fmt.Errorf("program %s: %w", src.Name, err)
	}
	return &program{id: id, name: src.Name, uniforms: map[string]int32{}}, nil
}

func (d *Device) CreateMesh(data *gpu.MeshData) (gpu.MeshBuffer, error) {
	if len(data.Indices) == 0 || len(data.Vertices) == 0 {
		return nil, fmt.Errorf("opengl: empty mesh")
	}
	m := &meshBuffer{indices: len(data.Indices)}
	gl.GenVertexArrays(1, &m.vao)
	gl.BindVertexArray(m.vao)

	gl.GenBuffers(1, &m.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(data.Vertices)*4, gl.Ptr(data.Vertices), gl.STATIC_DRAW)

	gl.GenBuffers(1, &m.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(data.Indices)*4, gl.Ptr(data.Indices), gl.STATIC_DRAW)

	stride := int32(data.Stride() * 4)
	for loc, name := range gpu.AttributeLocations {
		off := data.AttributeOffset(name)
		if off < 0 {
			continue
		}
		size := 0
		for _, a := range data.Attributes {
			if a.Name == name {
				size = a.Size
			}
		}
		gl.EnableVertexAttribArray(uint32(loc))
		gl.VertexAttribPointerWithOffset(uint32(loc), int32(size), gl.FLOAT, false, stride, uintptr(off*4))
	}
	if d.mesh != nil {
		gl.BindVertexArray(d.mesh.vao)
	} else {
		gl.BindVertexArray(0)
	}
	return m, nil
}

func (d *Device) BindFramebuffer(fb gpu.Framebuffer) {
	d.fbo = 0
	if fb != nil {
		d.fbo = fb.(*framebuffer).fbo
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, d.fbo)
}

func (d *Device) SetViewport(r gpu.Rect) {
	gl.Viewport(int32(r.X), int32(r.Y), int32(r.W), int32(r.H))
}

func (d *Device) SetClearColor(c mgl32.Vec4) { gl.ClearColor(c[0], c[1], c[2], c[3]) }

func (d *Device) Clear(mask gpu.ClearMask) {
	var bits uint32
	if mask&gpu.ClearColor != 0 {
		bits |= gl.COLOR_BUFFER_BIT
	}
	if mask&gpu.ClearDepth != 0 {
		bits |= gl.DEPTH_BUFFER_BIT
	}
	gl.Clear(bits)
}

func (d *Device) SetCullMode(mode gpu.CullMode) {
	switch mode {
	case gpu.CullNone:
		gl.Disable(gl.CULL_FACE)
	case gpu.CullBack:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	case gpu.CullFront:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.FRONT)
	}
}

func (d *Device) SetDepthTest(test gpu.DepthTest) {
	fn, ok := depthFuncs[test]
	if !ok {
		gl.Disable(gl.DEPTH_TEST)
		return
	}
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(fn)
}

func (d *Device) SetDepthMask(write bool) { gl.DepthMask(write) }

func (d *Device) SetBlendState(b *gpu.BlendState) {
	if b == nil {
		gl.Disable(gl.BLEND)
		return
	}
	gl.Enable(gl.BLEND)
	gl.BlendFuncSeparate(blendFactors[b.SrcFactor], blendFactors[b.DstFactor],
		blendFactors[b.AlphaSrcFactor], blendFactors[b.AlphaDstFactor])
}

func (d *Device) UseProgram(p gpu.Program) {
	if p == nil {
		gl.UseProgram(0)
		return
	}
	gl.UseProgram(p.(*program).id)
}

func (d *Device) SetUniformInt(loc int32, v int32)       { gl.Uniform1i(loc, v) }
func (d *Device) SetUniformFloat(loc int32, v float32)   { gl.Uniform1f(loc, v) }
func (d *Device) SetUniformVec2(loc int32, v mgl32.Vec2) { gl.Uniform2fv(loc, 1, &v[0]) }
func (d *Device) SetUniformVec3(loc int32, v mgl32.Vec3) { gl.Uniform3fv(loc, 1, &v[0]) }
func (d *Device) SetUniformVec4(loc int32, v mgl32.Vec4) { gl.Uniform4fv(loc, 1, &v[0]) }
func (d *Device) SetUniformMat4(loc int32, m mgl32.Mat4) { gl.UniformMatrix4fv(loc, 1, false, &m[0]) }

func (d *Device) SetUniformMat4Array(loc int32, m []mgl32.Mat4) {
	if len(m) > 0 {
		gl.UniformMatrix4fv(loc, int32(len(m)), false, &m[0][0])
	}
}

func (d *Device) SetUniformFloatArray(loc int32, v []float32) {
	if len(v) > 0 {
		gl.Uniform1fv(loc, int32(len(v)), &v[0])
	}
}

func (d *Device) BindTexture(slot int, t gpu.Texture) {
	if slot < 0 || slot >= len(d.units) {
		return
	}
	d.activeUnit = uint32(slot)
	d.units[slot] = TextureID(t)
	gl.ActiveTexture(gl.TEXTURE0 + d.activeUnit)
	gl.BindTexture(gl.TEXTURE_2D, d.units[slot])
}

// restoreTexture rebinds what BindTexture last put on the active unit.
func (d *Device) restoreTexture() {
	gl.BindTexture(gl.TEXTURE_2D, d.units[d.activeUnit])
}

func (d *Device) BindMesh(m gpu.MeshBuffer) {
	if m == nil {
		d.mesh = nil
		gl.BindVertexArray(0)
		return
	}
	d.mesh = m.(*meshBuffer)
	gl.BindVertexArray(d.mesh.vao)
}

func (d *Device) DrawElements() {
	if d.mesh == nil {
		return
	}
	gl.DrawElementsWithOffset(gl.TRIANGLES, int32(d.mesh.indices), gl.UNSIGNED_INT, 0)
}

func (d *Device) ReadPixels(fb gpu.Framebuffer, attachment int, r gpu.Rect) ([]float32, error) {
	out := make([]float32, r.W*r.H*4)
	if len(out) == 0 {
		return out, nil
	}
	if fb == nil {
		gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
		gl.ReadBuffer(gl.BACK)
	} else {
		f, ok := fb.(*framebuffer)
		if !ok {
			return nil, fmt.Errorf("opengl: foreign framebuffer %T", fb)
		}
		if attachment < 0 || attachment >= len(f.colors) {
			return nil, fmt.Errorf("opengl: attachment %d of %d", attachment, len(f.colors))
		}
		gl.BindFramebuffer(gl.READ_FRAMEBUFFER, f.fbo)
		gl.ReadBuffer(gl.COLOR_ATTACHMENT0 + uint32(attachment))
	}
	gl.ReadPixels(int32(r.X), int32(r.Y), int32(r.W), int32(r.H), gl.RGBA, gl.FLOAT, gl.Ptr(out))
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, d.fbo)
	if code := gl.GetError(); code != gl.NO_ERROR {
		return nil, fmt.Errorf("opengl: read pixels: error 0x%x", code)
	}
	return out, nil
}

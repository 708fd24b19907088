// Package gputest provides a recording gpu.Device for tests that assert on the exact
// commands reaching the device.
package gputest

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/helix/internal/engine/gpu"
)

// Texture is a fake texture.
type Texture struct {
	W, H     int
	Fmt      gpu.TextureFormat
	Ready    bool
	Released bool
}

func (t *Texture) Width() int                { return t.W }
func (t *Texture) Height() int               { return t.H }
func (t *Texture) Format() gpu.TextureFormat { return t.Fmt }
func (t *Texture) IsReady() bool             { return t.Ready && !t.Released }
func (t *Texture) Release()                  { t.Released = true }

type depthBuffer struct{ w, h int }

func (d *depthBuffer) Width() int  { return d.w }
func (d *depthBuffer) Height() int { return d.h }
func (d *depthBuffer) Release()    {}

type framebuffer struct {
	w, h   int
	colors []gpu.Texture
}

func (f *framebuffer) Width() int                     { return f.w }
func (f *framebuffer) Height() int                    { return f.h }
func (f *framebuffer) ColorTexture(i int) gpu.Texture { return f.colors[i] }
func (f *framebuffer) NumColorTextures() int          { return len(f.colors) }
func (f *framebuffer) Release()                       {}

// Program is a fake program that accepts every uniform name.
type Program struct {
	name  string
	dev   *Device
	Src   gpu.ProgramSource
	names map[string]int32
}

func (p *Program) Name() string { return p.name }

func (p *Program) UniformLocation(name string) int32 {
	if loc, ok := p.names[name]; ok {
		return loc
	}
	loc := int32(len(p.names))
	p.names[name] = loc
	return loc
}

func (p *Program) Release() {}

type mesh struct{ indices int }

func (m *mesh) IndexCount() int { return m.indices }
func (m *mesh) Release()        {}

// Device records every call. Uniform uploads are recorded as "program/uniform".
type Device struct {
	mu sync.Mutex

	Caps   gpu.Capabilities
	Width  int
	Height int
	// FailPrograms makes CreateProgram fail for the listed program names.
	FailPrograms map[string]bool
	// FailFramebuffers makes every CreateFramebuffer fail.
	FailFramebuffers bool
	// FailFormats makes CreateTexture fail for the listed formats.
	FailFormats map[gpu.TextureFormat]bool

	Calls    map[string]int
	Uniforms map[string]int
	Programs []*Program
	current  *Program
	bound    gpu.Framebuffer
	clears   map[gpu.Framebuffer]int
}

// New returns a device reporting MRT support and a 64x64 output surface.
func New() *Device {
	return &Device{
		Caps:         gpu.Capabilities{MaxDrawBuffers: 4, MaxTextureSlots: 16, MaxTextureSize: 4096},
		Width:        64,
		Height:       64,
		FailPrograms: map[string]bool{},
		FailFormats:  map[gpu.TextureFormat]bool{},
		Calls:        map[string]int{},
		Uniforms:     map[string]int{},
		clears:       map[gpu.Framebuffer]int{},
	}
}

func (d *Device) record(name string) {
	d.mu.Lock()
	d.Calls[name]++
	d.mu.Unlock()
}

func (d *Device) recordUniform(loc int32) {
	d.record("SetUniform")
	if d.current == nil {
		return
	}
	for name, l := range d.current.names {
		if l == loc {
			d.mu.Lock()
			d.Uniforms[d.current.name+"/"+name]++
			d.mu.Unlock()
			return
		}
	}
}

// Reset clears recorded calls.
func (d *Device) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = map[string]int{}
	d.Uniforms = map[string]int{}
	d.clears = map[gpu.Framebuffer]int{}
}

// Clears returns how often fb was cleared; nil counts the output surface.
func (d *Device) Clears(fb gpu.Framebuffer) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clears[fb]
}

// Count returns the number of recorded calls of one method.
func (d *Device) Count(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Calls[name]
}

// UniformCount returns how often a uniform of a program was uploaded.
func (d *Device) UniformCount(program, uniform string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Uniforms[program+"/"+uniform]
}

func (d *Device) Capabilities() gpu.Capabilities { return d.Caps }

func (d *Device) DefaultFramebufferSize() (int, int) { return d.Width, d.Height }

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	d.record("CreateTexture")
	if d.FailFormats[desc.Format] {
		return nil, fmt.Errorf("gputest: format %v rejected", desc.Format)
	}
	return &Texture{W: desc.Width, H: desc.Height, Fmt: desc.Format, Ready: desc.Width > 0 && desc.Height > 0}, nil
}

func (d *Device) UploadTexture(t gpu.Texture, width, height int, rgba []uint8) error {
	d.record("UploadTexture")
	tex, ok := t.(*Texture)
	if !ok {
		return fmt.Errorf("gputest: foreign texture %T", t)
	}
	tex.W, tex.H, tex.Ready = width, height, true
	return nil
}

func (d *Device) CreateDepthBuffer(width, height int) (gpu.DepthBuffer, error) {
	d.record("CreateDepthBuffer")
	return &depthBuffer{width, height}, nil
}

func (d *Device) CreateFramebuffer(colors []gpu.Texture, depth gpu.DepthBuffer) (gpu.Framebuffer, error) {
	d.record("CreateFramebuffer")
	if d.FailFramebuffers {
		return nil, fmt.Errorf("gputest: %w", gpu.ErrFramebufferIncomplete)
	}
	fb := &framebuffer{colors: colors}
	switch {
	case len(colors) > 0:
		fb.w, fb.h = colors[0].Width(), colors[0].Height()
	case depth != nil:
		fb.w, fb.h = depth.Width(), depth.Height()
	}
	return fb, nil
}

func (d *Device) CreateProgram(src gpu.ProgramSource) (gpu.Program, error) {
	d.record("CreateProgram")
	if d.FailPrograms[src.Name] {
		return nil, fmt.Errorf("gputest: program %s rejected", src.Name)
	}
	p := &Program{name: src.Name, dev: d, Src: src, names: map[string]int32{}}
	d.Programs = append(d.Programs, p)
	return p, nil
}

func (d *Device) CreateMesh(data *gpu.MeshData) (gpu.MeshBuffer, error) {
	d.record("CreateMesh")
	return &mesh{indices: len(data.Indices)}, nil
}

func (d *Device) BindFramebuffer(fb gpu.Framebuffer) {
	d.record("BindFramebuffer")
	d.bound = fb
}

func (d *Device) SetViewport(gpu.Rect)     { d.record("SetViewport") }
func (d *Device) SetClearColor(mgl32.Vec4) { d.record("SetClearColor") }
func (d *Device) Clear(gpu.ClearMask) {
	d.record("Clear")
	d.mu.Lock()
	d.clears[d.bound]++
	d.mu.Unlock()
}

func (d *Device) SetCullMode(gpu.CullMode)      { d.record("SetCullMode") }
func (d *Device) SetDepthTest(gpu.DepthTest)    { d.record("SetDepthTest") }
func (d *Device) SetDepthMask(bool)             { d.record("SetDepthMask") }
func (d *Device) SetBlendState(*gpu.BlendState) { d.record("SetBlendState") }

func (d *Device) UseProgram(p gpu.Program) {
	d.record("UseProgram")
	d.current, _ = p.(*Program)
}

func (d *Device) SetUniformInt(loc int32, _ int32)              { d.recordUniform(loc) }
func (d *Device) SetUniformFloat(loc int32, _ float32)          { d.recordUniform(loc) }
func (d *Device) SetUniformVec2(loc int32, _ mgl32.Vec2)        { d.recordUniform(loc) }
func (d *Device) SetUniformVec3(loc int32, _ mgl32.Vec3)        { d.recordUniform(loc) }
func (d *Device) SetUniformVec4(loc int32, _ mgl32.Vec4)        { d.recordUniform(loc) }
func (d *Device) SetUniformMat4(loc int32, _ mgl32.Mat4)        { d.recordUniform(loc) }
func (d *Device) SetUniformMat4Array(loc int32, _ []mgl32.Mat4) { d.recordUniform(loc) }
func (d *Device) SetUniformFloatArray(loc int32, _ []float32)   { d.recordUniform(loc) }

func (d *Device) BindTexture(int, gpu.Texture) { d.record("BindTexture") }
func (d *Device) BindMesh(gpu.MeshBuffer)      { d.record("BindMesh") }
func (d *Device) DrawElements()                { d.record("DrawElements") }

func (d *Device) ReadPixels(fb gpu.Framebuffer, attachment int, r gpu.Rect) ([]float32, error) {
	d.record("ReadPixels")
	return make([]float32, r.W*r.H*4), nil
}

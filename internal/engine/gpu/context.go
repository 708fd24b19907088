package gpu

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Stats counts the commands that actually reached the device.
type Stats struct {
	StateChanges   int
	ProgramChanges int
	TextureBinds   int
	DrawCalls      int
	Triangles      int
}

// GraphicsContext caches the device's fixed-function state and only forwards changes.
// It is owned by the renderer and passed to every component that touches GPU state.
type GraphicsContext struct {
	dev  Device
	caps Capabilities

	known      bool
	target     Framebuffer
	viewport   Rect
	clearColor mgl32.Vec4
	cull       CullMode
	depthTest  DepthTest
	depthMask  bool
	blendOn    bool
	blend      BlendState
	program    Program
	mesh       MeshBuffer
	textures   []Texture

	defaultTexture Texture
	stats          Stats
}

// NewGraphicsContext wraps dev and creates the 1x1 white placeholder texture used for
// samplers whose texture is missing or not yet uploaded.
func NewGraphicsContext(dev Device) (*GraphicsContext, error) {
	caps := dev.Capabilities()
	if caps.MaxTextureSlots <= 0 {
		caps.MaxTextureSlots = 16
	}
	gc := &GraphicsContext{
		dev:      dev,
		caps:     caps,
		textures: make([]Texture, caps.MaxTextureSlots),
	}

	tex, err := dev.CreateTexture(TextureDesc{Width: 1, Height: 1, Format: FormatRGBA8})
	if err != nil {
		return nil, fmt.Errorf("create default texture: %w", err)
	}
	if err := dev.UploadTexture(tex, 1, 1, []uint8{255, 255, 255, 255}); err != nil {
		return nil, fmt.Errorf("upload default texture: %w", err)
	}
	gc.defaultTexture = tex
	return gc, nil
}

// Device returns the wrapped device.
func (gc *GraphicsContext) Device() Device { return gc.dev }

// Capabilities returns the device limits.
func (gc *GraphicsContext) Capabilities() Capabilities { return gc.caps }

// DefaultTexture returns the placeholder texture.
func (gc *GraphicsContext) DefaultTexture() Texture { return gc.defaultTexture }

// Stats returns the counters since the last ResetStats.
func (gc *GraphicsContext) Stats() Stats { return gc.stats }

// ResetStats zeroes the counters.
func (gc *GraphicsContext) ResetStats() { gc.stats = Stats{} }

// Invalidate forgets all cached state, forcing the next change of each kind through.
// Call it after foreign code (UI overlays) touched the device directly.
func (gc *GraphicsContext) Invalidate() {
	gc.known = false
	gc.program = nil
	gc.mesh = nil
	for i := range gc.textures {
		gc.textures[i] = nil
	}
}

func (gc *GraphicsContext) sync() {
	if gc.known {
		return
	}
	gc.known = true
	gc.dev.BindFramebuffer(gc.target)
	gc.dev.SetViewport(gc.viewport)
	gc.dev.SetClearColor(gc.clearColor)
	gc.dev.SetCullMode(gc.cull)
	gc.dev.SetDepthTest(gc.depthTest)
	gc.dev.SetDepthMask(gc.depthMask)
	if gc.blendOn {
		b := gc.blend
		gc.dev.SetBlendState(&b)
	} else {
		gc.dev.SetBlendState(nil)
	}
}

// SetRenderTarget binds fb (nil for the output surface) and sets the viewport to cover it.
func (gc *GraphicsContext) SetRenderTarget(fb Framebuffer) {
	gc.sync()
	if fb != gc.target {
		gc.target = fb
		gc.dev.BindFramebuffer(fb)
		gc.stats.StateChanges++
	}
	gc.SetViewport(gc.targetRect())
}

// RenderTarget returns the bound framebuffer, nil for the output surface.
func (gc *GraphicsContext) RenderTarget() Framebuffer { return gc.target }

func (gc *GraphicsContext) targetRect() Rect {
	if gc.target == nil {
		w, h := gc.dev.DefaultFramebufferSize()
		return Rect{W: w, H: h}
	}
	return Rect{W: gc.target.Width(), H: gc.target.Height()}
}

// SetViewport sets the viewport rectangle.
func (gc *GraphicsContext) SetViewport(r Rect) {
	gc.sync()
	if r == gc.viewport {
		return
	}
	gc.viewport = r
	gc.dev.SetViewport(r)
	gc.stats.StateChanges++
}

// Viewport returns the current viewport.
func (gc *GraphicsContext) Viewport() Rect { return gc.viewport }

// SetClearColor sets the color used by Clear.
func (gc *GraphicsContext) SetClearColor(c mgl32.Vec4) {
	gc.sync()
	if c == gc.clearColor {
		return
	}
	gc.clearColor = c
	gc.dev.SetClearColor(c)
	gc.stats.StateChanges++
}

// Clear clears the selected buffers of the render target. Depth writes are enabled
// first when depth is cleared, since a disabled depth mask blocks clears.
func (gc *GraphicsContext) Clear(mask ClearMask) {
	gc.sync()
	if mask&ClearDepth != 0 {
		gc.SetDepthMask(true)
	}
	gc.dev.Clear(mask)
}

// SetCullMode sets face culling.
func (gc *GraphicsContext) SetCullMode(mode CullMode) {
	gc.sync()
	if mode == gc.cull {
		return
	}
	gc.cull = mode
	gc.dev.SetCullMode(mode)
	gc.stats.StateChanges++
}

// SetDepthTest sets the depth comparison.
func (gc *GraphicsContext) SetDepthTest(test DepthTest) {
	gc.sync()
	if test == gc.depthTest {
		return
	}
	gc.depthTest = test
	gc.dev.SetDepthTest(test)
	gc.stats.StateChanges++
}

// SetDepthMask enables or disables depth writes.
func (gc *GraphicsContext) SetDepthMask(write bool) {
	gc.sync()
	if write == gc.depthMask {
		return
	}
	gc.depthMask = write
	gc.dev.SetDepthMask(write)
	gc.stats.StateChanges++
}

// SetBlendState enables blending with b, or disables it when b is nil.
func (gc *GraphicsContext) SetBlendState(b *BlendState) {
	gc.sync()
	if b == nil {
		if !gc.blendOn {
			return
		}
		gc.blendOn = false
		gc.dev.SetBlendState(nil)
		gc.stats.StateChanges++
		return
	}
	if gc.blendOn && *b == gc.blend {
		return
	}
	gc.blendOn = true
	gc.blend = *b
	bb := *b
	gc.dev.SetBlendState(&bb)
	gc.stats.StateChanges++
}

// UseProgram makes p current.
func (gc *GraphicsContext) UseProgram(p Program) {
	gc.sync()
	if p == gc.program {
		return
	}
	gc.program = p
	gc.dev.UseProgram(p)
	gc.stats.ProgramChanges++
}

// Program returns the current program.
func (gc *GraphicsContext) Program() Program { return gc.program }

// BindTexture binds t to slot, substituting the placeholder when t is nil or not ready.
func (gc *GraphicsContext) BindTexture(slot int, t Texture) {
	gc.sync()
	if slot < 0 || slot >= len(gc.textures) {
		return
	}
	if t == nil || !t.IsReady() {
		t = gc.defaultTexture
	}
	if gc.textures[slot] == t {
		return
	}
	gc.textures[slot] = t
	gc.dev.BindTexture(slot, t)
	gc.stats.TextureBinds++
}

// UnbindTexture drops t from every slot it is bound to. Call before releasing t or
// before rendering into it.
func (gc *GraphicsContext) UnbindTexture(t Texture) {
	for i, bound := range gc.textures {
		if bound == t {
			gc.textures[i] = nil
		}
	}
}

// BindMesh binds m for the next DrawElements.
func (gc *GraphicsContext) BindMesh(m MeshBuffer) {
	if m == gc.mesh {
		return
	}
	gc.mesh = m
	gc.dev.BindMesh(m)
}

// DrawElements draws the bound mesh.
func (gc *GraphicsContext) DrawElements() {
	if gc.mesh == nil || gc.program == nil {
		return
	}
	gc.sync()
	gc.dev.DrawElements()
	gc.stats.DrawCalls++
	gc.stats.Triangles += gc.mesh.IndexCount() / 3
}

func (gc *GraphicsContext) location(name string) int32 {
	if gc.program == nil {
		return -1
	}
	return gc.program.UniformLocation(name)
}

// SetInt uploads an int uniform of the current program by name.
func (gc *GraphicsContext) SetInt(name string, v int32) {
	if loc := gc.location(name); loc >= 0 {
		gc.dev.SetUniformInt(loc, v)
	}
}

// SetFloat uploads a float uniform by name.
func (gc *GraphicsContext) SetFloat(name string, v float32) {
	if loc := gc.location(name); loc >= 0 {
		gc.dev.SetUniformFloat(loc, v)
	}
}

// SetVec2 uploads a vec2 uniform by name.
func (gc *GraphicsContext) SetVec2(name string, v mgl32.Vec2) {
	if loc := gc.location(name); loc >= 0 {
		gc.dev.SetUniformVec2(loc, v)
	}
}

// SetVec3 uploads a vec3 uniform by name.
func (gc *GraphicsContext) SetVec3(name string, v mgl32.Vec3) {
	if loc := gc.location(name); loc >= 0 {
		gc.dev.SetUniformVec3(loc, v)
	}
}

// SetVec4 uploads a vec4 uniform by name.
func (gc *GraphicsContext) SetVec4(name string, v mgl32.Vec4) {
	if loc := gc.location(name); loc >= 0 {
		gc.dev.SetUniformVec4(loc, v)
	}
}

// SetMat4 uploads a mat4 uniform by name.
func (gc *GraphicsContext) SetMat4(name string, m mgl32.Mat4) {
	if loc := gc.location(name); loc >= 0 {
		gc.dev.SetUniformMat4(loc, m)
	}
}

// SetMat4Array uploads a mat4 array uniform by name.
func (gc *GraphicsContext) SetMat4Array(name string, m []mgl32.Mat4) {
	if len(m) == 0 {
		return
	}
	if loc := gc.location(name); loc >= 0 {
		gc.dev.SetUniformMat4Array(loc, m)
	}
}

// SetFloatArray uploads a float array uniform by name.
func (gc *GraphicsContext) SetFloatArray(name string, v []float32) {
	if len(v) == 0 {
		return
	}
	if loc := gc.location(name); loc >= 0 {
		gc.dev.SetUniformFloatArray(loc, v)
	}
}

// SetTexture binds t to slot and points the named sampler at it. Missing samplers are
// ignored so optional inputs can be set unconditionally.
func (gc *GraphicsContext) SetTexture(name string, slot int, t Texture) {
	loc := gc.location(name)
	if loc < 0 {
		return
	}
	gc.BindTexture(slot, t)
	gc.dev.SetUniformInt(loc, int32(slot))
}

// Release frees the placeholder texture.
func (gc *GraphicsContext) Release() {
	if gc.defaultTexture != nil {
		gc.defaultTexture.Release()
		gc.defaultTexture = nil
	}
}

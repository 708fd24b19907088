// Package material holds materials, the passes compiled from them and the uniform
// setters that feed those passes.
package material

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/helix/internal/engine/gpu"
)

// State is the compile state of a material.
type State int

const (
	// Uninitialized materials have no passes; every pass lookup misses.
	Uninitialized State = iota
	// Ready materials have passes built for their current generation.
	Ready
)

var creationCounter atomic.Int64

// Material describes the surface of a mesh. Changing anything that alters the
// program defines bumps the generation, which drops every pass until the next compile.
type Material struct {
	Name string

	color          mgl32.Vec4
	emissive       mgl32.Vec3
	roughness      float32
	metallicness   float32
	reflectance    float32
	alphaThreshold float32
	useAlphaTest   bool
	colorMap       gpu.Texture
	specularMap    gpu.Texture

	lightingModel    LightingModel
	blend            *gpu.BlendState
	cull             gpu.CullMode
	writeDepth       bool
	renderOrder      int
	renderOrderHint  int64
	needsBackbuffer  bool
	needsNormalDepth bool
	skinning         bool
	morphing         bool

	generation uint64
	state      State
	built      builtKey
	passes     [NumPassTypes]*Pass
}

// builtKey identifies what the current passes were compiled for.
type builtKey struct {
	compiler   *Compiler
	generation uint64
	settings   uint64
}

// New creates an opaque white material shaded with model.
func New(name string, model LightingModel) *Material {
	return &Material{
		Name:            name,
		color:           mgl32.Vec4{1, 1, 1, 1},
		roughness:       0.5,
		reflectance:     0.027,
		lightingModel:   model,
		cull:            gpu.CullBack,
		writeDepth:      true,
		renderOrderHint: creationCounter.Add(1),
		generation:      1,
	}
}

func (m *Material) invalidate() {
	m.generation++
	m.dropPasses()
}

func (m *Material) dropPasses() {
	m.state = Uninitialized
	for i := range m.passes {
		m.passes[i] = nil
	}
}

// Generation changes whenever the passes have to be rebuilt.
func (m *Material) Generation() uint64 { return m.generation }

// State returns the compile state.
func (m *Material) State() State { return m.state }

// Pass returns the pass of type t, or nil when the material does not take part in that
// stage or is not compiled.
func (m *Material) Pass(t PassType) *Pass {
	if m.state != Ready || t < 0 || t >= NumPassTypes {
		return nil
	}
	return m.passes[t]
}

// HasPass reports whether Pass(t) is non-nil.
func (m *Material) HasPass(t PassType) bool { return m.Pass(t) != nil }

// Color returns the base colour.
func (m *Material) Color() mgl32.Vec4 { return m.color }

// SetColor sets the base colour, in gamma space.
func (m *Material) SetColor(c mgl32.Vec4) { m.color = c }

// Emissive returns the emitted colour.
func (m *Material) Emissive() mgl32.Vec3 { return m.emissive }

// SetEmissive sets the emitted colour.
func (m *Material) SetEmissive(c mgl32.Vec3) { m.emissive = c }

// Roughness returns the surface roughness.
func (m *Material) Roughness() float32 { return m.roughness }

// SetRoughness sets the surface roughness in [0,1].
func (m *Material) SetRoughness(v float32) { m.roughness = v }

// Metallicness returns how metallic the surface is.
func (m *Material) Metallicness() float32 { return m.metallicness }

// SetMetallicness sets how metallic the surface is in [0,1].
func (m *Material) SetMetallicness(v float32) { m.metallicness = v }

// NormalSpecularReflectance returns the reflectance at normal incidence.
func (m *Material) NormalSpecularReflectance() float32 { return m.reflectance }

// SetNormalSpecularReflectance sets the reflectance at normal incidence.
func (m *Material) SetNormalSpecularReflectance(v float32) { m.reflectance = v }

// AlphaThreshold returns the alpha test threshold and whether the test is enabled.
func (m *Material) AlphaThreshold() (float32, bool) { return m.alphaThreshold, m.useAlphaTest }

// SetAlphaThreshold enables the alpha test. A negative value disables it.
func (m *Material) SetAlphaThreshold(v float32) {
	use := v >= 0
	m.alphaThreshold = v
	if use != m.useAlphaTest {
		m.useAlphaTest = use
		m.invalidate()
	}
}

// ColorMap returns the base colour texture.
func (m *Material) ColorMap() gpu.Texture { return m.colorMap }

// SetColorMap sets the base colour texture; nil removes it.
func (m *Material) SetColorMap(t gpu.Texture) {
	changed := (t == nil) != (m.colorMap == nil)
	m.colorMap = t
	if changed {
		m.invalidate()
	}
}

// SpecularMap returns the roughness/reflectance/metallic texture.
func (m *Material) SpecularMap() gpu.Texture { return m.specularMap }

// SetSpecularMap sets the roughness/reflectance/metallic texture; nil removes it.
func (m *Material) SetSpecularMap(t gpu.Texture) {
	changed := (t == nil) != (m.specularMap == nil)
	m.specularMap = t
	if changed {
		m.invalidate()
	}
}

// LightingModel returns the shading model.
func (m *Material) LightingModel() LightingModel { return m.lightingModel }

// SetLightingModel changes the shading model.
func (m *Material) SetLightingModel(model LightingModel) {
	if model != m.lightingModel {
		m.lightingModel = model
		m.invalidate()
	}
}

// BlendState returns the blend state, nil for opaque materials.
func (m *Material) BlendState() *gpu.BlendState { return m.blend }

// SetBlendState makes the material transparent; nil makes it opaque.
func (m *Material) SetBlendState(b *gpu.BlendState) {
	if b == nil && m.blend == nil {
		return
	}
	if b != nil && m.blend != nil && *b == *m.blend {
		return
	}
	if b != nil {
		bb := *b
		b = &bb
	}
	m.blend = b
	m.invalidate()
}

// CullMode returns the face culling mode.
func (m *Material) CullMode() gpu.CullMode { return m.cull }

// SetCullMode sets the face culling mode.
func (m *Material) SetCullMode(c gpu.CullMode) { m.cull = c }

// WriteDepth reports whether the base pass writes depth.
func (m *Material) WriteDepth() bool { return m.writeDepth }

// SetWriteDepth enables depth writes in the base pass. Materials without depth writes
// stay out of the G-buffer.
func (m *Material) SetWriteDepth(v bool) {
	if v != m.writeDepth {
		m.writeDepth = v
		m.invalidate()
	}
}

// RenderOrder returns the primary sort key.
func (m *Material) RenderOrder() int { return m.renderOrder }

// SetRenderOrder sets the primary sort key. Lower values draw first.
func (m *Material) SetRenderOrder(v int) { m.renderOrder = v }

// RenderOrderHint is a creation index used to batch draws by material.
func (m *Material) RenderOrderHint() int64 { return m.renderOrderHint }

// NeedsBackbuffer reports whether the material samples the colour rendered so far.
func (m *Material) NeedsBackbuffer() bool { return m.needsBackbuffer }

// SetNeedsBackbuffer makes the backbuffer available to the material. Such materials
// draw with the transparent list.
func (m *Material) SetNeedsBackbuffer(v bool) {
	if v != m.needsBackbuffer {
		m.needsBackbuffer = v
		m.invalidate()
	}
}

// NeedsNormalDepth reports whether the material samples the G-buffer normal/depth plane.
func (m *Material) NeedsNormalDepth() bool { return m.needsNormalDepth }

// SetNeedsNormalDepth requests the normal/depth plane even when nothing is deferred.
func (m *Material) SetNeedsNormalDepth(v bool) { m.needsNormalDepth = v }

// Skinning reports whether vertices are skinned.
func (m *Material) Skinning() bool { return m.skinning }

// SetSkinning enables vertex skinning.
func (m *Material) SetSkinning(v bool) {
	if v != m.skinning {
		m.skinning = v
		m.invalidate()
	}
}

// Morphing reports whether vertices are morphed.
func (m *Material) Morphing() bool { return m.morphing }

// SetMorphing enables morph targets.
func (m *Material) SetMorphing(v bool) {
	if v != m.morphing {
		m.morphing = v
		m.invalidate()
	}
}

// IsTransparent reports whether the material draws with the transparent list.
func (m *Material) IsTransparent() bool {
	return m.blend != nil || m.needsBackbuffer
}

// IsDeferred reports whether lighting for the material is accumulated from the
// G-buffer instead of forward light passes.
func (m *Material) IsDeferred(defaultModel LightingModel) bool {
	return m.lightingModel != Unlit && m.lightingModel == defaultModel && m.writesGBuffer()
}

// writesGBuffer reports whether the material has G-buffer passes.
func (m *Material) writesGBuffer() bool {
	return !m.IsTransparent() && m.writeDepth
}

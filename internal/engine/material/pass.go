package material

import (
	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/shader"
	hmath "github.com/Faultbox/helix/pkg/math"
)

// Pass is one compiled program of a material plus the render state it draws with.
type Pass struct {
	typ      PassType
	material *Material
	program  gpu.Program
	settings Settings

	viewSetters     []viewSetter
	instanceSetters []instanceSetter
	textures        []textureBinding
}

func newPass(typ PassType, m *Material, program gpu.Program, settings Settings, samplers []string) *Pass {
	p := &Pass{typ: typ, material: m, program: program, settings: settings}
	for _, s := range viewSetters {
		if program.UniformLocation(s.name) >= 0 {
			p.viewSetters = append(p.viewSetters, s)
		}
	}
	for _, s := range instanceSetters {
		if program.UniformLocation(s.name) >= 0 {
			p.instanceSetters = append(p.instanceSetters, s)
		}
	}
	for _, name := range samplers {
		for _, b := range textureBindings {
			if b.name == name && program.UniformLocation(name) >= 0 {
				p.textures = append(p.textures, b)
			}
		}
	}
	return p
}

// Type returns the pass type.
func (p *Pass) Type() PassType { return p.typ }

// Material returns the owning material.
func (p *Pass) Material() *Material { return p.material }

// Program returns the compiled program.
func (p *Pass) Program() gpu.Program { return p.program }

// NumTextures returns how many texture slots the pass itself occupies.
func (p *Pass) NumTextures() int { return len(p.textures) }

// UpdatePassRenderState makes the pass current: program, fixed-function state, camera
// and material uniforms, textures, and the light's uniforms when light is not nil.
// It is called once per run of draws sharing the pass.
func (p *Pass) UpdatePassRenderState(gc *gpu.GraphicsContext, view View, frame FrameResources, light Light) {
	gc.UseProgram(p.program)
	p.applyRenderState(gc)
	for _, s := range p.viewSetters {
		s.set(gc, view)
	}
	p.setMaterialUniforms(gc)
	if frame != nil {
		gc.SetVec3(shader.UniformAmbientColor, frame.AmbientColor())
	}
	slot := 0
	for _, t := range p.textures {
		gc.SetTexture(t.name, slot, t.source(p.material, frame))
		slot++
	}
	if light != nil {
		light.SetUniforms(gc, view, slot)
	}
}

// UpdateInstanceRenderState uploads the per-draw uniforms of inst.
func (p *Pass) UpdateInstanceRenderState(gc *gpu.GraphicsContext, view View, inst Instance) {
	for _, s := range p.instanceSetters {
		s.set(gc, view, inst)
	}
}

func (p *Pass) applyRenderState(gc *gpu.GraphicsContext) {
	m := p.material
	gc.SetCullMode(m.cull)
	gc.SetDepthTest(gpu.DepthLessEqual)
	switch {
	case p.typ == BasePass:
		gc.SetDepthMask(m.writeDepth)
		gc.SetBlendState(m.blend)
	case p.typ.IsForwardLight():
		gc.SetDepthMask(false)
		if m.blend == nil {
			gc.SetBlendState(&gpu.BlendAdditive)
		} else {
			gc.SetBlendState(&gpu.BlendAdditiveAlpha)
		}
	case p.typ.IsGBuffer():
		gc.SetDepthMask(m.writeDepth)
		gc.SetBlendState(nil)
	default:
		gc.SetDepthMask(true)
		gc.SetBlendState(nil)
	}
}

func (p *Pass) setMaterialUniforms(gc *gpu.GraphicsContext) {
	m := p.material
	color := m.color
	if p.settings.UseGammaCorrection {
		color = hmath.LinearizeColor(color, p.settings.UsePreciseGamma)
	}
	gc.SetVec4(shader.UniformColor, color)
	gc.SetVec3(shader.UniformEmissiveColor, m.emissive)
	gc.SetFloat(shader.UniformRoughness, m.roughness)
	gc.SetFloat(shader.UniformMetallicness, m.metallicness)
	gc.SetFloat(shader.UniformNormalSpecularReflectance, m.reflectance)
	if m.useAlphaTest {
		gc.SetFloat(shader.UniformAlphaThreshold, m.alphaThreshold)
	}
}

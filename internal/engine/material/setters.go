package material

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/shader"
)

// View is the camera a pass is rendered from.
type View interface {
	ViewMatrix() mgl32.Mat4
	ProjectionMatrix() mgl32.Mat4
	ViewProjectionMatrix() mgl32.Mat4
	InverseProjectionMatrix() mgl32.Mat4
	InverseViewProjectionMatrix() mgl32.Mat4
	WorldMatrix() mgl32.Mat4
	Position() mgl32.Vec3
	NearDistance() float32
	FarDistance() float32
}

// FrameResources are the per-frame textures passes may read. Implementations return the
// current texture on every call since the renderer swaps buffers within a frame.
type FrameResources interface {
	GBufferAlbedo() gpu.Texture
	GBufferNormalDepth() gpu.Texture
	GBufferSpecular() gpu.Texture
	Backbuffer() gpu.Texture
	LightAccumulation() gpu.Texture
	AmbientOcclusion() gpu.Texture
	AmbientColor() mgl32.Vec3
}

// Instance is the per-draw data of one render item.
type Instance interface {
	WorldMatrix() mgl32.Mat4
	SkinningMatrices() []mgl32.Mat4
	MorphWeights() []float32
}

// Light uploads the uniforms of the light a pass is drawn for. Its textures go to
// textureSlot and up.
type Light interface {
	SetUniforms(gc *gpu.GraphicsContext, view View, textureSlot int)
}

type viewSetter struct {
	name string
	set  func(gc *gpu.GraphicsContext, v View)
}

var viewSetters = []viewSetter{
	{shader.UniformViewMatrix, func(gc *gpu.GraphicsContext, v View) {
		gc.SetMat4(shader.UniformViewMatrix, v.ViewMatrix())
	}},
	{shader.UniformProjectionMatrix, func(gc *gpu.GraphicsContext, v View) {
		gc.SetMat4(shader.UniformProjectionMatrix, v.ProjectionMatrix())
	}},
	{shader.UniformViewProjectionMatrix, func(gc *gpu.GraphicsContext, v View) {
		gc.SetMat4(shader.UniformViewProjectionMatrix, v.ViewProjectionMatrix())
	}},
	{shader.UniformInverseProjectionMatrix, func(gc *gpu.GraphicsContext, v View) {
		gc.SetMat4(shader.UniformInverseProjectionMatrix, v.InverseProjectionMatrix())
	}},
	{shader.UniformInverseViewProjectionMatrix, func(gc *gpu.GraphicsContext, v View) {
		gc.SetMat4(shader.UniformInverseViewProjectionMatrix, v.InverseViewProjectionMatrix())
	}},
	{shader.UniformCameraWorldMatrix, func(gc *gpu.GraphicsContext, v View) {
		gc.SetMat4(shader.UniformCameraWorldMatrix, v.WorldMatrix())
	}},
	{shader.UniformCameraWorldPosition, func(gc *gpu.GraphicsContext, v View) {
		gc.SetVec3(shader.UniformCameraWorldPosition, v.Position())
	}},
	{shader.UniformCameraNearDistance, func(gc *gpu.GraphicsContext, v View) {
		gc.SetFloat(shader.UniformCameraNearDistance, v.NearDistance())
	}},
	{shader.UniformCameraFarDistance, func(gc *gpu.GraphicsContext, v View) {
		gc.SetFloat(shader.UniformCameraFarDistance, v.FarDistance())
	}},
	{shader.UniformCameraFrustumRange, func(gc *gpu.GraphicsContext, v View) {
		gc.SetFloat(shader.UniformCameraFrustumRange, v.FarDistance()-v.NearDistance())
	}},
	{shader.UniformRenderTargetResolution, func(gc *gpu.GraphicsContext, v View) {
		vp := gc.Viewport()
		gc.SetVec2(shader.UniformRenderTargetResolution, mgl32.Vec2{float32(vp.W), float32(vp.H)})
	}},
	{shader.UniformRcpRenderTargetResolution, func(gc *gpu.GraphicsContext, v View) {
		vp := gc.Viewport()
		if vp.W > 0 && vp.H > 0 {
			gc.SetVec2(shader.UniformRcpRenderTargetResolution, mgl32.Vec2{1 / float32(vp.W), 1 / float32(vp.H)})
		}
	}},
}

// SetViewUniforms uploads every camera uniform the current program uses.
func SetViewUniforms(gc *gpu.GraphicsContext, v View) {
	for _, s := range viewSetters {
		s.set(gc, v)
	}
}

type instanceSetter struct {
	name string
	set  func(gc *gpu.GraphicsContext, v View, inst Instance)
}

var instanceSetters = []instanceSetter{
	{shader.UniformWorldMatrix, func(gc *gpu.GraphicsContext, _ View, inst Instance) {
		gc.SetMat4(shader.UniformWorldMatrix, inst.WorldMatrix())
	}},
	{shader.UniformWorldViewMatrix, func(gc *gpu.GraphicsContext, v View, inst Instance) {
		gc.SetMat4(shader.UniformWorldViewMatrix, v.ViewMatrix().Mul4(inst.WorldMatrix()))
	}},
	{shader.UniformWorldViewProjection, func(gc *gpu.GraphicsContext, v View, inst Instance) {
		gc.SetMat4(shader.UniformWorldViewProjection, v.ViewProjectionMatrix().Mul4(inst.WorldMatrix()))
	}},
	{shader.UniformNormalWorldMatrix, func(gc *gpu.GraphicsContext, _ View, inst Instance) {
		gc.SetMat4(shader.UniformNormalWorldMatrix, NormalMatrix(inst.WorldMatrix()))
	}},
	{shader.UniformNormalWorldViewMatrix, func(gc *gpu.GraphicsContext, v View, inst Instance) {
		gc.SetMat4(shader.UniformNormalWorldViewMatrix, NormalMatrix(v.ViewMatrix().Mul4(inst.WorldMatrix())))
	}},
	{shader.UniformSkinningMatrices, func(gc *gpu.GraphicsContext, _ View, inst Instance) {
		gc.SetMat4Array(shader.UniformSkinningMatrices, inst.SkinningMatrices())
	}},
	{shader.UniformMorphWeights, func(gc *gpu.GraphicsContext, _ View, inst Instance) {
		var w [shader.MaxMorphTargets]float32
		copy(w[:], inst.MorphWeights())
		gc.SetFloatArray(shader.UniformMorphWeights, w[:])
	}},
}

// NormalMatrix returns the inverse transpose of the rotation and scale part of m.
func NormalMatrix(m mgl32.Mat4) mgl32.Mat4 {
	m3 := m.Mat3()
	if m3.Det() == 0 {
		return m3.Mat4()
	}
	return m3.Inv().Transpose().Mat4()
}

type textureBinding struct {
	name   string
	source func(m *Material, f FrameResources) gpu.Texture
}

func frameTexture(get func(f FrameResources) gpu.Texture) func(*Material, FrameResources) gpu.Texture {
	return func(_ *Material, f FrameResources) gpu.Texture {
		if f == nil {
			return nil
		}
		return get(f)
	}
}

var textureBindings = []textureBinding{
	{shader.SamplerColorMap, func(m *Material, _ FrameResources) gpu.Texture { return m.colorMap }},
	{shader.SamplerSpecularMap, func(m *Material, _ FrameResources) gpu.Texture { return m.specularMap }},
	{shader.SamplerLightAccumulation, frameTexture(FrameResources.LightAccumulation)},
	{shader.SamplerAmbientOcclusion, frameTexture(FrameResources.AmbientOcclusion)},
	{shader.SamplerBackbuffer, frameTexture(FrameResources.Backbuffer)},
	{shader.SamplerGBufferNormalDepth, frameTexture(FrameResources.GBufferNormalDepth)},
}

package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/material"
	"github.com/Faultbox/helix/internal/engine/shader"
	hmath "github.com/Faultbox/helix/pkg/math"
)

// LightKind is the closed set of light types.
type LightKind int

const (
	AmbientLight LightKind = iota
	DirectionalLight
	PointLight
	LightProbe
)

func (k LightKind) String() string {
	switch k {
	case AmbientLight:
		return "ambient"
	case DirectionalLight:
		return "directional"
	case PointLight:
		return "point"
	case LightProbe:
		return "probe"
	}
	return "unknown"
}

// ShadowSettings are the per-light cascade options.
type ShadowSettings struct {
	MapSize   int
	DepthBias float32
	// SplitRatios overrides the default cascade split ratios when not empty.
	SplitRatios []float32
}

// ShadowData is what the shadow renderer produced for a light this frame.
type ShadowData struct {
	Atlas          gpu.Texture
	Matrices       []mgl32.Mat4
	SplitDistances []float32 // negative view-space z
	PixelSize      mgl32.Vec2
	DepthBias      float32
	Softness       float32
}

// Light is a tagged union over the light kinds. Fields of other kinds are ignored.
type Light struct {
	Kind      LightKind
	Color     mgl32.Vec3 // linear
	Intensity float32

	// directional
	CastShadows bool
	Shadow      ShadowSettings
	// ShadowData is filled by the shadow renderer and nil when no map was rendered.
	ShadowData *ShadowData

	// point
	Radius float32

	// probe
	SkyColor    mgl32.Vec3
	GroundColor mgl32.Vec3

	node *Node
}

// NewAmbientLight returns an ambient light.
func NewAmbientLight(color mgl32.Vec3) *Light {
	return &Light{Kind: AmbientLight, Color: color, Intensity: 1}
}

// NewDirectionalLight returns a directional light shining along the node's -Z axis.
func NewDirectionalLight(color mgl32.Vec3, castShadows bool) *Light {
	return &Light{
		Kind:        DirectionalLight,
		Color:       color,
		Intensity:   1,
		CastShadows: castShadows,
		Shadow:      ShadowSettings{MapSize: 1024, DepthBias: 0.002},
	}
}

// NewPointLight returns a point light reaching radius.
func NewPointLight(color mgl32.Vec3, radius float32) *Light {
	return &Light{Kind: PointLight, Color: color, Intensity: 1, Radius: radius}
}

// NewLightProbe returns a hemisphere probe lighting from the sky above and ground below.
func NewLightProbe(sky, ground mgl32.Vec3) *Light {
	return &Light{Kind: LightProbe, SkyColor: sky, GroundColor: ground, Intensity: 1}
}

// Node returns the node the light is attached to.
func (l *Light) Node() *Node { return l.node }

// WorldMatrix returns the light's world transform.
func (l *Light) WorldMatrix() mgl32.Mat4 {
	if l.node == nil {
		return mgl32.Ident4()
	}
	return l.node.WorldMatrix()
}

// Direction returns the world direction a directional light shines in.
func (l *Light) Direction() mgl32.Vec3 {
	return l.WorldMatrix().Col(2).Vec3().Mul(-1).Normalize()
}

// Position returns the world position.
func (l *Light) Position() mgl32.Vec3 {
	return l.WorldMatrix().Col(3).Vec3()
}

// Radiance returns colour times intensity.
func (l *Light) Radiance() mgl32.Vec3 {
	return l.Color.Mul(l.Intensity)
}

// BoundingSphere returns the volume a point light reaches.
func (l *Light) BoundingSphere() hmath.Sphere {
	return hmath.Sphere{Center: l.Position(), Radius: l.Radius}
}

func (l *Light) worldBounds() hmath.AABB {
	if l.Kind == PointLight {
		return l.BoundingSphere().Bounds()
	}
	return hmath.InfiniteAABB()
}

// CastsShadows reports whether the light renders a shadow map.
func (l *Light) CastsShadows() bool {
	return l.Kind == DirectionalLight && l.CastShadows
}

// SetUniforms uploads the light for a lighting pass. Directional shadow data goes to
// textureSlot.
func (l *Light) SetUniforms(gc *gpu.GraphicsContext, view material.View, textureSlot int) {
	viewMatrix := view.ViewMatrix()
	switch l.Kind {
	case DirectionalLight:
		dir := l.Direction()
		gc.SetVec3(shader.UniformLightColor, l.Radiance())
		gc.SetVec3(shader.UniformLightDirection, dir)
		gc.SetVec3(shader.UniformLightViewDirection, viewMatrix.Mul4x1(dir.Vec4(0)).Vec3().Normalize())
		if sd := l.ShadowData; sd != nil && l.CastShadows {
			gc.SetTexture(shader.SamplerShadowMap, textureSlot, sd.Atlas)
			gc.SetMat4Array(shader.UniformShadowMapMatrices, sd.Matrices)
			gc.SetFloatArray(shader.UniformSplitDistances, sd.SplitDistances)
			gc.SetFloat(shader.UniformDepthBias, sd.DepthBias)
			gc.SetFloat(shader.UniformShadowMapSoftness, sd.Softness)
			gc.SetVec2(shader.UniformShadowMapPixelSize, sd.PixelSize)
		}
	case PointLight:
		pos := l.Position()
		gc.SetVec3(shader.UniformLightColor, l.Radiance())
		gc.SetVec3(shader.UniformLightPosition, pos)
		gc.SetVec3(shader.UniformLightViewPosition, viewMatrix.Mul4x1(pos.Vec4(1)).Vec3())
		gc.SetFloat(shader.UniformLightRadius, l.Radius)
	case LightProbe:
		gc.SetVec3(shader.UniformProbeSkyColor, l.SkyColor.Mul(l.Intensity))
		gc.SetVec3(shader.UniformProbeGroundColor, l.GroundColor.Mul(l.Intensity))
		gc.SetVec3(shader.UniformProbeUpDirection, viewMatrix.Mul4x1(mgl32.Vec4{0, 1, 0, 0}).Vec3())
	}
}

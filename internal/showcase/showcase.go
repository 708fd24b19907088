// Package showcase builds the scene shared by the helix tools: a lit ground, a few
// primitives, optional imported models, a shadow-casting sun and the configured
// screen-space effects.
package showcase

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/helix/internal/assets"
	"github.com/Faultbox/helix/internal/config"
	"github.com/Faultbox/helix/internal/engine/effect"
	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/lighting"
	"github.com/Faultbox/helix/internal/engine/material"
	"github.com/Faultbox/helix/internal/engine/mesh"
	"github.com/Faultbox/helix/internal/engine/scene"
	"github.com/Faultbox/helix/internal/logger"
	hmath "github.com/Faultbox/helix/pkg/math"
)

// Showcase is a scene plus handles to the parts the tools adjust at run time.
type Showcase struct {
	Scene *scene.Scene
	Sun   *scene.Light
	// SunAzimuth and SunElevation are in degrees; see SetSun.
	SunAzimuth, SunElevation float32

	AO          *effect.AmbientOcclusion
	ToneMapping *effect.ToneMapping
	Fog         *effect.Fog

	models    []*assets.Model
	primitive []*mesh.Mesh
	sunNode   *scene.Node
	model     material.LightingModel
	log       *zap.Logger
}

// New builds the scene and applies cfg. Primitives are drawn with the configured
// default lighting model.
func New(cfg *config.Config) (*Showcase, error) {
	model, err := material.ParseLightingModel(cfg.Render.DefaultLightingModel)
	if err != nil {
		return nil, err
	}
	s := &Showcase{
		Scene:       scene.New(),
		ToneMapping: effect.NewToneMapping(),
		Fog:         effect.NewFog(),
		model:       model,
		log:         logger.Named("showcase"),
	}
	s.AO = effect.NewAmbientOcclusion(cfg.AmbientOcclusion.NumSamples)
	s.Fog.Density = 0.01
	s.Scene.Effects = []effect.Effect{s.AO, s.Fog, s.ToneMapping}

	s.addGround()
	s.addPrimitives()
	s.addLights()
	s.addSky()
	s.ApplyConfig(cfg)
	return s, nil
}

func (s *Showcase) material(name string, color mgl32.Vec4, roughness float32) *material.Material {
	m := material.New(name, s.model)
	m.SetColor(color)
	m.SetRoughness(roughness)
	return m
}

func (s *Showcase) addModelNode(name string, me *mesh.Mesh, mat *material.Material, pos mgl32.Vec3) *scene.Node {
	s.primitive = append(s.primitive, me)
	n := scene.NewModelNode(name, scene.NewModelInstance(scene.NewMeshInstance(me, mat)))
	n.SetPosition(pos)
	s.Scene.Add(n)
	return n
}

func (s *Showcase) addGround() {
	ground := s.addModelNode("ground", mesh.NewPlane(40, 40), s.material("ground", mgl32.Vec4{0.5, 0.5, 0.5, 1}, 0.9), mgl32.Vec3{})
	// the ground receives shadows but never occludes anything above it
	ground.Model().CastShadows = false
}

func (s *Showcase) addPrimitives() {
	s.addModelNode("box", mesh.NewBox(1.5, 1.5, 1.5), s.material("box", mgl32.Vec4{0.8, 0.25, 0.2, 1}, 0.5), mgl32.Vec3{-2.5, 0.75, 0})
	s.addModelNode("sphere", mesh.NewSphere(1, 32, 16), s.material("sphere", mgl32.Vec4{0.2, 0.4, 0.8, 1}, 0.3), mgl32.Vec3{0, 1, -1})
	s.addModelNode("pillar", mesh.NewBox(0.5, 4, 0.5), s.material("pillar", mgl32.Vec4{0.9, 0.85, 0.7, 1}, 0.7), mgl32.Vec3{2.5, 2, 1})

	glass := material.New("glass", s.model)
	glass.SetColor(mgl32.Vec4{0.6, 0.9, 0.7, 0.4})
	glass.SetBlendState(&gpu.BlendAlpha)
	glass.SetWriteDepth(false)
	s.addModelNode("glass", mesh.NewBox(1, 2, 0.1), glass, mgl32.Vec3{0.5, 1, 2})
}

func (s *Showcase) addLights() {
	s.Scene.Add(scene.NewLightNode("probe", scene.NewLightProbe(mgl32.Vec3{0.12, 0.15, 0.2}, mgl32.Vec3{0.05, 0.04, 0.03})))

	s.Sun = scene.NewDirectionalLight(mgl32.Vec3{1, 0.95, 0.85}, true)
	s.Sun.Intensity = 2.5
	s.sunNode = scene.NewLightNode("sun", s.Sun)
	s.SetSun(35, 55)
	s.Scene.Add(s.sunNode)

	lamp := scene.NewLightNode("lamp", scene.NewPointLight(mgl32.Vec3{1, 0.6, 0.3}, 6))
	lamp.SetPosition(mgl32.Vec3{1, 2.5, 2.5})
	s.Scene.Add(lamp)
}

func (s *Showcase) addSky() {
	sky := material.New("sky", material.Unlit)
	sky.SetColor(mgl32.Vec4{0.35, 0.55, 0.85, 1})
	s.Scene.Skybox = scene.NewSkybox(sky)
}

// SetSun moves the sun to azimuth degrees around +Y and elevation degrees above the
// horizon.
func (s *Showcase) SetSun(azimuth, elevation float32) {
	s.SunAzimuth, s.SunElevation = azimuth, elevation
	s.sunNode.SetTransform(lighting.SunTransform(azimuth, elevation))
}

// ApplyConfig updates the sun's shadow settings and the ambient occlusion effect.
func (s *Showcase) ApplyConfig(cfg *config.Config) {
	s.Sun.Shadow.MapSize = cfg.Shadows.MapSize
	s.Sun.Shadow.DepthBias = cfg.Shadows.DepthBias
	s.Sun.Shadow.SplitRatios = cfg.Shadows.SplitRatios

	ao := cfg.AmbientOcclusion
	if ao.NumSamples != s.AO.NumSamples() {
		s.AO.Release()
		s.AO = effect.NewAmbientOcclusion(ao.NumSamples)
		s.Scene.Effects[0] = s.AO
	}
	s.AO.Disabled = !ao.Enabled
	s.AO.SampleRadius = ao.SampleRadius
	s.AO.Strength = ao.Strength
	s.AO.FallOffDistance = ao.FallOffDistance
	s.AO.Scale = ao.Scale
}

// AddModel imports a glTF file, scales it to fit a 3 unit cube and stands it on the
// ground in front of the primitives.
func (s *Showcase) AddModel(m *assets.Manager, path string) (*assets.Model, error) {
	opts := assets.DefaultGLTFOptions()
	opts.LightingModel = s.model
	model, err := m.LoadGLTF(path, opts)
	if err != nil {
		return nil, fmt.Errorf("add model: %w", err)
	}

	b := model.Bounds()
	if !b.IsEmpty() {
		size := b.HalfExtents().Mul(2)
		scale := 3 / max(size[0], size[1], size[2], 1e-3)
		c := b.Center()
		model.Root.SetTransform(mgl32.Translate3D(0, 0, 4).
			Mul4(mgl32.Scale3D(scale, scale, scale)).
			Mul4(mgl32.Translate3D(-c[0], -b.Min[1], -c[2])))
	}
	s.Scene.Add(model.Root)
	s.models = append(s.models, model)
	s.log.Info("model added", zap.String("path", path), zap.Int("meshes", len(model.Meshes)))
	return model, nil
}

// Bounds returns the bounds of everything in the scene.
func (s *Showcase) Bounds() hmath.AABB { return s.Scene.Root().WorldBounds() }

// Release frees the GPU buffers of the scene's meshes and effects.
func (s *Showcase) Release() {
	for _, m := range s.models {
		m.Release()
	}
	for _, m := range s.primitive {
		m.Release()
	}
	if s.Scene.Skybox != nil {
		for _, mi := range s.Scene.Skybox.Model().Meshes() {
			mi.Mesh.Release()
		}
	}
	s.AO.Release()
}

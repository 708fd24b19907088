package render

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/helix/internal/engine/camera"
	"github.com/Faultbox/helix/internal/engine/effect"
	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/gpu/gputest"
	"github.com/Faultbox/helix/internal/engine/material"
	"github.com/Faultbox/helix/internal/engine/mesh"
	"github.com/Faultbox/helix/internal/engine/scene"
	"github.com/Faultbox/helix/internal/engine/shader"
)

func newCamera() *camera.Camera {
	cam := camera.NewPerspective(mgl32.DegToRad(60), 1, 0.1, 100)
	cam.LookAt(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	return cam
}

var cube = mesh.NewBox(1, 1, 1)

func addCube(s *scene.Scene, name string, mat *material.Material, pos mgl32.Vec3) *scene.Node {
	n := scene.NewModelNode(name, scene.NewModelInstance(scene.NewMeshInstance(cube, mat)))
	n.SetPosition(pos)
	s.Add(n)
	return n
}

func TestCollectCullsAgainstFrustum(t *testing.T) {
	s := scene.New()
	mat := material.New("m", material.GGX)
	addCube(s, "front", mat, mgl32.Vec3{0, 0, -10})
	addCube(s, "behind", mat, mgl32.Vec3{0, 0, 10})
	addCube(s, "left", mat, mgl32.Vec3{-50, 0, -10})
	addCube(s, "beyond-far", mat, mgl32.Vec3{0, 0, -200})
	hidden := addCube(s, "hidden", mat, mgl32.Vec3{0, 0, -5})
	hidden.SetVisible(false)

	c := NewCollector(material.GGX)
	c.Collect(newCamera(), s)
	require.Len(t, c.Opaque(), 1)
	assert.Equal(t, "front", c.Opaque()[0].Model.Node().Name)
	assert.InDelta(t, 10, c.Opaque()[0].OrderHint, 1e-4)
	assert.True(t, c.NeedsGBuffer())
}

func TestCollectSortsOpaqueAndTransparent(t *testing.T) {
	s := scene.New()
	a := material.New("a", material.GGX)
	b := material.New("b", material.GGX)
	late := material.New("late", material.GGX)
	late.SetRenderOrder(1)
	glass := material.New("glass", material.GGX)
	glass.SetBlendState(&gpu.BlendAlpha)
	glass2 := material.New("glass2", material.GGX)
	glass2.SetBlendState(&gpu.BlendAlpha)

	// scrambled insertion order
	addCube(s, "b-near", b, mgl32.Vec3{0, 0, -3})
	addCube(s, "late", late, mgl32.Vec3{0, 0, -2})
	addCube(s, "a-far", a, mgl32.Vec3{0, 0, -9})
	addCube(s, "b-far", b, mgl32.Vec3{0, 0, -8})
	addCube(s, "a-near", a, mgl32.Vec3{0, 0, -4})
	addCube(s, "glass-near", glass, mgl32.Vec3{0, 0, -2})
	addCube(s, "glass2-far", glass2, mgl32.Vec3{0, 0, -12})
	addCube(s, "glass-mid", glass, mgl32.Vec3{0, 0, -6})

	c := NewCollector(material.GGX)
	c.Collect(newCamera(), s)

	var names []string
	for _, it := range c.Opaque() {
		names = append(names, it.Model.Node().Name)
	}
	assert.Equal(t, []string{"a-near", "a-far", "b-near", "b-far", "late"}, names)
	for i := 1; i < len(c.Opaque()); i++ {
		prev, cur := c.Opaque()[i-1], c.Opaque()[i]
		if prev.Material == cur.Material {
			assert.LessOrEqual(t, prev.OrderHint, cur.OrderHint)
		}
	}

	names = names[:0]
	for _, it := range c.Transparent() {
		names = append(names, it.Model.Node().Name)
	}
	assert.Equal(t, []string{"glass2-far", "glass-mid", "glass-near"}, names)
}

func TestCollectLightsAndAmbient(t *testing.T) {
	s := scene.New()
	s.Add(
		scene.NewLightNode("shadowed", scene.NewDirectionalLight(mgl32.Vec3{1, 1, 1}, true)),
		scene.NewLightNode("point", scene.NewPointLight(mgl32.Vec3{1, 0, 0}, 5)),
		scene.NewLightNode("plain", scene.NewDirectionalLight(mgl32.Vec3{1, 1, 1}, false)),
		scene.NewLightNode("amb1", scene.NewAmbientLight(mgl32.Vec3{0.1, 0.2, 0.3})),
		scene.NewLightNode("amb2", scene.NewAmbientLight(mgl32.Vec3{0.1, 0.1, 0.1})),
		scene.NewLightNode("probe", scene.NewLightProbe(mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0})),
	)
	s.Root().Children()[1].SetPosition(mgl32.Vec3{0, 0, -5})

	c := NewCollector(material.GGX)
	c.Collect(newCamera(), s)

	var names []string
	for _, l := range c.Lights() {
		names = append(names, l.Node().Name)
	}
	assert.Equal(t, []string{"plain", "shadowed", "point", "probe"}, names)
	require.Len(t, c.ShadowCasters(), 1)
	assert.Equal(t, "shadowed", c.ShadowCasters()[0].Node().Name)
	assert.InDeltaSlice(t, []float32{0.2, 0.3, 0.4}, c.AmbientColor()[:], 1e-6)
}

func TestCollectFlagsAndEffects(t *testing.T) {
	s := scene.New()
	unlit := material.New("unlit", material.Unlit)
	addCube(s, "u", unlit, mgl32.Vec3{0, 0, -5})
	fog := effect.NewFog()
	s.Effects = []effect.Effect{fog}

	cam := newCamera()
	ao := effect.NewAmbientOcclusion(8)
	tone := effect.NewToneMapping()
	cam.Effects = []effect.Effect{ao, tone}

	c := NewCollector(material.GGX)
	c.Collect(cam, s)
	assert.False(t, c.NeedsGBuffer())
	assert.False(t, c.NeedsBackbuffer())
	assert.True(t, c.NeedsNormalDepth())
	assert.Same(t, ao, c.AmbientOcclusion())
	require.Len(t, c.PostEffects(), 2)
	assert.Same(t, fog, c.PostEffects()[0])
	assert.Same(t, tone, c.PostEffects()[1])

	fog.Disabled = true
	ao.Disabled = true
	unlit.SetNeedsBackbuffer(true)
	c.Collect(cam, s)
	assert.False(t, c.NeedsNormalDepth())
	assert.Nil(t, c.AmbientOcclusion())
	assert.True(t, c.NeedsBackbuffer())
	require.Len(t, c.Transparent(), 1)
}

func TestCollectSkyboxIsNeverCulled(t *testing.T) {
	s := scene.New()
	s.Skybox = scene.NewSkybox(material.New("sky", material.Unlit))
	cam := newCamera()
	cam.LookAt(mgl32.Vec3{1000, 0, 0}, mgl32.Vec3{1000, 0, -1}, mgl32.Vec3{0, 1, 0})

	c := NewCollector(material.GGX)
	c.Collect(cam, s)
	require.Len(t, c.Opaque(), 1)
	it := c.Opaque()[0]
	assert.Equal(t, mgl32.Vec3{1000, 0, 0}, it.World.Col(3).Vec3())
}

func TestPoolIsBoundedAcrossFrames(t *testing.T) {
	s := scene.New()
	mat := material.New("m", material.GGX)
	for i := 0; i < 100; i++ {
		addCube(s, "c", mat, mgl32.Vec3{0, 0, -float32(i%50) - 2})
	}
	c := NewCollector(material.GGX)
	cam := newCamera()
	c.Collect(cam, s)
	first := c.Opaque()[0]
	highWater := c.PoolCapacity()
	for i := 0; i < 20; i++ {
		c.Collect(cam, s)
		assert.Equal(t, 100, c.NumItems())
		assert.Equal(t, highWater, c.PoolCapacity())
	}
	seen := map[*Item]bool{}
	for _, it := range c.Opaque() {
		seen[it] = true
	}
	assert.True(t, seen[first], "items are reused")
	assert.Len(t, seen, 100)
}

func TestPoolPointersSurviveGrowth(t *testing.T) {
	var p Pool
	first := p.Get()
	first.OrderHint = 42
	for i := 0; i < 3*poolChunkSize; i++ {
		p.Get()
	}
	assert.Equal(t, float32(42), first.OrderHint)
	assert.Equal(t, 3*poolChunkSize+1, p.Len())
	p.Reset()
	assert.Same(t, first, p.Get())
}

type passFixture struct {
	dev      *gputest.Device
	gc       *gpu.GraphicsContext
	compiler *material.Compiler
}

func newPassFixture(t *testing.T) *passFixture {
	t.Helper()
	dev := gputest.New()
	gc, err := gpu.NewGraphicsContext(dev)
	require.NoError(t, err)
	cache := shader.NewCache(dev, shader.NewLibrary())
	settings := material.Settings{DefaultLightingModel: material.GGX, NumCascades: 1, MultipleRenderTargets: true}
	return &passFixture{dev: dev, gc: gc, compiler: material.NewCompiler(cache, settings)}
}

func (f *passFixture) collect(t *testing.T, s *scene.Scene) *Collector {
	t.Helper()
	c := NewCollector(material.GGX)
	c.Compiler = f.compiler
	c.Collect(newCamera(), s)
	// flush the initial full-state sync
	f.gc.SetCullMode(gpu.CullNone)
	f.dev.Reset()
	return c
}

func TestRenderPassDeduplicatesState(t *testing.T) {
	f := newPassFixture(t)
	s := scene.New()
	mat := material.New("m", material.BlinnPhong)
	for i := 0; i < 5; i++ {
		addCube(s, "c", mat, mgl32.Vec3{float32(i) - 2, 0, -6})
	}
	c := f.collect(t, s)

	ctx := &PassContext{GC: f.gc, View: c.Camera()}
	draws := RenderPass(ctx, material.BasePass, c.Opaque())
	assert.Equal(t, 5, draws)
	assert.Equal(t, 5, f.dev.Count("DrawElements"))
	assert.Equal(t, 1, f.dev.Count("UseProgram"))
	assert.Equal(t, 1, f.dev.Count("BindMesh"))
	assert.LessOrEqual(t, f.dev.Count("SetCullMode"), 1)
	assert.LessOrEqual(t, f.dev.Count("SetDepthTest"), 1)
	assert.LessOrEqual(t, f.dev.Count("SetBlendState"), 1)
	assert.Equal(t, 1, f.dev.UniformCount(shader.ProgramLitBase, shader.UniformColor))
	assert.Equal(t, 5, f.dev.UniformCount(shader.ProgramLitBase, shader.UniformWorldMatrix))
}

func TestRenderPassSkipsAbsentPasses(t *testing.T) {
	f := newPassFixture(t)
	s := scene.New()
	addCube(s, "unlit", material.New("unlit", material.Unlit), mgl32.Vec3{0, 0, -5})
	c := f.collect(t, s)

	ctx := &PassContext{GC: f.gc, View: c.Camera()}
	assert.Zero(t, RenderPass(ctx, material.DirLightPass, c.Opaque()))
	assert.Zero(t, f.dev.Count("DrawElements"))
	assert.Zero(t, f.dev.Count("UseProgram"))

	// not yet compiled
	s2 := scene.New()
	addCube(s2, "fresh", material.New("fresh", material.GGX), mgl32.Vec3{0, 0, -5})
	c2 := NewCollector(material.GGX)
	c2.Collect(newCamera(), s2)
	require.Len(t, c2.Opaque(), 1)
	assert.Zero(t, RenderPass(ctx, material.BasePass, c2.Opaque()))
}

func TestRenderPassSkipsMaterialsOverBudget(t *testing.T) {
	f := newPassFixture(t)
	f.compiler.SetBudget(1)
	f.compiler.BeginFrame()
	s := scene.New()
	addCube(s, "lit", material.New("lit", material.BlinnPhong), mgl32.Vec3{-1, 0, -5})
	late := material.New("late", material.Unlit)
	addCube(s, "late", late, mgl32.Vec3{1, 0, -5})

	c := f.collect(t, s)
	require.Len(t, c.Opaque(), 2, "deferred materials are still collected")
	assert.Equal(t, material.Uninitialized, late.State())
	ctx := &PassContext{GC: f.gc, View: c.Camera()}
	assert.Equal(t, 1, RenderPass(ctx, material.BasePass, c.Opaque()))
	assert.Equal(t, 1, f.dev.Count("DrawElements"))

	f.compiler.BeginFrame()
	c = f.collect(t, s)
	assert.Equal(t, material.Ready, late.State())
	assert.Equal(t, 2, RenderPass(ctx, material.BasePass, c.Opaque()))
}

func TestRenderPassFilter(t *testing.T) {
	f := newPassFixture(t)
	s := scene.New()
	mat := material.New("m", material.BlinnPhong)
	addCube(s, "near", mat, mgl32.Vec3{0, 0, -3})
	addCube(s, "far", mat, mgl32.Vec3{0, 0, -30})
	c := f.collect(t, s)

	light := scene.NewPointLight(mgl32.Vec3{1, 1, 1}, 2)
	scene.NewLightNode("p", light).SetPosition(mgl32.Vec3{0, 0, -3})
	sphere := light.BoundingSphere()
	ctx := &PassContext{
		GC:     f.gc,
		View:   c.Camera(),
		Light:  light,
		Filter: func(it *Item) bool { return it.Bounds.IntersectsSphere(sphere) },
	}
	assert.Equal(t, 1, RenderPass(ctx, material.PointLightPass, c.Opaque()))
	assert.Equal(t, 1, f.dev.UniformCount(shader.ProgramLitPoint, shader.UniformLightRadius))
}

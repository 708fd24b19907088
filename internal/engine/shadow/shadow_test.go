package shadow

import (
	"errors"
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
	"github.com/Faultbox/helix/internal/engine/render"
	"github.com/Faultbox/helix/internal/engine/scene"
	"github.com/Faultbox/helix/internal/engine/shader"
)

func TestDefaultSplitRatios(t *testing.T) {
	assert.Equal(t, []float32{1}, DefaultSplitRatios(1))
	assert.Equal(t, []float32{0.5, 1}, DefaultSplitRatios(2))
	assert.Equal(t, []float32{0.125, 0.25, 0.5, 1}, DefaultSplitRatios(4))
}

func TestSplitDistancesIncreaseToFar(t *testing.T) {
	tests := []struct {
		name   string
		ratios []float32
	}{
		{"default 1", DefaultSplitRatios(1)},
		{"default 3", DefaultSplitRatios(3)},
		{"default 4", DefaultSplitRatios(4)},
		{"uniform", []float32{0.25, 0.5, 0.75, 1}},
		{"short last", []float32{0.1, 0.2, 0.4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const near, far = 0.5, 200
			d := SplitDistances(near, far, tt.ratios)
			require.Len(t, d, len(tt.ratios))
			for i := range d {
				assert.Negative(t, d[i])
				if i > 0 {
					// view-space z is negative, so distance grows as z falls
					assert.Less(t, d[i], d[i-1])
				}
			}
			assert.Equal(t, float32(-far), d[len(d)-1])
			if len(d) > 1 {
				assert.InDelta(t, -(near + tt.ratios[0]*(far-near)), d[0], 1e-4)
			}
		})
	}
}

func TestValidateSplitRatios(t *testing.T) {
	assert.NoError(t, ValidateSplitRatios([]float32{0.3, 1}, 2))
	for _, bad := range [][]float32{{0.5}, {0.5, 0.5}, {0.7, 0.3}, {0, 1}, {0.5, 1.5}} {
		err := ValidateSplitRatios(bad, 2)
		assert.True(t, errors.Is(err, ErrInvalidSplitRatios), "%v", bad)
	}
	r := NewMapRenderer(2, material.ShadowHard, 0)
	assert.Error(t, r.SetSplitRatios([]float32{0.9, 0.1}))
	require.NoError(t, r.SetSplitRatios([]float32{0.2, 1}))
	assert.Equal(t, []float32{0.2, 1}, r.SplitRatios())
	require.NoError(t, r.SetSplitRatios(nil))
	assert.Equal(t, []float32{0.5, 1}, r.SplitRatios())
}

func TestCascadeCountPanics(t *testing.T) {
	assert.Panics(t, func() { NewMapRenderer(0, material.ShadowHard, 0) })
	assert.Panics(t, func() { NewMapRenderer(5, material.ShadowHard, 0) })
}

func TestAtlasLayout(t *testing.T) {
	for n, want := range map[int][2]int{1: {1, 1}, 2: {2, 1}, 3: {2, 2}, 4: {2, 2}} {
		cols, rows := AtlasLayout(n)
		assert.Equal(t, want, [2]int{cols, rows}, "%d cascades", n)
	}
}

func TestTileRemap(t *testing.T) {
	m := TileRemap(gpu.Rect{X: 512, Y: 0, W: 512, H: 512}, 1024, 512)
	lo := m.Mul4x1(mgl32.Vec4{-1, -1, -1, 1})
	hi := m.Mul4x1(mgl32.Vec4{1, 1, 1, 1})
	assert.InDeltaSlice(t, []float32{0.5, 0, 0, 1}, lo[:], 1e-6)
	assert.InDeltaSlice(t, []float32{1, 1, 1, 1}, hi[:], 1e-6)
}

func TestLightRotation(t *testing.T) {
	for _, dir := range []mgl32.Vec3{{0, -1, 0}, {1, -1, 0}, {0, 0, -1}, {0.3, -0.8, 0.2}} {
		dir = dir.Normalize()
		forward := LightRotation(dir).Col(2).Vec3().Mul(-1)
		assert.InDeltaSlice(t, dir[:], forward[:], 1e-5)
	}
}

// casterScene has a camera at the origin looking down -Z with the sun straight above.
type casterScene struct {
	scene *scene.Scene
	view  *camera.Camera
	light *scene.Light
	mat   *material.Material
}

func newCasterScene() *casterScene {
	s := scene.New()
	light := scene.NewDirectionalLight(mgl32.Vec3{1, 1, 1}, true)
	sun := scene.NewLightNode("sun", light)
	sun.LookAt(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, -1, 0}, mgl32.Vec3{0, 0, 1})
	s.Add(sun)
	view := camera.NewPerspective(mgl32.DegToRad(60), 1, 0.1, 20.1)
	return &casterScene{scene: s, view: view, light: light, mat: material.New("m", material.GGX)}
}

func (cs *casterScene) add(name string, size float32, pos mgl32.Vec3) *scene.Node {
	n := scene.NewModelNode(name, scene.NewModelInstance(scene.NewMeshInstance(mesh.NewBox(size, size, size), cs.mat)))
	n.SetPosition(pos)
	cs.scene.Add(n)
	return n
}

func names(items []*render.Item) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.Model.Node().Name)
	}
	return out
}

func TestCasterCulling(t *testing.T) {
	cs := newCasterScene()
	cs.add("near", 0.5, mgl32.Vec3{0, 0, -2})
	cs.add("straddle", 2, mgl32.Vec3{0, 0, -10})
	cs.add("far", 0.5, mgl32.Vec3{0, 0, -18})
	cs.add("above", 1, mgl32.Vec3{0, 50, -5})
	cs.add("below", 1, mgl32.Vec3{0, -100, -5})
	cs.add("aside", 1, mgl32.Vec3{100, 0, -5})
	noShadow := cs.add("no-shadow", 1, mgl32.Vec3{0, 0, -4})
	noShadow.Model().CastShadows = false

	r := NewMapRenderer(2, material.ShadowHard, 0)
	cs.light.Shadow.MapSize = 256
	r.Update(cs.view, cs.light, cs.scene)

	c := r.Collector()
	assert.ElementsMatch(t, []string{"near", "straddle", "above"}, names(c.Items(0)))
	// each cascade covers its slice's bounding sphere, so the far one reaches back over
	// the near slice as well
	assert.ElementsMatch(t, []string{"near", "straddle", "far", "above"}, names(c.Items(1)))

	// casters above the frustum stretch the cascades towards the light
	for _, cascade := range r.Cascades() {
		assert.Less(t, cascade.Camera.NearDistance(), float32(-49))
	}
	assert.InDeltaSlice(t, []float32{-10.1, -20.1}, r.SplitDistances(), 1e-4)
}

func TestCascadeTilesAndMatrices(t *testing.T) {
	cs := newCasterScene()
	cs.add("cube", 1, mgl32.Vec3{0, 0, -5})
	cs.light.Shadow.MapSize = 128
	r := NewMapRenderer(4, material.ShadowPCF, 2)
	r.Update(cs.view, cs.light, cs.scene)

	tiles := map[gpu.Rect]bool{}
	for i, c := range r.Cascades() {
		tiles[c.Tile] = true
		assert.Equal(t, 128, c.Tile.W)
		// a point inside the slice lands inside the cascade's tile
		mid := (c.NearRatio + c.FarRatio) / 2
		z := -(0.1 + mid*20)
		uv := c.Matrix.Mul4x1(mgl32.Vec4{0, 0, z, 1})
		x0, y0 := float32(c.Tile.X)/256, float32(c.Tile.Y)/256
		assert.True(t, uv[0] >= x0 && uv[0] <= x0+0.5, "cascade %d u=%f", i, uv[0])
		assert.True(t, uv[1] >= y0 && uv[1] <= y0+0.5, "cascade %d v=%f", i, uv[1])
		assert.True(t, uv[2] >= 0 && uv[2] <= 1, "cascade %d depth=%f", i, uv[2])
	}
	assert.Len(t, tiles, 4)
}

func TestSnappingKeepsTexelAlignment(t *testing.T) {
	cs := newCasterScene()
	cs.add("cube", 1, mgl32.Vec3{0, 0, -5})
	cs.light.Shadow.MapSize = 64
	r := NewMapRenderer(1, material.ShadowHard, 0)

	cs.view.SetWorldMatrix(mgl32.Translate3D(0.1, 0, 0))
	r.Update(cs.view, cs.light, cs.scene)
	before := r.Cascades()[0].Camera.ProjectionMatrix()
	// sub-texel camera movement along the light's right axis does not change the map
	cs.view.SetWorldMatrix(mgl32.Translate3D(0.1001, 0, 0))
	r.Update(cs.view, cs.light, cs.scene)
	after := r.Cascades()[0].Camera.ProjectionMatrix()
	assert.InDeltaSlice(t, before[:], after[:], 1e-4)
}

func TestCascadeSizeIgnoresCameraRotation(t *testing.T) {
	cs := newCasterScene()
	cs.add("cube", 1, mgl32.Vec3{0, 0, -5})
	cs.light.Shadow.MapSize = 64
	r := NewMapRenderer(2, material.ShadowPCF, 1)

	var scales [][2]float32
	for _, yaw := range []float32{0, 25, 70} {
		cs.view.SetWorldMatrix(mgl32.HomogRotate3DY(mgl32.DegToRad(yaw)))
		r.Update(cs.view, cs.light, cs.scene)
		for _, c := range r.Cascades() {
			p := c.Camera.ProjectionMatrix()
			scales = append(scales, [2]float32{p[0], p[5]})
		}
	}
	// a stable texel size keeps the snapping grid in place while the camera turns
	for i := 2; i < len(scales); i++ {
		want := scales[i%2]
		assert.InEpsilon(t, want[0], scales[i][0], 1e-4, "cascade %d", i%2)
		assert.InEpsilon(t, want[1], scales[i][1], 1e-4, "cascade %d", i%2)
	}
}

func newEffectContext(t *testing.T, dev gpu.Device) *effect.Context {
	t.Helper()
	gc, err := gpu.NewGraphicsContext(dev)
	require.NoError(t, err)
	quad, err := mesh.FullscreenQuad().Buffer(dev)
	require.NoError(t, err)
	return &effect.Context{GC: gc, Programs: shader.NewCache(dev, shader.NewLibrary()), Quad: quad}
}

func prepare(t *testing.T, ctx *effect.Context, r *MapRenderer, filter material.ShadowFilter) {
	t.Helper()
	settings := material.Settings{DefaultLightingModel: material.GGX, NumCascades: r.NumCascades(), ShadowFilter: filter}
	r.Collector().Compiler = material.NewCompiler(ctx.Programs, settings)
}

func TestRenderPublishesShadowData(t *testing.T) {
	dev := gputest.New()
	ctx := newEffectContext(t, dev)
	cs := newCasterScene()
	cs.add("a", 1, mgl32.Vec3{0, 0, -3})
	cs.add("b", 1, mgl32.Vec3{0, 0, -15})
	cs.light.Shadow.MapSize = 64

	r := NewMapRenderer(2, material.ShadowHard, 0)
	prepare(t, ctx, r, material.ShadowHard)
	r.Render(ctx, cs.view, cs.light, cs.scene)

	sd := cs.light.ShadowData
	require.NotNil(t, sd)
	assert.Same(t, r.Atlas(), sd.Atlas)
	assert.Equal(t, 128, sd.Atlas.Width())
	assert.Equal(t, 64, sd.Atlas.Height())
	assert.Len(t, sd.Matrices, 2)
	assert.Equal(t, mgl32.Vec2{1.0 / 128, 1.0 / 64}, sd.PixelSize)
	assert.Equal(t, cs.light.Shadow.DepthBias, sd.DepthBias)
	draws := len(r.Collector().Items(0)) + len(r.Collector().Items(1))
	assert.Equal(t, draws, dev.Count("DrawElements"))
	assert.Zero(t, dev.UniformCount(shader.ProgramBlur, shader.UniformShadowBlurDirection))
}

func TestRenderBlursFilteredMaps(t *testing.T) {
	dev := gputest.New()
	ctx := newEffectContext(t, dev)
	cs := newCasterScene()
	cs.add("a", 1, mgl32.Vec3{0, 0, -3})
	cs.light.Shadow.MapSize = 32

	r := NewMapRenderer(1, material.ShadowVSM, 1)
	prepare(t, ctx, r, material.ShadowVSM)
	r.Render(ctx, cs.view, cs.light, cs.scene)
	require.NotNil(t, cs.light.ShadowData)
	assert.Equal(t, 2, dev.UniformCount(shader.ProgramBlur, shader.UniformShadowBlurDirection))
}

func TestRenderSkipsIncompleteAtlas(t *testing.T) {
	dev := gputest.New()
	ctx := newEffectContext(t, dev)
	dev.FailFramebuffers = true
	cs := newCasterScene()
	cs.add("a", 1, mgl32.Vec3{0, 0, -3})

	r := NewMapRenderer(2, material.ShadowHard, 0)
	assert.NotPanics(t, func() { r.Render(ctx, cs.view, cs.light, cs.scene) })
	assert.Nil(t, cs.light.ShadowData)
	assert.Nil(t, r.Atlas())
	assert.Zero(t, dev.Count("DrawElements"))
}

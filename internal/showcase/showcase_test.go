package showcase

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/helix/internal/config"
	"github.com/Faultbox/helix/internal/engine/camera"
	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/gpu/soft"
	"github.com/Faultbox/helix/internal/engine/renderer"
	"github.com/Faultbox/helix/internal/engine/scene"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Render.Backend = "soft"
	cfg.Shadows.MapSize = 64
	return cfg
}

func TestNewBuildsScene(t *testing.T) {
	s, err := New(testConfig())
	require.NoError(t, err)
	t.Cleanup(s.Release)

	var models, lights int
	s.Scene.Traverse(func(n *scene.Node) bool {
		switch n.Kind() {
		case scene.KindModel:
			models++
		case scene.KindLight:
			lights++
		}
		return true
	})
	assert.Equal(t, 5, models)
	assert.Equal(t, 3, lights)
	require.NotNil(t, s.Scene.Skybox)
	assert.Len(t, s.Scene.Effects, 3)
	assert.True(t, s.AO.Disabled)
	assert.False(t, s.Bounds().IsEmpty())
}

func TestSetSun(t *testing.T) {
	s, err := New(testConfig())
	require.NoError(t, err)
	t.Cleanup(s.Release)

	s.SetSun(0, 90)
	assert.InDeltaSlice(t, []float32{0, -1, 0}, floats(s.Sun.Direction()), 1e-4)
	s.SetSun(90, 0)
	assert.InDeltaSlice(t, []float32{-1, 0, 0}, floats(s.Sun.Direction()), 1e-4)
	assert.Equal(t, float32(90), s.SunAzimuth)
}

func floats(v mgl32.Vec3) []float32 { return v[:] }

func TestNewRejectsLightingModel(t *testing.T) {
	cfg := testConfig()
	cfg.Render.DefaultLightingModel = "toon"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestApplyConfig(t *testing.T) {
	cfg := testConfig()
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Release)

	cfg.Shadows.MapSize = 256
	cfg.Shadows.SplitRatios = []float32{0.1, 0.3}
	cfg.AmbientOcclusion.Enabled = true
	cfg.AmbientOcclusion.Strength = 2
	cfg.AmbientOcclusion.NumSamples = 16
	old := s.AO
	s.ApplyConfig(cfg)

	assert.Equal(t, 256, s.Sun.Shadow.MapSize)
	assert.Equal(t, []float32{0.1, 0.3}, s.Sun.Shadow.SplitRatios)
	assert.NotSame(t, old, s.AO)
	assert.Same(t, s.AO, s.Scene.Effects[0])
	assert.Equal(t, 16, s.AO.NumSamples())
	assert.False(t, s.AO.Disabled)
	assert.Equal(t, float32(2), s.AO.Strength)
}

func TestRenderFrame(t *testing.T) {
	cfg := testConfig()
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Release)

	dev := soft.New(48, 32)
	gc, err := gpu.NewGraphicsContext(dev)
	require.NoError(t, err)
	opts, err := renderer.OptionsFromConfig(cfg)
	require.NoError(t, err)
	r, err := renderer.New(gc, opts)
	require.NoError(t, err)
	t.Cleanup(r.Release)

	cam := camera.NewPerspective(mgl32.DegToRad(60), 1.5, 0.1, 100)
	orbit := camera.NewOrbitController(60)
	orbit.FitToBounds(s.Bounds(), cam.FieldOfView())
	orbit.Snap()
	orbit.Update(cam)

	require.NoError(t, r.Render(cam, s.Scene))
	st := r.Stats()
	assert.True(t, st.Ran(renderer.StepShadows))
	assert.True(t, st.Ran(renderer.StepTransparent), "the glass panel is blended")
	assert.True(t, st.Ran(renderer.StepPostProcess))
	assert.Equal(t, 1, st.ShadowMaps)
	assert.Equal(t, 48, st.Width)
}

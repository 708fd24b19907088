package material

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/gpu/gputest"
	"github.com/Faultbox/helix/internal/engine/shader"
)

type fixedView struct{}

func (fixedView) ViewMatrix() mgl32.Mat4                  { return mgl32.Ident4() }
func (fixedView) ProjectionMatrix() mgl32.Mat4            { return mgl32.Ident4() }
func (fixedView) ViewProjectionMatrix() mgl32.Mat4        { return mgl32.Ident4() }
func (fixedView) InverseProjectionMatrix() mgl32.Mat4     { return mgl32.Ident4() }
func (fixedView) InverseViewProjectionMatrix() mgl32.Mat4 { return mgl32.Ident4() }
func (fixedView) WorldMatrix() mgl32.Mat4                 { return mgl32.Ident4() }
func (fixedView) Position() mgl32.Vec3                    { return mgl32.Vec3{} }
func (fixedView) NearDistance() float32                   { return 0.1 }
func (fixedView) FarDistance() float32                    { return 100 }

func testSettings() Settings {
	return Settings{
		DefaultLightingModel:  GGX,
		NumCascades:           3,
		ShadowFilter:          ShadowPCF,
		MultipleRenderTargets: true,
	}
}

func newCompiler(dev *gputest.Device, s Settings) *Compiler {
	return NewCompiler(shader.NewCache(dev, shader.NewLibrary()), s)
}

func presentPasses(m *Material) []PassType {
	var out []PassType
	for t := BasePass; t < NumPassTypes; t++ {
		if m.HasPass(t) {
			out = append(out, t)
		}
	}
	return out
}

func TestPassPlans(t *testing.T) {
	tests := []struct {
		name     string
		material func() *Material
		mrt      bool
		base     string
		want     []PassType
	}{
		{
			name:     "deferred",
			material: func() *Material { return New("m", GGX) },
			mrt:      true,
			base:     shader.ProgramApplyGBuffer,
			want:     []PassType{BasePass, DirLightShadowMapPass, GBufferPass},
		},
		{
			name:     "forward model",
			material: func() *Material { return New("m", BlinnPhong) },
			mrt:      true,
			base:     shader.ProgramLitBase,
			want: []PassType{BasePass, DirLightPass, DirLightShadowPass, PointLightPass, LightProbePass,
				DirLightShadowMapPass, GBufferPass},
		},
		{
			name:     "unlit",
			material: func() *Material { return New("m", Unlit) },
			mrt:      true,
			base:     shader.ProgramUnlit,
			want:     []PassType{BasePass, DirLightShadowMapPass, GBufferPass},
		},
		{
			name: "transparent",
			material: func() *Material {
				m := New("m", GGX)
				m.SetBlendState(&gpu.BlendAlpha)
				return m
			},
			mrt:  true,
			base: shader.ProgramLitBase,
			want: []PassType{BasePass, DirLightPass, DirLightShadowPass, PointLightPass, LightProbePass,
				DirLightShadowMapPass},
		},
		{
			name: "sky",
			material: func() *Material {
				m := New("m", Unlit)
				m.SetWriteDepth(false)
				return m
			},
			mrt:  true,
			base: shader.ProgramUnlit,
			want: []PassType{BasePass, DirLightShadowMapPass},
		},
		{
			name: "no depth write",
			material: func() *Material {
				m := New("m", GGX)
				m.SetWriteDepth(false)
				return m
			},
			mrt:  true,
			base: shader.ProgramLitBase,
			want: []PassType{BasePass, DirLightPass, DirLightShadowPass, PointLightPass, LightProbePass,
				DirLightShadowMapPass},
		},
		{
			name:     "per plane",
			material: func() *Material { return New("m", GGX) },
			base:     shader.ProgramApplyGBuffer,
			want:     []PassType{BasePass, DirLightShadowMapPass, GBufferAlbedoPass, GBufferNormalDepthPass, GBufferSpecularPass},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings()
			s.MultipleRenderTargets = tt.mrt
			c := newCompiler(gputest.New(), s)
			m := tt.material()
			require.True(t, c.Prepare(m))
			assert.Equal(t, Ready, m.State())
			assert.Equal(t, tt.want, presentPasses(m))
			assert.Equal(t, tt.base, m.Pass(BasePass).Program().Name())
		})
	}
}

func TestShadowPassDefines(t *testing.T) {
	dev := gputest.New()
	c := newCompiler(dev, testSettings())
	m := New("m", BlinnPhong)
	require.True(t, c.Prepare(m))

	src := m.Pass(DirLightShadowPass).Program().(*gputest.Program).Src
	assert.Equal(t, "3", src.Defines[shader.DefineNumCascades])
	assert.Equal(t, shader.ShadowFilterPCF, src.Defines[shader.DefineShadowFilter])
	assert.Contains(t, src.Defines, shader.DefineLightingBlinnPhong)
	assert.NotContains(t, m.Pass(DirLightPass).Program().(*gputest.Program).Src.Defines, shader.DefineShadow)
}

func TestInvalidation(t *testing.T) {
	c := newCompiler(gputest.New(), testSettings())
	m := New("m", GGX)
	require.True(t, c.Prepare(m))
	gen := m.Generation()
	base := m.Pass(BasePass)

	// uniform-only changes keep the passes
	m.SetColor(mgl32.Vec4{1, 0, 0, 1})
	m.SetRoughness(0.9)
	assert.Equal(t, gen, m.Generation())
	assert.Same(t, base, m.Pass(BasePass))

	m.SetColorMap(&gputest.Texture{W: 1, H: 1, Ready: true})
	assert.Greater(t, m.Generation(), gen)
	assert.Equal(t, Uninitialized, m.State())
	assert.Nil(t, m.Pass(BasePass))

	require.True(t, c.Prepare(m))
	assert.Equal(t, 2, m.Pass(BasePass).NumTextures(), "color map and light accumulation")

	gen = m.Generation()
	m.SetWriteDepth(false)
	assert.Greater(t, m.Generation(), gen, "depth writes decide the G-buffer passes")
	m.SetWriteDepth(true)
	require.True(t, c.Prepare(m))

	// swapping one texture for another keeps the defines
	gen = m.Generation()
	m.SetColorMap(&gputest.Texture{W: 2, H: 2, Ready: true})
	assert.Equal(t, gen, m.Generation())
}

func TestSettingsChangeRebuilds(t *testing.T) {
	c := newCompiler(gputest.New(), testSettings())
	m := New("m", GGX)
	require.True(t, c.Prepare(m))
	assert.True(t, m.HasPass(GBufferPass))

	s := testSettings()
	s.MultipleRenderTargets = false
	c.SetSettings(s)
	require.True(t, c.Prepare(m))
	assert.False(t, m.HasPass(GBufferPass))
	assert.True(t, m.HasPass(GBufferAlbedoPass))

	// the material is no longer deferred once the default model changes
	s.DefaultLightingModel = BlinnPhong
	c.SetSettings(s)
	require.True(t, c.Prepare(m))
	assert.Equal(t, shader.ProgramLitBase, m.Pass(BasePass).Program().Name())
}

func TestTwoCompilersKeepSeparatePasses(t *testing.T) {
	a := newCompiler(gputest.New(), testSettings())
	b := newCompiler(gputest.New(), testSettings())
	m := New("m", GGX)
	require.True(t, a.Prepare(m))
	first := m.Pass(BasePass)
	require.True(t, b.Prepare(m))
	assert.NotSame(t, first, m.Pass(BasePass))
}

func TestBudget(t *testing.T) {
	dev := gputest.New()
	c := newCompiler(dev, testSettings())
	c.SetBudget(2)
	c.BeginFrame()

	a := New("a", GGX)
	b := New("b", BlinnPhong)
	require.True(t, c.Prepare(a), "the first material of a frame always builds")
	assert.False(t, c.Prepare(b))
	assert.Equal(t, Uninitialized, b.State())

	c.BeginFrame()
	assert.True(t, c.Prepare(b))

	// materials whose programs are cached cost nothing
	c.BeginFrame()
	assert.True(t, c.Prepare(New("c", GGX)))
	assert.True(t, c.Prepare(New("d", BlinnPhong)))
}

func TestBudgetDefersRebuildAfterSettingsChange(t *testing.T) {
	c := newCompiler(gputest.New(), testSettings())
	a := New("a", BlinnPhong)
	m := New("m", GGX)
	m.SetColorMap(&gputest.Texture{W: 1, H: 1, Ready: true})
	require.True(t, c.Prepare(a))
	require.True(t, c.Prepare(m))
	require.True(t, m.HasPass(GBufferPass))

	s := testSettings()
	s.MultipleRenderTargets = false
	c.SetSettings(s)
	c.SetBudget(1)
	c.BeginFrame()
	require.True(t, c.Prepare(a))
	assert.False(t, c.Prepare(m))

	// nothing built for the old settings is served while the rebuild waits
	assert.Equal(t, Uninitialized, m.State())
	for typ := BasePass; typ < NumPassTypes; typ++ {
		assert.Nil(t, m.Pass(typ), "pass %s", typ)
	}

	c.BeginFrame()
	require.True(t, c.Prepare(m))
	assert.False(t, m.HasPass(GBufferPass))
	assert.True(t, m.HasPass(GBufferAlbedoPass))
}

func TestBudgetAfterInvalidation(t *testing.T) {
	c := newCompiler(gputest.New(), testSettings())
	a := New("a", BlinnPhong)
	m := New("m", GGX)
	require.True(t, c.Prepare(m))

	c.SetBudget(1)
	c.BeginFrame()
	require.True(t, c.Prepare(a))
	m.SetAlphaThreshold(0.5)
	assert.False(t, c.Prepare(m))
	assert.Nil(t, m.Pass(BasePass))

	c.BeginFrame()
	require.True(t, c.Prepare(m))
	assert.Contains(t, m.Pass(BasePass).Program().(*gputest.Program).Src.Defines, shader.DefineAlphaThreshold)
}

func TestStrict(t *testing.T) {
	for _, strict := range []bool{false, true} {
		dev := gputest.New()
		dev.FailPrograms[shader.ProgramLitPoint] = true
		c := newCompiler(dev, testSettings())
		c.SetStrict(strict)
		c.BeginFrame()

		m := New("m", BlinnPhong)
		require.True(t, c.Prepare(m))
		assert.False(t, m.HasPass(PointLightPass))
		assert.True(t, m.HasPass(DirLightPass))
		if strict {
			require.Error(t, c.Err())
			assert.True(t, errors.Is(c.Err(), ErrPassFailed))
		} else {
			assert.NoError(t, c.Err())
		}

		// failures are not retried until the material changes
		require.True(t, c.Prepare(m))
		c.BeginFrame()
		assert.NoError(t, c.Err())
	}
}

func TestIsDeferred(t *testing.T) {
	m := New("m", GGX)
	assert.True(t, m.IsDeferred(GGX))
	assert.False(t, m.IsDeferred(BlinnPhong))
	m.SetWriteDepth(false)
	assert.False(t, m.IsDeferred(GGX), "the G-buffer only holds depth-writing materials")
	m.SetWriteDepth(true)
	m.SetNeedsBackbuffer(true)
	assert.True(t, m.IsTransparent())
	assert.False(t, m.IsDeferred(GGX))
	assert.False(t, New("u", Unlit).IsDeferred(Unlit))
}

func TestAlphaThreshold(t *testing.T) {
	m := New("m", GGX)
	_, on := m.AlphaThreshold()
	assert.False(t, on)
	gen := m.Generation()
	m.SetAlphaThreshold(0.5)
	v, on := m.AlphaThreshold()
	assert.True(t, on)
	assert.Equal(t, float32(0.5), v)
	assert.Greater(t, m.Generation(), gen)

	gen = m.Generation()
	m.SetAlphaThreshold(0.25)
	assert.Equal(t, gen, m.Generation())
	m.SetAlphaThreshold(-1)
	_, on = m.AlphaThreshold()
	assert.False(t, on)
}

func TestParseNames(t *testing.T) {
	for _, model := range []LightingModel{Unlit, BlinnPhong, GGX} {
		got, err := ParseLightingModel(model.String())
		require.NoError(t, err)
		assert.Equal(t, model, got)
	}
	for f := ShadowHard; f <= ShadowESM; f++ {
		got, err := ParseShadowFilter(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := ParseLightingModel("toon")
	assert.Error(t, err)
	_, err = ParseShadowFilter("pcss")
	assert.Error(t, err)
	assert.Equal(t, "gbuffer_albedo", GBufferAlbedoPass.String())
	assert.True(t, GBufferSpecularPass.IsGBuffer())
	assert.True(t, LightProbePass.IsForwardLight())
	assert.False(t, DirLightShadowMapPass.IsForwardLight())
}

func TestUpdatePassRenderState(t *testing.T) {
	dev := gputest.New()
	gc, err := gpu.NewGraphicsContext(dev)
	require.NoError(t, err)
	c := newCompiler(dev, testSettings())
	m := New("m", BlinnPhong)
	require.True(t, c.Prepare(m))

	p := m.Pass(BasePass)
	p.UpdatePassRenderState(gc, fixedView{}, nil, nil)
	assert.Equal(t, 1, dev.UniformCount(shader.ProgramLitBase, shader.UniformColor))
	assert.Equal(t, 1, dev.UniformCount(shader.ProgramLitBase, shader.UniformRoughness))
	assert.Zero(t, dev.UniformCount(shader.ProgramLitBase, shader.UniformAlphaThreshold))
}

package soft

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/helix/internal/engine/shader"
)

const (
	modelNone = iota
	modelBlinnPhong
	modelGGX
)

const (
	filterHard = iota
	filterPCF
	filterVSM
	filterESM
)

// features are the defines a kernel was specialised with.
type features struct {
	model          int
	colorMap       bool
	specularMap    bool
	skinning       bool
	morphing       bool
	alphaThreshold bool
	shadow         bool
	cascades       int
	filter         int
	gbuffer        string
	gamma          bool
	preciseGamma   bool
	debugChannel   string
	aoSamples      int
}

func parseFeatures(defines map[string]string) features {
	has := func(name string) bool {
		_, ok := defines[name]
		return ok
	}
	f := features{
		colorMap:       has(shader.DefineColorMap),
		specularMap:    has(shader.DefineSpecularMap),
		skinning:       has(shader.DefineSkinning),
		morphing:       has(shader.DefineMorphing),
		alphaThreshold: has(shader.DefineAlphaThreshold),
		shadow:         has(shader.DefineShadow),
		gamma:          has(shader.DefineGammaCorrection),
		preciseGamma:   has(shader.DefinePreciseGamma),
		debugChannel:   defines[shader.DefineDebugChannel],
		cascades:       atoi(defines[shader.DefineNumCascades], 1),
		aoSamples:      atoi(defines[shader.DefineNumAOSamples], 8),
	}
	switch {
	case has(shader.DefineLightingGGX):
		f.model = modelGGX
	case has(shader.DefineLightingBlinnPhong):
		f.model = modelBlinnPhong
	}
	switch defines[shader.DefineShadowFilter] {
	case shader.ShadowFilterPCF:
		f.filter = filterPCF
	case shader.ShadowFilterVSM:
		f.filter = filterVSM
	case shader.ShadowFilterESM:
		f.filter = filterESM
	}
	for _, g := range []string{shader.DefineGBufferMRT, shader.DefineGBufferAlbedo, shader.DefineGBufferNormalDepth, shader.DefineGBufferSpecular} {
		if has(g) {
			f.gbuffer = g
		}
	}
	return f
}

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func toLinear(c mgl32.Vec3, precise bool) mgl32.Vec3 {
	if precise {
		return mgl32.Vec3{math32.Pow(c[0], 2.2), math32.Pow(c[1], 2.2), math32.Pow(c[2], 2.2)}
	}
	return mgl32.Vec3{c[0] * c[0], c[1] * c[1], c[2] * c[2]}
}

func toGamma(c mgl32.Vec3, precise bool) mgl32.Vec3 {
	for i := range c {
		c[i] = math32.Max(c[i], 0)
	}
	if precise {
		const inv = 1 / 2.2
		return mgl32.Vec3{math32.Pow(c[0], inv), math32.Pow(c[1], inv), math32.Pow(c[2], inv)}
	}
	return mgl32.Vec3{math32.Sqrt(c[0]), math32.Sqrt(c[1]), math32.Sqrt(c[2])}
}

func saturate(v float32) float32 { return clamp01(v) }

func mix3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Mul(1 - t).Add(b.Mul(t))
}

func mul3(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func safeNormalize(v mgl32.Vec3) mgl32.Vec3 {
	l := v.Len()
	if l < 1e-8 {
		return mgl32.Vec3{0, 0, 1}
	}
	return v.Mul(1 / l)
}

// surface is a shading point in whichever space the caller works in.
type surface struct {
	albedo      mgl32.Vec3
	normal      mgl32.Vec3
	roughness   float32
	metallic    float32
	reflectance float32
}

// brdf returns the light reflected towards v for unit incoming radiance from l.
func brdf(model int, s surface, l, v mgl32.Vec3) mgl32.Vec3 {
	ndl := s.normal.Dot(l)
	if ndl <= 0 {
		return mgl32.Vec3{}
	}
	f0 := mix3(mgl32.Vec3{s.reflectance, s.reflectance, s.reflectance}, s.albedo, s.metallic)
	diffuse := s.albedo.Mul(1 - s.metallic)
	h := safeNormalize(l.Add(v))
	ndh := math32.Max(s.normal.Dot(h), 0)
	ndv := math32.Max(s.normal.Dot(v), 1e-4)
	vdh := math32.Max(v.Dot(h), 0)

	fresnel := math32.Pow(1-vdh, 5)
	f := f0.Add(mgl32.Vec3{1, 1, 1}.Sub(f0).Mul(fresnel))

	var spec float32
	switch model {
	case modelGGX:
		a := s.roughness * s.roughness
		a2 := math32.Max(a*a, 1e-6)
		den := ndh*ndh*(a2-1) + 1
		d := a2 / (math32.Pi * den * den)
		k := a * 0.5
		g := ndl / (ndl*(1-k) + k) * ndv / (ndv*(1-k) + k)
		spec = d * g / (4 * ndv)
	case modelBlinnPhong:
		r4 := math32.Pow(s.roughness, 4)
		power := math32.Min(2/math32.Max(r4, 1e-4)-2, 4096)
		spec = math32.Pow(ndh, power) * (power + 8) / (8 * math32.Pi) * ndl
	}
	return diffuse.Mul(ndl).Add(f.Mul(spec))
}

// shadowLookup samples a cascaded shadow atlas.
type shadowLookup struct {
	feat      features
	atlas     sampler
	matrices  []mgl32.Mat4
	splits    []float32
	bias      float32
	pixelSize mgl32.Vec2
}

func newShadowLookup(e env, feat features) *shadowLookup {
	if !feat.shadow {
		return nil
	}
	return &shadowLookup{
		feat:      feat,
		atlas:     e.sampler(shader.SamplerShadowMap),
		matrices:  e.mat4s(shader.UniformShadowMapMatrices),
		splits:    e.floats(shader.UniformSplitDistances),
		bias:      e.float(shader.UniformDepthBias),
		pixelSize: e.vec2(shader.UniformShadowMapPixelSize),
	}
}

// visibility returns 1 for lit and 0 for fully shadowed. viewZ is negative in front of
// the camera, as are the split distances.
func (s *shadowLookup) visibility(world mgl32.Vec3, viewZ float32) float32 {
	if s == nil || !s.atlas.valid() {
		return 1
	}
	n := min(s.feat.cascades, len(s.matrices), len(s.splits))
	cascade := -1
	for i := 0; i < n; i++ {
		if viewZ >= s.splits[i] {
			cascade = i
			break
		}
	}
	if cascade < 0 {
		return 1
	}
	coord := s.matrices[cascade].Mul4x1(world.Vec4(1))
	uv := mgl32.Vec2{coord[0], coord[1]}
	d := coord[2] - s.bias

	switch s.feat.filter {
	case filterPCF:
		var sum float32
		for y := -1; y <= 1; y++ {
			for x := -1; x <= 1; x++ {
				o := mgl32.Vec2{float32(x) * s.pixelSize[0], float32(y) * s.pixelSize[1]}
				if d <= s.atlas.sample(uv.Add(o))[0] {
					sum++
				}
			}
		}
		return sum / 9
	case filterVSM:
		m := s.atlas.sample(uv)
		if d <= m[0] {
			return 1
		}
		variance := math32.Max(m[1]-m[0]*m[0], 2e-5)
		diff := d - m[0]
		p := variance / (variance + diff*diff)
		return saturate((p - 0.2) / 0.8)
	case filterESM:
		occluder := s.atlas.sample(uv)[0]
		return saturate(occluder * math32.Exp(-shader.ESMExponent*(d-1)))
	}
	if d <= s.atlas.sample(uv)[0] {
		return 1
	}
	return 0
}

// encodeShadowDepth stores a window-space depth the way the filter expects to read it.
func encodeShadowDepth(filter int, d float32) mgl32.Vec4 {
	switch filter {
	case filterVSM:
		return mgl32.Vec4{d, d * d, 0, 1}
	case filterESM:
		return mgl32.Vec4{math32.Exp(shader.ESMExponent * (d - 1)), 0, 0, 1}
	}
	return mgl32.Vec4{d, 0, 0, 1}
}

// viewPosition reconstructs a view-space position from a screen uv and a linear depth in
// [0,1] between the near and far planes. Works for both projection types.
func viewPosition(invProj mgl32.Mat4, uv mgl32.Vec2, depth, near, far float32) mgl32.Vec3 {
	ndcX, ndcY := uv[0]*2-1, uv[1]*2-1
	pn := invProj.Mul4x1(mgl32.Vec4{ndcX, ndcY, -1, 1})
	pf := invProj.Mul4x1(mgl32.Vec4{ndcX, ndcY, 1, 1})
	a := pn.Vec3().Mul(1 / pn[3])
	b := pf.Vec3().Mul(1 / pf[3])
	z := -(near + depth*(far-near))
	t := float32(0)
	if b[2] != a[2] {
		t = (z - a[2]) / (b[2] - a[2])
	}
	return a.Add(b.Sub(a).Mul(t))
}

func decodeNormal(nd mgl32.Vec4) mgl32.Vec3 {
	return safeNormalize(mgl32.Vec3{nd[0]*2 - 1, nd[1]*2 - 1, nd[2]*2 - 1})
}

func pointAttenuation(dist, radius float32) float32 {
	if radius <= 0 {
		return 0
	}
	f := saturate(1 - dist/radius)
	return f * f
}

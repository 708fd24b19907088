package soft

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/shader"
)

// kernel reads a draw's uniforms once and returns its shader stages.
type kernel func(e env) stage

var kernels = map[string]func(f features) kernel{
	shader.ProgramUnlit:           unlitKernel,
	shader.ProgramLitBase:         litBaseKernel,
	shader.ProgramLitDir:          litDirKernel,
	shader.ProgramLitPoint:        litPointKernel,
	shader.ProgramLitProbe:        litProbeKernel,
	shader.ProgramGBuffer:         gbufferKernel,
	shader.ProgramApplyGBuffer:    applyGBufferKernel,
	shader.ProgramShadowDepth:     shadowDepthKernel,
	shader.ProgramDeferredDir:     deferredDirKernel,
	shader.ProgramDeferredPoint:   deferredPointKernel,
	shader.ProgramDeferredProbe:   deferredProbeKernel,
	shader.ProgramDeferredAmbient: deferredAmbientKernel,
	shader.ProgramCopy:            copyKernel,
	shader.ProgramCopyGamma:       copyKernel,
	shader.ProgramDebugView:       debugViewKernel,
	shader.ProgramBlur:            blurKernel,
	shader.ProgramFog:             fogKernel,
	shader.ProgramSSAO:            ssaoKernel,
	shader.ProgramToneMap:         toneMapKernel,
}

func lookupKernel(name string, defines map[string]string) (kernel, error) {
	build, ok := kernels[name]
	if !ok {
		return nil, fmt.Errorf("soft: no kernel for program %q: %w", name, gpu.ErrUnsupported)
	}
	f := parseFeatures(defines)
	if name == shader.ProgramCopyGamma {
		f.gamma = true
	}
	return build(f), nil
}

func meshVertex(e env, f features) func(in *vertexIn) (mgl32.Vec4, varyings) {
	world := e.mat4(shader.UniformWorldMatrix)
	wvp := e.mat4(shader.UniformWorldViewProjection)
	normalWorld := e.mat4(shader.UniformNormalWorldMatrix)
	var joints []mgl32.Mat4
	if f.skinning {
		joints = e.mat4s(shader.UniformSkinningMatrices)
	}
	var morphWeights []float32
	if f.morphing {
		morphWeights = e.floats(shader.UniformMorphWeights)
	}
	return func(in *vertexIn) (mgl32.Vec4, varyings) {
		p := in.position
		for k, w := range morphWeights {
			if k < len(in.morph) {
				p = p.Add(in.morph[k].Mul(w))
			}
		}
		pos := p.Vec4(1)
		n := in.normal.Vec4(0)
		if len(joints) > 0 {
			skin := skinMatrix(joints, in.joints, in.weights)
			pos = skin.Mul4x1(pos)
			n = skin.Mul4x1(n)
		}
		var v varyings
		v.set(world.Mul4x1(pos).Vec3(), normalWorld.Mul4x1(n).Vec3(), in.uv)
		return wvp.Mul4x1(pos), v
	}
}

func skinMatrix(joints []mgl32.Mat4, indices, weights mgl32.Vec4) mgl32.Mat4 {
	var m mgl32.Mat4
	for k := 0; k < 4; k++ {
		j := int(indices[k])
		if weights[k] == 0 || j < 0 || j >= len(joints) {
			continue
		}
		m = m.Add(joints[j].Mul(weights[k]))
	}
	return m
}

// quadVertex passes positions through as clip coordinates.
func quadVertex(in *vertexIn) (mgl32.Vec4, varyings) {
	var v varyings
	v.set(in.position, in.normal, in.uv)
	return mgl32.Vec4{in.position[0], in.position[1], in.position[2], 1}, v
}

type materialInputs struct {
	f              features
	color          mgl32.Vec4
	emissive       mgl32.Vec3
	roughness      float32
	metallic       float32
	reflectance    float32
	alphaThreshold float32
	colorMap       sampler
	specularMap    sampler
}

func readMaterial(e env, f features) *materialInputs {
	return &materialInputs{
		f:              f,
		color:          e.vec4(shader.UniformColor),
		emissive:       e.vec3(shader.UniformEmissiveColor),
		roughness:      e.float(shader.UniformRoughness),
		metallic:       e.float(shader.UniformMetallicness),
		reflectance:    e.float(shader.UniformNormalSpecularReflectance),
		alphaThreshold: e.float(shader.UniformAlphaThreshold),
		colorMap:       e.sampler(shader.SamplerColorMap),
		specularMap:    e.sampler(shader.SamplerSpecularMap),
	}
}

// albedo returns the base colour and false when the fragment fails the alpha test.
func (m *materialInputs) albedo(uv mgl32.Vec2) (mgl32.Vec4, bool) {
	c := m.color
	if m.f.colorMap {
		t := m.colorMap.sample(uv)
		rgb := t.Vec3()
		if m.f.gamma {
			rgb = toLinear(rgb, m.f.preciseGamma)
		}
		c = mgl32.Vec4{c[0] * rgb[0], c[1] * rgb[1], c[2] * rgb[2], c[3] * t[3]}
	}
	if m.f.alphaThreshold && c[3] < m.alphaThreshold {
		return c, false
	}
	return c, true
}

func (m *materialInputs) surface(fr *fragment, albedo mgl32.Vec3) surface {
	s := surface{
		albedo:      albedo,
		normal:      safeNormalize(fr.v.normal()),
		roughness:   m.roughness,
		metallic:    m.metallic,
		reflectance: m.reflectance,
	}
	if !fr.front {
		s.normal = s.normal.Mul(-1)
	}
	if m.f.specularMap {
		t := m.specularMap.sample(fr.v.uv())
		s.roughness *= t[0]
		s.reflectance *= t[1]
		s.metallic *= t[2]
	}
	return s
}

func unlitKernel(f features) kernel {
	return func(e env) stage {
		mat := readMaterial(e, f)
		return stage{
			vertex: meshVertex(e, f),
			fragment: func(fr *fragment, out *[4]mgl32.Vec4) bool {
				c, ok := mat.albedo(fr.v.uv())
				if !ok {
					return false
				}
				rgb := c.Vec3().Add(mat.emissive)
				out[0] = rgb.Vec4(c[3])
				return true
			},
		}
	}
}

func litBaseKernel(f features) kernel {
	return func(e env) stage {
		mat := readMaterial(e, f)
		ambient := e.vec3(shader.UniformAmbientColor)
		ao := e.sampler(shader.SamplerAmbientOcclusion)
		return stage{
			vertex: meshVertex(e, f),
			fragment: func(fr *fragment, out *[4]mgl32.Vec4) bool {
				c, ok := mat.albedo(fr.v.uv())
				if !ok {
					return false
				}
				occlusion := ao.sample(fr.screenUV)[0]
				rgb := mul3(c.Vec3(), ambient).Mul(occlusion).Add(mat.emissive)
				out[0] = rgb.Vec4(c[3])
				return true
			},
		}
	}
}

// forwardLight builds a per-light additive pass; radiance returns the incoming light
// direction and colour at a world position.
func forwardLight(e env, f features, radiance func(world mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3)) stage {
	mat := readMaterial(e, f)
	camPos := e.vec3(shader.UniformCameraWorldPosition)
	return stage{
		vertex: meshVertex(e, f),
		fragment: func(fr *fragment, out *[4]mgl32.Vec4) bool {
			c, ok := mat.albedo(fr.v.uv())
			if !ok {
				return false
			}
			world := fr.v.position()
			s := mat.surface(fr, c.Vec3())
			l, light := radiance(world)
			v := safeNormalize(camPos.Sub(world))
			out[0] = mul3(brdf(f.model, s, l, v), light).Vec4(c[3])
			return true
		},
	}
}

func litDirKernel(f features) kernel {
	return func(e env) stage {
		dir := safeNormalize(e.vec3(shader.UniformLightDirection)).Mul(-1)
		color := e.vec3(shader.UniformLightColor)
		view := e.mat4(shader.UniformViewMatrix)
		shadows := newShadowLookup(e, f)
		return forwardLight(e, f, func(world mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
			if shadows == nil {
				return dir, color
			}
			viewZ := view.Mul4x1(world.Vec4(1))[2]
			return dir, color.Mul(shadows.visibility(world, viewZ))
		})
	}
}

func litPointKernel(f features) kernel {
	return func(e env) stage {
		pos := e.vec3(shader.UniformLightPosition)
		color := e.vec3(shader.UniformLightColor)
		radius := e.float(shader.UniformLightRadius)
		return forwardLight(e, f, func(world mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
			d := pos.Sub(world)
			dist := d.Len()
			return safeNormalize(d), color.Mul(pointAttenuation(dist, radius))
		})
	}
}

func hemisphere(sky, ground mgl32.Vec3, n, up mgl32.Vec3) mgl32.Vec3 {
	return mix3(ground, sky, n.Dot(up)*0.5+0.5)
}

func litProbeKernel(f features) kernel {
	return func(e env) stage {
		mat := readMaterial(e, f)
		sky := e.vec3(shader.UniformProbeSkyColor)
		ground := e.vec3(shader.UniformProbeGroundColor)
		up := mgl32.Vec3{0, 1, 0}
		return stage{
			vertex: meshVertex(e, f),
			fragment: func(fr *fragment, out *[4]mgl32.Vec4) bool {
				c, ok := mat.albedo(fr.v.uv())
				if !ok {
					return false
				}
				s := mat.surface(fr, c.Vec3())
				irradiance := hemisphere(sky, ground, s.normal, up)
				out[0] = mul3(s.albedo.Mul(1-s.metallic), irradiance).Vec4(c[3])
				return true
			},
		}
	}
}

func gbufferKernel(f features) kernel {
	return func(e env) stage {
		mat := readMaterial(e, f)
		view := e.mat4(shader.UniformViewMatrix)
		near := e.float(shader.UniformCameraNearDistance)
		rcpRange := 1 / math32.Max(e.float(shader.UniformCameraFrustumRange), 1e-6)
		return stage{
			vertex: meshVertex(e, f),
			fragment: func(fr *fragment, out *[4]mgl32.Vec4) bool {
				c, ok := mat.albedo(fr.v.uv())
				if !ok {
					return false
				}
				s := mat.surface(fr, c.Vec3())
				viewPos := view.Mul4x1(fr.v.position().Vec4(1))
				n := safeNormalize(view.Mul4x1(s.normal.Vec4(0)).Vec3())
				albedo := c.Vec3().Vec4(1)
				normalDepth := mgl32.Vec4{n[0]*0.5 + 0.5, n[1]*0.5 + 0.5, n[2]*0.5 + 0.5, (-viewPos[2] - near) * rcpRange}
				spec := mgl32.Vec4{s.roughness, s.reflectance, s.metallic, 1}
				switch f.gbuffer {
				case shader.DefineGBufferAlbedo:
					out[0] = albedo
				case shader.DefineGBufferNormalDepth:
					out[0] = normalDepth
				case shader.DefineGBufferSpecular:
					out[0] = spec
				default:
					out[0], out[1], out[2] = albedo, normalDepth, spec
				}
				return true
			},
		}
	}
}

func applyGBufferKernel(f features) kernel {
	return func(e env) stage {
		mat := readMaterial(e, f)
		light := e.sampler(shader.SamplerLightAccumulation)
		return stage{
			vertex: meshVertex(e, f),
			fragment: func(fr *fragment, out *[4]mgl32.Vec4) bool {
				if _, ok := mat.albedo(fr.v.uv()); !ok {
					return false
				}
				out[0] = light.sample(fr.screenUV).Vec3().Add(mat.emissive).Vec4(1)
				return true
			},
		}
	}
}

func shadowDepthKernel(f features) kernel {
	return func(e env) stage {
		mat := readMaterial(e, f)
		return stage{
			vertex: meshVertex(e, f),
			fragment: func(fr *fragment, out *[4]mgl32.Vec4) bool {
				if _, ok := mat.albedo(fr.v.uv()); !ok {
					return false
				}
				out[0] = encodeShadowDepth(f.filter, fr.depth)
				return true
			},
		}
	}
}

// gbufferSample is one reconstructed G-buffer texel in view space.
type gbufferSample struct {
	surface
	position mgl32.Vec3
	view     mgl32.Vec3
}

type gbufferReader struct {
	albedo, normalDepth, specular sampler
	invProj                       mgl32.Mat4
	ortho                         bool
	near, far                     float32
}

func newGBufferReader(e env) *gbufferReader {
	proj := e.mat4(shader.UniformProjectionMatrix)
	return &gbufferReader{
		albedo:      e.sampler(shader.SamplerGBufferAlbedo),
		normalDepth: e.sampler(shader.SamplerGBufferNormalDepth),
		specular:    e.sampler(shader.SamplerGBufferSpecular),
		invProj:     e.mat4(shader.UniformInverseProjectionMatrix),
		ortho:       proj[15] != 0,
		near:        e.float(shader.UniformCameraNearDistance),
		far:         e.float(shader.UniformCameraFarDistance),
	}
}

// read returns false where no geometry was written.
func (g *gbufferReader) read(uv mgl32.Vec2) (gbufferSample, bool) {
	alb := g.albedo.sample(uv)
	if alb[3] == 0 {
		return gbufferSample{}, false
	}
	nd := g.normalDepth.sample(uv)
	spec := g.specular.sample(uv)
	s := gbufferSample{
		surface: surface{
			albedo:      alb.Vec3(),
			normal:      decodeNormal(nd),
			roughness:   spec[0],
			reflectance: spec[1],
			metallic:    spec[2],
		},
		position: viewPosition(g.invProj, uv, nd[3], g.near, g.far),
	}
	if g.ortho {
		s.view = mgl32.Vec3{0, 0, 1}
	} else {
		s.view = safeNormalize(s.position.Mul(-1))
	}
	return s, true
}

func deferredLight(e env, shade func(s gbufferSample) mgl32.Vec3) stage {
	g := newGBufferReader(e)
	return stage{
		vertex: quadVertex,
		fragment: func(fr *fragment, out *[4]mgl32.Vec4) bool {
			s, ok := g.read(fr.screenUV)
			if !ok {
				return false
			}
			out[0] = shade(s).Vec4(0)
			return true
		},
	}
}

func deferredDirKernel(f features) kernel {
	return func(e env) stage {
		dir := safeNormalize(e.vec3(shader.UniformLightViewDirection)).Mul(-1)
		color := e.vec3(shader.UniformLightColor)
		camWorld := e.mat4(shader.UniformCameraWorldMatrix)
		shadows := newShadowLookup(e, f)
		return deferredLight(e, func(s gbufferSample) mgl32.Vec3 {
			light := color
			if shadows != nil {
				world := camWorld.Mul4x1(s.position.Vec4(1)).Vec3()
				light = light.Mul(shadows.visibility(world, s.position[2]))
			}
			return mul3(brdf(f.model, s.surface, dir, s.view), light)
		})
	}
}

func deferredPointKernel(f features) kernel {
	return func(e env) stage {
		pos := e.vec3(shader.UniformLightViewPosition)
		color := e.vec3(shader.UniformLightColor)
		radius := e.float(shader.UniformLightRadius)
		return deferredLight(e, func(s gbufferSample) mgl32.Vec3 {
			d := pos.Sub(s.position)
			atten := pointAttenuation(d.Len(), radius)
			if atten == 0 {
				return mgl32.Vec3{}
			}
			return mul3(brdf(f.model, s.surface, safeNormalize(d), s.view), color.Mul(atten))
		})
	}
}

func deferredProbeKernel(f features) kernel {
	return func(e env) stage {
		sky := e.vec3(shader.UniformProbeSkyColor)
		ground := e.vec3(shader.UniformProbeGroundColor)
		up := safeNormalize(e.vec3(shader.UniformProbeUpDirection))
		return deferredLight(e, func(s gbufferSample) mgl32.Vec3 {
			return mul3(s.albedo.Mul(1-s.metallic), hemisphere(sky, ground, s.normal, up))
		})
	}
}

func deferredAmbientKernel(f features) kernel {
	return func(e env) stage {
		ambient := e.vec3(shader.UniformAmbientColor)
		ao := e.sampler(shader.SamplerAmbientOcclusion)
		albedo := e.sampler(shader.SamplerGBufferAlbedo)
		return stage{
			vertex: quadVertex,
			fragment: func(fr *fragment, out *[4]mgl32.Vec4) bool {
				alb := albedo.sample(fr.screenUV)
				if alb[3] == 0 {
					return false
				}
				out[0] = mul3(alb.Vec3(), ambient).Mul(ao.sample(fr.screenUV)[0]).Vec4(0)
				return true
			},
		}
	}
}

func copyKernel(f features) kernel {
	return func(e env) stage {
		src := e.sampler(shader.SamplerSource)
		return stage{
			vertex: quadVertex,
			fragment: func(fr *fragment, out *[4]mgl32.Vec4) bool {
				c := src.sample(fr.v.uv())
				if f.gamma {
					c = toGamma(c.Vec3(), f.preciseGamma).Vec4(c[3])
				}
				out[0] = c
				return true
			},
		}
	}
}

func debugViewKernel(f features) kernel {
	return func(e env) stage {
		src := e.sampler(shader.SamplerSource)
		return stage{
			vertex: quadVertex,
			fragment: func(fr *fragment, out *[4]mgl32.Vec4) bool {
				c := src.sample(fr.v.uv())
				switch f.debugChannel {
				case shader.DebugChannelDepth:
					out[0] = mgl32.Vec4{c[3], c[3], c[3], 1}
				case shader.DebugChannelAmbientOcclusion, shader.DebugChannelShadowAtlas:
					out[0] = mgl32.Vec4{c[0], c[0], c[0], 1}
				default:
					out[0] = c.Vec3().Vec4(1)
				}
				return true
			},
		}
	}
}

const blurTaps = 2

func blurKernel(f features) kernel {
	return func(e env) stage {
		src := e.sampler(shader.SamplerSource)
		step := e.vec2(shader.UniformShadowBlurDirection)
		return stage{
			vertex: quadVertex,
			fragment: func(fr *fragment, out *[4]mgl32.Vec4) bool {
				var sum mgl32.Vec4
				uv := fr.v.uv()
				for i := -blurTaps; i <= blurTaps; i++ {
					sum = sum.Add(src.sample(uv.Add(step.Mul(float32(i)))))
				}
				out[0] = sum.Mul(1 / float32(2*blurTaps+1))
				return true
			},
		}
	}
}

func fogKernel(f features) kernel {
	return func(e env) stage {
		src := e.sampler(shader.SamplerSource)
		g := newGBufferReader(e)
		camWorld := e.mat4(shader.UniformCameraWorldMatrix)
		density := e.float(shader.UniformFogDensity)
		color := e.vec3(shader.UniformFogColor)
		start := e.float(shader.UniformFogStartDistance)
		fallOff := e.float(shader.UniformFogHeightFallOff)
		return stage{
			vertex: quadVertex,
			fragment: func(fr *fragment, out *[4]mgl32.Vec4) bool {
				uv := fr.v.uv()
				c := src.sample(uv)
				nd := g.normalDepth.sample(uv)
				pos := viewPosition(g.invProj, uv, nd[3], g.near, g.far)
				amount := 1 - math32.Exp(-density*math32.Max(pos.Len()-start, 0))
				if fallOff > 0 {
					height := camWorld.Mul4x1(pos.Vec4(1))[1]
					amount *= math32.Exp(-fallOff * math32.Max(height, 0))
				}
				out[0] = mix3(c.Vec3(), color, saturate(amount)).Vec4(c[3])
				return true
			},
		}
	}
}

func ssaoKernel(f features) kernel {
	return func(e env) stage {
		g := newGBufferReader(e)
		proj := e.mat4(shader.UniformProjectionMatrix)
		radius := e.float(shader.UniformAOSampleRadius)
		strength := e.float(shader.UniformAOStrength)
		fallOff := e.float(shader.UniformAOFallOffDistance)
		samples := e.floats(shader.UniformAOSampleKernel)
		n := min(f.aoSamples, len(samples)/3)
		return stage{
			vertex: quadVertex,
			fragment: func(fr *fragment, out *[4]mgl32.Vec4) bool {
				uv := fr.v.uv()
				nd := g.normalDepth.sample(uv)
				if nd[3] >= 1 || n == 0 {
					out[0] = mgl32.Vec4{1, 1, 1, 1}
					return true
				}
				pos := viewPosition(g.invProj, uv, nd[3], g.near, g.far)
				normal := decodeNormal(nd)
				var occlusion float32
				for i := 0; i < n; i++ {
					k := mgl32.Vec3{samples[i*3], samples[i*3+1], samples[i*3+2]}
					if k.Dot(normal) < 0 {
						k = k.Mul(-1)
					}
					p := pos.Add(k.Mul(radius))
					clip := proj.Mul4x1(p.Vec4(1))
					if clip[3] == 0 {
						continue
					}
					suv := mgl32.Vec2{clip[0]/clip[3]*0.5 + 0.5, clip[1]/clip[3]*0.5 + 0.5}
					sceneZ := -(g.near + g.normalDepth.sample(suv)[3]*(g.far-g.near))
					if sceneZ >= p[2]+0.02 {
						diff := math32.Abs(pos[2] - sceneZ)
						occlusion += saturate(fallOff / math32.Max(diff, 1e-4))
					}
				}
				ao := saturate(1 - strength*occlusion/float32(n))
				out[0] = mgl32.Vec4{ao, ao, ao, 1}
				return true
			},
		}
	}
}

func toneMapKernel(f features) kernel {
	return func(e env) stage {
		src := e.sampler(shader.SamplerSource)
		exposure := e.float(shader.UniformExposure)
		return stage{
			vertex: quadVertex,
			fragment: func(fr *fragment, out *[4]mgl32.Vec4) bool {
				c := src.sample(fr.v.uv())
				var rgb mgl32.Vec3
				for i := 0; i < 3; i++ {
					x := math32.Max(c[i]*exposure, 0)
					if f.gamma {
						// filmic curve with the display gamma built in
						x = math32.Max(x-0.004, 0)
						rgb[i] = x * (6.2*x + 0.5) / (x*(6.2*x+1.7) + 0.06)
					} else {
						rgb[i] = x / (1 + x)
					}
				}
				out[0] = rgb.Vec4(c[3])
				return true
			},
		}
	}
}

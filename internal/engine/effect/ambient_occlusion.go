package effect

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/shader"
)

// AmbientOcclusion computes screen-space ambient occlusion from the G-buffer
// normal/depth plane into a single-channel texture the lighting passes sample.
// It renders before lighting rather than in the post-process chain.
type AmbientOcclusion struct {
	SampleRadius    float32
	Strength        float32
	FallOffDistance float32
	// Scale is the render resolution relative to the frame.
	Scale    float32
	Disabled bool

	numSamples int
	kernel     []float32

	width, height int
	textures      [2]gpu.Texture
	targets       [2]gpu.Framebuffer
}

// NewAmbientOcclusion creates an effect taking numSamples samples per pixel.
func NewAmbientOcclusion(numSamples int) *AmbientOcclusion {
	numSamples = max(numSamples, 1)
	return &AmbientOcclusion{
		SampleRadius:    0.5,
		Strength:        1,
		FallOffDistance: 1,
		Scale:           0.5,
		numSamples:      numSamples,
		kernel:          sampleKernel(numSamples),
	}
}

// sampleKernel returns points in the unit hemisphere around +Z, denser near the center.
// The seed is fixed so frames are reproducible.
func sampleKernel(n int) []float32 {
	rng := rand.New(rand.NewPCG(1, 2))
	k := make([]float32, 0, n*3)
	for i := 0; i < n; i++ {
		v := mgl32.Vec3{rng.Float32()*2 - 1, rng.Float32()*2 - 1, rng.Float32()}
		if v.Len() < 1e-4 {
			v = mgl32.Vec3{0, 0, 1}
		}
		v = v.Normalize()
		t := float32(i+1) / float32(n)
		v = v.Mul(0.1 + 0.9*t*t)
		k = append(k, v[0], v[1], v[2])
	}
	return k
}

func (a *AmbientOcclusion) Enabled() bool          { return !a.Disabled }
func (a *AmbientOcclusion) NeedsNormalDepth() bool { return true }

// NumSamples returns the number of samples per pixel.
func (a *AmbientOcclusion) NumSamples() int { return a.numSamples }

// Texture returns the last result, nil before the first Render.
func (a *AmbientOcclusion) Texture() gpu.Texture { return a.textures[0] }

func (a *AmbientOcclusion) resize(dev gpu.Device, width, height int) error {
	w := max(int(float32(width)*a.Scale), 1)
	h := max(int(float32(height)*a.Scale), 1)
	if w == a.width && h == a.height && a.targets[0] != nil {
		return nil
	}
	a.Release()
	for i := range a.textures {
		tex, err := dev.CreateTexture(gpu.TextureDesc{Width: w, Height: h, Format: gpu.FormatRGBA8, Linear: true})
		if err != nil {
			return fmt.Errorf("ambient occlusion texture: %w", err)
		}
		a.textures[i] = tex
		fb, err := dev.CreateFramebuffer([]gpu.Texture{tex}, nil)
		if err != nil {
			return fmt.Errorf("ambient occlusion target: %w", err)
		}
		a.targets[i] = fb
	}
	a.width, a.height = w, h
	return nil
}

// Render computes the occlusion for a frame of the given size and returns the texture
// holding it.
func (a *AmbientOcclusion) Render(ctx *Context, width, height int) (gpu.Texture, error) {
	if err := a.resize(ctx.GC.Device(), width, height); err != nil {
		return nil, err
	}
	defines := ctx.Defines()
	defines[shader.DefineNumAOSamples] = strconv.Itoa(a.numSamples)
	ssao, err := ctx.Programs.Program(shader.ProgramSSAO, defines)
	if err != nil {
		return nil, fmt.Errorf("ambient occlusion: %w", err)
	}
	blur, err := ctx.Programs.Program(shader.ProgramBlur, nil)
	if err != nil {
		return nil, fmt.Errorf("ambient occlusion blur: %w", err)
	}

	ctx.GC.UnbindTexture(a.textures[0])
	ctx.DrawQuad(ssao, a.targets[0], nil, func(gc *gpu.GraphicsContext) {
		gc.SetTexture(shader.SamplerGBufferNormalDepth, 0, ctx.Frame.GBufferNormalDepth())
		gc.SetFloat(shader.UniformAOSampleRadius, a.SampleRadius)
		gc.SetFloat(shader.UniformAOStrength, a.Strength)
		gc.SetFloat(shader.UniformAOFallOffDistance, a.FallOffDistance)
		gc.SetFloatArray(shader.UniformAOSampleKernel, a.kernel)
	})

	// separable blur: 0 -> 1 horizontally, 1 -> 0 vertically
	steps := [2]mgl32.Vec2{{1 / float32(a.width), 0}, {0, 1 / float32(a.height)}}
	for i, step := range steps {
		src, dst := a.textures[i], a.targets[1-i]
		ctx.GC.UnbindTexture(dst.ColorTexture(0))
		ctx.DrawQuad(blur, dst, nil, func(gc *gpu.GraphicsContext) {
			gc.SetTexture(shader.SamplerSource, 0, src)
			gc.SetVec2(shader.UniformShadowBlurDirection, step)
		})
	}
	return a.textures[0], nil
}

// Release frees the render targets.
func (a *AmbientOcclusion) Release() {
	for i := range a.targets {
		if a.targets[i] != nil {
			a.targets[i].Release()
			a.targets[i] = nil
		}
		if a.textures[i] != nil {
			a.textures[i].Release()
			a.textures[i] = nil
		}
	}
	a.width, a.height = 0, 0
}

package effect

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/shader"
	hmath "github.com/Faultbox/helix/pkg/math"
)

// Fog blends the image towards a colour with view distance, thinning out with height.
type Fog struct {
	Density       float32
	Color         mgl32.Vec3 // gamma space
	StartDistance float32
	// HeightFallOff thins the fog above y = 0; zero keeps it uniform.
	HeightFallOff float32
	Disabled      bool
}

// NewFog returns a light grey-blue fog.
func NewFog() *Fog {
	return &Fog{
		Density: 0.001,
		Color:   mgl32.Vec3{0.6, 0.7, 0.8},
	}
}

func (f *Fog) Enabled() bool          { return !f.Disabled }
func (f *Fog) NeedsNormalDepth() bool { return true }
func (f *Fog) OutputsGamma() bool     { return false }

// Draw applies the fog to source.
func (f *Fog) Draw(ctx *Context, source gpu.Texture, target gpu.Framebuffer) error {
	prog, err := ctx.Programs.Program(shader.ProgramFog, ctx.Defines())
	if err != nil {
		return fmt.Errorf("fog: %w", err)
	}
	color := f.Color
	if ctx.Settings.UseGammaCorrection {
		color = hmath.LinearizeColor(color.Vec4(1), ctx.Settings.UsePreciseGamma).Vec3()
	}
	ctx.DrawQuad(prog, target, nil, func(gc *gpu.GraphicsContext) {
		gc.SetTexture(shader.SamplerSource, 0, source)
		gc.SetTexture(shader.SamplerGBufferNormalDepth, 1, ctx.Frame.GBufferNormalDepth())
		gc.SetFloat(shader.UniformFogDensity, f.Density)
		gc.SetVec3(shader.UniformFogColor, color)
		gc.SetFloat(shader.UniformFogStartDistance, f.StartDistance)
		gc.SetFloat(shader.UniformFogHeightFallOff, f.HeightFallOff)
	})
	return nil
}

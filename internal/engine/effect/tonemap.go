package effect

import (
	"fmt"

	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/shader"
)

// ToneMapping compresses HDR colour into display range. With gamma correction enabled
// it uses a filmic curve that also gamma encodes.
type ToneMapping struct {
	Exposure float32
	Disabled bool
}

// NewToneMapping returns a tone mapper with unit exposure.
func NewToneMapping() *ToneMapping {
	return &ToneMapping{Exposure: 1}
}

func (t *ToneMapping) Enabled() bool          { return !t.Disabled }
func (t *ToneMapping) NeedsNormalDepth() bool { return false }

// OutputsGamma is true: the filmic curve bakes in the display gamma, and without gamma
// correction there is nothing left to encode.
func (t *ToneMapping) OutputsGamma() bool { return true }

// Draw tone maps source into target.
func (t *ToneMapping) Draw(ctx *Context, source gpu.Texture, target gpu.Framebuffer) error {
	prog, err := ctx.Programs.Program(shader.ProgramToneMap, ctx.Defines())
	if err != nil {
		return fmt.Errorf("tone mapping: %w", err)
	}
	ctx.DrawQuad(prog, target, nil, func(gc *gpu.GraphicsContext) {
		gc.SetTexture(shader.SamplerSource, 0, source)
		gc.SetFloat(shader.UniformExposure, t.Exposure)
	})
	return nil
}

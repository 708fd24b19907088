// Package effect holds post-process effects and the fullscreen draw they share with
// the renderer's own screen-space passes.
package effect

import (
	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/material"
	"github.com/Faultbox/helix/internal/engine/shader"
)

// Effect is anything attached to the scene or a camera that renders in screen space.
type Effect interface {
	// Enabled reports whether the effect runs this frame.
	Enabled() bool
	// NeedsNormalDepth requests the G-buffer normal/depth plane.
	NeedsNormalDepth() bool
}

// PostProcess is an effect in the post-process chain. Each one reads the previous
// image and writes the next.
type PostProcess interface {
	Effect
	// OutputsGamma reports whether the output is already gamma encoded.
	OutputsGamma() bool
	// Draw renders source into target.
	Draw(ctx *Context, source gpu.Texture, target gpu.Framebuffer) error
}

// Context gives effects access to the renderer's state for one frame.
type Context struct {
	GC       *gpu.GraphicsContext
	Programs *shader.Cache
	View     material.View
	Frame    material.FrameResources
	Settings material.Settings
	// Quad is the fullscreen quad mesh.
	Quad gpu.MeshBuffer
}

// Defines returns the defines every screen-space program is built with.
func (ctx *Context) Defines() map[string]string {
	d := map[string]string{}
	if ctx.Settings.UseGammaCorrection {
		d[shader.DefineGammaCorrection] = ""
		if ctx.Settings.UsePreciseGamma {
			d[shader.DefinePreciseGamma] = ""
		}
	}
	return d
}

// DrawQuad renders program over the whole of target. setup uploads the program's own
// uniforms and textures.
func (ctx *Context) DrawQuad(program gpu.Program, target gpu.Framebuffer, blend *gpu.BlendState, setup func(gc *gpu.GraphicsContext)) {
	gc := ctx.GC
	gc.SetRenderTarget(target)
	DrawFullscreen(gc, ctx.Quad, program, ctx.View, blend, setup)
}

// DrawFullscreen draws the fullscreen quad into the current render target and viewport
// without depth testing.
func DrawFullscreen(gc *gpu.GraphicsContext, quad gpu.MeshBuffer, program gpu.Program, view material.View, blend *gpu.BlendState, setup func(gc *gpu.GraphicsContext)) {
	gc.UseProgram(program)
	gc.SetCullMode(gpu.CullNone)
	gc.SetDepthTest(gpu.DepthDisabled)
	gc.SetDepthMask(false)
	gc.SetBlendState(blend)
	if view != nil {
		material.SetViewUniforms(gc, view)
	}
	if setup != nil {
		setup(gc)
	}
	gc.BindMesh(quad)
	gc.DrawElements()
}

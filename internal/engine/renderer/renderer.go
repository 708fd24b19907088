// Package renderer turns a scene seen through a camera into a frame: shadow maps,
// G-buffer, deferred and forward lighting, post-processing and compositing.
package renderer

import (
	"fmt"
	"strconv"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/helix/internal/engine/camera"
	"github.com/Faultbox/helix/internal/engine/effect"
	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/material"
	"github.com/Faultbox/helix/internal/engine/mesh"
	"github.com/Faultbox/helix/internal/engine/render"
	"github.com/Faultbox/helix/internal/engine/scene"
	"github.com/Faultbox/helix/internal/engine/shader"
	"github.com/Faultbox/helix/internal/engine/shadow"
	"github.com/Faultbox/helix/internal/logger"
	hmath "github.com/Faultbox/helix/pkg/math"
)

// Renderer draws frames. It owns the HDR ping-pong targets, the G-buffer and one
// shadow map renderer per shadow-casting light, and is the single user of its
// GraphicsContext while rendering.
//
// The front and back HDR targets swap several times per frame, so anything reading
// the current image goes through the accessors instead of keeping a texture.
type Renderer struct {
	gc        *gpu.GraphicsContext
	programs  *shader.Cache
	compiler  *material.Compiler
	collector *render.Collector
	quad      gpu.MeshBuffer
	opts      Options

	shadows map[*scene.Light]*shadow.MapRenderer
	seen    map[*scene.Light]bool

	output        gpu.Framebuffer
	width, height int
	depth         gpu.DepthBuffer
	hdr           [2]target
	front         int
	gbuffer       gbuffer
	gbufferFilled bool
	debugCopy     target
	snapshotTaken bool
	ao            gpu.Texture

	errs      error
	stats     FrameStats
	highWater int
	log       *zap.Logger
}

// New creates a renderer drawing through gc.
func New(gc *gpu.GraphicsContext, opts Options) (*Renderer, error) {
	if opts.NumShadowCascades < 1 || opts.NumShadowCascades > shadow.MaxCascades {
		return nil, fmt.Errorf("renderer: %d shadow cascades, want 1 to %d", opts.NumShadowCascades, shadow.MaxCascades)
	}
	quad, err := mesh.FullscreenQuad().Buffer(gc.Device())
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}
	r := &Renderer{
		gc:       gc,
		programs: shader.NewCache(gc.Device(), shader.NewLibrary()),
		quad:     quad,
		opts:     opts,
		shadows:  map[*scene.Light]*shadow.MapRenderer{},
		seen:     map[*scene.Light]bool{},
		log:      logger.Named("renderer"),
	}
	r.compiler = material.NewCompiler(r.programs, r.settings())
	r.compiler.SetStrict(opts.StrictShaders)
	r.compiler.SetBudget(opts.MaxShaderCompilesPerFrame)
	r.collector = render.NewCollector(opts.DefaultLightingModel)
	r.collector.Compiler = r.compiler
	return r, nil
}

func (r *Renderer) settings() material.Settings {
	n := r.gc.Capabilities().MaxDrawBuffers
	if r.opts.MaxDrawBuffers > 0 {
		n = min(n, r.opts.MaxDrawBuffers)
	}
	return material.Settings{
		DefaultLightingModel:  r.opts.DefaultLightingModel,
		NumCascades:           r.opts.NumShadowCascades,
		ShadowFilter:          r.opts.ShadowFilter,
		UseGammaCorrection:    r.opts.UseGammaCorrection,
		UsePreciseGamma:       r.opts.UsePreciseGamma,
		MultipleRenderTargets: n >= numPlanes,
	}
}

// Options returns the current options.
func (r *Renderer) Options() Options { return r.opts }

// SetOptions applies new options. Materials recompile on their next use; shadow maps
// and frame targets are rebuilt when their layout changed.
func (r *Renderer) SetOptions(opts Options) error {
	if opts.NumShadowCascades < 1 || opts.NumShadowCascades > shadow.MaxCascades {
		return fmt.Errorf("renderer: %d shadow cascades, want 1 to %d", opts.NumShadowCascades, shadow.MaxCascades)
	}
	old := r.settings()
	r.opts = opts
	s := r.settings()
	r.compiler.SetSettings(s)
	r.compiler.SetStrict(opts.StrictShaders)
	r.compiler.SetBudget(opts.MaxShaderCompilesPerFrame)
	r.collector.DefaultLightingModel = opts.DefaultLightingModel
	if s.MultipleRenderTargets != old.MultipleRenderTargets {
		r.releaseTargets()
	}
	for l, mr := range r.shadows {
		if mr.NumCascades() != opts.NumShadowCascades || old.ShadowFilter != s.ShadowFilter {
			mr.Release()
			delete(r.shadows, l)
			l.ShadowData = nil
			continue
		}
		mr.SetFilter(opts.ShadowFilter, opts.ShadowSoftness)
		r.applySplitRatios(mr)
	}
	return nil
}

// SetDebugMode selects the buffer shown instead of the final image.
func (r *Renderer) SetDebugMode(m DebugMode) { r.opts.Debug = m }

// SetOutput sets the framebuffer frames are composited into; nil is the device's
// output surface.
func (r *Renderer) SetOutput(fb gpu.Framebuffer) { r.output = fb }

// GraphicsContext returns the state cache the renderer draws through.
func (r *Renderer) GraphicsContext() *gpu.GraphicsContext { return r.gc }

// Programs returns the program cache.
func (r *Renderer) Programs() *shader.Cache { return r.programs }

// Compiler returns the material compiler.
func (r *Renderer) Compiler() *material.Compiler { return r.compiler }

// Collector returns the collector of the last frame.
func (r *Renderer) Collector() *render.Collector { return r.collector }

// Stats returns the statistics of the last frame.
func (r *Renderer) Stats() FrameStats { return r.stats }

// ShadowMapRenderer returns the shadow map renderer of l, nil when l rendered no
// shadow map last frame.
func (r *Renderer) ShadowMapRenderer(l *scene.Light) *shadow.MapRenderer { return r.shadows[l] }

func (r *Renderer) outputSize() (int, int) {
	if r.output != nil {
		return r.output.Width(), r.output.Height()
	}
	return r.gc.Device().DefaultFramebufferSize()
}

func (r *Renderer) effectContext(cam *camera.Camera) *effect.Context {
	return &effect.Context{
		GC:       r.gc,
		Programs: r.programs,
		View:     cam,
		Frame:    r,
		Settings: r.compiler.Settings(),
		Quad:     r.quad,
	}
}

// fail records a failure of an optional stage: an error in strict mode, a debug log
// otherwise since the program cache already warned once.
func (r *Renderer) fail(what string, err error) {
	if r.opts.StrictShaders {
		r.errs = multierr.Append(r.errs, fmt.Errorf("%s: %w", what, err))
		return
	}
	r.log.Debug("stage skipped", zap.String("stage", what), zap.Error(err))
}

func (r *Renderer) program(name string, defines map[string]string) (gpu.Program, bool) {
	p, err := r.programs.Program(name, defines)
	if err != nil {
		r.fail(name, err)
		return nil, false
	}
	return p, true
}

// Render draws one frame of s seen from cam. Missing passes, unready textures and
// unusable targets degrade the frame and are logged; in strict mode shader failures
// are returned.
func (r *Renderer) Render(cam *camera.Camera, s *scene.Scene) error {
	r.stats = FrameStats{}
	r.errs = nil
	r.snapshotTaken = false
	r.gc.ResetStats()
	r.compiler.BeginFrame()

	w, h := r.outputSize()
	if w <= 0 || h <= 0 {
		return nil
	}
	resized, err := r.resize(w, h)
	if err != nil {
		r.log.Warn("frame skipped", zap.Int("width", w), zap.Int("height", h), zap.Error(err))
		return nil
	}
	if resized {
		r.stats.Steps |= StepResize
	}
	ctx := r.effectContext(cam)

	r.collector.Collect(cam, s)
	r.stats.Steps |= StepCollect

	r.renderShadows(ctx, cam, s)
	r.fillGBuffer(cam)
	r.renderAmbientOcclusion(ctx)
	r.accumulateLights(cam)
	if r.opts.Debug == DebugLightAccumulation && r.stats.Ran(StepDeferredLighting) {
		r.snapshot(ctx)
	}
	r.swap()
	r.stats.Steps |= StepSwap
	r.renderForwardOpaque(cam)
	r.copyBackbuffer(ctx)
	r.renderTransparent(cam)
	gammaApplied := r.renderPostProcess(ctx)
	r.composite(ctx, gammaApplied)

	r.finishStats(w, h)
	return multierr.Combine(r.compiler.Err(), r.errs)
}

func (r *Renderer) shadowRenderer(l *scene.Light) *shadow.MapRenderer {
	if mr, ok := r.shadows[l]; ok {
		return mr
	}
	mr := shadow.NewMapRenderer(r.opts.NumShadowCascades, r.opts.ShadowFilter, r.opts.ShadowSoftness)
	mr.Collector().Compiler = r.compiler
	r.applySplitRatios(mr)
	r.shadows[l] = mr
	return mr
}

func (r *Renderer) applySplitRatios(mr *shadow.MapRenderer) {
	if err := mr.SetSplitRatios(r.opts.SplitRatios); err != nil {
		r.log.Warn("ignoring configured split ratios", zap.Error(err))
	}
}

// renderShadows renders the map of every shadow caster and drops the renderers of
// lights that no longer cast.
func (r *Renderer) renderShadows(ctx *effect.Context, cam *camera.Camera, s *scene.Scene) {
	clear(r.seen)
	casters := r.collector.ShadowCasters()
	for _, l := range casters {
		r.seen[l] = true
		r.shadowRenderer(l).Render(ctx, cam, l, s)
		if l.ShadowData != nil {
			r.stats.ShadowMaps++
		}
	}
	for l, mr := range r.shadows {
		if !r.seen[l] {
			mr.Release()
			delete(r.shadows, l)
			l.ShadowData = nil
		}
	}
	if len(casters) > 0 {
		r.stats.Steps |= StepShadows
	}
}

var gbufferPasses = [numPlanes]material.PassType{
	material.GBufferAlbedoPass, material.GBufferNormalDepthPass, material.GBufferSpecularPass,
}

// fillGBuffer renders the opaque list into the G-buffer when something reads it.
func (r *Renderer) fillGBuffer(cam *camera.Camera) {
	r.gbufferFilled = false
	if !r.collector.NeedsGBuffer() && !r.collector.NeedsNormalDepth() {
		return
	}
	if !r.gbuffer.ready() {
		return
	}
	gc := r.gc
	for i := range r.gbuffer.planes {
		gc.UnbindTexture(r.gbuffer.planes[i].tex)
	}
	for i, p := range r.gbuffer.planes {
		gc.SetRenderTarget(p.fb)
		gc.SetClearColor(planeClear[i])
		mask := gpu.ClearColor
		if i == 0 {
			mask |= gpu.ClearDepth
		}
		gc.Clear(mask)
	}

	pc := &render.PassContext{GC: gc, View: cam, Frame: r}
	items := r.collector.Opaque()
	if r.gbuffer.mrt != nil {
		gc.SetRenderTarget(r.gbuffer.mrt)
		render.RenderPass(pc, material.GBufferPass, items)
	} else {
		for i, typ := range gbufferPasses {
			gc.SetRenderTarget(r.gbuffer.planes[i].fb)
			render.RenderPass(pc, typ, items)
		}
	}
	r.gbufferFilled = true
	r.stats.Steps |= StepGBuffer
}

func (r *Renderer) renderAmbientOcclusion(ctx *effect.Context) {
	r.ao = nil
	ao := r.collector.AmbientOcclusion()
	if ao == nil || !r.gbufferFilled {
		return
	}
	tex, err := ao.Render(ctx, r.width, r.height)
	if err != nil {
		r.fail("ambient occlusion", err)
		return
	}
	r.ao = tex
	r.stats.Steps |= StepAmbientOcclusion
}

func (r *Renderer) screenDefines() map[string]string {
	d := map[string]string{}
	if r.opts.UseGammaCorrection {
		d[shader.DefineGammaCorrection] = ""
		if r.opts.UsePreciseGamma {
			d[shader.DefinePreciseGamma] = ""
		}
	}
	return d
}

// deferredProgram selects the screen-space lighting program of l.
func (r *Renderer) deferredProgram(l *scene.Light) (string, map[string]string) {
	defines := r.screenDefines()
	if def := r.opts.DefaultLightingModel.Define(); def != "" {
		defines[def] = ""
	}
	switch l.Kind {
	case scene.DirectionalLight:
		if l.CastsShadows() && l.ShadowData != nil {
			defines[shader.DefineShadow] = ""
			defines[shader.DefineNumCascades] = strconv.Itoa(r.opts.NumShadowCascades)
			defines[shader.DefineShadowFilter] = r.opts.ShadowFilter.Define()
		}
		return shader.ProgramDeferredDir, defines
	case scene.PointLight:
		return shader.ProgramDeferredPoint, defines
	case scene.LightProbe:
		return shader.ProgramDeferredProbe, defines
	}
	return "", nil
}

// bindGBuffer binds the G-buffer planes to the first slots and returns the next free one.
func (r *Renderer) bindGBuffer(gc *gpu.GraphicsContext) int {
	gc.SetTexture(shader.SamplerGBufferAlbedo, 0, r.GBufferAlbedo())
	gc.SetTexture(shader.SamplerGBufferNormalDepth, 1, r.GBufferNormalDepth())
	gc.SetTexture(shader.SamplerGBufferSpecular, 2, r.GBufferSpecular())
	return 3
}

// accumulateLights adds every light's contribution to the front target using only the
// G-buffer.
//
// Deferred materials read the result as their light accumulation. It is cleared even
// when the G-buffer was not filled, leaving them unlit.
func (r *Renderer) accumulateLights(cam *camera.Camera) {
	if !r.collector.NeedsGBuffer() {
		return
	}
	gc := r.gc
	front := r.frontTarget()
	gc.UnbindTexture(front.tex)
	gc.SetRenderTarget(front.fb)
	gc.SetClearColor(mgl32.Vec4{})
	gc.Clear(gpu.ClearColor)
	if !r.gbufferFilled {
		return
	}

	for _, l := range r.collector.Lights() {
		name, defines := r.deferredProgram(l)
		if name == "" {
			continue
		}
		prog, ok := r.program(name, defines)
		if !ok {
			continue
		}
		effect.DrawFullscreen(gc, r.quad, prog, cam, &gpu.BlendAdditive, func(gc *gpu.GraphicsContext) {
			slot := r.bindGBuffer(gc)
			l.SetUniforms(gc, cam, slot)
		})
	}

	if ambient := r.collector.AmbientColor(); ambient != (mgl32.Vec3{}) {
		if prog, ok := r.program(shader.ProgramDeferredAmbient, r.screenDefines()); ok {
			effect.DrawFullscreen(gc, r.quad, prog, cam, &gpu.BlendAdditive, func(gc *gpu.GraphicsContext) {
				slot := r.bindGBuffer(gc)
				gc.SetTexture(shader.SamplerAmbientOcclusion, slot, r.AmbientOcclusion())
				gc.SetVec3(shader.UniformAmbientColor, ambient)
			})
		}
	}
	r.stats.Steps |= StepDeferredLighting
}

// lightPass returns the forward pass type for l and the filter limiting which items it
// reaches.
func lightPass(l *scene.Light) (material.PassType, func(*render.Item) bool, bool) {
	switch l.Kind {
	case scene.LightProbe:
		return material.LightProbePass, nil, true
	case scene.DirectionalLight:
		if l.CastsShadows() && l.ShadowData != nil {
			return material.DirLightShadowPass, nil, true
		}
		return material.DirLightPass, nil, true
	case scene.PointLight:
		sphere := l.BoundingSphere()
		return material.PointLightPass, func(it *render.Item) bool {
			return it.Bounds.IntersectsSphere(sphere)
		}, true
	}
	return 0, nil, false
}

// renderLit draws items with their base pass and then once per light.
func (r *Renderer) renderLit(cam *camera.Camera, items []*render.Item) {
	if len(items) == 0 {
		return
	}
	pc := render.PassContext{GC: r.gc, View: cam, Frame: r}
	render.RenderPass(&pc, material.BasePass, items)
	for _, l := range r.collector.Lights() {
		typ, filter, ok := lightPass(l)
		if !ok {
			continue
		}
		lc := pc
		lc.Light = l
		lc.Filter = filter
		render.RenderPass(&lc, typ, items)
	}
}

func (r *Renderer) background() mgl32.Vec4 {
	c := r.opts.BackgroundColor
	if r.opts.UseGammaCorrection {
		c = hmath.LinearizeColor(c, r.opts.UsePreciseGamma)
	}
	return c
}

func (r *Renderer) renderForwardOpaque(cam *camera.Camera) {
	gc := r.gc
	front := r.frontTarget()
	gc.UnbindTexture(front.tex)
	gc.SetRenderTarget(front.fb)
	gc.SetClearColor(r.background())
	mask := gpu.ClearColor
	if !r.gbufferFilled {
		mask |= gpu.ClearDepth
	}
	gc.Clear(mask)
	r.renderLit(cam, r.collector.Opaque())
	r.stats.Steps |= StepForwardOpaque
}

// copyBackbuffer copies the image so far into the back target for materials that
// sample it.
func (r *Renderer) copyBackbuffer(ctx *effect.Context) {
	if !r.collector.NeedsBackbuffer() {
		return
	}
	prog, ok := r.program(shader.ProgramCopy, nil)
	if !ok {
		return
	}
	src, dst := r.frontTarget(), r.backTarget()
	r.gc.UnbindTexture(dst.tex)
	ctx.DrawQuad(prog, dst.fb, nil, func(gc *gpu.GraphicsContext) {
		gc.SetTexture(shader.SamplerSource, 0, src.tex)
	})
	r.stats.Steps |= StepBackbufferCopy
}

func (r *Renderer) renderTransparent(cam *camera.Camera) {
	items := r.collector.Transparent()
	if len(items) == 0 {
		return
	}
	r.gc.SetRenderTarget(r.frontTarget().fb)
	r.renderLit(cam, items)
	r.stats.Steps |= StepTransparent
}

// renderPostProcess runs the effect chain, each effect reading the back target and
// writing the front one. It reports whether the result is gamma encoded.
func (r *Renderer) renderPostProcess(ctx *effect.Context) bool {
	gammaApplied := !r.opts.UseGammaCorrection
	for _, e := range r.collector.PostEffects() {
		r.swap()
		src, dst := r.backTarget(), r.frontTarget()
		r.gc.UnbindTexture(dst.tex)
		if err := e.Draw(ctx, src.tex, dst.fb); err != nil {
			r.fail(fmt.Sprintf("effect %T", e), err)
			r.swap()
			continue
		}
		if e.OutputsGamma() {
			gammaApplied = true
		}
		r.stats.Steps |= StepPostProcess
	}
	return gammaApplied
}

// snapshot keeps the deferred light accumulation for DebugLightAccumulation.
func (r *Renderer) snapshot(ctx *effect.Context) {
	if r.debugCopy.fb == nil {
		t, err := newTarget(r.gc.Device(), r.width, r.height, gpu.FormatRGBA16F, nil)
		if err != nil {
			r.log.Warn("debug snapshot unavailable", zap.Error(err))
			return
		}
		r.debugCopy = t
	}
	prog, ok := r.program(shader.ProgramCopy, nil)
	if !ok {
		return
	}
	src := r.frontTarget()
	r.gc.UnbindTexture(r.debugCopy.tex)
	ctx.DrawQuad(prog, r.debugCopy.fb, nil, func(gc *gpu.GraphicsContext) {
		gc.SetTexture(shader.SamplerSource, 0, src.tex)
	})
	r.snapshotTaken = true
}

func (r *Renderer) debugTexture() gpu.Texture {
	switch r.opts.Debug {
	case DebugAlbedo:
		return r.GBufferAlbedo()
	case DebugNormals, DebugDepth:
		return r.GBufferNormalDepth()
	case DebugSpecular:
		return r.GBufferSpecular()
	case DebugAmbientOcclusion:
		return r.AmbientOcclusion()
	case DebugLightAccumulation:
		if r.snapshotTaken {
			return r.debugCopy.tex
		}
	case DebugShadowAtlas:
		for _, l := range r.collector.ShadowCasters() {
			if l.ShadowData != nil {
				return l.ShadowData.Atlas
			}
		}
	}
	return nil
}

// composite writes the front target to the output, gamma encoding it unless a stage
// already did. A debug mode shows its buffer instead when that buffer exists.
func (r *Renderer) composite(ctx *effect.Context, gammaApplied bool) {
	src := r.frontTarget().tex
	name, defines := shader.ProgramCopy, map[string]string(nil)
	if tex := r.debugTexture(); tex != nil {
		src = tex
		name = shader.ProgramDebugView
		defines = map[string]string{shader.DefineDebugChannel: r.opts.Debug.channel()}
	} else if !gammaApplied {
		name = shader.ProgramCopyGamma
		if r.opts.UsePreciseGamma {
			defines = map[string]string{shader.DefinePreciseGamma: ""}
		}
	}
	prog, ok := r.program(name, defines)
	if !ok {
		return
	}
	ctx.DrawQuad(prog, r.output, nil, func(gc *gpu.GraphicsContext) {
		gc.SetTexture(shader.SamplerSource, 0, src)
	})
	r.stats.Steps |= StepComposite
}

func (r *Renderer) finishStats(w, h int) {
	st := r.gc.Stats()
	r.stats.DrawCalls = st.DrawCalls
	r.stats.StateChanges = st.StateChanges
	r.stats.Triangles = st.Triangles
	r.stats.Items = r.collector.NumItems()
	r.highWater = max(r.highWater, r.stats.Items)
	r.stats.ItemHighWater = r.highWater
	r.stats.Width, r.stats.Height = w, h
}

// GBufferAlbedo returns the albedo plane, nil when the G-buffer was not filled.
func (r *Renderer) GBufferAlbedo() gpu.Texture { return r.plane(planeAlbedo) }

// GBufferNormalDepth returns the view-space normal and linear depth plane.
func (r *Renderer) GBufferNormalDepth() gpu.Texture { return r.plane(planeNormalDepth) }

// GBufferSpecular returns the roughness/reflectance/metallic plane.
func (r *Renderer) GBufferSpecular() gpu.Texture { return r.plane(planeSpecular) }

func (r *Renderer) plane(i int) gpu.Texture {
	if !r.gbufferFilled {
		return nil
	}
	return r.gbuffer.planes[i].tex
}

// Backbuffer returns the copy of the image made for materials that sample it.
func (r *Renderer) Backbuffer() gpu.Texture { return r.backTarget().tex }

// LightAccumulation returns the deferred lighting result while opaque geometry renders.
func (r *Renderer) LightAccumulation() gpu.Texture { return r.backTarget().tex }

// AmbientOcclusion returns this frame's occlusion, or the white placeholder.
func (r *Renderer) AmbientOcclusion() gpu.Texture {
	if r.ao == nil {
		return r.gc.DefaultTexture()
	}
	return r.ao
}

// AmbientColor returns the summed ambient light of the frame.
func (r *Renderer) AmbientColor() mgl32.Vec3 { return r.collector.AmbientColor() }

// HDRSource returns the texture the next screen-space stage reads.
func (r *Renderer) HDRSource() gpu.Texture { return r.backTarget().tex }

// HDRTarget returns the framebuffer the next screen-space stage writes.
func (r *Renderer) HDRTarget() gpu.Framebuffer { return r.frontTarget().fb }

// Release frees every GPU resource the renderer created.
func (r *Renderer) Release() {
	for l, mr := range r.shadows {
		mr.Release()
		delete(r.shadows, l)
		l.ShadowData = nil
	}
	r.releaseTargets()
	if r.quad != nil {
		r.quad.Release()
		r.quad = nil
	}
	r.programs.Release()
}

package material

import (
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/helix/internal/engine/shader"
	"github.com/Faultbox/helix/internal/logger"
)

// ErrPassFailed wraps the build error of a pass in strict mode.
var ErrPassFailed = errors.New("material pass failed")

// Compiler builds the passes of materials against the engine settings.
//
// Failed passes stay absent until the material changes; in strict mode their errors are
// also collected and returned by Err. A per-frame budget limits how many programs are
// built, spreading the cost of new materials over several frames.
type Compiler struct {
	cache    *shader.Cache
	settings Settings
	// settingsGen changes with the settings, which invalidates every material.
	settingsGen uint64
	strict      bool
	budget      int
	built       int
	errs        error
	log         *zap.Logger
}

// NewCompiler creates a compiler building programs through cache.
func NewCompiler(cache *shader.Cache, settings Settings) *Compiler {
	return &Compiler{
		cache:       cache,
		settings:    settings,
		settingsGen: 1,
		log:         logger.Named("material"),
	}
}

// Settings returns the current settings.
func (c *Compiler) Settings() Settings { return c.settings }

// SetSettings changes the settings. Every material is rebuilt on its next Prepare.
func (c *Compiler) SetSettings(s Settings) {
	if s == c.settings {
		return
	}
	c.settings = s
	c.settingsGen++
}

// SetStrict makes pass failures errors instead of warnings.
func (c *Compiler) SetStrict(strict bool) { c.strict = strict }

// SetBudget limits the program builds per frame. Zero means unlimited.
func (c *Compiler) SetBudget(n int) { c.budget = n }

// BeginFrame resets the per-frame budget and the collected errors.
func (c *Compiler) BeginFrame() {
	c.built = 0
	c.errs = nil
}

// Err returns the strict-mode failures since BeginFrame.
func (c *Compiler) Err() error { return c.errs }

func (c *Compiler) key(m *Material) builtKey {
	return builtKey{compiler: c, generation: m.generation, settings: c.settingsGen}
}

// Prepare builds the passes of m if they are missing or stale and reports whether m is
// ready. A material whose programs do not fit in this frame's budget stays
// uninitialized and is tried again next frame.
func (c *Compiler) Prepare(m *Material) bool {
	key := c.key(m)
	if m.state == Ready && m.built == key {
		return true
	}
	// passes built for another generation or other settings must not be served while
	// the rebuild waits for budget
	if m.state == Ready {
		m.dropPasses()
	}
	plan := c.plan(m)
	if c.budget > 0 {
		missing := 0
		for _, p := range plan {
			if !c.cache.Cached(p.program, p.defines) {
				missing++
			}
		}
		if missing > 0 && c.built+missing > c.budget && c.built > 0 {
			return false
		}
		c.built += missing
	}

	var passes [NumPassTypes]*Pass
	for _, p := range plan {
		prog, err := c.cache.Program(p.program, p.defines)
		if err != nil {
			if c.strict {
				c.errs = multierr.Append(c.errs, fmt.Errorf("material %q %s: %w: %w", m.Name, p.typ, ErrPassFailed, err))
			} else {
				c.log.Warn("material pass disabled",
					zap.String("material", m.Name),
					zap.Stringer("pass", p.typ),
					zap.Error(err))
			}
			continue
		}
		passes[p.typ] = newPass(p.typ, m, prog, c.settings, p.samplers)
	}
	m.passes = passes
	m.state = Ready
	m.built = key
	return true
}

type passPlan struct {
	typ      PassType
	program  string
	defines  map[string]string
	samplers []string
}

// plan lists the passes m takes part in under the current settings.
func (c *Compiler) plan(m *Material) []passPlan {
	s := c.settings
	base := map[string]string{}
	var samplers []string
	if m.colorMap != nil {
		base[shader.DefineColorMap] = ""
		samplers = append(samplers, shader.SamplerColorMap)
	}
	if m.specularMap != nil {
		base[shader.DefineSpecularMap] = ""
		samplers = append(samplers, shader.SamplerSpecularMap)
	}
	if m.useAlphaTest {
		base[shader.DefineAlphaThreshold] = ""
	}
	if m.skinning {
		base[shader.DefineSkinning] = ""
	}
	if m.morphing {
		base[shader.DefineMorphing] = ""
	}
	if s.UseGammaCorrection {
		base[shader.DefineGammaCorrection] = ""
		if s.UsePreciseGamma {
			base[shader.DefinePreciseGamma] = ""
		}
	}
	if m.needsBackbuffer {
		samplers = append(samplers, shader.SamplerBackbuffer)
	}
	if m.needsNormalDepth {
		samplers = append(samplers, shader.SamplerGBufferNormalDepth)
	}

	with := func(extra map[string]string) map[string]string {
		d := make(map[string]string, len(base)+len(extra))
		for k, v := range base {
			d[k] = v
		}
		for k, v := range extra {
			d[k] = v
		}
		return d
	}
	litWith := func(extra map[string]string) map[string]string {
		d := with(extra)
		if def := m.lightingModel.Define(); def != "" {
			d[def] = ""
		}
		return d
	}
	lit := litWith(nil)
	add := func(samplers []string, extra ...string) []string {
		return append(append([]string(nil), samplers...), extra...)
	}

	var plan []passPlan
	switch {
	case m.lightingModel == Unlit:
		plan = append(plan, passPlan{BasePass, shader.ProgramUnlit, with(nil), samplers})
	case m.IsDeferred(s.DefaultLightingModel):
		plan = append(plan, passPlan{BasePass, shader.ProgramApplyGBuffer, with(nil), add(samplers, shader.SamplerLightAccumulation)})
	default:
		shadow := litWith(map[string]string{
			shader.DefineShadow:       "",
			shader.DefineNumCascades:  strconv.Itoa(max(s.NumCascades, 1)),
			shader.DefineShadowFilter: s.ShadowFilter.Define(),
		})
		plan = append(plan,
			passPlan{BasePass, shader.ProgramLitBase, lit, add(samplers, shader.SamplerAmbientOcclusion)},
			passPlan{DirLightPass, shader.ProgramLitDir, lit, samplers},
			passPlan{DirLightShadowPass, shader.ProgramLitDir, shadow, samplers},
			passPlan{PointLightPass, shader.ProgramLitPoint, lit, samplers},
			passPlan{LightProbePass, shader.ProgramLitProbe, lit, samplers},
		)
	}

	plan = append(plan, passPlan{DirLightShadowMapPass, shader.ProgramShadowDepth,
		with(map[string]string{shader.DefineShadowFilter: s.ShadowFilter.Define()}), samplers})

	if m.writesGBuffer() {
		if s.MultipleRenderTargets {
			plan = append(plan, passPlan{GBufferPass, shader.ProgramGBuffer, with(map[string]string{shader.DefineGBufferMRT: ""}), samplers})
		} else {
			plan = append(plan,
				passPlan{GBufferAlbedoPass, shader.ProgramGBuffer, with(map[string]string{shader.DefineGBufferAlbedo: ""}), samplers},
				passPlan{GBufferNormalDepthPass, shader.ProgramGBuffer, with(map[string]string{shader.DefineGBufferNormalDepth: ""}), samplers},
				passPlan{GBufferSpecularPass, shader.ProgramGBuffer, with(map[string]string{shader.DefineGBufferSpecular: ""}), samplers},
			)
		}
	}
	return plan
}

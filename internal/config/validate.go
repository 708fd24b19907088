package config

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/multierr"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

var (
	backends       = []string{"gl", "soft"}
	lightingModels = []string{"ggx", "blinn_phong"}
	shadowFilters  = []string{"hard", "pcf", "vsm", "esm"}
	debugModes     = []string{"none", "albedo", "normals", "depth", "specular", "ao", "light_accumulation", "shadow_atlas"}
)

// Validate reports every out-of-range setting at once.
func (c *Config) Validate() error {
	var err error
	invalid := func(format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	r := c.Render
	if !slices.Contains(backends, r.Backend) {
		invalid("render.backend %q not in %v", r.Backend, backends)
	}
	if r.NumShadowCascades < 1 || r.NumShadowCascades > 4 {
		invalid("render.num_shadow_cascades %d outside 1-4", r.NumShadowCascades)
	}
	if !slices.Contains(lightingModels, r.DefaultLightingModel) {
		invalid("render.default_lighting_model %q not in %v", r.DefaultLightingModel, lightingModels)
	}
	if r.MaxShaderCompilesPerFrame < 0 {
		invalid("render.max_shader_compiles_per_frame must not be negative")
	}
	if r.MaxDrawBuffers < 0 {
		invalid("render.max_draw_buffers must not be negative")
	}

	s := c.Shadows
	if s.MapSize < 16 || s.MapSize&(s.MapSize-1) != 0 {
		invalid("shadows.map_size %d must be a power of two >= 16", s.MapSize)
	}
	if !slices.Contains(shadowFilters, s.Filter) {
		invalid("shadows.filter %q not in %v", s.Filter, shadowFilters)
	}
	if s.Softness < 0 {
		invalid("shadows.softness must not be negative")
	}
	if len(s.SplitRatios) > 0 {
		if len(s.SplitRatios) != r.NumShadowCascades {
			invalid("shadows.split_ratios has %d entries, want %d", len(s.SplitRatios), r.NumShadowCascades)
		}
		prev := float32(0)
		for i, v := range s.SplitRatios {
			if v <= prev || v > 1 {
				invalid("shadows.split_ratios[%d] = %g must increase within (0, 1]", i, v)
				break
			}
			prev = v
		}
	}

	ao := c.AmbientOcclusion
	if ao.Scale <= 0 || ao.Scale > 1 {
		invalid("ambient_occlusion.scale %g outside (0, 1]", ao.Scale)
	}
	if ao.NumSamples < 1 || ao.NumSamples > 32 {
		invalid("ambient_occlusion.num_samples %d outside 1-32", ao.NumSamples)
	}

	if !slices.Contains(debugModes, c.Debug.Mode) {
		invalid("debug.mode %q not in %v", c.Debug.Mode, debugModes)
	}
	return err
}

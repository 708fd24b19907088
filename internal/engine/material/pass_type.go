package material

import (
	"fmt"

	"github.com/Faultbox/helix/internal/engine/shader"
)

// PassType is a lighting or geometry stage a material may take part in.
type PassType int

const (
	BasePass PassType = iota
	DirLightPass
	DirLightShadowPass
	PointLightPass
	LightProbePass
	DirLightShadowMapPass
	// GBufferPass writes all G-buffer planes at once with multiple render targets.
	GBufferPass
	// GBufferAlbedoPass, GBufferNormalDepthPass and GBufferSpecularPass fill one plane
	// each when multiple render targets are unavailable.
	GBufferAlbedoPass
	GBufferNormalDepthPass
	GBufferSpecularPass

	NumPassTypes
)

var passTypeNames = [NumPassTypes]string{
	"base", "dir_light", "dir_light_shadow", "point_light", "light_probe",
	"dir_light_shadow_map", "gbuffer", "gbuffer_albedo", "gbuffer_normal_depth", "gbuffer_specular",
}

func (t PassType) String() string {
	if t < 0 || t >= NumPassTypes {
		return fmt.Sprintf("PassType(%d)", int(t))
	}
	return passTypeNames[t]
}

// IsGBuffer reports whether t writes G-buffer planes.
func (t PassType) IsGBuffer() bool {
	return t >= GBufferPass && t <= GBufferSpecularPass
}

// IsForwardLight reports whether t adds one light's contribution to a lit surface.
func (t PassType) IsForwardLight() bool {
	return t >= DirLightPass && t <= LightProbePass
}

// LightingModel selects the BRDF a material is shaded with.
type LightingModel int

const (
	Unlit LightingModel = iota
	BlinnPhong
	GGX
)

func (m LightingModel) String() string {
	switch m {
	case Unlit:
		return "unlit"
	case BlinnPhong:
		return "blinn_phong"
	case GGX:
		return "ggx"
	}
	return fmt.Sprintf("LightingModel(%d)", int(m))
}

// ParseLightingModel converts a configuration name into a LightingModel.
func ParseLightingModel(s string) (LightingModel, error) {
	switch s {
	case "unlit":
		return Unlit, nil
	case "blinn_phong":
		return BlinnPhong, nil
	case "ggx":
		return GGX, nil
	}
	return Unlit, fmt.Errorf("unknown lighting model %q", s)
}

// Define returns the shader define selecting the model, or "" for Unlit.
func (m LightingModel) Define() string {
	switch m {
	case BlinnPhong:
		return shader.DefineLightingBlinnPhong
	case GGX:
		return shader.DefineLightingGGX
	}
	return ""
}

// ShadowFilter selects how shadow maps are stored and sampled.
type ShadowFilter int

const (
	ShadowHard ShadowFilter = iota
	ShadowPCF
	ShadowVSM
	ShadowESM
)

func (f ShadowFilter) String() string {
	switch f {
	case ShadowHard:
		return "hard"
	case ShadowPCF:
		return "pcf"
	case ShadowVSM:
		return "vsm"
	case ShadowESM:
		return "esm"
	}
	return fmt.Sprintf("ShadowFilter(%d)", int(f))
}

// ParseShadowFilter converts a configuration name into a ShadowFilter.
func ParseShadowFilter(s string) (ShadowFilter, error) {
	for f := ShadowHard; f <= ShadowESM; f++ {
		if f.String() == s {
			return f, nil
		}
	}
	return ShadowHard, fmt.Errorf("unknown shadow filter %q", s)
}

// Define returns the HX_SHADOW_FILTER value.
func (f ShadowFilter) Define() string {
	switch f {
	case ShadowPCF:
		return shader.ShadowFilterPCF
	case ShadowVSM:
		return shader.ShadowFilterVSM
	case ShadowESM:
		return shader.ShadowFilterESM
	}
	return shader.ShadowFilterHard
}

// NeedsBlur reports whether the shadow atlas is blurred after rendering.
func (f ShadowFilter) NeedsBlur() bool {
	return f == ShadowVSM || f == ShadowESM
}

// Settings are the engine-wide options passes are compiled against.
type Settings struct {
	DefaultLightingModel LightingModel
	NumCascades          int
	ShadowFilter         ShadowFilter
	UseGammaCorrection   bool
	UsePreciseGamma      bool
	// MultipleRenderTargets fills the G-buffer in one pass.
	MultipleRenderTargets bool
}

package renderer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/helix/internal/config"
	"github.com/Faultbox/helix/internal/engine/material"
	"github.com/Faultbox/helix/internal/engine/shader"
)

// DebugMode replaces the composited image with an intermediate buffer.
type DebugMode int

const (
	DebugNone DebugMode = iota
	DebugAlbedo
	DebugNormals
	DebugDepth
	DebugSpecular
	DebugAmbientOcclusion
	// DebugLightAccumulation shows the lit image before post-processing.
	DebugLightAccumulation
	DebugShadowAtlas
)

var debugModeNames = []string{"none", "albedo", "normals", "depth", "specular", "ao", "light_accumulation", "shadow_atlas"}

func (m DebugMode) String() string {
	if m < 0 || int(m) >= len(debugModeNames) {
		return fmt.Sprintf("DebugMode(%d)", int(m))
	}
	return debugModeNames[m]
}

// ParseDebugMode converts a configuration name into a DebugMode.
func ParseDebugMode(s string) (DebugMode, error) {
	for i, name := range debugModeNames {
		if name == s {
			return DebugMode(i), nil
		}
	}
	return DebugNone, fmt.Errorf("unknown debug mode %q", s)
}

func (m DebugMode) channel() string {
	switch m {
	case DebugAlbedo:
		return shader.DebugChannelAlbedo
	case DebugNormals:
		return shader.DebugChannelNormals
	case DebugDepth:
		return shader.DebugChannelDepth
	case DebugSpecular:
		return shader.DebugChannelSpecular
	case DebugAmbientOcclusion:
		return shader.DebugChannelAmbientOcclusion
	case DebugLightAccumulation:
		return shader.DebugChannelLightAccumulation
	case DebugShadowAtlas:
		return shader.DebugChannelShadowAtlas
	}
	return ""
}

// Options configure a Renderer.
type Options struct {
	NumShadowCascades    int
	DefaultLightingModel material.LightingModel
	UseGammaCorrection   bool
	UsePreciseGamma      bool
	ShadowFilter         material.ShadowFilter
	ShadowSoftness       float32
	// SplitRatios overrides the halving cascade splits when set.
	SplitRatios []float32
	// StrictShaders returns shader failures from Render instead of logging them.
	StrictShaders bool
	// MaxShaderCompilesPerFrame spreads program builds over frames; 0 is unlimited.
	MaxShaderCompilesPerFrame int
	// MaxDrawBuffers caps the MRT count; 0 uses the device maximum.
	MaxDrawBuffers  int
	BackgroundColor mgl32.Vec4 // gamma space
	Debug           DebugMode
}

// DefaultOptions mirrors config.Default.
func DefaultOptions() Options {
	return Options{
		NumShadowCascades:    3,
		DefaultLightingModel: material.GGX,
		UseGammaCorrection:   true,
		ShadowFilter:         material.ShadowPCF,
		ShadowSoftness:       1,
		BackgroundColor:      mgl32.Vec4{0, 0, 0, 1},
	}
}

// OptionsFromConfig converts the render, shadow and debug sections of cfg.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	model, err := material.ParseLightingModel(cfg.Render.DefaultLightingModel)
	if err != nil {
		return Options{}, err
	}
	filter, err := material.ParseShadowFilter(cfg.Shadows.Filter)
	if err != nil {
		return Options{}, err
	}
	debug, err := ParseDebugMode(cfg.Debug.Mode)
	if err != nil {
		return Options{}, err
	}
	return Options{
		NumShadowCascades:         cfg.Render.NumShadowCascades,
		DefaultLightingModel:      model,
		UseGammaCorrection:        cfg.Render.UseGammaCorrection,
		UsePreciseGamma:           cfg.Render.UsePreciseGammaCorrection,
		ShadowFilter:              filter,
		ShadowSoftness:            cfg.Shadows.Softness,
		SplitRatios:               cfg.Shadows.SplitRatios,
		StrictShaders:             cfg.Render.StrictShaders,
		MaxShaderCompilesPerFrame: cfg.Render.MaxShaderCompilesPerFrame,
		MaxDrawBuffers:            cfg.Render.MaxDrawBuffers,
		BackgroundColor:           mgl32.Vec4(cfg.Render.BackgroundColor),
		Debug:                     debug,
	}, nil
}

// Package config handles engine configuration loading and management.
package config

// Config holds all engine settings.
type Config struct {
	Window           WindowConfig           `yaml:"window" toml:"window"`
	Render           RenderConfig           `yaml:"render" toml:"render"`
	Shadows          ShadowConfig           `yaml:"shadows" toml:"shadows"`
	AmbientOcclusion AmbientOcclusionConfig `yaml:"ambient_occlusion" toml:"ambient_occlusion"`
	Logging          LoggingConfig          `yaml:"logging" toml:"logging"`
	Debug            DebugConfig            `yaml:"debug" toml:"debug"`
}

// WindowConfig holds display settings for the interactive tools.
type WindowConfig struct {
	Width      int  `yaml:"width" toml:"width"`
	Height     int  `yaml:"height" toml:"height"`
	Fullscreen bool `yaml:"fullscreen" toml:"fullscreen"`
	VSync      bool `yaml:"vsync" toml:"vsync"`
}

// RenderConfig holds the frame pipeline settings.
type RenderConfig struct {
	Backend                   string     `yaml:"backend" toml:"backend"` // gl or soft
	NumShadowCascades         int        `yaml:"num_shadow_cascades" toml:"num_shadow_cascades"`
	DefaultLightingModel      string     `yaml:"default_lighting_model" toml:"default_lighting_model"` // ggx or blinn_phong
	UseGammaCorrection        bool       `yaml:"use_gamma_correction" toml:"use_gamma_correction"`
	UsePreciseGammaCorrection bool       `yaml:"use_precise_gamma_correction" toml:"use_precise_gamma_correction"`
	StrictShaders             bool       `yaml:"strict_shaders" toml:"strict_shaders"`
	MaxShaderCompilesPerFrame int        `yaml:"max_shader_compiles_per_frame" toml:"max_shader_compiles_per_frame"` // 0 = unlimited
	MaxDrawBuffers            int        `yaml:"max_draw_buffers" toml:"max_draw_buffers"`                           // 0 = device maximum
	BackgroundColor           [4]float32 `yaml:"background_color" toml:"background_color"`
}

// ShadowConfig holds defaults for shadow-casting directional lights.
type ShadowConfig struct {
	MapSize     int       `yaml:"map_size" toml:"map_size"`
	DepthBias   float32   `yaml:"depth_bias" toml:"depth_bias"`
	Filter      string    `yaml:"filter" toml:"filter"`             // hard, pcf, vsm, esm
	Softness    float32   `yaml:"softness" toml:"softness"`         // shadow map texels
	SplitRatios []float32 `yaml:"split_ratios" toml:"split_ratios"` // empty = halving defaults
}

// AmbientOcclusionConfig holds SSAO settings.
type AmbientOcclusionConfig struct {
	Enabled         bool    `yaml:"enabled" toml:"enabled"`
	NumSamples      int     `yaml:"num_samples" toml:"num_samples"`
	SampleRadius    float32 `yaml:"sample_radius" toml:"sample_radius"`
	Strength        float32 `yaml:"strength" toml:"strength"`
	FallOffDistance float32 `yaml:"fall_off_distance" toml:"fall_off_distance"`
	Scale           float32 `yaml:"scale" toml:"scale"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level"`
	LogFile string `yaml:"log_file" toml:"log_file"`
}

// DebugConfig holds diagnostic settings.
type DebugConfig struct {
	Mode string `yaml:"mode" toml:"mode"` // none, albedo, normals, depth, specular, ao, light_accumulation, shadow_atlas
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Width:  1280,
			Height: 720,
			VSync:  true,
		},
		Render: RenderConfig{
			Backend:                   "gl",
			NumShadowCascades:         3,
			DefaultLightingModel:      "ggx",
			UseGammaCorrection:        true,
			UsePreciseGammaCorrection: false,
			MaxShaderCompilesPerFrame: 0,
			BackgroundColor:           [4]float32{0, 0, 0, 1},
		},
		Shadows: ShadowConfig{
			MapSize:   1024,
			DepthBias: 0.0005,
			Filter:    "pcf",
			Softness:  1,
		},
		AmbientOcclusion: AmbientOcclusionConfig{
			Enabled:         false,
			NumSamples:      8,
			SampleRadius:    0.5,
			Strength:        1,
			FallOffDistance: 1,
			Scale:           0.5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Debug: DebugConfig{
			Mode: "none",
		},
	}
}

package config

import "flag"

var (
	flagConfig   = flag.String("config", "", "Path to config file (.yaml or .toml)")
	flagDebug    = flag.Bool("debug", false, "Enable debug logging")
	flagBackend  = flag.String("backend", "", "Rendering backend: gl or soft")
	flagWidth    = flag.Int("width", 0, "Output width")
	flagHeight   = flag.Int("height", 0, "Output height")
	flagCascades = flag.Int("cascades", 0, "Number of shadow cascades (1-4)")
	flagView     = flag.String("view", "", "Debug view: albedo, normals, depth, specular, ao, light_accumulation, shadow_atlas")
	flagStrict   = flag.Bool("strict-shaders", false, "Fail on shader compile errors")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagBackend != "" {
		cfg.Render.Backend = *flagBackend
	}
	if *flagWidth > 0 {
		cfg.Window.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Window.Height = *flagHeight
	}
	if *flagCascades > 0 {
		cfg.Render.NumShadowCascades = *flagCascades
	}
	if *flagView != "" {
		cfg.Debug.Mode = *flagView
	}
	if *flagStrict {
		cfg.Render.StrictShaders = true
	}
}

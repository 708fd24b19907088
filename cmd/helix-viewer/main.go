// Package main is the entry point for the helix model viewer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/helix/internal/config"
	"github.com/Faultbox/helix/internal/logger"
	"github.com/Faultbox/helix/internal/viewer"
)

var (
	flagModels      = flag.String("model", "", "Comma-separated glTF/GLB files to load")
	flagAssets      = flag.String("assets", "", "Comma-separated asset directories, later ones win")
	flagScreenshots = flag.String("screenshots", "screenshots", "Directory for F12 screenshots")
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== Helix Viewer ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	if cfg.Render.Backend != "gl" {
		logger.Error("the viewer needs the gl backend; use helix-render for soft rendering",
			zap.String("backend", cfg.Render.Backend))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	v, err := viewer.New(cfg, viewer.Options{
		Title:         "Helix Viewer",
		ConfigPath:    config.ConfigPath(),
		AssetRoots:    splitList(*flagAssets),
		Models:        splitList(*flagModels),
		ScreenshotDir: *flagScreenshots,
	})
	if err != nil {
		logger.Error("failed to create viewer", zap.Error(err))
		os.Exit(1)
	}
	defer v.Close()

	if err := v.Run(ctx); err != nil {
		logger.Error("viewer error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("viewer closed normally")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

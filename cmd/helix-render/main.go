// Package main renders the showcase scene offline with the software device and
// writes PNG files.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/helix/internal/assets"
	"github.com/Faultbox/helix/internal/config"
	"github.com/Faultbox/helix/internal/engine/camera"
	"github.com/Faultbox/helix/internal/engine/debug"
	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/gpu/soft"
	"github.com/Faultbox/helix/internal/engine/renderer"
	"github.com/Faultbox/helix/internal/logger"
	"github.com/Faultbox/helix/internal/showcase"
)

var (
	flagModels = flag.String("model", "", "Comma-separated glTF/GLB files to load")
	flagAssets = flag.String("assets", "", "Comma-separated asset directories, later ones win")
	flagOut    = flag.String("out", "helix.png", "Output PNG path")
	flagAll    = flag.String("all-views", "", "Also write every debug view into this directory")
	flagYaw    = flag.Float64("yaw", 30, "Camera yaw in degrees")
	flagPitch  = flag.Float64("pitch", 25, "Camera pitch in degrees")
)

type job struct {
	models     []string
	assetRoots []string
	out        string
	viewsDir   string
	yaw, pitch float32
}

func main() {
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

	if cfg.Render.Backend != "soft" {
		logger.Info("rendering offline with the soft backend", zap.String("configured", cfg.Render.Backend))
	}

	written, err := run(cfg, job{
		models:     splitList(*flagModels),
		assetRoots: splitList(*flagAssets),
		out:        *flagOut,
		viewsDir:   *flagAll,
		yaw:        float32(*flagYaw),
		pitch:      float32(*flagPitch),
	})
	if err != nil {
		logger.Error("render failed", zap.Error(err))
		os.Exit(1)
	}
	for _, path := range written {
		fmt.Println(path)
	}
}

// run renders one frame per requested view and returns the files written.
func run(cfg *config.Config, j job) ([]string, error) {
	dev := soft.New(cfg.Window.Width, cfg.Window.Height)
	gc, err := gpu.NewGraphicsContext(dev)
	if err != nil {
		return nil, err
	}
	opts, err := renderer.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	r, err := renderer.New(gc, opts)
	if err != nil {
		return nil, err
	}
	defer r.Release()

	manager := assets.NewManager(dev)
	defer manager.Close()
	for _, root := range j.assetRoots {
		if err := manager.AddRoot(root); err != nil {
			return nil, err
		}
	}

	show, err := showcase.New(cfg)
	if err != nil {
		return nil, err
	}
	defer show.Release()
	for _, path := range j.models {
		if _, err := show.AddModel(manager, path); err != nil {
			return nil, err
		}
	}

	cam := camera.NewPerspective(mgl32.DegToRad(60), float32(cfg.Window.Width)/float32(cfg.Window.Height), 0.1, 200)
	orbit := camera.NewOrbitController(60)
	orbit.FitToBounds(show.Bounds(), cam.FieldOfView())
	orbit.Yaw = mgl32.DegToRad(j.yaw)
	orbit.Pitch = mgl32.DegToRad(j.pitch)
	orbit.Snap()
	orbit.Update(cam)

	capture := debug.NewScreenshotCapture("", "helix")
	shoot := func(path string) error {
		if err := r.Render(cam, show.Scene); err != nil {
			return err
		}
		img, err := debug.ReadImage(dev, nil, 0)
		if err != nil {
			return err
		}
		_, err = capture.Save(img, path)
		return err
	}

	var written []string
	if err := shoot(j.out); err != nil {
		return nil, fmt.Errorf("render %s: %w", j.out, err)
	}
	written = append(written, j.out)
	logger.Info("frame written", zap.String("path", j.out), zap.Int("draw_calls", r.Stats().DrawCalls))

	if j.viewsDir == "" {
		return written, nil
	}
	for m := renderer.DebugAlbedo; m <= renderer.DebugShadowAtlas; m++ {
		r.SetDebugMode(m)
		path := filepath.Join(j.viewsDir, m.String()+".png")
		if err := shoot(path); err != nil {
			return written, fmt.Errorf("render %s view: %w", m, err)
		}
		written = append(written, path)
	}
	return written, nil
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

// Package viewer implements the interactive model viewer: the window loop, camera
// controls, debug views and live config reloading.
package viewer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/helix/internal/assets"
	"github.com/Faultbox/helix/internal/config"
	"github.com/Faultbox/helix/internal/engine/camera"
	"github.com/Faultbox/helix/internal/engine/debug"
	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/gpu/opengl"
	"github.com/Faultbox/helix/internal/engine/input"
	"github.com/Faultbox/helix/internal/engine/renderer"
	"github.com/Faultbox/helix/internal/engine/window"
	"github.com/Faultbox/helix/internal/logger"
	"github.com/Faultbox/helix/internal/showcase"
)

const (
	targetFPS = 60
	fovY      = 60
	panSpeed  = 0.1
)

// Options configure a Viewer beyond the engine config.
type Options struct {
	Title string
	// ConfigPath is watched for changes when set.
	ConfigPath    string
	AssetRoots    []string
	Models        []string
	ScreenshotDir string
}

// Viewer is the interactive viewer instance.
type Viewer struct {
	cfg     *config.Config
	opts    Options
	running bool

	window   *window.Window
	input    *input.Input
	device   *opengl.Device
	renderer *renderer.Renderer
	assets   *assets.Manager

	show        *showcase.Showcase
	camera      *camera.Camera
	orbit       *camera.OrbitController
	bounds      *debug.BoundsOverlay
	showBounds  bool
	screenshots *debug.ScreenshotCapture

	reload chan *config.Config
	log    *zap.Logger
}

// New opens the window and builds the scene.
func New(cfg *config.Config, opts Options) (*Viewer, error) {
	v := &Viewer{
		cfg:         cfg,
		opts:        opts,
		input:       input.New(),
		orbit:       camera.NewOrbitController(targetFPS),
		bounds:      debug.NewBoundsOverlay(mgl32.Vec3{0.2, 1, 0.3}),
		screenshots: debug.NewScreenshotCapture(opts.ScreenshotDir, "helix"),
		reload:      make(chan *config.Config, 1),
		log:         logger.Named("viewer"),
	}
	v.log.Info("initializing viewer",
		zap.String("title", opts.Title),
		zap.Int("width", cfg.Window.Width),
		zap.Int("height", cfg.Window.Height))

	var err error
	v.window, err = window.New(opts.Title, cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// the device needs the window's GL context
	v.device, err = opengl.New(v.window.DrawableSize)
	if err != nil {
		v.Close()
		return nil, fmt.Errorf("failed to create device: %w", err)
	}
	gc, err := gpu.NewGraphicsContext(v.device)
	if err != nil {
		v.Close()
		return nil, err
	}
	ropts, err := renderer.OptionsFromConfig(cfg)
	if err != nil {
		v.Close()
		return nil, err
	}
	v.renderer, err = renderer.New(gc, ropts)
	if err != nil {
		v.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	v.assets = assets.NewManager(v.device)
	for _, root := range opts.AssetRoots {
		if err := v.assets.AddRoot(root); err != nil {
			v.Close()
			return nil, err
		}
	}

	v.show, err = showcase.New(cfg)
	if err != nil {
		v.Close()
		return nil, err
	}
	for _, path := range opts.Models {
		if _, err := v.show.AddModel(v.assets, path); err != nil {
			v.Close()
			return nil, err
		}
	}

	w, h := v.window.DrawableSize()
	v.camera = camera.NewPerspective(mgl32.DegToRad(fovY), aspect(w, h), 0.1, 200)
	v.orbit.FitToBounds(v.show.Bounds(), v.camera.FieldOfView())
	v.orbit.Snap()

	v.log.Info("viewer initialized")
	return v, nil
}

// Run runs the main loop until the window closes or ctx is done.
func (v *Viewer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if v.opts.ConfigPath != "" {
		go func() {
			err := config.Watch(ctx, v.opts.ConfigPath, func(cfg *config.Config) {
				// keep only the newest config
				select {
				case <-v.reload:
				default:
				}
				v.reload <- cfg
			})
			if err != nil {
				v.log.Warn("config watch stopped", zap.Error(err))
			}
		}()
	}

	v.running = true
	lastTime := time.Now()
	frameCount := 0
	fpsTimer := time.Now()

	v.log.Info("starting viewer loop")

	for v.running && ctx.Err() == nil {
		now := time.Now()
		dt := now.Sub(lastTime).Seconds()
		lastTime = now

		// 1. Process input
		if v.input.Update() {
			v.running = false
			break
		}
		v.handleEvents()

		// 2. Update camera and pending reloads
		v.update()

		// 3. Render
		if err := v.renderer.Render(v.camera, v.show.Scene); err != nil {
			return fmt.Errorf("render error: %w", err)
		}
		if v.input.IsKeyPressed(sdl.SCANCODE_F12) {
			v.screenshot()
		}

		// 4. Present
		v.window.SwapBuffers()

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			st := v.renderer.Stats()
			v.window.SetTitle(statusLine(frameCount, st, v.renderer.Options().Debug))
			v.log.Debug("fps",
				zap.Int("count", frameCount),
				zap.String("dt", fmt.Sprintf("%.2fms", dt*1000)),
				zap.Int("draw_calls", st.DrawCalls),
				zap.Int("items", st.Items))
			frameCount = 0
			fpsTimer = time.Now()
		}
	}
	return nil
}

func (v *Viewer) handleEvents() {
	for _, e := range v.input.Events() {
		if e.Type != input.EventKeyDown {
			continue
		}
		if mode, ok := debugModeForKey(e.Key); ok {
			v.renderer.SetDebugMode(mode)
			v.log.Info("debug view", zap.Stringer("mode", mode))
			continue
		}
		switch e.Key {
		case sdl.SCANCODE_ESCAPE:
			v.running = false
		case sdl.SCANCODE_B:
			v.toggleBounds()
		case sdl.SCANCODE_F:
			v.orbit.FitToBounds(v.show.Bounds(), v.camera.FieldOfView())
		}
	}

	for _, path := range v.input.DroppedFiles() {
		if !isModelFile(path) {
			v.log.Warn("ignoring dropped file", zap.String("path", path))
			continue
		}
		if _, err := v.show.AddModel(v.assets, path); err != nil {
			v.log.Error("failed to load dropped model", zap.Error(err))
			continue
		}
		v.orbit.FitToBounds(v.show.Bounds(), v.camera.FieldOfView())
		if v.showBounds {
			v.bounds.Update(v.show.Scene)
		}
	}
}

func (v *Viewer) update() {
	select {
	case cfg := <-v.reload:
		v.applyConfig(cfg)
	default:
	}

	if dx, dy := v.input.Drag(); dx != 0 || dy != 0 {
		v.orbit.HandleDrag(dx, dy)
	}
	if dx, dy := v.input.Pan(); dx != 0 || dy != 0 {
		v.orbit.HandleMovement(dy*panSpeed, -dx*panSpeed, 0)
	}
	if wheel := v.input.Wheel(); wheel != 0 {
		v.orbit.HandleZoom(wheel)
	}

	w, h := v.window.DrawableSize()
	v.camera.SetAspectRatio(aspect(w, h))
	v.orbit.Update(v.camera)
}

func (v *Viewer) applyConfig(cfg *config.Config) {
	opts, err := renderer.OptionsFromConfig(cfg)
	if err != nil {
		v.log.Warn("config reload rejected", zap.Error(err))
		return
	}
	if err := v.renderer.SetOptions(opts); err != nil {
		v.log.Warn("config reload rejected", zap.Error(err))
		return
	}
	v.show.ApplyConfig(cfg)
	v.window.SetVSync(cfg.Window.VSync)
	v.cfg = cfg
	v.log.Info("config reloaded")
}

func (v *Viewer) toggleBounds() {
	v.showBounds = !v.showBounds
	if v.showBounds {
		v.bounds.Update(v.show.Scene)
	} else {
		v.bounds.Remove(v.show.Scene)
	}
}

func (v *Viewer) screenshot() {
	path, err := v.screenshots.Capture(v.device, nil, 0)
	if err != nil {
		v.log.Error("screenshot failed", zap.Error(err))
		return
	}
	v.log.Info("screenshot saved", zap.String("path", path))
}

// Close releases everything in reverse creation order.
func (v *Viewer) Close() {
	v.log.Info("closing viewer")
	if v.show != nil {
		v.bounds.Remove(v.show.Scene)
		v.show.Release()
	}
	if v.assets != nil {
		v.assets.Close()
	}
	if v.renderer != nil {
		v.renderer.Release()
	}
	if v.window != nil {
		v.window.Close()
	}
}

var debugKeys = map[sdl.Scancode]renderer.DebugMode{
	sdl.SCANCODE_F1: renderer.DebugNone,
	sdl.SCANCODE_F2: renderer.DebugAlbedo,
	sdl.SCANCODE_F3: renderer.DebugNormals,
	sdl.SCANCODE_F4: renderer.DebugDepth,
	sdl.SCANCODE_F5: renderer.DebugSpecular,
	sdl.SCANCODE_F6: renderer.DebugAmbientOcclusion,
	sdl.SCANCODE_F7: renderer.DebugLightAccumulation,
	sdl.SCANCODE_F8: renderer.DebugShadowAtlas,
}

func debugModeForKey(key sdl.Scancode) (renderer.DebugMode, bool) {
	m, ok := debugKeys[key]
	return m, ok
}

func isModelFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gltf", ".glb":
		return true
	}
	return false
}

func aspect(w, h int) float32 {
	if w <= 0 || h <= 0 {
		return 1
	}
	return float32(w) / float32(h)
}

func statusLine(fps int, st renderer.FrameStats, mode renderer.DebugMode) string {
	s := fmt.Sprintf("%d fps | %dx%d | %d draws | %d items | %d shadow maps",
		fps, st.Width, st.Height, st.DrawCalls, st.Items, st.ShadowMaps)
	if mode != renderer.DebugNone {
		s += " | " + mode.String()
	}
	return s
}

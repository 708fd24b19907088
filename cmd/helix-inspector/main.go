// Helix Inspector - a Dear ImGui tool for examining the renderer: debug views,
// options, frame statistics and the scene graph.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sqweek/dialog"
	"go.uber.org/zap"

	"github.com/Faultbox/helix/internal/assets"
	"github.com/Faultbox/helix/internal/config"
	"github.com/Faultbox/helix/internal/engine/camera"
	"github.com/Faultbox/helix/internal/engine/debug"
	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/gpu/opengl"
	"github.com/Faultbox/helix/internal/engine/picking"
	"github.com/Faultbox/helix/internal/engine/renderer"
	"github.com/Faultbox/helix/internal/engine/scene"
	"github.com/Faultbox/helix/internal/engine/ui"
	"github.com/Faultbox/helix/internal/logger"
	"github.com/Faultbox/helix/internal/showcase"
)

var (
	flagModel       = flag.String("model", "", "glTF/GLB file to open")
	flagAssets      = flag.String("assets", "", "Comma-separated asset directories, later ones win")
	flagScreenshots = flag.String("screenshots", "screenshots", "Directory for screenshots")
)

func main() {
	runtime.LockOSThread()
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

	app, err := NewApp(cfg)
	if err != nil {
		logger.Error("failed to start inspector", zap.Error(err))
		os.Exit(1)
	}
	defer app.Close()

	for _, root := range strings.Split(*flagAssets, ",") {
		if root = strings.TrimSpace(root); root != "" {
			if err := app.assets.AddRoot(root); err != nil {
				logger.Error("bad asset root", zap.Error(err))
			}
		}
	}
	if *flagModel != "" {
		app.openModel(*flagModel)
	}

	app.Run()
}

// App is the inspector state.
type App struct {
	cfg *config.Config
	log *zap.Logger

	ui       *ui.Backend
	device   *opengl.Device
	gc       *gpu.GraphicsContext
	renderer *renderer.Renderer
	assets   *assets.Manager

	show        *showcase.Showcase
	camera      *camera.Camera
	orbit       *camera.OrbitController
	viewport    ui.Viewport
	bounds      *debug.BoundsOverlay
	showBounds  bool
	screenshots *debug.ScreenshotCapture

	// Paths picked in the file dialog; models must load on the main thread.
	pendingModels chan string
	statusMsg     string
	lastMousePos  imgui.Vec2
	selected      *scene.Node
}

// NewApp opens the window and builds the renderer and the scene.
func NewApp(cfg *config.Config) (*App, error) {
	app := &App{
		cfg:           cfg,
		log:           logger.Named("inspector"),
		orbit:         camera.NewOrbitController(60),
		bounds:        debug.NewBoundsOverlay(mgl32.Vec3{1, 0.8, 0.1}),
		screenshots:   debug.NewScreenshotCapture(*flagScreenshots, "inspector"),
		pendingModels: make(chan string, 4),
	}

	var err error
	app.ui, err = ui.NewBackend("Helix Inspector", cfg.Window.Width, cfg.Window.Height)
	if err != nil {
		return nil, err
	}
	app.device, err = opengl.New(app.ui.DisplaySize)
	if err != nil {
		return nil, err
	}
	app.gc, err = gpu.NewGraphicsContext(app.device)
	if err != nil {
		return nil, err
	}
	opts, err := renderer.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	app.renderer, err = renderer.New(app.gc, opts)
	if err != nil {
		return nil, err
	}
	app.assets = assets.NewManager(app.device)

	app.show, err = showcase.New(cfg)
	if err != nil {
		return nil, err
	}
	app.camera = camera.NewPerspective(mgl32.DegToRad(60), 1, 0.1, 200)
	app.orbit.FitToBounds(app.show.Bounds(), app.camera.FieldOfView())
	app.orbit.Snap()
	return app, nil
}

// Run starts the main application loop.
func (app *App) Run() {
	app.ui.Run(app.render)
}

// Close releases GPU resources.
func (app *App) Close() {
	if app.show != nil {
		app.bounds.Remove(app.show.Scene)
		app.show.Release()
	}
	if app.assets != nil {
		app.assets.Close()
	}
	app.viewport.Release()
	if app.renderer != nil {
		app.renderer.Release()
	}
}

// openFileDialog shows a native file dialog to pick a model.
func (app *App) openFileDialog() {
	// Run in goroutine to not block the UI
	go func() {
		filename, err := dialog.File().
			Filter("glTF Models", "gltf", "glb").
			Filter("All Files", "*").
			Title("Open Model").
			Load()
		if err != nil {
			if err != dialog.ErrCancelled {
				app.log.Error("file dialog error", zap.Error(err))
			}
			return
		}
		app.pendingModels <- filename
	}()
}

func (app *App) openModel(path string) {
	model, err := app.show.AddModel(app.assets, path)
	if err != nil {
		app.statusMsg = err.Error()
		app.log.Error("failed to open model", zap.Error(err))
		return
	}
	app.statusMsg = fmt.Sprintf("Loaded %s (%d meshes)", model.Name, len(model.Meshes))
	app.orbit.FitToBounds(app.show.Bounds(), app.camera.FieldOfView())
	if app.showBounds {
		app.bounds.Update(app.show.Scene)
	}
}

func (app *App) screenshot() {
	path, err := app.screenshots.Capture(app.device, app.viewport.Framebuffer(), 0)
	if err != nil {
		app.statusMsg = "Screenshot failed: " + err.Error()
		return
	}
	app.statusMsg = "Saved " + path
}

// render draws one ImGui frame.
func (app *App) render() {
	select {
	case path := <-app.pendingModels:
		app.openModel(path)
	default:
	}

	if imgui.BeginMainMenuBar() {
		if imgui.BeginMenu("File") {
			if imgui.MenuItemBool("Open Model...") {
				app.openFileDialog()
			}
			if imgui.MenuItemBool("Screenshot") {
				app.screenshot()
			}
			imgui.Separator()
			if imgui.MenuItemBool("Exit") {
				os.Exit(0)
			}
			imgui.EndMenu()
		}
		imgui.EndMainMenuBar()
	}

	viewport := imgui.MainViewport()
	workPos := viewport.WorkPos()
	workSize := viewport.WorkSize()

	leftPanelWidth := float32(320)
	statusBarHeight := float32(30)
	contentHeight := workSize.Y - statusBarHeight
	flags := imgui.WindowFlagsNoMove | imgui.WindowFlagsNoResize | imgui.WindowFlagsNoCollapse

	imgui.SetNextWindowPos(workPos)
	imgui.SetNextWindowSize(imgui.NewVec2(leftPanelWidth, contentHeight))
	if imgui.BeginV("Renderer", nil, flags) {
		app.renderOptionsPanel()
		imgui.Separator()
		app.renderStatsPanel()
		imgui.Separator()
		app.renderSceneTree()
	}
	imgui.End()

	imgui.SetNextWindowPos(imgui.NewVec2(workPos.X+leftPanelWidth, workPos.Y))
	imgui.SetNextWindowSize(imgui.NewVec2(workSize.X-leftPanelWidth, contentHeight))
	if imgui.BeginV("Viewport", nil, flags|imgui.WindowFlagsNoScrollbar) {
		app.renderViewport()
	}
	imgui.End()

	imgui.SetNextWindowPos(imgui.NewVec2(workPos.X, workPos.Y+contentHeight))
	imgui.SetNextWindowSize(imgui.NewVec2(workSize.X, statusBarHeight))
	if imgui.BeginV("Status", nil, flags|imgui.WindowFlagsNoTitleBar) {
		if app.statusMsg != "" {
			imgui.Text(app.statusMsg)
		} else {
			imgui.TextDisabled("Drag to orbit, right-drag to pan, scroll to zoom")
		}
	}
	imgui.End()

	if ui.IsKeyPressed(imgui.KeyF12) {
		app.screenshot()
	}
}

// renderViewport renders the scene into the offscreen target and shows it.
func (app *App) renderViewport() {
	avail := imgui.ContentRegionAvail()
	w, h := int(avail.X), int(avail.Y)
	if w <= 0 || h <= 0 {
		return
	}
	fb, err := app.viewport.Resize(app.device, w, h)
	if err != nil {
		imgui.TextDisabled(err.Error())
		return
	}

	app.camera.SetAspectRatio(avail.X / avail.Y)
	app.orbit.Update(app.camera)

	// ImGui draws with GL between our frames
	app.gc.Invalidate()
	app.renderer.SetOutput(fb)
	if err := app.renderer.Render(app.camera, app.show.Scene); err != nil {
		app.statusMsg = err.Error()
	}
	app.ui.SetStatus(fmt.Sprintf("%.0f fps", imgui.CurrentIO().Framerate()))

	ui.Image(app.viewport.Texture(), avail)

	if imgui.IsItemHovered() {
		mousePos := imgui.MousePos()
		dx, dy := mousePos.X-app.lastMousePos.X, mousePos.Y-app.lastMousePos.Y
		if imgui.IsMouseDragging(imgui.MouseButtonLeft) {
			app.orbit.HandleDrag(dx, dy)
		}
		if imgui.IsMouseDragging(imgui.MouseButtonRight) {
			app.orbit.HandleMovement(dy*0.1, -dx*0.1, 0)
		}
		app.lastMousePos = mousePos

		if wheel := imgui.CurrentIO().MouseWheel(); wheel != 0 {
			app.orbit.HandleZoom(wheel)
		}
		if imgui.IsMouseReleased(imgui.MouseButtonLeft) && !imgui.IsMouseDragPastThreshold(imgui.MouseButtonLeft) {
			origin := imgui.ItemRectMin()
			app.pick(mousePos.X-origin.X, mousePos.Y-origin.Y, avail.X, avail.Y)
		}
	}
}

// pick selects the model under a viewport pixel.
func (app *App) pick(x, y, w, h float32) {
	ray := picking.ScreenToRay(x, y, w, h, app.camera.InverseViewProjectionMatrix())
	n, dist, ok := picking.Pick(app.show.Scene, ray)
	if !ok {
		app.selected = nil
		app.statusMsg = ""
		return
	}
	app.selected = n
	app.statusMsg = fmt.Sprintf("Selected %s at %.2f", n.Name, dist)
}

// Package ui hosts Dear ImGui tools on the cimgui-go SDL backend and shows engine
// render targets inside ImGui windows.
package ui

import (
	"fmt"

	"github.com/AllenDang/cimgui-go/backend"
	"github.com/AllenDang/cimgui-go/backend/sdlbackend"
	"github.com/AllenDang/cimgui-go/imgui"
	"go.uber.org/zap"

	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/gpu/opengl"
	"github.com/Faultbox/helix/internal/logger"
)

// Backend wraps the ImGui SDL backend, which owns the window and the GL context.
type Backend struct {
	backend backend.Backend[sdlbackend.SDLWindowFlags]
	title   string
	log     *zap.Logger
}

// NewBackend creates the ImGui context and opens a window.
func NewBackend(title string, width, height int) (*Backend, error) {
	b := &Backend{title: title, log: logger.Named("ui")}

	var err error
	b.backend, err = backend.CreateBackend(sdlbackend.NewSDLBackend())
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}
	b.backend.SetBgColor(imgui.NewVec4(0.1, 0.1, 0.12, 1.0))
	b.backend.CreateWindow(title, width, height)
	b.log.Info("ui backend created", zap.Int("width", width), zap.Int("height", height))
	return b, nil
}

// Run starts the main loop; frame is called once per ImGui frame.
func (b *Backend) Run(frame func()) {
	b.backend.Run(frame)
}

// SetStatus shows status after the window title.
func (b *Backend) SetStatus(status string) {
	b.backend.SetWindowTitle(b.title + " - " + status)
}

// DisplaySize returns the window's drawable size in pixels.
func (b *Backend) DisplaySize() (int, int) {
	w, h := b.backend.DisplaySize()
	return int(w), int(h)
}

// Image draws an engine texture at size. Rows are flipped since GL textures start at
// the bottom.
func Image(tex gpu.Texture, size imgui.Vec2) {
	if tex == nil || !tex.IsReady() {
		imgui.Dummy(size)
		return
	}
	ref := imgui.NewTextureRefTextureID(imgui.TextureID(opengl.TextureID(tex)))
	imgui.ImageWithBgV(
		*ref,
		size,
		imgui.NewVec2(0, 1),
		imgui.NewVec2(1, 0),
		imgui.NewVec4(0.15, 0.15, 0.15, 1.0),
		imgui.NewVec4(1, 1, 1, 1),
	)
}

// IsKeyPressed checks if a key was pressed this frame.
func IsKeyPressed(key imgui.Key) bool {
	return imgui.IsKeyChordPressed(imgui.KeyChord(key))
}

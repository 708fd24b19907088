package ui

import (
	"fmt"

	"github.com/Faultbox/helix/internal/engine/gpu"
)

// Viewport is an offscreen color and depth target the renderer draws into before the
// result is shown as an ImGui image.
type Viewport struct {
	tex   gpu.Texture
	depth gpu.DepthBuffer
	fb    gpu.Framebuffer
}

// Resize makes the target w by h, recreating it only when the size changed. It
// returns the framebuffer to render into.
func (v *Viewport) Resize(dev gpu.Device, w, h int) (gpu.Framebuffer, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("viewport: invalid size %dx%d", w, h)
	}
	if v.fb != nil && v.fb.Width() == w && v.fb.Height() == h {
		return v.fb, nil
	}
	v.Release()

	tex, err := dev.CreateTexture(gpu.TextureDesc{Width: w, Height: h, Format: gpu.FormatRGBA8, Linear: true})
	if err != nil {
		return nil, fmt.Errorf("viewport: %w", err)
	}
	depth, err := dev.CreateDepthBuffer(w, h)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("viewport: %w", err)
	}
	fb, err := dev.CreateFramebuffer([]gpu.Texture{tex}, depth)
	if err != nil {
		tex.Release()
		depth.Release()
		return nil, fmt.Errorf("viewport: %w", err)
	}
	v.tex, v.depth, v.fb = tex, depth, fb
	return fb, nil
}

// Texture returns the color texture, nil before the first Resize.
func (v *Viewport) Texture() gpu.Texture { return v.tex }

// Framebuffer returns the target, nil before the first Resize.
func (v *Viewport) Framebuffer() gpu.Framebuffer { return v.fb }

// Release frees the target.
func (v *Viewport) Release() {
	if v.fb == nil {
		return
	}
	v.fb.Release()
	v.depth.Release()
	v.tex.Release()
	v.tex, v.depth, v.fb = nil, nil, nil
}

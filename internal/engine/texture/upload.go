package texture

import (
	"fmt"
	"image"

	"github.com/Faultbox/helix/internal/engine/gpu"
)

// Options controls sampling of uploaded textures.
type Options struct {
	Linear bool
	Repeat bool
}

// Upload creates an RGBA8 texture from img, scaling it down to the device's
// maximum texture size first.
func Upload(dev gpu.Device, img image.Image, opts Options) (gpu.Texture, error) {
	rgba := ToRGBA(Fit(img, dev.Capabilities().MaxTextureSize))
	w, h := rgba.Rect.Dx(), rgba.Rect.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("upload texture: empty image")
	}
	tex, err := dev.CreateTexture(gpu.TextureDesc{
		Width:  w,
		Height: h,
		Format: gpu.FormatRGBA8,
		Linear: opts.Linear,
		Repeat: opts.Repeat,
	})
	if err != nil {
		return nil, fmt.Errorf("upload texture: %w", err)
	}
	pix := rgba.Pix
	if rgba.Stride != w*4 {
		pix = make([]uint8, 0, w*h*4)
		for y := 0; y < h; y++ {
			pix = append(pix, rgba.Pix[y*rgba.Stride:y*rgba.Stride+w*4]...)
		}
	}
	if err := dev.UploadTexture(tex, w, h, pix); err != nil {
		tex.Release()
		return nil, fmt.Errorf("upload texture: %w", err)
	}
	return tex, nil
}

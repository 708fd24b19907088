// Package debug provides capture and visualisation helpers for inspecting frames.
package debug

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/Faultbox/helix/internal/engine/gpu"
	hmath "github.com/Faultbox/helix/pkg/math"
)

// ScreenshotCapture writes frames as PNG files named prefix_timestamp.png.
type ScreenshotCapture struct {
	outputDir string
	prefix    string
	now       func() time.Time
}

func NewScreenshotCapture(outputDir, prefix string) *ScreenshotCapture {
	return &ScreenshotCapture{
		outputDir: outputDir,
		prefix:    prefix,
		now:       time.Now,
	}
}

// SetOutputDir sets the output directory for screenshots.
func (sc *ScreenshotCapture) SetOutputDir(dir string) {
	sc.outputDir = dir
}

// Capture reads a color attachment of fb (the output surface when fb is nil) and
// saves it.
func (sc *ScreenshotCapture) Capture(dev gpu.Device, fb gpu.Framebuffer, attachment int) (string, error) {
	img, err := ReadImage(dev, fb, attachment)
	if err != nil {
		return "", err
	}
	return sc.Save(img, sc.GenerateFilename())
}

// Save encodes img as PNG at path, creating the directory when needed.
func (sc *ScreenshotCapture) Save(img image.Image, path string) (string, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return "", fmt.Errorf("encoding PNG: %w", err)
	}
	return path, nil
}

// GenerateFilename returns the path the next capture is written to.
func (sc *ScreenshotCapture) GenerateFilename() string {
	timestamp := sc.now().Format("2006-01-02_15-04-05.000")
	filename := fmt.Sprintf("%s_%s.png", sc.prefix, timestamp)
	if sc.outputDir != "" {
		filename = filepath.Join(sc.outputDir, filename)
	}
	return filename
}

// ReadImage reads back a whole color attachment as an 8-bit image. Values are clamped
// to [0, 1]; rows are flipped since the device reads bottom to top.
func ReadImage(dev gpu.Device, fb gpu.Framebuffer, attachment int) (*image.NRGBA, error) {
	w, h := dev.DefaultFramebufferSize()
	if fb != nil {
		w, h = fb.Width(), fb.Height()
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("read image: empty target %dx%d", w, h)
	}
	pix, err := dev.ReadPixels(fb, attachment, gpu.Rect{W: w, H: h})
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(pix) < w*h*4 {
		return nil, fmt.Errorf("read image: got %d values for %dx%d", len(pix), w, h)
	}
	return FloatsToImage(pix, w, h), nil
}

// FloatsToImage converts bottom-to-top RGBA floats to a top-to-bottom image.
func FloatsToImage(pix []float32, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := pix[(h-1-y)*w*4:]
		for x := 0; x < w; x++ {
			p := src[x*4 : x*4+4]
			img.SetNRGBA(x, y, color.NRGBA{unorm(p[0]), unorm(p[1]), unorm(p[2]), unorm(p[3])})
		}
	}
	return img
}

func unorm(v float32) uint8 {
	return uint8(hmath.Saturate(v)*255 + 0.5)
}

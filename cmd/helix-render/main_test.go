package main

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/helix/internal/config"
)

func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.Render.Backend = "soft"
	cfg.Window.Width = 40
	cfg.Window.Height = 30
	cfg.Shadows.MapSize = 32
	return cfg
}

func TestRunWritesFrame(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "frame.png")
	written, err := run(smallConfig(), job{out: out, yaw: 30, pitch: 25})
	require.NoError(t, err)
	assert.Equal(t, []string{out}, written)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 30, img.Bounds().Dy())
}

func TestRunWritesEveryView(t *testing.T) {
	dir := t.TempDir()
	written, err := run(smallConfig(), job{out: filepath.Join(dir, "frame.png"), viewsDir: filepath.Join(dir, "views")})
	require.NoError(t, err)
	assert.Len(t, written, 8)
	assert.FileExists(t, filepath.Join(dir, "views", "normals.png"))
	assert.FileExists(t, filepath.Join(dir, "views", "shadow_atlas.png"))
}

func TestRunMissingModel(t *testing.T) {
	_, err := run(smallConfig(), job{out: filepath.Join(t.TempDir(), "x.png"), models: []string{"missing.glb"}})
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a.glb", "b.gltf"}, splitList(" a.glb, ,b.gltf"))
	assert.Nil(t, splitList(""))
}

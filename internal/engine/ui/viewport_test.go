package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/gpu/gputest"
)

func TestViewportResize(t *testing.T) {
	dev := gputest.New()
	var v Viewport
	assert.Nil(t, v.Framebuffer())

	fb, err := v.Resize(dev, 320, 200)
	require.NoError(t, err)
	assert.Equal(t, 320, fb.Width())
	assert.Equal(t, gpu.FormatRGBA8, v.Texture().Format())
	assert.Equal(t, 1, dev.Count("CreateFramebuffer"))

	same, err := v.Resize(dev, 320, 200)
	require.NoError(t, err)
	assert.Same(t, fb, same)
	assert.Equal(t, 1, dev.Count("CreateFramebuffer"))

	old := v.Texture().(*gputest.Texture)
	_, err = v.Resize(dev, 640, 400)
	require.NoError(t, err)
	assert.True(t, old.Released)
	assert.Equal(t, 400, v.Texture().Height())

	v.Release()
	assert.Nil(t, v.Texture())
	v.Release()
}

func TestViewportRejectsEmptySize(t *testing.T) {
	var v Viewport
	_, err := v.Resize(gputest.New(), 0, 10)
	assert.Error(t, err)
}

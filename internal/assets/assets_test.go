package assets

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/gpu/gputest"
	"github.com/Faultbox/helix/internal/engine/material"
	"github.com/Faultbox/helix/internal/engine/scene"
	"github.com/Faultbox/helix/internal/logger"
)

func ptr[T any](v T) *T { return &v }

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h))))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestResolvePriority(t *testing.T) {
	low, high := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(low, "a.txt"), []byte("low"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(low, "b.txt"), []byte("only low"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(high, "a.txt"), []byte("high"), 0o644))

	m := NewManager(gputest.New())
	require.NoError(t, m.AddRoot(low))
	require.NoError(t, m.AddRoot(high))
	assert.Error(t, m.AddRoot(filepath.Join(low, "a.txt")))
	assert.Error(t, m.AddRoot(filepath.Join(low, "missing")))

	data, err := m.Load("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "high", string(data))
	data, err = m.Load("b.txt")
	require.NoError(t, err)
	assert.Equal(t, "only low", string(data))

	_, err = m.Load("c.txt")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoadIsCached(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0o644))

	m := NewManager(gputest.New())
	_, err := m.Load(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("two"), 0o644))
	data, err := m.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	hits, misses := m.cache.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)

	m.Close()
	data, err = m.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestTexture(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "albedo.png"), 4, 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("nope"), 0o644))

	dev := gputest.New()
	m := NewManager(dev)
	require.NoError(t, m.AddRoot(dir))

	tex, err := m.Texture("albedo.png")
	require.NoError(t, err)
	assert.Equal(t, 4, tex.Width())
	again, err := m.Texture("albedo.png")
	require.NoError(t, err)
	assert.Same(t, tex, again)
	assert.Equal(t, 1, dev.Count("UploadTexture"))

	_, err = m.Texture("broken.png")
	assert.Error(t, err)

	m.Close()
	assert.False(t, tex.IsReady(), "textures are released with the manager")
}

// writeGLB stores a document with one quad mesh used by two nodes.
func writeGLB(t *testing.T, dir string) string {
	t.Helper()
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 0, -1}, {0, 0, -1}})
	uv := modeler.WriteTextureCoord(doc, [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}})
	idx := modeler.WriteIndices(doc, []uint16{0, 1, 2, 0, 2, 3})

	doc.Meshes = []*gltf.Mesh{{
		Name: "quad",
		Primitives: []*gltf.Primitive{{
			Attributes: map[string]int{gltf.POSITION: pos, gltf.TEXCOORD_0: uv},
			Indices:    ptr(idx),
			Material:   ptr(0),
		}},
	}}
	doc.Images = []*gltf.Image{{URI: "albedo.png"}}
	doc.Textures = []*gltf.Texture{{Source: ptr(0)}}
	doc.Materials = []*gltf.Material{{
		Name: "painted",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor:  &[4]float64{1, 0.5, 0.25, 1},
			MetallicFactor:   ptr(0.25),
			RoughnessFactor:  ptr(0.75),
			BaseColorTexture: &gltf.TextureInfo{Index: 0},
		},
		AlphaMode:   gltf.AlphaMask,
		DoubleSided: true,
	}}
	doc.Nodes = []*gltf.Node{
		{Name: "parent", Translation: [3]float64{2, 0, 0}, Children: []int{1}},
		{Name: "child", Mesh: ptr(0), Translation: [3]float64{0, 1, 0}},
		{Name: "twin", Mesh: ptr(0)},
	}
	doc.Scenes[0].Nodes = []int{0, 2}

	writePNG(t, filepath.Join(dir, "albedo.png"), 2, 2)
	path := filepath.Join(dir, "quad.glb")
	require.NoError(t, gltf.SaveBinary(doc, path))
	return path
}

func modelNodes(root *scene.Node) []*scene.Node {
	var out []*scene.Node
	var walk func(n *scene.Node)
	walk = func(n *scene.Node) {
		if n.Kind() == scene.KindModel {
			out = append(out, n)
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(root)
	return out
}

func TestLoadGLTF(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := logger.Replace(zap.New(core))
	defer restore()

	dir := t.TempDir()
	path := writeGLB(t, dir)
	dev := gputest.New()
	m := NewManager(dev)
	defer m.Close()

	model, err := m.LoadGLTF(path, DefaultGLTFOptions())
	require.NoError(t, err)
	assert.Equal(t, "quad.glb", model.Name)
	require.Len(t, model.Meshes, 1, "nodes sharing a glTF mesh share vertex data")
	require.Len(t, model.Materials, 1)

	nodes := modelNodes(model.Root)
	require.Len(t, nodes, 2)
	first, second := nodes[0].Model().Meshes()[0], nodes[1].Model().Meshes()[0]
	assert.Same(t, first.Mesh, second.Mesh)
	assert.NotSame(t, first, second)
	assert.True(t, nodes[0].Model().CastShadows)

	// parent (2,0,0) + child (0,1,0)
	b := nodes[0].WorldBounds()
	assert.InDeltaSlice(t, []float32{2, 1, -1}, b.Min[:], 1e-5)
	assert.InDeltaSlice(t, []float32{3, 1, 0}, b.Max[:], 1e-5)
	bounds := model.Bounds()
	assert.InDeltaSlice(t, []float32{0, 0, -1}, bounds.Min[:], 1e-5)
	assert.InDeltaSlice(t, []float32{3, 1, 0}, bounds.Max[:], 1e-5)

	// normals are computed facing up and texture coordinates flipped
	data := model.Meshes[0].Data()
	n := data.AttributeOffset(gpu.AttrNormal)
	uv := data.AttributeOffset(gpu.AttrTexCoord)
	assert.InDeltaSlice(t, []float32{0, 1, 0}, data.Vertices[n:n+3], 1e-5)
	assert.InDeltaSlice(t, []float32{0, 1}, data.Vertices[uv:uv+2], 1e-5)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, data.Indices)

	mat := model.Materials[0]
	assert.Equal(t, "painted", mat.Name)
	assert.Equal(t, mgl32.Vec4{1, 0.5, 0.25, 1}, mat.Color())
	assert.Equal(t, float32(0.25), mat.Metallicness())
	assert.Equal(t, float32(0.75), mat.Roughness())
	threshold, on := mat.AlphaThreshold()
	assert.True(t, on)
	assert.Equal(t, float32(0.5), threshold)
	assert.Equal(t, gpu.CullNone, mat.CullMode())
	assert.Equal(t, material.GGX, mat.LightingModel())
	require.NotNil(t, mat.ColorMap())
	assert.Equal(t, 2, mat.ColorMap().Width())
	assert.Equal(t, 1, dev.Count("UploadTexture"))

	assert.Equal(t, 1, logs.FilterMessage("model loaded").Len())
}

func TestLoadGLTFErrors(t *testing.T) {
	m := NewManager(gputest.New())
	_, err := m.LoadGLTF("missing.glb", DefaultGLTFOptions())
	assert.True(t, errors.Is(err, ErrNotFound))

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.gltf")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = m.LoadGLTF(bad, DefaultGLTFOptions())
	assert.Error(t, err)
}

func TestSmoothNormals(t *testing.T) {
	// two triangles folded along the x axis
	pos := [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 0, -1}, {0, -1, 0}}
	normals := smoothNormals(pos, []uint32{0, 1, 2, 0, 3, 1})
	assert.InDeltaSlice(t, []float32{0, 1, 0}, normals[2][:], 1e-5)
	assert.InDeltaSlice(t, []float32{0, 0, 1}, normals[3][:], 1e-5)
	shared := mgl32.Vec3(normals[0])
	assert.InDelta(t, 1, shared.Len(), 1e-5)
	assert.InDelta(t, shared[1], shared[2], 1e-5)
}

package soft

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/shader"
)

func quad(z float32) *gpu.MeshData {
	return &gpu.MeshData{
		Attributes: []gpu.VertexAttribute{{Name: gpu.AttrPosition, Size: 3}, {Name: gpu.AttrTexCoord, Size: 2}},
		Vertices: []float32{
			-1, -1, z, 0, 0,
			1, -1, z, 1, 0,
			1, 1, z, 1, 1,
			-1, 1, z, 0, 1,
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}

func program(t *testing.T, d *Device, name string, defines map[string]string) gpu.Program {
	t.Helper()
	p, err := d.CreateProgram(gpu.ProgramSource{Name: name, Defines: defines})
	require.NoError(t, err)
	return p
}

func mesh(t *testing.T, d *Device, data *gpu.MeshData) gpu.MeshBuffer {
	t.Helper()
	m, err := d.CreateMesh(data)
	require.NoError(t, err)
	return m
}

func drawUnlit(t *testing.T, d *Device, data *gpu.MeshData, color mgl32.Vec4) {
	t.Helper()
	p := program(t, d, shader.ProgramUnlit, nil)
	d.UseProgram(p)
	d.SetUniformMat4(p.UniformLocation(shader.UniformWorldMatrix), mgl32.Ident4())
	d.SetUniformMat4(p.UniformLocation(shader.UniformWorldViewProjection), mgl32.Ident4())
	d.SetUniformMat4(p.UniformLocation(shader.UniformNormalWorldMatrix), mgl32.Ident4())
	d.SetUniformVec4(p.UniformLocation(shader.UniformColor), color)
	d.BindMesh(mesh(t, d, data))
	d.DrawElements()
}

func pixel(t *testing.T, d *Device, x, y int) mgl32.Vec4 {
	t.Helper()
	px, err := d.ReadPixels(nil, 0, gpu.Rect{X: x, Y: y, W: 1, H: 1})
	require.NoError(t, err)
	return mgl32.Vec4{px[0], px[1], px[2], px[3]}
}

func TestFullscreenQuadCoversEveryPixel(t *testing.T) {
	d := New(8, 6)
	d.SetViewport(gpu.Rect{W: 8, H: 6})
	drawUnlit(t, d, quad(0), mgl32.Vec4{1, 0, 0, 1})

	px, err := d.ReadPixels(nil, 0, gpu.Rect{W: 8, H: 6})
	require.NoError(t, err)
	for i := 0; i < len(px); i += 4 {
		assert.Equal(t, []float32{1, 0, 0, 1}, px[i:i+4], "pixel %d", i/4)
	}
}

func TestSharedEdgeIsDrawnOnce(t *testing.T) {
	d := New(8, 8)
	d.SetViewport(gpu.Rect{W: 8, H: 8})
	d.SetBlendState(&gpu.BlendAdditive)
	drawUnlit(t, d, quad(0), mgl32.Vec4{0.25, 0, 0, 1})

	px, err := d.ReadPixels(nil, 0, gpu.Rect{W: 8, H: 8})
	require.NoError(t, err)
	for i := 0; i < len(px); i += 4 {
		require.InDelta(t, 0.25, px[i], 1e-6, "pixel %d blended twice or skipped", i/4)
	}
}

func TestDepthTest(t *testing.T) {
	d := New(4, 4)
	d.SetViewport(gpu.Rect{W: 4, H: 4})
	d.SetDepthTest(gpu.DepthLess)
	d.SetDepthMask(true)
	d.Clear(gpu.ClearColor | gpu.ClearDepth)

	drawUnlit(t, d, quad(0), mgl32.Vec4{0, 1, 0, 1})
	drawUnlit(t, d, quad(0.5), mgl32.Vec4{1, 0, 0, 1})
	assert.Equal(t, mgl32.Vec4{0, 1, 0, 1}, pixel(t, d, 1, 1), "farther quad must fail")

	drawUnlit(t, d, quad(-0.5), mgl32.Vec4{0, 0, 1, 1})
	assert.Equal(t, mgl32.Vec4{0, 0, 1, 1}, pixel(t, d, 1, 1))

	d.SetDepthTest(gpu.DepthLessEqual)
	drawUnlit(t, d, quad(-0.5), mgl32.Vec4{1, 1, 1, 1})
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 1}, pixel(t, d, 1, 1))
}

func TestBackFaceCulling(t *testing.T) {
	d := New(4, 4)
	d.SetViewport(gpu.Rect{W: 4, H: 4})
	d.SetCullMode(gpu.CullBack)

	cw := quad(0)
	cw.Indices = []uint32{0, 2, 1, 0, 3, 2}
	drawUnlit(t, d, cw, mgl32.Vec4{1, 1, 1, 1})
	assert.Equal(t, mgl32.Vec4{}, pixel(t, d, 2, 2))

	d.SetCullMode(gpu.CullFront)
	drawUnlit(t, d, cw, mgl32.Vec4{1, 1, 1, 1})
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 1}, pixel(t, d, 2, 2))
}

func TestNearPlaneClipping(t *testing.T) {
	d := New(16, 16)
	d.SetViewport(gpu.Rect{W: 16, H: 16})
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 0.1, 10)

	// A floor quad that passes behind the camera.
	data := &gpu.MeshData{
		Attributes: []gpu.VertexAttribute{{Name: gpu.AttrPosition, Size: 3}},
		Vertices: []float32{
			-5, -1, 5,
			5, -1, 5,
			5, -1, -5,
			-5, -1, -5,
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
	p := program(t, d, shader.ProgramUnlit, nil)
	d.UseProgram(p)
	d.SetUniformMat4(p.UniformLocation(shader.UniformWorldViewProjection), proj)
	d.SetUniformVec4(p.UniformLocation(shader.UniformColor), mgl32.Vec4{1, 1, 1, 1})
	d.BindMesh(mesh(t, d, data))
	d.DrawElements()

	assert.Equal(t, mgl32.Vec4{1, 1, 1, 1}, pixel(t, d, 8, 1), "floor below the horizon")
	assert.Equal(t, mgl32.Vec4{}, pixel(t, d, 8, 14), "sky above the horizon")
}

func TestMultipleRenderTargets(t *testing.T) {
	d := New(4, 4)
	var colors []gpu.Texture
	for i := 0; i < 3; i++ {
		tex, err := d.CreateTexture(gpu.TextureDesc{Width: 4, Height: 4, Format: gpu.FormatRGBA16F})
		require.NoError(t, err)
		colors = append(colors, tex)
	}
	fb, err := d.CreateFramebuffer(colors, nil)
	require.NoError(t, err)
	d.BindFramebuffer(fb)
	d.SetViewport(gpu.Rect{W: 4, H: 4})

	p := program(t, d, shader.ProgramGBuffer, map[string]string{shader.DefineGBufferMRT: ""})
	d.UseProgram(p)
	d.SetUniformMat4(p.UniformLocation(shader.UniformWorldViewProjection), mgl32.Ident4())
	d.SetUniformMat4(p.UniformLocation(shader.UniformWorldMatrix), mgl32.Ident4())
	d.SetUniformMat4(p.UniformLocation(shader.UniformNormalWorldMatrix), mgl32.Ident4())
	d.SetUniformMat4(p.UniformLocation(shader.UniformViewMatrix), mgl32.Ident4())
	d.SetUniformVec4(p.UniformLocation(shader.UniformColor), mgl32.Vec4{0.5, 0.25, 1, 1})
	d.SetUniformFloat(p.UniformLocation(shader.UniformRoughness), 0.3)
	d.SetUniformFloat(p.UniformLocation(shader.UniformCameraFrustumRange), 1)
	data := quad(0)
	data.Attributes = append(data.Attributes, gpu.VertexAttribute{Name: gpu.AttrNormal, Size: 3})
	data.Vertices = []float32{
		-1, -1, 0, 0, 0, 0, 0, 1,
		1, -1, 0, 1, 0, 0, 0, 1,
		1, 1, 0, 1, 1, 0, 0, 1,
		-1, 1, 0, 0, 1, 0, 0, 1,
	}
	d.BindMesh(mesh(t, d, data))
	d.DrawElements()

	assert.Equal(t, mgl32.Vec4{0.5, 0.25, 1, 1}, Texel(colors[0], 1, 1))
	assert.Equal(t, mgl32.Vec4{0.5, 0.5, 1, 0}, Texel(colors[1], 1, 1))
	assert.InDelta(t, 0.3, Texel(colors[2], 1, 1)[0], 1e-6)
}

func TestFramebufferCompleteness(t *testing.T) {
	d := New(4, 4)
	_, err := d.CreateFramebuffer(nil, nil)
	assert.ErrorIs(t, err, gpu.ErrFramebufferIncomplete)

	a, _ := d.CreateTexture(gpu.TextureDesc{Width: 4, Height: 4})
	b, _ := d.CreateTexture(gpu.TextureDesc{Width: 2, Height: 2})
	_, err = d.CreateFramebuffer([]gpu.Texture{a, b}, nil)
	assert.ErrorIs(t, err, gpu.ErrFramebufferIncomplete)

	d.SetMaxDrawBuffers(1)
	_, err = d.CreateFramebuffer([]gpu.Texture{a, a}, nil)
	assert.ErrorIs(t, err, gpu.ErrFramebufferIncomplete)
}

func TestUnknownProgram(t *testing.T) {
	d := New(1, 1)
	_, err := d.CreateProgram(gpu.ProgramSource{Name: "does_not_exist"})
	assert.ErrorIs(t, err, gpu.ErrUnsupported)
}

func TestUploadFlipsRows(t *testing.T) {
	d := New(1, 1)
	tex, err := d.CreateTexture(gpu.TextureDesc{})
	require.NoError(t, err)
	assert.False(t, tex.IsReady())

	// top row red, bottom row blue
	require.NoError(t, d.UploadTexture(tex, 1, 2, []uint8{255, 0, 0, 255, 0, 0, 255, 255}))
	assert.True(t, tex.IsReady())
	assert.Equal(t, mgl32.Vec4{0, 0, 1, 1}, Texel(tex, 0, 0))
	assert.Equal(t, mgl32.Vec4{1, 0, 0, 1}, Texel(tex, 0, 1))
}

func TestShadowDepthEncoding(t *testing.T) {
	assert.Equal(t, mgl32.Vec4{0.5, 0, 0, 1}, encodeShadowDepth(filterPCF, 0.5))
	assert.Equal(t, mgl32.Vec4{0.5, 0.25, 0, 1}, encodeShadowDepth(filterVSM, 0.5))
	assert.InDelta(t, 1, encodeShadowDepth(filterESM, 1)[0], 1e-6)
	assert.Less(t, encodeShadowDepth(filterESM, 0.9)[0], float32(1e-3))
}

func TestViewPositionReconstruction(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(60), 1.5, 0.5, 20)
	p := mgl32.Vec3{1, -0.5, -6}
	clip := proj.Mul4x1(p.Vec4(1))
	uv := mgl32.Vec2{clip[0]/clip[3]*0.5 + 0.5, clip[1]/clip[3]*0.5 + 0.5}
	depth := (-p[2] - 0.5) / (20 - 0.5)

	got := viewPosition(proj.Inv(), uv, depth, 0.5, 20)
	for i := range got {
		assert.InDelta(t, p[i], got[i], 1e-3)
	}

	ortho := mgl32.Ortho(-4, 4, -3, 3, 1, 9)
	clip = ortho.Mul4x1(p.Vec4(1))
	uv = mgl32.Vec2{clip[0]*0.5 + 0.5, clip[1]*0.5 + 0.5}
	got = viewPosition(ortho.Inv(), uv, (6-1)/8.0, 1, 9)
	for i := range got {
		assert.InDelta(t, p[i], got[i], 1e-3)
	}
}

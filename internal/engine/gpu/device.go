// Package gpu defines the minimal graphics device contract used by the frame pipeline
// and the GraphicsContext that deduplicates every fixed-function state change.
package gpu

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrFramebufferIncomplete is returned when attachments do not form a complete framebuffer.
	ErrFramebufferIncomplete = errors.New("framebuffer incomplete")
	// ErrUnsupported is returned for resources a device cannot provide.
	ErrUnsupported = errors.New("unsupported by device")
)

// TextureFormat is the storage format of a texture.
type TextureFormat int

const (
	// FormatRGBA8 stores 8-bit normalized channels.
	FormatRGBA8 TextureFormat = iota
	// FormatRGBA16F stores half-float channels (HDR targets, G-buffer normals/depth).
	FormatRGBA16F
	// FormatRGBA32F stores full float channels.
	FormatRGBA32F
)

func (f TextureFormat) String() string {
	switch f {
	case FormatRGBA8:
		return "rgba8"
	case FormatRGBA16F:
		return "rgba16f"
	case FormatRGBA32F:
		return "rgba32f"
	}
	return "unknown"
}

// TextureDesc describes a 2D texture.
type TextureDesc struct {
	Width, Height int
	Format        TextureFormat
	Linear        bool // linear filtering instead of nearest
	Repeat        bool // repeat wrapping instead of clamp to edge
}

// Texture is a 2D texture on the device.
type Texture interface {
	Width() int
	Height() int
	Format() TextureFormat
	// IsReady reports whether the texture has storage that may be sampled.
	IsReady() bool
	Release()
}

// DepthBuffer is a depth-only attachment.
type DepthBuffer interface {
	Width() int
	Height() int
	Release()
}

// Framebuffer is a set of color attachments plus an optional depth buffer.
type Framebuffer interface {
	Width() int
	Height() int
	ColorTexture(i int) Texture
	NumColorTextures() int
	Release()
}

// Program is a linked shader program.
type Program interface {
	Name() string
	// UniformLocation returns -1 when the program has no such uniform.
	UniformLocation(name string) int32
	Release()
}

// MeshBuffer is uploaded vertex and index data.
type MeshBuffer interface {
	IndexCount() int
	Release()
}

// ProgramSource is everything a device needs to build a program. Devices that do not
// compile GLSL select their implementation by Name and Defines.
type ProgramSource struct {
	Name     string
	Vertex   string
	Fragment string
	Defines  map[string]string
}

// Standard vertex attribute names. Devices bind them to fixed locations in this order.
const (
	AttrPosition     = "hx_position"
	AttrNormal       = "hx_normal"
	AttrTexCoord     = "hx_texCoord"
	AttrJointIndices = "hx_jointIndices"
	AttrJointWeights = "hx_jointWeights"
	// AttrMorphPosition0 to 3 are position deltas of up to four morph targets.
	AttrMorphPosition0 = "hx_morphPosition0"
	AttrMorphPosition1 = "hx_morphPosition1"
	AttrMorphPosition2 = "hx_morphPosition2"
	AttrMorphPosition3 = "hx_morphPosition3"
)

// AttributeLocations lists the standard attributes by location.
var AttributeLocations = []string{
	AttrPosition, AttrNormal, AttrTexCoord, AttrJointIndices, AttrJointWeights,
	AttrMorphPosition0, AttrMorphPosition1, AttrMorphPosition2, AttrMorphPosition3,
}

// VertexAttribute is one float attribute of an interleaved vertex.
type VertexAttribute struct {
	Name string
	Size int
}

// MeshData is interleaved vertex data with triangle indices.
type MeshData struct {
	Attributes []VertexAttribute
	Vertices   []float32
	Indices    []uint32
}

// Stride returns the number of floats per vertex.
func (m *MeshData) Stride() int {
	n := 0
	for _, a := range m.Attributes {
		n += a.Size
	}
	return n
}

// VertexCount returns the number of vertices.
func (m *MeshData) VertexCount() int {
	s := m.Stride()
	if s == 0 {
		return 0
	}
	return len(m.Vertices) / s
}

// AttributeOffset returns the float offset of the named attribute within a vertex, or -1.
func (m *MeshData) AttributeOffset(name string) int {
	off := 0
	for _, a := range m.Attributes {
		if a.Name == name {
			return off
		}
		off += a.Size
	}
	return -1
}

// Rect is a pixel rectangle with a bottom-left origin.
type Rect struct {
	X, Y, W, H int
}

// CullMode selects which triangle faces are discarded.
type CullMode int

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

// DepthTest selects the depth comparison.
type DepthTest int

const (
	DepthDisabled DepthTest = iota
	DepthLess
	DepthLessEqual
	DepthAlways
)

// BlendFactor is a blend equation factor.
type BlendFactor int

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcAlpha
	BlendOneMinusSrcAlpha
	BlendDstColor
)

// BlendState is an additive blend equation src*SrcFactor + dst*DstFactor.
type BlendState struct {
	SrcFactor      BlendFactor
	DstFactor      BlendFactor
	AlphaSrcFactor BlendFactor
	AlphaDstFactor BlendFactor
}

var (
	// BlendAdditive adds the source colour to the destination and keeps the destination alpha.
	BlendAdditive = BlendState{BlendOne, BlendOne, BlendZero, BlendOne}
	// BlendAlpha is classic non-premultiplied alpha blending.
	BlendAlpha = BlendState{BlendSrcAlpha, BlendOneMinusSrcAlpha, BlendOne, BlendOneMinusSrcAlpha}
	// BlendAdditiveAlpha adds the source weighted by its alpha.
	BlendAdditiveAlpha = BlendState{BlendSrcAlpha, BlendOne, BlendZero, BlendOne}
	// BlendMultiply multiplies the destination by the source.
	BlendMultiply = BlendState{BlendDstColor, BlendZero, BlendZero, BlendOne}
)

// ClearMask selects buffers to clear.
type ClearMask int

const (
	ClearColor ClearMask = 1 << iota
	ClearDepth
)

// Capabilities reports device limits.
type Capabilities struct {
	MaxDrawBuffers  int
	MaxTextureSlots int
	MaxTextureSize  int
}

// Device issues resource creation and draw commands. Devices do no state caching of
// their own; all state changes go through a GraphicsContext.
type Device interface {
	Capabilities() Capabilities
	// DefaultFramebufferSize returns the size of the output surface.
	DefaultFramebufferSize() (int, int)

	CreateTexture(desc TextureDesc) (Texture, error)
	// UploadTexture replaces the contents of an RGBA8 texture. Rows of rgba run top to
	// bottom; texture coordinate (0, 0) samples the bottom-left pixel.
	UploadTexture(t Texture, width, height int, rgba []uint8) error
	CreateDepthBuffer(width, height int) (DepthBuffer, error)
	// CreateFramebuffer returns an error wrapping ErrFramebufferIncomplete when the
	// attachments are unusable.
	CreateFramebuffer(colors []Texture, depth DepthBuffer) (Framebuffer, error)
	CreateProgram(src ProgramSource) (Program, error)
	CreateMesh(data *MeshData) (MeshBuffer, error)

	// BindFramebuffer binds fb, or the output surface when fb is nil.
	BindFramebuffer(fb Framebuffer)
	SetViewport(r Rect)
	SetClearColor(c mgl32.Vec4)
	Clear(mask ClearMask)
	SetCullMode(mode CullMode)
	SetDepthTest(test DepthTest)
	SetDepthMask(write bool)
	// SetBlendState enables blending, or disables it when b is nil.
	SetBlendState(b *BlendState)
	UseProgram(p Program)

	SetUniformInt(loc int32, v int32)
	SetUniformFloat(loc int32, v float32)
	SetUniformVec2(loc int32, v mgl32.Vec2)
	SetUniformVec3(loc int32, v mgl32.Vec3)
	SetUniformVec4(loc int32, v mgl32.Vec4)
	SetUniformMat4(loc int32, m mgl32.Mat4)
	SetUniformMat4Array(loc int32, m []mgl32.Mat4)
	SetUniformFloatArray(loc int32, v []float32)

	BindTexture(slot int, t Texture)
	BindMesh(m MeshBuffer)
	// DrawElements draws the bound mesh as indexed triangles.
	DrawElements()

	// ReadPixels returns RGBA float values of a color attachment (or the output surface
	// when fb is nil), rows bottom to top.
	ReadPixels(fb Framebuffer, attachment int, r Rect) ([]float32, error)
}

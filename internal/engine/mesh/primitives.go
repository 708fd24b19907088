package mesh

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/helix/internal/engine/gpu"
)

// standardAttributes is the layout of generated primitives.
var standardAttributes = []gpu.VertexAttribute{
	{Name: gpu.AttrPosition, Size: 3},
	{Name: gpu.AttrNormal, Size: 3},
	{Name: gpu.AttrTexCoord, Size: 2},
}

type builder struct {
	data gpu.MeshData
}

func newBuilder() *builder {
	return &builder{data: gpu.MeshData{Attributes: standardAttributes}}
}

func (b *builder) vertex(p, n mgl32.Vec3, uv mgl32.Vec2) uint32 {
	idx := uint32(len(b.data.Vertices) / 8)
	b.data.Vertices = append(b.data.Vertices, p[0], p[1], p[2], n[0], n[1], n[2], uv[0], uv[1])
	return idx
}

func (b *builder) triangle(i0, i1, i2 uint32) {
	b.data.Indices = append(b.data.Indices, i0, i1, i2)
}

// quad adds a face centered at c spanned by u and v. u x v must point along n so the
// face is counter-clockwise seen from outside.
func (b *builder) quad(c, n, u, v mgl32.Vec3) {
	i0 := b.vertex(c.Sub(u).Sub(v), n, mgl32.Vec2{0, 0})
	i1 := b.vertex(c.Add(u).Sub(v), n, mgl32.Vec2{1, 0})
	i2 := b.vertex(c.Add(u).Add(v), n, mgl32.Vec2{1, 1})
	i3 := b.vertex(c.Sub(u).Add(v), n, mgl32.Vec2{0, 1})
	b.triangle(i0, i1, i2)
	b.triangle(i0, i2, i3)
}

func (b *builder) build(name string) *Mesh {
	m, err := New(name, &b.data)
	if err != nil {
		panic(err)
	}
	return m
}

// NewBox creates a box of the given size centered at the origin.
func NewBox(width, height, depth float32) *Mesh {
	hx, hy, hz := width/2, height/2, depth/2
	b := newBuilder()
	b.quad(mgl32.Vec3{hx, 0, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -hz}, mgl32.Vec3{0, hy, 0})
	b.quad(mgl32.Vec3{-hx, 0, 0}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, hz}, mgl32.Vec3{0, hy, 0})
	b.quad(mgl32.Vec3{0, hy, 0}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{hx, 0, 0}, mgl32.Vec3{0, 0, -hz})
	b.quad(mgl32.Vec3{0, -hy, 0}, mgl32.Vec3{0, -1, 0}, mgl32.Vec3{hx, 0, 0}, mgl32.Vec3{0, 0, hz})
	b.quad(mgl32.Vec3{0, 0, hz}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{hx, 0, 0}, mgl32.Vec3{0, hy, 0})
	b.quad(mgl32.Vec3{0, 0, -hz}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-hx, 0, 0}, mgl32.Vec3{0, hy, 0})
	return b.build("box")
}

// NewPlane creates a horizontal plane facing +Y, centered at the origin.
func NewPlane(width, depth float32) *Mesh {
	b := newBuilder()
	b.quad(mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{width / 2, 0, 0}, mgl32.Vec3{0, 0, -depth / 2})
	return b.build("plane")
}

// NewSphere creates a UV sphere. segments runs around the Y axis, rings from pole to pole.
func NewSphere(radius float32, segments, rings int) *Mesh {
	segments = max(segments, 3)
	rings = max(rings, 2)
	b := newBuilder()
	for i := 0; i <= rings; i++ {
		theta := float32(i) / float32(rings) * math32.Pi
		st, ct := math32.Sincos(theta)
		for j := 0; j <= segments; j++ {
			phi := float32(j) / float32(segments) * 2 * math32.Pi
			sp, cp := math32.Sincos(phi)
			n := mgl32.Vec3{st * cp, ct, st * sp}
			b.vertex(n.Mul(radius), n, mgl32.Vec2{float32(j) / float32(segments), 1 - float32(i)/float32(rings)})
		}
	}
	row := uint32(segments + 1)
	for i := uint32(0); i < uint32(rings); i++ {
		for j := uint32(0); j < uint32(segments); j++ {
			a := i*row + j
			c := a + row
			b.triangle(a, a+1, c)
			b.triangle(a+1, c+1, c)
		}
	}
	return b.build("sphere")
}

// FullscreenQuad covers clip space; positions are already in normalized device coordinates.
func FullscreenQuad() *Mesh {
	b := newBuilder()
	b.quad(mgl32.Vec3{}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0})
	return b.build("fullscreen_quad")
}

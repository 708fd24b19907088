package soft

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/helix/internal/engine/gpu"
)

const numVaryings = 8

// varyings are interpolated per fragment: 0-2 position, 3-5 normal, 6-7 uv.
type varyings [numVaryings]float32

func (v *varyings) position() mgl32.Vec3 { return mgl32.Vec3{v[0], v[1], v[2]} }
func (v *varyings) normal() mgl32.Vec3   { return mgl32.Vec3{v[3], v[4], v[5]} }
func (v *varyings) uv() mgl32.Vec2       { return mgl32.Vec2{v[6], v[7]} }

func (v *varyings) set(pos, normal mgl32.Vec3, uv mgl32.Vec2) {
	*v = varyings{pos[0], pos[1], pos[2], normal[0], normal[1], normal[2], uv[0], uv[1]}
}

type vertexIn struct {
	position mgl32.Vec3
	normal   mgl32.Vec3
	uv       mgl32.Vec2
	joints   mgl32.Vec4
	weights  mgl32.Vec4
	morph    [4]mgl32.Vec3
}

type fragment struct {
	x, y     int
	screenUV mgl32.Vec2
	depth    float32
	front    bool
	v        varyings
}

type stage struct {
	vertex func(in *vertexIn) (mgl32.Vec4, varyings)
	// fragment writes up to four outputs and returns false to discard.
	fragment func(f *fragment, out *[4]mgl32.Vec4) bool
}

type clipVertex struct {
	clip mgl32.Vec4
	v    varyings
}

type screenVertex struct {
	x, y, z float32
	invW    float32
	v       varyings // pre-divided by w
}

func (m *meshBuffer) vertex(i int) vertexIn {
	base := i * m.stride
	src := m.data.Vertices[base : base+m.stride]
	var in vertexIn
	read := func(slot int, dst []float32) {
		off := m.offsets[slot]
		if off < 0 {
			return
		}
		copy(dst[:min(len(dst), m.sizes[slot])], src[off:])
	}
	read(0, in.position[:])
	read(1, in.normal[:])
	read(2, in.uv[:])
	read(3, in.joints[:])
	read(4, in.weights[:])
	for k := range in.morph {
		read(5+k, in.morph[k][:])
	}
	return in
}

func (d *Device) draw(p *program, m *meshBuffer) {
	st := p.kernel(env{d: d, p: p})
	fb := d.target

	n := m.data.VertexCount()
	verts := make([]clipVertex, n)
	for i := 0; i < n; i++ {
		in := m.vertex(i)
		verts[i].clip, verts[i].v = st.vertex(&in)
	}

	idx := m.data.Indices
	var poly, scratch []clipVertex
	for t := 0; t+2 < len(idx); t += 3 {
		poly = append(poly[:0], verts[idx[t]], verts[idx[t+1]], verts[idx[t+2]])
		// near: z + w >= 0, far: w - z >= 0
		poly, scratch = clipPolygon(poly, scratch[:0], 1), poly
		poly, scratch = clipPolygon(poly, scratch[:0], -1), poly
		for k := 1; k+1 < len(poly); k++ {
			d.rasterize(fb, st, d.project(poly[0]), d.project(poly[k]), d.project(poly[k+1]))
		}
	}
}

func clipDistance(c mgl32.Vec4, sign float32) float32 {
	return c[3] + sign*c[2]
}

func clipPolygon(in, out []clipVertex, sign float32) []clipVertex {
	for i := range in {
		a := in[i]
		b := in[(i+1)%len(in)]
		da := clipDistance(a.clip, sign)
		db := clipDistance(b.clip, sign)
		if da >= 0 {
			out = append(out, a)
		}
		if (da >= 0) != (db >= 0) {
			t := da / (da - db)
			var c clipVertex
			for k := 0; k < 4; k++ {
				c.clip[k] = a.clip[k] + t*(b.clip[k]-a.clip[k])
			}
			for k := 0; k < numVaryings; k++ {
				c.v[k] = a.v[k] + t*(b.v[k]-a.v[k])
			}
			out = append(out, c)
		}
	}
	return out
}

func (d *Device) project(c clipVertex) screenVertex {
	w := c.clip[3]
	if w == 0 {
		w = 1e-6
	}
	inv := 1 / w
	vp := d.viewport
	s := screenVertex{
		x:    float32(vp.X) + (c.clip[0]*inv+1)*0.5*float32(vp.W),
		y:    float32(vp.Y) + (c.clip[1]*inv+1)*0.5*float32(vp.H),
		z:    c.clip[2]*inv*0.5 + 0.5,
		invW: inv,
	}
	for k := range c.v {
		s.v[k] = c.v[k] * inv
	}
	return s
}

func edge(a, b screenVertex, px, py float32) float32 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

// topLeft applies the fill rule for counter-clockwise triangles with y up.
func topLeft(a, b screenVertex) bool {
	ey := b.y - a.y
	ex := b.x - a.x
	return ey < 0 || (ey == 0 && ex < 0)
}

func (d *Device) rasterize(fb *framebuffer, st stage, a, b, c screenVertex) {
	area := edge(a, b, c.x, c.y)
	if area == 0 {
		return
	}
	front := area > 0
	switch {
	case d.cull == gpu.CullBack && !front, d.cull == gpu.CullFront && front:
		return
	}
	if !front {
		b, c = c, b
		area = -area
	}

	vp := d.viewport
	minX := max(int(math32.Floor(min(a.x, b.x, c.x))), vp.X, 0)
	maxX := min(int(math32.Ceil(max(a.x, b.x, c.x))), vp.X+vp.W, fb.w) - 1
	minY := max(int(math32.Floor(min(a.y, b.y, c.y))), vp.Y, 0)
	maxY := min(int(math32.Ceil(max(a.y, b.y, c.y))), vp.Y+vp.H, fb.h) - 1

	tlBC, tlCA, tlAB := topLeft(b, c), topLeft(c, a), topLeft(a, b)
	rcpArea := 1 / area
	var out [4]mgl32.Vec4

	for y := minY; y <= maxY; y++ {
		py := float32(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float32(x) + 0.5
			w0 := edge(b, c, px, py)
			w1 := edge(c, a, px, py)
			w2 := edge(a, b, px, py)
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			if (w0 == 0 && !tlBC) || (w1 == 0 && !tlCA) || (w2 == 0 && !tlAB) {
				continue
			}
			l0, l1, l2 := w0*rcpArea, w1*rcpArea, w2*rcpArea
			z := l0*a.z + l1*b.z + l2*c.z

			pix := y*fb.w + x
			if !d.depthPass(fb, pix, z) {
				continue
			}

			f := fragment{
				x:        x,
				y:        y,
				screenUV: mgl32.Vec2{px / float32(fb.w), py / float32(fb.h)},
				depth:    z,
				front:    front,
			}
			invW := l0*a.invW + l1*b.invW + l2*c.invW
			for k := range f.v {
				f.v[k] = (l0*a.v[k] + l1*b.v[k] + l2*c.v[k]) / invW
			}

			out = [4]mgl32.Vec4{}
			if !st.fragment(&f, &out) {
				continue
			}
			if d.depthTest != gpu.DepthDisabled && d.depthMask && fb.depth != nil {
				fb.depth.z[y*fb.depth.w+x] = z
			}
			for i, tex := range fb.colors {
				if i >= len(out) {
					break
				}
				tex.set(x, y, d.blendColor(out[i], tex.at(x, y)))
			}
		}
	}
}

func (d *Device) depthPass(fb *framebuffer, pix int, z float32) bool {
	if d.depthTest == gpu.DepthDisabled || fb.depth == nil {
		return true
	}
	stored := fb.depth.z[(pix/fb.w)*fb.depth.w+pix%fb.w]
	switch d.depthTest {
	case gpu.DepthLess:
		return z < stored
	case gpu.DepthLessEqual:
		return z <= stored
	}
	return true
}

func (d *Device) blendColor(src, dst mgl32.Vec4) mgl32.Vec4 {
	b := d.blend
	if b == nil {
		return src
	}
	var out mgl32.Vec4
	for i := 0; i < 3; i++ {
		out[i] = src[i]*blendFactor(b.SrcFactor, src, dst, i) + dst[i]*blendFactor(b.DstFactor, src, dst, i)
	}
	out[3] = src[3]*blendFactor(b.AlphaSrcFactor, src, dst, 3) + dst[3]*blendFactor(b.AlphaDstFactor, src, dst, 3)
	return out
}

func blendFactor(f gpu.BlendFactor, src, dst mgl32.Vec4, channel int) float32 {
	switch f {
	case gpu.BlendOne:
		return 1
	case gpu.BlendSrcAlpha:
		return src[3]
	case gpu.BlendOneMinusSrcAlpha:
		return 1 - src[3]
	case gpu.BlendDstColor:
		return dst[channel]
	}
	return 0
}

package soft

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

type uniformValue struct {
	i int32
	f []float32
	m []mgl32.Mat4
}

type program struct {
	name      string
	kernel    kernel
	locations map[string]int32
	values    []uniformValue
}

func (p *program) Name() string { return p.name }

// UniformLocation assigns locations on first use, so every name resolves.
func (p *program) UniformLocation(name string) int32 {
	if loc, ok := p.locations[name]; ok {
		return loc
	}
	loc := int32(len(p.values))
	p.locations[name] = loc
	p.values = append(p.values, uniformValue{i: -1})
	return loc
}

func (p *program) Release() {}

// env gives kernels read access to the uniforms and texture slots of one draw.
type env struct {
	d *Device
	p *program
}

func (e env) value(name string) *uniformValue {
	loc, ok := e.p.locations[name]
	if !ok {
		return nil
	}
	return &e.p.values[loc]
}

func (e env) float(name string) float32 {
	if u := e.value(name); u != nil && len(u.f) > 0 {
		return u.f[0]
	}
	return 0
}

func (e env) floats(name string) []float32 {
	if u := e.value(name); u != nil {
		return u.f
	}
	return nil
}

func (e env) vec2(name string) mgl32.Vec2 {
	var v mgl32.Vec2
	copy(v[:], e.floats(name))
	return v
}

func (e env) vec3(name string) mgl32.Vec3 {
	var v mgl32.Vec3
	copy(v[:], e.floats(name))
	return v
}

func (e env) vec4(name string) mgl32.Vec4 {
	var v mgl32.Vec4
	copy(v[:], e.floats(name))
	return v
}

func (e env) mat4(name string) mgl32.Mat4 {
	if u := e.value(name); u != nil && len(u.m) > 0 {
		return u.m[0]
	}
	return mgl32.Mat4{}
}

func (e env) mat4s(name string) []mgl32.Mat4 {
	if u := e.value(name); u != nil {
		return u.m
	}
	return nil
}

// sampler resolves a sampler uniform to the texture bound at its slot.
func (e env) sampler(name string) sampler {
	u := e.value(name)
	if u == nil || u.i < 0 || int(u.i) >= len(e.d.textures) {
		return sampler{}
	}
	t := e.d.textures[u.i]
	if t == nil || !t.IsReady() {
		return sampler{}
	}
	return sampler{t: t}
}

// sampler reads a texture with nearest filtering. A missing texture reads as opaque white.
type sampler struct {
	t *texture
}

func (s sampler) valid() bool { return s.t != nil }

func (s sampler) size() (int, int) {
	if s.t == nil {
		return 1, 1
	}
	return s.t.w, s.t.h
}

func (s sampler) sample(uv mgl32.Vec2) mgl32.Vec4 {
	if s.t == nil {
		return mgl32.Vec4{1, 1, 1, 1}
	}
	x := s.coord(uv[0], s.t.w)
	y := s.coord(uv[1], s.t.h)
	return s.t.at(x, y)
}

func (s sampler) coord(u float32, n int) int {
	if s.t.repeat {
		u -= math32.Floor(u)
	}
	i := int(math32.Floor(u * float32(n)))
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// fetch reads the texel at integer coordinates, clamped to the edge.
func (s sampler) fetch(x, y int) mgl32.Vec4 {
	if s.t == nil {
		return mgl32.Vec4{1, 1, 1, 1}
	}
	if x < 0 {
		x = 0
	} else if x >= s.t.w {
		x = s.t.w - 1
	}
	if y < 0 {
		y = 0
	} else if y >= s.t.h {
		y = s.t.h - 1
	}
	return s.t.at(x, y)
}

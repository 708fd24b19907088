package render

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/helix/internal/engine/camera"
	"github.com/Faultbox/helix/internal/engine/effect"
	"github.com/Faultbox/helix/internal/engine/material"
	"github.com/Faultbox/helix/internal/engine/scene"
	hmath "github.com/Faultbox/helix/pkg/math"
)

// Collector walks a scene once per frame and builds everything the renderer draws:
// sorted opaque and transparent items, lights, shadow casters and effects.
//
// The lists are valid until the next Collect.
type Collector struct {
	// Compiler, when set, prepares the passes of every collected material. Materials
	// that are not ready yet are collected anyway; their draws are skipped.
	Compiler *material.Compiler
	// DefaultLightingModel decides which materials are lit from the G-buffer.
	DefaultLightingModel material.LightingModel

	pool        Pool
	opaque      []*Item
	transparent []*Item
	lights      []*scene.Light
	casters     []*scene.Light
	effects     []effect.Effect
	post        []effect.PostProcess
	ao          *effect.AmbientOcclusion
	ambient     mgl32.Vec3

	needsGBuffer     bool
	needsNormalDepth bool
	needsBackbuffer  bool

	camera  *camera.Camera
	planes  []hmath.Plane
	forward mgl32.Vec3
	eye     mgl32.Vec3
}

// NewCollector returns a collector treating materials lit with defaultModel as deferred.
func NewCollector(defaultModel material.LightingModel) *Collector {
	return &Collector{DefaultLightingModel: defaultModel}
}

func (c *Collector) reset() {
	c.pool.Reset()
	c.opaque = c.opaque[:0]
	c.transparent = c.transparent[:0]
	c.lights = c.lights[:0]
	c.casters = c.casters[:0]
	c.effects = c.effects[:0]
	c.post = c.post[:0]
	c.ao = nil
	c.ambient = mgl32.Vec3{}
	c.needsGBuffer = false
	c.needsNormalDepth = false
	c.needsBackbuffer = false
}

// Collect gathers the parts of s visible from cam.
func (c *Collector) Collect(cam *camera.Camera, s *scene.Scene) {
	c.reset()
	c.camera = cam
	c.planes = cam.Frustum().Planes[:]
	c.forward = cam.Forward()
	c.eye = cam.Position()

	c.addEffects(s.Effects)
	s.Traverse(c.visit)
	if s.Skybox != nil {
		model := s.Skybox.Model()
		world := s.Skybox.WorldMatrix(c.eye, cam.FarDistance())
		c.addModel(model, world, hmath.InfiniteAABB())
	}
	c.addEffects(cam.Effects)

	sort.SliceStable(c.opaque, func(i, j int) bool {
		a, b := c.opaque[i], c.opaque[j]
		if ra, rb := a.Material.RenderOrder(), b.Material.RenderOrder(); ra != rb {
			return ra < rb
		}
		if ha, hb := a.Material.RenderOrderHint(), b.Material.RenderOrderHint(); ha != hb {
			return ha < hb
		}
		return a.OrderHint < b.OrderHint
	})
	sort.SliceStable(c.transparent, func(i, j int) bool {
		a, b := c.transparent[i], c.transparent[j]
		if ra, rb := a.Material.RenderOrder(), b.Material.RenderOrder(); ra != rb {
			return ra < rb
		}
		return a.OrderHint > b.OrderHint
	})
	sort.SliceStable(c.lights, func(i, j int) bool {
		a, b := c.lights[i], c.lights[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return !a.CastsShadows() && b.CastsShadows()
	})
}

// qualifies is the culling test for a node and its subtree.
func (c *Collector) qualifies(n *scene.Node) bool {
	return n.Visible() && n.WorldBounds().IntersectsConvexSolid(c.planes)
}

func (c *Collector) visit(n *scene.Node) bool {
	if !c.qualifies(n) {
		return false
	}
	switch n.Kind() {
	case scene.KindModel:
		c.addModel(n.Model(), n.WorldMatrix(), n.ModelBounds())
	case scene.KindLight:
		c.addLight(n.Light())
	}
	c.addEffects(n.Effects)
	return true
}

func (c *Collector) addModel(model *scene.ModelInstance, world mgl32.Mat4, bounds hmath.AABB) {
	for _, mi := range model.Meshes() {
		if !mi.Visible {
			continue
		}
		m := mi.Material
		if c.Compiler != nil {
			c.Compiler.Prepare(m)
		}
		it := c.pool.Get()
		it.Set(model, mi, world, bounds, c.camera)
		if !bounds.IsInfinite() && !bounds.IsEmpty() {
			it.OrderHint = bounds.Center().Sub(c.eye).Dot(c.forward)
		}

		if m.NeedsBackbuffer() {
			c.needsBackbuffer = true
		}
		if m.NeedsNormalDepth() {
			c.needsNormalDepth = true
		}
		if m.IsDeferred(c.DefaultLightingModel) {
			c.needsGBuffer = true
		}
		if m.IsTransparent() {
			c.transparent = append(c.transparent, it)
		} else {
			c.opaque = append(c.opaque, it)
		}
	}
}

func (c *Collector) addLight(l *scene.Light) {
	if l.Kind == scene.AmbientLight {
		c.ambient = c.ambient.Add(l.Radiance())
		return
	}
	c.lights = append(c.lights, l)
	if l.CastsShadows() {
		c.casters = append(c.casters, l)
	}
}

func (c *Collector) addEffects(effects []effect.Effect) {
	for _, e := range effects {
		if !e.Enabled() {
			continue
		}
		c.effects = append(c.effects, e)
		if e.NeedsNormalDepth() {
			c.needsNormalDepth = true
		}
		switch e := e.(type) {
		case *effect.AmbientOcclusion:
			if c.ao == nil {
				c.ao = e
			}
		case effect.PostProcess:
			c.post = append(c.post, e)
		}
	}
}

// Opaque returns the opaque items sorted by render order, material and distance.
func (c *Collector) Opaque() []*Item { return c.opaque }

// Transparent returns the blended items sorted back to front within each render order.
func (c *Collector) Transparent() []*Item { return c.transparent }

// Lights returns the non-ambient lights, grouped by kind with shadow casters last.
func (c *Collector) Lights() []*scene.Light { return c.lights }

// ShadowCasters returns the lights that render shadow maps.
func (c *Collector) ShadowCasters() []*scene.Light { return c.casters }

// Effects returns every enabled effect: scene effects, node effects, then camera effects.
func (c *Collector) Effects() []effect.Effect { return c.effects }

// PostEffects returns the post-process chain in order.
func (c *Collector) PostEffects() []effect.PostProcess { return c.post }

// AmbientOcclusion returns the first enabled ambient occlusion effect, or nil.
func (c *Collector) AmbientOcclusion() *effect.AmbientOcclusion { return c.ao }

// AmbientColor returns the sum of the ambient lights.
func (c *Collector) AmbientColor() mgl32.Vec3 { return c.ambient }

// NeedsGBuffer reports whether any collected material is lit from the G-buffer.
func (c *Collector) NeedsGBuffer() bool { return c.needsGBuffer }

// NeedsNormalDepth reports whether a material or effect reads the normal/depth plane.
func (c *Collector) NeedsNormalDepth() bool { return c.needsNormalDepth }

// NeedsBackbuffer reports whether a material reads the rendered image.
func (c *Collector) NeedsBackbuffer() bool { return c.needsBackbuffer }

// Camera returns the camera of the last Collect.
func (c *Collector) Camera() *camera.Camera { return c.camera }

// NumItems returns the number of items issued by the last Collect.
func (c *Collector) NumItems() int { return c.pool.Len() }

// PoolCapacity returns the number of items the pool has allocated.
func (c *Collector) PoolCapacity() int { return c.pool.Cap() }

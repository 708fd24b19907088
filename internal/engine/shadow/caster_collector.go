package shadow

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/helix/internal/engine/material"
	"github.com/Faultbox/helix/internal/engine/render"
	"github.com/Faultbox/helix/internal/engine/scene"
	hmath "github.com/Faultbox/helix/pkg/math"
)

// CasterCollector gathers the shadow casters of each cascade in one scene traversal.
type CasterCollector struct {
	// Compiler, when set, prepares the passes of collected materials.
	Compiler *material.Compiler

	pool      render.Pool
	lists     [][]*render.Item
	planes    []hmath.Plane
	cascades  []*Cascade
	lightView mgl32.Mat4
	bounds    hmath.AABB
}

// Collect walks s, keeping shadow-casting models inside cullPlanes, and files each one
// under every cascade whose side planes it touches. lightView transforms world space
// into light space.
func (c *CasterCollector) Collect(s *scene.Scene, cullPlanes []hmath.Plane, cascades []*Cascade, lightView mgl32.Mat4) {
	c.pool.Reset()
	for len(c.lists) < len(cascades) {
		c.lists = append(c.lists, nil)
	}
	c.lists = c.lists[:len(cascades)]
	for i := range c.lists {
		c.lists[i] = c.lists[i][:0]
	}
	c.planes = cullPlanes
	c.cascades = cascades
	c.lightView = lightView
	c.bounds = hmath.EmptyAABB()
	s.Traverse(c.visit)
}

func (c *CasterCollector) visit(n *scene.Node) bool {
	if !n.Visible() || !n.WorldBounds().IntersectsConvexSolid(c.planes) {
		return false
	}
	if n.Kind() != scene.KindModel || !n.Model().CastShadows {
		return true
	}
	model := n.Model()
	bounds := n.ModelBounds()
	if !bounds.IntersectsConvexSolid(c.planes) {
		return true
	}
	world := n.WorldMatrix()
	added := false
	for _, mi := range model.Meshes() {
		if !mi.Visible {
			continue
		}
		if c.Compiler != nil {
			c.Compiler.Prepare(mi.Material)
		}
		for i, cascade := range c.cascades {
			if !bounds.IntersectsConvexSolid(cascade.Planes()) {
				continue
			}
			it := c.pool.Get()
			it.Set(model, mi, world, bounds, cascade.Camera)
			c.lists[i] = append(c.lists[i], it)
			added = true
		}
	}
	if added {
		c.bounds.GrowToIncludeBound(bounds.Transform(c.lightView))
	}
	return true
}

// Items returns the casters of cascade i.
func (c *CasterCollector) Items(i int) []*render.Item { return c.lists[i] }

// CasterBounds returns the light-space bounds of every collected caster.
func (c *CasterCollector) CasterBounds() hmath.AABB { return c.bounds }

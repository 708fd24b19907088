package debug

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/material"
	"github.com/Faultbox/helix/internal/engine/mesh"
	"github.com/Faultbox/helix/internal/engine/scene"
	hmath "github.com/Faultbox/helix/pkg/math"
)

// DefaultBoundsThickness is the bar width of bounds overlays in world units.
const DefaultBoundsThickness = 0.02

// boxEdges lists the 12 edges of a box as pairs of corner indices; bit 0 of an index
// selects max x, bit 1 max y and bit 2 max z.
var boxEdges = [12][2]int{
	{0, 1}, {2, 3}, {4, 5}, {6, 7}, // along x
	{0, 2}, {1, 3}, {4, 6}, {5, 7}, // along y
	{0, 4}, {1, 5}, {2, 6}, {3, 7}, // along z
}

func corner(b hmath.AABB, i int) mgl32.Vec3 {
	c := b.Min
	if i&1 != 0 {
		c[0] = b.Max[0]
	}
	if i&2 != 0 {
		c[1] = b.Max[1]
	}
	if i&4 != 0 {
		c[2] = b.Max[2]
	}
	return c
}

// appendWireBox adds the edges of b to data as square bars so they can be drawn as
// triangles.
func appendWireBox(data *gpu.MeshData, b hmath.AABB, thickness float32) {
	stride := data.Stride()
	for _, e := range boxEdges {
		p0, p1 := corner(b, e[0]), corner(b, e[1])
		size := mgl32.Vec3{thickness, thickness, thickness}
		for axis := range 3 {
			if d := p1[axis] - p0[axis]; d > 0 {
				size[axis] = d + thickness
			}
		}
		center := p0.Add(p1).Mul(0.5)

		bar := mesh.NewBox(size[0], size[1], size[2]).Data()
		base := uint32(len(data.Vertices) / stride)
		for i := 0; i < len(bar.Vertices); i += stride {
			v := bar.Vertices[i : i+stride]
			data.Vertices = append(data.Vertices, v[0]+center[0], v[1]+center[1], v[2]+center[2])
			data.Vertices = append(data.Vertices, v[3:]...)
		}
		for _, idx := range bar.Indices {
			data.Indices = append(data.Indices, base+idx)
		}
	}
}

// BoundsOverlay draws the world bounds of every visible model in a scene.
type BoundsOverlay struct {
	Thickness float32

	mat  *material.Material
	node *scene.Node
	mesh *mesh.Mesh
}

// NewBoundsOverlay creates an overlay drawn unlit in color.
func NewBoundsOverlay(color mgl32.Vec3) *BoundsOverlay {
	mat := material.New("bounds_overlay", material.Unlit)
	mat.SetColor(color.Vec4(1))
	mat.SetCullMode(gpu.CullNone)
	return &BoundsOverlay{Thickness: DefaultBoundsThickness, mat: mat}
}

// Update rebuilds the overlay from the current bounds of the models in s and attaches
// it to the root. It returns false when there is nothing to show.
func (o *BoundsOverlay) Update(s *scene.Scene) bool {
	o.Remove(s)

	data := &gpu.MeshData{Attributes: mesh.NewBox(1, 1, 1).Data().Attributes}
	s.Traverse(func(n *scene.Node) bool {
		if !n.Visible() {
			return false
		}
		if n.Kind() == scene.KindModel {
			if b := n.ModelBounds(); !b.IsEmpty() && !b.IsInfinite() {
				appendWireBox(data, b, o.Thickness)
			}
		}
		return true
	})
	if len(data.Indices) == 0 {
		return false
	}

	m, err := mesh.New("bounds_overlay", data)
	if err != nil {
		return false
	}
	model := scene.NewModelInstance(scene.NewMeshInstance(m, o.mat))
	model.CastShadows = false
	o.mesh = m
	o.node = scene.NewModelNode("bounds_overlay", model)
	s.Add(o.node)
	return true
}

// Remove detaches the overlay and frees its mesh.
func (o *BoundsOverlay) Remove(s *scene.Scene) {
	if o.node == nil {
		return
	}
	s.Root().RemoveChild(o.node)
	o.mesh.Release()
	o.node, o.mesh = nil, nil
}

// Node returns the overlay node, or nil when it is not attached.
func (o *BoundsOverlay) Node() *scene.Node { return o.node }

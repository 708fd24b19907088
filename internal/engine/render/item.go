// Package render turns a scene into sorted lists of draws and executes them pass by pass.
package render

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/helix/internal/engine/material"
	"github.com/Faultbox/helix/internal/engine/scene"
	hmath "github.com/Faultbox/helix/pkg/math"
)

// Item is one mesh instance drawn with one material for the current frame. Items come
// from a Pool and are reused after the next collection; never keep one across frames.
type Item struct {
	World        mgl32.Mat4
	Bounds       hmath.AABB
	MeshInstance *scene.MeshInstance
	Model        *scene.ModelInstance
	Material     *material.Material
	Pose         []mgl32.Mat4
	Morph        []float32
	// OrderHint is the distance of the bounds centre along the view direction.
	OrderHint float32
	View      material.View
}

// WorldMatrix implements material.Instance.
func (it *Item) WorldMatrix() mgl32.Mat4 { return it.World }

// SkinningMatrices implements material.Instance.
func (it *Item) SkinningMatrices() []mgl32.Mat4 { return it.Pose }

// MorphWeights implements material.Instance.
func (it *Item) MorphWeights() []float32 { return it.Morph }

// Set fills the item for one mesh instance of model.
func (it *Item) Set(model *scene.ModelInstance, mi *scene.MeshInstance, world mgl32.Mat4, bounds hmath.AABB, view material.View) {
	it.World = world
	it.Bounds = bounds
	it.MeshInstance = mi
	it.Model = model
	it.Material = mi.Material
	it.Pose = model.Pose()
	it.Morph = model.MorphWeights()
	it.View = view
	it.OrderHint = 0
}

const poolChunkSize = 64

// Pool hands out Items without allocating once it has grown to the frame's needs.
// Items live in fixed-size chunks so their addresses stay valid while the pool grows.
type Pool struct {
	chunks [][]Item
	n      int
}

// Get returns the next free item. Its previous contents are left in place.
func (p *Pool) Get() *Item {
	c, i := p.n/poolChunkSize, p.n%poolChunkSize
	if c == len(p.chunks) {
		p.chunks = append(p.chunks, make([]Item, poolChunkSize))
	}
	p.n++
	return &p.chunks[c][i]
}

// Reset makes every item available again.
func (p *Pool) Reset() { p.n = 0 }

// Len returns the number of items handed out since Reset.
func (p *Pool) Len() int { return p.n }

// Cap returns the number of items the pool has allocated.
func (p *Pool) Cap() int { return len(p.chunks) * poolChunkSize }

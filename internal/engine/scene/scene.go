// Package scene holds the scene graph the renderer draws: group, model and light nodes,
// the lights themselves and an optional skybox.
package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/helix/internal/engine/effect"
	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/material"
	"github.com/Faultbox/helix/internal/engine/mesh"
)

// SkyboxRenderOrder sorts the skybox after all default opaque geometry.
const SkyboxRenderOrder = 1000

// Scene is the root of a scene graph.
type Scene struct {
	// Effects apply to every camera rendering the scene, before camera effects.
	Effects []effect.Effect
	Skybox  *Skybox

	root *Node
}

// New creates an empty scene.
func New() *Scene {
	return &Scene{root: NewGroup("root")}
}

// Root returns the root group.
func (s *Scene) Root() *Node { return s.root }

// Add attaches nodes to the root.
func (s *Scene) Add(nodes ...*Node) {
	for _, n := range nodes {
		s.root.AddChild(n)
	}
}

// Traverse visits nodes depth first starting at the root. Children of a node are only
// visited when visit returns true for it.
func (s *Scene) Traverse(visit func(n *Node) bool) {
	traverse(s.root, visit)
}

func traverse(n *Node, visit func(n *Node) bool) {
	if !visit(n) {
		return
	}
	for _, c := range n.children {
		traverse(c, visit)
	}
}

// Skybox is an unlit inside-out sphere centred on the camera. It has no node and is
// never culled.
type Skybox struct {
	model *ModelInstance
}

// NewSkybox creates a skybox drawn with the given unlit material. The material's cull
// mode, depth write and render order are set for drawing from the inside.
func NewSkybox(mat *material.Material) *Skybox {
	mat.SetCullMode(gpu.CullFront)
	mat.SetWriteDepth(false)
	mat.SetRenderOrder(SkyboxRenderOrder)
	sphere := mesh.NewSphere(1, 24, 12)
	return &Skybox{model: NewModelInstance(NewMeshInstance(sphere, mat))}
}

// Model returns the skybox model.
func (s *Skybox) Model() *ModelInstance { return s.model }

// WorldMatrix places the sphere around eye, halfway to the far plane.
func (s *Skybox) WorldMatrix(eye mgl32.Vec3, far float32) mgl32.Mat4 {
	r := far * 0.5
	return mgl32.Translate3D(eye[0], eye[1], eye[2]).Mul4(mgl32.Scale3D(r, r, r))
}

package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/helix/internal/engine/material"
	"github.com/Faultbox/helix/internal/engine/mesh"
	hmath "github.com/Faultbox/helix/pkg/math"
)

// MeshInstance pairs a mesh with the material it is drawn with.
type MeshInstance struct {
	Mesh     *mesh.Mesh
	Material *material.Material
	Visible  bool
}

// ModelInstance is a set of mesh instances drawn with one transform, optionally
// skinned and morphed.
type ModelInstance struct {
	CastShadows bool

	node        *Node
	meshes      []*MeshInstance
	initialized bool
	numJoints   int
	pose        []mgl32.Mat4
	morph       []float32
}

// NewModelInstance creates a shadow-casting model from mesh/material pairs.
func NewModelInstance(meshes ...*MeshInstance) *ModelInstance {
	m := &ModelInstance{CastShadows: true}
	m.Init(meshes)
	return m
}

// Init sets the meshes. It panics when called twice.
func (m *ModelInstance) Init(meshes []*MeshInstance) {
	if m.initialized {
		panic("scene: model instance initialized twice")
	}
	m.initialized = true
	m.meshes = meshes
	for _, mi := range meshes {
		if mi.Mesh.HasSkinning() {
			mi.Material.SetSkinning(true)
		}
		if mi.Mesh.NumMorphTargets() > 0 {
			mi.Material.SetMorphing(true)
		}
	}
}

// NewMeshInstance returns a visible mesh instance.
func NewMeshInstance(m *mesh.Mesh, mat *material.Material) *MeshInstance {
	return &MeshInstance{Mesh: m, Material: mat, Visible: true}
}

// Meshes returns the mesh instances.
func (m *ModelInstance) Meshes() []*MeshInstance { return m.meshes }

// Node returns the node the model is attached to.
func (m *ModelInstance) Node() *Node { return m.node }

// LocalBounds returns the union of the mesh bounds.
func (m *ModelInstance) LocalBounds() hmath.AABB {
	b := hmath.EmptyAABB()
	for _, mi := range m.meshes {
		b.GrowToIncludeBound(mi.Mesh.Bounds())
	}
	return b
}

// SetSkeleton declares the number of joints skinning matrices are given for.
func (m *ModelInstance) SetSkeleton(numJoints int) {
	m.numJoints = numJoints
	m.pose = make([]mgl32.Mat4, numJoints)
	for i := range m.pose {
		m.pose[i] = mgl32.Ident4()
	}
}

// SetPose sets the skinning matrices. It panics when the joint count differs from the
// skeleton.
func (m *ModelInstance) SetPose(pose []mgl32.Mat4) {
	if len(pose) != m.numJoints {
		panic(fmt.Sprintf("scene: pose has %d joints, skeleton has %d", len(pose), m.numJoints))
	}
	copy(m.pose, pose)
}

// Pose returns the skinning matrices, nil without a skeleton.
func (m *ModelInstance) Pose() []mgl32.Mat4 { return m.pose }

// SetMorphWeights sets the weights of the morph targets.
func (m *ModelInstance) SetMorphWeights(w []float32) {
	m.morph = append(m.morph[:0], w...)
}

// MorphWeights returns the morph target weights.
func (m *ModelInstance) MorphWeights() []float32 { return m.morph }

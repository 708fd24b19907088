package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/helix/internal/engine/effect"
	hmath "github.com/Faultbox/helix/pkg/math"
)

// Kind is the closed set of node kinds.
type Kind int

const (
	// KindGroup nodes only carry children and effects.
	KindGroup Kind = iota
	KindModel
	KindLight
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindModel:
		return "model"
	case KindLight:
		return "light"
	}
	return "unknown"
}

// Node is a transform in the scene tree. World matrices and world bounds are computed on
// demand and cached; changing a transform invalidates the subtree's matrices and the
// bounds of every ancestor.
type Node struct {
	Name string
	// Effects attached to the node are collected when the node is visible.
	Effects []effect.Effect

	kind    Kind
	model   *ModelInstance
	light   *Light
	visible bool

	local      mgl32.Mat4
	world      mgl32.Mat4
	worldDirty bool

	bounds      hmath.AABB
	boundsDirty bool

	parent   *Node
	children []*Node
}

func newNode(name string, kind Kind) *Node {
	return &Node{
		Name:        name,
		kind:        kind,
		visible:     true,
		local:       mgl32.Ident4(),
		world:       mgl32.Ident4(),
		worldDirty:  true,
		boundsDirty: true,
	}
}

// NewGroup creates an empty group node.
func NewGroup(name string) *Node {
	return newNode(name, KindGroup)
}

// NewModelNode creates a node drawing model.
func NewModelNode(name string, model *ModelInstance) *Node {
	n := newNode(name, KindModel)
	n.model = model
	model.node = n
	return n
}

// NewLightNode creates a node carrying light.
func NewLightNode(name string, light *Light) *Node {
	n := newNode(name, KindLight)
	n.light = light
	light.node = n
	return n
}

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// Model returns the model of a KindModel node.
func (n *Node) Model() *ModelInstance { return n.model }

// Light returns the light of a KindLight node.
func (n *Node) Light() *Light { return n.light }

// Visible reports whether the node and its subtree are drawn.
func (n *Node) Visible() bool { return n.visible }

// SetVisible shows or hides the node and its subtree.
func (n *Node) SetVisible(v bool) { n.visible = v }

// Parent returns the parent node.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the child nodes.
func (n *Node) Children() []*Node { return n.children }

// AddChild attaches c, detaching it from its previous parent.
func (n *Node) AddChild(c *Node) {
	if c.parent != nil {
		c.parent.RemoveChild(c)
	}
	c.parent = n
	n.children = append(n.children, c)
	c.invalidateWorld()
	c.invalidateAncestorBounds()
}

// RemoveChild detaches c.
func (n *Node) RemoveChild(c *Node) {
	for i, child := range n.children {
		if child == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			c.invalidateAncestorBounds()
			c.parent = nil
			c.invalidateWorld()
			return
		}
	}
}

// Transform returns the local transform.
func (n *Node) Transform() mgl32.Mat4 { return n.local }

// SetTransform sets the local transform.
func (n *Node) SetTransform(m mgl32.Mat4) {
	n.local = m
	n.invalidateWorld()
	n.invalidateAncestorBounds()
}

// SetPosition replaces the translation of the local transform.
func (n *Node) SetPosition(p mgl32.Vec3) {
	m := n.local
	m.SetCol(3, p.Vec4(1))
	n.SetTransform(m)
}

// LookAt orients the node so its -Z axis points at target.
func (n *Node) LookAt(eye, target, up mgl32.Vec3) {
	n.SetTransform(mgl32.LookAtV(eye, target, up).Inv())
}

func (n *Node) invalidateWorld() {
	n.worldDirty = true
	n.boundsDirty = true
	for _, c := range n.children {
		c.invalidateWorld()
	}
}

func (n *Node) invalidateAncestorBounds() {
	for p := n.parent; p != nil && !p.boundsDirty; p = p.parent {
		p.boundsDirty = true
	}
}

// WorldMatrix returns the local-to-world transform.
func (n *Node) WorldMatrix() mgl32.Mat4 {
	if n.worldDirty {
		if n.parent != nil {
			n.world = n.parent.WorldMatrix().Mul4(n.local)
		} else {
			n.world = n.local
		}
		n.worldDirty = false
	}
	return n.world
}

// WorldBounds returns the world-space bounds of the node and its subtree.
func (n *Node) WorldBounds() hmath.AABB {
	if !n.boundsDirty {
		return n.bounds
	}
	b := n.ownBounds()
	for _, c := range n.children {
		b.GrowToIncludeBound(c.WorldBounds())
	}
	n.bounds = b
	n.boundsDirty = false
	return b
}

// ModelBounds returns the world bounds of the node's own model, without children.
func (n *Node) ModelBounds() hmath.AABB {
	if n.model == nil {
		return hmath.EmptyAABB()
	}
	return n.model.LocalBounds().Transform(n.WorldMatrix())
}

func (n *Node) ownBounds() hmath.AABB {
	switch n.kind {
	case KindModel:
		return n.ModelBounds()
	case KindLight:
		return n.light.worldBounds()
	}
	return hmath.EmptyAABB()
}

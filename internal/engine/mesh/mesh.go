// Package mesh holds CPU-side geometry and uploads it to a device on first use.
package mesh

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/helix/internal/engine/gpu"
	hmath "github.com/Faultbox/helix/pkg/math"
)

// ErrNoPositions is returned for vertex data without a position attribute.
var ErrNoPositions = errors.New("mesh has no position attribute")

// Mesh is vertex data plus the GPU buffer created from it.
type Mesh struct {
	Name string

	data   *gpu.MeshData
	bounds hmath.AABB

	dev    gpu.Device
	buffer gpu.MeshBuffer
}

// New wraps data. Bounds are computed from the position attribute.
func New(name string, data *gpu.MeshData) (*Mesh, error) {
	off := data.AttributeOffset(gpu.AttrPosition)
	if off < 0 {
		return nil, fmt.Errorf("mesh %q: %w", name, ErrNoPositions)
	}
	m := &Mesh{Name: name, data: data, bounds: hmath.EmptyAABB()}
	stride := data.Stride()
	for i := 0; i+off+3 <= len(data.Vertices); i += stride {
		v := data.Vertices[i+off:]
		m.bounds.GrowToIncludePoint(mgl32.Vec3{v[0], v[1], v[2]})
	}
	return m, nil
}

// Data returns the vertex data.
func (m *Mesh) Data() *gpu.MeshData { return m.data }

// Bounds returns the local-space bounds.
func (m *Mesh) Bounds() hmath.AABB { return m.bounds }

// HasAttribute reports whether the vertex data carries the named attribute.
func (m *Mesh) HasAttribute(name string) bool {
	return m.data.AttributeOffset(name) >= 0
}

// HasSkinning reports whether vertices carry joint indices and weights.
func (m *Mesh) HasSkinning() bool {
	return m.HasAttribute(gpu.AttrJointIndices) && m.HasAttribute(gpu.AttrJointWeights)
}

// NumMorphTargets returns how many morph position attributes are present.
func (m *Mesh) NumMorphTargets() int {
	n := 0
	for _, name := range gpu.AttributeLocations[5:] {
		if m.HasAttribute(name) {
			n++
		}
	}
	return n
}

// Buffer returns the GPU buffer for dev, uploading the data on first use.
func (m *Mesh) Buffer(dev gpu.Device) (gpu.MeshBuffer, error) {
	if m.buffer != nil && m.dev == dev {
		return m.buffer, nil
	}
	m.Release()
	b, err := dev.CreateMesh(m.data)
	if err != nil {
		return nil, fmt.Errorf("upload mesh %q: %w", m.Name, err)
	}
	m.dev = dev
	m.buffer = b
	return b, nil
}

// Release frees the GPU buffer. The CPU data is kept so the mesh can be uploaded again.
func (m *Mesh) Release() {
	if m.buffer != nil {
		m.buffer.Release()
		m.buffer = nil
		m.dev = nil
	}
}

package picking

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/helix/internal/engine/camera"
	"github.com/Faultbox/helix/internal/engine/material"
	"github.com/Faultbox/helix/internal/engine/mesh"
	"github.com/Faultbox/helix/internal/engine/scene"
	hmath "github.com/Faultbox/helix/pkg/math"
)

func TestScreenToRay(t *testing.T) {
	cam := camera.NewPerspective(mgl32.DegToRad(60), 2, 0.1, 100)
	cam.LookAt(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})

	r := ScreenToRay(100, 50, 200, 100, cam.InverseViewProjectionMatrix())
	assert.InDeltaSlice(t, []float32{0, 0, -1}, r.Direction[:], 1e-4)
	assert.InDelta(t, 4.9, r.Origin[2], 1e-3)

	// the top left corner points up and to the left
	corner := ScreenToRay(0, 0, 200, 100, cam.InverseViewProjectionMatrix())
	assert.Less(t, corner.Direction[0], float32(0))
	assert.Greater(t, corner.Direction[1], float32(0))
	assert.InDelta(t, 1, corner.Direction.Len(), 1e-5)
}

func TestIntersectAABB(t *testing.T) {
	box := hmath.NewAABB(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})
	tests := []struct {
		name string
		ray  Ray
		t    float32
		hit  bool
	}{
		{"ahead", Ray{mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0, 0, -1}}, 4, true},
		{"inside", Ray{mgl32.Vec3{}, mgl32.Vec3{1, 0, 0}}, 1, true},
		{"behind", Ray{mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0, 0, 1}}, 0, false},
		{"parallel outside", Ray{mgl32.Vec3{0, 2, 5}, mgl32.Vec3{0, 0, -1}}, 0, false},
		{"miss", Ray{mgl32.Vec3{3, 0, 5}, mgl32.Vec3{0, 0, -1}}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hit := tt.ray.IntersectAABB(box)
			assert.Equal(t, tt.hit, hit)
			assert.InDelta(t, tt.t, got, 1e-5)
		})
	}

	r := Ray{mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0, 0, -1}}
	_, hit := r.IntersectAABB(hmath.EmptyAABB())
	assert.False(t, hit)
	_, hit = r.IntersectAABB(hmath.InfiniteAABB())
	assert.True(t, hit)
}

func TestIntersectPlaneY(t *testing.T) {
	r := Ray{mgl32.Vec3{1, 4, 2}, mgl32.Vec3{0, -1, 0}}
	x, z, ok := r.IntersectPlaneY(0)
	require.True(t, ok)
	assert.Equal(t, float32(1), x)
	assert.Equal(t, float32(2), z)

	_, _, ok = Ray{mgl32.Vec3{0, 4, 0}, mgl32.Vec3{1, 0, 0}}.IntersectPlaneY(0)
	assert.False(t, ok)
	_, _, ok = Ray{mgl32.Vec3{0, 4, 0}, mgl32.Vec3{0, 1, 0}}.IntersectPlaneY(0)
	assert.False(t, ok)
}

func TestPick(t *testing.T) {
	s := scene.New()
	add := func(name string, z float32) *scene.Node {
		n := scene.NewModelNode(name, scene.NewModelInstance(
			scene.NewMeshInstance(mesh.NewBox(1, 1, 1), material.New(name, material.Unlit))))
		n.SetPosition(mgl32.Vec3{0, 0, z})
		s.Add(n)
		return n
	}
	far := add("far", -10)
	near := add("near", -4)

	r := Ray{mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}}
	n, dist, ok := Pick(s, r)
	require.True(t, ok)
	assert.Same(t, near, n)
	assert.InDelta(t, 3.5, dist, 1e-5)

	near.SetVisible(false)
	n, _, ok = Pick(s, r)
	require.True(t, ok)
	assert.Same(t, far, n)

	_, _, ok = Pick(s, Ray{mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}})
	assert.False(t, ok)
}

// Package picking casts rays from the screen into a scene and finds the model under
// the cursor.
package picking

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/helix/internal/engine/scene"
	hmath "github.com/Faultbox/helix/pkg/math"
)

// Ray represents a ray in 3D space with origin and direction.
type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3 // normalized
}

// ScreenToRay converts pixel coordinates (origin top left) in a viewport of
// viewportW by viewportH to a world-space ray through the near and far planes.
func ScreenToRay(screenX, screenY, viewportW, viewportH float32, invViewProj mgl32.Mat4) Ray {
	ndcX := 2*screenX/viewportW - 1
	ndcY := 1 - 2*screenY/viewportH

	near := unproject(invViewProj, mgl32.Vec4{ndcX, ndcY, -1, 1})
	far := unproject(invViewProj, mgl32.Vec4{ndcX, ndcY, 1, 1})

	dir := far.Sub(near)
	if dir.Len() > 0 {
		dir = dir.Normalize()
	}
	return Ray{Origin: near, Direction: dir}
}

func unproject(m mgl32.Mat4, p mgl32.Vec4) mgl32.Vec3 {
	w := m.Mul4x1(p)
	if w[3] != 0 {
		return w.Vec3().Mul(1 / w[3])
	}
	return w.Vec3()
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float32) mgl32.Vec3 { return r.Origin.Add(r.Direction.Mul(t)) }

// IntersectPlaneY intersects the ray with the horizontal plane y = planeY.
func (r Ray) IntersectPlaneY(planeY float32) (x, z float32, ok bool) {
	if math32.Abs(r.Direction[1]) < 0.001 {
		return 0, 0, false
	}
	t := (planeY - r.Origin[1]) / r.Direction[1]
	if t < 0 {
		return 0, 0, false
	}
	p := r.At(t)
	return p[0], p[2], true
}

// IntersectAABB returns the distance to the first hit of the box. A ray starting inside
// the box hits at its exit point. Empty boxes are never hit, infinite ones always at 0.
func (r Ray) IntersectAABB(box hmath.AABB) (t float32, hit bool) {
	switch {
	case box.IsEmpty():
		return 0, false
	case box.IsInfinite():
		return 0, true
	}

	tmin := math32.Inf(-1)
	tmax := math32.Inf(1)
	for i := 0; i < 3; i++ {
		if r.Direction[i] == 0 {
			if r.Origin[i] < box.Min[i] || r.Origin[i] > box.Max[i] {
				return 0, false
			}
			continue
		}
		t1 := (box.Min[i] - r.Origin[i]) / r.Direction[i]
		t2 := (box.Max[i] - r.Origin[i]) / r.Direction[i]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = max(tmin, t1)
		tmax = min(tmax, t2)
	}

	if tmax < tmin || tmax < 0 {
		return 0, false
	}
	if tmin < 0 {
		return tmax, true
	}
	return tmin, true
}

// Pick returns the visible model node whose world bounds the ray hits first. Hidden
// nodes hide their subtree.
func Pick(s *scene.Scene, r Ray) (*scene.Node, float32, bool) {
	var (
		best  *scene.Node
		bestT float32
	)
	s.Traverse(func(n *scene.Node) bool {
		if !n.Visible() {
			return false
		}
		if n.Kind() != scene.KindModel {
			return true
		}
		if t, ok := r.IntersectAABB(n.ModelBounds()); ok && (best == nil || t < bestT) {
			best, bestT = n, t
		}
		return true
	})
	return best, bestT, best != nil
}

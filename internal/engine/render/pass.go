package render

import (
	"go.uber.org/zap"

	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/material"
	"github.com/Faultbox/helix/internal/engine/mesh"
	"github.com/Faultbox/helix/internal/logger"
)

// PassContext is what every draw of a pass shares.
type PassContext struct {
	GC    *gpu.GraphicsContext
	View  material.View
	Frame material.FrameResources
	// Light is the light drawn for, nil for unlit and G-buffer passes.
	Light material.Light
	// Filter, when set, drops the items it returns false for.
	Filter func(it *Item) bool
}

// RenderPass draws items with their material's pass of type typ and returns the number
// of draws issued. Items whose material has no such pass are skipped.
//
// Pass state is applied once per run of items sharing a pass and a mesh is only bound
// when it changes, so sorted lists draw with few state changes.
func RenderPass(ctx *PassContext, typ material.PassType, items []*Item) int {
	gc := ctx.GC
	var (
		lastPass *material.Pass
		lastMesh *mesh.Mesh
		draws    int
	)
	for _, it := range items {
		if ctx.Filter != nil && !ctx.Filter(it) {
			continue
		}
		pass := it.Material.Pass(typ)
		if pass == nil {
			continue
		}
		m := it.MeshInstance.Mesh
		buf, err := m.Buffer(gc.Device())
		if err != nil {
			logger.Warn("mesh upload failed", zap.String("mesh", m.Name), zap.Error(err))
			continue
		}
		if pass != lastPass {
			pass.UpdatePassRenderState(gc, ctx.View, ctx.Frame, ctx.Light)
			lastPass = pass
		}
		if m != lastMesh {
			gc.BindMesh(buf)
			lastMesh = m
		}
		pass.UpdateInstanceRenderState(gc, ctx.View, it)
		gc.DrawElements()
		draws++
	}
	return draws
}

package main

import (
	"fmt"

	"github.com/AllenDang/cimgui-go/imgui"
	"go.uber.org/zap"

	"github.com/Faultbox/helix/internal/engine/material"
	"github.com/Faultbox/helix/internal/engine/renderer"
	"github.com/Faultbox/helix/internal/engine/scene"
)

var shadowFilters = []material.ShadowFilter{material.ShadowHard, material.ShadowPCF, material.ShadowVSM, material.ShadowESM}

// renderOptionsPanel edits the renderer options. Changes that invalidate materials
// are applied through SetOptions so passes rebuild.
func (app *App) renderOptionsPanel() {
	opts := app.renderer.Options()
	changed := false

	imgui.Text("Debug view:")
	if imgui.BeginCombo("##DebugView", opts.Debug.String()) {
		for m := renderer.DebugNone; m <= renderer.DebugShadowAtlas; m++ {
			if imgui.SelectableBoolV(m.String(), m == opts.Debug, 0, imgui.NewVec2(0, 0)) {
				app.renderer.SetDebugMode(m)
				opts.Debug = m
			}
		}
		imgui.EndCombo()
	}

	imgui.Text("Shadow filter:")
	if imgui.BeginCombo("##ShadowFilter", opts.ShadowFilter.String()) {
		for _, f := range shadowFilters {
			if imgui.SelectableBoolV(f.String(), f == opts.ShadowFilter, 0, imgui.NewVec2(0, 0)) {
				opts.ShadowFilter = f
				changed = true
			}
		}
		imgui.EndCombo()
	}

	cascades := int32(opts.NumShadowCascades)
	if imgui.SliderIntV("Cascades", &cascades, 1, 4, "%d", imgui.SliderFlagsNone) {
		opts.NumShadowCascades = int(cascades)
		changed = true
	}
	if imgui.SliderFloatV("Softness", &opts.ShadowSoftness, 0, 4, "%.2f texels", imgui.SliderFlagsNone) {
		changed = true
	}
	if imgui.Checkbox("Gamma correction", &opts.UseGammaCorrection) {
		changed = true
	}
	if imgui.Checkbox("Precise gamma", &opts.UsePreciseGamma) {
		changed = true
	}
	if imgui.Checkbox("Strict shaders", &opts.StrictShaders) {
		changed = true
	}
	if changed {
		if err := app.renderer.SetOptions(opts); err != nil {
			app.statusMsg = err.Error()
			app.log.Warn("options rejected", zap.Error(err))
		}
	}

	imgui.Separator()
	ao := app.show.AO
	enabled := !ao.Disabled
	if imgui.Checkbox("Ambient occlusion", &enabled) {
		ao.Disabled = !enabled
	}
	imgui.SliderFloatV("AO radius", &ao.SampleRadius, 0.05, 2, "%.2f", imgui.SliderFlagsNone)
	imgui.SliderFloatV("AO strength", &ao.Strength, 0, 4, "%.2f", imgui.SliderFlagsNone)

	fogOn := !app.show.Fog.Disabled
	if imgui.Checkbox("Fog", &fogOn) {
		app.show.Fog.Disabled = !fogOn
	}
	imgui.SliderFloatV("Fog density", &app.show.Fog.Density, 0, 0.2, "%.3f", imgui.SliderFlagsNone)
	imgui.SliderFloatV("Exposure", &app.show.ToneMapping.Exposure, 0.1, 8, "%.2f", imgui.SliderFlagsNone)

	az, el := app.show.SunAzimuth, app.show.SunElevation
	sunMoved := imgui.SliderFloatV("Sun azimuth", &az, 0, 360, "%.0f deg", imgui.SliderFlagsNone)
	sunMoved = imgui.SliderFloatV("Sun elevation", &el, 5, 90, "%.0f deg", imgui.SliderFlagsNone) || sunMoved
	if sunMoved {
		app.show.SetSun(az, el)
	}

	if imgui.Checkbox("Show bounds", &app.showBounds) {
		if app.showBounds {
			app.bounds.Update(app.show.Scene)
		} else {
			app.bounds.Remove(app.show.Scene)
		}
	}
	if imgui.Button("Reset View") {
		app.orbit.FitToBounds(app.show.Bounds(), app.camera.FieldOfView())
	}
}

func (app *App) renderStatsPanel() {
	st := app.renderer.Stats()
	imgui.Text(fmt.Sprintf("Output: %dx%d", st.Width, st.Height))
	imgui.Text(fmt.Sprintf("Draw calls: %d", st.DrawCalls))
	imgui.Text(fmt.Sprintf("State changes: %d", st.StateChanges))
	imgui.Text(fmt.Sprintf("Triangles: %d", st.Triangles))
	imgui.Text(fmt.Sprintf("Items: %d (pool %d)", st.Items, st.ItemHighWater))
	imgui.Text(fmt.Sprintf("Shadow maps: %d", st.ShadowMaps))
	imgui.TextWrapped("Steps: " + st.Steps.String())

	if n := app.selected; n != nil {
		imgui.Separator()
		imgui.Text("Selected: " + n.Name)
		if b := n.WorldBounds(); !b.IsEmpty() {
			imgui.Text(fmt.Sprintf("Min: %.2f %.2f %.2f", b.Min[0], b.Min[1], b.Min[2]))
			imgui.Text(fmt.Sprintf("Max: %.2f %.2f %.2f", b.Max[0], b.Max[1], b.Max[2]))
		}
	}
}

// renderSceneTree lists the scene graph with a visibility toggle per node.
func (app *App) renderSceneTree() {
	if imgui.BeginChildStrV("SceneTree", imgui.NewVec2(0, 0), imgui.ChildFlagsBorders, 0) {
		for _, n := range app.show.Scene.Root().Children() {
			app.renderNode(n)
		}
	}
	imgui.EndChild()
}

func (app *App) renderNode(n *scene.Node) {
	imgui.PushIDStr(fmt.Sprintf("%p", n))
	defer imgui.PopID()

	visible := n.Visible()
	if imgui.Checkbox("##visible", &visible) {
		n.SetVisible(visible)
	}
	imgui.SameLine()

	label := fmt.Sprintf("%s [%s]", n.Name, n.Kind())
	var flags imgui.TreeNodeFlags
	if n == app.selected {
		flags |= imgui.TreeNodeFlagsSelected
	}
	children := n.Children()
	if len(children) == 0 {
		imgui.TreeNodeExStrV(label, flags|imgui.TreeNodeFlagsLeaf|imgui.TreeNodeFlagsNoTreePushOnOpen)
		if imgui.IsItemClicked() {
			app.selected = n
		}
		return
	}
	open := imgui.TreeNodeExStrV(label, flags|imgui.TreeNodeFlagsOpenOnArrow)
	if imgui.IsItemClicked() {
		app.selected = n
	}
	if open {
		for _, c := range children {
			app.renderNode(c)
		}
		imgui.TreePop()
	}
}

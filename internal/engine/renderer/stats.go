package renderer

import "strings"

// Step is one stage of the frame. Steps combine into a bit set.
type Step uint16

const (
	StepResize Step = 1 << iota
	StepCollect
	StepShadows
	StepGBuffer
	StepAmbientOcclusion
	StepDeferredLighting
	StepSwap
	StepForwardOpaque
	StepBackbufferCopy
	StepTransparent
	StepPostProcess
	StepComposite
)

var stepNames = []string{
	"resize", "collect", "shadows", "gbuffer", "ambient_occlusion", "deferred_lighting",
	"swap", "forward_opaque", "backbuffer_copy", "transparent", "post_process", "composite",
}

func (s Step) String() string {
	var parts []string
	for i, name := range stepNames {
		if s&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// FrameStats describes the last rendered frame.
type FrameStats struct {
	Steps        Step
	DrawCalls    int
	StateChanges int
	Triangles    int
	// Items is the number of render items collected for the camera.
	Items int
	// ItemHighWater is the largest number of items the collector pool has held.
	ItemHighWater int
	ShadowMaps    int
	Width, Height int
}

// Ran reports whether step executed.
func (s FrameStats) Ran(step Step) bool { return s.Steps&step != 0 }

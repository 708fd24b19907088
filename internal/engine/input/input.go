// Package input turns SDL2 events into viewer events and per-frame mouse state.
package input

import (
	"github.com/veandco/go-sdl2/sdl"
)

type EventType int

const (
	EventNone EventType = iota
	EventQuit
	EventWindowResize
	EventKeyDown
	EventKeyUp
	EventMouseMove
	EventMouseDown
	EventMouseUp
	EventMouseWheel
	EventDropFile
)

// Event is a processed input event.
type Event struct {
	Type   EventType
	Key    sdl.Scancode
	Width  int
	Height int
	MouseX int
	MouseY int
	DeltaX int
	DeltaY int
	Wheel  float32
	Button uint8
	Path   string
}

// Input collects the events of one frame. Mouse motion while a button is held
// accumulates into a drag delta; wheel motion accumulates into a zoom delta.
type Input struct {
	events []Event
	held   map[uint8]bool

	dragX, dragY float32
	panX, panY   float32
	wheel        float32
}

func New() *Input {
	return &Input{
		events: make([]Event, 0, 16),
		held:   make(map[uint8]bool),
	}
}

// Update polls SDL events. It returns true when the window should close.
func (i *Input) Update() bool {
	i.begin()
	quit := false
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		if i.Handle(event) {
			quit = true
		}
	}
	return quit
}

func (i *Input) begin() {
	i.events = i.events[:0]
	i.dragX, i.dragY = 0, 0
	i.panX, i.panY = 0, 0
	i.wheel = 0
}

// Handle records a single event. It returns true for a quit request.
func (i *Input) Handle(event sdl.Event) bool {
	e, ok := translate(event)
	if !ok {
		return false
	}
	i.events = append(i.events, e)

	switch e.Type {
	case EventMouseDown:
		i.held[e.Button] = true
	case EventMouseUp:
		delete(i.held, e.Button)
	case EventMouseMove:
		if i.held[sdl.BUTTON_LEFT] {
			i.dragX += float32(e.DeltaX)
			i.dragY += float32(e.DeltaY)
		}
		if i.held[sdl.BUTTON_RIGHT] || i.held[sdl.BUTTON_MIDDLE] {
			i.panX += float32(e.DeltaX)
			i.panY += float32(e.DeltaY)
		}
	case EventMouseWheel:
		i.wheel += e.Wheel
	}
	return e.Type == EventQuit
}

func translate(event sdl.Event) (Event, bool) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		return Event{Type: EventQuit}, true

	case *sdl.WindowEvent:
		if e.Event == sdl.WINDOWEVENT_RESIZED || e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
			return Event{Type: EventWindowResize, Width: int(e.Data1), Height: int(e.Data2)}, true
		}

	case *sdl.KeyboardEvent:
		switch {
		case e.Type == sdl.KEYDOWN && e.Repeat == 0:
			return Event{Type: EventKeyDown, Key: e.Keysym.Scancode}, true
		case e.Type == sdl.KEYUP:
			return Event{Type: EventKeyUp, Key: e.Keysym.Scancode}, true
		}

	case *sdl.MouseMotionEvent:
		return Event{
			Type:   EventMouseMove,
			MouseX: int(e.X),
			MouseY: int(e.Y),
			DeltaX: int(e.XRel),
			DeltaY: int(e.YRel),
		}, true

	case *sdl.MouseButtonEvent:
		t := EventMouseUp
		if e.Type == sdl.MOUSEBUTTONDOWN {
			t = EventMouseDown
		}
		return Event{Type: t, MouseX: int(e.X), MouseY: int(e.Y), Button: e.Button}, true

	case *sdl.MouseWheelEvent:
		y := float32(e.Y)
		if e.Direction == sdl.MOUSEWHEEL_FLIPPED {
			y = -y
		}
		return Event{Type: EventMouseWheel, Wheel: y}, true

	case *sdl.DropEvent:
		if e.Type == sdl.DROPFILE {
			return Event{Type: EventDropFile, Path: e.File}, true
		}
	}
	return Event{}, false
}

// Events returns the events of the last Update.
func (i *Input) Events() []Event {
	return i.events
}

// IsKeyPressed reports whether the key went down this frame.
func (i *Input) IsKeyPressed(scancode sdl.Scancode) bool {
	for _, e := range i.events {
		if e.Type == EventKeyDown && e.Key == scancode {
			return true
		}
	}
	return false
}

// Drag returns the left-button drag of this frame in pixels.
func (i *Input) Drag() (float32, float32) { return i.dragX, i.dragY }

// Pan returns the right- or middle-button drag of this frame in pixels.
func (i *Input) Pan() (float32, float32) { return i.panX, i.panY }

// Wheel returns the scroll of this frame; positive scrolls away from the user.
func (i *Input) Wheel() float32 { return i.wheel }

// DroppedFiles returns the paths dropped onto the window this frame.
func (i *Input) DroppedFiles() []string {
	var out []string
	for _, e := range i.events {
		if e.Type == EventDropFile {
			out = append(out, e.Path)
		}
	}
	return out
}

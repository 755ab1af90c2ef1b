// Package message defines the inbound producer vocabulary: one JSON object
// per frame, shaped {"source": string, "data"?: object}, parsed into a
// closed set of typed variants.
//
// Routing is done through Handler. Adding a variant means adding a
// Handler method, so every router fails to compile until it handles it.
package message

import (
	"context"
	"encoding/json"
)

// Source tags recognised on the wire.
const (
	SourceColorPicker = "colorpicker"
	SourceProgramName = "programname"
	SourceDiscover    = "discover"
	SourceDragonStaff = "dragonstaff"
	SourceStart       = "start"
	SourceStop        = "stop"
	SourceCroquet     = "croquet"
)

// Message is a parsed producer frame. The set of implementations is closed.
type Message interface {
	// Source returns the wire tag the frame arrived with.
	Source() string

	// Dispatch calls the Handler method for the concrete variant.
	Dispatch(ctx context.Context, h Handler)

	sealed()
}

// Handler receives each variant. Implementations must handle all of them.
type Handler interface {
	HandleColorPicker(ctx context.Context, m ColorPicker)
	HandleProgramName(ctx context.Context, m ProgramName)
	HandleDiscover(ctx context.Context, m Discover)
	HandleDragonStaff(ctx context.Context, m DragonStaff)
	HandleStart(ctx context.Context, m Start)
	HandleStop(ctx context.Context, m Stop)
	HandleCroquet(ctx context.Context, m Croquet)
	HandleUnknown(ctx context.Context, m Unknown)
}

// ColorPicker sets the hue of every controller.
type ColorPicker struct {
	Hue float64 // in [0,1]
}

// ProgramName switches every controller to a named pattern.
type ProgramName struct {
	Name string
}

// Discover asks the broker to re-run controller discovery.
type Discover struct{}

// Pixel is one (hue, saturation, value) triple.
type Pixel [3]float64

// DragonStaff carries the latest pixel strip from the staff prop.
type DragonStaff struct {
	Pixels []Pixel
}

// Start begins pixel streaming.
type Start struct{}

// Stop ends pixel streaming.
type Stop struct{}

// Event is a croquet game event.
type Event string

// Croquet game events, as spelled on the wire.
const (
	GameStarted         Event = "gamestarted"
	HalfwayPointReached Event = "halfwaypointreached"
	EndWicketReached    Event = "endwicketreached"
)

// Valid reports whether e is one of the known events.
func (e Event) Valid() bool {
	switch e {
	case GameStarted, HalfwayPointReached, EndWicketReached:
		return true
	}
	return false
}

// Croquet reports a game event.
type Croquet struct {
	Event Event

	// Legacy is set when the frame used the older top-level
	// "gamestarted"-style source instead of source "croquet".
	Legacy bool
}

// Unknown is a frame with an unrecognised source. It is valid but ignored.
type Unknown struct {
	Tag  string
	Data json.RawMessage
}

func (ColorPicker) Source() string { return SourceColorPicker }
func (ProgramName) Source() string { return SourceProgramName }
func (Discover) Source() string    { return SourceDiscover }
func (DragonStaff) Source() string { return SourceDragonStaff }
func (Start) Source() string       { return SourceStart }
func (Stop) Source() string        { return SourceStop }
func (m Unknown) Source() string   { return m.Tag }

func (m Croquet) Source() string {
	if m.Legacy {
		return string(m.Event)
	}
	return SourceCroquet
}

func (m ColorPicker) Dispatch(ctx context.Context, h Handler) { h.HandleColorPicker(ctx, m) }
func (m ProgramName) Dispatch(ctx context.Context, h Handler) { h.HandleProgramName(ctx, m) }
func (m Discover) Dispatch(ctx context.Context, h Handler)    { h.HandleDiscover(ctx, m) }
func (m DragonStaff) Dispatch(ctx context.Context, h Handler) { h.HandleDragonStaff(ctx, m) }
func (m Start) Dispatch(ctx context.Context, h Handler)       { h.HandleStart(ctx, m) }
func (m Stop) Dispatch(ctx context.Context, h Handler)        { h.HandleStop(ctx, m) }
func (m Croquet) Dispatch(ctx context.Context, h Handler)     { h.HandleCroquet(ctx, m) }
func (m Unknown) Dispatch(ctx context.Context, h Handler)     { h.HandleUnknown(ctx, m) }

func (ColorPicker) sealed() {}
func (ProgramName) sealed() {}
func (Discover) sealed()    {}
func (DragonStaff) sealed() {}
func (Start) sealed()       {}
func (Stop) sealed()        {}
func (Croquet) sealed()     {}
func (Unknown) sealed()     {}

// Package game tracks whether a croquet game is in progress and maps game
// events to the hue the wickets should show.
package game

import (
	"fmt"
	"sync"

	"github.com/nerrad567/croquetia-core/internal/message"
)

// State is the session state.
type State int

// Session states. Idle is the zero value.
const (
	Idle State = iota
	Active
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText lets State appear as a string in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Hues emitted for game events.
const (
	HueStart     = 0.0
	HueHalfway   = 1.0 / 3.0
	HueWin       = 2.0 / 3.0
	HueEndWicket = 1.0
)

// Outcome describes what an event did.
type Outcome struct {
	Event message.Event `json:"event"`
	From  State         `json:"from"`
	To    State         `json:"to"`
	Hue   float64       `json:"hue"`
	// Label is a short human description ("you win", "booped the end wicket").
	Label string `json:"label"`
}

// Changed reports whether the event moved the session to a different state.
func (o Outcome) Changed() bool {
	return o.From != o.To
}

// Machine is the session state machine. The zero value is Idle and ready
// to use. Safe for concurrent use; events are applied one at a time.
type Machine struct {
	mu    sync.Mutex
	state State
}

// NewMachine returns an Idle machine.
func NewMachine() *Machine {
	return &Machine{}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Apply feeds one event through the machine.
//
// GameStarted always arms the session and yields HueStart. HalfwayPointReached
// never changes state and yields HueHalfway. EndWicketReached ends an active
// game with HueWin, and from Idle yields HueEndWicket without a change.
func (m *Machine) Apply(ev message.Event) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := Outcome{Event: ev, From: m.state}
	switch ev {
	case message.GameStarted:
		m.state = Active
		out.Hue, out.Label = HueStart, "game started"
	case message.HalfwayPointReached:
		out.Hue, out.Label = HueHalfway, "halfway point reached"
	case message.EndWicketReached:
		if m.state == Active {
			m.state = Idle
			out.Hue, out.Label = HueWin, "you win"
		} else {
			out.Hue, out.Label = HueEndWicket, "booped the end wicket"
		}
	default:
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownEvent, ev)
	}
	out.To = m.state
	return out, nil
}

package main

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/nerrad567/croquetia-core/internal/message"
)

// Program names understood by the controllers.
const (
	programColorFromVar   = "ColorFromVar"
	programHsvFromOutside = "HsvFromOutside"
)

// oneShot maps a command-line verb to the messages it sends. "start" is
// handled separately because it streams until interrupted.
func oneShot(cmd string) ([]message.Message, error) {
	switch cmd {
	case "startcroquet":
		return []message.Message{message.Croquet{Event: message.GameStarted}}, nil
	case "halfway":
		return []message.Message{message.Croquet{Event: message.HalfwayPointReached}}, nil
	case "endcroquet":
		return []message.Message{message.Croquet{Event: message.EndWicketReached}}, nil
	case "discover":
		return []message.Message{message.Discover{}}, nil
	case "pickhue":
		return []message.Message{message.ProgramName{Name: programColorFromVar}}, nil
	case "stop":
		return []message.Message{message.Stop{}}, nil
	case "", "random":
		return []message.Message{message.ColorPicker{Hue: rand.Float64()}}, nil
	}

	hue, err := strconv.ParseFloat(cmd, 64)
	if err != nil {
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
	if hue < 0 || hue > 1 {
		return nil, fmt.Errorf("hue %v outside [0,1]", hue)
	}
	return []message.Message{message.ColorPicker{Hue: hue}}, nil
}

package game

import "errors"

// ErrUnknownEvent is returned by Apply for an event outside the game vocabulary.
var ErrUnknownEvent = errors.New("game: unknown event")

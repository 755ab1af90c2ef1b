package broker

import "errors"

var (
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("broker: already started")

	// ErrShutdown is returned by Start after Shutdown.
	ErrShutdown = errors.New("broker: shut down")

	// ErrNoGateway is returned by Start when Deps.Gateway is nil.
	ErrNoGateway = errors.New("broker: gateway is required")
)

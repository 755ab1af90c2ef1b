package firestorm

import (
	"errors"
	"fmt"
)

// ErrGatewayStatus is wrapped by StatusError for any non-2xx response.
var ErrGatewayStatus = errors.New("firestorm: gateway returned error status")

// StatusError reports a non-2xx response from Firestorm.
type StatusError struct {
	Path       string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("firestorm: %s returned %s", e.Path, e.Status)
}

func (e *StatusError) Unwrap() error {
	return ErrGatewayStatus
}

package device

import "errors"

// ErrDeviceNotFound is returned when a device id is not in the current set.
var ErrDeviceNotFound = errors.New("device: not found")

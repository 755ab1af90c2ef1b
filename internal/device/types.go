package device

import "github.com/nerrad567/croquetia-core/internal/firestorm"

// Device is one discovered lighting controller.
type Device struct {
	ID          int64  `json:"id"`
	Address     string `json:"address"`
	DisplayName string `json:"display_name"`
	PixelCount  int    `json:"pixel_count"`
	Version     string `json:"version,omitempty"`
}

// FromController converts a Firestorm discovery record.
func FromController(c firestorm.Controller) Device {
	return Device{
		ID:          c.ID,
		Address:     c.Address,
		DisplayName: c.Name,
		PixelCount:  c.PixelCount,
		Version:     c.Version,
	}
}

// Summary renders the device the way discovery reports list it.
func (d Device) Summary() string {
	return d.DisplayName + " : " + d.Address
}

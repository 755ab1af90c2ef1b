package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/croquetia-core/internal/firestorm"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Discoverer lists the controllers currently reachable through the gateway.
type Discoverer interface {
	Discover(ctx context.Context) ([]firestorm.Controller, error)
}

// Registry holds the current device set.
//
// All public methods are thread-safe.
type Registry struct {
	discoverer Discoverer
	logger     Logger

	// refreshMu serializes Refresh so completions apply one at a time.
	refreshMu sync.Mutex

	mu          sync.RWMutex
	devices     []Device
	refreshedAt time.Time
	refreshes   uint64
}

// NewRegistry creates an empty registry backed by d.
func NewRegistry(d Discoverer) *Registry {
	return &Registry{
		discoverer: d,
		logger:     noopLogger{},
		devices:    []Device{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Refresh runs discovery and replaces the device set with the result.
//
// A refresh started while another is in flight waits for it, then runs
// its own discovery, so the set ends up holding whichever discovery
// completed last. On error the previous set is kept.
//
// Returns:
//   - []Device: the new device set (a copy)
//   - error: if discovery fails
func (r *Registry) Refresh(ctx context.Context) ([]Device, error) {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	controllers, err := r.discoverer.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovering controllers: %w", err)
	}

	devices := make([]Device, 0, len(controllers))
	for _, c := range controllers {
		devices = append(devices, FromController(c))
	}

	r.mu.Lock()
	r.devices = devices
	r.refreshedAt = time.Now().UTC()
	r.refreshes++
	r.mu.Unlock()

	r.logger.Info("discovered pixelblazes", "count", len(devices))
	for _, d := range devices {
		r.logger.Info(d.Summary(), "id", d.ID, "pixels", d.PixelCount)
	}

	return cloneDevices(devices), nil
}

// Devices returns a copy of the current device set.
func (r *Registry) Devices() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneDevices(r.devices)
}

// CurrentTargets returns the ids of every known device, in discovery order.
// It never returns nil.
func (r *Registry) CurrentTargets() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.devices))
	for _, d := range r.devices {
		ids = append(ids, d.ID)
	}
	return ids
}

// Get returns the device with the given id.
func (r *Registry) Get(id int64) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.devices {
		if d.ID == id {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("%w: %d", ErrDeviceNotFound, id)
}

// Len returns the number of known devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// RefreshInfo reports when the set was last replaced and how many
// refreshes have completed.
func (r *Registry) RefreshInfo() (at time.Time, count uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refreshedAt, r.refreshes
}

func cloneDevices(in []Device) []Device {
	out := make([]Device, len(in))
	copy(out, in)
	return out
}

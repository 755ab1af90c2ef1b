package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nerrad567/croquetia-core/internal/device"
	"github.com/nerrad567/croquetia-core/internal/firestorm"
	"github.com/nerrad567/croquetia-core/internal/game"
	"github.com/nerrad567/croquetia-core/internal/infrastructure/logging"
	"github.com/nerrad567/croquetia-core/internal/journal"
	"github.com/nerrad567/croquetia-core/internal/stream"
)

const (
	defaultMaxInFlight    = 16
	defaultCommandTimeout = 5 * time.Second
	journalTimeout        = 2 * time.Second
)

// Gateway is the lighting-controller service. *firestorm.Client satisfies it.
type Gateway interface {
	Discover(ctx context.Context) ([]firestorm.Controller, error)
	SetVariables(ctx context.Context, vars map[string]any, ids []int64) error
	SetProgramName(ctx context.Context, name string, ids []int64) error
}

// Telemetry receives broker measurements. All methods must be non-blocking.
type Telemetry interface {
	Message(source string)
	Hue(hue float64, origin string)
	Frame(values int, generation uint64)
	Failure(op string)
}

// StatePublisher announces broker state to other systems. Names are
// StateGame and StateDevices.
type StatePublisher interface {
	PublishState(name string, v any) error
}

// Published state names.
const (
	StateGame    = "game"
	StateDevices = "devices"
)

// Ingress is an additional source of producer frames, such as MQTT.
// Listen registers handle and returns once subscribed; Unlisten detaches it.
type Ingress interface {
	Listen(handle func(ctx context.Context, raw []byte)) error
	Unlisten() error
}

// Deps holds the broker's collaborators. Only Gateway is required.
type Deps struct {
	Gateway Gateway
	Logger  *logging.Logger

	// StreamInterval is the pixel streaming cadence (default 100ms).
	StreamInterval time.Duration

	// MaxInFlight bounds concurrent gateway commands (default 16).
	MaxInFlight int

	// CommandTimeout bounds each gateway command (default 5s).
	CommandTimeout time.Duration

	Journal   journal.Repository
	Telemetry Telemetry
	Publisher StatePublisher
	Ingress   Ingress
}

// GameStatus is the game state plus the most recent outcome.
type GameStatus struct {
	State game.State    `json:"state"`
	Last  *game.Outcome `json:"last,omitempty"`
}

// Broker is one broker instance. Create it with New.
type Broker struct {
	gateway   Gateway
	logger    *logging.Logger
	journal   journal.Repository
	telemetry Telemetry
	publisher StatePublisher
	ingress   Ingress

	registry *device.Registry
	game     *game.Machine
	stream   *stream.Scheduler

	commandTimeout time.Duration
	sem            *semaphore.Weighted

	// ctx lives until Shutdown and parents every spawned command.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	started  bool
	closed   bool
	lastGame *game.Outcome
	wg       sync.WaitGroup

	// streamMu serializes start and stop. frames is the current streaming
	// run, nil while stopped; frameMu is never held across a scheduler call.
	streamMu sync.Mutex
	frameMu  sync.Mutex
	frames   *frameRun

	// records tracks background journal writes. Once journalSync is set
	// writes happen inline.
	records     sync.WaitGroup
	journalSync bool

	stats counters
}

// New constructs an idle broker. It does no I/O.
func New(deps Deps) *Broker {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	maxInFlight := deps.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}
	timeout := deps.CommandTimeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Broker{
		gateway:        deps.Gateway,
		logger:         logger.With("component", "broker"),
		journal:        deps.Journal,
		telemetry:      deps.Telemetry,
		publisher:      deps.Publisher,
		ingress:        deps.Ingress,
		game:           game.NewMachine(),
		commandTimeout: timeout,
		sem:            semaphore.NewWeighted(int64(maxInFlight)),
		ctx:            ctx,
		cancel:         cancel,
	}
	b.registry = device.NewRegistry(deps.Gateway)
	b.registry.SetLogger(logger.With("component", "registry"))
	b.stream = stream.NewScheduler(deps.StreamInterval, b.sendFrame)
	return b
}

// Start runs the startup discovery and attaches the ingress, if any.
// A failed discovery is logged; the broker still starts with no devices
// and a later discover message can fill the registry.
func (b *Broker) Start(ctx context.Context) error {
	if b.gateway == nil {
		return ErrNoGateway
	}

	b.mu.Lock()
	switch {
	case b.closed:
		b.mu.Unlock()
		return ErrShutdown
	case b.started:
		b.mu.Unlock()
		return ErrAlreadyStarted
	}
	b.started = true
	b.mu.Unlock()

	b.refreshDevices(ctx)

	if b.ingress != nil {
		if err := b.ingress.Listen(b.OnMessage); err != nil {
			return fmt.Errorf("attaching ingress: %w", err)
		}
	}

	b.logger.Info("broker started",
		"devices", b.registry.Len(),
		"stream_interval", b.stream.Status().Interval.String(),
	)
	return nil
}

// Shutdown stops streaming, refuses new commands, and waits for in-flight
// commands until ctx ends. When ctx ends first the remaining commands are
// cancelled and ctx.Err() is returned.
func (b *Broker) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	started := b.started
	b.closed = true
	b.mu.Unlock()

	if started && b.ingress != nil {
		if err := b.ingress.Unlisten(); err != nil {
			b.logger.Warn("detaching ingress failed", "error", err)
		}
	}
	b.stopStream()

	drained := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = ctx.Err()
	}
	b.cancel()
	<-drained

	b.mu.Lock()
	b.journalSync = true
	b.mu.Unlock()
	b.records.Wait()

	s := b.Stats()
	b.logger.Info("broker stopped",
		"messages", s.MessagesReceived,
		"commands", s.CommandsSent,
		"failures", s.GatewayFailures,
	)
	return err
}

func (b *Broker) isClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// Registry returns the device registry.
func (b *Broker) Registry() *device.Registry {
	return b.registry
}

// Devices returns the current device set.
func (b *Broker) Devices() []device.Device {
	return b.registry.Devices()
}

// DeviceRefresh reports when the device set was last replaced and how many
// discoveries have succeeded.
func (b *Broker) DeviceRefresh() (time.Time, uint64) {
	return b.registry.RefreshInfo()
}

// Device looks up one device in the current set.
func (b *Broker) Device(id int64) (device.Device, error) {
	return b.registry.Get(id)
}

// Game returns the game state and last outcome.
func (b *Broker) Game() GameStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.gameStatusLocked()
}

func (b *Broker) gameStatusLocked() GameStatus {
	st := GameStatus{State: b.game.State()}
	if b.lastGame != nil {
		last := *b.lastGame
		st.Last = &last
	}
	return st
}

// Stream returns the pixel scheduler status.
func (b *Broker) Stream() stream.Status {
	return b.stream.Status()
}

// Journal returns the journal repository, or nil when journalling is off.
func (b *Broker) Journal() journal.Repository {
	return b.journal
}

package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/croquetia-core/internal/message"
)

// DefaultInterval is the streaming cadence when none is configured.
const DefaultInterval = 100 * time.Millisecond

// Sink receives each flattened frame. It runs on the task goroutine and
// must not block for long; Stop waits for it.
type Sink func(ctx context.Context, frame []float64, generation uint64)

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running    bool          `json:"running"`
	Interval   time.Duration `json:"interval_ns"`
	Pixels     int           `json:"pixels"`
	Generation uint64        `json:"generation"`
	Ticks      uint64        `json:"ticks"`
}

// Scheduler is the Stopped/Running pixel streaming state machine.
// Safe for concurrent use.
type Scheduler struct {
	interval time.Duration
	sink     Sink
	buffer   Buffer

	mu   sync.Mutex
	task *Task

	ticks atomic.Uint64
}

// NewScheduler creates a stopped scheduler. A non-positive interval
// selects DefaultInterval.
func NewScheduler(interval time.Duration, sink Sink) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{interval: interval, sink: sink}
}

// Update replaces the pixel buffer. It does not depend on running state.
func (s *Scheduler) Update(pixels []message.Pixel) uint64 {
	return s.buffer.Set(pixels)
}

// Start begins streaming. It returns false, and does nothing, when a task
// is already running. ctx bounds the lifetime of the new task.
func (s *Scheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.task != nil {
		select {
		case <-s.task.Done():
			// The previous task ended with its context; replace it.
		default:
			return false
		}
	}
	s.task = Every(ctx, s.interval, s.tick)
	return true
}

// Stop cancels streaming and returns once no tick can run. It returns
// false when already stopped.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.task == nil {
		return false
	}
	s.task.Cancel()
	s.task = nil
	return true
}

// Running reports whether a task is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.task == nil {
		return false
	}
	select {
	case <-s.task.Done():
		return false
	default:
		return true
	}
}

// Status returns a snapshot for introspection.
func (s *Scheduler) Status() Status {
	f := s.buffer.Load()
	return Status{
		Running:    s.Running(),
		Interval:   s.interval,
		Pixels:     len(f.Pixels),
		Generation: f.Generation,
		Ticks:      s.ticks.Load(),
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	f := s.buffer.Load()
	s.ticks.Add(1)
	s.sink(ctx, Flatten(f.Pixels), f.Generation)
}

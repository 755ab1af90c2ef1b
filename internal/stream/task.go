package stream

import (
	"context"
	"sync"
	"time"
)

// Task is a handle to a periodic function started by Every.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Every calls fn every interval on its own goroutine until the task is
// cancelled or ctx ends. The first call happens one interval after Every
// returns. Missed ticks are not replayed.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}
	go t.run(ctx, interval, fn)
	return t
}

func (t *Task) run(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	defer close(t.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// select picks randomly when both are ready.
			if ctx.Err() != nil {
				return
			}
			fn(ctx)
		}
	}
}

// Cancel stops the task and waits for an in-progress call to fn to
// return. Once Cancel returns fn will not be called again. Calling Cancel
// more than once is safe; calling it from inside fn deadlocks.
func (t *Task) Cancel() {
	t.once.Do(t.cancel)
	<-t.done
}

// Done is closed when the task has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/croquetia-core/internal/journal"
)

// setHue sends colorHue to every known controller.
func (b *Broker) setHue(hue float64, origin string) {
	targets := b.registry.CurrentTargets()
	b.spawn("setVars", func(ctx context.Context) error {
		if err := b.gateway.SetVariables(ctx, map[string]any{"colorHue": hue}, targets); err != nil {
			return err
		}
		if b.telemetry != nil {
			b.telemetry.Hue(hue, origin)
		}
		return nil
	})
}

// refreshDevices runs a registry refresh and announces the result.
// Errors go to the sink.
func (b *Broker) refreshDevices(ctx context.Context) {
	devices, err := b.registry.Refresh(ctx)
	if err != nil {
		b.reportError("discover", err)
		return
	}

	ids := make([]int64, 0, len(devices))
	for _, d := range devices {
		ids = append(ids, d.ID)
	}
	b.record(journal.KindDiscovery, "", map[string]any{"count": len(devices), "ids": ids})

	if b.publisher != nil {
		if err := b.publisher.PublishState(StateDevices, devices); err != nil {
			b.logger.Warn("publishing devices failed", "error", err)
		}
	}
}

// frameRun tracks the pixel commands of one streaming run. Stopping the
// run cancels ctx and waits for wg, so no frame reaches the gateway after
// stopStream returns.
type frameRun struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// startStream starts the streaming task with a fresh run. It returns false
// when streaming is already running.
func (b *Broker) startStream() bool {
	b.streamMu.Lock()
	defer b.streamMu.Unlock()

	if b.stream.Running() {
		return false
	}
	ctx, cancel := context.WithCancel(b.ctx)
	prev := b.swapFrames(&frameRun{ctx: ctx, cancel: cancel})
	if !b.stream.Start(b.ctx) {
		cancel()
		b.swapFrames(prev)
		return false
	}
	return true
}

// stopStream stops the streaming task and returns once every pixel command
// of the run has finished. It returns false when already stopped.
func (b *Broker) stopStream() bool {
	b.streamMu.Lock()
	defer b.streamMu.Unlock()

	run := b.swapFrames(nil)
	stopped := b.stream.Stop()
	if run != nil {
		run.cancel()
		run.wg.Wait()
	}
	return stopped
}

func (b *Broker) swapFrames(run *frameRun) *frameRun {
	b.frameMu.Lock()
	defer b.frameMu.Unlock()
	prev := b.frames
	b.frames = run
	return prev
}

// sendFrame is the stream Sink. It runs on the streaming task and must
// not block, so a frame is dropped when every command slot is busy.
func (b *Broker) sendFrame(_ context.Context, frame []float64, generation uint64) {
	b.frameMu.Lock()
	run := b.frames
	if run != nil {
		run.wg.Add(1)
	}
	b.frameMu.Unlock()
	if run == nil {
		return
	}

	if !b.sem.TryAcquire(1) {
		run.wg.Done()
		b.stats.framesDropped.Add(1)
		b.logger.Debug("dropping pixel frame, gateway busy", "generation", generation)
		return
	}

	const op = "setVars.pixels"
	targets := b.registry.CurrentTargets()
	send := func(ctx context.Context) error {
		if run.ctx.Err() != nil {
			return nil
		}
		if err := b.gateway.SetVariables(ctx, map[string]any{"pixels": frame}, targets); err != nil {
			if run.ctx.Err() != nil {
				return nil
			}
			return err
		}
		b.stats.framesSent.Add(1)
		if b.telemetry != nil {
			b.telemetry.Frame(len(frame), generation)
		}
		return nil
	}

	ok := b.goTracked(op, func() {
		defer run.wg.Done()
		b.execute(run.ctx, op, send)
	})
	if !ok {
		run.wg.Done()
		b.sem.Release(1)
	}
}

// spawn runs fn as a background command once a slot is free. The caller
// blocks while all slots are busy.
func (b *Broker) spawn(op string, fn func(context.Context) error) {
	if err := b.sem.Acquire(b.ctx, 1); err != nil {
		b.logger.Debug("dropping command, broker shutting down", "op", op)
		return
	}
	b.run(op, fn)
}

// spawnAlways runs fn in the background without taking a command slot.
// Used for discovery, which must not queue behind pixel frames.
func (b *Broker) spawnAlways(op string, fn func(context.Context) error) {
	b.goTracked(op, func() {
		ctx, cancel := context.WithTimeout(b.ctx, b.commandTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			b.reportError(op, err)
		}
	})
}

// run executes fn on a tracked goroutine; the caller holds a slot that run
// releases.
func (b *Broker) run(op string, fn func(context.Context) error) {
	ok := b.goTracked(op, func() {
		b.execute(b.ctx, op, fn)
	})
	if !ok {
		b.sem.Release(1)
	}
}

// execute runs one gateway command under parent and releases the caller's slot.
func (b *Broker) execute(parent context.Context, op string, fn func(context.Context) error) {
	defer b.sem.Release(1)

	ctx, cancel := context.WithTimeout(parent, b.commandTimeout)
	defer cancel()

	b.stats.commands.Add(1)
	if err := fn(ctx); err != nil {
		b.reportError(op, err)
	}
}

// goTracked starts f unless the broker is closed. Panics in f are reported.
func (b *Broker) goTracked(op string, f func()) bool {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		b.logger.Debug("dropping command, broker shut down", "op", op)
		return false
	}
	b.wg.Add(1)
	b.mu.RUnlock()

	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.reportError(op, fmt.Errorf("panic: %v", r))
			}
		}()
		f()
	}()
	return true
}

// reportError is the single sink for failures outside the caller's flow.
func (b *Broker) reportError(op string, err error) {
	b.stats.failures.Add(1)
	b.logger.Error("command failed", "op", op, "error", err)

	if b.telemetry != nil {
		b.telemetry.Failure(op)
	}
	b.record(journal.KindFailure, op, map[string]any{"error": err.Error()})
}

// record writes a journal entry in the background when journalling is
// enabled. After Shutdown has drained, entries are written inline. Journal
// failures are logged only.
func (b *Broker) record(kind journal.Kind, source string, details map[string]any) {
	if b.journal == nil {
		return
	}
	e := &journal.Entry{Kind: kind, Source: source, Details: details, OccurredAt: time.Now().UTC()}

	b.mu.RLock()
	if b.journalSync {
		b.mu.RUnlock()
		b.writeEntry(e)
		return
	}
	b.records.Add(1)
	b.mu.RUnlock()

	go func() {
		defer b.records.Done()
		b.writeEntry(e)
	}()
}

func (b *Broker) writeEntry(e *journal.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	if err := b.journal.Record(ctx, e); err != nil {
		b.logger.Warn("journal write failed", "kind", string(e.Kind), "error", err)
	}
}

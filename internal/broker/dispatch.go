package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/croquetia-core/internal/journal"
	"github.com/nerrad567/croquetia-core/internal/message"
)

// OnMessage handles one producer frame. It never returns an error and
// never panics; problems are logged. State changes are applied before it
// returns. Gateway commands continue in the background.
func (b *Broker) OnMessage(ctx context.Context, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			b.reportError("dispatch", fmt.Errorf("panic: %v", r))
		}
	}()

	b.stats.received.Add(1)

	msg, err := message.Parse(raw)
	if err != nil {
		b.reject(raw, err)
		return
	}

	b.stats.bySource(msg.Source())
	if b.telemetry != nil {
		b.telemetry.Message(msg.Source())
	}
	msg.Dispatch(ctx, router{b})
}

func (b *Broker) reject(raw []byte, err error) {
	b.stats.rejected.Add(1)

	kind := "malformed"
	switch {
	case errors.Is(err, message.ErrMissingSource):
		kind = "missing_source"
	case errors.Is(err, message.ErrSchemaMismatch):
		kind = "schema_mismatch"
	}

	const maxLogged = 256
	payload := string(raw)
	if len(payload) > maxLogged {
		payload = payload[:maxLogged] + "..."
	}
	b.logger.Warn("dropping invalid message", "reason", kind, "error", err, "payload", payload)

	var perr *message.ParseError
	source := ""
	if errors.As(err, &perr) {
		source = perr.Source
	}
	b.record(journal.KindRejected, source, map[string]any{"reason": kind, "error": err.Error()})
}

// router routes each variant. It implements message.Handler, so a new
// variant does not compile until it is routed here.
type router struct {
	b *Broker
}

func (r router) HandleColorPicker(_ context.Context, m message.ColorPicker) {
	b := r.b
	b.logger.Debug("color picker", "hue", m.Hue)
	b.record(journal.KindMessage, m.Source(), map[string]any{"hue": m.Hue})
	b.setHue(m.Hue, m.Source())
}

func (r router) HandleProgramName(_ context.Context, m message.ProgramName) {
	b := r.b
	b.logger.Info("program name", "program", m.Name)
	b.record(journal.KindMessage, m.Source(), map[string]any{"program": m.Name})

	targets := b.registry.CurrentTargets()
	b.spawn("setProgramName", func(ctx context.Context) error {
		return b.gateway.SetProgramName(ctx, m.Name, targets)
	})
}

func (r router) HandleDiscover(_ context.Context, _ message.Discover) {
	b := r.b
	b.logger.Info("rediscovering controllers")
	b.spawnAlways("discover", func(ctx context.Context) error {
		b.refreshDevices(ctx)
		return nil
	})
}

func (r router) HandleDragonStaff(_ context.Context, m message.DragonStaff) {
	gen := r.b.stream.Update(m.Pixels)
	r.b.logger.Debug("pixel buffer updated", "pixels", len(m.Pixels), "generation", gen)
}

func (r router) HandleStart(_ context.Context, m message.Start) {
	b := r.b
	if b.isClosed() {
		b.logger.Debug("ignoring start, broker shut down")
		return
	}
	if !b.startStream() {
		b.logger.Debug("streaming already running")
		return
	}
	b.logger.Info("streaming started")
	b.record(journal.KindMessage, m.Source(), nil)
}

func (r router) HandleStop(_ context.Context, m message.Stop) {
	b := r.b
	if !b.stopStream() {
		b.logger.Debug("streaming already stopped")
		return
	}
	b.logger.Info("streaming stopped")
	b.record(journal.KindMessage, m.Source(), nil)
}

func (r router) HandleCroquet(_ context.Context, m message.Croquet) {
	b := r.b

	b.mu.Lock()
	out, err := b.game.Apply(m.Event)
	if err == nil {
		b.lastGame = &out
	}
	status := b.gameStatusLocked()
	b.mu.Unlock()

	if err != nil {
		// Parse only yields valid events; this guards direct callers.
		b.logger.Warn("ignoring game event", "error", err)
		return
	}

	b.logger.Info(out.Label, "event", string(out.Event), "from", out.From.String(), "to", out.To.String(), "hue", out.Hue)
	b.record(journal.KindTransition, m.Source(), map[string]any{
		"event":   string(out.Event),
		"from":    out.From.String(),
		"to":      out.To.String(),
		"hue":     out.Hue,
		"changed": out.Changed(),
	})
	if b.publisher != nil {
		if err := b.publisher.PublishState(StateGame, status); err != nil {
			b.logger.Warn("publishing game state failed", "error", err)
		}
	}
	b.setHue(out.Hue, string(out.Event))
}

func (r router) HandleUnknown(_ context.Context, m message.Unknown) {
	r.b.stats.unknown.Add(1)
	r.b.logger.Info("ignoring message from unknown source", "source", m.Tag, "data", string(m.Data))
}

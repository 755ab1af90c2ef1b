package broker

import (
	"sync"
	"sync/atomic"
)

// Stats is a snapshot of broker counters.
type Stats struct {
	MessagesReceived uint64            `json:"messages_received"`
	MessagesRejected uint64            `json:"messages_rejected"`
	UnknownSources   uint64            `json:"unknown_sources"`
	BySource         map[string]uint64 `json:"by_source"`
	CommandsSent     uint64            `json:"commands_sent"`
	GatewayFailures  uint64            `json:"gateway_failures"`
	FramesSent       uint64            `json:"frames_sent"`
	FramesDropped    uint64            `json:"frames_dropped"`
}

type counters struct {
	received      atomic.Uint64
	rejected      atomic.Uint64
	unknown       atomic.Uint64
	commands      atomic.Uint64
	failures      atomic.Uint64
	framesSent    atomic.Uint64
	framesDropped atomic.Uint64

	mu      sync.Mutex
	sources map[string]uint64
}

func (c *counters) bySource(source string) {
	c.mu.Lock()
	if c.sources == nil {
		c.sources = make(map[string]uint64)
	}
	c.sources[source]++
	c.mu.Unlock()
}

// Stats returns a snapshot of the broker counters.
func (b *Broker) Stats() Stats {
	c := &b.stats
	s := Stats{
		MessagesReceived: c.received.Load(),
		MessagesRejected: c.rejected.Load(),
		UnknownSources:   c.unknown.Load(),
		CommandsSent:     c.commands.Load(),
		GatewayFailures:  c.failures.Load(),
		FramesSent:       c.framesSent.Load(),
		FramesDropped:    c.framesDropped.Load(),
	}

	c.mu.Lock()
	s.BySource = make(map[string]uint64, len(c.sources))
	for k, v := range c.sources {
		s.BySource[k] = v
	}
	c.mu.Unlock()
	return s
}

package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/croquetia-core/internal/broker"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	Broker        broker.Stats   `json:"broker"`
	Devices       int            `json:"devices"`
	Streaming     bool           `json:"streaming"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains producer connection statistics.
type WSMetrics struct {
	ConnectedProducers int    `json:"connected_producers"`
	TotalConnections   uint64 `json:"total_connections"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	writeJSON(w, http.StatusOK, SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedProducers: s.hub.ClientCount(),
			TotalConnections:   s.hub.TotalConnections(),
		},
		Broker:    s.broker.Stats(),
		Devices:   len(s.broker.Devices()),
		Streaming: s.broker.Stream().Running,
	})
}

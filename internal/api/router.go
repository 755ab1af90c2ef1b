package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/croquetia-core/internal/device"
	"github.com/nerrad567/croquetia-core/internal/journal"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	// Producer ingress
	r.Get(s.wsPath(), s.handleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.bodySizeLimitMiddleware)

		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/{id}", s.handleGetDevice)
		})

		r.Get("/game", s.handleGame)
		r.Get("/stream", s.handleStream)
		r.Get("/journal", s.handleJournal)

		r.Post("/messages", s.handlePostMessage)
	})

	return r
}

// handleHealth runs every registered component check. Any failure makes
// the response 503 with status "degraded".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	components := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check.HealthCheck(r.Context()); err != nil {
			components[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.broker.Devices()
	at, refreshes := s.broker.DeviceRefresh()

	resp := map[string]any{
		"devices":   devices,
		"count":     len(devices),
		"refreshes": refreshes,
	}
	if !at.IsZero() {
		resp["refreshed_at"] = at.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeBadRequest(w, "device id must be an integer")
		return
	}

	d, err := s.broker.Device(id)
	if errors.Is(err, device.ErrDeviceNotFound) {
		writeNotFound(w, "device not found")
		return
	}
	if err != nil {
		writeInternalError(w, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleGame(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.broker.Game())
}

func (s *Server) handleStream(w http.ResponseWriter, _ *http.Request) {
	st := s.broker.Stream()
	writeJSON(w, http.StatusOK, map[string]any{
		"running":    st.Running,
		"interval":   st.Interval.String(),
		"pixels":     st.Pixels,
		"generation": st.Generation,
		"ticks":      st.Ticks,
	})
}

// handleJournal lists recent journal entries, newest first.
// Query: limit (1-500, default 50), kind.
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	repo := s.broker.Journal()
	if repo == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "journal is disabled")
		return
	}

	filter := journal.Filter{Kind: journal.Kind(r.URL.Query().Get("kind"))}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	entries, err := repo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing journal failed", "error", err)
		writeInternalError(w, "failed to list journal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// handlePostMessage feeds one message body to the dispatcher. Like a
// WebSocket frame, it is accepted without waiting for the outcome; a
// payload that fails to parse is logged and journalled by the broker.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "message too large")
			return
		}
		writeBadRequest(w, "failed to read body")
		return
	}
	if len(body) == 0 {
		writeBadRequest(w, "empty body")
		return
	}

	s.broker.OnMessage(s.ctx, body)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

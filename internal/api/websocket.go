package api

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/croquetia-core/internal/infrastructure/logging"
)

const (
	defaultPingInterval   = 30 * time.Second
	defaultPongTimeout    = 10 * time.Second
	defaultMaxMessageSize = 64 << 10
)

// upgrader configures the WebSocket upgrader. Producers run on the local
// network and are not authenticated, so any origin is accepted.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// Hub tracks connected producers.
type Hub struct {
	logger  *logging.Logger
	clients map[*ProducerConn]struct{}
	mu      sync.RWMutex
	total   atomic.Uint64
}

// ProducerConn is one connected producer.
type ProducerConn struct {
	id   string
	conn *websocket.Conn
	// closeOnce guards conn.Close between the read loop and the hub.
	closeOnce sync.Once
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*ProducerConn]struct{}),
	}
}

// Register adds a producer to the hub.
func (h *Hub) Register(c *ProducerConn) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.total.Add(1)
	h.logger.Info("producer connected", "conn_id", c.id, "producers", n)
}

// Unregister removes a producer from the hub.
func (h *Hub) Unregister(c *ProducerConn) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("producer disconnected", "conn_id", c.id, "producers", n)
}

// ClientCount returns the number of connected producers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConnections counts every producer that has ever connected.
func (h *Hub) TotalConnections() uint64 {
	return h.total.Load()
}

// closeAll sends a going-away close frame to every producer and closes
// the sockets. Read loops then exit and unregister.
func (h *Hub) closeAll() {
	h.mu.RLock()
	clients := make([]*ProducerConn, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	deadline := time.Now().Add(time.Second)
	for _, c := range clients {
		//nolint:errcheck // Best-effort close frame
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "broker shutting down"), deadline)
		c.close()
	}
}

func (c *ProducerConn) close() {
	c.closeOnce.Do(func() { c.conn.Close() })
}

// handleWebSocket upgrades a producer connection and reads frames until
// the producer disconnects. Each frame goes to the dispatcher before the
// next is read, so one connection's messages are applied in order.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	pc := &ProducerConn{id: uuid.NewString(), conn: conn}
	s.hub.Register(pc)
	defer func() {
		s.hub.Unregister(pc)
		pc.close()
	}()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	go s.pingLoop(ctx, pc)

	s.readLoop(ctx, pc)
}

func (s *Server) wsTimings() (pingInterval, pongWait time.Duration, maxSize int64) {
	pingInterval = time.Duration(s.cfg.WebSocket.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	pongWait = time.Duration(s.cfg.WebSocket.PongTimeout) * time.Second
	if pongWait <= 0 {
		pongWait = defaultPongTimeout
	}
	maxSize = int64(s.cfg.WebSocket.MaxMessageSize)
	if maxSize <= 0 {
		maxSize = defaultMaxMessageSize
	}
	return pingInterval, pongWait, maxSize
}

func (s *Server) readLoop(ctx context.Context, pc *ProducerConn) {
	pingInterval, pongWait, maxSize := s.wsTimings()
	conn := pc.conn

	conn.SetReadLimit(maxSize)
	//nolint:errcheck // Best-effort deadline on connection setup
	conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", "conn_id", pc.id, "error", err)
			} else {
				s.logger.Debug("websocket closed", "conn_id", pc.id, "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		s.broker.OnMessage(ctx, data)
	}
}

// pingLoop keeps the connection alive. WriteControl is safe to call
// concurrently with the read loop.
func (s *Server) pingLoop(ctx context.Context, pc *ProducerConn) {
	pingInterval, pongWait, _ := s.wsTimings()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := pc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pongWait)); err != nil {
				s.logger.Debug("websocket ping failed", "conn_id", pc.id, "error", err)
				pc.close()
				return
			}
		}
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/croquetia-core/internal/broker"
	"github.com/nerrad567/croquetia-core/internal/device"
	"github.com/nerrad567/croquetia-core/internal/game"
	"github.com/nerrad567/croquetia-core/internal/infrastructure/config"
	"github.com/nerrad567/croquetia-core/internal/infrastructure/database"
	"github.com/nerrad567/croquetia-core/internal/infrastructure/logging"
	"github.com/nerrad567/croquetia-core/internal/journal"
	"github.com/nerrad567/croquetia-core/internal/message"
	"github.com/nerrad567/croquetia-core/internal/stream"
	"github.com/nerrad567/croquetia-core/migrations"
)

// fakeBroker records dispatched frames and serves canned state.
type fakeBroker struct {
	mu          sync.Mutex
	frames      []string
	devices     []device.Device
	refreshedAt time.Time
	refreshes   uint64
	repo        journal.Repository
}

func (f *fakeBroker) OnMessage(_ context.Context, raw []byte) {
	f.mu.Lock()
	f.frames = append(f.frames, string(raw))
	f.mu.Unlock()
}

func (f *fakeBroker) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.frames...)
}

func (f *fakeBroker) Devices() []device.Device { return f.devices }

func (f *fakeBroker) DeviceRefresh() (time.Time, uint64) { return f.refreshedAt, f.refreshes }

func (f *fakeBroker) Device(id int64) (device.Device, error) {
	for _, d := range f.devices {
		if d.ID == id {
			return d, nil
		}
	}
	return device.Device{}, device.ErrDeviceNotFound
}

func (f *fakeBroker) Game() broker.GameStatus {
	return broker.GameStatus{
		State: game.Active,
		Last: &game.Outcome{
			Event: message.GameStarted,
			From:  game.Idle,
			To:    game.Active,
			Hue:   game.HueStart,
			Label: "game started",
		},
	}
}

func (f *fakeBroker) Stream() stream.Status {
	return stream.Status{Running: true, Interval: 100 * time.Millisecond, Pixels: 10, Generation: 4, Ticks: 42}
}

func (f *fakeBroker) Stats() broker.Stats {
	return broker.Stats{MessagesReceived: 7, BySource: map[string]uint64{"colorpicker": 7}}
}

func (f *fakeBroker) Journal() journal.Repository { return f.repo }

type fakeCheck struct{ err error }

func (c fakeCheck) HealthCheck(context.Context) error { return c.err }

func testConfig() config.BrokerConfig {
	return config.BrokerConfig{
		Host: "127.0.0.1",
		Port: 0,
		WebSocket: config.WebSocketConfig{
			Path:           "/",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
	}
}

func testServer(t *testing.T, b *fakeBroker, checks map[string]HealthChecker) *Server {
	t.Helper()
	srv, err := New(Deps{
		Config:  testConfig(),
		Logger:  logging.Discard(),
		Broker:  b,
		Version: "test",
		Checks:  checks,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { srv.Close() }) //nolint:errcheck // Test cleanup
	return srv
}

func testJournal(t *testing.T) journal.Repository {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return journal.NewSQLiteRepository(db.DB)
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{Broker: &fakeBroker{}}); err == nil {
		t.Error("expected error without logger")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("expected error without broker")
	}
}

func TestHealth(t *testing.T) {
	srv := testServer(t, &fakeBroker{}, map[string]HealthChecker{"database": fakeCheck{}})

	rec := do(t, srv, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestHealth_Degraded(t *testing.T) {
	srv := testServer(t, &fakeBroker{}, map[string]HealthChecker{
		"database": fakeCheck{},
		"mqtt":     fakeCheck{err: errors.New("mqtt: client not connected")},
	})

	rec := do(t, srv, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	body := decode(t, rec)
	components, _ := body["components"].(map[string]any)
	if body["status"] != "degraded" || components["database"] != "ok" || components["mqtt"] != "mqtt: client not connected" {
		t.Errorf("body = %v", body)
	}
}

func TestRequestID_Passthrough(t *testing.T) {
	srv := testServer(t, &fakeBroker{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("X-Request-ID = %q, want req-123", got)
	}
}

func TestDevices(t *testing.T) {
	b := &fakeBroker{
		devices: []device.Device{
			{ID: 1, Address: "10.0.0.21", DisplayName: "north", PixelCount: 60},
			{ID: 2, Address: "10.0.0.22", DisplayName: "south", PixelCount: 60},
		},
		refreshedAt: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		refreshes:   3,
	}
	srv := testServer(t, b, nil)

	rec := do(t, srv, http.MethodGet, "/api/v1/devices", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode(t, rec)
	if body["count"] != float64(2) || body["refreshes"] != float64(3) {
		t.Errorf("count = %v, refreshes = %v", body["count"], body["refreshes"])
	}
	if body["refreshed_at"] != "2026-06-01T12:00:00Z" {
		t.Errorf("refreshed_at = %v", body["refreshed_at"])
	}

	// Before any discovery the timestamp is omitted.
	empty := testServer(t, &fakeBroker{}, nil)
	if body := decode(t, do(t, empty, http.MethodGet, "/api/v1/devices", "")); body["refreshed_at"] != nil {
		t.Errorf("refreshed_at = %v, want absent", body["refreshed_at"])
	}

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/devices/2", http.StatusOK},
		{"/api/v1/devices/9", http.StatusNotFound},
		{"/api/v1/devices/north", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if rec := do(t, srv, http.MethodGet, tt.path, ""); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/devices/2", "")
	if body := decode(t, rec); body["display_name"] != "south" {
		t.Errorf("device = %v", body)
	}
}

func TestGame(t *testing.T) {
	srv := testServer(t, &fakeBroker{}, nil)

	body := decode(t, do(t, srv, http.MethodGet, "/api/v1/game", ""))
	if body["state"] != "active" {
		t.Errorf("state = %v, want active", body["state"])
	}
	last, _ := body["last"].(map[string]any)
	if last["event"] != "gamestarted" {
		t.Errorf("last = %v", last)
	}
}

func TestStream(t *testing.T) {
	srv := testServer(t, &fakeBroker{}, nil)

	body := decode(t, do(t, srv, http.MethodGet, "/api/v1/stream", ""))
	if body["running"] != true || body["interval"] != "100ms" || body["pixels"] != float64(10) {
		t.Errorf("body = %v", body)
	}
}

func TestMetrics(t *testing.T) {
	srv := testServer(t, &fakeBroker{devices: []device.Device{{ID: 1}}}, nil)

	rec := do(t, srv, http.MethodGet, "/api/v1/metrics", "")
	var m SystemMetrics
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decoding metrics: %v", err)
	}
	if m.Broker.MessagesReceived != 7 || m.Devices != 1 || !m.Streaming {
		t.Errorf("metrics = %+v", m)
	}
	if m.Runtime.Goroutines == 0 {
		t.Error("expected runtime goroutine count")
	}
}

func TestJournal(t *testing.T) {
	repo := testJournal(t)
	ctx := context.Background()
	for i := range 5 {
		kind := journal.KindMessage
		if i%2 == 1 {
			kind = journal.KindTransition
		}
		if err := repo.Record(ctx, &journal.Entry{Kind: kind, Source: "croquet"}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	srv := testServer(t, &fakeBroker{repo: repo}, nil)

	tests := []struct {
		query     string
		wantCode  int
		wantCount float64
	}{
		{"", http.StatusOK, 5},
		{"?limit=2", http.StatusOK, 2},
		{"?kind=transition", http.StatusOK, 2},
		{"?limit=0", http.StatusBadRequest, 0},
		{"?limit=many", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, "/api/v1/journal"+tt.query, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK {
				if body := decode(t, rec); body["count"] != tt.wantCount {
					t.Errorf("count = %v, want %v", body["count"], tt.wantCount)
				}
			}
		})
	}
}

func TestJournal_Disabled(t *testing.T) {
	srv := testServer(t, &fakeBroker{}, nil)

	if rec := do(t, srv, http.MethodGet, "/api/v1/journal", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestPostMessage(t *testing.T) {
	b := &fakeBroker{}
	srv := testServer(t, b, nil)

	frame := `{"source":"colorpicker","data":{"hue":0.5}}`
	rec := do(t, srv, http.MethodPost, "/api/v1/messages", frame)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if got := b.received(); len(got) != 1 || got[0] != frame {
		t.Errorf("dispatched = %q", got)
	}
}

func TestPostMessage_Rejections(t *testing.T) {
	b := &fakeBroker{}
	srv := testServer(t, b, nil)

	if rec := do(t, srv, http.MethodPost, "/api/v1/messages", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("empty body status = %d, want 400", rec.Code)
	}

	big := `{"source":"dragonstaff","data":"` + strings.Repeat("x", maxRequestBodySize) + `"}`
	if rec := do(t, srv, http.MethodPost, "/api/v1/messages", big); rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized status = %d, want 413", rec.Code)
	}
	if n := len(b.received()); n != 0 {
		t.Errorf("dispatched %d frames, want 0", n)
	}
}

func TestRecovery(t *testing.T) {
	srv := testServer(t, &fakeBroker{}, nil)
	handler := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestStart_ServesAndCloses(t *testing.T) {
	srv := testServer(t, &fakeBroker{}, nil)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/api/v1/health", srv.Addr()))
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestStart_BindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	defer ln.Close()

	srv := testServer(t, &fakeBroker{}, nil)
	srv.cfg.Port = ln.Addr().(*net.TCPAddr).Port

	if err := srv.Start(context.Background()); !errors.Is(err, ErrListen) {
		t.Errorf("Start() error = %v, want ErrListen", err)
	}
}

package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nerrad567/croquetia-core/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "localhost",
			Port:     1883,
			ClientID: "croquetia-test",
		},
		QoS:         1,
		Reconnect:   config.MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 5},
		TopicPrefix: "croquetia",
	}
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingLogger struct {
	mu     sync.Mutex
	warns  []string
	errors []string
}

func (l *recordingLogger) Info(string, ...any) {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func TestTopics(t *testing.T) {
	tests := []struct {
		name   string
		topics Topics
		got    func(Topics) string
		want   string
	}{
		{"source", Topics{Prefix: "croquetia"}, func(t Topics) string { return t.Source("colorpicker") }, "croquetia/source/colorpicker"},
		{"all sources", Topics{Prefix: "croquetia"}, Topics.AllSources, "croquetia/source/#"},
		{"state", Topics{Prefix: "croquetia"}, func(t Topics) string { return t.State("game") }, "croquetia/state/game"},
		{"status", Topics{Prefix: "croquetia"}, Topics.SystemStatus, "croquetia/system/status"},
		{"custom prefix", Topics{Prefix: "lawn/"}, func(t Topics) string { return t.State("devices") }, "lawn/state/devices"},
		{"empty prefix", Topics{}, Topics.SystemStatus, "croquetia/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.got(tt.topics); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTopics_SourceName(t *testing.T) {
	topics := Topics{Prefix: "croquetia"}

	if name, ok := topics.SourceName("croquetia/source/dragonstaff"); !ok || name != "dragonstaff" {
		t.Errorf("SourceName() = %q, %v", name, ok)
	}
	for _, topic := range []string{"croquetia/state/game", "croquetia/source/", "other/source/x"} {
		if _, ok := topics.SourceName(topic); ok {
			t.Errorf("SourceName(%q) should not match", topic)
		}
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "croquetia", Password: "secret"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://localhost:1883" {
		t.Errorf("Servers = %v, want tcp://localhost:1883", opts.Servers)
	}
	if opts.ClientID != "croquetia-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "croquetia" || opts.Password != "secret" {
		t.Error("credentials not applied")
	}
	if !opts.AutoReconnect {
		t.Error("expected auto reconnect")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("expected TLS 1.2 minimum")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, Topics{Prefix: "croquetia"}, "croquetia-test")

	if !opts.WillEnabled || !opts.WillRetained {
		t.Fatal("expected retained will")
	}
	if opts.WillTopic != "croquetia/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}

	var payload statusPayload
	if err := json.Unmarshal(opts.WillPayload, &payload); err != nil {
		t.Fatalf("will payload: %v", err)
	}
	if payload.Status != "offline" || payload.Reason != "unexpected_disconnect" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestPublish_Validation(t *testing.T) {
	c := newClient(testConfig())

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", nil, 0, ErrInvalidTopic},
		{"bad qos", "croquetia/x", nil, 3, ErrInvalidQoS},
		{"oversized", "croquetia/x", make([]byte, maxPayloadSize+1), 0, ErrPublishFailed},
		{"not connected", "croquetia/x", []byte("{}"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublishState_EncodingError(t *testing.T) {
	c := newClient(testConfig())

	err := c.PublishState("game", func() {})
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishState() error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := newClient(testConfig())
	noop := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 0, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: %v", err)
	}
	if err := c.Subscribe("a/b", 5, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos: %v", err)
	}
	if err := c.Subscribe("a/b", 0, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler: %v", err)
	}
	if err := c.Subscribe("a/b", 0, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("not connected: %v", err)
	}
	if len(c.subscriptions) != 0 {
		t.Error("failed subscribe should not be tracked")
	}
}

func TestUnsubscribe_Validation(t *testing.T) {
	c := newClient(testConfig())

	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: %v", err)
	}
	if err := c.Unlisten(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unlisten() error = %v, want ErrNotConnected", err)
	}
}

func TestListen_NotConnected(t *testing.T) {
	c := newClient(testConfig())

	err := c.Listen(func(context.Context, []byte) {})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Listen() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheck(t *testing.T) {
	c := newClient(testConfig())

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) = %v", err)
	}
}

func TestSourceHandler(t *testing.T) {
	var got [][]byte
	handler := sourceHandler(Topics{Prefix: "croquetia"}, func(_ context.Context, raw []byte) {
		got = append(got, raw)
	})

	frame := []byte(`{"source":"start"}`)
	if err := handler("croquetia/source/start", frame); err != nil {
		t.Fatalf("handler() error = %v", err)
	}
	if err := handler("croquetia/state/game", frame); err == nil {
		t.Error("expected error for non-source topic")
	}
	if len(got) != 1 || string(got[0]) != string(frame) {
		t.Errorf("forwarded = %q", got)
	}
}

func TestWrapHandler_RecoversPanic(t *testing.T) {
	c := newClient(testConfig())
	log := &recordingLogger{}
	c.SetLogger(log)

	wrapped := c.wrapHandler(func(string, []byte) error { panic("boom") })
	wrapped(nil, fakeMessage{topic: "croquetia/source/x"})

	if len(log.errors) != 1 {
		t.Errorf("errors logged = %v, want one panic entry", log.errors)
	}
}

func TestWrapHandler_LogsError(t *testing.T) {
	c := newClient(testConfig())
	log := &recordingLogger{}
	c.SetLogger(log)

	wrapped := c.wrapHandler(func(string, []byte) error { return fmt.Errorf("bad frame") })
	wrapped(nil, fakeMessage{topic: "croquetia/source/x", payload: []byte("{")})

	if len(log.warns) != 1 {
		t.Errorf("warnings logged = %v, want one", log.warns)
	}
}

func TestClose_Unconnected(t *testing.T) {
	c := newClient(testConfig())
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

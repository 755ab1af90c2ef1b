package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Croquetia broker.
// Values are loaded from YAML and can be overridden by environment variables.
type Config struct {
	Broker    BrokerConfig    `yaml:"broker"`
	Firestorm FirestormConfig `yaml:"firestorm"`
	Stream    StreamConfig    `yaml:"stream"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BrokerConfig contains the producer-facing listener settings.
type BrokerConfig struct {
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	WebSocket WebSocketConfig  `yaml:"websocket"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
}

// WebSocketConfig contains WebSocket ingress settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// FirestormConfig locates the lighting-controller gateway.
type FirestormConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// RequestTimeout bounds each gateway HTTP call (seconds).
	RequestTimeout int `yaml:"request_timeout"`
}

// StreamConfig controls the pixel streaming loop.
type StreamConfig struct {
	// Interval between streaming ticks. Default: 100ms
	Interval time.Duration `yaml:"interval"`

	// MaxInFlight bounds concurrent gateway commands issued by the broker.
	// Pixel frames are dropped rather than queued once the bound is reached.
	MaxInFlight int `yaml:"max_in_flight"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DatabaseConfig contains SQLite journal settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// envOverrides holds raw environment values. A nil field means the variable
// was not set. The first three keep the names the producers' tooling already uses.
type envOverrides struct {
	BrokerPort     *int           `env:"BROKER_PORT"`
	FirestormHost  *string        `env:"FIRESTORM_HOSTNAME"`
	FirestormPort  *int           `env:"FIRESTORM_PORT"`
	LogLevel       *string        `env:"CROQUETIA_LOG_LEVEL"`
	StreamInterval *time.Duration `env:"CROQUETIA_STREAM_INTERVAL"`
	DatabasePath   *string        `env:"CROQUETIA_DATABASE_PATH"`
	MQTTHost       *string        `env:"CROQUETIA_MQTT_HOST"`
	MQTTUsername   *string        `env:"CROQUETIA_MQTT_USERNAME"`
	MQTTPassword   *string        `env:"CROQUETIA_MQTT_PASSWORD"`
	InfluxDBToken  *string        `env:"CROQUETIA_INFLUXDB_TOKEN"`
}

// Load reads configuration and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values, when path is non-empty
//  3. Environment variables (override file values)
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults only
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read or parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			WebSocket: WebSocketConfig{
				Path:           "/",
				MaxMessageSize: 1 << 20,
				PingInterval:   30,
				PongTimeout:    10,
			},
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Firestorm: FirestormConfig{
			Host:           "localhost",
			Port:           3000,
			RequestTimeout: 5,
		},
		Stream: StreamConfig{
			Interval:    100 * time.Millisecond,
			MaxInFlight: 16,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "croquetia-broker",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "croquetia",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Database: DatabaseConfig{
			Path:        "./data/croquetia.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	var raw envOverrides
	if err := env.Parse(&raw); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}

	if raw.BrokerPort != nil {
		cfg.Broker.Port = *raw.BrokerPort
	}
	if raw.FirestormHost != nil {
		cfg.Firestorm.Host = *raw.FirestormHost
	}
	if raw.FirestormPort != nil {
		cfg.Firestorm.Port = *raw.FirestormPort
	}
	if raw.LogLevel != nil {
		cfg.Logging.Level = *raw.LogLevel
	}
	if raw.StreamInterval != nil {
		cfg.Stream.Interval = *raw.StreamInterval
	}
	if raw.DatabasePath != nil {
		cfg.Database.Path = *raw.DatabasePath
	}
	if raw.MQTTHost != nil {
		cfg.MQTT.Broker.Host = *raw.MQTTHost
	}
	if raw.MQTTUsername != nil {
		cfg.MQTT.Auth.Username = *raw.MQTTUsername
	}
	if raw.MQTTPassword != nil {
		cfg.MQTT.Auth.Password = *raw.MQTTPassword
	}
	if raw.InfluxDBToken != nil {
		cfg.InfluxDB.Token = *raw.InfluxDBToken
	}

	return nil
}

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("config: invalid")

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Broker.Port < 1 || c.Broker.Port > 65535 {
		errs = append(errs, "broker.port must be between 1 and 65535")
	}
	if !strings.HasPrefix(c.Broker.WebSocket.Path, "/") {
		errs = append(errs, "broker.websocket.path must start with /")
	}

	if c.Firestorm.Host == "" {
		errs = append(errs, "firestorm.host is required")
	}
	if c.Firestorm.Port < 1 || c.Firestorm.Port > 65535 {
		errs = append(errs, "firestorm.port must be between 1 and 65535")
	}

	if c.Stream.Interval <= 0 {
		errs = append(errs, "stream.interval must be positive")
	}
	if c.Stream.MaxInFlight < 1 {
		errs = append(errs, "stream.max_in_flight must be at least 1")
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
		}
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// FirestormURL returns the gateway base URL.
func (c *Config) FirestormURL() string {
	return fmt.Sprintf("http://%s:%d", c.Firestorm.Host, c.Firestorm.Port)
}

// GetFirestormTimeout returns the per-request gateway timeout.
func (c *Config) GetFirestormTimeout() time.Duration {
	return time.Duration(c.Firestorm.RequestTimeout) * time.Second
}

// Address returns the host:port the broker listens on.
func (c BrokerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetReadTimeout returns the HTTP read timeout as a Duration.
func (c BrokerConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the HTTP write timeout as a Duration.
func (c BrokerConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the HTTP idle timeout as a Duration.
func (c BrokerConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}

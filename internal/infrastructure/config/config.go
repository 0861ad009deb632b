package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for PixelPanel.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Store     StoreConfig     `yaml:"store"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// DeviceConfig describes the PixelIt device connection.
type DeviceConfig struct {
	// Name identifies the device in MQTT topics and InfluxDB tags.
	Name string `yaml:"name"`

	// URL is the device WebSocket endpoint, e.g. "ws://pixelit.local:81".
	URL string `yaml:"url"`

	// HandshakeTimeout bounds the WebSocket dial (seconds).
	HandshakeTimeout int `yaml:"handshake_timeout"`

	// WriteTimeout bounds a single outbound frame (seconds).
	WriteTimeout int `yaml:"write_timeout"`

	// AckTimeout is how long a config submission waits for the device echo (seconds).
	AckTimeout int `yaml:"ack_timeout"`

	// PingInterval is the keepalive period (seconds). 0 disables keepalive.
	PingInterval int `yaml:"ping_interval"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig contains reconnection backoff settings (seconds).
// MaxAttempts of 0 means unlimited.
type ReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// StoreConfig contains in-memory retention and persistence settings.
type StoreConfig struct {
	Retention RetentionConfig `yaml:"retention"`

	// Persist enables recording confirmed configs and log lines in SQLite.
	Persist bool `yaml:"persist"`

	// PersistRetentionDays prunes persisted rows older than this. 0 disables pruning.
	PersistRetentionDays int `yaml:"persist_retention_days"`
}

// RetentionConfig caps the append-only collections held in memory.
type RetentionConfig struct {
	Logs    int `yaml:"logs"`
	Sensors int `yaml:"sensors"`
	Buttons int `yaml:"buttons"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains the MQTT mirror settings.
type MQTTConfig struct {
	Enabled     bool             `yaml:"enabled"`
	Broker      MQTTBrokerConfig `yaml:"broker"`
	Auth        MQTTAuthConfig   `yaml:"auth"`
	QoS         int              `yaml:"qos"`
	TopicPrefix string           `yaml:"topic_prefix"`
	Reconnect   ReconnectConfig  `yaml:"reconnect"`
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

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains settings for UI WebSocket clients.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for sensor history.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains operator authentication settings.
type SecurityConfig struct {
	// AuthEnabled protects mutating endpoints with an operator JWT.
	AuthEnabled bool `yaml:"auth_enabled"`

	JWT JWTConfig `yaml:"jwt"`

	// OperatorPasswordHash is an argon2id PHC string for the single operator account.
	OperatorPasswordHash string `yaml:"operator_password_hash"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

const minJWTSecretLength = 32

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. A .env file next to the config file, if present (never overrides the real environment)
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: PIXELPANEL_SECTION_KEY
// For example: PIXELPANEL_DEVICE_URL, PIXELPANEL_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := loadEnvFile(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, fmt.Errorf("loading env file: %w", err)
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides applied.
// It is used when no config file exists.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// loadEnvFile populates the process environment from a dotenv file.
// A missing file is not an error.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Name:             "pixelit",
			URL:              "ws://pixelit.local:81",
			HandshakeTimeout: 10,
			WriteTimeout:     5,
			AckTimeout:       5,
			PingInterval:     15,
			Reconnect: ReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  10,
			},
		},
		Store: StoreConfig{
			Retention: RetentionConfig{
				Logs:    500,
				Sensors: 1000,
				Buttons: 200,
			},
			Persist:              true,
			PersistRetentionDays: 30,
		},
		Database: DatabaseConfig{
			Path:        "./data/pixelpanel.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "pixelpanel",
			},
			QoS:         1,
			TopicPrefix: "pixelpanel",
			Reconnect: ReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			Org:           "pixelpanel",
			Bucket:        "pixelit",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			AuthEnabled: true,
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("PIXELPANEL_DEVICE_URL"); v != "" {
		cfg.Device.URL = v
	}
	if v := os.Getenv("PIXELPANEL_DEVICE_NAME"); v != "" {
		cfg.Device.Name = v
	}

	// Database
	if v := os.Getenv("PIXELPANEL_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("PIXELPANEL_MQTT_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MQTT.Enabled = b
		}
	}
	if v := os.Getenv("PIXELPANEL_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PIXELPANEL_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PIXELPANEL_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("PIXELPANEL_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("PIXELPANEL_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("PIXELPANEL_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("PIXELPANEL_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("PIXELPANEL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Security (always override secrets in production)
	if v := os.Getenv("PIXELPANEL_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("PIXELPANEL_OPERATOR_PASSWORD_HASH"); v != "" {
		cfg.Security.OperatorPasswordHash = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	// Device
	if c.Device.URL == "" {
		errs = append(errs, "device.url is required")
	} else if !strings.HasPrefix(c.Device.URL, "ws://") && !strings.HasPrefix(c.Device.URL, "wss://") {
		errs = append(errs, "device.url must use ws:// or wss://")
	}
	if c.Device.Name == "" {
		errs = append(errs, "device.name is required")
	}
	if c.Device.AckTimeout < 1 {
		errs = append(errs, "device.ack_timeout must be at least 1 second")
	}
	if c.Device.PingInterval < 0 {
		errs = append(errs, "device.ping_interval must be >= 0")
	}
	if c.Device.Reconnect.InitialDelay < 1 {
		errs = append(errs, "device.reconnect.initial_delay must be at least 1 second")
	}
	if c.Device.Reconnect.MaxDelay < c.Device.Reconnect.InitialDelay {
		errs = append(errs, "device.reconnect.max_delay must not be below initial_delay")
	}
	if c.Device.Reconnect.MaxAttempts < 0 {
		errs = append(errs, "device.reconnect.max_attempts must be >= 0")
	}

	// Store
	r := c.Store.Retention
	if r.Logs < 1 || r.Sensors < 1 || r.Buttons < 1 {
		errs = append(errs, "store.retention limits must be positive")
	}

	// Database
	if c.Store.Persist && c.Database.Path == "" {
		errs = append(errs, "database.path is required when store.persist is enabled")
	}

	// MQTT
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
	}

	// InfluxDB
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// API
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Security. Writes reach physical hardware, so a weak secret is rejected outright.
	if c.Security.AuthEnabled {
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required (set PIXELPANEL_JWT_SECRET environment variable)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters")
		}
		if c.Security.OperatorPasswordHash == "" {
			errs = append(errs, "security.operator_password_hash is required when auth is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// Seconds converts a seconds-valued config field to a Duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

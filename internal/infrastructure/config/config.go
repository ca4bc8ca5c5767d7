package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for OpenDeck Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Paths     PathsConfig     `yaml:"paths"`
	Routing   RoutingConfig   `yaml:"routing"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PathsConfig locates the on-disk configuration tree.
//
// Layout under ConfigRoot:
//
//	profiles/<device-id>/<profile-id>.json
//	profiles/<device-id>.json
//	images/<device-id>/<profile-id>/<controller>.<position>.<index>/<n>.<ext>
//	plugins/<plugin-uuid>/
//	settings/<plugin-uuid>.json
type PathsConfig struct {
	ConfigRoot string `yaml:"config_root"`
	// PluginsDir overrides <config_root>/plugins when set.
	PluginsDir string `yaml:"plugins_dir"`
}

// RoutingConfig tunes the event router.
type RoutingConfig struct {
	// SettleDelayMS is the pause between child steps of a multi-action sweep.
	SettleDelayMS int `yaml:"settle_delay_ms"`

	// DefaultProfile is the profile name reported when a device has none on disk.
	DefaultProfile string `yaml:"default_profile"`
}

// DatabaseConfig contains SQLite database settings for the audit trail.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
// The broker carries device driver traffic and UI notifications.
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket settings shared by plugin, property
// inspector and UI sockets.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: OPENDECK_SECTION_KEY
// For example: OPENDECK_CONFIG_ROOT, OPENDECK_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			ConfigRoot: defaultConfigRoot(),
		},
		Routing: RoutingConfig{
			SettleDelayMS:  100,
			DefaultProfile: "Default",
		},
		Database: DatabaseConfig{
			Path:        filepath.Join(defaultConfigRoot(), "opendeck.db"),
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: false,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "opendeck-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			TopicPrefix: "opendeck",
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 57116,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/plugin",
			MaxMessageSize: 1 << 20,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// defaultConfigRoot returns the per-user configuration directory for OpenDeck.
// Falls back to a relative directory when the user config dir is unavailable.
func defaultConfigRoot() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(dir, "opendeck")
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: OPENDECK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENDECK_CONFIG_ROOT"); v != "" {
		cfg.Paths.ConfigRoot = v
	}
	if v := os.Getenv("OPENDECK_PLUGINS_DIR"); v != "" {
		cfg.Paths.PluginsDir = v
	}

	if v := os.Getenv("OPENDECK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("OPENDECK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
		cfg.MQTT.Enabled = true
	}
	if v := os.Getenv("OPENDECK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("OPENDECK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("OPENDECK_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("OPENDECK_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("OPENDECK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Paths.ConfigRoot == "" {
		errs = append(errs, "paths.config_root is required")
	}

	if c.Routing.SettleDelayMS < 0 {
		errs = append(errs, "routing.settle_delay_ms must not be negative")
	}
	if c.Routing.DefaultProfile == "" {
		errs = append(errs, "routing.default_profile is required")
	} else if strings.Contains(c.Routing.DefaultProfile, ".") {
		// Profile ids are a field of the dot-separated action context.
		errs = append(errs, "routing.default_profile must not contain '.'")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// PluginsDir returns the directory holding one sub-directory per installed plugin.
func (c *Config) PluginsDir() string {
	if c.Paths.PluginsDir != "" {
		return c.Paths.PluginsDir
	}
	return filepath.Join(c.Paths.ConfigRoot, "plugins")
}

// SettingsDir returns the directory of per-plugin global settings files.
func (c *Config) SettingsDir() string {
	return filepath.Join(c.Paths.ConfigRoot, "settings")
}

// SettleDelay returns the multi-action settle delay as a Duration.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Routing.SettleDelayMS) * time.Millisecond
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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
paths:
  config_root: "/tmp/opendeck-test"
routing:
  settle_delay_ms: 50
  default_profile: "Main"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: true
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
  topic_prefix: "deck"
api:
  host: "127.0.0.1"
  port: 8080
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Paths.ConfigRoot != "/tmp/opendeck-test" {
		t.Errorf("Paths.ConfigRoot = %q, want %q", cfg.Paths.ConfigRoot, "/tmp/opendeck-test")
	}
	if cfg.Routing.DefaultProfile != "Main" {
		t.Errorf("Routing.DefaultProfile = %q, want %q", cfg.Routing.DefaultProfile, "Main")
	}
	if cfg.SettleDelay() != 50*time.Millisecond {
		t.Errorf("SettleDelay() = %v, want 50ms", cfg.SettleDelay())
	}
	if cfg.MQTT.TopicPrefix != "deck" {
		t.Errorf("MQTT.TopicPrefix = %q, want %q", cfg.MQTT.TopicPrefix, "deck")
	}
	// Unset values keep their defaults.
	if cfg.WebSocket.Path != "/plugin" {
		t.Errorf("WebSocket.Path = %q, want %q", cfg.WebSocket.Path, "/plugin")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
routing:
  default_profile: "bad.profile"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "default_profile") {
		t.Errorf("Load() error = %v, want mention of default_profile", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing config root",
			modify:  func(c *Config) { c.Paths.ConfigRoot = "" },
			wantErr: true,
		},
		{
			name:    "negative settle delay",
			modify:  func(c *Config) { c.Routing.SettleDelayMS = -1 },
			wantErr: true,
		},
		{
			name:    "zero settle delay allowed",
			modify:  func(c *Config) { c.Routing.SettleDelayMS = 0 },
			wantErr: false,
		},
		{
			name:    "empty default profile",
			modify:  func(c *Config) { c.Routing.DefaultProfile = "" },
			wantErr: true,
		},
		{
			name:    "missing database path",
			modify:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid qos",
			modify:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name: "mqtt enabled without prefix",
			modify: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.TopicPrefix = ""
			},
			wantErr: true,
		},
		{
			name:    "port too low",
			modify:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "port too high",
			modify:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name: "influxdb enabled without url",
			modify: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 45*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 45s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 60*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 60s", got)
	}
}

func TestConfig_PluginsDir(t *testing.T) {
	cfg := &Config{Paths: PathsConfig{ConfigRoot: "/data"}}
	if got := cfg.PluginsDir(); got != filepath.Join("/data", "plugins") {
		t.Errorf("PluginsDir() = %q, want %q", got, filepath.Join("/data", "plugins"))
	}

	cfg.Paths.PluginsDir = "/opt/plugins"
	if got := cfg.PluginsDir(); got != "/opt/plugins" {
		t.Errorf("PluginsDir() = %q, want %q", got, "/opt/plugins")
	}
	if got := cfg.SettingsDir(); got != filepath.Join("/data", "settings") {
		t.Errorf("SettingsDir() = %q, want %q", got, filepath.Join("/data", "settings"))
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("OPENDECK_CONFIG_ROOT", "/env/root")
	t.Setenv("OPENDECK_DATABASE_PATH", "/env/test.db")
	t.Setenv("OPENDECK_MQTT_HOST", "mqtt.example.com")
	t.Setenv("OPENDECK_MQTT_USERNAME", "user")
	t.Setenv("OPENDECK_MQTT_PASSWORD", "pass")
	t.Setenv("OPENDECK_API_HOST", "0.0.0.0")
	t.Setenv("OPENDECK_API_PORT", "9000")
	t.Setenv("OPENDECK_INFLUXDB_TOKEN", "token")

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Paths.ConfigRoot != "/env/root" {
		t.Errorf("Paths.ConfigRoot = %q, want %q", cfg.Paths.ConfigRoot, "/env/root")
	}
	if cfg.Database.Path != "/env/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/env/test.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if !cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = false, want true when host is overridden")
	}
	if cfg.MQTT.Auth.Username != "user" || cfg.MQTT.Auth.Password != "pass" {
		t.Errorf("MQTT.Auth = %+v, want user/pass", cfg.MQTT.Auth)
	}
	if cfg.API.Host != "0.0.0.0" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "0.0.0.0")
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.InfluxDB.Token != "token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "token")
	}
}

func TestApplyEnvOverrides_InvalidPortIgnored(t *testing.T) {
	t.Setenv("OPENDECK_API_PORT", "not-a-number")

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if cfg.API.Port != 57116 {
		t.Errorf("API.Port = %d, want default 57116", cfg.API.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Routing.SettleDelayMS != 100 {
		t.Errorf("Routing.SettleDelayMS = %d, want 100", cfg.Routing.SettleDelayMS)
	}
	if cfg.Routing.DefaultProfile != "Default" {
		t.Errorf("Routing.DefaultProfile = %q, want %q", cfg.Routing.DefaultProfile, "Default")
	}
	if cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = true, want false by default")
	}
	if cfg.API.Port != 57116 {
		t.Errorf("API.Port = %d, want 57116", cfg.API.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

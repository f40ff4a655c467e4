package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the volumio-hid daemon.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig             `yaml:"device"`
	Volumio   VolumioConfig            `yaml:"volumio"`
	Commands  map[string]CommandConfig `yaml:"commands"`
	History   HistoryConfig            `yaml:"history"`
	Telemetry TelemetryConfig          `yaml:"telemetry"`
	Announce  AnnounceConfig           `yaml:"announce"`
	API       APIConfig                `yaml:"api"`
	Logging   LoggingConfig            `yaml:"logging"`
}

// DeviceConfig contains the HID input device settings.
type DeviceConfig struct {
	// Path is the evdev node of the RFID reader.
	// Typically a stable by-id symlink such as
	// /dev/input/by-id/usb-13ba_Barcode_Reader-event-kbd.
	Path string `yaml:"path"`

	// OnUnknown selects what to do with scancodes that map to neither a
	// digit nor the terminator key: "drop" discards the event, "mark"
	// appends a replacement character so the identifier fails resolution.
	OnUnknown string `yaml:"on_unknown"`
}

// VolumioConfig contains the Volumio server connection settings.
type VolumioConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// ConnectTimeout is the maximum time in seconds to wait for the
	// initial connection before startup fails.
	ConnectTimeout int `yaml:"connect_timeout"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig contains reconnection backoff settings for a lost session.
type ReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// CommandConfig maps one configured identifier to a Volumio command.
// The map key in Config.Commands is the identifier (card serial).
type CommandConfig struct {
	// Command is the Volumio event name (play, stop, prev, next, volume,
	// mute, unmute, toggleMute, playPlaylist, shutdown). toggleMute
	// resolves to mute or unmute from the current player state.
	Command string `yaml:"command"`

	// Args is the optional payload sent with the event, for example a
	// {name: ...} mapping for playPlaylist.
	Args map[string]any `yaml:"args"`

	// Volume is the payload for the volume command: "+", "-", or an
	// absolute level. Ignored for other commands.
	Volume string `yaml:"volume"`
}

// HistoryConfig contains scan history database settings.
type HistoryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// TelemetryConfig contains InfluxDB telemetry settings.
type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// AnnounceConfig contains MQTT presence announcer settings.
type AnnounceConfig struct {
	Enabled bool               `yaml:"enabled"`
	Broker  AnnounceBroker     `yaml:"broker"`
	Auth    AnnounceAuthConfig `yaml:"auth"`
	QoS     int                `yaml:"qos"`

	// TopicPrefix is prepended to all published topics.
	TopicPrefix string `yaml:"topic_prefix"`
}

// AnnounceBroker contains MQTT broker connection details.
type AnnounceBroker struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// AnnounceAuthConfig contains MQTT authentication credentials.
type AnnounceAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// APIConfig contains the status HTTP server settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`

	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Unknown scancode policies accepted by DeviceConfig.OnUnknown.
const (
	OnUnknownDrop = "drop"
	OnUnknownMark = "mark"
)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: VOLUMIOHID_SECTION_KEY
// For example: VOLUMIOHID_DEVICE_PATH, VOLUMIOHID_VOLUMIO_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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
		Device: DeviceConfig{
			Path:      "/dev/input/by-id/usb-13ba_Barcode_Reader-event-kbd",
			OnUnknown: OnUnknownDrop,
		},
		Volumio: VolumioConfig{
			Host:           "localhost",
			Port:           3000,
			ConnectTimeout: 10,
			Reconnect: ReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		History: HistoryConfig{
			Enabled:     false,
			Path:        "./data/volumio-hid.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Announce: AnnounceConfig{
			Broker: AnnounceBroker{
				Host:     "localhost",
				Port:     1883,
				ClientID: "volumio-hid",
			},
			QoS:         1,
			TopicPrefix: "volumiohid",
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8337,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: VOLUMIOHID_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("VOLUMIOHID_DEVICE_PATH"); v != "" {
		cfg.Device.Path = v
	}

	// Volumio
	if v := os.Getenv("VOLUMIOHID_VOLUMIO_HOST"); v != "" {
		cfg.Volumio.Host = v
	}
	if v := os.Getenv("VOLUMIOHID_VOLUMIO_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Volumio.Port = port
		}
	}

	// History
	if v := os.Getenv("VOLUMIOHID_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}

	// Telemetry
	if v := os.Getenv("VOLUMIOHID_TELEMETRY_TOKEN"); v != "" {
		cfg.Telemetry.Token = v
	}

	// Announce
	if v := os.Getenv("VOLUMIOHID_ANNOUNCE_USERNAME"); v != "" {
		cfg.Announce.Auth.Username = v
	}
	if v := os.Getenv("VOLUMIOHID_ANNOUNCE_PASSWORD"); v != "" {
		cfg.Announce.Auth.Password = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Device validation
	if c.Device.Path == "" {
		errs = append(errs, "device.path is required")
	}
	switch c.Device.OnUnknown {
	case OnUnknownDrop, OnUnknownMark:
	default:
		errs = append(errs, `device.on_unknown must be "drop" or "mark"`)
	}

	// Volumio validation
	if c.Volumio.Host == "" {
		errs = append(errs, "volumio.host is required")
	}
	if c.Volumio.Port < 1 || c.Volumio.Port > 65535 {
		errs = append(errs, "volumio.port must be between 1 and 65535")
	}

	// History validation
	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, "history.path is required when history is enabled")
	}

	// Telemetry validation
	if c.Telemetry.Enabled {
		if c.Telemetry.URL == "" {
			errs = append(errs, "telemetry.url is required when telemetry is enabled")
		}
		if c.Telemetry.Token == "" {
			errs = append(errs, "telemetry.token is required when telemetry is enabled (set VOLUMIOHID_TELEMETRY_TOKEN)")
		}
	}

	// Announce validation
	if c.Announce.QoS < 0 || c.Announce.QoS > 2 {
		errs = append(errs, "announce.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Command table keys are unique by construction (YAML mapping), but an
	// entry without a command name is a configuration mistake.
	for serial, cmd := range c.Commands {
		if strings.TrimSpace(cmd.Command) == "" {
			errs = append(errs, fmt.Sprintf("commands.%s: command name is required", serial))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetConnectTimeout returns the Volumio connect timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.Volumio.ConnectTimeout) * time.Second
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

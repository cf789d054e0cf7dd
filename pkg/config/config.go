// Package config loads the YAML configuration of the lwm2m-client console.
package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/mash-protocol/lwm2m-go/pkg/client"
	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/server"
	"github.com/mash-protocol/lwm2m-go/pkg/wire"
)

// LoadError reports a configuration file that could not be used.
type LoadError struct {
	// File is the path of the file, empty for in-memory input.
	File string

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.File == "" {
		return msg
	}
	return e.File + ": " + msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Config is the console configuration file.
type Config struct {
	Log     LogConfig      `yaml:"log"`
	Client  ClientConfig   `yaml:"client"`
	Servers []ServerConfig `yaml:"servers"`
	Objects ObjectsConfig  `yaml:"objects"`
}

// LogConfig configures console and protocol logging.
type LogConfig struct {
	// Level is a zerolog level name.
	Level string `yaml:"level"`

	// JSON switches console output from human-readable to JSON lines.
	JSON bool `yaml:"json"`

	// ProtocolFile receives CBOR protocol events. Empty disables capture.
	ProtocolFile string `yaml:"protocol_file"`

	// MaxSizeMB rotates the protocol file at this size.
	MaxSizeMB int `yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files kept.
	MaxBackups int `yaml:"max_backups"`
}

// ClientConfig mirrors client.Config.
type ClientConfig struct {
	RecentMessageIDs int           `yaml:"recent_message_ids"`
	DefaultFormat    string        `yaml:"default_format"`
	MaxSleep         time.Duration `yaml:"max_sleep"`
}

// ServerConfig describes one Server.
type ServerConfig struct {
	ShortID               uint16 `yaml:"short_id"`
	ReliableNotifications bool   `yaml:"reliable_notifications"`
	DefaultMinPeriod      uint32 `yaml:"default_pmin"`
	DefaultMaxPeriod      uint32 `yaml:"default_pmax"`

	// Status is the registration status the console starts the Server in.
	Status string `yaml:"status"`
}

// ObjectsConfig selects the reference Objects the console exposes.
type ObjectsConfig struct {
	Device      DeviceConfig       `yaml:"device"`
	Temperature *TemperatureConfig `yaml:"temperature"`
}

// DeviceConfig fills the Device Object.
type DeviceConfig struct {
	Manufacturer    string `yaml:"manufacturer"`
	Model           string `yaml:"model"`
	Serial          string `yaml:"serial"`
	FirmwareVersion string `yaml:"firmware_version"`
}

// TemperatureConfig enables the Temperature Object.
type TemperatureConfig struct {
	Units string `yaml:"units"`

	// Sensors maps Instance ids to initial readings.
	Sensors map[uint16]float64 `yaml:"sensors"`
}

var formats = map[string]message.MediaType{
	"senml-cbor": wire.FormatSenMLCBOR,
}

var statuses = map[string]server.Status{
	"unregistered":   server.StatusUnregistered,
	"registered":     server.StatusRegistered,
	"update-pending": server.StatusUpdatePending,
}

// Default returns the configuration used without a file: one registered
// Server 101, the Device Object and one temperature sensor.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Client: ClientConfig{
			RecentMessageIDs: 4,
			DefaultFormat:    "senml-cbor",
			MaxSleep:         client.DefaultMaxSleep,
		},
		Servers: []ServerConfig{
			{ShortID: 101, Status: "registered"},
		},
		Objects: ObjectsConfig{
			Device: DeviceConfig{
				Manufacturer:    "Open Mobile Alliance",
				Model:           "Lightweight M2M Client",
				Serial:          "345000123",
				FirmwareVersion: "1.0",
			},
			Temperature: &TemperatureConfig{
				Units:   "Cel",
				Sensors: map[uint16]float64{0: 21.5},
			},
		},
	}
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &LoadError{Message: "invalid configuration", Cause: err}
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	cfg, err := Parse(data)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.File = path
		}
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 {
		return fmt.Errorf("log rotation limits must not be negative")
	}
	if _, ok := formats[strings.ToLower(c.Client.DefaultFormat)]; !ok {
		return fmt.Errorf("unknown default_format %q", c.Client.DefaultFormat)
	}
	if _, err := c.ClientConfig(); err != nil {
		return err
	}

	seen := make([]uint16, 0, len(c.Servers))
	for _, s := range c.Servers {
		if slices.Contains(seen, s.ShortID) {
			return fmt.Errorf("server %d listed twice", s.ShortID)
		}
		seen = append(seen, s.ShortID)
		if err := s.ServerConfig().Validate(); err != nil {
			return err
		}
		if _, err := s.InitialStatus(); err != nil {
			return err
		}
	}
	return nil
}

// LogLevel returns the parsed console log level.
func (c *Config) LogLevel() (zerolog.Level, error) {
	if c.Log.Level == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}

// ClientConfig converts the client section. Loggers are left for the
// caller to set.
func (c *Config) ClientConfig() (client.Config, error) {
	cfg := client.DefaultConfig()
	if c.Client.RecentMessageIDs != 0 {
		cfg.RecentMessageIDs = c.Client.RecentMessageIDs
	}
	if c.Client.MaxSleep != 0 {
		cfg.MaxSleep = c.Client.MaxSleep
	}
	if f, ok := formats[strings.ToLower(c.Client.DefaultFormat)]; ok {
		cfg.DefaultFormat = f
	}
	if err := cfg.Validate(); err != nil {
		return client.Config{}, err
	}
	return cfg, nil
}

// ServerConfig converts the entry to a server.Config.
func (s ServerConfig) ServerConfig() server.Config {
	return server.Config{
		ShortID:               model.ServerID(s.ShortID),
		ReliableNotifications: s.ReliableNotifications,
		DefaultMinPeriod:      s.DefaultMinPeriod,
		DefaultMaxPeriod:      s.DefaultMaxPeriod,
	}
}

// InitialStatus parses Status. Empty means registered.
func (s ServerConfig) InitialStatus() (server.Status, error) {
	if s.Status == "" {
		return server.StatusRegistered, nil
	}
	st, ok := statuses[strings.ToLower(s.Status)]
	if !ok {
		return server.StatusUnregistered, fmt.Errorf("server %d: unknown status %q", s.ShortID, s.Status)
	}
	return st, nil
}

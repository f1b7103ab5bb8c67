// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Loading errors wrap ErrLoadConfig, validation errors wrap ErrInvalidConfig.
package config

import (
	"time"

	"github.com/okian/hurdletime/internal/domain/decoder"
)

// Transport and storage choices.
const (
	TransportBLE = "ble"
	TransportSim = "sim"

	StorageBadger = "badger"
	StorageMemory = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Transport selects the radio: ble for real hardware, sim for a simulated sensor.
	Transport string `koanf:"transport"`
	// DeviceNamePrefixes filters discovery by advertised name.
	DeviceNamePrefixes []string `koanf:"device_name_prefixes"`
	ServiceUUID        string   `koanf:"service_uuid"`
	CharacteristicUUID string   `koanf:"characteristic_uuid"`

	// LivenessIntervalMS is the link poll period while connected.
	LivenessIntervalMS int `koanf:"liveness_interval_ms"`
	// ConnectTimeoutMS bounds scan and handshake. Zero disables the bound.
	ConnectTimeoutMS int `koanf:"connect_timeout_ms"`

	// DefaultHurdles is the race target when the caller gives none.
	DefaultHurdles int `koanf:"default_hurdles"`

	// CommandQueueSize bounds the service command queue.
	CommandQueueSize int `koanf:"command_queue_size"`

	// Storage is badger or memory; DataDir is the badger directory.
	Storage string `koanf:"storage"`
	DataDir string `koanf:"data_dir"`

	// SeedAthletes adds the default roster when none is stored.
	SeedAthletes bool `koanf:"seed_athletes"`

	// SimSplitIntervalMS spaces simulated hurdle crossings.
	SimSplitIntervalMS int `koanf:"sim_split_interval_ms"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		Transport:          TransportBLE,
		DeviceNamePrefixes: append([]string(nil), decoder.DefaultNamePrefixes...),
		ServiceUUID:        decoder.ServiceUUID,
		CharacteristicUUID: decoder.CharacteristicUUID,
		LivenessIntervalMS: 1000,
		ConnectTimeoutMS:   30_000,
		DefaultHurdles:     5,
		CommandQueueSize:   1024,
		Storage:            StorageBadger,
		DataDir:            "./data",
		SeedAthletes:       true,
		SimSplitIntervalMS: 1200,
	}
}

// LivenessInterval returns LivenessIntervalMS as a duration.
func (c *Config) LivenessInterval() time.Duration {
	return time.Duration(c.LivenessIntervalMS) * time.Millisecond
}

// ConnectTimeout returns ConnectTimeoutMS as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMS) * time.Millisecond
}

// SimSplitInterval returns SimSplitIntervalMS as a duration.
func (c *Config) SimSplitInterval() time.Duration {
	return time.Duration(c.SimSplitIntervalMS) * time.Millisecond
}

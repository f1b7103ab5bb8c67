package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix = "HURDLE_"
	envConfig = "HURDLE_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if HURDLE_CONFIG is set
//  3. env (prefix HURDLE_)
func Load() (*Config, error) {
	return LoadFile(os.Getenv(envConfig))
}

// LoadFile is Load with an explicit YAML path; an empty path skips the file.
func LoadFile(path string) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// HURDLE_LIVENESS_INTERVAL_MS -> liveness_interval_ms (flat keys).
	envProvider := env.ProviderWithValue(envPrefix, ".", envValue)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// listKeys hold comma-separated values when set from the environment.
var listKeys = []string{"device_name_prefixes"}

func envValue(key, value string) (string, interface{}) {
	if key == envConfig {
		return "", nil
	}
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	if !slices.Contains(listKeys, key) {
		return key, value
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return key, items
}

// Validate checks field ranges and closed sets.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.LivenessIntervalMS <= 0:
		return fmt.Errorf("%w: liveness_interval_ms must be positive", ErrInvalidConfig)
	case c.ConnectTimeoutMS < 0:
		return fmt.Errorf("%w: connect_timeout_ms must not be negative", ErrInvalidConfig)
	case c.DefaultHurdles < 1:
		return fmt.Errorf("%w: default_hurdles must be at least 1", ErrInvalidConfig)
	case c.CommandQueueSize < 1:
		return fmt.Errorf("%w: command_queue_size must be at least 1", ErrInvalidConfig)
	case !slices.Contains([]string{TransportBLE, TransportSim}, c.Transport):
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, c.Transport)
	case !slices.Contains([]string{StorageBadger, StorageMemory}, c.Storage):
		return fmt.Errorf("%w: unknown storage %q", ErrInvalidConfig, c.Storage)
	case c.Storage == StorageBadger && c.DataDir == "":
		return fmt.Errorf("%w: data_dir is required for badger storage", ErrInvalidConfig)
	case !slices.Contains([]string{"text", "json"}, c.LogFormat):
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

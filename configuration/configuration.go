// Package configuration defines the registry configuration, provided by a
// YAML file and optionally overridden by REGISTRY_* environment variables.
package configuration

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Parameters holds driver-specific configuration values.
type Parameters map[string]interface{}

// Configuration is the root registry configuration.
type Configuration struct {
	// Log configures operational logging.
	Log struct {
		// Level is one of error, warn, info, debug.
		Level Loglevel `yaml:"level"`
	} `yaml:"log"`

	// HTTP configures the listener.
	HTTP struct {
		// Addr is the bind address, e.g. ":5000".
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	// Storage selects and configures the storage driver. Exactly one
	// driver key is expected, e.g.
	//
	//	storage:
	//	  s3:
	//	    bucket: images
	//	    region: us-east-1
	Storage Storage `yaml:"storage"`

	// Uploads configures chunked upload session lifecycle.
	Uploads struct {
		// Timeout is the idle duration after which a session expires.
		// Defaults to 24h.
		Timeout time.Duration `yaml:"timeout"`

		// SweepInterval is how often expired sessions are swept.
		// Defaults to 1h.
		SweepInterval time.Duration `yaml:"sweepinterval"`
	} `yaml:"uploads"`
}

// Loglevel is a validated logging level string.
type Loglevel string

// UnmarshalYAML validates and lowercases the level.
func (loglevel *Loglevel) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	s = strings.ToLower(s)
	switch s {
	case "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("invalid loglevel %s, must be one of error, warn, info, debug", s)
	}

	*loglevel = Loglevel(s)
	return nil
}

// Storage maps a single driver name onto its parameters.
type Storage map[string]Parameters

// Type returns the configured driver name.
func (storage Storage) Type() string {
	for k := range storage {
		return k
	}
	return ""
}

// Parameters returns the configured driver's parameters.
func (storage Storage) Parameters() Parameters {
	return storage[storage.Type()]
}

// UnmarshalYAML enforces that exactly one driver is configured.
func (storage *Storage) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var m map[string]Parameters
	if err := unmarshal(&m); err != nil {
		return err
	}

	if len(m) != 1 {
		types := make([]string, 0, len(m))
		for k := range m {
			types = append(types, k)
		}
		return fmt.Errorf("must provide exactly one storage type, got: %v", types)
	}

	*storage = m
	return nil
}

// Parse reads a Configuration from rd, applies environment overrides and
// fills defaults.
func Parse(rd io.Reader) (*Configuration, error) {
	in, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}

	config := new(Configuration)
	if err := yaml.Unmarshal(in, config); err != nil {
		return nil, err
	}

	applyEnvOverrides(config)
	applyDefaults(config)

	if config.Storage.Type() == "" {
		return nil, fmt.Errorf("no storage configuration provided")
	}

	return config, nil
}

func applyEnvOverrides(config *Configuration) {
	if v := os.Getenv("REGISTRY_HTTP_ADDR"); v != "" {
		config.HTTP.Addr = v
	}
	if v := os.Getenv("REGISTRY_LOG_LEVEL"); v != "" {
		config.Log.Level = Loglevel(strings.ToLower(v))
	}
	if v := os.Getenv("REGISTRY_UPLOADS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Uploads.Timeout = d
		}
	}
}

func applyDefaults(config *Configuration) {
	if config.HTTP.Addr == "" {
		config.HTTP.Addr = ":5000"
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Uploads.Timeout == 0 {
		config.Uploads.Timeout = 24 * time.Hour
	}
	if config.Uploads.SweepInterval == 0 {
		config.Uploads.SweepInterval = time.Hour
	}
}

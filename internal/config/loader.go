package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Network.Name == "" {
		errs = append(errs, errors.New("network.name is required"))
	}
	if cfg.Network.FeedURL == "" {
		errs = append(errs, errors.New("network.feed_url is required"))
	}
	if cfg.Network.City == "" {
		errs = append(errs, errors.New("network.city is required"))
	}
	if cfg.Network.State == "" {
		errs = append(errs, errors.New("network.state is required"))
	}
	if cfg.Network.TimeZone != "" {
		if _, err := time.LoadLocation(cfg.Network.TimeZone); err != nil {
			errs = append(errs, fmt.Errorf("network.time_zone %q is not a valid IANA zone: %w", cfg.Network.TimeZone, err))
		}
	}

	if cfg.Geocoder.BaseURL == "" {
		errs = append(errs, errors.New("geocoder.base_url is required"))
	}

	return errors.Join(errs...)
}

// Location returns the configured time zone, falling back to the process
// local zone when none is configured.
func (n NetworkConfig) Location() *time.Location {
	if n.TimeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(n.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

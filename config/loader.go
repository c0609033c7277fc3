package config

// loader.go - configuration loading from a YAML file and the
// environment.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (PRT7_*)
//   3. YAML file  (--config)
//   4. Defaults   (defaults.go)

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "PRT7_"

// Load builds a configuration from the defaults, the optional YAML file
// at path, and the environment.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML document at path onto cfg.  Keys absent
// from the file keep their current value; unknown keys are an error.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv overlays PRT7_* environment variables onto cfg.  Unset
// variables leave the existing value alone; a malformed value is an
// error.  PRT7_SSH_PASSWORD is removed from the environment once read.
func LoadFromEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	return nil
}

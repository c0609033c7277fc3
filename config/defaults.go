package config

import (
	"time"

	"prt7/internal/transport"
)

// ── Default values ───────────────────────────────────────────────────

const (
	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultConnTimeout bounds connecting to a TCP bridge or SSH host.
	DefaultConnTimeout = 10 * time.Second

	// DefaultMaxReconnects is how many times a lost source is reopened
	// when reconnecting is enabled.
	DefaultMaxReconnects = 10

	// DefaultVerbose shows warnings and errors.
	DefaultVerbose = 1
)

// Defaults returns a Config holding every default value.
func Defaults() *Config {
	return &Config{
		Baud:          transport.DefaultBaud,
		Timeout:       DefaultConnTimeout,
		MaxLine:       transport.DefaultMaxLine,
		MaxReconnects: DefaultMaxReconnects,
		Verbose:       DefaultVerbose,
	}
}

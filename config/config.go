// Package config defines the runtime configuration for prt7: where
// frames come from, how they are decoded, and what gets printed.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	perr "prt7/internal/errors"
	"prt7/internal/transport"
	"prt7/util"
)

// SourceKind names the transport a configuration reads frames from.
type SourceKind string

const (
	SourceNone   SourceKind = ""
	SourceSerial SourceKind = "serial"
	SourceTCP    SourceKind = "tcp"
	SourceSSH    SourceKind = "ssh"
	SourceFile   SourceKind = "file"
)

// Config holds every tuneable for a decode run.  The yaml tags name
// keys in a --config file; the env tags are read with the PRT7_ prefix.
type Config struct {
	// ── Source ───────────────────────────────────────────────────────
	Device  string        `yaml:"device" env:"DEVICE"`
	Baud    int           `yaml:"baud" env:"BAUD"`
	TCPAddr string        `yaml:"tcp" env:"TCP"`
	File    string        `yaml:"file" env:"FILE"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`

	// ── SSH ──────────────────────────────────────────────────────────
	TunnelSpec     string `yaml:"tunnel" env:"TUNNEL"` // [user@]host[:port]
	RemoteCommand  string `yaml:"remote_command" env:"REMOTE_COMMAND"`
	SSHKeyPath     string `yaml:"ssh_key" env:"SSH_KEY"`
	SSHPassword    string `yaml:"-" env:"SSH_PASSWORD,unset"`
	SSHPrompt      bool   `yaml:"ssh_password_prompt" env:"SSH_PASSWORD_PROMPT"`
	UseSSHAgent    bool   `yaml:"ssh_agent" env:"SSH_AGENT"`
	StrictHostKey  bool   `yaml:"strict_host_key" env:"STRICT_HOSTKEY"`
	KnownHostsPath string `yaml:"known_hosts" env:"KNOWN_HOSTS"`

	// Filled in by Validate from TunnelSpec.
	TunnelUser string `yaml:"-"`
	TunnelHost string `yaml:"-"`
	TunnelPort int    `yaml:"-"`

	// ── Decoding ─────────────────────────────────────────────────────
	MaxLine        int  `yaml:"max_line" env:"MAX_LINE"`
	StrictRotation bool `yaml:"strict_rotation" env:"STRICT_ROTATION"`
	Reconnect      bool `yaml:"reconnect" env:"RECONNECT"`
	MaxReconnects  int  `yaml:"max_reconnects" env:"MAX_RECONNECTS"`

	// ── Output ───────────────────────────────────────────────────────
	Audit       bool   `yaml:"audit" env:"AUDIT"`
	List        bool   `yaml:"list" env:"LIST"`
	Quiet       bool   `yaml:"quiet" env:"QUIET"`
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR"`
	Verbose     int    `yaml:"verbose" env:"VERBOSE"`
}

// Source reports which transport the configuration selects.  It does
// not validate; call Validate first.
func (c *Config) Source() SourceKind {
	switch {
	case c.TCPAddr != "":
		return SourceTCP
	case c.File != "":
		return SourceFile
	case c.TunnelSpec != "":
		return SourceSSH
	case c.Device != "":
		return SourceSerial
	}
	return SourceNone
}

// SSHConfig returns the transport settings for an SSH source.
func (c *Config) SSHConfig() transport.SSHConfig {
	return transport.SSHConfig{
		User:          c.TunnelUser,
		Host:          c.TunnelHost,
		Port:          c.TunnelPort,
		KeyPath:       c.SSHKeyPath,
		Password:      c.SSHPassword,
		PromptPass:    c.SSHPrompt,
		UseAgent:      c.UseSSHAgent,
		StrictHostKey: c.StrictHostKey,
		KnownHosts:    c.KnownHostsPath,
		ConnTimeout:   c.Timeout,
	}
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// ParseTunnelSpec extracts user, host and port from a string such as
// "pi@gateway.local:2222" or "pi@[fe80::1]:2222".  Port defaults to 22;
// user defaults to $USER.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	hostport := spec
	if i := strings.LastIndex(spec, "@"); i >= 0 {
		user, hostport = spec[:i], spec[i+1:]
		if user == "" {
			return "", "", 0, fmt.Errorf("invalid tunnel spec %q: empty user", spec)
		}
	}

	addr, err := util.WithDefaultPort(hostport, DefaultSSHPort)
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q: %w", spec, err)
	}
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q: %w", spec, err)
	}
	port, _ = strconv.Atoi(p)

	if user == "" {
		user = os.Getenv("USER")
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent and
// resolves the tunnel spec.  Every failure is an *errors.ConfigError.
func (c *Config) Validate() error {
	sources := 0
	for _, set := range []bool{c.TCPAddr != "", c.File != "", c.TunnelSpec != ""} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return &perr.ConfigError{
			Field:   "source",
			Message: "--tcp, --tunnel and --file are mutually exclusive",
			Hint:    "pick one way of reaching the device",
		}
	}

	switch c.Source() {
	case SourceNone:
		return &perr.ConfigError{
			Field:   "device",
			Message: "no frame source given",
			Hint:    "pass a serial device such as /dev/ttyUSB0, --tcp host:port, -T user@host with a device, or -f capture.txt",
		}
	case SourceTCP:
		if c.Device != "" {
			return &perr.ConfigError{Field: "tcp", Value: c.TCPAddr, Message: "a device path cannot be combined with --tcp"}
		}
		if _, _, err := net.SplitHostPort(c.TCPAddr); err != nil {
			return &perr.ConfigError{Field: "tcp", Value: c.TCPAddr, Message: "expected host:port", Hint: "ser2net style bridges listen on a TCP port, e.g. --tcp 192.168.1.20:4001"}
		}
	case SourceFile:
		if c.Device != "" {
			return &perr.ConfigError{Field: "file", Value: c.File, Message: "a device path cannot be combined with --file"}
		}
	case SourceSSH:
		user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
		if err != nil {
			return &perr.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: err.Error()}
		}
		if user == "" {
			return &perr.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: "no SSH user", Hint: "use user@host"}
		}
		if c.Device == "" && c.RemoteCommand == "" {
			return &perr.ConfigError{
				Field:   "tunnel",
				Value:   c.TunnelSpec,
				Message: "no remote device given",
				Hint:    "name the device on the remote host, e.g. prt7 -T pi@gateway /dev/ttyUSB0",
			}
		}
		c.TunnelUser, c.TunnelHost, c.TunnelPort = user, host, port
	}

	if c.RemoteCommand != "" && c.Source() != SourceSSH {
		return &perr.ConfigError{Field: "remote-command", Value: c.RemoteCommand, Message: "only applies to --tunnel sources"}
	}
	if c.Source() == SourceSerial && !transport.ValidBaud(c.Baud) {
		return &perr.ConfigError{
			Field:   "baud",
			Value:   c.Baud,
			Message: "unsupported baud rate",
			Hint:    "supported rates: " + joinInts(transport.SupportedBauds),
		}
	}
	if c.MaxLine < 1 {
		return &perr.ConfigError{Field: "max-line", Value: c.MaxLine, Message: "must be at least 1"}
	}
	if c.MaxReconnects < 0 {
		return &perr.ConfigError{Field: "max-reconnects", Value: c.MaxReconnects, Message: "must not be negative", Hint: "use 0 to retry until interrupted"}
	}
	if c.Timeout < 0 {
		return &perr.ConfigError{Field: "timeout", Value: c.Timeout, Message: "must not be negative"}
	}
	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			return &perr.ConfigError{Field: "metrics-addr", Value: c.MetricsAddr, Message: "expected host:port", Hint: "e.g. --metrics-addr 127.0.0.1:9107"}
		}
	}
	return nil
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ", ")
}

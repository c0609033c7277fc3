// Package errors provides domain-specific error types for prt7.
//
// These types carry structured context (offending line, transport
// operation, retryability) that helps callers decide how to handle
// failures and provides better diagnostics than plain string wrapping.
package errors

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ── Sentinel errors ──────────────────────────────────────────────────

// Frame parse failures.  Always delivered wrapped in a *ParseError.
var (
	ErrEmptyFrame       = errors.New("empty frame")
	ErrUnknownFrameType = errors.New("unknown frame type")
	ErrMissingSeparator = errors.New("missing ',' separator")
	ErrMissingPayload   = errors.New("missing LOAD payload")
	ErrMissingRotation  = errors.New("MAP frame has no rotation digits")
)

// Session contract violations.
var (
	ErrSessionNotTerminated = errors.New("session not terminated")
	ErrSessionTerminated    = errors.New("session already terminated")
	ErrReplayMismatch       = errors.New("replay does not reproduce the live message")
)

// Transport conditions.
var (
	ErrSourceClosed    = errors.New("source closed before END")
	ErrAuthFailed      = errors.New("authentication failed")
	ErrHostKeyMismatch = errors.New("host key mismatch")
	ErrUnsupported     = errors.New("not supported on this platform")
)

// ── Structured error types ───────────────────────────────────────────

// ParseError reports a line that could not be parsed as a frame.  The
// decode loop discards such lines; the error only feeds logs and
// metrics.
type ParseError struct {
	Line string // the raw line as received
	Err  error  // one of the frame sentinels
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TransportError represents a failure while opening or reading a
// frame source.
type TransportError struct {
	Op        string // operation: "open", "dial", "configure", "read"
	Source    string // device path, address, or file name
	Err       error  // underlying error
	Retryable bool   // whether reopening the source may help
}

func (e *TransportError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Source, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *TransportError) Unwrap() error { return e.Err }

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey", "session", "exec"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// NewParseError wraps a frame sentinel with the offending line.
func NewParseError(line string, err error) *ParseError {
	return &ParseError{Line: line, Err: err}
}

// Wrap creates a TransportError, automatically detecting retryability
// from the underlying error.
func Wrap(op, source string, err error) *TransportError {
	return &TransportError{
		Op:        op,
		Source:    source,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsParse reports whether err is a frame parse failure.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return classifyRetryable(err)
}

// classifyRetryable inspects standard library error types.  A serial
// adapter that was unplugged reports EIO; a bridge that restarted
// reports a refused or reset connection.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	for _, errno := range []syscall.Errno{
		syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EPIPE, syscall.EIO,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Timeout() || opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use prt7/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }

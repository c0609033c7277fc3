// Package util provides low-level helpers shared by the prt7 packages.
package util

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LogLevel controls diagnostic verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// sink is the destination shared by a logger and all of its named
// children, so their lines never interleave.
type sink struct {
	mu         sync.Mutex
	out        io.Writer
	timestamps bool
}

// Logger writes levelled diagnostics to stderr.  Decoded output never
// goes through a Logger; it is reserved for the operator console.
type Logger struct {
	level LogLevel
	name  string
	sink  *sink
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = errors only, 1 = normal, 2 = verbose, 3 = debug).
// Debug verbosity turns on timestamps.
func NewLogger(verbosity int) *Logger {
	return &Logger{
		level: LogLevel(verbosity),
		sink:  &sink{out: os.Stderr, timestamps: verbosity >= int(LogDebug)},
	}
}

// Named returns a child logger whose lines carry "name: " after the
// level tag.  The child shares the parent's level and output.
func (l *Logger) Named(name string) *Logger {
	if l.name != "" {
		name = l.name + "." + name
	}
	return &Logger{level: l.level, name: name, sink: l.sink}
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) {
	l.sink.mu.Lock()
	l.sink.timestamps = on
	l.sink.mu.Unlock()
}

// SetOutput overrides the output writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	l.sink.out = w
	l.sink.mu.Unlock()
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// Enabled reports whether messages at lvl would be written.
func (l *Logger) Enabled(lvl LogLevel) bool { return l.level >= lvl }

// Info prints when verbosity ≥ 1.  Prefixed with [INF].
func (l *Logger) Info(format string, args ...any) {
	if l.Enabled(LogNormal) {
		l.write("INF", format, args...)
	}
}

// Warn prints when verbosity ≥ 1.  Prefixed with [WRN].
func (l *Logger) Warn(format string, args ...any) {
	if l.Enabled(LogNormal) {
		l.write("WRN", format, args...)
	}
}

// Verbose prints when verbosity ≥ 2.  Prefixed with [VRB].
func (l *Logger) Verbose(format string, args ...any) {
	if l.Enabled(LogVerbose) {
		l.write("VRB", format, args...)
	}
}

// Debug prints when verbosity ≥ 3.  Prefixed with [DBG].
func (l *Logger) Debug(format string, args ...any) {
	if l.Enabled(LogDebug) {
		l.write("DBG", format, args...)
	}
}

// Error always prints regardless of verbosity.  Prefixed with [ERR].
func (l *Logger) Error(format string, args ...any) {
	l.write("ERR", format, args...)
}

func (l *Logger) write(tag, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if l.name != "" {
		msg = l.name + ": " + msg
	}

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.sink.timestamps {
		fmt.Fprintf(l.sink.out, "%s [%s] %s\n", time.Now().Format("15:04:05.000"), tag, msg)
		return
	}
	fmt.Fprintf(l.sink.out, "[%s] %s\n", tag, msg)
}

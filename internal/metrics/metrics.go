// Package metrics provides lightweight, lock-free counters and gauges
// for tracking runtime statistics of a prt7 decode run.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for a decode run.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	sourcesActive atomic.Int64
	sourceOpens   atomic.Int64
	reconnects    atomic.Int64

	linesTotal   atomic.Int64
	bytesIn      atomic.Int64
	linesIgnored atomic.Int64
	parseErrors  atomic.Int64

	loadFrames         atomic.Int64
	mapFrames          atomic.Int64
	rotationsDefaulted atomic.Int64

	errorsTotal atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastFrame    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Source metrics ───────────────────────────────────────────────────

// SourceOpened increments both the active and total open counters.
func (c *Collector) SourceOpened() {
	if c == nil {
		return
	}
	c.sourcesActive.Add(1)
	c.sourceOpens.Add(1)
}

// SourceClosed decrements the active source counter.
func (c *Collector) SourceClosed() {
	if c == nil {
		return
	}
	c.sourcesActive.Add(-1)
}

// Reconnect records a source being reopened after a loss.
func (c *Collector) Reconnect() {
	if c == nil {
		return
	}
	c.reconnects.Add(1)
}

// ActiveSources returns the number of currently open sources.
func (c *Collector) ActiveSources() int64 {
	if c == nil {
		return 0
	}
	return c.sourcesActive.Load()
}

// Reconnects returns the total reconnection count.
func (c *Collector) Reconnects() int64 {
	if c == nil {
		return 0
	}
	return c.reconnects.Load()
}

// ── Line metrics ─────────────────────────────────────────────────────

// LineReceived records one line of n bytes handed to the session.
func (c *Collector) LineReceived(n int) {
	if c == nil {
		return
	}
	c.linesTotal.Add(1)
	c.bytesIn.Add(int64(n))
}

// LineIgnored records a noise line.
func (c *Collector) LineIgnored() {
	if c == nil {
		return
	}
	c.linesIgnored.Add(1)
}

// ParseFailed records a line that looked like a frame but did not parse.
func (c *Collector) ParseFailed() {
	if c == nil {
		return
	}
	c.parseErrors.Add(1)
}

// Lines returns the total lines received.
func (c *Collector) Lines() int64 {
	if c == nil {
		return 0
	}
	return c.linesTotal.Load()
}

// ParseErrors returns the number of rejected frame lines.
func (c *Collector) ParseErrors() int64 {
	if c == nil {
		return 0
	}
	return c.parseErrors.Load()
}

// ── Frame metrics ────────────────────────────────────────────────────

// LoadDecoded records a LOAD frame that produced an output character.
func (c *Collector) LoadDecoded() {
	if c == nil {
		return
	}
	c.loadFrames.Add(1)
	c.touchFrame()
}

// RotorRotated records an applied MAP frame.
func (c *Collector) RotorRotated() {
	if c == nil {
		return
	}
	c.mapFrames.Add(1)
	c.touchFrame()
}

// RotationDefaulted records a MAP frame whose rotation fell back to 0.
func (c *Collector) RotationDefaulted() {
	if c == nil {
		return
	}
	c.rotationsDefaulted.Add(1)
}

// Frames returns the number of LOAD and MAP frames applied.
func (c *Collector) Frames() (load, mapped int64) {
	if c == nil {
		return 0, 0
	}
	return c.loadFrames.Load(), c.mapFrames.Load()
}

func (c *Collector) touchFrame() {
	c.mu.Lock()
	c.lastFrame = time.Now()
	c.mu.Unlock()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime             string `json:"uptime"`
	SourcesActive      int64  `json:"sources_active"`
	SourceOpens        int64  `json:"source_opens"`
	Reconnects         int64  `json:"reconnects"`
	Lines              int64  `json:"lines"`
	BytesIn            int64  `json:"bytes_in"`
	LinesIgnored       int64  `json:"lines_ignored"`
	ParseErrors        int64  `json:"parse_errors"`
	LoadFrames         int64  `json:"load_frames"`
	MapFrames          int64  `json:"map_frames"`
	RotationsDefaulted int64  `json:"rotations_defaulted"`
	ErrorsTotal        int64  `json:"errors_total"`
	LastFrame          string `json:"last_frame,omitempty"`
	LastError          string `json:"last_error,omitempty"`
	LastErrorMessage   string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:             time.Since(c.startTime).Truncate(time.Second).String(),
		SourcesActive:      c.sourcesActive.Load(),
		SourceOpens:        c.sourceOpens.Load(),
		Reconnects:         c.reconnects.Load(),
		Lines:              c.linesTotal.Load(),
		BytesIn:            c.bytesIn.Load(),
		LinesIgnored:       c.linesIgnored.Load(),
		ParseErrors:        c.parseErrors.Load(),
		LoadFrames:         c.loadFrames.Load(),
		MapFrames:          c.mapFrames.Load(),
		RotationsDefaulted: c.rotationsDefaulted.Load(),
		ErrorsTotal:        c.errorsTotal.Load(),
	}
	if !c.lastFrame.IsZero() {
		s.LastFrame = c.lastFrame.Format(time.RFC3339)
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}

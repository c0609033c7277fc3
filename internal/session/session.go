// Package session binds one rotor and one frame log into a decode
// session: the state machine that turns received lines into the hidden
// message.
//
// A Session is not safe for concurrent use.  Lines are ingested one at
// a time in arrival order; blocking for the next line is the caller's
// concern.
package session

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	perr "prt7/internal/errors"
	"prt7/internal/frame"
	"prt7/internal/framelog"
	"prt7/internal/metrics"
	"prt7/internal/rotor"
	"prt7/util"
)

// Sentinel marks the end of a transmission when it begins a line.
const Sentinel = "END"

// State is the lifecycle position of a session.
type State int

const (
	// StateActive accepts frames.
	StateActive State = iota
	// StateTerminated accepts nothing further; the message is final.
	StateTerminated
)

func (s State) String() string {
	if s == StateTerminated {
		return "terminated"
	}
	return "active"
}

// Outcome says what Ingest did with a line.
type Outcome int

const (
	// Loaded: a LOAD frame was decoded and appended to the message.
	Loaded Outcome = iota + 1
	// Mapped: a MAP frame rotated the rotor.
	Mapped
	// Ignored: the line was protocol noise.
	Ignored
	// Rejected: the line looked like a frame but did not parse.
	Rejected
	// Terminated: the line was the END sentinel.
	Terminated
)

func (o Outcome) String() string {
	switch o {
	case Loaded:
		return "loaded"
	case Mapped:
		return "mapped"
	case Ignored:
		return "ignored"
	case Rejected:
		return "rejected"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Event describes the effect of one Ingest call.
type Event struct {
	Line    string
	Outcome Outcome
	Frame   frame.Frame // valid for Loaded and Mapped
	Output  byte        // decoded character, Loaded only
	Offset  int         // rotor offset after the line was handled
	Err     error       // *errors.ParseError, Rejected only

	msg []byte // prefix of the session's output; never written again
}

// Message returns the message accumulated up to and including this
// line.  The text is only copied when asked for.
func (e Event) Message() string { return string(e.msg) }

// Option configures a Session.
type Option func(*Session)

// WithParser replaces the default lenient frame parser.
func WithParser(p frame.Parser) Option {
	return func(s *Session) { s.parser = p }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *util.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Session) { s.metrics = m }
}

// Session is one decode run: a rotor, the log of frames applied to it,
// and the message decoded so far.
type Session struct {
	id      uuid.UUID
	parser  frame.Parser
	rotor   *rotor.Rotor
	log     *framelog.Log
	out     []byte
	state   State
	reason  string
	aborted bool

	logger  *util.Logger
	metrics *metrics.Collector
}

// New returns an Active session with a fresh rotor at offset 0.
func New(opts ...Option) *Session {
	s := &Session{
		id:    uuid.New(),
		rotor: rotor.New(),
		log:   framelog.New(),
		state: StateActive,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = util.NewLogger(0)
	}
	return s
}

// Ingest handles one line.  Noise and malformed frames leave the
// session unchanged and are reported through the returned Event, never
// as an error.  The only error is [errors.ErrSessionTerminated], for a
// line offered after the session ended.
func (s *Session) Ingest(line string) (Event, error) {
	if s.state == StateTerminated {
		return Event{Line: line}, perr.ErrSessionTerminated
	}
	s.metrics.LineReceived(len(line))

	ev := Event{Line: line}
	switch {
	case strings.HasPrefix(line, Sentinel):
		s.state = StateTerminated
		s.reason = "end of transmission"
		ev.Outcome = Terminated
		s.logger.Verbose("session %s: sentinel after %d frames", s.short(), s.log.Len())

	case !isFrameTag(line):
		ev.Outcome = Ignored
		s.metrics.LineIgnored()
		s.logger.Debug("noise %q", line)

	default:
		f, err := s.parser.Parse(line)
		if err != nil {
			ev.Outcome = Rejected
			ev.Err = err
			s.metrics.ParseFailed()
			s.logger.Verbose("discarding line: %v", err)
			break
		}
		s.apply(f, &ev)
	}

	ev.Offset = s.rotor.Offset()
	ev.msg = s.out[:len(s.out):len(s.out)]
	return ev, nil
}

func (s *Session) apply(f frame.Frame, ev *Event) {
	s.log.Append(f)
	out, emitted := f.Apply(s.rotor)
	ev.Frame = f

	switch f.Kind() {
	case frame.KindLoad:
		s.out = append(s.out, out)
		ev.Outcome = Loaded
		ev.Output = out
		s.metrics.LoadDecoded()
	case frame.KindMap:
		ev.Outcome = Mapped
		s.metrics.RotorRotated()
		if f.Defaulted() {
			s.metrics.RotationDefaulted()
			s.logger.Warn("MAP frame %q has no rotation digits, rotating by 0", ev.Line)
		}
	}

	if s.logger.Enabled(util.LogDebug) {
		s.logger.Debug("frame #%d %s emitted=%t rotor %s", s.log.Len(), f, emitted, s.rotor.Table())
	}
}

// isFrameTag reports whether line starts with a LOAD or MAP tag.
func isFrameTag(line string) bool {
	if line == "" {
		return false
	}
	switch line[0] {
	case 'L', 'l', 'M', 'm':
		return true
	}
	return false
}

// ForceTerminate ends an Active session without the sentinel, keeping
// whatever was decoded.  reason is reported by Reason.  Calling it on a
// terminated session does nothing.
func (s *Session) ForceTerminate(reason string) {
	if s.state == StateTerminated {
		return
	}
	s.state = StateTerminated
	s.aborted = true
	s.reason = reason
	s.logger.Warn("session %s terminated early: %s", s.short(), reason)
}

// Finalize returns the decoded message.  It fails with
// [errors.ErrSessionNotTerminated] while the session is Active.
func (s *Session) Finalize() (string, error) {
	if s.state != StateTerminated {
		return "", perr.ErrSessionNotTerminated
	}
	return string(s.out), nil
}

// Replay decodes the frame log again on a fresh rotor.
func (s *Session) Replay() (string, []framelog.Step) {
	return s.log.Replay(rotor.New)
}

// Verify checks that replaying the frame log reproduces the message
// decoded live.
func (s *Session) Verify() error {
	replayed, _ := s.Replay()
	if replayed != string(s.out) {
		return fmt.Errorf("%w: live %q, replay %q", perr.ErrReplayMismatch, s.out, replayed)
	}
	return nil
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Reason describes why the session terminated; empty while Active.
func (s *Session) Reason() string { return s.reason }

// Aborted reports whether the session ended through ForceTerminate.
func (s *Session) Aborted() bool { return s.aborted }

// Message returns the message decoded so far, in any state.
func (s *Session) Message() string { return string(s.out) }

// FrameCount returns the number of frames in the log.
func (s *Session) FrameCount() int { return s.log.Len() }

// Frames returns a copy of the frame log.
func (s *Session) Frames() []frame.Frame { return s.log.Frames() }

// Offset returns the live rotor offset.
func (s *Session) Offset() int { return s.rotor.Offset() }

// Table returns the live rotor substitution row.
func (s *Session) Table() string { return s.rotor.Table() }

func (s *Session) short() string { return s.id.String()[:8] }

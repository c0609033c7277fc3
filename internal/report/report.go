// Package report prints decode progress for the operator.  Diagnostics
// go to the logger; everything here is user-facing output.
package report

import (
	"fmt"
	"io"
	"strings"

	"prt7/internal/frame"
	"prt7/internal/framelog"
	"prt7/internal/rotor"
	"prt7/internal/session"
)

const rule = "========================================"

// Reporter writes progress lines to Out.  With Quiet set only the
// final message and explicitly requested listings are printed.
type Reporter struct {
	Out   io.Writer
	Quiet bool
}

// New returns a Reporter writing to out.
func New(out io.Writer, quiet bool) *Reporter {
	return &Reporter{Out: out, Quiet: quiet}
}

func (r *Reporter) printf(format string, args ...any) {
	fmt.Fprintf(r.Out, format, args...)
}

// Connecting announces the source being opened.
func (r *Reporter) Connecting(source string) {
	if r.Quiet {
		return
	}
	r.printf("Starting PRT-7 decoder. Connecting to %s...\n", source)
}

// Connected announces that frames are expected.
func (r *Reporter) Connected() {
	if r.Quiet {
		return
	}
	r.printf("Connection established. Waiting for frames...\n\n")
}

// Frame reports a decoded LOAD or an applied MAP.  Other outcomes are
// not printed.
func (r *Reporter) Frame(ev session.Event) {
	if r.Quiet {
		return
	}
	switch ev.Outcome {
	case session.Loaded:
		r.printf("Frame received: [%s] -> fragment %s decoded as %s. Message: %s\n",
			ev.Frame, quote(ev.Frame.Char()), quote(ev.Output), bracketed(ev.Message()))
	case session.Mapped:
		r.printf("Frame received: [%s] -> ROTATING ROTOR %+d. ('A' now maps to '%c')\n",
			ev.Frame, ev.Frame.Rotation(), rotor.Alphabet[ev.Offset])
	}
}

// Finish prints the end-of-stream banner and the assembled message.
func (r *Reporter) Finish(message string, aborted bool, reason string) {
	r.printf("\n---\n")
	if aborted {
		r.printf("Data stream interrupted: %s\n", reason)
	} else {
		r.printf("Data stream finished.\n")
	}
	r.printf("HIDDEN MESSAGE ASSEMBLED:\n%s\n---\n", message)
}

// List prints the received frames, numbered from 1.
func (r *Reporter) List(frames []frame.Frame) {
	if len(frames) == 0 {
		r.printf("[empty list - no frames received]\n")
		return
	}
	r.printf("Received frames (%d):\n", len(frames))
	for i, f := range frames {
		r.printf("  %d. %s\n", i+1, f.Describe())
	}
}

// Audit prints a replay trace and whether it reproduced the live
// message.  verifyErr is the result of the session's Verify.
func (r *Reporter) Audit(message string, trace []framelog.Step, verifyErr error) {
	if len(trace) == 0 {
		r.printf("[empty list - no frames to reprocess]\n")
	} else {
		r.printf("Reprocessing %d stored frames...\n%s\n", len(trace), rule)
		for _, st := range trace {
			switch st.Frame.Kind() {
			case frame.KindLoad:
				r.printf("Frame #%d [LOAD,%s] -> decoded as %s\n", st.Index, quote(st.Frame.Char()), quote(st.Output))
			case frame.KindMap:
				r.printf("Frame #%d [MAP,%d] -> ROTATING ROTOR %+d\n", st.Index, st.Frame.Rotation(), st.Frame.Rotation())
			}
		}
		r.printf("%s\nDECODED HIDDEN MESSAGE:\n%s\n%s\n", rule, message, rule)
	}

	if verifyErr != nil {
		r.printf("Replay check: FAILED: %v\n", verifyErr)
		return
	}
	r.printf("Replay check: OK\n")
}

// quote renders c in single quotes, escaping non-printable bytes.
func quote(c byte) string {
	if c < 0x20 || c >= 0x7f {
		return fmt.Sprintf("'\\x%02x'", c)
	}
	return "'" + string(c) + "'"
}

// bracketed renders "HI" as "[H][I]".
func bracketed(msg string) string {
	var b strings.Builder
	for i := 0; i < len(msg); i++ {
		b.WriteByte('[')
		b.WriteByte(msg[i])
		b.WriteByte(']')
	}
	return b.String()
}

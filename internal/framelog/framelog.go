// Package framelog keeps the ordered history of frames received in a
// session and can replay it against a fresh rotor.
package framelog

import (
	"iter"
	"slices"
	"strings"

	"prt7/internal/frame"
	"prt7/internal/rotor"
)

// Log is an append-only sequence of frames in arrival order.  The zero
// value is an empty log.
type Log struct {
	frames []frame.Frame
}

// New returns an empty log.
func New() *Log { return &Log{} }

// Append records f after every frame already in the log.
func (l *Log) Append(f frame.Frame) {
	l.frames = append(l.frames, f)
}

// Len returns the number of frames recorded.
func (l *Log) Len() int { return len(l.frames) }

// IsEmpty reports whether no frame has been recorded.
func (l *Log) IsEmpty() bool { return len(l.frames) == 0 }

// At returns the i-th frame (0-based).
func (l *Log) At(i int) frame.Frame { return l.frames[i] }

// Frames returns a copy of the recorded frames.
func (l *Log) Frames() []frame.Frame { return slices.Clone(l.frames) }

// All iterates the frames in arrival order with their 0-based index.
func (l *Log) All() iter.Seq2[int, frame.Frame] {
	return slices.All(l.frames)
}

// Step is one entry of a replay trace.
type Step struct {
	Index   int         // 1-based position in the log
	Frame   frame.Frame // the frame applied
	Offset  int         // rotor offset after the frame was applied
	Output  byte        // decoded character, LOAD frames only
	Emitted bool        // true when Output is meaningful
}

// Replay applies every frame, in order, to a rotor obtained from
// newRotor and returns the decoded message together with a per-frame
// trace.  A nil newRotor means [rotor.New].
func (l *Log) Replay(newRotor func() *rotor.Rotor) (string, []Step) {
	if newRotor == nil {
		newRotor = rotor.New
	}
	r := newRotor()

	var msg strings.Builder
	trace := make([]Step, 0, len(l.frames))
	for i, f := range l.frames {
		out, emitted := f.Apply(r)
		if emitted {
			msg.WriteByte(out)
		}
		trace = append(trace, Step{
			Index:   i + 1,
			Frame:   f,
			Offset:  r.Offset(),
			Output:  out,
			Emitted: emitted,
		})
	}
	return msg.String(), trace
}

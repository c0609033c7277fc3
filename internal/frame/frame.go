// Package frame defines the two PRT-7 frame kinds and their textual
// wire form.
//
//	LOAD frame:  L,<char>  | L,Space
//	MAP  frame:  M,[+|-]<digits>
//
// A Frame is an immutable tagged value.  Code that consumes frames
// switches on Kind; there are exactly two kinds.
package frame

import (
	"fmt"
	"strconv"

	"prt7/internal/rotor"
)

// Kind identifies the frame variant.
type Kind uint8

const (
	// KindLoad carries one ciphertext character.
	KindLoad Kind = iota + 1
	// KindMap carries a rotor rotation.
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindLoad:
		return "LOAD"
	case KindMap:
		return "MAP"
	default:
		return "unknown"
	}
}

// SpaceToken is the LOAD payload that stands for the space character.
const SpaceToken = "Space"

// Frame is either Load{Char} or Map{Rotation}.
type Frame struct {
	kind      Kind
	char      byte
	rotation  int
	defaulted bool
}

// Load returns a LOAD frame for c.  c is kept verbatim; letters are
// folded and non-letters passed through only when the frame is applied.
func Load(c byte) Frame { return Frame{kind: KindLoad, char: c} }

// Map returns a MAP frame rotating the rotor by n.
func Map(n int) Frame { return Frame{kind: KindMap, rotation: n} }

// Kind returns the frame variant.  The zero Frame has no kind.
func (f Frame) Kind() Kind { return f.kind }

// IsLoad reports whether f is a LOAD frame.
func (f Frame) IsLoad() bool { return f.kind == KindLoad }

// IsMap reports whether f is a MAP frame.
func (f Frame) IsMap() bool { return f.kind == KindMap }

// Char returns the LOAD payload (0 for MAP frames).
func (f Frame) Char() byte { return f.char }

// Rotation returns the MAP payload (0 for LOAD frames).
func (f Frame) Rotation() int { return f.rotation }

// Defaulted reports whether f is a MAP frame whose line carried no
// digits, so the rotation fell back to 0.
func (f Frame) Defaulted() bool { return f.defaulted }

// Apply runs f against r.  A LOAD frame returns the decoded character
// and true; a MAP frame rotates r and returns false.  Live decoding and
// replay both go through here.
func (f Frame) Apply(r *rotor.Rotor) (byte, bool) {
	switch f.kind {
	case KindLoad:
		return r.Map(f.char), true
	case KindMap:
		r.Rotate(f.rotation)
		return 0, false
	default:
		panic(fmt.Sprintf("frame: apply on invalid kind %d", f.kind))
	}
}

// String returns the canonical wire form: "L,A", "L,Space", "M,-3".
func (f Frame) String() string {
	switch f.kind {
	case KindLoad:
		if f.char == ' ' {
			return "L," + SpaceToken
		}
		return "L," + string([]byte{f.char})
	case KindMap:
		return "M," + strconv.Itoa(f.rotation)
	default:
		return "<invalid frame>"
	}
}

// Describe renders f the way frame listings show it: [LOAD: 'H'] or
// [MAP: -3].
func (f Frame) Describe() string {
	switch f.kind {
	case KindLoad:
		return fmt.Sprintf("[LOAD: '%c']", f.char)
	case KindMap:
		return fmt.Sprintf("[MAP: %d]", f.rotation)
	default:
		return "[unknown frame]"
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (f Frame) MarshalText() ([]byte, error) {
	if f.kind != KindLoad && f.kind != KindMap {
		return nil, fmt.Errorf("frame: cannot marshal invalid kind %d", f.kind)
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler] using the
// lenient parser.
func (f *Frame) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

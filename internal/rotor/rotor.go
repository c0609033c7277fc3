// Package rotor implements the PRT-7 mapping rotor: a cyclic
// substitution table over the 26 uppercase letters whose state is a
// single rotation offset.
//
// The space character is not part of the rotor and is never
// enciphered.  Any other byte outside A..Z passes through unchanged.
package rotor

// Alphabet is the canonical order of the rotor's symbols.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Size is the number of symbols on the rotor.
const Size = len(Alphabet)

// Rotor maps letters through the canonical alphabet shifted by the
// current offset.  The zero value is a rotor at offset 0.
type Rotor struct {
	offset int // always in [0, Size)
}

// New returns a rotor at offset 0.
func New() *Rotor { return &Rotor{} }

// Rotate shifts the rotor n positions: positive forward, negative
// backward.  Any magnitude is accepted.
func (r *Rotor) Rotate(n int) {
	// Reduce n first so k+n cannot overflow.
	r.offset = normalize(r.offset + n%Size)
}

// Offset returns the current rotation in [0, Size).
func (r *Rotor) Offset() int { return r.offset }

// Map returns the character c decodes to at the current offset.
// Lowercase letters are folded to uppercase first.
func (r *Rotor) Map(c byte) byte {
	c = fold(c)
	if c == ' ' || c < 'A' || c > 'Z' {
		return c
	}
	return Alphabet[(int(c-'A')+r.offset)%Size]
}

// Unmap is the inverse of Map on A..Z: Unmap(Map(c)) == fold(c).
func (r *Rotor) Unmap(c byte) byte {
	c = fold(c)
	if c == ' ' || c < 'A' || c > 'Z' {
		return c
	}
	return Alphabet[normalize(int(c-'A')-r.offset)]
}

// Table returns what each letter of Alphabet maps to at the current
// offset, e.g. "CDEF...AB" after Rotate(2).
func (r *Rotor) Table() string {
	return Alphabet[r.offset:] + Alphabet[:r.offset]
}

func normalize(k int) int {
	return (k%Size + Size) % Size
}

func fold(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

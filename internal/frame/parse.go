package frame

import (
	"math"
	"strings"

	perr "prt7/internal/errors"
	"prt7/internal/rotor"
)

// Parser turns one trimmed transport line into a Frame.
type Parser struct {
	// StrictRotation rejects MAP frames without digits with
	// ErrMissingRotation instead of defaulting them to rotation 0.
	StrictRotation bool
}

// Parse parses line with the lenient default Parser.
func Parse(line string) (Frame, error) {
	return Parser{}.Parse(line)
}

// Parse decodes line.  Every failure is a *errors.ParseError wrapping
// one of the frame sentinels (ErrEmptyFrame, ErrUnknownFrameType,
// ErrMissingSeparator, ErrMissingPayload, ErrMissingRotation).
func (p Parser) Parse(line string) (Frame, error) {
	s := trimBlank(line)
	if s == "" {
		return Frame{}, perr.NewParseError(line, perr.ErrEmptyFrame)
	}

	var kind Kind
	switch s[0] {
	case 'L', 'l':
		kind = KindLoad
	case 'M', 'm':
		kind = KindMap
	default:
		return Frame{}, perr.NewParseError(line, perr.ErrUnknownFrameType)
	}

	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return Frame{}, perr.NewParseError(line, perr.ErrMissingSeparator)
	}
	payload := trimBlank(s[comma+1:])

	if kind == KindLoad {
		return parseLoad(line, payload)
	}
	return p.parseMap(line, payload)
}

func parseLoad(line, payload string) (Frame, error) {
	if payload == "" {
		return Frame{}, perr.NewParseError(line, perr.ErrMissingPayload)
	}
	if strings.HasPrefix(payload, SpaceToken) {
		return Load(' '), nil
	}
	return Load(payload[0]), nil
}

func (p Parser) parseMap(line, payload string) (Frame, error) {
	negative := false
	if payload != "" && (payload[0] == '-' || payload[0] == '+') {
		negative = payload[0] == '-'
		payload = payload[1:]
	}

	n, digits := 0, 0
	for digits < len(payload) && payload[digits] >= '0' && payload[digits] <= '9' {
		d := int(payload[digits] - '0')
		if n > (math.MaxInt-d)/10 {
			// Folding keeps n congruent mod the rotor size.
			n %= rotor.Size
		}
		n = n*10 + d
		digits++
	}

	if digits == 0 {
		if p.StrictRotation {
			return Frame{}, perr.NewParseError(line, perr.ErrMissingRotation)
		}
		f := Map(0)
		f.defaulted = true
		return f, nil
	}

	if negative {
		n = -n
	}
	return Map(n), nil
}

// trimBlank strips leading spaces and tabs only.
func trimBlank(s string) string {
	return strings.TrimLeft(s, " \t")
}

package transport

import (
	"fmt"
	"slices"
)

// DefaultBaud is the line speed used when none is configured.
const DefaultBaud = 9600

// SupportedBauds lists the line speeds a SerialPort accepts.
var SupportedBauds = []int{4800, 9600, 19200, 38400, 57600, 115200}

// ValidBaud reports whether b is one of SupportedBauds.
func ValidBaud(b int) bool { return slices.Contains(SupportedBauds, b) }

// SerialPort reads frames from a local serial device configured for
// 8N1, raw mode and no flow control.
type SerialPort struct {
	Device string
	Baud   int
}

func (p *SerialPort) String() string {
	return fmt.Sprintf("serial:%s@%d", p.Device, p.Baud)
}

//go:build !linux

package transport

import (
	"context"
	"io"

	perr "prt7/internal/errors"
)

// Open is only implemented on Linux.  Use a TCP bridge or an SSH source
// to reach a serial device from other platforms.
func (p *SerialPort) Open(_ context.Context) (io.ReadCloser, error) {
	return nil, perr.Wrap("open", p.String(), perr.ErrUnsupported)
}

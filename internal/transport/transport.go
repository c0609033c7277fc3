// Package transport opens the byte streams PRT-7 frames arrive on and
// splits them into lines.  A Source knows how to reach the device (a
// local serial port, a TCP serial bridge, a serial port on a remote
// host over SSH, or a capture file); [Lines] turns the stream into a
// lazy sequence of frame lines.
package transport

import (
	"context"
	"io"
)

// Source opens a stream of frame text.  Open may be called again after
// the previous stream was lost; every call returns a new stream.
type Source interface {
	// Open connects to the device.  Cancelling ctx aborts the attempt.
	Open(ctx context.Context) (io.ReadCloser, error)

	// String names the source for logs and errors.
	String() string
}

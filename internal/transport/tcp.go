package transport

import (
	"context"
	"io"
	"net"
	"time"

	perr "prt7/internal/errors"
)

// TCPSource reads frames from a TCP serial bridge such as ser2net,
// which exposes the device's raw byte stream on a port.
type TCPSource struct {
	Addr    string
	Timeout time.Duration // connect timeout, 0 = none
}

// Open dials the bridge.
func (s *TCPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	d := net.Dialer{Timeout: s.Timeout, KeepAlive: 15 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", s.Addr)
	if err != nil {
		return nil, perr.Wrap("dial", s.String(), err)
	}
	return conn, nil
}

func (s *TCPSource) String() string { return "tcp://" + s.Addr }

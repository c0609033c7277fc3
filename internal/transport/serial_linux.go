//go:build linux

package transport

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	perr "prt7/internal/errors"
)

var baudFlags = map[int]uint32{
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
}

// Open opens the device and applies the line settings.  Pending input
// from before the open is discarded.  The returned file is registered
// with the runtime poller, so closing it unblocks a pending Read.
func (p *SerialPort) Open(_ context.Context) (io.ReadCloser, error) {
	speed, ok := baudFlags[p.Baud]
	if !ok {
		return nil, perr.Wrap("open", p.String(), fmt.Errorf("unsupported baud rate %d", p.Baud))
	}

	f, err := os.OpenFile(p.Device, os.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, perr.Wrap("open", p.String(), err)
	}

	rc, err := f.SyscallConn()
	if err != nil {
		f.Close()
		return nil, perr.Wrap("configure", p.String(), err)
	}
	var cfgErr error
	if err := rc.Control(func(fd uintptr) { cfgErr = configure(int(fd), speed) }); err != nil {
		cfgErr = err
	}
	if cfgErr != nil {
		f.Close()
		return nil, perr.Wrap("configure", p.String(), cfgErr)
	}
	return f, nil
}

// configure puts fd into raw 8N1 mode at speed.  A read returns as soon
// as one byte is available.
func configure(fd int, speed uint32) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("tcgets: %w", err)
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF | unix.IXANY
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CRTSCTS | unix.CBAUD
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | speed
	t.Ispeed = speed
	t.Ospeed = speed
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return fmt.Errorf("tcsets: %w", err)
	}
	if err := unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIOFLUSH); err != nil {
		return fmt.Errorf("tcflush: %w", err)
	}
	return nil
}

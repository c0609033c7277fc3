//go:build linux

package transport

import (
	"context"
	"strings"
	"testing"
)

func TestSerialPort_UnsupportedBaud(t *testing.T) {
	p := &SerialPort{Device: "/dev/null", Baud: 1200}
	_, err := p.Open(context.Background())
	if err == nil || !strings.Contains(err.Error(), "unsupported baud rate 1200") {
		t.Fatalf("err = %v", err)
	}
}

func TestSerialPort_NotATerminal(t *testing.T) {
	p := &SerialPort{Device: "/dev/null", Baud: 9600}
	_, err := p.Open(context.Background())
	if err == nil || !strings.Contains(err.Error(), "tcgets") {
		t.Fatalf("err = %v, want tcgets failure", err)
	}
}

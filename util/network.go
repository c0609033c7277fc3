package util

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// WithDefaultPort returns addr as host:port, appending defaultPort when
// addr names only a host.  Bracketed and bare IPv6 literals are
// accepted.
func WithDefaultPort(addr string, defaultPort int) (string, error) {
	if addr == "" {
		return "", fmt.Errorf("empty address")
	}
	if host, port, err := net.SplitHostPort(addr); err == nil {
		if host == "" {
			return "", fmt.Errorf("address %q has no host", addr)
		}
		p, err := strconv.Atoi(port)
		if err != nil || p < 1 || p > 65535 {
			return "", fmt.Errorf("address %q: invalid port %q", addr, port)
		}
		return addr, nil
	}
	host := strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
	return FormatAddr(host, defaultPort), nil
}

// FindFreePort returns an available TCP port on 127.0.0.1.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

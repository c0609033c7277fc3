package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	perr "prt7/internal/errors"
	"prt7/util"
)

// SSHConfig describes how to reach and authenticate to the host the
// serial device is attached to.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	Password      string // used before prompting when set
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration
}

// Addr returns host:port, defaulting the port to 22.
func (c *SSHConfig) Addr() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return util.FormatAddr(c.Host, port)
}

// SSHSource runs a command on a remote host and reads frames from its
// standard output.  The default command streams the remote serial
// device with cat.
type SSHSource struct {
	Config  SSHConfig
	Device  string // remote device path
	Command string // overrides the default "cat <Device>"
	Logger  *util.Logger

	// prompt reads a secret from the terminal; replaced in tests.
	prompt func(label string) ([]byte, error)
}

// RemoteCommand returns the command run on the remote host.
func (s *SSHSource) RemoteCommand() string {
	if s.Command != "" {
		return s.Command
	}
	return "cat " + shellQuote(s.Device)
}

func (s *SSHSource) String() string {
	return fmt.Sprintf("ssh://%s@%s%s", s.Config.User, s.Config.Addr(), s.Device)
}

// Open connects, authenticates and starts the remote command.  Closing
// the returned stream ends the remote command and the connection.
func (s *SSHSource) Open(ctx context.Context) (io.ReadCloser, error) {
	logger := s.Logger
	if logger == nil {
		logger = util.NewLogger(0)
	}
	cfg := s.Config
	addr := cfg.Addr()
	port := cfg.Port
	if port == 0 {
		port = 22
	}

	hostKeys, err := hostKeyCallback(&cfg)
	if err != nil {
		return nil, perr.WrapSSH("hostkey", cfg.Host, port, err)
	}
	auth, agents, err := authMethods(&cfg, s.prompt)
	if err != nil {
		return nil, perr.WrapSSH("auth", cfg.Host, port, err)
	}
	opened := false
	defer func() {
		if !opened {
			agents.Close()
		}
	}()

	clientCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         cfg.ConnTimeout,
	}

	logger.Debug("ssh: dialing %s as %s", addr, cfg.User)
	d := net.Dialer{Timeout: cfg.ConnTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, perr.Wrap("dial", s.String(), err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		conn.Close()
		return nil, perr.WrapSSH("handshake", cfg.Host, port, classifyHandshake(err))
	}
	_ = conn.SetDeadline(time.Time{})
	client := ssh.NewClient(sshConn, chans, reqs)

	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, perr.WrapSSH("session", cfg.Host, port, err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, perr.WrapSSH("session", cfg.Host, port, err)
	}
	sess.Stderr = &remoteLog{logger: logger}

	cmd := s.RemoteCommand()
	logger.Verbose("ssh: running %q on %s", cmd, addr)
	if err := sess.Start(cmd); err != nil {
		sess.Close()
		client.Close()
		return nil, perr.WrapSSH("exec", cfg.Host, port, err)
	}

	opened = true
	return &remoteStream{Reader: stdout, sess: sess, client: client, agents: agents}, nil
}

// remoteStream is the stdout of a remote command.
type remoteStream struct {
	io.Reader
	sess   *ssh.Session
	client *ssh.Client
	agents agentConns
	once   sync.Once
	err    error
}

func (r *remoteStream) Close() error {
	r.once.Do(func() {
		r.sess.Close()
		r.err = r.client.Close()
		r.agents.Close()
	})
	return r.err
}

// remoteLog forwards the remote command's stderr to the logger.
type remoteLog struct {
	logger *util.Logger
}

func (w *remoteLog) Write(p []byte) (int, error) {
	for line := range strings.SplitSeq(strings.TrimRight(string(p), "\r\n"), "\n") {
		w.logger.Warn("remote: %s", line)
	}
	return len(p), nil
}

// classifyHandshake tags host key and authentication failures with the
// matching sentinel.
func classifyHandshake(err error) error {
	var keyErr *knownhosts.KeyError
	switch {
	case errors.As(err, &keyErr), strings.Contains(err.Error(), "knownhosts: key"):
		return fmt.Errorf("%w: %w", perr.ErrHostKeyMismatch, err)
	case strings.Contains(err.Error(), "unable to authenticate"):
		return fmt.Errorf("%w: %w", perr.ErrAuthFailed, err)
	}
	return err
}

// shellQuote single-quotes s for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"
)

// terminalPrompt reads a secret from the controlling terminal without
// echo.
func terminalPrompt(label string) ([]byte, error) {
	fmt.Fprint(os.Stderr, label)
	defer fmt.Fprintln(os.Stderr)
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, errors.New("stdin is not a terminal")
	}
	return term.ReadPassword(int(os.Stdin.Fd()))
}

// agentConns are the agent sockets opened for one connection attempt.
// They stay open until the connection they authenticated is closed.
type agentConns []net.Conn

func (a agentConns) Close() error {
	var errs []error
	for _, c := range a {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// authMethods lists the authentication methods to offer, in order: an
// explicit key, the agent, a configured password, a prompted password.
// With nothing configured it falls back to the agent and the usual key
// files.  The caller owns the returned agent sockets.
func authMethods(cfg *SSHConfig, prompt func(string) ([]byte, error)) ([]ssh.AuthMethod, agentConns, error) {
	if prompt == nil {
		prompt = terminalPrompt
	}
	var (
		methods []ssh.AuthMethod
		agents  agentConns
	)

	if cfg.KeyPath != "" {
		m, err := keyFileAuth(cfg.KeyPath, prompt)
		if err != nil {
			return nil, nil, fmt.Errorf("key %s: %w", cfg.KeyPath, err)
		}
		methods = append(methods, m)
	}
	if cfg.UseAgent {
		m, conn, err := agentAuth()
		if err != nil {
			return nil, nil, fmt.Errorf("ssh-agent: %w", err)
		}
		methods = append(methods, m)
		agents = append(agents, conn)
	}
	if cfg.Password != "" {
		methods = append(methods, ssh.Password(cfg.Password))
	}
	if cfg.PromptPass {
		label := fmt.Sprintf("%s@%s password: ", cfg.User, cfg.Host)
		methods = append(methods, ssh.PasswordCallback(func() (string, error) {
			pass, err := prompt(label)
			if err != nil {
				return "", fmt.Errorf("reading password: %w", err)
			}
			return string(pass), nil
		}))
	}

	if len(methods) == 0 {
		methods, agents = fallbackAuth()
	}
	if len(methods) == 0 {
		agents.Close()
		return nil, nil, errors.New("no SSH authentication methods available")
	}
	return methods, agents, nil
}

func keyFileAuth(path string, prompt func(string) ([]byte, error)) (ssh.AuthMethod, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		pass, perr := prompt("Enter passphrase for " + path + ": ")
		if perr != nil {
			return nil, fmt.Errorf("reading passphrase: %w", perr)
		}
		signer, err = ssh.ParsePrivateKeyWithPassphrase(data, pass)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing key: %w", err)
	}
	return ssh.PublicKeys(signer), nil
}

func agentAuth() (ssh.AuthMethod, net.Conn, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, nil, errors.New("SSH_AUTH_SOCK is not set")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to agent at %s: %w", sock, err)
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), conn, nil
}

// fallbackAuth offers the agent and unencrypted default key files.
func fallbackAuth() ([]ssh.AuthMethod, agentConns) {
	var (
		out    []ssh.AuthMethod
		agents agentConns
	)
	if m, conn, err := agentAuth(); err == nil {
		out = append(out, m)
		agents = append(agents, conn)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return out, agents
	}
	var signers []ssh.Signer
	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		data, err := os.ReadFile(filepath.Join(home, ".ssh", name))
		if err != nil {
			continue
		}
		if s, err := ssh.ParsePrivateKey(data); err == nil {
			signers = append(signers, s)
		}
	}
	if len(signers) > 0 {
		out = append(out, ssh.PublicKeys(signers...))
	}
	return out, agents
}

// hostKeyCallback verifies the server against known_hosts when strict
// checking is on.
func hostKeyCallback(cfg *SSHConfig) (ssh.HostKeyCallback, error) {
	if !cfg.StrictHostKey {
		//nolint:gosec // host key checking disabled by configuration
		return ssh.InsecureIgnoreHostKey(), nil
	}

	file := cfg.KnownHosts
	if file == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating home directory: %w", err)
		}
		file = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(file)
	if err != nil {
		return nil, fmt.Errorf("loading known_hosts from %s: %w", file, err)
	}
	return cb, nil
}

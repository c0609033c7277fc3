// Package cmd wires up the CLI flags and dispatches to the decode core.
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"prt7/config"
	"prt7/internal/core"
	"prt7/internal/transport"
	"prt7/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X prt7/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// portPrompt is shown when no frame source was given on an interactive
// terminal.
const portPrompt = "Enter the port name (e.g. /dev/ttyUSB0): "

// Execute parses args and runs one decode.
func Execute(ctx context.Context, args []string) error {
	r := &runner{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
	return r.execute(ctx, args)
}

// runner carries the process streams so tests can substitute them.
type runner struct {
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	isTerminal func() bool
}

// cliOptions are flags that steer the CLI itself rather than the
// decode.
type cliOptions struct {
	configPath  string
	timeoutSec  int
	verbosity   int
	dryRun      bool
	showVersion bool
	showHelp    bool
}

func newFlagSet(cfg *config.Config, opts *cliOptions) *flag.FlagSet {
	fs := flag.NewFlagSet("prt7", flag.ContinueOnError)
	fs.SortFlags = false

	// ── source ───────────────────────────────────────────────────
	fs.IntVarP(&cfg.Baud, "baud", "b", cfg.Baud, "Serial baud rate")
	fs.StringVar(&cfg.TCPAddr, "tcp", cfg.TCPAddr, "Read frames from a TCP serial bridge (host:port)")
	fs.StringVarP(&cfg.File, "file", "f", cfg.File, `Read frames from a file ("-" = stdin)`)
	fs.StringVarP(&opts.configPath, "config", "C", opts.configPath, "YAML configuration file")
	fs.IntVarP(&opts.timeoutSec, "timeout", "w", int(cfg.Timeout/time.Second), "Connect timeout in seconds")

	// ── SSH ──────────────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Read <device> on a remote host via [user@]host[:port]")
	fs.StringVar(&cfg.RemoteCommand, "remote-command", cfg.RemoteCommand, `Command run on the SSH host (default "cat <device>")`)
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPrompt, "ssh-password", cfg.SSHPrompt, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── decoding ─────────────────────────────────────────────────
	fs.IntVar(&cfg.MaxLine, "max-line", cfg.MaxLine, "Maximum line length in bytes")
	fs.BoolVarP(&cfg.Reconnect, "reconnect", "r", cfg.Reconnect, "Reconnect on transport loss")
	fs.IntVar(&cfg.MaxReconnects, "max-reconnects", cfg.MaxReconnects, "Reconnect attempts (0 = until interrupted)")
	fs.BoolVar(&cfg.StrictRotation, "strict-rotation", cfg.StrictRotation, "Reject MAP frames without digits")

	// ── output ───────────────────────────────────────────────────
	fs.BoolVarP(&cfg.Audit, "audit", "a", cfg.Audit, "Replay the frame log and verify it at the end")
	fs.BoolVarP(&cfg.List, "list", "L", cfg.List, "Print the received frames at the end")
	fs.BoolVarP(&cfg.Quiet, "quiet", "q", cfg.Quiet, "No per-frame progress")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on host:port")
	fs.CountVarP(&opts.verbosity, "verbose", "v", "Increase verbosity (repeatable)")

	fs.BoolVar(&opts.dryRun, "dry-run", false, "Validate the configuration and exit")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&opts.showHelp, "help", "h", false, "Show this help")
	return fs
}

func (r *runner) execute(ctx context.Context, args []string) error {
	// ── first pass: find --config ────────────────────────────────
	var pre cliOptions
	preFS := newFlagSet(config.Defaults(), &pre)
	preFS.SetOutput(io.Discard)
	preFS.Usage = func() {}
	if err := preFS.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			r.printUsage(preFS)
			return nil
		}
		return err
	}
	if pre.showHelp {
		r.printUsage(preFS)
		return nil
	}
	if pre.showVersion {
		fmt.Fprintf(r.stdout, "prt7 %s\n", version)
		return nil
	}

	// ── defaults < file < environment < flags ────────────────────
	cfg, err := config.Load(pre.configPath)
	if err != nil {
		return err
	}
	opts := cliOptions{configPath: pre.configPath}
	fs := newFlagSet(cfg, &opts)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.Changed("timeout") {
		cfg.Timeout = time.Duration(opts.timeoutSec) * time.Second
	}
	cfg.Verbose += opts.verbosity

	switch rest := fs.Args(); len(rest) {
	case 0:
	case 1:
		cfg.Device = rest[0]
	default:
		return fmt.Errorf("too many arguments: %s (one device at most)", strings.Join(rest, " "))
	}

	if cfg.Source() == config.SourceNone && r.isTerminal != nil && r.isTerminal() {
		device, err := r.promptDevice()
		if err != nil {
			return err
		}
		cfg.Device = device
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if opts.dryRun {
		return r.printConfig(cfg)
	}

	// ── build and run ────────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(r.stderr)

	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	if dm, ok := mode.(*core.DecodeMode); ok {
		dm.Out = r.stdout
		if src, ok := dm.Source.(*transport.FileSource); ok {
			src.Stdin = r.stdin
		}
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

// promptDevice asks the operator for a serial device.
func (r *runner) promptDevice() (string, error) {
	fmt.Fprint(r.stdout, portPrompt)
	line, err := bufio.NewReader(r.stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading port name: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// printConfig writes the validated configuration as YAML.
func (r *runner) printConfig(cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	fmt.Fprintf(r.stdout, "# configuration OK, source: %s\n%s", cfg.Source(), data)
	return nil
}

func (r *runner) printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(r.stderr, `PRT-7 Decoder v%s

Reads PRT-7 frames from a serial line, decodes them through the rotor
cipher and prints the hidden message.

Usage:
  prt7 [options] <device>                     Serial port
  prt7 --tcp <host:port> [options]            TCP serial bridge
  prt7 -T user@gateway [options] <device>     Device on an SSH host
  prt7 -f <file|-> [options]                  Captured transmission

Options:
`, version)
	fs.SetOutput(r.stderr)
	fs.PrintDefaults()
	fmt.Fprintf(r.stderr, `
Examples:
  prt7 /dev/ttyUSB0                           Decode at 9600 baud
  prt7 -b 115200 -L /dev/ttyACM0              Faster link, list frames
  prt7 --tcp 192.168.1.20:4001 -r             ser2net bridge, reconnect
  prt7 -T pi@gateway /dev/ttyUSB0             Remote serial device
  prt7 -f capture.txt --audit                 Replay and verify a capture
`)
}

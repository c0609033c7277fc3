package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	perr "prt7/internal/errors"
)

type fakeConsole struct {
	stdout, stderr bytes.Buffer
}

func newRunner(input string, terminal bool) (*runner, *fakeConsole) {
	con := &fakeConsole{}
	return &runner{
		stdin:      strings.NewReader(input),
		stdout:     &con.stdout,
		stderr:     &con.stderr,
		isTerminal: func() bool { return terminal },
	}, con
}

// TestExecute_Version verifies --version prints a version string.
func TestExecute_Version(t *testing.T) {
	r, con := newRunner("", false)
	if err := r.execute(context.Background(), []string{"--version"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(con.stdout.String(), "prt7 ") {
		t.Errorf("stdout = %q", con.stdout.String())
	}
}

// TestExecute_Help verifies -h and --help print usage without error.
func TestExecute_Help(t *testing.T) {
	for _, arg := range []string{"-h", "--help"} {
		t.Run(arg, func(t *testing.T) {
			r, con := newRunner("", false)
			if err := r.execute(context.Background(), []string{arg}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(con.stderr.String(), "--strict-rotation") {
				t.Errorf("usage missing flags:\n%s", con.stderr.String())
			}
		})
	}
}

// TestExecute_InvalidFlags verifies unknown flags produce an error.
func TestExecute_InvalidFlags(t *testing.T) {
	r, _ := newRunner("", false)
	if err := r.execute(context.Background(), []string{"--nonexistent-flag"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestExecute_DryRun(t *testing.T) {
	r, con := newRunner("", false)
	err := r.execute(context.Background(), []string{
		"-b", "19200", "-w", "3", "--max-line", "80", "-L", "/dev/ttyUSB1", "--dry-run",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := con.stdout.String()
	for _, want := range []string{
		"source: serial", "device: /dev/ttyUSB1", "baud: 19200",
		"timeout: 3s", "max_line: 80", "list: true",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dry-run output missing %q:\n%s", want, out)
		}
	}
}

// TestExecute_DryRunInvalid verifies --dry-run still catches bad configs.
func TestExecute_DryRunInvalid(t *testing.T) {
	r, _ := newRunner("", false)
	err := r.execute(context.Background(), []string{"-b", "1234", "/dev/ttyUSB0", "--dry-run"})
	var ce *perr.ConfigError
	if !perr.As(err, &ce) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
	if ce.Field != "baud" {
		t.Errorf("field = %q, want baud", ce.Field)
	}
}

// TestExecute_ConflictingFlags verifies --tcp and --file conflict is caught.
func TestExecute_ConflictingFlags(t *testing.T) {
	r, _ := newRunner("", false)
	err := r.execute(context.Background(), []string{"--tcp", "h:1", "-f", "-", "--dry-run"})
	if err == nil {
		t.Fatal("expected error for --tcp and --file conflict")
	}
	if !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("error should mention mutually exclusive: %v", err)
	}
}

func TestExecute_TooManyArgs(t *testing.T) {
	r, _ := newRunner("", false)
	err := r.execute(context.Background(), []string{"/dev/ttyUSB0", "/dev/ttyUSB1"})
	if err == nil || !strings.Contains(err.Error(), "too many arguments") {
		t.Fatalf("err = %v", err)
	}
}

func TestExecute_NoSource(t *testing.T) {
	r, con := newRunner("", false)
	err := r.execute(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "no frame source") {
		t.Fatalf("err = %v", err)
	}
	if strings.Contains(con.stdout.String(), portPrompt) {
		t.Error("prompted without a terminal")
	}
}

func TestExecute_PromptsForPort(t *testing.T) {
	r, con := newRunner("/dev/ttyUSB9\n", true)
	if err := r.execute(context.Background(), []string{"--dry-run"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := con.stdout.String()
	if !strings.HasPrefix(out, portPrompt) {
		t.Errorf("missing prompt: %q", out)
	}
	if !strings.Contains(out, "device: /dev/ttyUSB9") {
		t.Errorf("prompted device not used:\n%s", out)
	}
}

func TestExecute_DecodesStdin(t *testing.T) {
	r, con := newRunner("L,H\nM,1\nL,H\nM,-1\nL,H\nEND\n", false)
	if err := r.execute(context.Background(), []string{"-f", "-", "-q", "-a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := con.stdout.String()
	if strings.Contains(out, "Frame received") {
		t.Errorf("-q should hide progress:\n%s", out)
	}
	if !strings.Contains(out, "HIDDEN MESSAGE ASSEMBLED:\nHIH\n") {
		t.Errorf("message missing:\n%s", out)
	}
	if !strings.Contains(out, "Replay check: OK") {
		t.Errorf("audit missing:\n%s", out)
	}
}

func TestExecute_TruncatedStreamFails(t *testing.T) {
	r, con := newRunner("L,O\nL,K\n", false)
	err := r.execute(context.Background(), []string{"-f", "-"})
	if !perr.Is(err, perr.ErrSourceClosed) {
		t.Fatalf("err = %v, want ErrSourceClosed", err)
	}
	if !strings.Contains(con.stdout.String(), "HIDDEN MESSAGE ASSEMBLED:\nOK\n") {
		t.Errorf("partial message not printed:\n%s", con.stdout.String())
	}
}

// ── precedence ───────────────────────────────────────────────────────

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prt7.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecute_ConfigFile(t *testing.T) {
	path := writeConfig(t, "device: /dev/ttyS0\nbaud: 38400\nmax_line: 64\n")

	r, con := newRunner("", false)
	err := r.execute(context.Background(), []string{"-C", path, "--max-line", "32", "--dry-run"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := con.stdout.String()
	for _, want := range []string{"device: /dev/ttyS0", "baud: 38400", "max_line: 32"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestExecute_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "device: /dev/ttyS0\nbaud: 38400\n")
	t.Setenv("PRT7_BAUD", "57600")

	r, con := newRunner("", false)
	if err := r.execute(context.Background(), []string{"--config", path, "--dry-run"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(con.stdout.String(), "baud: 57600") {
		t.Errorf("env not applied:\n%s", con.stdout.String())
	}
}

func TestExecute_VerbosityAddsToConfig(t *testing.T) {
	path := writeConfig(t, "device: /dev/ttyS0\nverbose: 2\n")

	r, con := newRunner("", false)
	if err := r.execute(context.Background(), []string{"-C", path, "-v", "--dry-run"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(con.stdout.String(), "verbose: 3") {
		t.Errorf("verbosity:\n%s", con.stdout.String())
	}
}

func TestExecute_BadConfigFile(t *testing.T) {
	path := writeConfig(t, "no_such_key: 1\n")
	r, _ := newRunner("", false)
	if err := r.execute(context.Background(), []string{"-C", path, "/dev/ttyS0"}); err == nil {
		t.Fatal("expected error for unknown config key")
	}
}

package report

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perr "prt7/internal/errors"
	"prt7/internal/frame"
	"prt7/internal/session"
)

func runSession(t *testing.T, lines ...string) (*session.Session, []session.Event) {
	t.Helper()
	s := session.New()
	var events []session.Event
	for _, l := range lines {
		ev, err := s.Ingest(l)
		require.NoError(t, err)
		events = append(events, ev)
	}
	return s, events
}

func TestReporter_FrameLines(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, false)

	_, events := runSession(t, "L,H", "M,1", "L,H", "noise", "M,-1", "L,Space")
	for _, ev := range events {
		r.Frame(ev)
	}

	want := []string{
		"Frame received: [L,H] -> fragment 'H' decoded as 'H'. Message: [H]",
		"Frame received: [M,1] -> ROTATING ROTOR +1. ('A' now maps to 'B')",
		"Frame received: [L,H] -> fragment 'H' decoded as 'I'. Message: [H][I]",
		"Frame received: [M,-1] -> ROTATING ROTOR -1. ('A' now maps to 'A')",
		"Frame received: [L,Space] -> fragment ' ' decoded as ' '. Message: [H][I][ ]",
	}
	assert.Equal(t, want, strings.Split(strings.TrimSpace(buf.String()), "\n"))
}

func TestReporter_Quiet(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, true)

	_, events := runSession(t, "L,A", "M,3")
	r.Connecting("serial:/dev/ttyUSB0@9600")
	r.Connected()
	for _, ev := range events {
		r.Frame(ev)
	}
	assert.Empty(t, buf.String())

	r.Finish("A", false, "end of transmission")
	assert.Contains(t, buf.String(), "HIDDEN MESSAGE ASSEMBLED:\nA\n---\n")
}

func TestReporter_Banners(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, false)

	r.Connecting("tcp://127.0.0.1:4000")
	r.Connected()
	assert.Equal(t,
		"Starting PRT-7 decoder. Connecting to tcp://127.0.0.1:4000...\nConnection established. Waiting for frames...\n\n",
		buf.String())
}

func TestReporter_Finish(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false).Finish("HIH", false, "end of transmission")
	assert.Equal(t, "\n---\nData stream finished.\nHIDDEN MESSAGE ASSEMBLED:\nHIH\n---\n", buf.String())

	buf.Reset()
	New(&buf, false).Finish("HI", true, "source closed")
	assert.Contains(t, buf.String(), "Data stream interrupted: source closed\n")
	assert.Contains(t, buf.String(), "HIDDEN MESSAGE ASSEMBLED:\nHI\n")
}

func TestReporter_List(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, true)

	r.List([]frame.Frame{frame.Load('H'), frame.Map(1), frame.Load(' ')})
	assert.Equal(t, "Received frames (3):\n  1. [LOAD: 'H']\n  2. [MAP: 1]\n  3. [LOAD: ' ']\n", buf.String())

	buf.Reset()
	r.List(nil)
	assert.Equal(t, "[empty list - no frames received]\n", buf.String())
}

func TestReporter_Audit(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, true)

	s, _ := runSession(t, "L,H", "M,1", "L,H", "END")
	msg, trace := s.Replay()
	r.Audit(msg, trace, s.Verify())

	out := buf.String()
	assert.Contains(t, out, "Reprocessing 3 stored frames...")
	assert.Contains(t, out, "Frame #1 [LOAD,'H'] -> decoded as 'H'\n")
	assert.Contains(t, out, "Frame #2 [MAP,1] -> ROTATING ROTOR +1\n")
	assert.Contains(t, out, "Frame #3 [LOAD,'H'] -> decoded as 'I'\n")
	assert.Contains(t, out, "DECODED HIDDEN MESSAGE:\nHI\n")
	assert.True(t, strings.HasSuffix(out, "Replay check: OK\n"))
}

func TestReporter_AuditFailure(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, true)

	r.Audit("", nil, fmt.Errorf("%w: live %q, replay %q", perr.ErrReplayMismatch, "A", "B"))
	out := buf.String()
	assert.Contains(t, out, "[empty list - no frames to reprocess]")
	assert.Contains(t, out, "Replay check: FAILED: replay does not reproduce the live message")
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "'A'", quote('A'))
	assert.Equal(t, "' '", quote(' '))
	assert.Equal(t, `'\x07'`, quote(7))
	assert.Equal(t, `'\xff'`, quote(0xff))
}

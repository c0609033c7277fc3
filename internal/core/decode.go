package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	perr "prt7/internal/errors"
	"prt7/internal/frame"
	"prt7/internal/metrics"
	"prt7/internal/report"
	"prt7/internal/retry"
	"prt7/internal/session"
	"prt7/internal/transport"
	"prt7/util"
)

// DecodeMode reads frame lines from Source and decodes them in one
// session until the END sentinel, the end of the stream, or
// cancellation.  Whatever was decoded is always printed.
type DecodeMode struct {
	Source    transport.Source
	Parser    frame.Parser
	MaxLine   int
	Reconnect bool           // reopen the source after a loss
	Backoff   *retry.Backoff // reconnect policy, nil = retry.DefaultBackoff

	Audit       bool // replay and verify the frame log at the end
	List        bool // print the frame log at the end
	Quiet       bool // no per-frame progress
	MetricsAddr string

	Metrics *metrics.Collector // created when nil
	Logger  *util.Logger
	Out     io.Writer // defaults to os.Stdout

	session *session.Session
}

// Session returns the session of the last Run.
func (m *DecodeMode) Session() *session.Session { return m.session }

func (m *DecodeMode) out() io.Writer {
	if m.Out != nil {
		return m.Out
	}
	return os.Stdout
}

// Run decodes one transmission.  It returns nil when the sentinel was
// received or ctx was cancelled, and the transport error when the
// source could not be opened or was lost for good.
func (m *DecodeMode) Run(ctx context.Context) error {
	if m.Logger == nil {
		m.Logger = util.NewLogger(0)
	}
	if m.Metrics == nil {
		m.Metrics = metrics.New()
	}
	rep := report.New(m.out(), m.Quiet)

	if m.MetricsAddr != "" {
		stop, err := m.serveMetrics(ctx)
		if err != nil {
			return err
		}
		defer stop()
	}

	sess := session.New(
		session.WithParser(m.Parser),
		session.WithLogger(m.Logger.Named("session")),
		session.WithMetrics(m.Metrics),
	)
	m.session = sess
	m.Logger.Verbose("session %s reading %s", sess.ID(), m.Source)

	rep.Connecting(m.Source.String())
	err := m.consume(ctx, sess, rep)
	if errors.Is(err, context.Canceled) {
		sess.ForceTerminate("interrupted")
		err = nil
	} else if err != nil {
		m.Metrics.RecordError(err.Error())
		sess.ForceTerminate(err.Error())
	}

	msg, ferr := sess.Finalize()
	if ferr != nil {
		return ferr
	}
	rep.Finish(msg, sess.Aborted(), sess.Reason())

	if m.List {
		rep.List(sess.Frames())
	}
	if m.Audit {
		replayed, trace := sess.Replay()
		verr := sess.Verify()
		rep.Audit(replayed, trace, verr)
		if verr != nil && err == nil {
			err = verr
		}
	}
	m.Logger.Debug("metrics: %s", m.Metrics.JSON())
	return err
}

// serveMetrics starts the metrics endpoint.  stop shuts it down and
// waits until the listener is closed.
func (m *DecodeMode) serveMetrics(ctx context.Context) (stop func(), err error) {
	srv, err := metrics.Listen(m.MetricsAddr, m.Metrics)
	if err != nil {
		return nil, err
	}
	srvCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(srvCtx); err != nil {
			m.Logger.Warn("metrics server: %v", err)
		}
	}()
	m.Logger.Info("serving metrics on http://%s/metrics", srv.Addr())

	return func() {
		cancel()
		<-done
	}, nil
}

// consume feeds lines to sess until it terminates.  With Reconnect set
// a failed open and a lost stream both count against one backoff
// budget; a stream that delivered lines restores the budget.  The
// session carries over.
func (m *DecodeMode) consume(ctx context.Context, sess *session.Session, rep *report.Reporter) error {
	retrier := m.backoff().Retrier()
	defer retrier.Stop()

	for opened := 0; ; {
		rc, err := m.Source.Open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !m.Reconnect {
				return err
			}
			if !perr.IsRetryable(err) {
				return fmt.Errorf("open %s: %w", m.Source, err)
			}
			if err := retrier.Wait(ctx, err); err != nil {
				return fmt.Errorf("open %s: %w", m.Source, err)
			}
			continue
		}

		if opened == 0 {
			rep.Connected()
		} else {
			m.Metrics.Reconnect()
			m.Logger.Info("reconnected to %s after %d frames", m.Source, sess.FrameCount())
		}
		opened++

		m.Metrics.SourceOpened()
		done, lines, err := m.pump(ctx, rc, sess, rep)
		m.Metrics.SourceClosed()

		switch {
		case done:
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case err == nil:
			err = perr.Wrap("read", m.Source.String(), perr.ErrSourceClosed)
		default:
			err = perr.Wrap("read", m.Source.String(), err)
		}

		if !m.Reconnect {
			return err
		}
		if lines > 0 {
			retrier.Reset()
		}
		if err := retrier.Wait(ctx, err); err != nil {
			return err
		}
	}
}

// pump ingests the lines of one stream.  It reports true once the
// session has terminated, and how many lines the stream delivered.
func (m *DecodeMode) pump(ctx context.Context, rc io.ReadCloser, sess *session.Session, rep *report.Reporter) (bool, int, error) {
	lines := 0
	for line, readErr := range transport.Lines(ctx, rc, m.MaxLine) {
		if readErr != nil {
			return false, lines, readErr
		}
		lines++
		ev, err := sess.Ingest(line)
		if err != nil {
			return true, lines, nil
		}
		rep.Frame(ev)
		if ev.Outcome == session.Terminated {
			return true, lines, nil
		}
	}
	return false, lines, nil
}

// backoff returns the reconnect policy with logging and metrics hooked
// into every retry.
func (m *DecodeMode) backoff() *retry.Backoff {
	bo := m.Backoff
	if bo == nil {
		bo = retry.DefaultBackoff()
	}
	policy := *bo
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		m.Metrics.RecordError(err.Error())
		m.Logger.Warn("%v (attempt %d); retrying %s in %s",
			err, attempt, m.Source, wait.Round(time.Millisecond))
	}
	return &policy
}

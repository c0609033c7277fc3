package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "prt7"

// exported pairs a Prometheus descriptor with the counter it reads.
type exported struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(*Collector) *atomic.Int64
}

func newDesc(name, help string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
}

var exports = []exported{
	{newDesc("sources_active", "Frame sources currently open."), prometheus.GaugeValue,
		func(c *Collector) *atomic.Int64 { return &c.sourcesActive }},
	{newDesc("source_opens_total", "Frame sources opened, including reconnects."), prometheus.CounterValue,
		func(c *Collector) *atomic.Int64 { return &c.sourceOpens }},
	{newDesc("reconnects_total", "Sources reopened after a transport loss."), prometheus.CounterValue,
		func(c *Collector) *atomic.Int64 { return &c.reconnects }},
	{newDesc("lines_total", "Lines handed to the decode session."), prometheus.CounterValue,
		func(c *Collector) *atomic.Int64 { return &c.linesTotal }},
	{newDesc("bytes_in_total", "Bytes of line content received."), prometheus.CounterValue,
		func(c *Collector) *atomic.Int64 { return &c.bytesIn }},
	{newDesc("lines_ignored_total", "Lines discarded as protocol noise."), prometheus.CounterValue,
		func(c *Collector) *atomic.Int64 { return &c.linesIgnored }},
	{newDesc("parse_errors_total", "Frame lines discarded because they did not parse."), prometheus.CounterValue,
		func(c *Collector) *atomic.Int64 { return &c.parseErrors }},
	{newDesc("load_frames_total", "LOAD frames decoded."), prometheus.CounterValue,
		func(c *Collector) *atomic.Int64 { return &c.loadFrames }},
	{newDesc("map_frames_total", "MAP frames applied to the rotor."), prometheus.CounterValue,
		func(c *Collector) *atomic.Int64 { return &c.mapFrames }},
	{newDesc("rotations_defaulted_total", "MAP frames without digits that rotated by 0."), prometheus.CounterValue,
		func(c *Collector) *atomic.Int64 { return &c.rotationsDefaulted }},
	{newDesc("errors_total", "Transport and session errors recorded."), prometheus.CounterValue,
		func(c *Collector) *atomic.Int64 { return &c.errorsTotal }},
}

// Describe implements [prometheus.Collector].
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, e := range exports {
		ch <- e.desc
	}
}

// Collect implements [prometheus.Collector].  A nil Collector reports
// nothing.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c == nil {
		return
	}
	for _, e := range exports {
		ch <- prometheus.MustNewConstMetric(e.desc, e.kind, float64(e.value(c).Load()))
	}
}

// Registry returns a registry exposing c alongside the Go runtime
// collectors.
func (c *Collector) Registry() (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, fmt.Errorf("register prt7 metrics: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go metrics: %w", err)
	}
	return reg, nil
}

// ── HTTP exposition ──────────────────────────────────────────────────

// Server exposes a registry on /metrics.
type Server struct {
	ln  net.Listener
	srv *http.Server
}

// Listen binds addr and prepares a /metrics endpoint for c.  Call
// Serve to start answering requests.
func Listen(addr string, c *Collector) (*Server, error) {
	reg, err := c.Registry()
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, c.JSON())
	})

	return &Server{
		ln:  ln,
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
	}, nil
}

// Addr returns the bound address, useful when Listen was given port 0.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Serve answers requests until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(s.ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

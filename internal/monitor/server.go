// ABOUTME: HTTP server for /metrics and the /status websocket
// ABOUTME: Runs until its context is cancelled, then shuts down gracefully
package monitor

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Sendspin/sendspin-bridge/internal/session"
)

const shutdownTimeout = 5 * time.Second

// Monitor serves metrics and the status feed. It is a session.Observer.
type Monitor struct {
	addr    string
	metrics *Metrics
	hub     *Hub
	mux     *http.ServeMux
}

// New creates a monitor that will listen on addr, e.g. ":9100"
func New(addr string) *Monitor {
	m := &Monitor{
		addr:    addr,
		metrics: NewMetrics(),
		hub:     NewHub(),
		mux:     http.NewServeMux(),
	}
	m.mux.Handle("/metrics", promhttp.HandlerFor(m.metrics.Registry(), promhttp.HandlerOpts{}))
	m.mux.Handle("/status", m.hub)
	return m
}

// Observe implements session.Observer
func (m *Monitor) Observe(s session.Status) {
	m.metrics.Observe(s)
	m.hub.Observe(s)
}

// Handler returns the HTTP handler serving both endpoints
func (m *Monitor) Handler() http.Handler { return m.mux }

// Run listens and serves until ctx is cancelled
func (m *Monitor) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.addr)
	if err != nil {
		return errors.Wrapf(err, "monitor listen on %s", m.addr)
	}
	return m.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled
func (m *Monitor) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: m.mux, ReadHeaderTimeout: 5 * time.Second}
	logrus.Printf("Monitor listening on %s", ln.Addr())

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != http.ErrServerClosed {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
	case err := <-errChan:
		return errors.Wrap(err, "monitor server failed")
	}

	m.hub.Close()
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logrus.Warnf("Monitor shutdown error: %v", err)
	}
	return nil
}

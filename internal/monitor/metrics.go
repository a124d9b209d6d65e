// ABOUTME: Prometheus metrics fed from session status snapshots
// ABOUTME: Uses its own registry so tests and multiple monitors do not collide
package monitor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Sendspin/sendspin-bridge/internal/session"
)

const namespace = "bridge"

// Metrics exports the latest status of each role
type Metrics struct {
	registry *prometheus.Registry

	state       *prometheus.GaugeVec
	delayError  *prometheus.GaugeVec
	ratio       *prometheus.GaugeVec
	queueFrames *prometheus.GaugeVec
	syncs       *prometheus.GaugeVec
	sessions    *prometheus.CounterVec
	packets     *prometheus.CounterVec
	lostFrames  prometheus.Counter
	invalid     prometheus.Counter
	stale       prometheus.Counter
	descriptors prometheus.Counter
	sendErrors  prometheus.Counter

	mu   sync.Mutex
	last map[string]session.Status // by role
}

// NewMetrics creates and registers the bridge metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		last:     make(map[string]session.Status),
	}
	m.state = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "state",
		Help:      "1 for the current state of each role.",
	}, []string{"role", "state"})
	m.delayError = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "receiver",
		Name:      "delay_error_frames",
		Help:      "Deviation of the buffered audio from the target delay.",
	}, []string{"peer"})
	m.ratio = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "receiver",
		Name:      "resample_ratio",
		Help:      "Current resample ratio including drift correction.",
	}, []string{"peer"})
	m.queueFrames = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "receiver",
		Name:      "queue_frames",
		Help:      "Frames available in the jitter buffer at the last report.",
	}, []string{"peer"})
	m.syncs = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "receiver",
		Name:      "syncs",
		Help:      "Number of times the receiver (re)synchronised.",
	}, []string{"peer"})
	m.sessions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_total",
		Help:      "Sessions started.",
	}, []string{"role"})
	m.packets = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_total",
		Help:      "Data packets sent or received.",
	}, []string{"role"})
	m.lostFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "receiver",
		Name:      "lost_frames_total",
		Help:      "Frames replaced by silence after packet loss.",
	})
	m.invalid = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "receiver",
		Name:      "invalid_packets_total",
		Help:      "Datagrams dropped as malformed.",
	})
	m.stale = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "receiver",
		Name:      "stale_packets_total",
		Help:      "Packets that arrived after their frames were played.",
	})
	m.descriptors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sender",
		Name:      "descriptors_total",
		Help:      "Stream descriptors sent.",
	})
	m.sendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sender",
		Name:      "send_errors_total",
		Help:      "Datagrams the socket refused.",
	})

	m.registry.MustRegister(
		m.state, m.delayError, m.ratio, m.queueFrames, m.syncs,
		m.sessions, m.packets, m.lostFrames, m.invalid, m.stale,
		m.descriptors, m.sendErrors,
	)
	return m
}

// Registry returns the registry holding the bridge metrics
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Observe implements session.Observer. Counters advance by the difference
// to the previous snapshot of the same session.
func (m *Metrics) Observe(s session.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.last[s.Role]
	if ok && old.State != s.State {
		m.state.WithLabelValues(s.Role, old.State).Set(0)
	}
	m.state.WithLabelValues(s.Role, s.State).Set(1)
	m.last[s.Role] = s

	prev := old
	if !ok || old.Session != s.Session {
		prev = session.Status{}
		m.sessions.WithLabelValues(s.Role).Inc()
	}

	m.packets.WithLabelValues(s.Role).Add(delta(s.Packets, prev.Packets))
	switch s.Role {
	case session.RoleReceiver:
		m.delayError.WithLabelValues(s.Peer).Set(s.Error)
		m.ratio.WithLabelValues(s.Peer).Set(s.Ratio)
		m.queueFrames.WithLabelValues(s.Peer).Set(float64(s.Frames))
		m.syncs.WithLabelValues(s.Peer).Set(float64(s.Syncs))
		m.lostFrames.Add(delta(s.LostFrames, prev.LostFrames))
		m.invalid.Add(delta(s.Invalid, prev.Invalid))
		m.stale.Add(delta(s.Stale, prev.Stale))
	case session.RoleSender:
		m.descriptors.Add(delta(s.Descriptors, prev.Descriptors))
		m.sendErrors.Add(delta(s.SendErrors, prev.SendErrors))
	}
}

func delta(cur, prev uint64) float64 {
	if cur < prev {
		return 0
	}
	return float64(cur - prev)
}

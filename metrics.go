package authcore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "authcore"

// Metrics holds the Prometheus collectors the Engine updates. A nil *Metrics
// is valid and records nothing. Metrics also implements cache.Observer.
type Metrics struct {
	logins       *prometheus.CounterVec
	refreshes    *prometheus.CounterVec
	logouts      prometheus.Counter
	revoked      prometheus.Counter
	denials      *prometheus.CounterVec
	cacheEvents  *prometheus.CounterVec
	audit        *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which tests rely on.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "logins_total",
			Help:      "Login attempts by method and result.",
		}, []string{"method", "result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "refreshes_total",
			Help:      "Refresh attempts by result.",
		}, []string{"result"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "logouts_total",
			Help:      "Sessions ended by logout.",
		}),
		revoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_revoked_total",
			Help:      "Sessions revoked by password change or reset.",
		}),
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "authorization_denials_total",
			Help:      "Authorization denials by reason.",
		}, []string{"reason"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Hybrid cache hits, misses, and shared-tier failures.",
		}, []string{"event", "detail"}),
		audit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "audit_events_total",
			Help:      "Audit events by type and delivery outcome.",
		}, []string{"event", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "operation_duration_seconds",
			Help:      "Engine operation latency.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"op"}),
	}

	if reg != nil {
		reg.MustRegister(m.logins, m.refreshes, m.logouts, m.revoked, m.denials, m.cacheEvents, m.audit, m.latency)
	}
	return m
}

func (m *Metrics) login(method, result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(method, result).Inc()
}

func (m *Metrics) refresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) logout() {
	if m == nil {
		return
	}
	m.logouts.Inc()
}

func (m *Metrics) sessionsRevoked(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.revoked.Add(float64(n))
}

func (m *Metrics) denied(reason string) {
	if m == nil {
		return
	}
	m.denials.WithLabelValues(reason).Inc()
}

func (m *Metrics) observe(op string, start time.Time) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) CacheHit(tier string) {
	if m == nil {
		return
	}
	m.cacheEvents.WithLabelValues("hit", tier).Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheEvents.WithLabelValues("miss", "").Inc()
}

func (m *Metrics) CacheSharedFailure(op string) {
	if m == nil {
		return
	}
	m.cacheEvents.WithLabelValues("shared_failure", op).Inc()
}

// AuditOutcome counts an audit event as delivered, dropped, or failed.
func (m *Metrics) AuditOutcome(eventType, outcome string) {
	if m == nil {
		return
	}
	m.audit.WithLabelValues(eventType, outcome).Inc()
}

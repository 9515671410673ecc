package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	Transitions        *prometheus.CounterVec
	ConcurrentConflict *prometheus.CounterVec
	ExternalCalls      *prometheus.HistogramVec
	ExternalFailures   *prometheus.CounterVec
	AuditWrites        *prometheus.CounterVec
	OutboxPublished    prometheus.Counter
	ReviewDecisions    *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics against the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers metrics on reg. Tests pass a fresh registry so
// repeated construction does not panic on duplicate registration.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "estate_state_transitions_total",
			Help: "State machine transitions by entity and target status",
		}, []string{"entity", "to"}),
		ConcurrentConflict: f.NewCounterVec(prometheus.CounterOpts{
			Name: "estate_concurrent_modification_total",
			Help: "Writes rejected because the entity changed underneath them",
		}, []string{"entity"}),
		ExternalCalls: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "estate_external_call_duration_seconds",
			Help:    "Latency of calls to OCR and asset discovery collaborators",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "outcome"}),
		ExternalFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "estate_external_call_failures_total",
			Help: "Failed calls to external collaborators",
		}, []string{"service"}),
		AuditWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "estate_audit_writes_total",
			Help: "Audit entries written by action",
		}, []string{"action"}),
		OutboxPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "estate_audit_outbox_published_total",
			Help: "Audit outbox rows relayed to the event stream",
		}),
		ReviewDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "estate_review_decisions_total",
			Help: "Reviewer document decisions by outcome",
		}, []string{"decision"}),
	}
}

// IncTransition records a successful state change. Safe on a nil receiver.
func (m *Metrics) IncTransition(entity, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(entity, to).Inc()
}

func (m *Metrics) IncConflict(entity string) {
	if m == nil {
		return
	}
	m.ConcurrentConflict.WithLabelValues(entity).Inc()
}

// ObserveExternal records latency of one guarded external call, retries included.
func (m *Metrics) ObserveExternal(service string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		m.ExternalFailures.WithLabelValues(service).Inc()
	}
	m.ExternalCalls.WithLabelValues(service, outcome).Observe(time.Since(started).Seconds())
}

func (m *Metrics) IncAuditWrite(action string) {
	if m == nil {
		return
	}
	m.AuditWrites.WithLabelValues(action).Inc()
}

func (m *Metrics) AddOutboxPublished(n int) {
	if m == nil {
		return
	}
	m.OutboxPublished.Add(float64(n))
}

func (m *Metrics) IncReviewDecision(decision string) {
	if m == nil {
		return
	}
	m.ReviewDecisions.WithLabelValues(decision).Inc()
}

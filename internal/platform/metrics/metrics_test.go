package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.IncTransition("claim_session", "APPROVED")
	m.IncTransition("claim_session", "APPROVED")
	m.IncConflict("document")
	m.ObserveExternal("ocr", time.Now(), errors.New("boom"))
	m.AddOutboxPublished(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("claim_session", "APPROVED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConcurrentConflict.WithLabelValues("document")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExternalFailures.WithLabelValues("ocr")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OutboxPublished))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncTransition("asset_claim", "COMPLETED")
		m.ObserveExternal("discovery", time.Now(), nil)
		m.IncReviewDecision("VERIFIED")
	})
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder_CountersArePerRegistry(t *testing.T) {
	regA := prometheus.NewRegistry()
	regB := prometheus.NewRegistry()
	a := New(regA)
	b := New(regB)

	a.RecordCacheHit("fusion_analysis")
	a.RecordCacheHit("fusion_analysis")
	a.RecordCacheMiss("fusion_analysis")
	b.RecordCacheHit("fusion_analysis")

	assert.Equal(t, 2.0, testutil.ToFloat64(a.cacheHits.WithLabelValues("fusion_analysis")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.cacheMisses.WithLabelValues("fusion_analysis")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.cacheHits.WithLabelValues("fusion_analysis")))
}

func TestRecorder_ReasonerAndFallback(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordReasonerAttempt("invalid")
	r.RecordReasonerAttempt("invalid")
	r.RecordReasonerAttempt("accepted")
	r.RecordFallback("AAPL")
	r.RecordAnalysis("BUY")
	r.RecordError("persist")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.reasonerAttempts.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.reasonerAttempts.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fallbacks.WithLabelValues("AAPL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.analyses.WithLabelValues("BUY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("persist")))
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	labels := map[string]string{"currency": "arweave"}
	rec.IncCounter("fund_submitted", labels)
	rec.IncCounter("fund_submitted", labels)
	rec.ObserveLatency("fund", 250*time.Millisecond, labels)

	got := testutil.ToFloat64(rec.counters.WithLabelValues("fund_submitted", "arweave"))
	assert.Equal(t, float64(2), got)

	families, err := reg.Gather()
	require.NoError(t, err)
	var sampleCount uint64
	for _, f := range families {
		if f.GetName() == "bundlr_latency_seconds" {
			sampleCount = f.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(1), sampleCount)

	_, err = NewPrometheusRecorder(reg)
	assert.Error(t, err, "duplicate registration")
}

func TestOrNoop(t *testing.T) {
	assert.IsType(t, NoopRecorder{}, OrNoop(nil))
}

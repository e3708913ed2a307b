package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RegisterInFreshRegistry(t *testing.T) {
	m := NewMetricsForTesting()
	reg := prometheus.NewRegistry()
	for _, c := range m.collectors() {
		require.NoError(t, reg.Register(c))
	}

	m.Exports.WithLabelValues("admin").Inc()
	m.VisibleMarkers.Set(7)

	assert.InDelta(t, 1, testutil.ToFloat64(m.Exports.WithLabelValues("admin")), 0)
	assert.InDelta(t, 7, testutil.ToFloat64(m.VisibleMarkers), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		assert.Contains(t, f.GetName(), namespace+"_")
	}
}

func TestMetrics_TestingInstancesAreIndependent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.TotalMarkers.Set(3)
	assert.InDelta(t, 0, testutil.ToFloat64(b.TotalMarkers), 0)
}

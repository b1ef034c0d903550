package ioring

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollectorReportsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordAllocate()
	m.RecordCompletedSync(1024, 1_000_000, true)

	collector := NewPrometheusCollector(m)

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(collector))

	families, err := registry.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	found := false
	for _, fam := range families {
		if fam.GetName() == "ioring_operations_allocated_total" {
			found = true
			require.Len(t, fam.Metric, 1)
			require.Equal(t, float64(1), fam.Metric[0].GetCounter().GetValue())
		}
	}
	require.True(t, found, "expected ioring_operations_allocated_total to be reported")
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.LogApplied()
	m.LogApplied()
	m.LogSkipped("already_synced")
	m.Discovered(3)
	m.SetSyncedHeight(1234)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LogsApplied))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LogsSkipped.WithLabelValues("already_synced")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.VenuesDiscovered))
	assert.Equal(t, 1234.0, testutil.ToFloat64(m.SyncedHeight))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.LogApplied()
	m.LogSkipped("x")
	m.Discovered(1)
	m.ProviderError("replay")
}

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
	m := New(reg, "filter")

	m.LevelBuilt()
	m.LevelBuilt()
	m.LevelFreed()
	m.Emitted(KindInserted)
	m.Emitted(KindInserted)
	m.Aborted(KindDeleted)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LevelsBuilt))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LevelsFreed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CachedLevels))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsEmitted.WithLabelValues(KindInserted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TranslationsAborted.WithLabelValues(KindDeleted)))

	n, err := testutil.GatherAndCount(reg, "treeproj_levels_built_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetricsNil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.LevelBuilt()
		m.LevelFreed()
		m.Emitted(KindChanged)
		m.Aborted(KindChanged)
	})
}

func TestMetricsSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg, "sort")
	b := New(reg, "filter")
	a.LevelBuilt()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.LevelsBuilt))
}

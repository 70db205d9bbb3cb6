package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsi-mfg/reflow/internal/model"
)

func TestObserve_IncrementsRunsAndChangesCounters(t *testing.T) {
	rec := New()

	rec.Observe(model.ReflowResult{
		Success: true,
		Changes: []model.Change{{}, {}},
	}, 50*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(rec.runsTotal.WithLabelValues("true")))
	assert.Equal(t, float64(2), testutil.ToFloat64(rec.changesTotal))
}

func TestObserve_LabelsFailedRunsSeparately(t *testing.T) {
	rec := New()

	rec.Observe(model.ReflowResult{Success: false}, time.Millisecond)
	rec.Observe(model.ReflowResult{Success: true}, time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(rec.runsTotal.WithLabelValues("false")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.runsTotal.WithLabelValues("true")))
}

func TestRegistry_GatherIncludesReflowMetrics(t *testing.T) {
	rec := New()
	rec.Observe(model.ReflowResult{Success: true}, time.Millisecond)

	families, err := rec.Registry().Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "reflow_runs_total")
	assert.Contains(t, names, "reflow_duration_seconds")
	assert.Contains(t, names, "reflow_changes_total")
}

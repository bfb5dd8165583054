package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l1jgo/navcore/internal/nav"
	"github.com/l1jgo/navcore/internal/ticksched"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]float64)
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, l := range m.GetLabel() {
				name += "/" + l.GetValue()
			}
			switch {
			case m.GetGauge() != nil:
				out[name] = m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				out[name] = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				out[name] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestCollectorExportsPublishedSnapshot(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	got := gather(t, reg)
	assert.NotContains(t, got, "navcore_regions", "nothing before the first publish")

	var d nav.Diagnostics
	d.Regions.Regions = 12
	d.Cache.Hits = 40
	d.Cache.Queued = 3
	d.Rebuild.PartialPasses = 2
	d.Grid.MinCost = 0.5
	d.Ticks.PerLevel[ticksched.Critical] = 4
	c.Publish(d)
	c.ObserveTick(3 * time.Millisecond)
	c.ObserveRebuild(time.Millisecond)
	c.ObservePathBatch(5)

	got = gather(t, reg)
	assert.Equal(t, 12.0, got["navcore_regions"])
	assert.Equal(t, 40.0, got["navcore_path_cache_hits_total"])
	assert.Equal(t, 3.0, got["navcore_path_queue_depth"])
	assert.Equal(t, 2.0, got["navcore_rebuild_partial_total"])
	assert.Equal(t, 0.5, got["navcore_grid_min_cost"])
	assert.Equal(t, 4.0, got["navcore_agents_by_importance/critical"])
	assert.Equal(t, 0.0, got["navcore_agents_by_importance/minimal"])
	assert.Equal(t, 1.0, got["navcore_tick_duration_seconds"])
	assert.Equal(t, 1.0, got["navcore_rebuild_duration_seconds"])
	assert.Equal(t, 1.0, got["navcore_path_requests_per_tick"])
}

func TestMetricNamesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, d := range descs {
		s := d.d.String()
		assert.False(t, seen[s], s)
		seen[s] = true
	}
}

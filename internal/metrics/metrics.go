package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/l1jgo/navcore/internal/nav"
	"github.com/l1jgo/navcore/internal/ticksched"
)

const namespace = "navcore"

type desc struct {
	d   *prometheus.Desc
	typ prometheus.ValueType
	get func(*nav.Diagnostics) float64
}

func gauge(name, help string, get func(*nav.Diagnostics) float64) desc {
	return desc{prometheus.NewDesc(namespace+"_"+name, help, nil, nil), prometheus.GaugeValue, get}
}

func counter(name, help string, get func(*nav.Diagnostics) float64) desc {
	return desc{prometheus.NewDesc(namespace+"_"+name, help, nil, nil), prometheus.CounterValue, get}
}

var descs = []desc{
	gauge("grid_dirty_sections", "Grid sections waiting for a rebuild", func(d *nav.Diagnostics) float64 { return float64(d.Grid.DirtySections) }),
	gauge("grid_min_cost", "Lowest tile cost used by the A* heuristic", func(d *nav.Diagnostics) float64 { return d.Grid.MinCost }),
	counter("grid_section_rebuilds_total", "Grid sections rebuilt", func(d *nav.Diagnostics) float64 { return float64(d.Grid.SectionRebuilds) }),

	gauge("regions", "Regions in the region graph", func(d *nav.Diagnostics) float64 { return float64(d.Regions.Regions) }),
	gauge("door_regions", "Door regions in the region graph", func(d *nav.Diagnostics) float64 { return float64(d.Regions.DoorRegions) }),
	gauge("rooms", "Rooms formed by the region graph", func(d *nav.Diagnostics) float64 { return float64(d.Regions.Rooms) }),
	gauge("region_avg_size_tiles", "Average region size in tiles", func(d *nav.Diagnostics) float64 { return d.Regions.AvgRegionSize }),
	counter("region_version_global", "Global region version counter", func(d *nav.Diagnostics) float64 { return float64(d.GlobalVersion) }),

	counter("path_searches_total", "A* searches run", func(d *nav.Diagnostics) float64 { return float64(d.Paths.Searches) }),
	counter("path_expanded_nodes_total", "Nodes expanded by A*", func(d *nav.Diagnostics) float64 { return float64(d.Paths.Expanded) }),
	counter("path_found_total", "Searches that found a path", func(d *nav.Diagnostics) float64 { return float64(d.Paths.Found) }),
	counter("path_failed_total", "Searches without a path", func(d *nav.Diagnostics) float64 { return float64(d.Paths.Failed) }),
	counter("path_precheck_rejected_total", "Requests refused by the region pre-check", func(d *nav.Diagnostics) float64 { return float64(d.Paths.Rejected) }),

	gauge("path_cache_entries", "Cached paths", func(d *nav.Diagnostics) float64 { return float64(d.Cache.Entries) }),
	gauge("path_queue_depth", "Live queued path requests", func(d *nav.Diagnostics) float64 { return float64(d.Cache.Queued) }),
	counter("path_cache_hits_total", "Path cache hits", func(d *nav.Diagnostics) float64 { return float64(d.Cache.Hits) }),
	counter("path_cache_misses_total", "Path cache misses", func(d *nav.Diagnostics) float64 { return float64(d.Cache.Misses) }),
	counter("path_cache_stale_total", "Entries evicted for changed regions", func(d *nav.Diagnostics) float64 { return float64(d.Cache.Stale) }),
	counter("path_cache_invalidated_total", "Entries dropped by rebuild invalidation", func(d *nav.Diagnostics) float64 { return float64(d.Cache.Invalidated) }),
	counter("path_cache_evicted_total", "Entries evicted for size", func(d *nav.Diagnostics) float64 { return float64(d.Cache.Evicted) }),
	counter("path_requests_superseded_total", "Requests replaced by a newer one from the same agent", func(d *nav.Diagnostics) float64 { return float64(d.Cache.Superseded) }),

	counter("rebuild_full_total", "Full rebuild passes", func(d *nav.Diagnostics) float64 { return float64(d.Rebuild.FullPasses) }),
	counter("rebuild_partial_total", "Partial rebuild passes", func(d *nav.Diagnostics) float64 { return float64(d.Rebuild.PartialPasses) }),
	counter("rebuild_coalesced_total", "Rebuild requests absorbed by coalescing", func(d *nav.Diagnostics) float64 { return float64(d.Rebuild.Coalesced) }),
	counter("rebuild_failed_tasks_total", "Rebuild tasks that panicked or failed", func(d *nav.Diagnostics) float64 { return float64(d.Rebuild.FailedTasks) }),
	counter("rebuild_self_heals_total", "Inconsistent partial rebuilds healed by a full rebuild", func(d *nav.Diagnostics) float64 { return float64(d.Rebuild.SelfHeals) }),

	gauge("agents", "Tracked agents", func(d *nav.Diagnostics) float64 { return float64(d.World.Agents) }),
	counter("agent_updates_total", "Agent logic updates granted", func(d *nav.Diagnostics) float64 { return float64(d.Ticks.Updates) }),
	counter("agent_updates_skipped_total", "Agent logic updates skipped", func(d *nav.Diagnostics) float64 { return float64(d.Ticks.Skipped) }),
}

var importanceDesc = prometheus.NewDesc(namespace+"_agents_by_importance", "Tracked agents per importance level", []string{"level"}, nil)

// Collector exports the latest published diagnostics. The simulation
// goroutine calls Publish; scrapes read the last published copy.
type Collector struct {
	mu   sync.Mutex
	last nav.Diagnostics
	ok   bool

	tickDuration    prometheus.Histogram
	rebuildDuration prometheus.Histogram
	pathBatch       prometheus.Histogram
}

// New creates a collector and registers it with reg.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	c := &Collector{
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Simulation tick duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~400ms
		}),
		rebuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rebuild_duration_seconds",
			Help:      "Deferred rebuild pass duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		pathBatch: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "path_requests_per_tick",
			Help:      "Queued path requests served per tick",
			Buckets:   prometheus.LinearBuckets(0, 4, 10),
		}),
	}
	reg.MustRegister(c)
	return c
}

// Publish replaces the exported snapshot.
func (c *Collector) Publish(d nav.Diagnostics) {
	c.mu.Lock()
	c.last = d
	c.ok = true
	c.mu.Unlock()
}

func (c *Collector) ObserveTick(d time.Duration)    { c.tickDuration.Observe(d.Seconds()) }
func (c *Collector) ObserveRebuild(d time.Duration) { c.rebuildDuration.Observe(d.Seconds()) }
func (c *Collector) ObservePathBatch(n int)         { c.pathBatch.Observe(float64(n)) }

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range descs {
		ch <- d.d
	}
	ch <- importanceDesc
}

// Collect implements prometheus.Collector. Nothing is reported before the
// first Publish.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	d, ok := c.last, c.ok
	c.mu.Unlock()
	if !ok {
		return
	}
	for _, m := range descs {
		ch <- prometheus.MustNewConstMetric(m.d, m.typ, m.get(&d))
	}
	for imp := ticksched.Minimal; imp <= ticksched.Critical; imp++ {
		ch <- prometheus.MustNewConstMetric(importanceDesc, prometheus.GaugeValue, float64(d.Ticks.PerLevel[imp]), imp.String())
	}
}

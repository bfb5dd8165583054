package nav

import (
	"time"

	"github.com/l1jgo/navcore/internal/config"
	"github.com/l1jgo/navcore/internal/ticksched"
)

// Config tunes the navigation service.
type Config struct {
	SectionSize    int
	Smoothing      bool
	RegionsEnabled bool

	CacheEntries int
	CacheMaxAge  time.Duration

	PartialRadius float64 // world units added around an edited rectangle
	Assertions    bool

	MaxRequestsPerTick int // 0 = limited by the time budget only

	Ticks ticksched.Config
}

func DefaultConfig() Config {
	return Config{
		SectionSize:    16,
		Smoothing:      true,
		RegionsEnabled: true,
		CacheEntries:   4096,
		CacheMaxAge:    time.Minute,
		PartialRadius:  2,
		Ticks:          ticksched.DefaultConfig(),
	}
}

// FromConfig maps the file configuration onto the service.
func FromConfig(cfg *config.Config) Config {
	ticks := ticksched.Config{
		Jitter:         cfg.Ticks.Jitter,
		NearDistance:   cfg.Ticks.NearDistance,
		FarDistance:    cfg.Ticks.FarDistance,
		LowHealth:      cfg.Ticks.LowHealth,
		ImportantTasks: cfg.Ticks.ImportantTasks,
		StateTimeout:   cfg.Ticks.StateTimeout,
	}
	ticks.Intervals[ticksched.Minimal] = cfg.Ticks.Minimal
	ticks.Intervals[ticksched.Low] = cfg.Ticks.Low
	ticks.Intervals[ticksched.Normal] = cfg.Ticks.Normal
	ticks.Intervals[ticksched.Critical] = cfg.Ticks.Critical

	return Config{
		SectionSize:        cfg.Grid.SectionSize,
		Smoothing:          cfg.Pathfinding.Smoothing,
		RegionsEnabled:     cfg.Pathfinding.RegionsEnabled,
		CacheEntries:       cfg.Cache.MaxEntries,
		CacheMaxAge:        cfg.Cache.MaxAge,
		PartialRadius:      cfg.Rebuild.PartialRadius,
		Assertions:         cfg.Rebuild.Assertions,
		MaxRequestsPerTick: cfg.Budget.MaxRequests,
		Ticks:              ticks,
	}
}

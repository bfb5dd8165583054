package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Logging     LoggingConfig     `toml:"logging"`
	Sim         SimConfig         `toml:"sim"`
	Grid        GridConfig        `toml:"grid"`
	Pathfinding PathfindingConfig `toml:"pathfinding"`
	Cache       CacheConfig       `toml:"cache"`
	Rebuild     RebuildConfig     `toml:"rebuild"`
	Budget      BudgetConfig      `toml:"budget"`
	Ticks       TicksConfig       `toml:"ticks"`
	Metrics     MetricsConfig     `toml:"metrics"`
	Control     ControlConfig     `toml:"control"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type SimConfig struct {
	Name       string        `toml:"name"`
	TickRate   time.Duration `toml:"tick_rate"`
	WorldFile  string        `toml:"world_file"` // layout yaml; empty = generated open field
	Cols       int           `toml:"cols"`       // used when no world file is given
	Rows       int           `toml:"rows"`
	Seed       int64         `toml:"seed"`
	Agents     int           `toml:"agents"`
	AgentSpeed float64       `toml:"agent_speed"` // world units per second
	StartTime  int64         // set at boot, not from config
}

type GridConfig struct {
	TileSize    float64 `toml:"tile_size"`
	SectionSize int     `toml:"section_size"` // tiles per section side
}

type PathfindingConfig struct {
	Smoothing      bool `toml:"smoothing"`
	RegionsEnabled bool `toml:"regions_enabled"`
}

type CacheConfig struct {
	MaxEntries int           `toml:"max_entries"`
	MaxAge     time.Duration `toml:"max_age"` // 0 = no age limit
}

type RebuildConfig struct {
	PartialRadius float64 `toml:"partial_radius"` // world units added around the edited rectangle
	Assertions    bool    `toml:"assertions"`     // panic on inconsistent partial rebuilds
}

type BudgetConfig struct {
	PathBudget  time.Duration `toml:"path_budget"` // per tick
	MaxCarry    time.Duration `toml:"max_carry"`
	MaxRequests int           `toml:"max_requests"` // per tick hard cap, 0 = budget only
}

type TicksConfig struct {
	Critical       time.Duration `toml:"critical"`
	Normal         time.Duration `toml:"normal"`
	Low            time.Duration `toml:"low"`
	Minimal        time.Duration `toml:"minimal"`
	Jitter         float64       `toml:"jitter"`
	NearDistance   float64       `toml:"near_distance"`
	FarDistance    float64       `toml:"far_distance"`
	LowHealth      float64       `toml:"low_health"`
	ImportantTasks []string      `toml:"important_tasks"`
	StateTimeout   time.Duration `toml:"state_timeout"`
	ScriptDir      string        `toml:"script_dir"` // empty disables the Lua classifier
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

type ControlConfig struct {
	Enabled    bool   `toml:"enabled"`
	Listen     string `toml:"listen"`
	InQueue    int    `toml:"in_queue"`
	OutQueue   int    `toml:"out_queue"`
	MaxPerSec  int    `toml:"max_per_sec"`  // requests per client, 0 = unlimited
	MaxPerTick int    `toml:"max_per_tick"` // requests per client and tick
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Sim.StartTime = time.Now().Unix()
	return cfg, nil
}

// Default returns the built-in configuration, used when no file exists.
func Default() *Config {
	cfg := defaults()
	cfg.Sim.StartTime = time.Now().Unix()
	return cfg
}

func (c *Config) validate() error {
	switch {
	case c.Sim.TickRate <= 0:
		return fmt.Errorf("sim.tick_rate must be positive")
	case c.Grid.TileSize <= 0:
		return fmt.Errorf("grid.tile_size must be positive")
	case c.Grid.SectionSize < 1:
		return fmt.Errorf("grid.section_size must be at least 1")
	case c.Cache.MaxEntries < 0:
		return fmt.Errorf("cache.max_entries must not be negative")
	case c.Ticks.Jitter < 0 || c.Ticks.Jitter >= 1:
		return fmt.Errorf("ticks.jitter must be in [0,1)")
	case c.Control.Enabled && (c.Control.InQueue < 1 || c.Control.OutQueue < 1):
		return fmt.Errorf("control queues must hold at least one request")
	case c.Logging.Format != "json" && c.Logging.Format != "console":
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Sim: SimConfig{
			Name:       "navcore",
			TickRate:   50 * time.Millisecond,
			Cols:       256,
			Rows:       256,
			Seed:       1,
			Agents:     200,
			AgentSpeed: 4,
		},
		Grid: GridConfig{
			TileSize:    1,
			SectionSize: 16,
		},
		Pathfinding: PathfindingConfig{
			Smoothing:      true,
			RegionsEnabled: true,
		},
		Cache: CacheConfig{
			MaxEntries: 4096,
			MaxAge:     time.Minute,
		},
		Rebuild: RebuildConfig{
			PartialRadius: 2,
			Assertions:    false,
		},
		Budget: BudgetConfig{
			PathBudget: 4 * time.Millisecond,
			MaxCarry:   8 * time.Millisecond,
		},
		Ticks: TicksConfig{
			Critical:       0,
			Normal:         100 * time.Millisecond,
			Low:            500 * time.Millisecond,
			Minimal:        2 * time.Second,
			Jitter:         0.1,
			NearDistance:   24,
			FarDistance:    64,
			LowHealth:      0.3,
			ImportantTasks: []string{"flee", "rescue", "haul_injured"},
			StateTimeout:   30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9464",
		},
		Control: ControlConfig{
			Enabled:    false,
			Listen:     "127.0.0.1:9465",
			InQueue:    64,
			OutQueue:   64,
			MaxPerSec:  200,
			MaxPerTick: 16,
		},
	}
}

// Command navview is an interactive terminal view of the navigation core.
// It runs the same systems as navcore on a small agent population and lets
// the user edit the world and watch grid sections, regions and paths react.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/l1jgo/navcore/internal/config"
	"github.com/l1jgo/navcore/internal/core/ecs"
	"github.com/l1jgo/navcore/internal/core/event"
	coresys "github.com/l1jgo/navcore/internal/core/system"
	"github.com/l1jgo/navcore/internal/data"
	"github.com/l1jgo/navcore/internal/nav"
	"github.com/l1jgo/navcore/internal/system"
	"github.com/l1jgo/navcore/internal/world"
)

const viewAgents = 12

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := "config/navcore.toml"
	if p := os.Getenv("NAVCORE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Sim.WorldFile == "" {
		cfg.Sim.Cols, cfg.Sim.Rows = 96, 48
	}

	// the terminal belongs to tcell, logs go to a file
	log, err := newFileLogger(cfg.Logging, "navview.log")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	state, err := loadWorld(cfg)
	if err != nil {
		return fmt.Errorf("world: %w", err)
	}

	rng := rand.New(rand.NewSource(cfg.Sim.Seed))
	ecsWorld := ecs.NewWorld()
	svc, err := nav.New(nav.FromConfig(cfg), state, ecsWorld, rand.New(rand.NewSource(rng.Int63())), log)
	if err != nil {
		return fmt.Errorf("navigation: %w", err)
	}

	bus := event.NewBus()
	runner := coresys.NewRunner()
	input := system.NewInputSystem(256, 0, bus, ecsWorld, svc, log)
	runner.Register(input)
	runner.Register(system.NewEventDispatchSystem(bus, svc, log))
	runner.Register(system.NewAgentSystem(svc, bus, rand.New(rand.NewSource(rng.Int63()))))
	runner.Register(system.NewPathRequestSystem(svc, coresys.NewBudget(cfg.Budget.PathBudget, cfg.Budget.MaxCarry)))
	runner.Register(system.NewRebuildSystem(svc, log))
	runner.Register(system.NewTickPruneSystem(svc, cfg.Ticks.StateTimeout, log))
	runner.Register(system.NewCleanupSystem(ecsWorld))

	g := svc.Grid()
	for i := 0; i < viewAgents; i++ {
		col, row := rng.Intn(g.Cols()), rng.Intn(g.Rows())
		if g.Solid(g.Index(col, row)) {
			continue
		}
		input.Submit(system.Spawn{Name: fmt.Sprintf("colonist-%d", i+1), Pos: g.Center(col, row), Speed: cfg.Sim.AgentSpeed})
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("screen init: %w", err)
	}
	defer screen.Fini()

	v := newViewer(screen, svc, runner, input, log)
	v.loop(cfg.Sim.TickRate)
	return nil
}

func loadWorld(cfg *config.Config) (*world.State, error) {
	if cfg.Sim.WorldFile == "" {
		return world.NewState(cfg.Sim.Cols, cfg.Sim.Rows, cfg.Grid.TileSize), nil
	}
	layout, err := data.LoadLayout(cfg.Sim.WorldFile)
	if err != nil {
		return nil, err
	}
	state := layout.NewState()
	if err := layout.Apply(state); err != nil {
		return nil, err
	}
	return state, nil
}

func newFileLogger(cfg config.LoggingConfig, path string) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format != "json" {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{path}
	zapCfg.ErrorOutputPaths = []string{path}

	return zapCfg.Build()
}

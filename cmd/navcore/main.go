package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/l1jgo/navcore/internal/config"
	"github.com/l1jgo/navcore/internal/control"
	"github.com/l1jgo/navcore/internal/core/ecs"
	"github.com/l1jgo/navcore/internal/core/event"
	coresys "github.com/l1jgo/navcore/internal/core/system"
	"github.com/l1jgo/navcore/internal/data"
	"github.com/l1jgo/navcore/internal/metrics"
	"github.com/l1jgo/navcore/internal/nav"
	"github.com/l1jgo/navcore/internal/rebuild"
	"github.com/l1jgo/navcore/internal/scripting"
	"github.com/l1jgo/navcore/internal/system"
	"github.com/l1jgo/navcore/internal/world"
)

const statInterval = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(name string, seed int64) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              navcore  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m    colony navigation · Go simulation core \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1msimulation:\033[0m %s \033[90m(seed: %d)\033[0m\n\n", name, seed)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main simulation logic ─────────────────────────────────────────

func run() error {
	// 1. Load config
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

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Sim.Name, cfg.Sim.Seed)

	// 3. Build the world
	printSection("World")
	state, err := loadWorld(cfg)
	if err != nil {
		return fmt.Errorf("world: %w", err)
	}
	buildings, resources := state.StructureCount()
	printStat("Tiles", state.Cols()*state.Rows())
	printStat("Buildings", buildings)
	printStat("Resources", resources)
	printStat("Road tiles", state.RoadTiles())
	fmt.Println()

	// 4. Navigation service
	printSection("Navigation")
	rng := rand.New(rand.NewSource(cfg.Sim.Seed))
	ecsWorld := ecs.NewWorld()
	svc, err := nav.New(nav.FromConfig(cfg), state, ecsWorld, rand.New(rand.NewSource(rng.Int63())), log)
	if err != nil {
		return fmt.Errorf("navigation: %w", err)
	}
	d := svc.Diagnostics()
	printStat("Sections", d.Grid.Sections)
	printStat("Regions", d.Regions.Regions)
	printStat("Rooms", d.Regions.Rooms)
	printOK("grid and region graph built")
	fmt.Println()

	// 5. Scripts
	bus := event.NewBus()
	agents := system.NewAgentSystem(svc, bus, rand.New(rand.NewSource(rng.Int63())))
	if cfg.Ticks.ScriptDir != "" {
		printSection("Scripts")
		engine, err := scripting.NewEngine(cfg.Ticks.ScriptDir, log)
		if err != nil {
			return fmt.Errorf("scripting: %w", err)
		}
		defer engine.Close()
		if engine.HasClassifier() {
			svc.SetImportanceHook(engine.ClassifyImportance)
			printOK("importance classifier loaded")
		}
		agents.SetPriority(engine.PathPriority)
		printOK("path priority loaded")
		fmt.Println()
	}

	// 6. Create systems and register with runner
	runner := coresys.NewRunner()
	inputSys := system.NewInputSystem(cfg.Sim.Agents+1024, 0, bus, ecsWorld, svc, log)
	pathing := system.NewPathRequestSystem(svc, coresys.NewBudget(cfg.Budget.PathBudget, cfg.Budget.MaxCarry))
	rebuilds := system.NewRebuildSystem(svc, log)
	var controlSrv *control.Server
	if cfg.Control.Enabled {
		controlSrv, err = control.NewServer(cfg.Control.Listen, cfg.Control.InQueue, cfg.Control.OutQueue, cfg.Control.MaxPerSec, log)
		if err != nil {
			return fmt.Errorf("control server: %w", err)
		}
		go controlSrv.AcceptLoop()
		reg := control.NewRegistry(log)
		system.RegisterControlCommands(reg, inputSys, svc)
		runner.Register(system.NewControlSystem(controlSrv, reg, cfg.Control.MaxPerTick, log))
	}
	runner.Register(inputSys)
	runner.Register(system.NewEventDispatchSystem(bus, svc, log))
	runner.Register(agents)
	runner.Register(pathing)
	runner.Register(rebuilds)
	runner.Register(system.NewTickPruneSystem(svc, cfg.Ticks.StateTimeout, log))
	runner.Register(system.NewCleanupSystem(ecsWorld))

	// 7. Metrics
	var collector *metrics.Collector
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		collector = metrics.New(reg)
		pathing.OnServed = collector.ObservePathBatch
		rebuilds.OnFlush = func(r rebuild.Result) { collector.ObserveRebuild(r.Duration) }
		collector.Publish(d)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	// 8. Spawn agents
	spawned := spawnAgents(inputSys, svc, cfg.Sim.Agents, cfg.Sim.AgentSpeed, rng)
	printSection("Agents")
	printStat("Queued spawns", spawned)
	fmt.Println()

	// 9. Start simulation loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Sim.TickRate)
	defer ticker.Stop()

	printSection("Ready")
	if controlSrv != nil {
		printReady(fmt.Sprintf("control port %s", controlSrv.Addr().String()))
	}
	if metricsSrv != nil {
		printReady(fmt.Sprintf("metrics on http://%s/metrics", cfg.Metrics.Listen))
	}
	printReady(fmt.Sprintf("simulation loop started (tick: %s)", cfg.Sim.TickRate))
	fmt.Println()

	statTicks := int(statInterval / cfg.Sim.TickRate)
	if statTicks < 1 {
		statTicks = 1
	}
	tickCount := 0

	for {
		select {
		case <-ticker.C:
			began := time.Now()
			runner.Tick(cfg.Sim.TickRate)
			if collector != nil {
				collector.ObserveTick(time.Since(began))
			}
			tickCount++
			if tickCount%statTicks == 0 {
				d := svc.Diagnostics()
				if collector != nil {
					collector.Publish(d)
				}
				logStats(log, d)
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			if controlSrv != nil {
				controlSrv.Shutdown()
			}
			if metricsSrv != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := metricsSrv.Shutdown(ctx); err != nil {
					log.Warn("metrics server shutdown", zap.Error(err))
				}
				cancel()
			}
			logStats(log, svc.Diagnostics())
			log.Info("simulation stopped", zap.Int("ticks", tickCount))
			return nil
		}
	}
}

// loadWorld reads the configured layout, or makes an open field of the
// configured size when none is set.
func loadWorld(cfg *config.Config) (*world.State, error) {
	if cfg.Sim.WorldFile == "" {
		state := world.NewState(cfg.Sim.Cols, cfg.Sim.Rows, cfg.Grid.TileSize)
		printOK(fmt.Sprintf("open field %dx%d", cfg.Sim.Cols, cfg.Sim.Rows))
		return state, nil
	}
	layout, err := data.LoadLayout(cfg.Sim.WorldFile)
	if err != nil {
		return nil, err
	}
	state := layout.NewState()
	if err := layout.Apply(state); err != nil {
		return nil, err
	}
	printOK(fmt.Sprintf("layout %q loaded", layout.Name))
	return state, nil
}

// spawnAgents queues n agents on random open tiles. Tiles are drawn until
// n are placed or the attempts run out.
func spawnAgents(in *system.InputSystem, svc *nav.Service, n int, speed float64, rng *rand.Rand) int {
	g := svc.Grid()
	placed := 0
	for tries := 0; placed < n && tries < n*16; tries++ {
		col, row := rng.Intn(g.Cols()), rng.Intn(g.Rows())
		if g.Solid(g.Index(col, row)) {
			continue
		}
		if !in.Submit(system.Spawn{
			Name:  fmt.Sprintf("colonist-%d", placed+1),
			Pos:   g.Center(col, row),
			Speed: speed,
		}) {
			break
		}
		placed++
	}
	return placed
}

func logStats(log *zap.Logger, d nav.Diagnostics) {
	log.Info("navigation stats",
		zap.Int("agents", d.World.Agents),
		zap.Int("regions", d.Regions.Regions),
		zap.Int("path_found", d.Paths.Found),
		zap.Int("path_failed", d.Paths.Failed),
		zap.Int("cache_hits", d.Cache.Hits),
		zap.Int("cache_misses", d.Cache.Misses),
		zap.Int("queued", d.Cache.Queued),
		zap.Int("full_rebuilds", d.Rebuild.FullPasses),
		zap.Int("partial_rebuilds", d.Rebuild.PartialPasses),
		zap.Int("tick_skipped", d.Ticks.Skipped))
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

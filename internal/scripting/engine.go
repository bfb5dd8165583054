package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/l1jgo/navcore/internal/ticksched"
)

// Engine wraps a single gopher-lua VM for tunable simulation rules.
// Single-goroutine access only (simulation loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger

	errors int
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)

	// Core helpers first, then rule scripts
	for _, sub := range []string{"core", "ticks", "paths"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			e.vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	return e, nil
}

// NewEngineFromString creates an engine from inline source. Used by tests
// and the viewer's built-in rules.
func NewEngineFromString(src string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	if err := e.vm.DoString(src); err != nil {
		e.vm.Close()
		return nil, fmt.Errorf("load inline script: %w", err)
	}
	return e, nil
}

func newEngine(log *zap.Logger) *Engine {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	levels := vm.NewTable()
	for imp := ticksched.Minimal; imp <= ticksched.Critical; imp++ {
		levels.RawSetString(strings.ToUpper(imp.String()), lua.LString(imp.String()))
	}
	vm.SetGlobal("IMPORTANCE", levels)

	return &Engine{vm: vm, log: log}
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// HasClassifier reports whether classify_importance is defined.
func (e *Engine) HasClassifier() bool {
	return e.vm.GetGlobal("classify_importance") != lua.LNil
}

// ClassifyImportance calls the Lua classify_importance function. It matches
// ticksched.Hook. A nil return, an unknown level name, a missing function
// or a script error keeps the built-in classification.
//
// Lua signature: classify_importance(ctx) -> "minimal"|"low"|"normal"|"critical"|nil
// where ctx = {x, y, sleeping, in_combat, health, task, distance, on_screen,
// base, camera = {x, y, w, h, zoom}}.
func (e *Engine) ClassifyImportance(obs ticksched.Observation, cam ticksched.Camera, base ticksched.Importance) (ticksched.Importance, bool) {
	fn := e.vm.GetGlobal("classify_importance")
	if fn == lua.LNil {
		return base, false
	}

	t := e.vm.NewTable()
	t.RawSetString("x", lua.LNumber(obs.Pos.X))
	t.RawSetString("y", lua.LNumber(obs.Pos.Y))
	t.RawSetString("sleeping", lua.LBool(obs.Sleeping))
	t.RawSetString("in_combat", lua.LBool(obs.InCombat))
	t.RawSetString("health", lua.LNumber(obs.Health))
	t.RawSetString("task", lua.LString(obs.Task))
	t.RawSetString("distance", lua.LNumber(obs.Pos.Dist(cam.View.Center())))
	t.RawSetString("on_screen", lua.LBool(cam.View.Contains(obs.Pos)))
	t.RawSetString("base", lua.LString(base.String()))

	c := e.vm.NewTable()
	c.RawSetString("x", lua.LNumber(cam.View.X))
	c.RawSetString("y", lua.LNumber(cam.View.Y))
	c.RawSetString("w", lua.LNumber(cam.View.W))
	c.RawSetString("h", lua.LNumber(cam.View.H))
	c.RawSetString("zoom", lua.LNumber(cam.Zoom))
	t.RawSetString("camera", c)

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.scriptError("classify_importance", err)
		return base, false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)
	if result == lua.LNil {
		return base, false
	}
	imp, ok := ticksched.ParseImportance(lua.LVAsString(result))
	if !ok {
		e.log.Warn("lua classify_importance returned unknown level",
			zap.String("value", result.String()))
		return base, false
	}
	return imp, true
}

// PathPriority calls the Lua path_priority(task, importance) function.
// Higher values are served first. Without a script the importance level
// itself is the priority.
func (e *Engine) PathPriority(task string, imp ticksched.Importance) int {
	fn := e.vm.GetGlobal("path_priority")
	if fn == lua.LNil {
		return int(imp)
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LString(task), lua.LString(imp.String())); err != nil {
		e.scriptError("path_priority", err)
		return int(imp)
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)
	if n, ok := result.(lua.LNumber); ok {
		return int(n)
	}
	return int(imp)
}

// Errors returns the number of failed script calls so far.
func (e *Engine) Errors() int { return e.errors }

func (e *Engine) scriptError(name string, err error) {
	e.errors++
	e.log.Error("lua call error", zap.String("func", name), zap.Error(err))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}

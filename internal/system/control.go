package system

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/navcore/internal/control"
	"github.com/l1jgo/navcore/internal/core/ecs"
	"github.com/l1jgo/navcore/internal/core/event"
	coresys "github.com/l1jgo/navcore/internal/core/system"
	"github.com/l1jgo/navcore/internal/geom"
	"github.com/l1jgo/navcore/internal/grid"
	"github.com/l1jgo/navcore/internal/nav"
	"github.com/l1jgo/navcore/internal/ticksched"
)

// ControlSystem answers requests from control port clients. Edits become
// commands for the InputSystem; register it before the InputSystem so they
// apply in the same tick. Phase 0 (Input).
type ControlSystem struct {
	server     *control.Server
	registry   *control.Registry
	sessions   map[uint64]*control.Session
	maxPerTick int // per session
	log        *zap.Logger
}

func NewControlSystem(server *control.Server, registry *control.Registry, maxPerTick int, log *zap.Logger) *ControlSystem {
	return &ControlSystem{
		server:     server,
		registry:   registry,
		sessions:   make(map[uint64]*control.Session),
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *ControlSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *ControlSystem) Update(_ time.Duration) {
drain:
	for {
		select {
		case sess := <-s.server.NewSessions():
			s.sessions[sess.ID] = sess
		default:
			break drain
		}
	}

	for id, sess := range s.sessions {
		if sess.IsClosed() {
			delete(s.sessions, id)
			s.log.Info("control client disconnected", zap.Uint64("session", id))
			continue
		}
		s.serve(sess)
	}
}

func (s *ControlSystem) serve(sess *control.Session) {
	for n := 0; s.maxPerTick <= 0 || n < s.maxPerTick; n++ {
		select {
		case line := <-sess.InQueue:
			sess.Reply(control.FormatReply(s.registry.Dispatch(line)))
		default:
			return
		}
	}
}

// Sessions returns the number of connected clients.
func (s *ControlSystem) Sessions() int { return len(s.sessions) }

// RegisterControlCommands installs the control verbs. Tile coordinates are
// columns and rows; agent positions are world units.
func RegisterControlCommands(reg *control.Registry, in *InputSystem, svc *nav.Service) {
	tileRect := func(a *control.Args, sized bool) geom.Rect {
		tr := geom.TileRect{Col: a.Int("col"), Row: a.Int("row"), W: 1, H: 1}
		if sized {
			tr.W, tr.H = a.Int("w"), a.Int("h")
		}
		return svc.Grid().WorldRect(tr)
	}
	submit := func(cmd Command) (string, error) {
		if !in.Submit(cmd) {
			return "", fmt.Errorf("command queue full")
		}
		return "", nil
	}
	mutate := func(m event.Mutation) (string, error) { return submit(Mutate{Mutation: m}) }
	point := func(a *control.Args) geom.Point { return geom.Pt(a.Float("x"), a.Float("y")) }

	reg.Register("wall", "wall <col> <row> <w> <h>", func(a *control.Args) (string, error) {
		r := tileRect(a, true)
		if err := a.Err(); err != nil {
			return "", err
		}
		return mutate(event.Mutation{Kind: event.PlaceBuilding, Name: "wall", Rect: r, Blocking: true})
	})
	reg.Register("floor", "floor <col> <row> <w> <h>", func(a *control.Args) (string, error) {
		r := tileRect(a, true)
		if err := a.Err(); err != nil {
			return "", err
		}
		return mutate(event.Mutation{Kind: event.PlaceBuilding, Name: "floor", Rect: r})
	})
	reg.Register("door", "door <col> <row>", func(a *control.Args) (string, error) {
		r := tileRect(a, false)
		if err := a.Err(); err != nil {
			return "", err
		}
		return mutate(event.Mutation{Kind: event.PlaceBuilding, Name: "door", Rect: r, Blocking: true, Door: true})
	})
	reg.Register("remove", "remove <col> <row> <w> <h>", func(a *control.Args) (string, error) {
		r := tileRect(a, true)
		if err := a.Err(); err != nil {
			return "", err
		}
		return mutate(event.Mutation{Kind: event.RemoveBuilding, Rect: r})
	})
	reg.Register("tree", "tree <col> <row>", func(a *control.Args) (string, error) {
		r := tileRect(a, false)
		if err := a.Err(); err != nil {
			return "", err
		}
		return mutate(event.Mutation{Kind: event.PlaceResource, Name: "tree", Rect: r, Blocking: true})
	})
	reg.Register("harvest", "harvest <col> <row> <w> <h>", func(a *control.Args) (string, error) {
		r := tileRect(a, true)
		if err := a.Err(); err != nil {
			return "", err
		}
		return mutate(event.Mutation{Kind: event.RemoveResource, Rect: r})
	})
	reg.Register("road", "road <floor|dirt|stone|paved|none> <col> <row> <w> <h>", func(a *control.Args) (string, error) {
		name := a.String("class")
		r := tileRect(a, true)
		if err := a.Err(); err != nil {
			return "", err
		}
		class, ok := grid.ParseRoadClass(name)
		if !ok {
			return "", fmt.Errorf("unknown road class %q", name)
		}
		return mutate(event.Mutation{Kind: event.PaintRoad, Rect: r, Road: class})
	})
	reg.Register("mine", "mine <col> <row>", func(a *control.Args) (string, error) {
		col, row := a.Int("col"), a.Int("row")
		if err := a.Err(); err != nil {
			return "", err
		}
		return mutate(event.Mutation{Kind: event.MineTile, Col: col, Row: row})
	})

	reg.Register("spawn", "spawn <x> <y> [speed] [task]", func(a *control.Args) (string, error) {
		pos := point(a)
		speed := a.OptFloat("speed", 1)
		task := a.OptString("")
		if err := a.Err(); err != nil {
			return "", err
		}
		return submit(Spawn{Name: "remote", Pos: pos, Speed: speed, Task: task})
	})
	reg.Register("destroy", "destroy <agent>", func(a *control.Args) (string, error) {
		id := ecs.EntityID(a.Uint("agent"))
		if err := a.Err(); err != nil {
			return "", err
		}
		return submit(Destroy{ID: id})
	})
	reg.Register("goal", "goal <agent> <x> <y>", func(a *control.Args) (string, error) {
		id := ecs.EntityID(a.Uint("agent"))
		goal := point(a)
		if err := a.Err(); err != nil {
			return "", err
		}
		return submit(SetGoal{ID: id, Goal: goal})
	})
	reg.Register("task", "task <agent> <name>", func(a *control.Args) (string, error) {
		id := ecs.EntityID(a.Uint("agent"))
		task := a.String("name")
		if err := a.Err(); err != nil {
			return "", err
		}
		ag, ok := svc.State().Agent(id)
		if !ok {
			return "", fmt.Errorf("no agent %d", id)
		}
		return submit(SetTask{ID: id, Task: task, InCombat: ag.InCombat, Sleeping: ag.Sleeping, Health: ag.Health})
	})
	reg.Register("camera", "camera <x> <y> <w> <h> [zoom]", func(a *control.Args) (string, error) {
		view := geom.Rect{X: a.Float("x"), Y: a.Float("y"), W: a.Float("w"), H: a.Float("h")}
		zoom := a.OptFloat("zoom", 1)
		if err := a.Err(); err != nil {
			return "", err
		}
		return submit(SetCamera{Camera: ticksched.Camera{View: view, Zoom: zoom}})
	})
	reg.Register("newgame", "newgame", func(a *control.Args) (string, error) {
		if err := a.Err(); err != nil {
			return "", err
		}
		return submit(NewGame{})
	})

	reg.Register("agents", "agents", func(a *control.Args) (string, error) {
		if err := a.Err(); err != nil {
			return "", err
		}
		agents := svc.State().Agents()
		lines := make([]string, 0, agents.Len())
		for _, id := range agents.SortedIDs() {
			ag, _ := agents.Get(id)
			lines = append(lines, fmt.Sprintf("%d %s %.2f,%.2f %s", uint64(id), ag.Name, ag.Pos.X, ag.Pos.Y, svc.Importance(id)))
		}
		return control.JoinLines(lines), nil
	})
	reg.Register("reach", "reach <x1> <y1> <x2> <y2>", func(a *control.Args) (string, error) {
		from, to := point(a), point(a)
		if err := a.Err(); err != nil {
			return "", err
		}
		return fmt.Sprintf("%v", svc.IsReachable(from, to)), nil
	})
	reg.Register("path", "path <x1> <y1> <x2> <y2>", func(a *control.Args) (string, error) {
		from, to := point(a), point(a)
		if err := a.Err(); err != nil {
			return "", err
		}
		path, ok := svc.FindPath(from, to)
		if !ok {
			return "", fmt.Errorf("no path")
		}
		pts := make([]string, len(path))
		for i, p := range path {
			pts[i] = fmt.Sprintf("%.2f,%.2f", p.X, p.Y)
		}
		return strings.Join(pts, " "), nil
	})
	reg.Register("stats", "stats", func(a *control.Args) (string, error) {
		if err := a.Err(); err != nil {
			return "", err
		}
		d := svc.Diagnostics()
		return fmt.Sprintf("agents=%d regions=%d rooms=%d dirty=%d queued=%d hits=%d misses=%d full=%d partial=%d version=%d",
			d.World.Agents, d.Regions.Regions, d.Regions.Rooms, d.Grid.DirtySections, d.Cache.Queued,
			d.Cache.Hits, d.Cache.Misses, d.Rebuild.FullPasses, d.Rebuild.PartialPasses, d.GlobalVersion), nil
	})
}

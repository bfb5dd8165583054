package main

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"github.com/l1jgo/navcore/internal/core/event"
	coresys "github.com/l1jgo/navcore/internal/core/system"
	"github.com/l1jgo/navcore/internal/geom"
	"github.com/l1jgo/navcore/internal/grid"
	"github.com/l1jgo/navcore/internal/nav"
	"github.com/l1jgo/navcore/internal/pathcache"
	"github.com/l1jgo/navcore/internal/region"
	"github.com/l1jgo/navcore/internal/system"
	"github.com/l1jgo/navcore/internal/ticksched"
)

const statusLines = 3

var regionColors = []tcell.Color{
	tcell.ColorTeal, tcell.ColorOlive, tcell.ColorGreen, tcell.ColorNavy,
	tcell.ColorPurple, tcell.ColorMaroon, tcell.ColorSilver, tcell.ColorDarkCyan,
}

var (
	styleWall   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleDoor   = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleRoad   = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleMud    = tcell.StyleDefault.Foreground(tcell.ColorSaddleBrown)
	styleAgent  = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	stylePath   = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleStatus = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorWhite)
	dirtyBG     = tcell.NewRGBColor(70, 20, 20)
)

// viewer owns the screen and drives the runner from its own loop.
type viewer struct {
	screen tcell.Screen
	svc    *nav.Service
	runner *coresys.Runner
	input  *system.InputSystem
	log    *zap.Logger

	col, row       int // cursor tile
	offCol, offRow int // top-left tile on screen
	paused         bool
	regionColors   bool
	ticks          int

	mark    geom.Point
	hasMark bool
	path    pathcache.Path
	status  string
}

func newViewer(screen tcell.Screen, svc *nav.Service, runner *coresys.Runner, input *system.InputSystem, log *zap.Logger) *viewer {
	return &viewer{
		screen:       screen,
		svc:          svc,
		runner:       runner,
		input:        input,
		log:          log,
		regionColors: true,
		status:       "arrows move · r road · w wall · d door · x remove · t tree · m mine · a/f path · space pause · q quit",
	}
}

func (v *viewer) loop(tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			eventChan <- v.screen.PollEvent()
		}
	}()

	v.draw()
	for {
		select {
		case ev := <-eventChan:
			if !v.handle(ev, tick) {
				return
			}
			v.draw()
		case <-ticker.C:
			if v.paused {
				continue
			}
			v.step(tick)
			v.draw()
		}
	}
}

func (v *viewer) step(tick time.Duration) {
	v.runner.Tick(tick)
	v.ticks++
}

// submit queues a command. While paused only the input and dispatch phases
// run, so the marked sections stay visible until the next step.
func (v *viewer) submit(cmd system.Command) {
	if !v.input.Submit(cmd) {
		v.status = "command queue full"
		return
	}
	if v.paused {
		v.runner.TickPhase(coresys.PhaseInput, 0)
		v.runner.TickPhase(coresys.PhasePreUpdate, 0)
	}
}

func (v *viewer) cursorRect() geom.Rect {
	return v.svc.Grid().WorldRect(geom.TileRect{Col: v.col, Row: v.row, W: 1, H: 1})
}

func (v *viewer) handle(ev tcell.Event, tick time.Duration) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		v.screen.Sync()
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyUp:
			v.moveCursor(0, -1)
		case tcell.KeyDown:
			v.moveCursor(0, 1)
		case tcell.KeyLeft:
			v.moveCursor(-1, 0)
		case tcell.KeyRight:
			v.moveCursor(1, 0)
		case tcell.KeyRune:
			return v.handleRune(ev.Rune(), tick)
		}
	}
	return true
}

func (v *viewer) handleRune(r rune, tick time.Duration) bool {
	rect := v.cursorRect()
	switch r {
	case 'q':
		return false
	case ' ':
		v.paused = !v.paused
	case '.':
		v.step(tick)
	case 'r':
		v.submit(system.Mutate{Mutation: event.Mutation{Kind: event.PaintRoad, Rect: rect, Road: grid.RoadPaved}})
	case 'w':
		v.submit(system.Mutate{Mutation: event.Mutation{Kind: event.PlaceBuilding, Name: "wall", Rect: rect, Blocking: true}})
	case 'd':
		v.submit(system.Mutate{Mutation: event.Mutation{Kind: event.PlaceBuilding, Name: "door", Rect: rect, Blocking: true, Door: true}})
	case 'x':
		v.submit(system.Mutate{Mutation: event.Mutation{Kind: event.RemoveBuilding, Rect: rect}})
	case 't':
		v.submit(system.Mutate{Mutation: event.Mutation{Kind: event.PlaceResource, Name: "tree", Rect: rect, Blocking: true}})
	case 'c':
		v.submit(system.Mutate{Mutation: event.Mutation{Kind: event.RemoveResource, Rect: rect}})
	case 'm':
		v.submit(system.Mutate{Mutation: event.Mutation{Kind: event.MineTile, Col: v.col, Row: v.row}})
	case 'a':
		v.mark, v.hasMark = rect.Center(), true
		v.path = nil
		v.status = fmt.Sprintf("path start at %d,%d", v.col, v.row)
	case 'f':
		v.findPath(rect.Center())
	case 'g':
		v.regionColors = !v.regionColors
	case 's':
		v.svc.SetSmoothing(!v.svc.Smoothing())
		v.status = fmt.Sprintf("smoothing %v", v.svc.Smoothing())
	case 'v':
		w, h := v.screen.Size()
		ts := v.svc.Grid().TileSize()
		v.submit(system.SetCamera{Camera: ticksched.Camera{
			View: geom.Rect{X: float64(v.offCol) * ts, Y: float64(v.offRow) * ts, W: float64(w) * ts, H: float64(h-statusLines) * ts},
			Zoom: 1,
		}})
		v.status = "camera follows the view"
	case 'N':
		v.submit(system.NewGame{})
		v.path, v.hasMark = nil, false
		v.log.Info("new game from viewer", zap.Int("tick", v.ticks))
	}
	return true
}

func (v *viewer) findPath(goal geom.Point) {
	if !v.hasMark {
		v.status = "mark a start with 'a' first"
		return
	}
	if !v.svc.IsReachable(v.mark, goal) {
		v.path = nil
		v.status = "unreachable (region check)"
		return
	}
	path, ok := v.svc.FindPath(v.mark, goal)
	if !ok {
		v.path = nil
		v.status = "no path"
		return
	}
	v.path = path
	v.status = fmt.Sprintf("path with %d waypoints", len(path))
}

func (v *viewer) moveCursor(dc, dr int) {
	g := v.svc.Grid()
	if g.InBounds(v.col+dc, v.row+dr) {
		v.col += dc
		v.row += dr
	}
	w, h := v.screen.Size()
	h -= statusLines
	switch {
	case v.col < v.offCol:
		v.offCol = v.col
	case v.col >= v.offCol+w:
		v.offCol = v.col - w + 1
	}
	switch {
	case v.row < v.offRow:
		v.offRow = v.row
	case v.row >= v.offRow+h:
		v.offRow = v.row - h + 1
	}
}

func (v *viewer) draw() {
	v.screen.Clear()
	w, h := v.screen.Size()
	mapH := h - statusLines
	g := v.svc.Grid()
	regions := v.svc.Regions()

	for y := 0; y < mapH; y++ {
		row := v.offRow + y
		if row >= g.Rows() {
			break
		}
		for x := 0; x < w; x++ {
			col := v.offCol + x
			if col >= g.Cols() {
				break
			}
			ch, style := v.tile(g, regions.RegionOfTile(g.Index(col, row)), col, row)
			if g.IsDirty(g.SectionOf(col, row)) {
				style = style.Background(dirtyBG)
			}
			v.screen.SetContent(x, y, ch, nil, style)
		}
	}

	for _, p := range v.path {
		v.plot(p, '*', stylePath)
	}
	agents := v.svc.State().Agents()
	for _, id := range agents.SortedIDs() {
		a, _ := agents.Get(id)
		v.plot(a.Pos, '@', styleAgent)
	}

	if x, y := v.col-v.offCol, v.row-v.offRow; y < mapH {
		ch, _, style, _ := v.screen.GetContent(x, y)
		v.screen.SetContent(x, y, ch, nil, style.Reverse(true))
	}
	v.drawStatus(w, mapH)
	v.screen.Show()
}

func (v *viewer) tile(g *grid.Grid, rid region.ID, col, row int) (rune, tcell.Style) {
	i := g.Index(col, row)
	switch {
	case g.Solid(i):
		return '#', styleWall
	case g.Door(i):
		return '+', styleDoor
	case g.IsRoadLike(i):
		return '=', styleRoad
	case g.Cost(i) > grid.DefaultCost:
		return '~', styleMud
	}
	style := tcell.StyleDefault
	if v.regionColors && rid > 0 {
		style = style.Foreground(regionColors[int(rid)%len(regionColors)])
	}
	return '.', style
}

func (v *viewer) plot(p geom.Point, ch rune, style tcell.Style) {
	col, row, ok := v.svc.Grid().TileAt(p)
	if !ok {
		return
	}
	v.screen.SetContent(col-v.offCol, row-v.offRow, ch, nil, style)
}

func (v *viewer) drawStatus(w, y int) {
	d := v.svc.Diagnostics()
	state := "running"
	if v.paused {
		state = "paused"
	}
	lines := []string{
		fmt.Sprintf(" tick %d  %s  cursor %d,%d  region %d", v.ticks, state, v.col, v.row,
			v.svc.Regions().RegionOfTile(v.svc.Grid().Index(v.col, v.row))),
		fmt.Sprintf(" regions %d  rooms %d  dirty %d/%d  queued %d  cache %d/%d  rebuilds %d full %d partial",
			d.Regions.Regions, d.Regions.Rooms, d.Grid.DirtySections, d.Grid.Sections, d.Cache.Queued,
			d.Cache.Hits, d.Cache.Misses, d.Rebuild.FullPasses, d.Rebuild.PartialPasses),
		" " + v.status,
	}
	for i, line := range lines {
		runes := []rune(line)
		for x := 0; x < w; x++ {
			ch := ' '
			if x < len(runes) {
				ch = runes[x]
			}
			v.screen.SetContent(x, y+i, ch, nil, styleStatus)
		}
	}
}

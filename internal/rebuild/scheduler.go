package rebuild

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/navcore/internal/geom"
	"github.com/l1jgo/navcore/internal/region"
)

// Target performs the actual rebuild work.
type Target interface {
	// SectionsFor lists the grid sections a partial request covers.
	SectionsFor(area geom.Circle) []int
	// DirtySections lists sections already marked dirty on the grid.
	DirtySections() []int
	// RebuildSections rebuilds grid and regions for the given sections and
	// returns the changed region ids. region.ErrInconsistent signals that
	// the result failed its consistency check.
	RebuildSections(sections []int) ([]region.ID, error)
	// RebuildFull rebuilds everything and returns the changed region ids.
	RebuildFull() []region.ID
}

// Versions receives the changed region ids after a pass.
type Versions interface {
	MarkChanged(ids ...region.ID)
}

// Invalidator drops cached results that depend on changed regions.
type Invalidator interface {
	InvalidateForRegions(ids []region.ID) int
}

var errPartialAborted = errors.New("partial rebuild aborted")

// Request is a pending rebuild: the whole world, or a disc around a change.
type Request struct {
	Full bool
	Area geom.Circle
}

// Result describes one Flush.
type Result struct {
	Ran         bool
	Full        bool
	Sections    int
	Changed     []region.ID
	Invalidated int
	Duration    time.Duration
}

type Stats struct {
	Requested     int
	Coalesced     int
	FullPasses    int
	PartialPasses int
	FailedTasks   int
	SelfHeals     int
	LastDuration  time.Duration
}

// Config controls failure handling.
type Config struct {
	// Assertions panics on an inconsistent partial rebuild instead of
	// healing it with a full rebuild.
	Assertions bool
}

// Scheduler collects rebuild requests during a tick and executes them at
// most once per Flush.
type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	target   Target
	versions Versions
	cache    Invalidator

	full     bool
	partials []geom.Circle
	stats    Stats
}

func NewScheduler(cfg Config, target Target, versions Versions, cache Invalidator, log *zap.Logger) *Scheduler {
	return &Scheduler{
		log:      log,
		cfg:      cfg,
		target:   target,
		versions: versions,
		cache:    cache,
	}
}

// RequestFull schedules a full rebuild. Every pending partial is absorbed.
func (s *Scheduler) RequestFull() {
	s.stats.Requested++
	if s.full {
		s.stats.Coalesced++
		return
	}
	s.stats.Coalesced += len(s.partials)
	s.partials = s.partials[:0]
	s.full = true
}

// RequestPartial schedules a rebuild of the sections within radius of
// center. A disc inside a pending one is dropped; pending discs inside the
// new one are replaced by it.
func (s *Scheduler) RequestPartial(center geom.Point, radius float64) {
	s.stats.Requested++
	if s.full {
		s.stats.Coalesced++
		return
	}
	if !center.IsFinite() || math.IsNaN(radius) || radius < 0 {
		s.log.Warn("ignoring malformed rebuild request",
			zap.Float64("x", center.X), zap.Float64("y", center.Y), zap.Float64("radius", radius))
		return
	}
	c := geom.Circle{Center: center, Radius: radius}
	for _, p := range s.partials {
		if p.ContainsCircle(c) {
			s.stats.Coalesced++
			return
		}
	}
	kept := s.partials[:0]
	for _, p := range s.partials {
		if c.ContainsCircle(p) {
			s.stats.Coalesced++
			continue
		}
		kept = append(kept, p)
	}
	s.partials = append(kept, c)
}

// Pending returns the requests that would run on the next Flush.
func (s *Scheduler) Pending() []Request {
	if s.full {
		return []Request{{Full: true}}
	}
	out := make([]Request, len(s.partials))
	for i, p := range s.partials {
		out[i] = Request{Area: p}
	}
	return out
}

func (s *Scheduler) Stats() Stats { return s.stats }

// Flush runs the pending work as a single pass: either one full rebuild or
// one rebuild over the union of all partial sections and any sections the
// grid already holds dirty. Changed regions are then version-bumped and
// their cached paths invalidated.
func (s *Scheduler) Flush() Result {
	full := s.full
	partials := s.partials
	s.full = false
	s.partials = nil

	var dirty []int
	if !full {
		s.safe("collect dirty sections", func() { dirty = s.target.DirtySections() })
		if len(partials) == 0 && len(dirty) == 0 {
			return Result{}
		}
	}

	start := time.Now()
	res := Result{Ran: true, Full: full}
	if full {
		s.safe("full rebuild", func() { res.Changed = s.target.RebuildFull() })
		s.stats.FullPasses++
	} else {
		sections := dirty
		for _, p := range partials {
			area := p
			s.safe("collect sections", func() {
				sections = append(sections, s.target.SectionsFor(area)...)
			})
		}
		slices.Sort(sections)
		sections = slices.Compact(sections)
		res.Sections = len(sections)

		var err error
		if !s.safe("partial rebuild", func() { res.Changed, err = s.target.RebuildSections(sections) }) {
			// sections rebuilt before the panic no longer match the regions
			res.Changed, err = nil, errPartialAborted
		}
		s.stats.PartialPasses++
		if errors.Is(err, region.ErrInconsistent) || errors.Is(err, errPartialAborted) {
			if s.cfg.Assertions {
				panic(fmt.Errorf("partial rebuild of %d sections: %w", len(sections), err))
			}
			s.log.Warn("partial rebuild not usable, running full rebuild", zap.Error(err))
			s.stats.SelfHeals++
			s.safe("full rebuild", func() { res.Changed = s.target.RebuildFull() })
			s.stats.FullPasses++
			res.Full = true
		} else if err != nil {
			s.stats.FailedTasks++
			s.log.Error("partial rebuild failed", zap.Error(err))
		}
	}

	if len(res.Changed) > 0 {
		s.versions.MarkChanged(res.Changed...)
		res.Invalidated = s.cache.InvalidateForRegions(res.Changed)
	}
	res.Duration = time.Since(start)
	s.stats.LastDuration = res.Duration
	s.log.Debug("rebuild flushed",
		zap.Bool("full", res.Full),
		zap.Int("sections", res.Sections),
		zap.Int("changed", len(res.Changed)),
		zap.Int("invalidated", res.Invalidated),
		zap.Duration("took", res.Duration))
	return res
}

// safe runs one task, logging and counting a panic instead of letting it
// take down the tick. It reports whether fn returned normally.
func (s *Scheduler) safe(task string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.stats.FailedTasks++
			s.log.Error("rebuild task panicked", zap.String("task", task), zap.Any("panic", r))
			ok = false
		}
	}()
	fn()
	return true
}

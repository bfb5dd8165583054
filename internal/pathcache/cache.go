package pathcache

import (
	"container/heap"
	"container/list"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/navcore/internal/core/ecs"
	"github.com/l1jgo/navcore/internal/geom"
	"github.com/l1jgo/navcore/internal/region"
)

// Path is a list of waypoints in world coordinates.
type Path []geom.Point

// Clone returns an independent copy of p.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Callback receives the outcome of a request. ok is false when no path exists.
type Callback func(path Path, ok bool)

type RequestID uint64

// Request is a queued path computation for one agent.
type Request struct {
	ID       RequestID
	Agent    ecs.EntityID
	Start    geom.Point
	End      geom.Point
	Priority int
	Created  time.Time
	Callback Callback

	seq    uint64
	popped bool
}

// Config bounds the cache. Zero values disable the bound.
type Config struct {
	MaxEntries int
	MaxAge     time.Duration
	TileSize   float64 // quantisation step for cache keys
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Entries          int
	Queued           int
	Hits             int
	Misses           int
	Stale            int
	Expired          int
	Evicted          int
	Invalidated      int
	Cancelled        int
	Superseded       int
	Completed        int
	DroppedCallbacks int
}

type key struct {
	sc, sr, ec, er int32
}

type entry struct {
	key     key
	path    Path
	regions []region.ID
	snap    region.Snapshot
	created time.Time
	hits    int
	elem    *list.Element
}

// Cache stores computed paths keyed by start and end tile and owns the
// per-agent request queue. At most one request per agent is live; a newer
// request replaces the older one and the older callback never fires.
type Cache struct {
	log      *zap.Logger
	cfg      Config
	versions *region.VersionManager
	now      func() time.Time

	entries  map[key]*entry
	order    *list.List // oldest first
	byRegion map[region.ID]map[key]struct{}

	queue  requestQueue
	live   map[ecs.EntityID]*Request
	nextID RequestID
	seq    uint64

	stats Stats
}

func New(cfg Config, versions *region.VersionManager, log *zap.Logger) *Cache {
	if cfg.TileSize <= 0 {
		cfg.TileSize = 1
	}
	return &Cache{
		log:      log,
		cfg:      cfg,
		versions: versions,
		now:      time.Now,
		entries:  make(map[key]*entry),
		order:    list.New(),
		byRegion: make(map[region.ID]map[key]struct{}),
		live:     make(map[ecs.EntityID]*Request),
	}
}

// SetClock replaces the time source.
func (c *Cache) SetClock(now func() time.Time) { c.now = now }

func (c *Cache) keyOf(start, end geom.Point) key {
	q := func(v float64) int32 { return int32(math.Floor(v / c.cfg.TileSize)) }
	return key{q(start.X), q(start.Y), q(end.X), q(end.Y)}
}

// Lookup returns a cached path from start to end. Entries whose regions
// changed or that outlived MaxAge are evicted here and reported as misses.
// The returned path is a copy ending at exactly end: when end differs from
// the stored goal a final step inside the goal tile is appended.
func (c *Cache) Lookup(start, end geom.Point) (Path, bool) {
	if !start.IsFinite() || !end.IsFinite() {
		return nil, false
	}
	k := c.keyOf(start, end)
	e, ok := c.entries[k]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if !c.versions.Validate(e.snap) {
		c.remove(e)
		c.stats.Stale++
		c.stats.Misses++
		return nil, false
	}
	if c.cfg.MaxAge > 0 && c.now().Sub(e.created) > c.cfg.MaxAge {
		c.remove(e)
		c.stats.Expired++
		c.stats.Misses++
		return nil, false
	}
	e.hits++
	c.stats.Hits++
	out := e.path.Clone()
	if last := out[len(out)-1]; last != end {
		// both goals share a tile, so the extra step cannot cross a wall
		out = append(out, end)
	}
	return out, true
}

// Store records a path that depends on the given regions. Empty paths are
// ignored.
func (c *Cache) Store(start, end geom.Point, path Path, regions []region.ID) {
	if len(path) == 0 || !start.IsFinite() || !end.IsFinite() {
		return
	}
	k := c.keyOf(start, end)
	if old, ok := c.entries[k]; ok {
		c.remove(old)
	}
	e := &entry{
		key:     k,
		path:    path.Clone(),
		regions: append([]region.ID(nil), regions...),
		snap:    c.versions.CreateSnapshot(regions),
		created: c.now(),
	}
	e.elem = c.order.PushBack(e)
	c.entries[k] = e
	for _, id := range e.regions {
		set, ok := c.byRegion[id]
		if !ok {
			set = make(map[key]struct{})
			c.byRegion[id] = set
		}
		set[k] = struct{}{}
	}
	for c.cfg.MaxEntries > 0 && len(c.entries) > c.cfg.MaxEntries {
		oldest := c.order.Front().Value.(*entry)
		c.remove(oldest)
		c.stats.Evicted++
	}
}

func (c *Cache) remove(e *entry) {
	delete(c.entries, e.key)
	c.order.Remove(e.elem)
	for _, id := range e.regions {
		if set, ok := c.byRegion[id]; ok {
			delete(set, e.key)
			if len(set) == 0 {
				delete(c.byRegion, id)
			}
		}
	}
}

// InvalidateForRegions drops every entry whose snapshot holds an outdated
// version of a listed region and returns how many were dropped. Entries still
// at the current version survive.
func (c *Cache) InvalidateForRegions(ids []region.ID) int {
	n := 0
	for _, id := range ids {
		set, ok := c.byRegion[id]
		if !ok {
			continue
		}
		cur := c.versions.Version(id)
		for k := range set {
			e, ok := c.entries[k]
			if !ok {
				continue
			}
			if v, _ := e.snap.Version(id); v == cur {
				continue
			}
			c.remove(e)
			n++
		}
	}
	c.stats.Invalidated += n
	return n
}

// RequestPath answers from the cache when possible, invoking cb before
// returning (0, false). Otherwise it cancels the agent's live request and
// queues a new one.
func (c *Cache) RequestPath(agent ecs.EntityID, start, end geom.Point, priority int, cb Callback) (RequestID, bool) {
	if path, ok := c.Lookup(start, end); ok {
		if c.drop(agent) {
			c.stats.Superseded++
		}
		if cb != nil {
			cb(path, true)
		}
		return 0, false
	}
	if c.drop(agent) {
		c.stats.Superseded++
	}
	c.nextID++
	c.seq++
	req := &Request{
		ID:       c.nextID,
		Agent:    agent,
		Start:    start,
		End:      end,
		Priority: priority,
		Created:  c.now(),
		Callback: cb,
		seq:      c.seq,
	}
	c.live[agent] = req
	heap.Push(&c.queue, req)
	c.compact()
	return req.ID, true
}

// Next pops the highest-priority live request. The request stays live until
// Complete is called for it or the agent issues or cancels another.
func (c *Cache) Next() (*Request, bool) {
	for c.queue.Len() > 0 {
		req := heap.Pop(&c.queue).(*Request)
		if c.live[req.Agent] != req {
			continue
		}
		req.popped = true
		return req, true
	}
	return nil, false
}

// Complete stores the result of req and invokes its callback if req is still
// the agent's live request. regions are the regions the path passes through.
func (c *Cache) Complete(req *Request, path Path, regions []region.ID) {
	c.stats.Completed++
	c.Store(req.Start, req.End, path, regions)
	if c.live[req.Agent] != req {
		c.stats.DroppedCallbacks++
		return
	}
	delete(c.live, req.Agent)
	if req.Callback != nil {
		var out Path
		if len(path) > 0 {
			out = path.Clone()
		}
		req.Callback(out, len(path) > 0)
	}
}

// Cancel drops the agent's live request. Its callback will not fire.
func (c *Cache) Cancel(agent ecs.EntityID) bool {
	if !c.drop(agent) {
		return false
	}
	c.stats.Cancelled++
	return true
}

func (c *Cache) drop(agent ecs.EntityID) bool {
	if _, ok := c.live[agent]; !ok {
		return false
	}
	delete(c.live, agent)
	return true
}

// Remove implements ecs.Removable.
func (c *Cache) Remove(id ecs.EntityID) { c.Cancel(id) }

// Live returns the agent's live request, if any.
func (c *Cache) Live(agent ecs.EntityID) (*Request, bool) {
	r, ok := c.live[agent]
	return r, ok
}

// QueueDepth counts live requests not yet handed out by Next.
func (c *Cache) QueueDepth() int {
	n := 0
	for _, r := range c.live {
		if !r.popped {
			n++
		}
	}
	return n
}

func (c *Cache) Len() int { return len(c.entries) }

func (c *Cache) Stats() Stats {
	st := c.stats
	st.Entries = len(c.entries)
	st.Queued = c.QueueDepth()
	return st
}

// Clear drops every entry and request without invoking callbacks.
func (c *Cache) Clear() {
	c.entries = make(map[key]*entry)
	c.order.Init()
	c.byRegion = make(map[region.ID]map[key]struct{})
	c.live = make(map[ecs.EntityID]*Request)
	c.queue = c.queue[:0]
	c.log.Debug("path cache cleared")
}

// compact rebuilds the heap once dead entries dominate it.
func (c *Cache) compact() {
	if c.queue.Len() < 64 || c.queue.Len() < 4*len(c.live) {
		return
	}
	kept := c.queue[:0]
	for _, r := range c.queue {
		if c.live[r.Agent] == r && !r.popped {
			kept = append(kept, r)
		}
	}
	for i := len(kept); i < len(c.queue); i++ {
		c.queue[i] = nil
	}
	c.queue = kept
	heap.Init(&c.queue)
}

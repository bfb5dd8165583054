package region

import (
	"errors"

	"github.com/l1jgo/navcore/internal/geom"
)

// ErrInconsistent is returned when the tile→region table and the region
// member lists disagree with each other or with the grid.
var ErrInconsistent = errors.New("region graph inconsistent with grid")

// ID identifies a region. A region's id is 1 + the smallest flat tile index
// among its members, so ids are reproducible from the tile layout alone.
// Zero means "no region" (solid tile).
type ID int32

// RoomID identifies a room: the smallest region id in it. Zero for door
// regions, which belong to no room.
type RoomID int32

// Kind separates ordinary walkable regions from doorway regions.
type Kind uint8

const (
	KindOpen Kind = iota
	KindDoor
)

func (k Kind) String() string {
	if k == KindDoor {
		return "door"
	}
	return "open"
}

// Dir is the side of a region a link leaves through.
type Dir uint8

const (
	East Dir = iota
	West
	South
	North
)

var dirOffsets = [4][2]int{East: {1, 0}, West: {-1, 0}, South: {0, 1}, North: {0, -1}}

func (d Dir) String() string {
	return [...]string{"east", "west", "south", "north"}[d]
}

// Link describes one contiguous stretch of shared boundary with a neighbor.
// Col/Row is the first boundary tile inside the owning region; the stretch
// runs Span tiles along the boundary (down for East/West, right for
// South/North).
type Link struct {
	To   ID
	Dir  Dir
	Col  int
	Row  int
	Span int
}

// Region is a connected set of passable tiles confined to one grid section.
type Region struct {
	ID        ID
	Kind      Kind
	Section   int
	Tiles     []int // ascending
	Neighbors []ID  // ascending
	Links     []Link
	Room      RoomID
	Objects   []uint64 // structure ids in or bordering the region, ascending
	Bounds    geom.TileRect

	touchesEdge bool
	sig         uint64
}

func (r *Region) Size() int { return len(r.Tiles) }

// Room is a set of open regions connected without passing a door.
type Room struct {
	ID       RoomID
	Regions  []ID
	Tiles    int
	Outdoors bool
}

// ObjectRef is a structure footprint known to the world state.
type ObjectRef struct {
	ID   uint64
	Rect geom.TileRect
}

// ObjectIndex answers which structures overlap a tile area.
type ObjectIndex interface {
	ObjectsIn(tr geom.TileRect) []ObjectRef
}

// Stats summarises the graph for diagnostics.
type Stats struct {
	Built         bool
	Regions       int
	DoorRegions   int
	Rooms         int
	OutdoorRooms  int
	AvgRegionSize float64
	FullBuilds    int
	PartialBuilds int
}

package grid

import "strings"

// RoadClass describes the paving painted on a tile. Road-like classes lower
// the tile cost into [MinRoadCost, MaxRoadCost].
type RoadClass uint8

const (
	RoadNone  RoadClass = iota
	RoadFloor           // constructed floor, faster than open ground but not road-like
	RoadDirt
	RoadStone
	RoadPaved
)

// Cost bounds. The heuristic in pathfind scales by the grid minimum cost, so
// nothing may ever drop below MinTileCost.
const (
	DefaultCost = 1.0
	MinTileCost = 0.5
	MaxTileCost = 8.0
	MinRoadCost = 0.5
	MaxRoadCost = 0.7
)

var roadCosts = [...]float64{
	RoadNone:  DefaultCost,
	RoadFloor: 0.9,
	RoadDirt:  0.7,
	RoadStone: 0.6,
	RoadPaved: 0.5,
}

var roadNames = [...]string{
	RoadNone:  "none",
	RoadFloor: "floor",
	RoadDirt:  "dirt",
	RoadStone: "stone",
	RoadPaved: "paved",
}

func (c RoadClass) String() string {
	if int(c) < len(roadNames) {
		return roadNames[c]
	}
	return "unknown"
}

// RoadLike reports whether agents should treat the tile as a road
// (corner preservation and centerline snapping in pathfind).
func (c RoadClass) RoadLike() bool {
	return c == RoadDirt || c == RoadStone || c == RoadPaved
}

// Cost returns the clamped movement cost of the class.
func (c RoadClass) Cost() float64 {
	if int(c) >= len(roadCosts) {
		return DefaultCost
	}
	return ClampCost(roadCosts[c], c.RoadLike())
}

// ParseRoadClass maps a config/layout name to a class.
func ParseRoadClass(s string) (RoadClass, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range roadNames {
		if name == s {
			return RoadClass(i), true
		}
	}
	return RoadNone, false
}

// ClampCost limits cost to the safe range for its tile kind.
func ClampCost(cost float64, roadLike bool) float64 {
	lo, hi := MinTileCost, MaxTileCost
	if roadLike {
		lo, hi = MinRoadCost, MaxRoadCost
	}
	if cost != cost || cost < lo { // NaN falls to the floor
		return lo
	}
	if cost > hi {
		return hi
	}
	return cost
}

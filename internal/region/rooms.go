package region

import "slices"

// buildRooms groups open regions connected without crossing a door region.
// A room whose tiles reach the map edge is outdoors.
func (gr *Graph) buildRooms() {
	gr.rooms = make(map[RoomID]*Room, len(gr.rooms))
	ids := gr.IDs()
	for _, id := range ids {
		gr.regions[id].Room = 0
	}
	for _, id := range ids {
		seed := gr.regions[id]
		if seed.Kind == KindDoor || seed.Room != 0 {
			continue
		}
		// ids ascend, so the first unassigned region is the room's minimum
		room := &Room{ID: RoomID(id)}
		seed.Room = room.ID
		gr.queue = append(gr.queue[:0], id)
		for head := 0; head < len(gr.queue); head++ {
			r := gr.regions[gr.queue[head]]
			room.Regions = append(room.Regions, r.ID)
			room.Tiles += len(r.Tiles)
			if r.touchesEdge {
				room.Outdoors = true
			}
			for _, n := range r.Neighbors {
				nr := gr.regions[n]
				if nr.Kind == KindDoor || nr.Room != 0 {
					continue
				}
				nr.Room = room.ID
				gr.queue = append(gr.queue, n)
			}
		}
		slices.Sort(room.Regions)
		gr.rooms[room.ID] = room
	}
}

// Rooms returns every room id, ascending.
func (gr *Graph) Rooms() []RoomID {
	out := make([]RoomID, 0, len(gr.rooms))
	for id := range gr.rooms {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

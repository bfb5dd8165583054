package event

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/l1jgo/navcore/internal/core/ecs"
)

func TestBusDeliversNextTick(t *testing.T) {
	b := NewBus()
	var got []MutationKind
	Subscribe(b, func(m Mutation) { got = append(got, m.Kind) })

	Emit(b, Mutation{Kind: PaintRoad})
	Emit(b, Mutation{Kind: MineTile})
	assert.Equal(t, 2, b.Pending())
	b.DispatchAll()
	assert.Empty(t, got, "nothing is visible before the swap")

	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, []MutationKind{PaintRoad, MineTile}, got)
	assert.Zero(t, b.Pending())

	b.SwapBuffers()
	b.DispatchAll()
	assert.Len(t, got, 2, "events are delivered once")
}

func TestBusRoutesByType(t *testing.T) {
	b := NewBus()
	var destroyed []ecs.EntityID
	mutations := 0
	Subscribe(b, func(e AgentDestroyed) { destroyed = append(destroyed, e.ID) })
	Subscribe(b, func(Mutation) { mutations++ })

	Emit(b, AgentDestroyed{ID: ecs.NewEntityID(3, 1)})
	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, []ecs.EntityID{ecs.NewEntityID(3, 1)}, destroyed)
	assert.Zero(t, mutations)
}

func TestMutationKindString(t *testing.T) {
	assert.Equal(t, "paint_road", PaintRoad.String())
	assert.Equal(t, "mutation(99)", MutationKind(99).String())
}

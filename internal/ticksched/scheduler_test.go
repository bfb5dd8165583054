package ticksched

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/l1jgo/navcore/internal/core/ecs"
	"github.com/l1jgo/navcore/internal/geom"
)

var cam = Camera{View: geom.Rect{X: 0, Y: 0, W: 40, H: 30}, Zoom: 1}

func newSched(cfg Config) *Scheduler {
	return New(cfg, rand.New(rand.NewSource(1)), zap.NewNop())
}

func TestClassify(t *testing.T) {
	s := newSched(DefaultConfig())
	center := cam.View.Center()
	far := geom.Pt(500, 500)
	tests := []struct {
		name string
		obs  Observation
		want Importance
	}{
		{"sleeping beats combat", Observation{Pos: center, Sleeping: true, InCombat: true, Health: 0.1}, Minimal},
		{"combat", Observation{Pos: far, InCombat: true, Health: 1}, Critical},
		{"low health", Observation{Pos: far, Health: 0.2}, Critical},
		{"on screen", Observation{Pos: geom.Pt(1, 1), Health: 1}, Normal},
		{"near center", Observation{Pos: center, Health: 1}, Normal},
		{"mid distance", Observation{Pos: geom.Pt(60, 15), Health: 1}, Low},
		{"far", Observation{Pos: far, Health: 1}, Minimal},
		{"important task off screen", Observation{Pos: far, Health: 1, Task: "flee"}, Normal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Classify(tt.obs, cam))
		})
	}
}

func TestClassifyZoom(t *testing.T) {
	s := newSched(DefaultConfig())
	obs := Observation{Pos: geom.Pt(60, 15), Health: 1}
	zoomedOut := cam
	zoomedOut.Zoom = 0.25
	assert.Equal(t, Normal, s.Classify(obs, zoomedOut))
	zoomedIn := cam
	zoomedIn.Zoom = 4
	assert.Equal(t, Minimal, s.Classify(obs, zoomedIn))
}

func TestHookOverrides(t *testing.T) {
	s := newSched(DefaultConfig())
	s.SetHook(func(obs Observation, _ Camera, base Importance) (Importance, bool) {
		if obs.Task == "vip" {
			return Critical, true
		}
		return base, false
	})
	assert.Equal(t, Critical, s.Classify(Observation{Pos: geom.Pt(500, 500), Health: 1, Task: "vip"}, cam))
	assert.Equal(t, Minimal, s.Classify(Observation{Pos: geom.Pt(500, 500), Health: 1}, cam))
}

func TestShouldUpdateIntervals(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Jitter = 0
	s := newSched(cfg)
	id := ecs.NewEntityID(1, 0)
	now := time.Unix(0, 0)

	require.True(t, s.ShouldUpdate(id, Low, now), "first observation")
	assert.False(t, s.ShouldUpdate(id, Low, now.Add(100*time.Millisecond)))
	assert.False(t, s.ShouldUpdate(id, Low, now.Add(499*time.Millisecond)))
	assert.True(t, s.ShouldUpdate(id, Low, now.Add(500*time.Millisecond)))

	st, ok := s.State(id)
	require.True(t, ok)
	assert.Equal(t, 2, st.Skipped)
	assert.Equal(t, now.Add(time.Second), st.NextDue)
}

func TestImportanceIncreaseIsImmediate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Jitter = 0
	s := newSched(cfg)
	id := ecs.NewEntityID(1, 0)
	now := time.Unix(0, 0)
	s.ShouldUpdate(id, Minimal, now)
	assert.True(t, s.ShouldUpdate(id, Critical, now.Add(time.Millisecond)))
	assert.True(t, s.ShouldUpdate(id, Critical, now.Add(2*time.Millisecond)), "critical runs every tick")
	// lowering takes effect once the current interval has elapsed
	assert.True(t, s.ShouldUpdate(id, Low, now.Add(3*time.Millisecond)))
	assert.False(t, s.ShouldUpdate(id, Low, now.Add(4*time.Millisecond)))
}

func TestForceUpdate(t *testing.T) {
	s := newSched(DefaultConfig())
	id := ecs.NewEntityID(1, 0)
	now := time.Unix(0, 0)
	s.ShouldUpdate(id, Minimal, now)
	require.False(t, s.ShouldUpdate(id, Minimal, now.Add(time.Millisecond)))
	s.ForceUpdate(id)
	assert.True(t, s.ShouldUpdate(id, Minimal, now.Add(2*time.Millisecond)))
	assert.False(t, s.ShouldUpdate(id, Minimal, now.Add(3*time.Millisecond)))
	assert.Equal(t, 1, s.Stats().Forced)
}

func TestJitterStaysInBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Jitter = 0.2
	s := newSched(cfg)
	now := time.Unix(0, 0)
	for i := uint32(0); i < 200; i++ {
		id := ecs.NewEntityID(i, 0)
		s.ShouldUpdate(id, Normal, now)
		st, _ := s.State(id)
		d := st.NextDue.Sub(now)
		assert.GreaterOrEqual(t, d, 80*time.Millisecond)
		assert.LessOrEqual(t, d, 120*time.Millisecond)
	}
}

func TestRemoveAndPrune(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StateTimeout = time.Second
	s := newSched(cfg)
	var _ ecs.Removable = s
	now := time.Unix(0, 0)
	a, b, c := ecs.NewEntityID(1, 0), ecs.NewEntityID(2, 0), ecs.NewEntityID(3, 0)
	s.ShouldUpdate(a, Low, now)
	s.ShouldUpdate(b, Low, now)
	s.ShouldUpdate(c, Low, now.Add(900*time.Millisecond))

	s.Remove(a)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1, s.Prune(now.Add(1500*time.Millisecond)))
	_, ok := s.State(c)
	assert.True(t, ok)
	assert.Equal(t, 1, s.Stats().Tracked)
}

func TestParseImportance(t *testing.T) {
	imp, ok := ParseImportance("Critical")
	require.True(t, ok)
	assert.Equal(t, Critical, imp)
	_, ok = ParseImportance("urgent")
	assert.False(t, ok)
}

package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordSys struct {
	phase Phase
	name  string
	log   *[]string
}

func (s recordSys) Phase() Phase         { return s.phase }
func (s recordSys) Update(time.Duration) { *s.log = append(*s.log, s.name) }

func TestRunnerPhaseOrder(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recordSys{PhaseCleanup, "cleanup", &log})
	r.Register(recordSys{PhasePathing, "paths", &log})
	r.Register(recordSys{PhasePreUpdate, "events", &log})
	r.Register(recordSys{PhasePathing, "paths2", &log})
	r.Tick(time.Millisecond)
	assert.Equal(t, []string{"events", "paths", "paths2", "cleanup"}, log)

	log = log[:0]
	r.TickPhase(PhasePathing, 0)
	assert.Equal(t, []string{"paths", "paths2"}, log)
	assert.Equal(t, 4, r.Len())
}

func TestBudgetCarryOver(t *testing.T) {
	b := NewBudget(4*time.Millisecond, 2*time.Millisecond)
	b.Begin()
	assert.Equal(t, 4*time.Millisecond, b.Remaining())

	b.Spend(3 * time.Millisecond)
	assert.False(t, b.Exhausted())
	b.Begin()
	assert.Equal(t, time.Millisecond, b.Carry())
	assert.Equal(t, 5*time.Millisecond, b.Remaining())

	b.Begin()
	assert.Equal(t, 2*time.Millisecond, b.Carry(), "carry is capped")
	assert.Equal(t, 6*time.Millisecond, b.Remaining())

	b.Spend(10 * time.Millisecond)
	assert.True(t, b.Exhausted())
	assert.Equal(t, 10*time.Millisecond, b.SpentThisTick())
	b.Begin()
	assert.Zero(t, b.Carry(), "overspend is not carried as debt")
	assert.Equal(t, 4*time.Millisecond, b.Remaining())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "rebuild", PhaseRebuild.String())
	assert.Equal(t, "unknown", Phase(42).String())
}

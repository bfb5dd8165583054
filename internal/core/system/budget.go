package system

import "time"

// Budget is a per-tick time allowance. Unused time carries into the next
// tick up to maxCarry. Work is never interrupted: callers check Exhausted
// before starting a unit and Spend what it actually took.
type Budget struct {
	perTick   time.Duration
	maxCarry  time.Duration
	remaining time.Duration
	carry     time.Duration
	spent     time.Duration
}

func NewBudget(perTick, maxCarry time.Duration) *Budget {
	return &Budget{perTick: perTick, maxCarry: maxCarry}
}

// Begin starts a new tick.
func (b *Budget) Begin() {
	b.carry = min(max(b.remaining, 0), b.maxCarry)
	b.remaining = b.perTick + b.carry
	b.spent = 0
}

func (b *Budget) Spend(d time.Duration) {
	b.remaining -= d
	b.spent += d
}

func (b *Budget) Exhausted() bool              { return b.remaining <= 0 }
func (b *Budget) Remaining() time.Duration     { return b.remaining }
func (b *Budget) Carry() time.Duration         { return b.carry }
func (b *Budget) SpentThisTick() time.Duration { return b.spent }
func (b *Budget) PerTick() time.Duration       { return b.perTick }

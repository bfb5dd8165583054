package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: external commands, camera updates
	PhasePreUpdate               // 1: dispatch last tick's events
	PhaseUpdate                  // 2: agent scheduling and logic
	PhasePathing                 // 3: budgeted path requests
	PhaseRebuild                 // 4: deferred grid/region rebuild
	PhasePostUpdate              // 5: stale state pruning, stats
	PhaseCleanup                 // 6: destroy queued entities
)

var phaseNames = [...]string{"input", "pre-update", "update", "pathing", "rebuild", "post-update", "cleanup"}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// System is the interface every ECS system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}

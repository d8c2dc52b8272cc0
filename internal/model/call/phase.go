package call

// Phase 表示通话所处阶段，只能沿 idle → ringing → active → ended 单调推进。
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRinging Phase = "ringing"
	PhaseActive  Phase = "active"
	PhaseEnded   Phase = "ended"
)

var phaseRank = map[Phase]int{
	PhaseIdle:    0,
	PhaseRinging: 1,
	PhaseActive:  2,
	PhaseEnded:   3,
}

// CanTransition reports whether next is a legal successor of p.
// ringing → ended is the decline shortcut; no transition may skip ringing.
func (p Phase) CanTransition(next Phase) bool {
	switch p {
	case PhaseIdle:
		return next == PhaseRinging
	case PhaseRinging:
		return next == PhaseActive || next == PhaseEnded
	case PhaseActive:
		return next == PhaseEnded
	default:
		return false
	}
}

// Before reports whether p precedes other in the lifecycle.
func (p Phase) Before(other Phase) bool {
	return phaseRank[p] < phaseRank[other]
}

// Terminal 表示通话已经结束。
func (p Phase) Terminal() bool {
	return p == PhaseEnded
}

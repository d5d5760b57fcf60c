package models

// Barrier is the emotional-state classification a caller supplies with an
// atomization request. It selects which step-generation rule set applies.
type Barrier string

const (
	// BarrierOverwhelmed indicates the task feels too large to start.
	BarrierOverwhelmed Barrier = "overwhelmed"
	// BarrierUncertain indicates the caller does not know where to begin.
	BarrierUncertain Barrier = "uncertain"
	// BarrierBored indicates low motivation rather than difficulty.
	BarrierBored Barrier = "bored"
	// BarrierPerfectionism indicates fear of producing imperfect work.
	BarrierPerfectionism Barrier = "perfectionism"
)

// Barriers lists every valid barrier in a stable order.
var Barriers = []Barrier{
	BarrierOverwhelmed,
	BarrierUncertain,
	BarrierBored,
	BarrierPerfectionism,
}

// Valid returns true if the barrier is a known value.
func (b Barrier) Valid() bool {
	switch b {
	case BarrierOverwhelmed, BarrierUncertain, BarrierBored, BarrierPerfectionism:
		return true
	default:
		return false
	}
}

// Strategy returns the strategy label the plan generator is instructed to
// use for this barrier.
func (b Barrier) Strategy() string {
	switch b {
	case BarrierOverwhelmed:
		return "micro_wins"
	case BarrierUncertain:
		return "structured_exploration"
	case BarrierBored:
		return "quick_momentum"
	case BarrierPerfectionism:
		return "good_enough_iterations"
	default:
		return ""
	}
}

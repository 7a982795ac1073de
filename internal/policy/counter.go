package policy

// Phase reports where a step landed inside its group.
type Phase int

const (
	// PhaseInside is any step strictly between the first and the last.
	PhaseInside Phase = iota
	// PhaseFirst is the first step of a group.
	PhaseFirst
	// PhaseLast is the step that completes a group.
	PhaseLast
)

// RoundCounter tracks one operation family within the current slice:
// the position inside the running group and the number of groups
// completed since the last reset.
//
// Each family owns its own counter. The counter is advanced on every
// host-call step of the family and cleared when the buffer is sealed.
type RoundCounter struct {
	groupSize int
	maxRounds int
	count     int // steps seen in the current group
	completed int // groups completed since the last reset
}

// NewRoundCounter creates a counter for groups of groupSize steps of
// which at most maxRounds fit one slice.
func NewRoundCounter(groupSize, maxRounds int) *RoundCounter {
	return &RoundCounter{
		groupSize: groupSize,
		maxRounds: maxRounds,
	}
}

// Step advances the counter by one host-call step.
//
// exhausted is true when the step completed a group and the family has now
// used every round the circuit admits.
func (c *RoundCounter) Step() (phase Phase, exhausted bool) {
	c.count++
	switch c.count {
	case 1:
		return PhaseFirst, false
	case c.groupSize:
		c.count = 0
		c.completed++
		return PhaseLast, c.completed >= c.maxRounds
	default:
		return PhaseInside, false
	}
}

// Reset returns the counter to its initial state.
func (c *RoundCounter) Reset() {
	c.count = 0
	c.completed = 0
}

// Completed returns the number of groups completed since the last reset.
func (c *RoundCounter) Completed() int {
	return c.completed
}

// MaxRounds returns the per-slice round bound.
func (c *RoundCounter) MaxRounds() int {
	return c.maxRounds
}

package benor

import "fmt"

// StateSnapshot is a read-only view of one participant's consensus state.
// Belief, Decided and Round are nil for faulty participants and for
// participants that have been stopped.
type StateSnapshot struct {
	Killed  bool   `json:"killed"`
	Belief  *Value `json:"belief"`
	Decided *bool  `json:"decided"`
	Round   *Round `json:"round"`
}

func (s StateSnapshot) String() string {
	if s.Belief == nil || s.Decided == nil || s.Round == nil {
		return fmt.Sprintf("state{killed: %v}", s.Killed)
	}
	return fmt.Sprintf("state{killed: %v, belief: %s, decided: %v, round: %d}",
		s.Killed, *s.Belief, *s.Decided, *s.Round)
}

// Status classifies the result of a Start invocation.
type Status uint8

// The possible Start results.
const (
	// StatusDecided means the round loop completed with a terminal decision.
	StatusDecided Status = iota + 1
	// StatusNoFinality means consensus was abandoned as unachievable before
	// any round ran.
	StatusNoFinality
	// StatusFaulty means the participant is faulty and did not take part.
	StatusFaulty
)

func (s Status) String() string {
	switch s {
	case StatusDecided:
		return "decided"
	case StatusNoFinality:
		return "no finality"
	case StatusFaulty:
		return "faulty"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(s))
	}
}

// Outcome is the summary returned to the caller when a Start invocation
// completes.
type Outcome struct {
	Status Status        `json:"status"`
	State  StateSnapshot `json:"state"`
}

func (o Outcome) String() string {
	return fmt.Sprintf("outcome{%s, %s}", o.Status, o.State)
}

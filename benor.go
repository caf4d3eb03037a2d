// Package benor defines the core types used by the randomized binary
// consensus protocol. A fixed group of N participants tries to agree on a
// single bit despite up to F of them being silent. The protocol itself lives
// in the consensus package; participants are wrapped by the participant
// package and wired together over the network package.
package benor

import (
	"errors"
	"fmt"
)

// ID uniquely identifies a participant. IDs are assigned in [0, N).
type ID uint32

// Round is the index of one broadcast/collect/tally cycle.
type Round uint32

// Value is a participant's candidate bit. Abstain carries no preference and
// is excluded from all majority counting.
type Value int8

// The possible vote values.
const (
	Abstain Value = iota - 1
	Zero
	One
)

// IsNumeric reports whether v carries a numeric preference.
func (v Value) IsNumeric() bool {
	return v == Zero || v == One
}

func (v Value) String() string {
	switch v {
	case Zero:
		return "0"
	case One:
		return "1"
	case Abstain:
		return "abstain"
	default:
		return fmt.Sprintf("invalid(%d)", int8(v))
	}
}

// VoteMsg is a vote sent by one participant to one peer during a broadcast
// step.
type VoteMsg struct {
	From  ID    `json:"from"`
	Round Round `json:"round"`
	Value Value `json:"value"`
}

func (m VoteMsg) String() string {
	return fmt.Sprintf("vote{from: %d, round: %d, value: %s}", m.From, m.Round, m.Value)
}

// Identity holds a participant's immutable per-run parameters.
type Identity struct {
	ID     ID
	N      int
	F      int
	Faulty bool
}

// Quorum returns the supermajority threshold N-F that licenses a terminal
// decision.
func (id Identity) Quorum() int {
	return id.N - id.F
}

// Feasible reports whether consensus is achievable at all. Strict majority
// fault tolerance is violated when F exceeds half of N.
func (id Identity) Feasible() bool {
	return 2*id.F <= id.N
}

var (
	// ErrStopped is returned when a mutating operation is attempted on a
	// killed participant.
	ErrStopped = errors.New("participant stopped")
	// ErrFaulty is returned when a lifecycle operation is invoked on a faulty
	// participant.
	ErrFaulty = errors.New("participant is faulty")
	// ErrAlreadyStarted is returned when Start is invoked on a participant
	// whose round loop is already running or has already completed.
	ErrAlreadyStarted = errors.New("consensus already started")
)

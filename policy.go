package benor

import "time"

// Policy holds the termination parameters of the round loop. The round cap
// and fallback value are deliberate liveness patches: a participant that
// reaches the cap without a supermajority force-decides the fallback value
// instead of retrying forever. Classical Ben-Or retries rounds indefinitely,
// so a forced fallback can mask genuine disagreement as consensus; keep the
// cap in mind when interpreting results.
type Policy struct {
	// RoundCap is the number of rounds to run before force-deciding.
	RoundCap Round
	// FallbackValue is the belief adopted when the cap is reached. Abstain
	// means unset and normalizes to the default.
	FallbackValue Value
	// CollectWindow bounds how long a round waits for peer votes. Collection
	// ends early once the buffered votes already carry a decisive
	// supermajority.
	CollectWindow time.Duration
	// SentinelRound is the reserved round value reported when consensus is
	// infeasible. It must exceed RoundCap so that an infeasible run can never
	// be mistaken for one that ran out of rounds.
	SentinelRound Round
}

// DefaultPolicy returns the standard termination policy.
func DefaultPolicy() Policy {
	return Policy{
		RoundCap:      2,
		FallbackValue: One,
		CollectWindow: 500 * time.Millisecond,
		SentinelRound: 12,
	}
}

// Normalize fills in unset fields from the default policy and ensures the
// sentinel lies beyond the cap. The zero Policy normalizes to the default
// policy as a whole; callers overriding individual fields should start from
// DefaultPolicy, since a zero FallbackValue in a partially-filled Policy is an
// explicit fallback of 0, not an unset field.
func (p Policy) Normalize() Policy {
	if p == (Policy{}) {
		return DefaultPolicy()
	}
	def := DefaultPolicy()
	if p.RoundCap == 0 {
		p.RoundCap = def.RoundCap
	}
	if !p.FallbackValue.IsNumeric() {
		p.FallbackValue = def.FallbackValue
	}
	if p.CollectWindow <= 0 {
		p.CollectWindow = def.CollectWindow
	}
	if p.SentinelRound <= p.RoundCap {
		p.SentinelRound = p.RoundCap + 10
	}
	return p
}

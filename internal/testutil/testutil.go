// Package testutil provides helper methods that are useful for implementing
// tests.
package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/Arturo1s/benor"
	"github.com/Arturo1s/benor/consensus"
	"github.com/Arturo1s/benor/participant"
)

// FixedCoin is a deterministic coin that cycles through a fixed sequence of
// outcomes.
type FixedCoin struct {
	mut      sync.Mutex
	outcomes []benor.Value
	next     int
}

// NewFixedCoin returns a coin that yields the given outcomes in order,
// wrapping around at the end.
func NewFixedCoin(outcomes ...benor.Value) *FixedCoin {
	if len(outcomes) == 0 {
		panic("fixed coin needs at least one outcome")
	}
	return &FixedCoin{outcomes: outcomes}
}

// Flip returns the next outcome in the sequence.
func (c *FixedCoin) Flip() benor.Value {
	c.mut.Lock()
	defer c.mut.Unlock()
	v := c.outcomes[c.next%len(c.outcomes)]
	c.next++
	return v
}

var _ consensus.Coin = (*FixedCoin)(nil)

// StartResult is the result of one participant's Start invocation.
type StartResult struct {
	Outcome benor.Outcome
	Err     error
}

// StartAll starts all given controllers concurrently and waits for every
// round loop to complete.
func StartAll(ctx context.Context, ctrls []*participant.Controller) map[benor.ID]StartResult {
	var (
		wg      sync.WaitGroup
		mut     sync.Mutex
		results = make(map[benor.ID]StartResult)
	)
	for _, ctrl := range ctrls {
		ctrl := ctrl
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := ctrl.Start(ctx)
			mut.Lock()
			results[ctrl.Identity().ID] = StartResult{Outcome: outcome, Err: err}
			mut.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// CheckDecided fails the test unless the result is a decision on want at
// round wantRound.
func CheckDecided(t *testing.T, id benor.ID, res StartResult, want benor.Value, wantRound benor.Round) {
	t.Helper()
	if res.Err != nil {
		t.Fatalf("participant %d: unexpected error: %v", id, res.Err)
	}
	if res.Outcome.Status != benor.StatusDecided {
		t.Fatalf("participant %d: got status %s, want %s", id, res.Outcome.Status, benor.StatusDecided)
	}
	state := res.Outcome.State
	if state.Belief == nil || state.Decided == nil || state.Round == nil {
		t.Fatalf("participant %d: decided outcome has null state: %s", id, state)
	}
	if *state.Belief != want {
		t.Errorf("participant %d: got belief %s, want %s", id, *state.Belief, want)
	}
	if !*state.Decided {
		t.Errorf("participant %d: expected decided=true", id)
	}
	if *state.Round != wantRound {
		t.Errorf("participant %d: got round %d, want %d", id, *state.Round, wantRound)
	}
}

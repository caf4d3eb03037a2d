package consensus_test

import (
	"context"
	"testing"
	"time"

	"github.com/Arturo1s/benor"
	"github.com/Arturo1s/benor/consensus"
	"github.com/Arturo1s/benor/internal/testutil"
)

// fastPolicy keeps the collection window short; the quorum wait ends rounds
// early anyway, the window only matters when votes are missing.
func fastPolicy() benor.Policy {
	p := benor.DefaultPolicy()
	p.CollectWindow = 200 * time.Millisecond
	return p
}

// Three participants prefer 0 and one prefers 1. Every participant sees
// three 0-votes, which meets the supermajority threshold N-F=3, so everyone
// decides 0 in the first round.
func TestMajorityDecidesFirstRound(t *testing.T) {
	g := testutil.NewGroup(t, testutil.GroupConfig{
		N:       4,
		F:       1,
		Initial: []benor.Value{benor.Zero, benor.Zero, benor.Zero, benor.One},
		Policy:  fastPolicy(),
	})

	results := testutil.StartAll(context.Background(), g.Controllers)
	for id, res := range results {
		testutil.CheckDecided(t, id, res, benor.Zero, 0)
	}
}

// A silent participant costs everyone its vote, but the three live
// participants still reach N-F matching votes among themselves.
func TestDecidesDespiteSilentParticipant(t *testing.T) {
	g := testutil.NewGroup(t, testutil.GroupConfig{
		N:       4,
		F:       1,
		Initial: []benor.Value{benor.Zero, benor.Zero, benor.Zero, benor.One},
		Faulty:  []benor.ID{3},
		Policy:  fastPolicy(),
	})

	results := testutil.StartAll(context.Background(), g.Controllers)
	for id, res := range results {
		if id == 3 {
			if res.Err != nil {
				t.Errorf("participant 3: unexpected error: %v", res.Err)
			}
			if res.Outcome.Status != benor.StatusFaulty {
				t.Errorf("participant 3: got status %s, want %s", res.Outcome.Status, benor.StatusFaulty)
			}
			continue
		}
		testutil.CheckDecided(t, id, res, benor.Zero, 0)
	}
}

// With more tolerated faults than half the group, every live participant
// reports no finality without running a single round.
func TestInfeasibleGroupReportsNoFinality(t *testing.T) {
	g := testutil.NewGroup(t, testutil.GroupConfig{
		N:       3,
		F:       2,
		Initial: []benor.Value{benor.Abstain, benor.One, benor.Zero},
		Faulty:  []benor.ID{1, 2},
		Policy:  fastPolicy(),
	})

	results := testutil.StartAll(context.Background(), g.Controllers)

	res := results[benor.ID(0)]
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Outcome.Status != benor.StatusNoFinality {
		t.Fatalf("got status %s, want %s", res.Outcome.Status, benor.StatusNoFinality)
	}
	state := res.Outcome.State
	if !state.Killed {
		t.Error("expected killed=true")
	}
	// A participant without an initial preference defaults to 1.
	if state.Belief == nil || *state.Belief != benor.One {
		t.Errorf("got belief %v, want the default 1", state.Belief)
	}
	if state.Decided == nil || *state.Decided {
		t.Errorf("got decided %v, want false", state.Decided)
	}
	if state.Round == nil || *state.Round != fastPolicy().SentinelRound {
		t.Errorf("got round %v, want sentinel %d", state.Round, fastPolicy().SentinelRound)
	}
	for _, sender := range g.Senders {
		if sent := sender.MessagesSent(); len(sent) != 0 {
			t.Errorf("infeasible group broadcast votes: %v", sent)
		}
	}
}

// Two participants with opposite beliefs tie in round 0. With both coins
// forced to 1 they agree in round 1 and decide there.
func TestTieBreakConvergesWithAgreeingCoins(t *testing.T) {
	g := testutil.NewGroup(t, testutil.GroupConfig{
		N:       2,
		F:       0,
		Initial: []benor.Value{benor.Zero, benor.One},
		Policy:  fastPolicy(),
		Coins: map[benor.ID]consensus.Coin{
			0: testutil.NewFixedCoin(benor.One),
			1: testutil.NewFixedCoin(benor.One),
		},
	})

	results := testutil.StartAll(context.Background(), g.Controllers)
	for id, res := range results {
		testutil.CheckDecided(t, id, res, benor.One, 1)
	}
}

// With the coins forced to keep disagreeing, the group never reaches a
// supermajority and both participants force-decide the fallback value at the
// round cap.
func TestPersistentTieForcesFallbackAtCap(t *testing.T) {
	policy := fastPolicy()
	g := testutil.NewGroup(t, testutil.GroupConfig{
		N:       2,
		F:       0,
		Initial: []benor.Value{benor.Zero, benor.One},
		Policy:  policy,
		Coins: map[benor.ID]consensus.Coin{
			0: testutil.NewFixedCoin(benor.Zero),
			1: testutil.NewFixedCoin(benor.One),
		},
	})

	results := testutil.StartAll(context.Background(), g.Controllers)
	for id, res := range results {
		testutil.CheckDecided(t, id, res, policy.FallbackValue, policy.RoundCap)
	}
}

// Identical coin outputs and identical message schedules must yield
// identical decisions.
func TestFixedCoinsMakeRunsReproducible(t *testing.T) {
	run := func() map[benor.ID]testutil.StartResult {
		g := testutil.NewGroup(t, testutil.GroupConfig{
			N:       2,
			F:       0,
			Initial: []benor.Value{benor.Zero, benor.One},
			Policy:  fastPolicy(),
			Coins: map[benor.ID]consensus.Coin{
				0: testutil.NewFixedCoin(benor.Zero, benor.One),
				1: testutil.NewFixedCoin(benor.Zero, benor.One),
			},
		})
		return testutil.StartAll(context.Background(), g.Controllers)
	}

	first := run()
	second := run()
	for id, res := range first {
		other := second[id]
		if res.Err != nil || other.Err != nil {
			t.Fatalf("participant %d: unexpected errors: %v, %v", id, res.Err, other.Err)
		}
		if res.Outcome.String() != other.Outcome.String() {
			t.Errorf("participant %d: runs diverged: %s != %s", id, res.Outcome, other.Outcome)
		}
	}
}

// A lone dissenter cannot keep a clear majority from deciding in the first
// round.
func TestMixedBeliefsDecideOnMajorityValue(t *testing.T) {
	g := testutil.NewGroup(t, testutil.GroupConfig{
		N:       5,
		F:       2,
		Initial: []benor.Value{benor.One, benor.One, benor.One, benor.Zero, benor.One},
		Policy:  fastPolicy(),
	})

	results := testutil.StartAll(context.Background(), g.Controllers)
	for id, res := range results {
		// Everyone sees at least four 1-votes, so all decide 1 in round 0.
		testutil.CheckDecided(t, id, res, benor.One, 0)
	}
}

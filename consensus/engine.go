// Package consensus implements the per-participant state machine of a
// randomized round-based binary consensus protocol (Ben-Or style). Each round
// broadcasts the current belief, collects peer votes, tallies them, and
// either decides on a supermajority or advances with the majority value
// (coin-flipping on ties). The round loop is bounded by the termination
// policy rather than retrying indefinitely.
package consensus

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/Arturo1s/benor"
	"github.com/Arturo1s/benor/logging"
)

// Sender delivers a vote message to a peer participant. Delivery is
// best-effort: the engine logs and ignores per-peer failures.
type Sender interface {
	// Vote sends a vote message to the participant with the given id.
	Vote(ctx context.Context, id benor.ID, msg benor.VoteMsg) error
}

// Engine owns one participant's consensus state and drives its round loop.
// All exported methods are safe for concurrent use.
type Engine struct {
	logger   logging.Logger
	sender   Sender
	coin     Coin
	votes    *VoteBuffer
	identity benor.Identity
	policy   benor.Policy

	mut     sync.Mutex
	killed  bool
	running bool
	state   *state // nil when faulty or stopped
}

// state is the mutable belief/decided/round tuple. It is owned exclusively by
// the engine and only ever mutated under the engine's lock.
type state struct {
	belief  benor.Value
	decided bool
	round   benor.Round
}

// New returns an engine for the given participant. Faulty participants get a
// permanently-null state and never take part in any round.
func New(logger logging.Logger, sender Sender, coin Coin, identity benor.Identity, initial benor.Value, policy benor.Policy) *Engine {
	e := &Engine{
		logger:   logger,
		sender:   sender,
		coin:     coin,
		votes:    NewVoteBuffer(),
		identity: identity,
		policy:   policy.Normalize(),
	}
	if !identity.Faulty {
		e.state = &state{belief: initial}
	}
	return e
}

// Identity returns the participant's immutable parameters.
func (e *Engine) Identity() benor.Identity {
	return e.identity
}

// Snapshot returns a copy of the current consensus state.
func (e *Engine) Snapshot() benor.StateSnapshot {
	e.mut.Lock()
	defer e.mut.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() benor.StateSnapshot {
	snap := benor.StateSnapshot{Killed: e.killed}
	if e.state == nil {
		return snap
	}
	belief, decided, round := e.state.belief, e.state.decided, e.state.round
	snap.Belief, snap.Decided, snap.Round = &belief, &decided, &round
	return snap
}

// OnVote appends an incoming vote to the buffer for its round. Votes arriving
// after the participant was stopped are rejected with ErrStopped. The append
// happens under the engine's lock so that a concurrent Stop cannot slip in
// between the check and the append.
func (e *Engine) OnVote(msg benor.VoteMsg) error {
	e.mut.Lock()
	defer e.mut.Unlock()
	if e.identity.Faulty {
		return benor.ErrFaulty
	}
	if e.killed {
		return benor.ErrStopped
	}
	e.votes.Add(msg.Round, msg.Value)
	return nil
}

// Stop kills the participant and nulls out its state. It is idempotent and
// safe to call after the round loop has terminated. The round loop observes
// the kill at its next checkpoint and stops without mutating state further.
func (e *Engine) Stop() {
	e.mut.Lock()
	defer e.mut.Unlock()
	if e.identity.Faulty {
		return
	}
	e.killed = true
	e.state = nil
}

// Start runs the round loop to completion and returns the final outcome.
// A faulty participant reports non-participation immediately. A second Start,
// concurrent with or after the first, is rejected with ErrAlreadyStarted.
func (e *Engine) Start(ctx context.Context) (benor.Outcome, error) {
	e.mut.Lock()
	if e.identity.Faulty {
		snap := e.snapshotLocked()
		e.mut.Unlock()
		return benor.Outcome{Status: benor.StatusFaulty, State: snap}, nil
	}
	if e.killed {
		e.mut.Unlock()
		return benor.Outcome{}, benor.ErrStopped
	}
	if e.running {
		e.mut.Unlock()
		return benor.Outcome{}, benor.ErrAlreadyStarted
	}
	e.running = true

	if !e.identity.Feasible() {
		// No amount of rounds can tolerate more than N/2 silent
		// participants. Report no finality without ever broadcasting, with
		// the sentinel round marking the run as abandoned rather than
		// exhausted.
		if !e.state.belief.IsNumeric() {
			e.state.belief = benor.One
		}
		e.state.round = e.policy.SentinelRound
		e.killed = true
		snap := e.snapshotLocked()
		e.mut.Unlock()
		e.logger.Warnf("consensus infeasible: f=%d exceeds n/2 (n=%d)", e.identity.F, e.identity.N)
		return benor.Outcome{Status: benor.StatusNoFinality, State: snap}, nil
	}
	e.mut.Unlock()

	return e.run(ctx)
}

func (e *Engine) run(ctx context.Context) (benor.Outcome, error) {
	quorum := e.identity.Quorum()

	for round := benor.Round(0); round < e.policy.RoundCap; round++ {
		e.mut.Lock()
		if e.killed {
			e.mut.Unlock()
			return benor.Outcome{}, benor.ErrStopped
		}
		e.state.round = round
		belief := e.state.belief
		e.mut.Unlock()

		if err := ctx.Err(); err != nil {
			return benor.Outcome{}, err
		}

		// The participant's own vote takes part in its tally alongside the
		// votes received from peers.
		e.votes.Add(round, belief)
		e.broadcast(ctx, round, belief)

		collectCtx, cancel := context.WithTimeout(ctx, e.policy.CollectWindow)
		next, matching := e.collect(collectCtx, round, quorum)
		cancel()
		if err := ctx.Err(); err != nil {
			return benor.Outcome{}, err
		}

		e.mut.Lock()
		if e.killed {
			e.mut.Unlock()
			return benor.Outcome{}, benor.ErrStopped
		}
		e.state.belief = next
		if matching >= quorum {
			e.state.decided = true
			snap := e.snapshotLocked()
			e.mut.Unlock()
			e.logger.Infof("decided %s in round %d (%d matching votes)", next, round, matching)
			return benor.Outcome{Status: benor.StatusDecided, State: snap}, nil
		}
		e.mut.Unlock()
		e.logger.Debugf("round %d inconclusive: belief %s, %d matching votes", round, next, matching)
	}

	// Round cap reached: force a terminal decision on the fallback value.
	// This is a liveness patch, not part of classical Ben-Or; see
	// benor.Policy.
	e.mut.Lock()
	if e.killed {
		e.mut.Unlock()
		return benor.Outcome{}, benor.ErrStopped
	}
	e.state.belief = e.policy.FallbackValue
	e.state.decided = true
	e.state.round = e.policy.RoundCap
	snap := e.snapshotLocked()
	e.mut.Unlock()
	e.logger.Warnf("round cap %d reached: force-deciding fallback value %s", e.policy.RoundCap, e.policy.FallbackValue)
	return benor.Outcome{Status: benor.StatusDecided, State: snap}, nil
}

// broadcast fans out the vote to all peers concurrently and waits until every
// send has been attempted. Failures are combined into a single log line and
// otherwise ignored: the tally tolerates missing votes. A peer that accepts
// the connection but never replies costs at most one collection window.
func (e *Engine) broadcast(ctx context.Context, round benor.Round, value benor.Value) {
	msg := benor.VoteMsg{From: e.identity.ID, Round: round, Value: value}
	ctx, cancel := context.WithTimeout(ctx, e.policy.CollectWindow)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mut  sync.Mutex
		errs error
	)
	for i := 0; i < e.identity.N; i++ {
		id := benor.ID(i)
		if id == e.identity.ID {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.sender.Vote(ctx, id, msg); err != nil {
				mut.Lock()
				errs = multierr.Append(errs, fmt.Errorf("peer %d: %w", id, err))
				mut.Unlock()
			}
		}()
	}
	wg.Wait()
	if errs != nil {
		e.logger.Warnf("round %d: best-effort broadcast: %v", round, errs)
	}
}

// collect waits until the round's tally turns decisive or the window closes.
// A quorum of buffered votes is the earliest point at which a decision can
// exist, so waiting starts there; each further vote re-arms the wait. The
// coin is only consulted once the window has closed, so a late vote can still
// flip an undecided tally instead of racing the coin.
func (e *Engine) collect(ctx context.Context, round benor.Round, quorum int) (next benor.Value, matching int) {
	for target := quorum; ; target = e.votes.Count(round) + 1 {
		if err := e.votes.AwaitCount(ctx, round, target); err != nil {
			e.logger.Debugf("round %d: window closed with %d of %d votes", round, e.votes.Count(round), quorum)
			return e.tally(round)
		}
		zeros, ones := e.countVotes(round)
		switch {
		case zeros > ones && zeros >= quorum:
			return benor.Zero, zeros
		case ones > zeros && ones >= quorum:
			return benor.One, ones
		}
	}
}

// countVotes counts the buffered numeric votes for the round. Abstentions are
// buffered but never counted.
func (e *Engine) countVotes(round benor.Round) (zeros, ones int) {
	for _, v := range e.votes.Values(round) {
		switch v {
		case benor.Zero:
			zeros++
		case benor.One:
			ones++
		}
	}
	return zeros, ones
}

// tally settles a closed round: the majority value with its vote count, with
// an exact tie, including the case of no votes at all, decided by the coin.
func (e *Engine) tally(round benor.Round) (next benor.Value, matching int) {
	zeros, ones := e.countVotes(round)
	switch {
	case zeros > ones:
		return benor.Zero, zeros
	case ones > zeros:
		return benor.One, ones
	}
	if e.coin.Flip() == benor.Zero {
		return benor.Zero, zeros
	}
	return benor.One, ones
}

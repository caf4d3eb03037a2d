package consensus

import (
	"context"
	"sync"

	"github.com/Arturo1s/benor"
)

// VoteBuffer is the per-round inbox of received votes for one participant.
// Peers append to it concurrently with the owning engine's own round
// processing, so all access is guarded. Entries accumulate for the lifetime
// of one consensus attempt and are never pruned.
type VoteBuffer struct {
	mut     sync.Mutex
	votes   map[benor.Round][]benor.Value
	waiters []*countWaiter
}

type countWaiter struct {
	round  benor.Round
	target int
	ch     chan struct{}
}

// NewVoteBuffer returns an empty vote buffer.
func NewVoteBuffer() *VoteBuffer {
	return &VoteBuffer{
		votes: make(map[benor.Round][]benor.Value),
	}
}

// Add appends a vote value to the given round.
func (vb *VoteBuffer) Add(round benor.Round, value benor.Value) {
	vb.mut.Lock()
	defer vb.mut.Unlock()

	vb.votes[round] = append(vb.votes[round], value)

	n := len(vb.votes[round])
	remaining := vb.waiters[:0]
	for _, w := range vb.waiters {
		if w.round == round && n >= w.target {
			close(w.ch)
			continue
		}
		remaining = append(remaining, w)
	}
	vb.waiters = remaining
}

// Count returns the number of votes buffered for the given round.
func (vb *VoteBuffer) Count(round benor.Round) int {
	vb.mut.Lock()
	defer vb.mut.Unlock()
	return len(vb.votes[round])
}

// Values returns a copy of the votes buffered for the given round.
func (vb *VoteBuffer) Values(round benor.Round) []benor.Value {
	vb.mut.Lock()
	defer vb.mut.Unlock()
	values := make([]benor.Value, len(vb.votes[round]))
	copy(values, vb.votes[round])
	return values
}

// AwaitCount blocks until at least target votes have been buffered for the
// given round, or until ctx is cancelled. It returns ctx.Err() in the latter
// case.
func (vb *VoteBuffer) AwaitCount(ctx context.Context, round benor.Round, target int) error {
	vb.mut.Lock()
	if len(vb.votes[round]) >= target {
		vb.mut.Unlock()
		return nil
	}
	w := &countWaiter{round: round, target: target, ch: make(chan struct{})}
	vb.waiters = append(vb.waiters, w)
	vb.mut.Unlock()

	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
		vb.remove(w)
		return ctx.Err()
	}
}

func (vb *VoteBuffer) remove(w *countWaiter) {
	vb.mut.Lock()
	defer vb.mut.Unlock()
	for i, other := range vb.waiters {
		if other == w {
			vb.waiters = append(vb.waiters[:i], vb.waiters[i+1:]...)
			return
		}
	}
}

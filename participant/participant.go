// Package participant provides the boundary object wrapping one consensus
// engine. It exposes the lifecycle operations (start, stop, incoming vote,
// state read, liveness probe) that the network server and the driver use.
package participant

import (
	"context"

	"github.com/Arturo1s/benor"
	"github.com/Arturo1s/benor/consensus"
	"github.com/Arturo1s/benor/logging"
)

// Liveness probe results.
const (
	StatusLive   = "live"
	StatusFaulty = "faulty"
)

// Controller wraps one consensus engine.
type Controller struct {
	logger   logging.Logger
	identity benor.Identity
	engine   *consensus.Engine
}

// New returns a controller owning a fresh engine for the given participant.
func New(logger logging.Logger, sender consensus.Sender, coin consensus.Coin, identity benor.Identity, initial benor.Value, policy benor.Policy) *Controller {
	return &Controller{
		logger:   logger,
		identity: identity,
		engine:   consensus.New(logger, sender, coin, identity, initial, policy),
	}
}

// Identity returns the participant's immutable parameters.
func (c *Controller) Identity() benor.Identity {
	return c.identity
}

// Status implements the liveness probe. It does not touch consensus state.
func (c *Controller) Status() string {
	if c.identity.Faulty {
		return StatusFaulty
	}
	return StatusLive
}

// State returns a snapshot of the participant's consensus state.
func (c *Controller) State() benor.StateSnapshot {
	return c.engine.Snapshot()
}

// Vote delivers an incoming vote message to the engine's vote buffer.
func (c *Controller) Vote(msg benor.VoteMsg) error {
	return c.engine.OnVote(msg)
}

// Stop kills the participant. It is idempotent; a faulty participant reports
// non-participation instead.
func (c *Controller) Stop() error {
	if c.identity.Faulty {
		return benor.ErrFaulty
	}
	c.engine.Stop()
	return nil
}

// Start runs the engine's round loop and returns its final outcome.
func (c *Controller) Start(ctx context.Context) (benor.Outcome, error) {
	return c.engine.Start(ctx)
}

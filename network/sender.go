package network

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/Arturo1s/benor"
	"github.com/Arturo1s/benor/consensus"
	"github.com/Arturo1s/benor/logging"
)

// Sender delivers vote messages to peer participants over ZeroMQ. It
// implements consensus.Sender.
type Sender struct {
	logger  logging.Logger
	self    benor.ID
	limiter *rate.Limiter

	mut   sync.Mutex
	peers map[benor.ID]*conn
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithRateLimit caps outbound vote sends at r per second.
func WithRateLimit(r float64) SenderOption {
	return func(s *Sender) {
		if r > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(r), 1)
		}
	}
}

// NewSender returns a sender for the participant with the given id.
func NewSender(logger logging.Logger, self benor.ID, opts ...SenderOption) *Sender {
	s := &Sender{
		logger: logger,
		self:   self,
		peers:  make(map[benor.ID]*conn),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens a connection to the peer with the given id.
func (s *Sender) Connect(ctx context.Context, id benor.ID, addr string) error {
	c, err := dial(ctx, fmt.Sprintf("vote-%d-%d", s.self, id), addr)
	if err != nil {
		return err
	}
	s.mut.Lock()
	s.peers[id] = c
	s.mut.Unlock()
	return nil
}

// Vote sends a vote message to the given peer and waits for the ack.
func (s *Sender) Vote(ctx context.Context, id benor.ID, msg benor.VoteMsg) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	s.mut.Lock()
	c, ok := s.peers[id]
	s.mut.Unlock()
	if !ok {
		return fmt.Errorf("no connection to peer %d", id)
	}
	_, err := c.call(ctx, request{Op: opVote, Vote: &msg})
	return err
}

// Close closes all peer connections.
func (s *Sender) Close() {
	s.mut.Lock()
	defer s.mut.Unlock()
	for _, c := range s.peers {
		c.close()
	}
	s.peers = make(map[benor.ID]*conn)
}

var _ consensus.Sender = (*Sender)(nil)

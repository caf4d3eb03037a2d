package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/Arturo1s/benor"
	"github.com/Arturo1s/benor/consensus"
	"github.com/Arturo1s/benor/logging"
	"github.com/Arturo1s/benor/participant"
)

// MockNetwork delivers vote messages between in-process participants by
// calling the recipient's controller directly.
type MockNetwork struct {
	t *testing.T

	mut   sync.Mutex
	ctrls map[benor.ID]*participant.Controller
}

// NewMockNetwork returns an empty mock network.
func NewMockNetwork(t *testing.T) *MockNetwork {
	t.Helper()
	return &MockNetwork{
		t:     t,
		ctrls: make(map[benor.ID]*participant.Controller),
	}
}

// Register adds a controller to the network.
func (n *MockNetwork) Register(id benor.ID, ctrl *participant.Controller) {
	n.mut.Lock()
	defer n.mut.Unlock()
	n.ctrls[id] = ctrl
}

// Controller returns the controller with the given id.
func (n *MockNetwork) Controller(id benor.ID) *participant.Controller {
	n.mut.Lock()
	defer n.mut.Unlock()
	ctrl, ok := n.ctrls[id]
	if !ok {
		n.t.Fatalf("participant %d not found", id)
	}
	return ctrl
}

// Sender returns a sender that delivers through this network on behalf of the
// given participant.
func (n *MockNetwork) Sender(self benor.ID) *MockSender {
	return &MockSender{net: n, self: self}
}

func (n *MockNetwork) deliver(id benor.ID, msg benor.VoteMsg) error {
	n.mut.Lock()
	ctrl, ok := n.ctrls[id]
	n.mut.Unlock()
	if !ok {
		// Models an unreachable peer.
		return fmt.Errorf("peer %d unreachable", id)
	}
	return ctrl.Vote(msg)
}

// MockSender implements consensus.Sender on top of a MockNetwork, recording
// every message it was asked to send.
type MockSender struct {
	net  *MockNetwork
	self benor.ID

	mut  sync.Mutex
	sent []benor.VoteMsg
}

// Vote records the message and delivers it to the recipient's controller.
func (m *MockSender) Vote(_ context.Context, id benor.ID, msg benor.VoteMsg) error {
	m.mut.Lock()
	m.sent = append(m.sent, msg)
	m.mut.Unlock()
	return m.net.deliver(id, msg)
}

// MessagesSent returns a copy of all messages sent so far.
func (m *MockSender) MessagesSent() []benor.VoteMsg {
	m.mut.Lock()
	defer m.mut.Unlock()
	sent := make([]benor.VoteMsg, len(m.sent))
	copy(sent, m.sent)
	return sent
}

var _ consensus.Sender = (*MockSender)(nil)

// GroupConfig describes a test group of participants.
type GroupConfig struct {
	N       int
	F       int
	Initial []benor.Value           // initial belief per id; len must be N
	Faulty  []benor.ID              // ids of faulty participants
	Policy  benor.Policy            // zero value uses defaults
	Coins   map[benor.ID]consensus.Coin // per-id coin override; nil entries get a seeded coin
}

// Group is a set of in-process participants wired through a MockNetwork.
type Group struct {
	Network     *MockNetwork
	Controllers []*participant.Controller
	Senders     []*MockSender
}

// NewGroup builds N participants wired through a fresh MockNetwork.
func NewGroup(t *testing.T, cfg GroupConfig) *Group {
	t.Helper()
	if len(cfg.Initial) != cfg.N {
		t.Fatalf("got %d initial values, want %d", len(cfg.Initial), cfg.N)
	}
	faulty := make(map[benor.ID]bool, len(cfg.Faulty))
	for _, id := range cfg.Faulty {
		faulty[id] = true
	}

	g := &Group{Network: NewMockNetwork(t)}
	for i := 0; i < cfg.N; i++ {
		id := benor.ID(i)
		coin := cfg.Coins[id]
		if coin == nil {
			coin = consensus.NewSeededCoin(uint64(i) + 1)
		}
		sender := g.Network.Sender(id)
		ctrl := participant.New(
			logging.New(fmt.Sprintf("p%d", id)),
			sender,
			coin,
			benor.Identity{ID: id, N: cfg.N, F: cfg.F, Faulty: faulty[id]},
			cfg.Initial[i],
			cfg.Policy,
		)
		g.Network.Register(id, ctrl)
		g.Controllers = append(g.Controllers, ctrl)
		g.Senders = append(g.Senders, sender)
	}
	return g
}

package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/Arturo1s/benor"
	"github.com/Arturo1s/benor/logging"
)

// Client is the driver-side handle to a group of participants: liveness
// probe, state read, stop, and start.
type Client struct {
	logger logging.Logger

	mut   sync.Mutex
	conns map[benor.ID]*conn
}

// NewClient returns a client with no connections.
func NewClient(logger logging.Logger) *Client {
	return &Client{
		logger: logger,
		conns:  make(map[benor.ID]*conn),
	}
}

// Connect opens a connection to the participant with the given id.
func (c *Client) Connect(ctx context.Context, id benor.ID, addr string) error {
	conn, err := dial(ctx, fmt.Sprintf("driver-%d", id), addr)
	if err != nil {
		return err
	}
	c.mut.Lock()
	c.conns[id] = conn
	c.mut.Unlock()
	return nil
}

// Status probes the participant's liveness.
func (c *Client) Status(ctx context.Context, id benor.ID) (string, error) {
	resp, err := c.call(ctx, id, request{Op: opStatus})
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}

// State reads the participant's consensus state.
func (c *Client) State(ctx context.Context, id benor.ID) (benor.StateSnapshot, error) {
	resp, err := c.call(ctx, id, request{Op: opState})
	if err != nil {
		return benor.StateSnapshot{}, err
	}
	if resp.State == nil {
		return benor.StateSnapshot{}, fmt.Errorf("participant %d: empty state response", id)
	}
	return *resp.State, nil
}

// Stop kills the participant.
func (c *Client) Stop(ctx context.Context, id benor.ID) error {
	_, err := c.call(ctx, id, request{Op: opStop})
	return err
}

// Start runs the participant's round loop and blocks until it completes.
func (c *Client) Start(ctx context.Context, id benor.ID) (benor.Outcome, error) {
	resp, err := c.call(ctx, id, request{Op: opStart})
	if err != nil {
		return benor.Outcome{}, err
	}
	if resp.Outcome == nil {
		return benor.Outcome{}, fmt.Errorf("participant %d: empty start response", id)
	}
	return *resp.Outcome, nil
}

func (c *Client) call(ctx context.Context, id benor.ID, req request) (response, error) {
	c.mut.Lock()
	conn, ok := c.conns[id]
	c.mut.Unlock()
	if !ok {
		return response{}, fmt.Errorf("no connection to participant %d", id)
	}
	return conn.call(ctx, req)
}

// Close closes all connections.
func (c *Client) Close() {
	c.mut.Lock()
	defer c.mut.Unlock()
	for _, conn := range c.conns {
		conn.close()
	}
	c.conns = make(map[benor.ID]*conn)
}

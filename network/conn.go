package network

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-zeromq/zmq4"
	json "github.com/goccy/go-json"
)

// conn is one request/response channel to a participant, backed by a DEALER
// socket. A DEALER carries exactly one exchange at a time, so calls are
// serialized. If a call is abandoned while its reply is still pending the
// socket can no longer pair requests with replies; the next call replaces it
// with a fresh one, discarding the stale reply with it.
type conn struct {
	identity string
	addr     string

	mut    sync.Mutex
	ctx    context.Context // socket lifetime, from dial
	sock   zmq4.Socket
	broken bool
}

func dial(ctx context.Context, identity, addr string) (*conn, error) {
	sock := zmq4.NewDealer(ctx, zmq4.WithID(zmq4.SocketIdentity(identity)))
	if err := sock.Dial(addr); err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &conn{identity: identity, addr: addr, ctx: ctx, sock: sock}, nil
}

// redial replaces the socket after an abandoned exchange. Must be called with
// the lock held.
func (c *conn) redial() error {
	_ = c.sock.Close()
	sock := zmq4.NewDealer(c.ctx, zmq4.WithID(zmq4.SocketIdentity(c.identity)))
	if err := sock.Dial(c.addr); err != nil {
		return fmt.Errorf("redial %s: %w", c.addr, err)
	}
	c.sock = sock
	c.broken = false
	return nil
}

func (c *conn) call(ctx context.Context, req request) (response, error) {
	c.mut.Lock()
	defer c.mut.Unlock()

	if c.broken {
		if err := c.redial(); err != nil {
			return response{}, err
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return response{}, fmt.Errorf("marshal request: %w", err)
	}
	if err := c.sock.Send(zmq4.NewMsg(payload)); err != nil {
		return response{}, fmt.Errorf("send: %w", err)
	}

	type result struct {
		msg zmq4.Msg
		err error
	}
	ch := make(chan result, 1)
	go func() {
		msg, err := c.sock.Recv()
		ch <- result{msg, err}
	}()

	select {
	case <-ctx.Done():
		c.broken = true
		return response{}, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			c.broken = true
			return response{}, fmt.Errorf("recv: %w", r.err)
		}
		var resp response
		if err := json.Unmarshal(r.msg.Bytes(), &resp); err != nil {
			return response{}, fmt.Errorf("unmarshal response: %w", err)
		}
		if !resp.OK {
			return resp, errors.New(resp.Error)
		}
		return resp, nil
	}
}

func (c *conn) close() {
	c.mut.Lock()
	defer c.mut.Unlock()
	_ = c.sock.Close()
}

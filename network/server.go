package network

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-zeromq/zmq4"
	json "github.com/goccy/go-json"

	"github.com/Arturo1s/benor/logging"
	"github.com/Arturo1s/benor/participant"
)

// Server serves one participant's boundary operations on a ROUTER socket.
// Requests are handled concurrently so that a long-running start cannot block
// incoming votes.
type Server struct {
	logger logging.Logger
	ctrl   *participant.Controller

	ctx     context.Context
	cancel  context.CancelFunc
	sock    zmq4.Socket
	sendMut sync.Mutex
	wg      sync.WaitGroup
}

// NewServer returns a server for the given controller.
func NewServer(logger logging.Logger, ctrl *participant.Controller) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		logger: logger,
		ctrl:   ctrl,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start binds the server to the given endpoint and begins serving requests.
func (s *Server) Start(addr string) error {
	s.sock = zmq4.NewRouter(s.ctx)
	if err := s.sock.Listen(addr); err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	s.wg.Add(1)
	go s.serve()
	return nil
}

// Addr returns the endpoint the server is bound to. Useful when binding to an
// ephemeral port.
func (s *Server) Addr() string {
	if a := s.sock.Addr(); a != nil {
		return fmt.Sprintf("tcp://%s", a.String())
	}
	return ""
}

// Close shuts the server down and waits for the receive loop to exit.
func (s *Server) Close() {
	s.cancel()
	if s.sock != nil {
		_ = s.sock.Close()
	}
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		msg, err := s.sock.Recv()
		if err != nil {
			if !errors.Is(s.ctx.Err(), context.Canceled) {
				s.logger.Errorf("recv: %v", err)
			}
			return
		}
		if len(msg.Frames) < 2 {
			s.logger.Warnf("dropping short message (%d frames)", len(msg.Frames))
			continue
		}
		// The start operation blocks for the whole round loop, so every
		// request gets its own goroutine.
		identity, payload := msg.Frames[0], msg.Frames[1]
		go s.handle(identity, payload)
	}
}

func (s *Server) handle(identity, payload []byte) {
	var req request
	if err := json.Unmarshal(payload, &req); err != nil {
		s.logger.Warnf("dropping malformed request: %v", err)
		return
	}
	s.reply(identity, s.dispatch(req))
}

func (s *Server) dispatch(req request) response {
	switch req.Op {
	case opStatus:
		return response{OK: true, Status: s.ctrl.Status()}

	case opState:
		snap := s.ctrl.State()
		return response{OK: true, State: &snap}

	case opVote:
		if req.Vote == nil {
			return response{Error: "vote operation without vote message"}
		}
		if err := s.ctrl.Vote(*req.Vote); err != nil {
			return response{Error: err.Error()}
		}
		return response{OK: true}

	case opStop:
		if err := s.ctrl.Stop(); err != nil {
			return response{Error: err.Error()}
		}
		return response{OK: true}

	case opStart:
		outcome, err := s.ctrl.Start(s.ctx)
		if err != nil {
			return response{Error: err.Error()}
		}
		return response{OK: true, Outcome: &outcome}

	default:
		return response{Error: fmt.Sprintf("unknown operation %q", req.Op)}
	}
}

func (s *Server) reply(identity []byte, resp response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Errorf("marshal response: %v", err)
		return
	}
	s.sendMut.Lock()
	defer s.sendMut.Unlock()
	if err := s.sock.Send(zmq4.NewMsgFrom(identity, payload)); err != nil {
		s.logger.Warnf("send reply: %v", err)
	}
}

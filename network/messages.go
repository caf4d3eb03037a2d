// Package network exposes each participant's boundary operations over
// ZeroMQ. A participant binds a ROUTER socket; peers and the driver open
// DEALER sockets towards it and exchange JSON-encoded request/response
// envelopes. Participant i is addressable at basePort+i on the shared host,
// so the numeric id doubles as the routing key.
package network

import (
	"fmt"

	"github.com/Arturo1s/benor"
)

// Operation names carried in the request envelope.
const (
	opStatus = "status"
	opState  = "state"
	opVote   = "vote"
	opStop   = "stop"
	opStart  = "start"
)

type request struct {
	Op   string          `json:"op"`
	Vote *benor.VoteMsg  `json:"vote,omitempty"`
}

type response struct {
	OK      bool                 `json:"ok"`
	Error   string               `json:"error,omitempty"`
	Status  string               `json:"status,omitempty"`
	State   *benor.StateSnapshot `json:"state,omitempty"`
	Outcome *benor.Outcome       `json:"outcome,omitempty"`
}

// Address returns the endpoint for the participant with the given id,
// offset from the group's base port.
func Address(host string, basePort int, id benor.ID) string {
	return fmt.Sprintf("tcp://%s:%d", host, basePort+int(id))
}

// Package didexchange holds the Aries connection protocol messages. Taken
// from aries-framework-go originally and cut down to what the connection
// state machine needs.
package didexchange

import (
	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/findy-network/findy-exchange/std/decorator"
)

// Request defines a2a connection request
// https://github.com/hyperledger/aries-rfcs/tree/master/features/0160-connection-protocol#1-connection-request
type Request struct {
	Type       string            `json:"@type,omitempty"`
	ID         string            `json:"@id,omitempty"`
	Label      string            `json:"label,omitempty"`
	Connection *Connection       `json:"connection,omitempty"`
	Thread     *decorator.Thread `json:"~thread,omitempty"`
}

// Response defines a2a connection response. The Connection is carried only
// inside the signature.
type Response struct {
	Type                string               `json:"@type,omitempty"`
	ID                  string               `json:"@id,omitempty"`
	ConnectionSignature *decorator.Signature `json:"connection~sig,omitempty"`
	Thread              *decorator.Thread    `json:"~thread,omitempty"`

	Connection *Connection `json:"-"` // Actual data, to be signed or verified
}

// Connection is a connection definition
type Connection struct {
	DID    string `json:"DID,omitempty"`
	DIDDoc *Doc   `json:"DIDDoc,omitempty"`
}

// NewRequest builds a request for the invitation identified by invitationID.
// The request's own ID starts the thread.
func NewRequest(label, invitationID string, conn *Connection) *Request {
	id := utils.UUID()
	return &Request{
		Type:       pltype.AriesConnectionRequest,
		ID:         id,
		Label:      label,
		Connection: conn,
		Thread:     &decorator.Thread{ID: id, PID: invitationID},
	}
}

// NewResponse builds an unsigned response to the request thread.
func NewResponse(thread *decorator.Thread, conn *Connection) *Response {
	return &Response{
		Type:       pltype.AriesConnectionResponse,
		ID:         utils.UUID(),
		Thread:     thread,
		Connection: conn,
	}
}

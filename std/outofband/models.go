// Package outofband holds the out-of-band invitation and the handshake reuse
// messages.
package outofband

import (
	"errors"
	"fmt"
	"strings"

	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/findy-network/findy-exchange/std/decorator"
	"github.com/findy-network/findy-exchange/std/didexchange"
)

// HandshakeConnections is the only handshake protocol we can run.
const (
	HandshakeConnections   = pltype.DIDComm + "/" + pltype.AriesProtocolConnection + "/1.0"
	supportedHandshakeName = pltype.AriesProtocolConnection + "/1.0"

	RequestAttachID = "request-0"
)

var ErrInvalid = errors.New("invalid out-of-band invitation")

// Invitation is the out-of-band invitation. Services carry did:key recipient
// keys.
type Invitation struct {
	Type               string                 `json:"@type"`
	ID                 string                 `json:"@id"`
	Label              string                 `json:"label,omitempty"`
	GoalCode           string                 `json:"goal_code,omitempty"`
	Goal               string                 `json:"goal,omitempty"`
	HandshakeProtocols []string               `json:"handshake_protocols,omitempty"`
	RequestAttach      []decorator.Attachment `json:"request~attach,omitempty"`
	Services           []didexchange.Service  `json:"services"`
	ProfileURL         string                 `json:"profileUrl,omitempty"`
}

// New builds an invitation. The attachment is optional and is embedded as
// base64 JSON.
func New(label, goal string, handshake bool, service didexchange.Service, attachment interface{}) *Invitation {
	inv := &Invitation{
		Type:     pltype.OutOfBandInvitation,
		ID:       utils.UUID(),
		Label:    label,
		Goal:     goal,
		Services: []didexchange.Service{service},
	}
	if handshake {
		inv.HandshakeProtocols = []string{HandshakeConnections}
	}
	if attachment != nil {
		inv.RequestAttach = []decorator.Attachment{
			decorator.NewAttachment(RequestAttachID, attachment),
		}
	}
	return inv
}

// Validate checks the rules every received invitation must follow.
func (i *Invitation) Validate() error {
	if len(i.Services) == 0 {
		return fmt.Errorf("%w: services is empty", ErrInvalid)
	}
	if len(i.HandshakeProtocols) == 0 && len(i.RequestAttach) == 0 {
		return fmt.Errorf("%w: handshake_protocols and request~attach cannot both be empty", ErrInvalid)
	}
	if len(i.HandshakeProtocols) > 0 && !i.supportedHandshake() {
		return fmt.Errorf("%w: no supported handshake protocol in %v", ErrInvalid, i.HandshakeProtocols)
	}
	return nil
}

func (i *Invitation) supportedHandshake() bool {
	for _, p := range i.HandshakeProtocols {
		if strings.Contains(p, supportedHandshakeName) {
			return true
		}
	}
	return false
}

// Handshake tells if the inviter expects a connection protocol run.
func (i *Invitation) Handshake() bool {
	return len(i.HandshakeProtocols) > 0
}

// Attachment returns the raw payload of the first request attachment.
func (i *Invitation) Attachment() ([]byte, error) {
	if len(i.RequestAttach) == 0 {
		return nil, decorator.ErrNoAttachmentData
	}
	return i.RequestAttach[0].Bytes()
}

// HandshakeReuse asks the inviter to use an existing connection for the
// invitation. Thread PID is the invitation ID.
type HandshakeReuse struct {
	Type   string            `json:"@type"`
	ID     string            `json:"@id"`
	Thread *decorator.Thread `json:"~thread"`
}

// ReuseAccepted is the answer to HandshakeReuse.
type ReuseAccepted struct {
	Type   string            `json:"@type"`
	ID     string            `json:"@id"`
	Thread *decorator.Thread `json:"~thread"`
}

func NewHandshakeReuse(invitationID string) *HandshakeReuse {
	id := utils.UUID()
	return &HandshakeReuse{
		Type:   pltype.OutOfBandHandshakeReuse,
		ID:     id,
		Thread: &decorator.Thread{ID: id, PID: invitationID},
	}
}

func NewReuseAccepted(thread *decorator.Thread) *ReuseAccepted {
	return &ReuseAccepted{
		Type:   pltype.OutOfBandHandshakeReuseDone,
		ID:     utils.UUID(),
		Thread: thread,
	}
}

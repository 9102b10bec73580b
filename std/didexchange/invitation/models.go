// Taken from aries-framework-go, and heavily modified.

// Package invitation is for invitation data models. An invitation is one of
// three kinds: the legacy invite detail, the Aries connection invitation or
// the out-of-band invitation.
package invitation

import (
	"github.com/findy-network/findy-exchange/std/decorator"
	"github.com/findy-network/findy-exchange/std/legacy"
	"github.com/findy-network/findy-exchange/std/outofband"
)

// Aries defines the connection protocol invitation message
// https://github.com/hyperledger/aries-rfcs/tree/master/features/0160-connection-protocol#0-invitation-to-connect
type Aries struct {
	// the Image URL of the connection invitation
	ImageURL string `json:"imageUrl,omitempty"`

	// the Service endpoint of the connection invitation
	ServiceEndpoint string `json:"serviceEndpoint,omitempty"`

	// the RecipientKeys for the connection invitation
	RecipientKeys []string `json:"recipientKeys,omitempty"`

	// the ID of the connection invitation
	ID string `json:"@id,omitempty"`

	// the Label of the connection invitation
	Label string `json:"label,omitempty"`

	// the DID of the connection invitation
	DID string `json:"did,omitempty"`

	// the RoutingKeys of the connection invitation
	RoutingKeys []string `json:"routingKeys,omitempty"`

	// the Type of the connection invitation
	Type   string            `json:"@type,omitempty"`
	Thread *decorator.Thread `json:"~thread,omitempty"`
}

// Kind of the invitation.
type Kind int

const (
	KindNone Kind = iota
	KindLegacy
	KindAries
	KindOutOfBand
)

func (k Kind) String() string {
	switch k {
	case KindLegacy:
		return "legacy"
	case KindAries:
		return "aries"
	case KindOutOfBand:
		return "out-of-band"
	default:
		return "none"
	}
}

// Invitation holds exactly one of the invitation kinds. It's stored as is
// with the connection record.
type Invitation struct {
	Legacy    *legacy.InviteDetail  `json:"legacy,omitempty"`
	Aries     *Aries                `json:"aries,omitempty"`
	OutOfBand *outofband.Invitation `json:"oob,omitempty"`
}

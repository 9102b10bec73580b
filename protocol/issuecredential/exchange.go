// Package issuecredential is the credential exchange state machine. The
// issuer offers a credential of its credential definition, the holder
// requests it, the issuer issues it and the holder stores it and acks.
// Either end can give up with a problem report, which ends the exchange for
// both.
//
// The exchange runs over an accepted connection. An offer can also be
// delivered as the attachment of an out-of-band invitation, then the issuer
// learns the holder from the request.
package issuecredential

import (
	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/prot"
	"github.com/findy-network/findy-exchange/std/common"
)

// Protocol is the protocol family name of the credential exchange records.
const Protocol = pltype.ProtocolIssueCredential

// exchange is the part the issuer and the holder share.
type exchange = prot.Exchange[State, event]

var rules = &prot.Rules[State, event]{
	Protocol: Protocol,
	Name:     "credential exchange",
	Next:     next,
	Problem:  evProblem,
	Fail:     evFail,
	Deleted:  common.CodeIssuanceAbandoned,
}

// Package presentproof is the proof exchange state machine. The verifier
// requests a presentation, the prover answers it with a proof built from its
// stored credentials and the verifier checks the proof. The prover can start
// the exchange with a proposal the verifier turns into a request.
//
// A request can also be delivered as the attachment of an out-of-band
// invitation, then the verifier learns the prover from the presentation.
package presentproof

import (
	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/prot"
	"github.com/findy-network/findy-exchange/std/common"
)

// Protocol is the protocol family name of the proof exchange records.
const Protocol = pltype.ProtocolPresentProof

type exchange = prot.Exchange[State, event]

var rules = &prot.Rules[State, event]{
	Protocol: Protocol,
	Name:     "proof exchange",
	Next:     next,
	Problem:  evProblem,
	Fail:     evFail,
	Deleted:  common.CodePresentationAbandoned,
}

package presentproof

import (
	"encoding/json"
	"fmt"

	"github.com/findy-network/findy-exchange/agent/prot"
)

// State is the detailed state of a proof exchange.
type State int

const (
	StateInitial State = iota
	StateProposalPrepared
	StateProposalSent
	StateRequestSent
	StateRequestReceived
	StatePresentationPrepared
	StatePresentationSent
	StateAccepted
	StateRejected
	StateFailed
)

var stateNames = [...]string{
	"Initial",
	"ProposalPrepared",
	"ProposalSent",
	"RequestSent",
	"RequestReceived",
	"PresentationPrepared",
	"PresentationSent",
	"Accepted",
	"Rejected",
	"Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	for i, n := range stateNames {
		if n == name {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown proof exchange state %q", name)
}

func (s State) Terminal() bool {
	switch s {
	case StateAccepted, StateRejected, StateFailed:
		return true
	}
	return false
}

// Abandoned tells if the exchange ended without success.
func (s State) Abandoned() bool {
	return s == StateRejected || s == StateFailed
}

// Code returns the numeric state. A prepared proposal counts as
// initialized, everything we've sent and wait an answer to as OfferSent.
func (s State) Code(r prot.Role) prot.StateCode {
	switch s {
	case StateInitial:
		if r == prot.RoleProver {
			return prot.StateNone
		}
		return prot.StateInitialized
	case StateProposalPrepared:
		return prot.StateInitialized
	case StateProposalSent, StateRequestSent, StatePresentationSent:
		return prot.StateOfferSent
	case StateRequestReceived, StatePresentationPrepared:
		return prot.StateRequestReceived
	case StateAccepted:
		return prot.StateAccepted
	case StateRejected, StateFailed:
		return prot.StateRejected
	default:
		return prot.StateNone
	}
}

// ProofState is the verifier's verdict of the received presentation.
type ProofState int

const (
	ProofUndefined ProofState = iota
	ProofVerified
	ProofInvalid
)

func (p ProofState) String() string {
	switch p {
	case ProofVerified:
		return "Verified"
	case ProofInvalid:
		return "Invalid"
	}
	return "Undefined"
}

type event int

const (
	evPrepareProposal event = iota + 1
	evSendProposal
	evProposal
	evPrepareRequest
	evSendRequest
	evRequest
	evPrepare
	evSendPresentation
	evPresentation
	evAck
	evReject
	evProblem
	evFail
)

var eventNames = map[event]string{
	evPrepareProposal:  "prepare proposal",
	evSendProposal:     "send proposal",
	evProposal:         "proposal",
	evPrepareRequest:   "prepare request",
	evSendRequest:      "send request",
	evRequest:          "request",
	evPrepare:          "generate proof",
	evSendPresentation: "send presentation",
	evPresentation:     "presentation",
	evAck:              "ack",
	evReject:           "reject",
	evProblem:          "problem-report",
	evFail:             "fail",
}

func (e event) String() string {
	return eventNames[e]
}

type edge struct {
	role  prot.Role
	from  State
	event event
}

var transitions = map[edge]State{
	{prot.RoleVerifier, StateInitial, evSendRequest}:                 StateRequestSent,
	{prot.RoleVerifier, StateInitial, evPrepareRequest}:              StateRequestSent,
	{prot.RoleVerifier, StateRequestSent, evPresentation}:            StateAccepted,
	{prot.RoleProver, StateInitial, evPrepareProposal}:               StateProposalPrepared,
	{prot.RoleProver, StateInitial, evRequest}:                       StateRequestReceived,
	{prot.RoleProver, StateProposalPrepared, evSendProposal}:         StateProposalSent,
	{prot.RoleProver, StateProposalSent, evRequest}:                  StateRequestReceived,
	{prot.RoleProver, StateRequestReceived, evPrepare}:               StatePresentationPrepared,
	{prot.RoleProver, StatePresentationPrepared, evPrepare}:          StatePresentationPrepared,
	{prot.RoleProver, StatePresentationPrepared, evSendPresentation}: StatePresentationSent,
	{prot.RoleProver, StatePresentationSent, evAck}:                  StateAccepted,
}

// next returns the state the event moves the exchange to. A sent
// presentation can't be taken back, the prover can only wait for the
// verifier's answer.
func next(r prot.Role, from State, e event) (State, bool) {
	switch e {
	case evReject:
		if from.Terminal() || from == StatePresentationSent {
			return from, false
		}
		return StateRejected, true
	case evProblem:
		if from.Terminal() {
			return from, false
		}
		return StateRejected, true
	case evFail:
		if from.Terminal() {
			return from, false
		}
		return StateFailed, true
	}
	to, ok := transitions[edge{r, from, e}]
	return to, ok
}

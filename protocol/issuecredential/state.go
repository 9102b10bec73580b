package issuecredential

import (
	"encoding/json"
	"fmt"

	"github.com/findy-network/findy-exchange/agent/prot"
)

// State is the detailed state of a credential exchange. The issuer and the
// holder have their own paths through it, StateCode maps them to the shared
// numeric codes.
type State int

const (
	StateInitial State = iota
	StateOfferSent
	StateOfferReceived
	StateRequestSent
	StateRequestReceived
	StateCredentialSent
	StateAccepted
	StateRejected
	StateFailed
	StateRevoked
)

var stateNames = [...]string{
	"Initial",
	"OfferSent",
	"OfferReceived",
	"RequestSent",
	"RequestReceived",
	"CredentialSent",
	"Accepted",
	"Rejected",
	"Failed",
	"Revoked",
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
	return fmt.Errorf("unknown credential exchange state %q", name)
}

// Terminal tells if the exchange is finished.
func (s State) Terminal() bool {
	switch s {
	case StateAccepted, StateRejected, StateFailed, StateRevoked:
		return true
	}
	return false
}

// Abandoned tells if the exchange ended without success.
func (s State) Abandoned() bool {
	return s == StateRejected || s == StateFailed
}

// Code returns the numeric state. The holder's codes are the issuer's seen
// from the other end: a received offer is RequestReceived and a sent
// request is OfferSent.
func (s State) Code(r prot.Role) prot.StateCode {
	switch s {
	case StateInitial:
		if r == prot.RoleHolder {
			return prot.StateNone
		}
		return prot.StateInitialized
	case StateOfferSent, StateRequestSent:
		return prot.StateOfferSent
	case StateOfferReceived, StateRequestReceived:
		return prot.StateRequestReceived
	case StateCredentialSent, StateAccepted:
		return prot.StateAccepted
	case StateRejected, StateFailed:
		return prot.StateRejected
	case StateRevoked:
		return prot.StateRevoked
	default:
		return prot.StateNone
	}
}

// Status is the outcome of a finished holder exchange.
type Status string

const (
	StatusUndefined Status = "Undefined"
	StatusSuccess   Status = "Success"
	StatusRejected  Status = "Rejected"
	StatusFailed    Status = "Failed"
)

type event int

const (
	evOffer event = iota + 1
	evPrepareOffer
	evSendOffer
	evRequest
	evSendRequest
	evSendCredential
	evCredential
	evAck
	evRevoke
	evReject
	evProblem
	evFail
)

var eventNames = map[event]string{
	evOffer:          "offer",
	evPrepareOffer:   "prepare offer",
	evSendOffer:      "send offer",
	evRequest:        "request",
	evSendRequest:    "send request",
	evSendCredential: "send credential",
	evCredential:     "credential",
	evAck:            "ack",
	evRevoke:         "revoke",
	evReject:         "reject",
	evProblem:        "problem-report",
	evFail:           "fail",
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
	{prot.RoleIssuer, StateInitial, evSendOffer}:              StateOfferSent,
	{prot.RoleIssuer, StateInitial, evPrepareOffer}:           StateOfferSent,
	{prot.RoleIssuer, StateOfferSent, evRequest}:              StateRequestReceived,
	{prot.RoleIssuer, StateRequestReceived, evSendCredential}: StateCredentialSent,
	{prot.RoleIssuer, StateCredentialSent, evAck}:             StateAccepted,
	{prot.RoleIssuer, StateCredentialSent, evRevoke}:          StateRevoked,
	{prot.RoleIssuer, StateAccepted, evRevoke}:                StateRevoked,
	{prot.RoleHolder, StateInitial, evOffer}:                  StateOfferReceived,
	{prot.RoleHolder, StateOfferReceived, evSendRequest}:      StateRequestSent,
	{prot.RoleHolder, StateRequestSent, evCredential}:         StateAccepted,
}

// next returns the state the event moves the exchange to. Rejections and
// failures end every unfinished exchange.
func next(r prot.Role, from State, e event) (State, bool) {
	switch e {
	case evReject, evProblem:
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

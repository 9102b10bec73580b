package connection

import (
	"github.com/findy-network/findy-exchange/agent/prot"
)

type event int

const (
	evCreate event = iota + 1
	evCreateFromInvitation
	evCreateOneShot
	evConnect
	evConnectOneShot
	evRequest
	evResponse
	evAck
	evAnswer
	evRedirect
	evProblem
	evDelete
)

var eventNames = map[event]string{
	evCreate:               "create",
	evCreateFromInvitation: "createFromInvitation",
	evCreateOneShot:        "createFromInvitation(no handshake)",
	evConnect:              "connect",
	evConnectOneShot:       "connect(no handshake)",
	evRequest:              "request",
	evResponse:             "response",
	evAck:                  "ack",
	evAnswer:               "answer",
	evRedirect:             "redirect",
	evProblem:              "problem-report",
	evDelete:               "delete",
}

func (e event) String() string {
	return eventNames[e]
}

type edge struct {
	variant prot.Variant
	role    prot.Role
	from    prot.StateCode
	event   event
}

// transitions is the state graph of both variants and roles. Out-of-band
// connections run the Aries rows.
var transitions = map[edge]prot.StateCode{
	{prot.Aries, prot.RoleInviter, prot.StateNone, evCreate}:                prot.StateInitialized,
	{prot.Aries, prot.RoleInviter, prot.StateInitialized, evConnect}:        prot.StateOfferSent,
	{prot.Aries, prot.RoleInviter, prot.StateInitialized, evConnectOneShot}: prot.StateAccepted,
	{prot.Aries, prot.RoleInviter, prot.StateOfferSent, evRequest}:          prot.StateRequestReceived,
	{prot.Aries, prot.RoleInviter, prot.StateRequestReceived, evAck}:        prot.StateAccepted,
	{prot.Aries, prot.RoleInvitee, prot.StateNone, evCreateFromInvitation}:  prot.StateOfferSent,
	{prot.Aries, prot.RoleInvitee, prot.StateNone, evCreateOneShot}:         prot.StateAccepted,
	{prot.Aries, prot.RoleInvitee, prot.StateOfferSent, evConnect}:          prot.StateRequestReceived,
	{prot.Aries, prot.RoleInvitee, prot.StateRequestReceived, evResponse}:   prot.StateAccepted,
	{prot.Legacy, prot.RoleInviter, prot.StateNone, evCreate}:               prot.StateInitialized,
	{prot.Legacy, prot.RoleInviter, prot.StateInitialized, evConnect}:       prot.StateOfferSent,
	{prot.Legacy, prot.RoleInviter, prot.StateOfferSent, evAnswer}:          prot.StateAccepted,
	{prot.Legacy, prot.RoleInviter, prot.StateOfferSent, evRedirect}:        prot.StateRedirected,
	{prot.Legacy, prot.RoleInvitee, prot.StateNone, evCreateFromInvitation}: prot.StateRequestReceived,
	{prot.Legacy, prot.RoleInvitee, prot.StateRequestReceived, evConnect}:   prot.StateAccepted,
	{prot.Legacy, prot.RoleInvitee, prot.StateRequestReceived, evRedirect}:  prot.StateRedirected,
}

// next returns the state the event moves the connection to. Problem reports
// and deletion move every existing connection back to None.
func next(v prot.Variant, r prot.Role, from prot.StateCode, e event) (prot.StateCode, bool) {
	switch e {
	case evDelete:
		return prot.StateNone, true
	case evProblem:
		if from == prot.StateNone || from == prot.StateRedirected {
			return from, false
		}
		return prot.StateNone, true
	}
	to, ok := transitions[edge{v, r, from, e}]
	return to, ok
}

// stateName is the detailed name stored with the state history.
func stateName(v prot.Variant, r prot.Role, s prot.StateCode) string {
	switch s {
	case prot.StateNone:
		return "Null"
	case prot.StateOfferSent:
		if r == prot.RoleInvitee {
			return "Invited"
		}
		return "InvitationSent"
	case prot.StateRequestReceived:
		if v == prot.Legacy || r == prot.RoleInviter {
			return "Requested"
		}
		return "RequestSent"
	case prot.StateAccepted:
		return "Completed"
	default:
		return s.String()
	}
}

package connection

import (
	"testing"

	"github.com/findy-network/findy-exchange/agent/prot"
	"github.com/lainio/err2/assert"
)

func TestNext(t *testing.T) {
	type step struct {
		e  event
		to prot.StateCode
	}
	tests := []struct {
		name  string
		v     prot.Variant
		r     prot.Role
		steps []step
	}{
		{"aries inviter", prot.Aries, prot.RoleInviter, []step{
			{evCreate, prot.StateInitialized},
			{evConnect, prot.StateOfferSent},
			{evRequest, prot.StateRequestReceived},
			{evAck, prot.StateAccepted},
		}},
		{"aries invitee", prot.Aries, prot.RoleInvitee, []step{
			{evCreateFromInvitation, prot.StateOfferSent},
			{evConnect, prot.StateRequestReceived},
			{evResponse, prot.StateAccepted},
		}},
		{"one-shot inviter", prot.Aries, prot.RoleInviter, []step{
			{evCreate, prot.StateInitialized},
			{evConnectOneShot, prot.StateAccepted},
		}},
		{"one-shot invitee", prot.Aries, prot.RoleInvitee, []step{
			{evCreateOneShot, prot.StateAccepted},
		}},
		{"legacy inviter", prot.Legacy, prot.RoleInviter, []step{
			{evCreate, prot.StateInitialized},
			{evConnect, prot.StateOfferSent},
			{evAnswer, prot.StateAccepted},
		}},
		{"legacy invitee", prot.Legacy, prot.RoleInvitee, []step{
			{evCreateFromInvitation, prot.StateRequestReceived},
			{evConnect, prot.StateAccepted},
		}},
		{"legacy redirected inviter", prot.Legacy, prot.RoleInviter, []step{
			{evCreate, prot.StateInitialized},
			{evConnect, prot.StateOfferSent},
			{evRedirect, prot.StateRedirected},
		}},
		{"legacy redirecting invitee", prot.Legacy, prot.RoleInvitee, []step{
			{evCreateFromInvitation, prot.StateRequestReceived},
			{evRedirect, prot.StateRedirected},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.PushTester(t)
			defer assert.PopTester()

			s := prot.StateNone
			for _, st := range tt.steps {
				to, ok := next(tt.v, tt.r, s, st.e)
				assert.That(ok, "%s in %s", st.e, s)
				assert.Equal(to, st.to)
				s = to
			}
		})
	}
}

func TestNext_NotAllowed(t *testing.T) {
	tests := []struct {
		name string
		v    prot.Variant
		r    prot.Role
		from prot.StateCode
		e    event
	}{
		{"connect before create", prot.Aries, prot.RoleInviter, prot.StateNone, evConnect},
		{"request to invitee", prot.Aries, prot.RoleInvitee, prot.StateOfferSent, evRequest},
		{"response to inviter", prot.Aries, prot.RoleInviter, prot.StateRequestReceived, evResponse},
		{"redirect in aries", prot.Aries, prot.RoleInviter, prot.StateOfferSent, evRedirect},
		{"redirect accepted", prot.Legacy, prot.RoleInvitee, prot.StateAccepted, evRedirect},
		{"connect twice", prot.Aries, prot.RoleInviter, prot.StateOfferSent, evConnect},
		{"ack before request", prot.Aries, prot.RoleInviter, prot.StateOfferSent, evAck},
		{"problem in none", prot.Aries, prot.RoleInviter, prot.StateNone, evProblem},
		{"problem when redirected", prot.Legacy, prot.RoleInviter, prot.StateRedirected, evProblem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.PushTester(t)
			defer assert.PopTester()

			_, ok := next(tt.v, tt.r, tt.from, tt.e)
			assert.ThatNot(ok)
		})
	}
}

func TestNext_ProblemAndDelete(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	for _, s := range []prot.StateCode{
		prot.StateInitialized,
		prot.StateOfferSent,
		prot.StateRequestReceived,
		prot.StateAccepted,
	} {
		to, ok := next(prot.Aries, prot.RoleInvitee, s, evProblem)
		assert.That(ok)
		assert.Equal(to, prot.StateNone)

		to, ok = next(prot.Legacy, prot.RoleInviter, s, evDelete)
		assert.That(ok)
		assert.Equal(to, prot.StateNone)
	}
}

func TestStateName(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	assert.Equal(stateName(prot.Aries, prot.RoleInvitee, prot.StateOfferSent), "Invited")
	assert.Equal(stateName(prot.Aries, prot.RoleInviter, prot.StateOfferSent), "InvitationSent")
	assert.Equal(stateName(prot.Aries, prot.RoleInvitee, prot.StateRequestReceived), "RequestSent")
	assert.Equal(stateName(prot.Legacy, prot.RoleInvitee, prot.StateRequestReceived), "Requested")
	assert.Equal(stateName(prot.Legacy, prot.RoleInviter, prot.StateRedirected), "Redirected")
	assert.Equal(stateName(prot.Aries, prot.RoleInviter, prot.StateNone), "Null")
}

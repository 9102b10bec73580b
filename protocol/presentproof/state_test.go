package presentproof

import (
	"testing"

	"github.com/findy-network/findy-exchange/agent/prot"
	"github.com/lainio/err2/assert"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name   string
		role   prot.Role
		events []event
		want   State
	}{
		{"verifier", prot.RoleVerifier, []event{evSendRequest, evPresentation}, StateAccepted},
		{"verifier out-of-band", prot.RoleVerifier, []event{evPrepareRequest, evPresentation}, StateAccepted},
		{"prover", prot.RoleProver, []event{evRequest, evPrepare, evSendPresentation, evAck}, StateAccepted},
		{"prover selects again", prot.RoleProver, []event{evRequest, evPrepare, evPrepare, evSendPresentation}, StatePresentationSent},
		{"proposal first", prot.RoleProver, []event{evPrepareProposal, evSendProposal, evRequest, evPrepare}, StatePresentationPrepared},
		{"prover rejects", prot.RoleProver, []event{evRequest, evReject}, StateRejected},
		{"prover gets problem", prot.RoleProver, []event{evRequest, evPrepare, evSendPresentation, evProblem}, StateRejected},
		{"verifier fails", prot.RoleVerifier, []event{evSendRequest, evFail}, StateFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.PushTester(t)
			defer assert.PopTester()

			s := StateInitial
			for _, e := range tt.events {
				to, ok := next(tt.role, s, e)
				assert.That(ok, "%s in %s", e, s)
				s = to
			}
			assert.Equal(s, tt.want)
		})
	}
}

func TestNext_NotAllowed(t *testing.T) {
	tests := []struct {
		name string
		role prot.Role
		from State
		e    event
	}{
		{"reject sent presentation", prot.RoleProver, StatePresentationSent, evReject},
		{"send before generating", prot.RoleProver, StateRequestReceived, evSendPresentation},
		{"verifier takes request", prot.RoleVerifier, StateInitial, evRequest},
		{"presentation before request", prot.RoleVerifier, StateInitial, evPresentation},
		{"request twice", prot.RoleVerifier, StateRequestSent, evSendRequest},
		{"problem after accept", prot.RoleVerifier, StateAccepted, evProblem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.PushTester(t)
			defer assert.PopTester()

			to, ok := next(tt.role, tt.from, tt.e)
			assert.ThatNot(ok)
			assert.Equal(to, tt.from)
		})
	}
}

func TestState_Code(t *testing.T) {
	tests := []struct {
		s    State
		role prot.Role
		want prot.StateCode
	}{
		{StateInitial, prot.RoleVerifier, prot.StateInitialized},
		{StateInitial, prot.RoleProver, prot.StateNone},
		{StateProposalPrepared, prot.RoleProver, prot.StateInitialized},
		{StateProposalSent, prot.RoleProver, prot.StateOfferSent},
		{StateRequestSent, prot.RoleVerifier, prot.StateOfferSent},
		{StateRequestReceived, prot.RoleProver, prot.StateRequestReceived},
		{StatePresentationPrepared, prot.RoleProver, prot.StateRequestReceived},
		{StatePresentationSent, prot.RoleProver, prot.StateOfferSent},
		{StateAccepted, prot.RoleVerifier, prot.StateAccepted},
		{StateRejected, prot.RoleProver, prot.StateRejected},
		{StateFailed, prot.RoleVerifier, prot.StateRejected},
	}
	for _, tt := range tests {
		t.Run(tt.s.String()+"/"+tt.role.String(), func(t *testing.T) {
			assert.PushTester(t)
			defer assert.PopTester()

			assert.Equal(tt.s.Code(tt.role), tt.want)
		})
	}
}

func TestProofState_String(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	assert.Equal(ProofUndefined.String(), "Undefined")
	assert.Equal(ProofVerified.String(), "Verified")
	assert.Equal(ProofInvalid.String(), "Invalid")
}

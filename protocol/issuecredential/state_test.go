package issuecredential

import (
	"encoding/json"
	"testing"

	"github.com/findy-network/findy-exchange/agent/prot"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name   string
		role   prot.Role
		events []event
		want   State
	}{
		{"issuer", prot.RoleIssuer, []event{evSendOffer, evRequest, evSendCredential, evAck}, StateAccepted},
		{"issuer out-of-band", prot.RoleIssuer, []event{evPrepareOffer, evRequest, evSendCredential, evAck}, StateAccepted},
		{"issuer revokes", prot.RoleIssuer, []event{evSendOffer, evRequest, evSendCredential, evAck, evRevoke}, StateRevoked},
		{"holder", prot.RoleHolder, []event{evOffer, evSendRequest, evCredential}, StateAccepted},
		{"holder rejects", prot.RoleHolder, []event{evOffer, evReject}, StateRejected},
		{"issuer gets problem", prot.RoleIssuer, []event{evSendOffer, evProblem}, StateRejected},
		{"holder fails", prot.RoleHolder, []event{evOffer, evSendRequest, evFail}, StateFailed},
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
		{"send credential before request", prot.RoleIssuer, StateOfferSent, evSendCredential},
		{"holder sends offer", prot.RoleHolder, StateInitial, evSendOffer},
		{"issuer takes credential", prot.RoleIssuer, StateRequestReceived, evCredential},
		{"reject accepted", prot.RoleHolder, StateAccepted, evReject},
		{"problem after reject", prot.RoleIssuer, StateRejected, evProblem},
		{"fail twice", prot.RoleHolder, StateFailed, evFail},
		{"revoke before issuing", prot.RoleIssuer, StateRequestReceived, evRevoke},
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
		{StateInitial, prot.RoleIssuer, prot.StateInitialized},
		{StateOfferSent, prot.RoleIssuer, prot.StateOfferSent},
		{StateRequestReceived, prot.RoleIssuer, prot.StateRequestReceived},
		{StateCredentialSent, prot.RoleIssuer, prot.StateAccepted},
		{StateOfferReceived, prot.RoleHolder, prot.StateRequestReceived},
		{StateRequestSent, prot.RoleHolder, prot.StateOfferSent},
		{StateAccepted, prot.RoleHolder, prot.StateAccepted},
		{StateRejected, prot.RoleHolder, prot.StateRejected},
		{StateFailed, prot.RoleHolder, prot.StateRejected},
		{StateRevoked, prot.RoleIssuer, prot.StateRevoked},
	}
	for _, tt := range tests {
		t.Run(tt.s.String()+"/"+tt.role.String(), func(t *testing.T) {
			assert.PushTester(t)
			defer assert.PopTester()

			assert.Equal(tt.s.Code(tt.role), tt.want)
		})
	}
}

func TestState_JSON(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	data := try.To1(json.Marshal(StateCredentialSent))
	assert.Equal(string(data), `"CredentialSent"`)

	var s State
	try.To(json.Unmarshal(data, &s))
	assert.Equal(s, StateCredentialSent)

	assert.Error(json.Unmarshal([]byte(`"Issued"`), &s))
	assert.Equal(State(42).String(), "State(42)")
}

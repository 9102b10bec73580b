package presentproof_test

import (
	"context"
	"errors"
	"flag"
	"os"
	"testing"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/prot"
	"github.com/findy-network/findy-exchange/agent/storage/api"
	"github.com/findy-network/findy-exchange/agent/storage/mgddb"
	"github.com/findy-network/findy-exchange/agent/trans"
	"github.com/findy-network/findy-exchange/agent/vc"
	"github.com/findy-network/findy-exchange/protocol/connection"
	"github.com/findy-network/findy-exchange/protocol/internal/exchangetest"
	"github.com/findy-network/findy-exchange/protocol/issuecredential"
	"github.com/findy-network/findy-exchange/protocol/presentproof"
	"github.com/findy-network/findy-exchange/std/common"
	"github.com/findy-network/findy-exchange/std/decorator"
	"github.com/findy-network/findy-exchange/std/didexchange/invitation"
	stdproof "github.com/findy-network/findy-exchange/std/presentproof"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

var ctx = context.Background()

func TestMain(m *testing.M) {
	try.To(flag.Set("logtostderr", "true"))
	try.To(flag.Set("v", "3"))
	os.Exit(m.Run())
}

type setup struct {
	n            *exchangetest.Network
	faber, alice *prot.Agent
	ours, theirs *connection.Connection
	cd           *vc.CredDef
	issuer       *issuecredential.Issuer
}

// newSetup connects faber and alice and issues alice an email credential.
func newSetup(t *testing.T, revocable bool) *setup {
	n := exchangetest.NewNetwork()
	s := &setup{n: n, faber: n.Agent("faber"), alice: n.Agent("alice")}
	s.ours, s.theirs = exchangetest.Connect(t, s.faber, s.alice)
	s.cd = n.CredDef(s.faber, "email", []string{"email", "name", "age"}, revocable)

	values := map[string]string{"email": "alice@example.com", "name": "Alice", "age": "30"}
	s.issuer = try.To1(issuecredential.CreateWithAttributes(ctx, s.faber, "faber", s.cd.ID, "", values))
	try.To(s.issuer.SendOffer(ctx, s.ours))
	offers := try.To1(issuecredential.Offers(ctx, s.alice, s.theirs))
	holder := try.To1(issuecredential.CreateFromMessage(ctx, s.alice, "alice", offers[0]))
	try.To(holder.SendRequest(ctx, s.theirs))
	try.To1(s.issuer.UpdateState(ctx))
	try.To(s.issuer.SendCredential(ctx))
	assert.Equal(try.To1(holder.UpdateState(ctx)), prot.StateAccepted)
	assert.Equal(try.To1(s.issuer.UpdateState(ctx)), prot.StateAccepted)
	return s
}

func (s *setup) pending() []trans.Message {
	return try.To1(s.n.Relay.Download(ctx, trans.Filter{Status: trans.StatusReceived}))
}

func owned(a *prot.Agent, thid string) bool {
	_, found := try.To2(a.Store.ThreadOwner(thid))
	return found
}

func (s *setup) request(nonRevoked *vc.Interval) *presentproof.Verifier {
	restricted := []vc.Restriction{{CredDefID: s.cd.ID}}
	return try.To1(presentproof.CreateRequest(s.faber, "faber", "email proof",
		[]vc.AttrInfo{
			{Name: "email", Restrictions: restricted},
			{Names: []string{"name", "age"}, Restrictions: restricted},
		},
		[]vc.PredicateInfo{{Name: "age", PType: vc.PredicateGE, PValue: 18, Restrictions: restricted}},
		nonRevoked,
	))
}

// prove answers the received request with the first candidates.
func (s *setup) prove() *presentproof.Prover {
	reqs := try.To1(presentproof.Requests(ctx, s.alice, s.theirs))
	assert.SLen(reqs, 1)
	prover := try.To1(presentproof.CreateFromMessage(ctx, s.alice, "alice", reqs[0]))
	creds := try.To1(prover.QueryCredentials(ctx))
	try.To(prover.GenerateProof(ctx, creds.FirstCandidates()))
	return prover
}

func TestPresentProof(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newSetup(t, false)
	verifier := s.request(nil)
	assert.Equal(verifier.StateCode(), prot.StateInitialized)
	assert.NoError(verifier.RequestProof(ctx, s.ours))
	assert.Equal(verifier.StateCode(), prot.StateOfferSent)
	assert.Equal(verifier.ProofState(), presentproof.ProofUndefined)

	prover := s.prove()
	assert.Equal(prover.ThreadID(), verifier.ThreadID())
	assert.Equal(prover.State, presentproof.StatePresentationPrepared)
	assert.Equal(prover.StateCode(), prot.StateRequestReceived)

	assert.NoError(prover.SendProof(ctx, s.theirs))
	assert.Equal(prover.StateCode(), prot.StateOfferSent)

	assert.Equal(try.To1(verifier.UpdateState(ctx)), prot.StateAccepted)
	assert.Equal(verifier.ProofState(), presentproof.ProofVerified)
	revealed := try.To1(verifier.Revealed())
	assert.Equal(revealed["attr_referent_1"], "alice@example.com")
	assert.Equal(revealed["attr_referent_2.name"], "Alice")
	assert.Equal(revealed["attr_referent_2.age"], "30")

	assert.Equal(try.To1(prover.UpdateState(ctx)), prot.StateAccepted)
	assert.SLen(s.pending(), 0)
}

func TestProposalFirstProof(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newSetup(t, false)
	preview := stdproof.NewPreview(
		[]stdproof.Attribute{{Name: "email", CredDefID: s.cd.ID}},
		[]stdproof.Predicate{{Name: "age", Predicate: vc.PredicateGT, Threshold: 21}},
	)
	prover := try.To1(presentproof.CreateProposal(s.alice, "alice", "my email", preview))
	assert.Equal(prover.StateCode(), prot.StateInitialized)
	assert.NoError(prover.SendProposal(ctx, s.theirs))
	assert.Equal(prover.State, presentproof.StateProposalSent)

	proposals := try.To1(presentproof.Proposals(ctx, s.faber, s.ours))
	assert.SLen(proposals, 1)
	verifier := try.To1(presentproof.CreateWithProposal(ctx, s.faber, "faber", "proposed", proposals[0]))
	assert.Equal(verifier.ThreadID(), prover.ThreadID())
	assert.Equal(len(verifier.ProofRequest.RequestedAttributes), 1)
	assert.Equal(len(verifier.ProofRequest.RequestedPredicates), 1)
	assert.NoError(verifier.RequestProof(ctx, s.ours))

	// the request answers the proposal, it isn't a new one
	assert.SLen(try.To1(presentproof.Requests(ctx, s.alice, s.theirs)), 0)
	assert.Equal(try.To1(prover.UpdateState(ctx)), prot.StateRequestReceived)

	creds := try.To1(prover.QueryCredentials(ctx))
	assert.SLen(creds.Attrs["attr_referent_1"], 1)
	assert.NoError(prover.GenerateProof(ctx, creds.FirstCandidates()))

	presentation := stdproof.NewPresentation(&decorator.Thread{ID: prover.ThreadID()}, prover.Proof)
	m := try.To1(trans.NewMessage("presentation-1", s.ours.Pairwise().Me.VerKey,
		s.theirs.Pairwise().Me.VerKey, dto.ToJSONBytes(presentation)))

	assert.Equal(try.To1(verifier.UpdateStateWithMessage(ctx, m)), prot.StateAccepted)
	assert.Equal(verifier.ProofState(), presentproof.ProofVerified)

	// replay changes nothing
	before := try.To1(verifier.Serialize())
	assert.Equal(try.To1(verifier.UpdateStateWithMessage(ctx, m)), prot.StateAccepted)
	assert.DeepEqual(try.To1(verifier.Serialize()), before)
}

func TestInvalidPresentation(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newSetup(t, false)
	verifier := s.request(nil)
	try.To(verifier.RequestProof(ctx, s.ours))
	prover := s.prove()

	forged := *prover.Proof
	forged.Credentials = append([]vc.Credential(nil), prover.Proof.Credentials...)
	values := make(map[string]vc.AttrValue)
	for name, v := range forged.Credentials[0].Values {
		values[name] = v
	}
	values["age"] = vc.AttrValue{Raw: "99", Encoded: vc.Encode("99")}
	forged.Credentials[0].Values = values

	presentation := stdproof.NewPresentation(prover.Reply(prover.RequestMsg.Thread), &forged)
	m := try.To1(trans.NewMessage("forged-1", s.ours.Pairwise().Me.VerKey,
		s.theirs.Pairwise().Me.VerKey, dto.ToJSONBytes(presentation)))

	assert.Equal(try.To1(verifier.UpdateStateWithMessage(ctx, m)), prot.StateAccepted)
	assert.Equal(verifier.ProofState(), presentproof.ProofInvalid)
	_, err := verifier.Revealed()
	assert.That(errors.Is(err, prot.ErrPrecondition))

	// the prover is told with a problem report
	try.To(prover.SendProof(ctx, s.theirs))
	assert.Equal(try.To1(prover.UpdateState(ctx)), prot.StateRejected)
	assert.Equal(prover.ProblemReport().Description.Code, common.CodeInvalidPresentation)
}

func TestProverRejects(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newSetup(t, false)
	verifier := s.request(nil)
	try.To(verifier.RequestProof(ctx, s.ours))

	reqs := try.To1(presentproof.Requests(ctx, s.alice, s.theirs))
	prover := try.To1(presentproof.CreateFromMessage(ctx, s.alice, "alice", reqs[0]))
	assert.NoError(prover.Reject(ctx, s.theirs, "not today"))
	assert.Equal(prover.StateCode(), prot.StateRejected)
	assert.That(prover.ProblemReport() != nil)

	assert.Equal(try.To1(verifier.UpdateState(ctx)), prot.StateRejected)
	assert.Equal(verifier.ProblemReport().Reason(), "not today")
	assert.Equal(verifier.ProofState(), presentproof.ProofUndefined)
}

func TestGenerateProof_Unsatisfied(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newSetup(t, false)
	verifier := try.To1(presentproof.CreateRequest(s.faber, "faber", "too young", nil,
		[]vc.PredicateInfo{{Name: "age", PType: vc.PredicateLT, PValue: 18}}, nil))
	try.To(verifier.RequestProof(ctx, s.ours))

	reqs := try.To1(presentproof.Requests(ctx, s.alice, s.theirs))
	prover := try.To1(presentproof.CreateFromMessage(ctx, s.alice, "alice", reqs[0]))
	creds := try.To1(prover.QueryCredentials(ctx))
	assert.SLen(creds.Predicates["predicate_1"], 0)

	err := prover.GenerateProof(ctx, creds.FirstCandidates())
	assert.That(errors.Is(err, prot.ErrPrecondition))
	assert.That(errors.Is(err, vc.ErrUnsatisfied))
	assert.Equal(prover.State, presentproof.StateRequestReceived)

	err = prover.SendProof(ctx, s.theirs)
	assert.That(errors.Is(err, prot.ErrPrecondition))
}

func TestPreconditions(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newSetup(t, false)

	_, err := presentproof.CreateRequest(s.faber, "faber", "empty", nil, nil, nil)
	assert.That(errors.Is(err, prot.ErrMalformed))
	_, err = presentproof.CreateRequest(s.faber, "faber", "bad", nil,
		[]vc.PredicateInfo{{Name: "age", PType: "=="}}, nil)
	assert.That(errors.Is(err, prot.ErrMalformed))
	_, err = presentproof.CreateProposal(s.alice, "alice", "", stdproof.NewPreview(nil, nil))
	assert.That(errors.Is(err, prot.ErrMalformed))
	_, err = presentproof.CreateFromRequest(ctx, s.alice, "alice", []byte(`{"@type":"x","@id":"1"}`))
	assert.That(errors.Is(err, prot.ErrMalformed))
	noItems := stdproof.NewRequest(nil, "", &vc.ProofRequest{Nonce: "1"})
	_, err = presentproof.CreateFromRequest(ctx, s.alice, "alice", dto.ToJSONBytes(noItems))
	assert.That(errors.Is(err, prot.ErrMalformed))

	ping := try.To1(trans.NewMessage("m-1", "", "", []byte(`{"@type":"`+pltype.TrustPingPing+`","@id":"p"}`)))
	_, err = presentproof.CreateWithProposal(ctx, s.faber, "faber", "x", ping)
	assert.That(errors.Is(err, prot.ErrMalformed))

	verifier := s.request(nil)
	pending := try.To1(connection.Create(ctx, s.faber, "pending", prot.Aries))
	err = verifier.RequestProof(ctx, pending)
	assert.That(errors.Is(err, prot.ErrPrecondition))
	assert.Equal(verifier.State, presentproof.StateInitial)

	try.To(verifier.RequestProof(ctx, s.ours))
	err = verifier.RequestProof(ctx, s.ours)
	assert.That(errors.Is(err, prot.ErrPrecondition))
	_, err = verifier.Revealed()
	assert.That(errors.Is(err, prot.ErrPrecondition))

	prover := s.prove()
	err = prover.SendProposal(ctx, s.theirs)
	assert.That(errors.Is(err, prot.ErrPrecondition))
	try.To(prover.SendProof(ctx, s.theirs))

	// a sent presentation can't be taken back
	err = prover.Reject(ctx, s.theirs, "too late")
	assert.That(errors.Is(err, prot.ErrPrecondition))
	_, err = prover.QueryCredentials(ctx)
	assert.That(errors.Is(err, prot.ErrPrecondition))
}

func TestVerifier_RejectsProposalToRequest(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newSetup(t, false)
	verifier := s.request(nil)
	try.To(verifier.RequestProof(ctx, s.ours))
	reqs := try.To1(presentproof.Requests(ctx, s.alice, s.theirs))
	prover := try.To1(presentproof.CreateFromMessage(ctx, s.alice, "alice", reqs[0]))

	counter := stdproof.NewPropose("only email", stdproof.NewPreview([]stdproof.Attribute{{Name: "email"}}, nil))
	counter.Thread = &decorator.Thread{ID: verifier.ThreadID()}
	m := try.To1(trans.NewMessage("p-1", s.ours.Pairwise().Me.VerKey,
		s.theirs.Pairwise().Me.VerKey, dto.ToJSONBytes(counter)))

	assert.Equal(try.To1(verifier.UpdateStateWithMessage(ctx, m)), prot.StateRejected)
	assert.Equal(verifier.State, presentproof.StateFailed)
	assert.Equal(verifier.ProblemReport().Description.Code, common.CodeUnsupported)

	assert.Equal(try.To1(prover.UpdateState(ctx)), prot.StateRejected)
}

func TestOutOfBandRequest(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newSetup(t, false)
	verifier := s.request(nil)
	req := try.To1(verifier.PrepareRequest())
	assert.Equal(verifier.StateCode(), prot.StateOfferSent)

	inviter := try.To1(connection.CreateOutOfBand(ctx, s.faber, "faber", "present-proof", false, req))
	payload := try.To1(inviter.Connect(ctx))
	assert.NoError(verifier.SetConnection(inviter))

	invitee := try.To1(connection.CreateFromInvitation(ctx, s.alice, "alice", try.To1(invitation.Parse(payload))))
	prover := try.To1(presentproof.CreateFromRequest(ctx, s.alice, "alice", try.To1(invitee.Attachment())))
	assert.Equal(prover.ThreadID(), verifier.ThreadID())
	creds := try.To1(prover.QueryCredentials(ctx))
	try.To(prover.GenerateProof(ctx, creds.FirstCandidates()))
	assert.NoError(prover.SendProof(ctx, invitee))

	assert.Equal(try.To1(verifier.UpdateState(ctx)), prot.StateAccepted)
	assert.Equal(verifier.ProofState(), presentproof.ProofVerified)
	assert.Equal(verifier.Pairwise().Their.VerKey, invitee.Pairwise().Me.VerKey)
	assert.Equal(try.To1(prover.UpdateState(ctx)), prot.StateAccepted)
}

func TestRevokedCredential(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newSetup(t, true)
	try.To(s.issuer.Revoke(ctx))

	verifier := s.request(&vc.Interval{})
	try.To(verifier.RequestProof(ctx, s.ours))
	prover := s.prove()
	try.To(prover.SendProof(ctx, s.theirs))

	assert.Equal(try.To1(verifier.UpdateState(ctx)), prot.StateAccepted)
	assert.Equal(verifier.ProofState(), presentproof.ProofInvalid)
	assert.Equal(try.To1(prover.UpdateState(ctx)), prot.StateRejected)
	assert.ThatNot(owned(s.alice, prover.ThreadID()))
	assert.That(owned(s.faber, verifier.ThreadID()))
}

// noRegistries is a ledger which has lost its revocation registries.
type noRegistries struct{ vc.Ledger }

func (noRegistries) ResolveRevocationRegistry(context.Context, string) (*vc.RevocationRegistry, error) {
	return nil, vc.ErrNotFound
}

func TestRevocationRegistryMissing(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newSetup(t, true)
	verifier := s.request(&vc.Interval{})
	try.To(verifier.RequestProof(ctx, s.ours))
	prover := s.prove()
	try.To(prover.SendProof(ctx, s.theirs))

	storage := try.To1(mgddb.NewMemory())
	s.faber.Creds = vc.NewEngine(s.faber.Wallet, noRegistries{s.n.Ledger},
		try.To1(storage.OpenStore(api.NameCredential)))

	assert.Equal(try.To1(verifier.UpdateState(ctx)), prot.StateAccepted)
	assert.Equal(verifier.ProofState(), presentproof.ProofInvalid)

	// the presentation is consumed and the prover is told
	msgs := s.pending()
	assert.SLen(msgs, 1)
	assert.That(pltype.IsProblemReport(msgs[0].Type))
	assert.Equal(try.To1(verifier.UpdateState(ctx)), prot.StateAccepted)

	assert.Equal(try.To1(prover.UpdateState(ctx)), prot.StateRejected)
	assert.Equal(prover.ProblemReport().Description.Code, common.CodeInvalidPresentation)
	assert.SLen(s.pending(), 0)
}

func TestSerialize(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newSetup(t, false)
	verifier := s.request(nil)
	try.To(verifier.RequestProof(ctx, s.ours))
	prover := s.prove()

	restored := try.To1(presentproof.DeserializeProver(s.alice, try.To1(prover.Serialize())))
	assert.Equal(restored.State, presentproof.StatePresentationPrepared)
	prover.Release()
	assert.NoError(restored.SendProof(ctx, s.theirs))

	loaded := try.To1(presentproof.LoadVerifier(s.faber, verifier.ID))
	verifier.Release()
	assert.Equal(try.To1(loaded.UpdateState(ctx)), prot.StateAccepted)
	assert.Equal(loaded.ProofState(), presentproof.ProofVerified)

	_, err := presentproof.DeserializeVerifier(s.faber, try.To1(restored.Serialize()))
	assert.That(errors.Is(err, prot.ErrMalformed))
	_, err = presentproof.DeserializeProver(s.alice, try.To1(loaded.Serialize()))
	assert.That(errors.Is(err, prot.ErrMalformed))
}

func TestDelete(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newSetup(t, false)
	verifier := s.request(nil)
	try.To(verifier.RequestProof(ctx, s.ours))
	reqs := try.To1(presentproof.Requests(ctx, s.alice, s.theirs))
	prover := try.To1(presentproof.CreateFromMessage(ctx, s.alice, "alice", reqs[0]))

	assert.NoError(verifier.Delete(ctx))
	_, err := verifier.UpdateState(ctx)
	assert.That(errors.Is(err, prot.ErrDeleted))

	// the prover can still give up its own end
	try.To1(prover.QueryCredentials(ctx))
	assert.NoError(prover.Reject(ctx, s.theirs, "bye"))
	assert.Equal(prover.StateCode(), prot.StateRejected)
}

func TestPollAll(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newSetup(t, false)
	verifier := s.request(nil)
	try.To(verifier.RequestProof(ctx, s.ours))
	prover := s.prove()
	try.To(prover.SendProof(ctx, s.theirs))

	results := prot.PollAll(ctx, []prot.Updater{verifier, prover}, prot.DefaultPolicy(), 2)
	for _, r := range results {
		assert.NoError(r.Err)
		assert.Equal(r.State, prot.StateAccepted)
	}
}

package demo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/findy-network/findy-exchange/agent/prot"
	"github.com/findy-network/findy-exchange/agent/vc"
	"github.com/findy-network/findy-exchange/protocol/connection"
	"github.com/findy-network/findy-exchange/protocol/issuecredential"
	"github.com/findy-network/findy-exchange/protocol/presentproof"
	"github.com/findy-network/findy-exchange/std/didexchange/invitation"
	stdproof "github.com/findy-network/findy-exchange/std/presentproof"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

type scenarioFunc func(ctx context.Context, r *run) error

var scenarios = map[string]scenarioFunc{
	"connection": connectionScenario,
	"credential": credentialScenario,
	"proof":      proofScenario,
	"oob":        outOfBandScenario,
}

// ScenarioNames returns the scenarios in the order they are run by default.
func ScenarioNames() []string {
	return []string{"connection", "credential", "proof", "oob"}
}

var (
	credAttrs  = []string{"email", "name", "age"}
	credValues = map[string]string{"email": "alice@example.com", "name": "Alice", "age": "30"}
)

// connectionScenario connects the agents with the Aries and the legacy
// handshakes. The Aries ends are completed by the scheduler.
func connectionScenario(ctx context.Context, r *run) (err error) {
	defer err2.Handle(&err, "connection scenario")

	faber := try.To1(r.net.agent("faber"))
	alice := try.To1(r.net.agent("alice"))

	inviter := try.To1(connection.Create(ctx, faber, "faber", prot.Aries))
	r.report("faber", "connection", inviter, "")
	payload := try.To1(inviter.Connect(ctx))
	r.report("faber", "connection", inviter, fmt.Sprintf("invitation %d bytes", len(payload)))

	invitee := try.To1(connection.CreateFromInvitation(ctx, alice, "alice", try.To1(invitation.Parse(payload))))
	try.To1(invitee.Connect(ctx))
	r.report("alice", "connection", invitee, "")

	try.To(r.schedule(ctx, inviter, invitee))
	r.report("faber", "connection", inviter, "")
	r.report("alice", "connection", invitee, "")

	try.To1(invitee.SendPing(ctx, "ping", true))
	try.To1(invitee.SendMessage(ctx, "hello faber"))
	try.To1(inviter.UpdateState(ctx))
	try.To1(invitee.UpdateState(ctx))
	r.report("faber", "connection", inviter, fmt.Sprintf("%d messages", len(inviter.Messages)))

	legacyInviter := try.To1(connection.Create(ctx, faber, "faber", prot.Legacy))
	payload = try.To1(legacyInviter.Connect(ctx))
	legacyInvitee := try.To1(connection.CreateFromInvitation(ctx, alice, "alice", try.To1(invitation.Parse(payload))))
	r.report("alice", "legacy", legacyInvitee, "")
	try.To1(legacyInvitee.Connect(ctx))
	try.To1(prot.Poll(ctx, legacyInviter, r.policy))
	r.report("faber", "legacy", legacyInviter, "")
	r.report("alice", "legacy", legacyInvitee, "")
	return nil
}

// connect runs the Aries handshake and polls both ends accepted.
func (r *run) connect(ctx context.Context, inviterAgent, inviteeAgent *prot.Agent) (inviter, invitee *connection.Connection, err error) {
	defer err2.Handle(&err, "connect")

	inviter = try.To1(connection.Create(ctx, inviterAgent, inviterAgent.Label, prot.Aries))
	inv := try.To1(invitation.Parse(try.To1(inviter.Connect(ctx))))
	invitee = try.To1(connection.CreateFromInvitation(ctx, inviteeAgent, inviteeAgent.Label, inv))
	try.To1(invitee.Connect(ctx))
	try.To(r.pollAll(ctx, inviter, invitee))
	return inviter, invitee, nil
}

// issue runs the credential exchange from the offer to the stored
// credential.
func (r *run) issue(
	ctx context.Context,
	faber, alice *prot.Agent,
	ours, theirs *connection.Connection,
	cd *vc.CredDef,
) (issuer *issuecredential.Issuer, holder *issuecredential.Holder, err error) {
	defer err2.Handle(&err, "issue")

	issuer = try.To1(issuecredential.CreateWithAttributes(ctx, faber, "faber", cd.ID, "demo credential", credValues))
	try.To(issuer.SendOffer(ctx, ours))
	r.report("faber", "issuer", issuer, "")

	holder = try.To1(firstOffer(ctx, alice, theirs))
	r.report("alice", "holder", holder, "")
	try.To(holder.SendRequest(ctx, theirs))
	r.report("alice", "holder", holder, "")

	try.To(r.waitFor(ctx, issuer, prot.StateRequestReceived))
	r.report("faber", "issuer", issuer, "")
	try.To(issuer.SendCredential(ctx))
	try.To(r.pollAll(ctx, issuer, holder))
	r.report("faber", "issuer", issuer, "")
	r.report("alice", "holder", holder, string(holder.Status()))
	return issuer, holder, nil
}

func firstOffer(ctx context.Context, a *prot.Agent, ch *connection.Connection) (h *issuecredential.Holder, err error) {
	defer err2.Handle(&err, "offer")

	offers := try.To1(issuecredential.Offers(ctx, a, ch))
	if len(offers) == 0 {
		return nil, fmt.Errorf("%w: no offers", prot.ErrPrecondition)
	}
	return issuecredential.CreateFromMessage(ctx, a, a.Label, offers[0])
}

// credentialScenario lets the holder turn down the first offer and accept
// the second one. The issued credential is revoked at the end.
func credentialScenario(ctx context.Context, r *run) (err error) {
	defer err2.Handle(&err, "credential scenario")

	faber := try.To1(r.net.agent("faber"))
	alice := try.To1(r.net.agent("alice"))
	ours, theirs := try.To2(r.connect(ctx, faber, alice))
	cd := try.To1(r.net.credDef(ctx, faber, "email", credAttrs, true))

	issuer := try.To1(issuecredential.CreateWithAttributes(ctx, faber, "faber", cd.ID, "first offer", credValues))
	try.To(issuer.SendOffer(ctx, ours))
	holder := try.To1(firstOffer(ctx, alice, theirs))
	r.report("alice", "holder", holder, "")
	try.To(holder.Reject(ctx, theirs, "not now"))
	r.report("alice", "holder", holder, holder.ProblemReport().Reason())
	try.To1(prot.Poll(ctx, issuer, r.policy))
	r.report("faber", "issuer", issuer, issuer.ProblemReport().Reason())

	issuer, holder = try.To2(r.issue(ctx, faber, alice, ours, theirs, cd))
	r.report("alice", "holder", holder, formatValues(holder.Attributes()))

	try.To(issuer.Revoke(ctx))
	r.report("faber", "issuer", issuer, "")
	return nil
}

// proofScenario starts the proof with the prover's proposal. The verifier
// turns the proposal into a request which the prover answers from the
// issued credential.
func proofScenario(ctx context.Context, r *run) (err error) {
	defer err2.Handle(&err, "proof scenario")

	faber := try.To1(r.net.agent("faber"))
	alice := try.To1(r.net.agent("alice"))
	ours, theirs := try.To2(r.connect(ctx, faber, alice))
	cd := try.To1(r.net.credDef(ctx, faber, "email", credAttrs, false))
	try.To2(r.issue(ctx, faber, alice, ours, theirs, cd))

	preview := stdproof.NewPreview(
		[]stdproof.Attribute{{Name: "email", CredDefID: cd.ID}},
		[]stdproof.Predicate{{Name: "age", CredDefID: cd.ID, Predicate: vc.PredicateGE, Threshold: 18}},
	)
	prover := try.To1(presentproof.CreateProposal(alice, "alice", "my email", preview))
	try.To(prover.SendProposal(ctx, theirs))
	r.report("alice", "prover", prover, "")

	proposals := try.To1(presentproof.Proposals(ctx, faber, ours))
	if len(proposals) == 0 {
		return fmt.Errorf("%w: no proposals", prot.ErrPrecondition)
	}
	verifier := try.To1(presentproof.CreateWithProposal(ctx, faber, "faber", "email proof", proposals[0]))
	try.To(verifier.RequestProof(ctx, ours))
	r.report("faber", "verifier", verifier, "")

	try.To(r.waitFor(ctx, prover, prot.StateRequestReceived))
	creds := try.To1(prover.QueryCredentials(ctx))
	try.To(prover.GenerateProof(ctx, creds.FirstCandidates()))
	try.To(prover.SendProof(ctx, theirs))
	r.report("alice", "prover", prover, "")

	try.To(r.pollAll(ctx, verifier, prover))
	r.report("faber", "verifier", verifier, verifier.ProofState().String())
	r.report("alice", "prover", prover, "")
	r.report("faber", "verifier", verifier, formatValues(try.To1(verifier.Revealed())))
	return nil
}

// outOfBandScenario delivers the credential offer in an out-of-band
// invitation without a handshake. The invitee is connected at once and the
// issuer learns the holder from the credential request.
func outOfBandScenario(ctx context.Context, r *run) (err error) {
	defer err2.Handle(&err, "out-of-band scenario")

	faber := try.To1(r.net.agent("faber"))
	alice := try.To1(r.net.agent("alice"))
	cd := try.To1(r.net.credDef(ctx, faber, "email", credAttrs, false))

	issuer := try.To1(issuecredential.CreateWithAttributes(ctx, faber, "faber", cd.ID, "out-of-band offer", credValues))
	offer := try.To1(issuer.PrepareOffer())
	inviter := try.To1(connection.CreateOutOfBand(ctx, faber, "faber", "issue-vc", false, offer))
	payload := try.To1(inviter.Connect(ctx))
	try.To(issuer.SetConnection(inviter))
	r.report("faber", "connection", inviter, "")
	r.report("faber", "issuer", issuer, "")

	invitee := try.To1(connection.CreateFromInvitation(ctx, alice, "alice", try.To1(invitation.Parse(payload))))
	r.report("alice", "connection", invitee, "no messages exchanged")

	holder := try.To1(issuecredential.CreateFromOffer(ctx, alice, "alice", try.To1(invitee.Attachment())))
	try.To(holder.SendRequest(ctx, invitee))
	r.report("alice", "holder", holder, "")

	try.To(r.waitFor(ctx, issuer, prot.StateRequestReceived))
	try.To(issuer.SendCredential(ctx))
	try.To(r.pollAll(ctx, issuer, holder))
	r.report("faber", "issuer", issuer, "")
	r.report("alice", "holder", holder, string(holder.Status()))
	return nil
}

func formatValues(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+values[k])
	}
	return strings.Join(pairs, " ")
}

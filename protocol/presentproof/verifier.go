package presentproof

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/prot"
	"github.com/findy-network/findy-exchange/agent/trans"
	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/findy-network/findy-exchange/agent/vc"
	"github.com/findy-network/findy-exchange/std/common"
	"github.com/findy-network/findy-exchange/std/decorator"
	"github.com/findy-network/findy-exchange/std/presentproof"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Verifier is the verifier's proof exchange record.
type Verifier struct {
	exchange

	Name         string                `json:"name"`
	ProofRequest *vc.ProofRequest      `json:"proof_request"`
	RequestMsg   *presentproof.Request `json:"request_message"`
	Proposal     *presentproof.Propose `json:"proposal,omitempty"`
	Proof        *vc.Proof             `json:"proof,omitempty"`
	Verdict      ProofState            `json:"proof_state"`
}

var _ prot.Updater = (*Verifier)(nil)

// CreateRequest creates the verifier's exchange. The attributes and the
// predicates get the referents attr_referent_N and predicate_N in their
// order. A non nil nonRevoked asks the credentials to be unrevoked.
func CreateRequest(
	a *prot.Agent,
	sourceID, name string,
	attrs []vc.AttrInfo,
	preds []vc.PredicateInfo,
	nonRevoked *vc.Interval,
) (v *Verifier, err error) {
	defer err2.Handle(&err, "create verifier %s", sourceID)

	pr := newProofRequest(name, attrs, preds)
	pr.NonRevoked = nonRevoked
	if err := pr.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", prot.ErrMalformed, err)
	}
	v = &Verifier{
		exchange:     prot.NewExchange(a, rules, sourceID, prot.RoleVerifier),
		Name:         name,
		ProofRequest: pr,
		RequestMsg:   presentproof.NewRequest(nil, name, pr),
	}
	v.Init(v, rules)
	try.To(v.ClaimThread(v.RequestMsg.Thread.ID))
	try.To(v.Persist(""))
	return v, nil
}

func newProofRequest(name string, attrs []vc.AttrInfo, preds []vc.PredicateInfo) *vc.ProofRequest {
	pr := &vc.ProofRequest{
		Name:                name,
		Version:             "1.0",
		Nonce:               utils.NewNonceStr(),
		RequestedAttributes: make(map[string]vc.AttrInfo, len(attrs)),
		RequestedPredicates: make(map[string]vc.PredicateInfo, len(preds)),
	}
	for i, attr := range attrs {
		pr.RequestedAttributes["attr_referent_"+strconv.Itoa(i+1)] = attr
	}
	for i, p := range preds {
		pr.RequestedPredicates["predicate_"+strconv.Itoa(i+1)] = p
	}
	return pr
}

// CreateWithProposal creates the verifier's exchange from the prover's
// proposal downloaded from our mailbox. The request asks what the proposal
// offers, restricted to the credential definitions it names. The exchange
// continues the thread of the proposal.
func CreateWithProposal(ctx context.Context, a *prot.Agent, sourceID, name string, m trans.Message) (v *Verifier, err error) {
	defer err2.Handle(&err, "create verifier %s with proposal", sourceID)

	msg := new(presentproof.Propose)
	if err := json.Unmarshal(m.Payload, msg); err != nil {
		return nil, fmt.Errorf("%w: proposal: %v", prot.ErrMalformed, err)
	}
	if pltype.Normalize(msg.Type) != pltype.PresentProofPropose || msg.PresentationProposal == nil {
		return nil, fmt.Errorf("%w: not a presentation proposal", prot.ErrMalformed)
	}
	attrs, preds := fromPreview(msg.PresentationProposal)
	pr := newProofRequest(name, attrs, preds)
	if err := pr.Validate(); err != nil {
		return nil, fmt.Errorf("%w: proposal: %v", prot.ErrMalformed, err)
	}
	thid := msg.ID
	if msg.Thread != nil && msg.Thread.ID != "" {
		thid = msg.Thread.ID
	}
	v = &Verifier{
		exchange:     prot.NewExchange(a, rules, sourceID, prot.RoleVerifier),
		Name:         name,
		ProofRequest: pr,
		RequestMsg:   presentproof.NewRequest(&decorator.Thread{ID: thid}, name, pr),
		Proposal:     msg,
	}
	v.Init(v, rules)
	try.To(v.ClaimThread(thid))
	v.See(&m)
	try.To(v.Persist(m.Type))
	a.Consume(ctx, m.Owner, m.UID)
	return v, nil
}

func fromPreview(p *presentproof.Preview) (attrs []vc.AttrInfo, preds []vc.PredicateInfo) {
	restrict := func(credDefID string) []vc.Restriction {
		if credDefID == "" {
			return nil
		}
		return []vc.Restriction{{CredDefID: credDefID}}
	}
	for _, attr := range p.Attributes {
		attrs = append(attrs, vc.AttrInfo{
			Name:         attr.Name,
			Restrictions: restrict(attr.CredDefID),
		})
	}
	for _, pred := range p.Predicates {
		preds = append(preds, vc.PredicateInfo{
			Name:         pred.Name,
			PType:        pred.Predicate,
			PValue:       pred.Threshold,
			Restrictions: restrict(pred.CredDefID),
		})
	}
	return attrs, preds
}

// Proposals returns the presentation proposals waiting in the mailbox of the
// connection.
func Proposals(ctx context.Context, a *prot.Agent, ch prot.Channel) ([]trans.Message, error) {
	return waiting(ctx, a, ch, pltype.PresentProofPropose)
}

func waiting(ctx context.Context, a *prot.Agent, ch prot.Channel, typ string) (found []trans.Message, err error) {
	defer err2.Handle(&err, "waiting %s", typ)

	msgs := try.To1(a.Download(ctx, ch.Pairwise().Me.VerKey))
	for _, m := range msgs {
		if pltype.Normalize(m.Type) == typ {
			found = append(found, m)
		}
	}
	return found, nil
}

// DeserializeVerifier restores the verifier from its snapshot.
func DeserializeVerifier(a *prot.Agent, data []byte) (v *Verifier, err error) {
	v = new(Verifier)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("%w: verifier snapshot: %v", prot.ErrMalformed, err)
	}
	if v.Role != prot.RoleVerifier {
		return nil, fmt.Errorf("%w: snapshot of %s", prot.ErrMalformed, v.Role)
	}
	if err := v.Bind(a); err != nil {
		return nil, err
	}
	v.Init(v, rules)
	return v, nil
}

func LoadVerifier(a *prot.Agent, id string) (v *Verifier, err error) {
	defer err2.Handle(&err, "load verifier %s", id)

	p := try.To1(a.LoadPSM(id))
	return DeserializeVerifier(a, p.Data)
}

// ProofState returns the verdict of the received presentation.
func (v *Verifier) ProofState() ProofState {
	return v.Verdict
}

// Revealed returns the revealed and self attested values of the verified
// presentation by their request referents. Values of attribute groups are
// keyed referent.name.
func (v *Verifier) Revealed() (values map[string]string, err error) {
	if v.State != StateAccepted || v.Verdict != ProofVerified {
		return nil, prot.Precondition("revealed values", v.State)
	}
	rp := v.Proof.RequestedProof
	values = make(map[string]string, len(rp.RevealedAttrs)+len(rp.SelfAttestedAttrs))
	for ref, attr := range rp.RevealedAttrs {
		values[ref] = attr.Raw
	}
	for ref, group := range rp.RevealedAttrGroups {
		for name, val := range group.Values {
			values[ref+"."+name] = val.Raw
		}
	}
	for ref, val := range rp.SelfAttestedAttrs {
		values[ref] = val
	}
	return values, nil
}

// RequestProof sends the request over the accepted connection. A request of
// a proposal answers the proposal's thread.
func (v *Verifier) RequestProof(ctx context.Context, ch prot.Channel) (err error) {
	defer err2.Handle(&err, "request proof %s", v.ID)

	unlock := try.To1(v.Lock())
	defer unlock()

	if v.State != StateInitial {
		return prot.Precondition("request proof", v.State)
	}
	try.To(v.BindChannel(ch))
	if v.Proposal != nil {
		v.RequestMsg.Thread = v.Reply(v.Proposal.Thread)
	} else {
		v.RequestMsg.Thread = v.ThreadDecorator()
	}
	try.To(v.Send(ctx, v.RequestMsg))
	return v.Transit(evSendRequest, v.RequestMsg.Type)
}

// PrepareRequest returns the request message without sending it, e.g. to be
// attached to an out-of-band invitation. SetConnection tells where the
// presentation arrives.
func (v *Verifier) PrepareRequest() (req *presentproof.Request, err error) {
	defer err2.Handle(&err, "prepare request %s", v.ID)

	unlock := try.To1(v.Lock())
	defer unlock()

	try.To(v.Transit(evPrepareRequest, v.RequestMsg.Type))
	return v.RequestMsg, nil
}

// SetConnection binds the prepared request to the connection where the
// prover answers.
func (v *Verifier) SetConnection(ch prot.Channel) (err error) {
	defer err2.Handle(&err, "set connection %s", v.ID)

	unlock := try.To1(v.Lock())
	defer unlock()

	if v.State != StateRequestSent || v.PW.Me.VerKey != "" {
		return prot.Precondition("set connection", v.State)
	}
	if ch == nil || ch.Pairwise().Me.VerKey == "" {
		return fmt.Errorf("%w: connection has no keys", prot.ErrPrecondition)
	}
	v.PW = ch.Pairwise()
	return v.Persist("")
}

// Reject abandons the exchange and tells the prover.
func (v *Verifier) Reject(ctx context.Context, comment string) (err error) {
	defer err2.Handle(&err, "reject %s", v.ID)

	unlock := try.To1(v.Lock())
	defer unlock()

	return v.Abandon(ctx, evReject, common.CodePresentationAbandoned, comment)
}

func (v *Verifier) Delete(ctx context.Context) error {
	return v.Discard(ctx)
}

// UpdateState applies the messages of the exchange from our mailbox.
func (v *Verifier) UpdateState(ctx context.Context) (prot.StateCode, error) {
	return v.Update(ctx, v.handlers())
}

// UpdateStateWithMessage applies the message to the exchange.
func (v *Verifier) UpdateStateWithMessage(ctx context.Context, m trans.Message) (prot.StateCode, error) {
	return v.UpdateWith(ctx, m, v.handlers())
}

func (v *Verifier) handlers() map[string]prot.Handler {
	return map[string]prot.Handler{
		pltype.PresentProofPresentation:  v.onPresentation,
		pltype.PresentProofPropose:       v.onPropose,
		pltype.NotificationProblemReport: v.OnProblem,
		pltype.ReportProblem:             v.OnProblem,
	}
}

// onPresentation verifies the presentation. Both verdicts finish the
// exchange: a valid proof is acked when the prover asks it, an invalid one
// is answered with a problem report.
func (v *Verifier) onPresentation(ctx context.Context, m *trans.Message) error {
	if v.State != StateRequestSent {
		v.Unexpected(m)
		return nil
	}
	msg := new(presentproof.Presentation)
	if !v.Decode(ctx, m, msg) {
		return nil
	}
	data, err := msg.PresentationData()
	if err != nil {
		v.Malformed(ctx, m, err)
		return nil
	}
	proof := new(vc.Proof)
	if err := json.Unmarshal(data, proof); err != nil {
		v.Malformed(ctx, m, err)
		return nil
	}
	explain := "presentation doesn't verify"
	ok, err := v.Agent().Creds.VerifyProof(ctx, v.ProofRequest, proof)
	switch {
	case errors.Is(err, vc.ErrRevocationCheck):
		// a registry missing from the ledger never appears by retrying
		ok, explain, err = false, err.Error(), nil
	case err != nil:
		return prot.Retryable("verify proof", err)
	}
	v.Learn(m)
	thread := v.Reply(msg.Thread)
	switch {
	case ok && msg.PleaseAck != nil:
		err = v.Send(ctx, common.NewAck(pltype.PresentProofACK, thread))
	case !ok:
		glog.Warningf("%s: proof exchange %s: %s", v.Agent().Label, v.ID, explain)
		pr := common.NewProblemReport(common.CodeInvalidPresentation, explain, thread)
		err = v.Send(ctx, pr)
	}
	if err != nil {
		return err
	}
	v.Proof = proof
	v.Verdict = ProofInvalid
	if ok {
		v.Verdict = ProofVerified
	}
	glog.V(1).Infof("%s: proof exchange %s: presentation %s", v.Agent().Label, v.ID, v.Verdict)
	return v.Commit(ctx, evPresentation, m)
}

// onPropose turns down a proposal to a running request.
func (v *Verifier) onPropose(ctx context.Context, m *trans.Message) error {
	if v.State != StateRequestSent {
		v.Unexpected(m)
		return nil
	}
	return v.FailWith(ctx, m, common.CodeUnsupported, errors.New("presentation proposal is not supported"))
}

package presentproof

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/prot"
	"github.com/findy-network/findy-exchange/agent/trans"
	"github.com/findy-network/findy-exchange/agent/vc"
	"github.com/findy-network/findy-exchange/std/common"
	"github.com/findy-network/findy-exchange/std/presentproof"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Prover is the prover's proof exchange record.
type Prover struct {
	exchange

	ProposalMsg  *presentproof.Propose `json:"proposal,omitempty"`
	RequestMsg   *presentproof.Request `json:"request_message,omitempty"`
	ProofRequest *vc.ProofRequest      `json:"proof_request,omitempty"`
	Selection    *vc.Selection         `json:"selection,omitempty"`
	Proof        *vc.Proof             `json:"proof,omitempty"`
}

var _ prot.Updater = (*Prover)(nil)

// CreateProposal creates the prover's exchange which starts with a proposal
// of what the prover is willing to present.
func CreateProposal(a *prot.Agent, sourceID, comment string, preview *presentproof.Preview) (p *Prover, err error) {
	defer err2.Handle(&err, "create proposal %s", sourceID)

	if preview == nil || len(preview.Attributes)+len(preview.Predicates) == 0 {
		return nil, fmt.Errorf("%w: empty proposal", prot.ErrMalformed)
	}
	p = &Prover{
		exchange:    prot.NewExchange(a, rules, sourceID, prot.RoleProver),
		ProposalMsg: presentproof.NewPropose(comment, preview),
	}
	p.Init(p, rules)
	try.To(p.ClaimThread(p.ProposalMsg.Thread.ID))
	try.To(p.Transit(evPrepareProposal, p.ProposalMsg.Type))
	return p, nil
}

// CreateFromRequest creates the prover's exchange of the request message.
// The request comes from our mailbox or from the attachment of an
// out-of-band invitation.
func CreateFromRequest(ctx context.Context, a *prot.Agent, sourceID string, payload []byte) (p *Prover, err error) {
	defer err2.Handle(&err, "create prover %s", sourceID)

	msg, pr, err := parseRequest(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", prot.ErrMalformed, err)
	}
	p = &Prover{
		exchange:     prot.NewExchange(a, rules, sourceID, prot.RoleProver),
		RequestMsg:   msg,
		ProofRequest: pr,
	}
	p.Init(p, rules)
	thid := msg.ID
	if msg.Thread != nil && msg.Thread.ID != "" {
		thid = msg.Thread.ID
	}
	try.To(p.ClaimThread(thid))
	try.To(p.Transit(evRequest, msg.Type))
	return p, nil
}

func parseRequest(payload []byte) (msg *presentproof.Request, pr *vc.ProofRequest, err error) {
	defer err2.Handle(&err, "presentation request")

	msg = new(presentproof.Request)
	try.To(json.Unmarshal(payload, msg))
	if pltype.Normalize(msg.Type) != pltype.PresentProofRequest || msg.ID == "" {
		return nil, nil, fmt.Errorf("type %q", msg.Type)
	}
	pr = new(vc.ProofRequest)
	try.To(json.Unmarshal(try.To1(msg.RequestData()), pr))
	try.To(pr.Validate())
	return msg, pr, nil
}

// CreateFromMessage creates the prover's exchange of the request downloaded
// from our mailbox and consumes the request.
func CreateFromMessage(ctx context.Context, a *prot.Agent, sourceID string, m trans.Message) (p *Prover, err error) {
	p, err = CreateFromRequest(ctx, a, sourceID, m.Payload)
	if err != nil {
		return nil, err
	}
	p.See(&m)
	a.Consume(ctx, m.Owner, m.UID)
	return p, nil
}

// Requests returns the presentation requests waiting in the mailbox of the
// connection. Requests answering our proposals aren't listed, they belong
// to the proposing exchanges.
func Requests(ctx context.Context, a *prot.Agent, ch prot.Channel) (reqs []trans.Message, err error) {
	defer err2.Handle(&err, "presentation requests")

	msgs := try.To1(waiting(ctx, a, ch, pltype.PresentProofRequest))
	for _, m := range msgs {
		_, owned := try.To2(a.Store.ThreadOwner(m.ThreadID))
		if !owned {
			reqs = append(reqs, m)
		}
	}
	return reqs, nil
}

func DeserializeProver(a *prot.Agent, data []byte) (p *Prover, err error) {
	p = new(Prover)
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("%w: prover snapshot: %v", prot.ErrMalformed, err)
	}
	if p.Role != prot.RoleProver {
		return nil, fmt.Errorf("%w: snapshot of %s", prot.ErrMalformed, p.Role)
	}
	if err := p.Bind(a); err != nil {
		return nil, err
	}
	p.Init(p, rules)
	return p, nil
}

func LoadProver(a *prot.Agent, id string) (p *Prover, err error) {
	defer err2.Handle(&err, "load prover %s", id)

	s := try.To1(a.LoadPSM(id))
	return DeserializeProver(a, s.Data)
}

// SendProposal sends the prepared proposal over the accepted connection.
func (p *Prover) SendProposal(ctx context.Context, ch prot.Channel) (err error) {
	defer err2.Handle(&err, "send proposal %s", p.ID)

	unlock := try.To1(p.Lock())
	defer unlock()

	if p.State != StateProposalPrepared {
		return prot.Precondition("send proposal", p.State)
	}
	try.To(p.BindChannel(ch))
	p.ProposalMsg.Thread.SenderOrder = p.NextOrder()
	try.To(p.Send(ctx, p.ProposalMsg))
	return p.Transit(evSendProposal, p.ProposalMsg.Type)
}

// QueryCredentials lists our credentials which can answer each item of the
// request.
func (p *Prover) QueryCredentials(ctx context.Context) (creds *vc.CredentialsForRequest, err error) {
	defer err2.Handle(&err, "query credentials %s", p.ID)

	if err := p.Check(); err != nil {
		return nil, err
	}
	if p.State != StateRequestReceived && p.State != StatePresentationPrepared {
		return nil, prot.Precondition("query credentials", p.State)
	}
	creds, err = p.Agent().Creds.QueryCredentials(ctx, p.ProofRequest)
	if err != nil {
		return nil, prot.Retryable("query credentials", err)
	}
	return creds, nil
}

// GenerateProof builds the presentation from the selected credentials. A
// selection which doesn't answer the request leaves the exchange as it was,
// the caller can select again or reject the request.
func (p *Prover) GenerateProof(ctx context.Context, sel *vc.Selection) (err error) {
	defer err2.Handle(&err, "generate proof %s", p.ID)

	unlock := try.To1(p.Lock())
	defer unlock()

	if _, ok := next(p.Role, p.State, evPrepare); !ok {
		return prot.Precondition("generate proof", p.State)
	}
	proof, err := p.Agent().Creds.CreateProof(ctx, p.ProofRequest, sel)
	switch {
	case errors.Is(err, vc.ErrUnsatisfied), errors.Is(err, vc.ErrNoCredential):
		return fmt.Errorf("%w: %w", prot.ErrPrecondition, err)
	case err != nil:
		return prot.Retryable("create proof", err)
	}
	p.Selection, p.Proof = sel, proof
	return p.Transit(evPrepare, "")
}

// SendProof sends the generated presentation over the accepted connection.
func (p *Prover) SendProof(ctx context.Context, ch prot.Channel) (err error) {
	defer err2.Handle(&err, "send proof %s", p.ID)

	unlock := try.To1(p.Lock())
	defer unlock()

	if p.State != StatePresentationPrepared {
		return prot.Precondition("send proof", p.State)
	}
	try.To(p.BindChannel(ch))
	msg := presentproof.NewPresentation(p.Reply(p.RequestMsg.Thread), p.Proof)
	try.To(p.Send(ctx, msg))
	return p.Transit(evSendPresentation, msg.Type)
}

// Reject turns down the request or gives up the proposal. The verifier is
// told over the connection if it's given or the exchange already has one.
func (p *Prover) Reject(ctx context.Context, ch prot.Channel, comment string) (err error) {
	defer err2.Handle(&err, "reject %s", p.ID)

	unlock := try.To1(p.Lock())
	defer unlock()

	if !p.PW.Complete() && ch != nil {
		try.To(p.BindChannel(ch))
	}
	return p.Abandon(ctx, evReject, common.CodePresentationAbandoned, comment)
}

func (p *Prover) Delete(ctx context.Context) error {
	return p.Discard(ctx)
}

// UpdateState applies the messages of the exchange from our mailbox.
func (p *Prover) UpdateState(ctx context.Context) (prot.StateCode, error) {
	return p.Update(ctx, p.handlers())
}

// UpdateStateWithMessage applies the message to the exchange.
func (p *Prover) UpdateStateWithMessage(ctx context.Context, m trans.Message) (prot.StateCode, error) {
	return p.UpdateWith(ctx, m, p.handlers())
}

func (p *Prover) handlers() map[string]prot.Handler {
	return map[string]prot.Handler{
		pltype.PresentProofRequest:       p.onRequest,
		pltype.PresentProofACK:           p.onAck,
		pltype.NotificationAck:           p.onAck,
		pltype.NotificationProblemReport: p.OnProblem,
		pltype.ReportProblem:             p.OnProblem,
	}
}

// onRequest takes the verifier's request answering our proposal.
func (p *Prover) onRequest(ctx context.Context, m *trans.Message) error {
	if p.State != StateProposalSent {
		p.Unexpected(m)
		return nil
	}
	msg, pr, err := parseRequest(m.Payload)
	if err != nil {
		return p.FailWith(ctx, m, common.CodeInvalidProofRequest, err)
	}
	p.RequestMsg, p.ProofRequest = msg, pr
	return p.Commit(ctx, evRequest, m)
}

func (p *Prover) onAck(ctx context.Context, m *trans.Message) error {
	if p.State != StatePresentationSent {
		p.Unexpected(m)
		return nil
	}
	return p.Commit(ctx, evAck, m)
}

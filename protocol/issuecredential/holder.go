package issuecredential

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
	"github.com/findy-network/findy-exchange/std/issuecredential"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Holder is the holder's credential exchange record.
type Holder struct {
	exchange

	OfferMsg   *issuecredential.Offer `json:"offer_message"`
	Offer      *vc.Offer              `json:"offer"`
	Request    *vc.Request            `json:"request,omitempty"`
	Credential *vc.Credential         `json:"credential,omitempty"`
	CredRef    string                 `json:"cred_ref,omitempty"`
}

var _ prot.Updater = (*Holder)(nil)

// CreateFromOffer creates the holder's exchange of the offer message. The
// offer comes from our mailbox or from the attachment of an out-of-band
// invitation.
func CreateFromOffer(ctx context.Context, a *prot.Agent, sourceID string, payload []byte) (h *Holder, err error) {
	defer err2.Handle(&err, "create holder %s", sourceID)

	msg, offer, err := parseOffer(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", prot.ErrMalformed, err)
	}
	h = &Holder{
		exchange: prot.NewExchange(a, rules, sourceID, prot.RoleHolder),
		OfferMsg: msg,
		Offer:    offer,
	}
	h.Init(h, rules)
	thid := msg.ID
	if msg.Thread != nil && msg.Thread.ID != "" {
		thid = msg.Thread.ID
	}
	try.To(h.ClaimThread(thid))
	try.To(h.Transit(evOffer, msg.Type))
	return h, nil
}

func parseOffer(payload []byte) (msg *issuecredential.Offer, offer *vc.Offer, err error) {
	defer err2.Handle(&err, "offer")

	msg = new(issuecredential.Offer)
	try.To(json.Unmarshal(payload, msg))
	if pltype.Normalize(msg.Type) != pltype.IssueCredentialOffer {
		return nil, nil, fmt.Errorf("type %q", msg.Type)
	}
	offer = new(vc.Offer)
	try.To(json.Unmarshal(try.To1(msg.OfferData()), offer))
	if offer.CredDefID == "" || msg.ID == "" {
		return nil, nil, errors.New("no credential definition")
	}
	return msg, offer, nil
}

// CreateFromMessage creates the holder's exchange of the offer downloaded
// from our mailbox and consumes the offer.
func CreateFromMessage(ctx context.Context, a *prot.Agent, sourceID string, m trans.Message) (h *Holder, err error) {
	h, err = CreateFromOffer(ctx, a, sourceID, m.Payload)
	if err != nil {
		return nil, err
	}
	h.See(&m)
	a.Consume(ctx, m.Owner, m.UID)
	return h, nil
}

// Offers returns the credential offers waiting in the mailbox of the
// connection.
func Offers(ctx context.Context, a *prot.Agent, ch prot.Channel) (offers []trans.Message, err error) {
	defer err2.Handle(&err, "credential offers")

	msgs := try.To1(a.Download(ctx, ch.Pairwise().Me.VerKey))
	for _, m := range msgs {
		if pltype.Normalize(m.Type) == pltype.IssueCredentialOffer {
			offers = append(offers, m)
		}
	}
	return offers, nil
}

// DeserializeHolder restores the holder from its snapshot.
func DeserializeHolder(a *prot.Agent, data []byte) (h *Holder, err error) {
	h = new(Holder)
	if err := json.Unmarshal(data, h); err != nil {
		return nil, fmt.Errorf("%w: holder snapshot: %v", prot.ErrMalformed, err)
	}
	if h.Role != prot.RoleHolder {
		return nil, fmt.Errorf("%w: snapshot of %s", prot.ErrMalformed, h.Role)
	}
	if err := h.Bind(a); err != nil {
		return nil, err
	}
	h.Init(h, rules)
	return h, nil
}

// LoadHolder reads the persisted holder of the agent.
func LoadHolder(a *prot.Agent, id string) (h *Holder, err error) {
	defer err2.Handle(&err, "load holder %s", id)

	p := try.To1(a.LoadPSM(id))
	return DeserializeHolder(a, p.Data)
}

// Attributes returns the offered credential values.
func (h *Holder) Attributes() map[string]string {
	return h.OfferMsg.CredentialPreview.Values()
}

// Status tells how the finished exchange ended.
func (h *Holder) Status() Status {
	switch h.State {
	case StateAccepted:
		return StatusSuccess
	case StateRejected:
		return StatusRejected
	case StateFailed:
		return StatusFailed
	}
	return StatusUndefined
}

// IssuedCredential returns the stored credential.
func (h *Holder) IssuedCredential() (*vc.Credential, error) {
	if h.State != StateAccepted || h.Credential == nil {
		return nil, prot.Precondition("credential", h.State)
	}
	return h.Credential, nil
}

// SendRequest requests the offered credential over the accepted connection.
// An offer of an unknown credential definition ends the exchange as Failed.
func (h *Holder) SendRequest(ctx context.Context, ch prot.Channel) (err error) {
	defer err2.Handle(&err, "send request %s", h.ID)

	unlock := try.To1(h.Lock())
	defer unlock()

	if h.State != StateOfferReceived {
		return prot.Precondition("send request", h.State)
	}
	try.To(h.BindChannel(ch))
	req, err := h.Agent().Creds.CreateRequest(ctx, h.PW.Me.DID, h.Offer)
	switch {
	case errors.Is(err, vc.ErrNotFound):
		glog.Warningf("%s: cannot request %s: %v", h.Agent().Label, h.ID, err)
		return h.Abandon(ctx, evFail, common.CodeInvalidOffer, err.Error())
	case err != nil:
		return prot.Retryable("create request", err)
	}
	msg := issuecredential.NewRequest(h.ThreadDecorator(), req)
	try.To(h.Send(ctx, msg))

	h.Request = req
	return h.Transit(evSendRequest, msg.Type)
}

// Reject turns down the offer. The issuer is told over the connection if
// it's given or the exchange already has one.
func (h *Holder) Reject(ctx context.Context, ch prot.Channel, comment string) (err error) {
	defer err2.Handle(&err, "reject %s", h.ID)

	unlock := try.To1(h.Lock())
	defer unlock()

	if !h.PW.Complete() && ch != nil {
		try.To(h.BindChannel(ch))
	}
	return h.Abandon(ctx, evReject, common.CodeIssuanceAbandoned, comment)
}

// Delete tells a running exchange's issuer that it's abandoned and removes
// the record.
func (h *Holder) Delete(ctx context.Context) error {
	return h.Discard(ctx)
}

// UpdateState applies the messages of the exchange from our mailbox.
func (h *Holder) UpdateState(ctx context.Context) (prot.StateCode, error) {
	return h.Update(ctx, h.handlers())
}

// UpdateStateWithMessage applies the message to the exchange.
func (h *Holder) UpdateStateWithMessage(ctx context.Context, m trans.Message) (prot.StateCode, error) {
	return h.UpdateWith(ctx, m, h.handlers())
}

func (h *Holder) handlers() map[string]prot.Handler {
	return map[string]prot.Handler{
		pltype.IssueCredentialIssue:      h.onCredential,
		pltype.NotificationProblemReport: h.OnProblem,
		pltype.ReportProblem:             h.OnProblem,
	}
}

func (h *Holder) onCredential(ctx context.Context, m *trans.Message) error {
	if h.State != StateRequestSent {
		h.Unexpected(m)
		return nil
	}
	msg := new(issuecredential.Issue)
	if !h.Decode(ctx, m, msg) {
		return nil
	}
	data, err := msg.CredentialData()
	if err != nil {
		h.Malformed(ctx, m, err)
		return nil
	}
	cred := new(vc.Credential)
	if err := json.Unmarshal(data, cred); err != nil {
		h.Malformed(ctx, m, err)
		return nil
	}
	if cred.CredDefID != h.Offer.CredDefID {
		return h.FailWith(ctx, m, common.CodeInvalidCredential,
			fmt.Errorf("credential of %s, offered %s", cred.CredDefID, h.Offer.CredDefID))
	}
	// a failed ack is retried with the credential already stored
	if h.CredRef == "" {
		ref, err := h.Agent().Creds.StoreCredential(ctx, cred)
		switch {
		case errors.Is(err, vc.ErrInvalidCred):
			return h.FailWith(ctx, m, common.CodeInvalidCredential, err)
		case err != nil:
			return prot.Retryable("store credential", err)
		}
		cred.Referent = ref
		h.Credential, h.CredRef = cred, ref
	}
	if msg.PleaseAck != nil {
		ack := common.NewAck(pltype.IssueCredentialACK, h.Reply(msg.Thread))
		if err := h.Send(ctx, ack); err != nil {
			return err
		}
	}
	return h.Commit(ctx, evCredential, m)
}

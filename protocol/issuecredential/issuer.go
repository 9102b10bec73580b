package issuecredential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

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

// Issuer is the issuer's credential exchange record.
type Issuer struct {
	exchange

	CredDefID string                 `json:"cred_def_id"`
	Values    map[string]string      `json:"values"`
	Offer     *vc.Offer              `json:"offer"`
	OfferMsg  *issuecredential.Offer `json:"offer_message"`
	Request   *vc.Request            `json:"request,omitempty"`
	RevRegID  string                 `json:"rev_reg_id,omitempty"`
	CredRevID string                 `json:"cred_rev_id,omitempty"`
}

var _ prot.Updater = (*Issuer)(nil)

// CreateWithAttributes creates the issuer's exchange of the credential
// definition. The credential definition, its schema and its revocation
// registry are resolved first, an exchange which could never issue isn't
// created. The values must cover the attributes of the schema.
func CreateWithAttributes(
	ctx context.Context,
	a *prot.Agent,
	sourceID, credDefID, comment string,
	values map[string]string,
) (i *Issuer, err error) {
	defer err2.Handle(&err, "create issuer %s", sourceID)

	cd, err := a.Ledger.ResolveCredentialDefinition(ctx, credDefID)
	if err != nil {
		return nil, fmt.Errorf("%w: credential definition %s: %v", prot.ErrPrecondition, credDefID, err)
	}
	schema, err := a.Ledger.ResolveSchema(ctx, cd.SchemaID)
	if err != nil {
		return nil, fmt.Errorf("%w: schema of %s: %v", prot.ErrPrecondition, credDefID, err)
	}
	for _, attr := range schema.Attrs {
		if _, ok := valueOf(values, attr); !ok {
			return nil, fmt.Errorf("%w: no value for %s", prot.ErrMalformed, attr)
		}
	}
	offer, err := a.Creds.CreateOffer(ctx, credDefID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", prot.ErrPrecondition, err)
	}

	i = &Issuer{
		exchange:  prot.NewExchange(a, rules, sourceID, prot.RoleIssuer),
		CredDefID: credDefID,
		Values:    values,
		Offer:     offer,
		OfferMsg:  issuecredential.NewOffer(comment, preview(values), offer),
	}
	i.Init(i, rules)
	try.To(i.ClaimThread(i.OfferMsg.Thread.ID))
	try.To(i.Persist(""))
	return i, nil
}

func valueOf(values map[string]string, attr string) (string, bool) {
	for name, v := range values {
		if vc.AttrName(name) == vc.AttrName(attr) {
			return v, true
		}
	}
	return "", false
}

func preview(values map[string]string) issuecredential.PreviewCredential {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	attrs := make([]issuecredential.Attribute, 0, len(names))
	for _, name := range names {
		attrs = append(attrs, issuecredential.Attribute{Name: name, Value: values[name]})
	}
	return issuecredential.NewPreview(attrs)
}

// DeserializeIssuer restores the issuer from its snapshot.
func DeserializeIssuer(a *prot.Agent, data []byte) (i *Issuer, err error) {
	i = new(Issuer)
	if err := json.Unmarshal(data, i); err != nil {
		return nil, fmt.Errorf("%w: issuer snapshot: %v", prot.ErrMalformed, err)
	}
	if i.Role != prot.RoleIssuer {
		return nil, fmt.Errorf("%w: snapshot of %s", prot.ErrMalformed, i.Role)
	}
	if err := i.Bind(a); err != nil {
		return nil, err
	}
	i.Init(i, rules)
	return i, nil
}

// LoadIssuer reads the persisted issuer of the agent.
func LoadIssuer(a *prot.Agent, id string) (i *Issuer, err error) {
	defer err2.Handle(&err, "load issuer %s", id)

	p := try.To1(a.LoadPSM(id))
	return DeserializeIssuer(a, p.Data)
}

// SendOffer sends the offer over the accepted connection.
func (i *Issuer) SendOffer(ctx context.Context, ch prot.Channel) (err error) {
	defer err2.Handle(&err, "send offer %s", i.ID)

	unlock := try.To1(i.Lock())
	defer unlock()

	if i.State != StateInitial {
		return prot.Precondition("send offer", i.State)
	}
	try.To(i.BindChannel(ch))
	try.To(i.Send(ctx, i.OfferMsg))
	return i.Transit(evSendOffer, i.OfferMsg.Type)
}

// PrepareOffer returns the offer message without sending it, e.g. to be
// attached to an out-of-band invitation. The exchange waits for the request
// like after SendOffer. SetConnection tells where the request arrives.
func (i *Issuer) PrepareOffer() (offer *issuecredential.Offer, err error) {
	defer err2.Handle(&err, "prepare offer %s", i.ID)

	unlock := try.To1(i.Lock())
	defer unlock()

	try.To(i.Transit(evPrepareOffer, i.OfferMsg.Type))
	return i.OfferMsg, nil
}

// SetConnection binds the prepared offer to the connection where the holder
// answers. The connection can be a one-shot channel which doesn't know the
// holder yet.
func (i *Issuer) SetConnection(ch prot.Channel) (err error) {
	defer err2.Handle(&err, "set connection %s", i.ID)

	unlock := try.To1(i.Lock())
	defer unlock()

	if i.State != StateOfferSent || i.PW.Me.VerKey != "" {
		return prot.Precondition("set connection", i.State)
	}
	if ch == nil || ch.Pairwise().Me.VerKey == "" {
		return fmt.Errorf("%w: connection has no keys", prot.ErrPrecondition)
	}
	i.PW = ch.Pairwise()
	return i.Persist("")
}

// SendCredential issues the credential for the received request. A request
// the credential cannot be issued for ends the exchange as Failed with a
// problem report to the holder.
func (i *Issuer) SendCredential(ctx context.Context) (err error) {
	defer err2.Handle(&err, "send credential %s", i.ID)

	unlock := try.To1(i.Lock())
	defer unlock()

	if i.State != StateRequestReceived {
		return prot.Precondition("send credential", i.State)
	}
	cred, err := i.Agent().Creds.IssueCredential(ctx, i.Offer, i.Request, i.Values)
	switch {
	case errors.Is(err, vc.ErrOfferMismatch), errors.Is(err, vc.ErrMissingValue):
		glog.Warningf("%s: cannot issue %s: %v", i.Agent().Label, i.ID, err)
		return i.Abandon(ctx, evFail, common.CodeInvalidCredRequest, err.Error())
	case err != nil:
		return prot.Retryable("issue credential", err)
	}
	msg := issuecredential.NewIssue(i.ThreadDecorator(), cred)
	try.To(i.Send(ctx, msg))

	i.RevRegID, i.CredRevID = cred.RevRegID, cred.CredRevID
	return i.Transit(evSendCredential, msg.Type)
}

// Revoke revokes the issued credential in the revocation registry of the
// credential definition.
func (i *Issuer) Revoke(ctx context.Context) (err error) {
	defer err2.Handle(&err, "revoke %s", i.ID)

	unlock := try.To1(i.Lock())
	defer unlock()

	if _, ok := next(i.Role, i.State, evRevoke); !ok || i.CredRevID == "" {
		return prot.Precondition("revoke", i.State)
	}
	revoker, ok := i.Agent().Ledger.(vc.Revoker)
	if !ok {
		return fmt.Errorf("%w: ledger cannot revoke", prot.ErrPrecondition)
	}
	if err := revoker.Revoke(ctx, i.RevRegID, i.CredRevID); err != nil {
		return prot.Retryable("revoke", err)
	}
	return i.Transit(evRevoke, "")
}

// Reject abandons the exchange and tells the holder.
func (i *Issuer) Reject(ctx context.Context, comment string) (err error) {
	defer err2.Handle(&err, "reject %s", i.ID)

	unlock := try.To1(i.Lock())
	defer unlock()

	return i.Abandon(ctx, evReject, common.CodeIssuanceAbandoned, comment)
}

// Delete tells a running exchange's holder that it's abandoned and removes
// the record.
func (i *Issuer) Delete(ctx context.Context) error {
	return i.Discard(ctx)
}

// UpdateState applies the messages of the exchange from our mailbox.
func (i *Issuer) UpdateState(ctx context.Context) (prot.StateCode, error) {
	return i.Update(ctx, i.handlers())
}

// UpdateStateWithMessage applies the message to the exchange.
func (i *Issuer) UpdateStateWithMessage(ctx context.Context, m trans.Message) (prot.StateCode, error) {
	return i.UpdateWith(ctx, m, i.handlers())
}

func (i *Issuer) handlers() map[string]prot.Handler {
	return map[string]prot.Handler{
		pltype.IssueCredentialRequest:    i.onRequest,
		pltype.IssueCredentialPropose:    i.onPropose,
		pltype.IssueCredentialACK:        i.onAck,
		pltype.NotificationAck:           i.onAck,
		pltype.NotificationProblemReport: i.OnProblem,
		pltype.ReportProblem:             i.OnProblem,
	}
}

func (i *Issuer) onRequest(ctx context.Context, m *trans.Message) error {
	if i.State != StateOfferSent {
		i.Unexpected(m)
		return nil
	}
	msg := new(issuecredential.Request)
	if !i.Decode(ctx, m, msg) {
		return nil
	}
	data, err := msg.RequestData()
	if err != nil {
		i.Malformed(ctx, m, err)
		return nil
	}
	req := new(vc.Request)
	if err := json.Unmarshal(data, req); err != nil {
		i.Malformed(ctx, m, err)
		return nil
	}
	i.Request = req
	return i.Commit(ctx, evRequest, m)
}

// onPropose turns down a proposal to a running offer, changing the offer
// isn't supported.
func (i *Issuer) onPropose(ctx context.Context, m *trans.Message) error {
	if i.State != StateOfferSent {
		i.Unexpected(m)
		return nil
	}
	return i.FailWith(ctx, m, common.CodeUnsupported, errors.New("credential proposal is not supported"))
}

func (i *Issuer) onAck(ctx context.Context, m *trans.Message) error {
	if i.State != StateCredentialSent {
		i.Unexpected(m)
		return nil
	}
	return i.Commit(ctx, evAck, m)
}

/*
Taken from aries-framework-go, and heavily modified. The most important
modifications were 1) renaming structures: removing Credential word which is
already in the package name, 2) adding thread decorators to all, and 3) IDs.
*/

// Package issuecredential is package for Aries protocol messages for same name.
package issuecredential

import (
	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/findy-network/findy-exchange/std/decorator"
)

// Propose is an optional message sent by the potential Holder to the Issuer
// to initiate the protocol or in response to a offer-credential message when the Holder
// wants some adjustments made to the credential data offered by Issuer.
type Propose struct {
	ID   string `json:"@id,omitempty"`
	Type string `json:"@type,omitempty"`
	// Comment is an optional field that provides human readable information about this Credential Offer,
	// so the offer can be evaluated by human judgment.
	Comment string `json:"comment,omitempty"`
	// CredentialProposal is an optional JSON-LD object that represents
	// the credential data that the Prover wants to receive.
	CredentialProposal PreviewCredential `json:"credential_proposal,omitempty"`
	// SchemaID is an optional filter to request credential based on a particular Schema.
	SchemaID string `json:"schema_id,omitempty"`
	// CredDefID is an optional filter to request credential based on a particular Credential Definition.
	CredDefID string `json:"cred_def_id,omitempty"`

	Thread *decorator.Thread `json:"~thread,omitempty"`
}

// Offer is a message sent by the Issuer to the potential Holder,
// describing the credential they intend to offer.
type Offer struct {
	ID   string `json:"@id,omitempty"`
	Type string `json:"@type,omitempty"`
	// Comment is an optional field that provides human readable information about this Credential Offer,
	// so the offer can be evaluated by human judgment.
	Comment string `json:"comment,omitempty"`
	// CredentialPreview is a JSON-LD object that represents the credential data that Issuer is willing to issue.
	CredentialPreview PreviewCredential `json:"credential_preview,omitempty"`
	// OffersAttach is a slice of attachments that further define the credential being offered.
	OffersAttach []decorator.Attachment `json:"offers~attach,omitempty"`

	Thread *decorator.Thread `json:"~thread,omitempty"`
}

// Request is a message sent by the potential Holder to the Issuer,
// to request the issuance of a credential.
type Request struct {
	ID      string `json:"@id,omitempty"`
	Type    string `json:"@type,omitempty"`
	Comment string `json:"comment,omitempty"`
	// RequestsAttach is a slice of attachments defining the requested formats for the credential
	RequestsAttach []decorator.Attachment `json:"requests~attach,omitempty"`

	Thread *decorator.Thread `json:"~thread,omitempty"`
}

// Issue contains as attached payload the credentials being issued and is
// sent in response to a valid Request Credential message.
type Issue struct {
	ID      string `json:"@id,omitempty"`
	Type    string `json:"@type,omitempty"`
	Comment string `json:"comment,omitempty"`
	// CredentialsAttach is a slice of attachments containing the issued credentials.
	CredentialsAttach []decorator.Attachment `json:"credentials~attach,omitempty"`
	PleaseAck         *struct{}              `json:"~please_ack,omitempty"`

	Thread *decorator.Thread `json:"~thread,omitempty"`
}

// PreviewCredential is used to construct a preview of the data for the
// credential that is to be issued.
type PreviewCredential struct {
	Type       string      `json:"@type,omitempty"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

// Attribute describes an attribute for a Preview Credential
type Attribute struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime-type,omitempty"`
	Value    string `json:"value,omitempty"`
}

func NewPreview(attrs []Attribute) PreviewCredential {
	return PreviewCredential{
		Type:       pltype.IssueCredentialCredentialPreview,
		Attributes: attrs,
	}
}

// Values returns the preview as a name to value map.
func (p PreviewCredential) Values() map[string]string {
	values := make(map[string]string, len(p.Attributes))
	for _, a := range p.Attributes {
		values[a.Name] = a.Value
	}
	return values
}

// NewOffer starts a new thread which ID is the offer's ID.
func NewOffer(comment string, preview PreviewCredential, offer interface{}) *Offer {
	id := utils.UUID()
	return &Offer{
		ID:                id,
		Type:              pltype.IssueCredentialOffer,
		Comment:           comment,
		CredentialPreview: preview,
		OffersAttach: []decorator.Attachment{
			decorator.NewAttachment(pltype.CredentialOfferID, offer),
		},
		Thread: &decorator.Thread{ID: id},
	}
}

func NewRequest(thread *decorator.Thread, request interface{}) *Request {
	return &Request{
		ID:   utils.UUID(),
		Type: pltype.IssueCredentialRequest,
		RequestsAttach: []decorator.Attachment{
			decorator.NewAttachment(pltype.CredentialRequestID, request),
		},
		Thread: thread,
	}
}

func NewIssue(thread *decorator.Thread, cred interface{}) *Issue {
	return &Issue{
		ID:   utils.UUID(),
		Type: pltype.IssueCredentialIssue,
		CredentialsAttach: []decorator.Attachment{
			decorator.NewAttachment(pltype.CredentialID, cred),
		},
		PleaseAck: &struct{}{},
		Thread:    thread,
	}
}

func NewPropose(comment, credDefID string, preview PreviewCredential) *Propose {
	id := utils.UUID()
	return &Propose{
		ID:                 id,
		Type:               pltype.IssueCredentialPropose,
		Comment:            comment,
		CredentialProposal: preview,
		CredDefID:          credDefID,
		Thread:             &decorator.Thread{ID: id},
	}
}

// OfferData returns the payload of the first offer attachment.
func (o *Offer) OfferData() ([]byte, error) {
	if len(o.OffersAttach) == 0 {
		return nil, decorator.ErrNoAttachmentData
	}
	return o.OffersAttach[0].Bytes()
}

// RequestData returns the payload of the first request attachment.
func (r *Request) RequestData() ([]byte, error) {
	if len(r.RequestsAttach) == 0 {
		return nil, decorator.ErrNoAttachmentData
	}
	return r.RequestsAttach[0].Bytes()
}

// CredentialData returns the payload of the first credential attachment.
func (i *Issue) CredentialData() ([]byte, error) {
	if len(i.CredentialsAttach) == 0 {
		return nil, decorator.ErrNoAttachmentData
	}
	return i.CredentialsAttach[0].Bytes()
}

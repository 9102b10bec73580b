// Package presentproof is package for Aries present-proof protocol messages.
package presentproof

import (
	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/findy-network/findy-exchange/std/decorator"
)

// MARK: Request

type Request struct {
	Type                 string                 `json:"@type,omitempty"`
	ID                   string                 `json:"@id,omitempty"`
	Comment              string                 `json:"comment,omitempty"`
	RequestPresentations []decorator.Attachment `json:"request_presentations~attach,omitempty"`
	Thread               *decorator.Thread      `json:"~thread,omitempty"`
}

// MARK: Presentation

type Presentation struct {
	Type                 string                 `json:"@type,omitempty"`
	ID                   string                 `json:"@id,omitempty"`
	Comment              string                 `json:"comment,omitempty"`
	PresentationAttaches []decorator.Attachment `json:"presentations~attach,omitempty"`
	PleaseAck            *struct{}              `json:"~please_ack,omitempty"`
	Thread               *decorator.Thread      `json:"~thread,omitempty"`
}

// MARK: Propose

type Propose struct {
	Type                 string            `json:"@type,omitempty"`
	ID                   string            `json:"@id,omitempty"`
	Comment              string            `json:"comment,omitempty"`
	PresentationProposal *Preview          `json:"presentation_proposal,omitempty"`
	Thread               *decorator.Thread `json:"~thread,omitempty"`
}

// MARK: Preview

type Preview struct {
	Type       string      `json:"@type,omitempty"`
	Attributes []Attribute `json:"attributes"`
	Predicates []Predicate `json:"predicates"`
}

type Attribute struct {
	Name      string `json:"name"`
	CredDefID string `json:"cred_def_id,omitempty"`

	// https://github.com/hyperledger/aries-rfcs/blob/master/features/0037-present-proof/README.md#mime-type-and-value
	MimeType string `json:"mime_type,omitempty"`
	Value    string `json:"value,omitempty"`

	// https://github.com/hyperledger/aries-rfcs/blob/master/features/0037-present-proof/README.md#referent
	Referent string `json:"referent,omitempty"`
}

// Predicate is definition type of Preview struct.
//
//	https://github.com/hyperledger/aries-rfcs/blob/master/features/0037-present-proof/README.md#predicates
type Predicate struct {
	Name      string `json:"name"`
	CredDefID string `json:"cred_def_id,omitempty"`
	Predicate string `json:"predicate"` // "<", "<=", ">=", ">"
	Threshold int64  `json:"threshold"`
}

func NewPreview(attrs []Attribute, preds []Predicate) *Preview {
	if attrs == nil {
		attrs = []Attribute{}
	}
	if preds == nil {
		preds = []Predicate{}
	}
	return &Preview{
		Type:       pltype.PresentationPreviewObj,
		Attributes: attrs,
		Predicates: preds,
	}
}

// NewPropose starts a new thread which ID is the proposal's ID.
func NewPropose(comment string, preview *Preview) *Propose {
	id := utils.UUID()
	return &Propose{
		Type:                 pltype.PresentProofPropose,
		ID:                   id,
		Comment:              comment,
		PresentationProposal: preview,
		Thread:               &decorator.Thread{ID: id},
	}
}

// NewRequest builds a request to the thread. A nil thread starts a new
// thread.
func NewRequest(thread *decorator.Thread, comment string, request interface{}) *Request {
	id := utils.UUID()
	return &Request{
		Type:    pltype.PresentProofRequest,
		ID:      id,
		Comment: comment,
		RequestPresentations: []decorator.Attachment{
			decorator.NewAttachment(pltype.RequestPresentationID, request),
		},
		Thread: decorator.CheckThread(thread, id),
	}
}

func NewPresentation(thread *decorator.Thread, proof interface{}) *Presentation {
	return &Presentation{
		Type: pltype.PresentProofPresentation,
		ID:   utils.UUID(),
		PresentationAttaches: []decorator.Attachment{
			decorator.NewAttachment(pltype.PresentationID, proof),
		},
		PleaseAck: &struct{}{},
		Thread:    thread,
	}
}

// RequestData returns the payload of the first request attachment.
func (r *Request) RequestData() ([]byte, error) {
	if len(r.RequestPresentations) == 0 {
		return nil, decorator.ErrNoAttachmentData
	}
	return r.RequestPresentations[0].Bytes()
}

// PresentationData returns the payload of the first presentation attachment.
func (p *Presentation) PresentationData() ([]byte, error) {
	if len(p.PresentationAttaches) == 0 {
		return nil, decorator.ErrNoAttachmentData
	}
	return p.PresentationAttaches[0].Bytes()
}

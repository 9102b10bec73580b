package common

import (
	"fmt"

	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/findy-network/findy-exchange/std/decorator"
)

// Problem codes used by the state machines.
const (
	CodeRequestNotAccepted    = "request_not_accepted"
	CodeRequestProcessing     = "request_processing_error"
	CodeResponseNotAccepted   = "response_not_accepted"
	CodeResponseProcessing    = "response_processing_error"
	CodeIssuanceAbandoned     = "issuance-abandoned"
	CodePresentationAbandoned = "presentation-abandoned"
	CodeInvalidPresentation   = "invalid-presentation"
	CodeInvalidOffer          = "invalid-credential-offer"
	CodeInvalidCredRequest    = "invalid-credential-request"
	CodeInvalidCredential     = "invalid-credential"
	CodeInvalidProofRequest   = "invalid-presentation-request"
	CodeUnsupported           = "unimplemented"
	CodeConnectionDeleted     = "connection-deleted"
)

// ProblemReport problem report definition
type ProblemReport struct {
	Type           string            `json:"@type"`
	ID             string            `json:"@id"`
	Description    Code              `json:"description"`
	ExplainLongTxt string            `json:"explain-ltxt,omitempty"` // ACApy
	Comment        string            `json:"comment,omitempty"`
	Thread         *decorator.Thread `json:"~thread,omitempty"`
}

// Code represents a problem report code
type Code struct {
	Code string `json:"code"`
	En   string `json:"en,omitempty"`
}

// NewProblemReport builds a report for the thread. The explanation goes to
// both the description and the comment for the agents that read only one.
func NewProblemReport(code, explain string, thread *decorator.Thread) *ProblemReport {
	return &ProblemReport{
		Type: pltype.NotificationProblemReport,
		ID:   utils.UUID(),
		Description: Code{
			Code: code,
			En:   explain,
		},
		ExplainLongTxt: explain,
		Comment:        explain,
		Thread:         thread,
	}
}

func (p *ProblemReport) Error() string {
	return fmt.Sprintf("problem report %s: %s", p.Description.Code, p.Reason())
}

// Reason returns the first non empty human readable explanation.
func (p *ProblemReport) Reason() string {
	switch {
	case p.Description.En != "":
		return p.Description.En
	case p.ExplainLongTxt != "":
		return p.ExplainLongTxt
	default:
		return p.Comment
	}
}

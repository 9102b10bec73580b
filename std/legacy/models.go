// Package legacy holds the messages of the proprietary pairwise protocol
// that predates Aries connections. The inviter sends its invite detail out of
// band, the invitee answers either with an accept or a redirect.
package legacy

import (
	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/findy-network/findy-exchange/std/decorator"
)

// Message status codes of the legacy protocol.
const (
	StatusCreated    = "MS-101"
	StatusSent       = "MS-102"
	StatusPending    = "MS-103"
	StatusAccepted   = "MS-104"
	StatusRejected   = "MS-105"
	StatusReviewed   = "MS-106"
	StatusRedirected = "MS-107"
)

// SenderDetail describes the pairwise of the sending side.
type SenderDetail struct {
	Name      string `json:"name,omitempty"`
	LogoURL   string `json:"logoUrl,omitempty"`
	DID       string `json:"DID"`
	VerKey    string `json:"verKey"`
	PublicDID string `json:"publicDID,omitempty"`
}

// AgencyDetail is the routing blob pointing at the relay that stores
// messages for the sender.
type AgencyDetail struct {
	DID      string `json:"DID,omitempty"`
	VerKey   string `json:"verKey,omitempty"`
	Endpoint string `json:"endpoint"`
}

// InviteDetail is the legacy invitation.
type InviteDetail struct {
	ConnReqID          string       `json:"connReqId"`
	TargetName         string       `json:"targetName,omitempty"`
	SenderDetail       SenderDetail `json:"senderDetail"`
	SenderAgencyDetail AgencyDetail `json:"senderAgencyDetail"`
	StatusCode         string       `json:"statusCode"`
	StatusMsg          string       `json:"statusMsg,omitempty"`
	ThreadID           string       `json:"threadId,omitempty"`
	Version            string       `json:"version,omitempty"`
}

// Answer is the invitee's accept.
type Answer struct {
	Type               string            `json:"@type"`
	ID                 string            `json:"@id"`
	SenderDetail       SenderDetail      `json:"senderDetail"`
	SenderAgencyDetail AgencyDetail      `json:"senderAgencyDetail"`
	AnswerStatusCode   string            `json:"answerStatusCode"`
	ReplyToMsgID       string            `json:"replyToMsgId,omitempty"`
	Thread             *decorator.Thread `json:"~thread,omitempty"`
}

// RedirectDetail tells the inviter which existing pairwise to use instead.
// The Their* fields are the redirecting side's own keys.
type RedirectDetail struct {
	DID            string `json:"DID"`
	VerKey         string `json:"verKey"`
	PublicDID      string `json:"publicDID,omitempty"`
	TheirDID       string `json:"theirDID"`
	TheirVerKey    string `json:"theirVerKey"`
	TheirPublicDID string `json:"theirPublicDID,omitempty"`
	Signature      string `json:"signature"`
}

// Redirect is the invitee's redirect answer.
type Redirect struct {
	Type             string            `json:"@type"`
	ID               string            `json:"@id"`
	RedirectDetail   RedirectDetail    `json:"redirectDetail"`
	AnswerStatusCode string            `json:"answerStatusCode"`
	ReplyToMsgID     string            `json:"replyToMsgId,omitempty"`
	Thread           *decorator.Thread `json:"~thread,omitempty"`
}

// NewInviteDetail builds the invite for the sender pairwise. The connection
// request ID doubles as the thread ID.
func NewInviteDetail(sender SenderDetail, agency AgencyDetail, target string) *InviteDetail {
	id := utils.UUID()
	return &InviteDetail{
		ConnReqID:          id,
		TargetName:         target,
		SenderDetail:       sender,
		SenderAgencyDetail: agency,
		StatusCode:         StatusCreated,
		StatusMsg:          "message created",
		ThreadID:           id,
		Version:            "1.0",
	}
}

// Valid reports if the invite has the keys needed to answer it.
func (d *InviteDetail) Valid() bool {
	return d != nil && d.ConnReqID != "" && d.SenderDetail.DID != "" &&
		d.SenderDetail.VerKey != ""
}

// ThreadOrID returns the thread ID, old invites have only the request ID.
func (d *InviteDetail) ThreadOrID() string {
	if d.ThreadID != "" {
		return d.ThreadID
	}
	return d.ConnReqID
}

// thread builds the answer thread, the inviter's first message counts as
// order 0.
func (d *InviteDetail) thread() *decorator.Thread {
	return &decorator.Thread{
		ID:             d.ThreadOrID(),
		ReceivedOrders: map[string]int{d.SenderDetail.DID: 0},
	}
}

func NewAnswer(d *InviteDetail, sender SenderDetail, agency AgencyDetail) *Answer {
	return &Answer{
		Type:               pltype.LegacyConnectionAnswer,
		ID:                 utils.UUID(),
		SenderDetail:       sender,
		SenderAgencyDetail: agency,
		AnswerStatusCode:   StatusAccepted,
		ReplyToMsgID:       d.ConnReqID,
		Thread:             d.thread(),
	}
}

func NewRedirect(d *InviteDetail, rd RedirectDetail) *Redirect {
	return &Redirect{
		Type:             pltype.LegacyConnectionRedirect,
		ID:               utils.UUID(),
		RedirectDetail:   rd,
		AnswerStatusCode: StatusRedirected,
		ReplyToMsgID:     d.ConnReqID,
		Thread:           d.thread(),
	}
}

// Package questionanswer is the Aries question answer protocol.
package questionanswer

import (
	"crypto/sha512"
	"errors"
	"time"

	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/findy-network/findy-exchange/std/basicmessage"
	"github.com/findy-network/findy-exchange/std/decorator"
)

var ErrInvalidResponse = errors.New("response is not one of the valid responses")

type Question struct {
	Type              string            `json:"@type"`
	ID                string            `json:"@id"`
	QuestionText      string            `json:"question_text"`
	QuestionDetail    string            `json:"question_detail,omitempty"`
	Nonce             string            `json:"nonce"`
	SignatureRequired bool              `json:"signature_required"`
	ValidResponses    []Response        `json:"valid_responses"`
	Timing            *Timing           `json:"~timing,omitempty"`
	Thread            *decorator.Thread `json:"~thread,omitempty"`
}

type Response struct {
	Text string `json:"text"`
}

type Timing struct {
	ExpiresTime string `json:"expires_time,omitempty"`
	OutTime     string `json:"out_time,omitempty"`
}

type Answer struct {
	Type              string               `json:"@type"`
	ID                string               `json:"@id"`
	Response          string               `json:"response"`
	Timing            Timing               `json:"~timing"`
	ResponseSignature *decorator.Signature `json:"response~sig,omitempty"`
	Thread            *decorator.Thread    `json:"~thread"`
}

func NewQuestion(text, detail string, responses []string, signatureRequired bool) *Question {
	id := utils.UUID()
	q := &Question{
		Type:              pltype.QuestionAnswerQuestion,
		ID:                id,
		QuestionText:      text,
		QuestionDetail:    detail,
		Nonce:             utils.NewNonceStr(),
		SignatureRequired: signatureRequired,
		Thread:            decorator.NewThread(id, ""),
	}
	for _, r := range responses {
		q.ValidResponses = append(q.ValidResponses, Response{Text: r})
	}
	return q
}

// Valid tells if the response is one of the question's valid responses.
func (q *Question) Valid(response string) bool {
	for _, r := range q.ValidResponses {
		if r.Text == response {
			return true
		}
	}
	return false
}

// NewAnswer builds the answer without signature. The response must be one
// of the valid responses.
func NewAnswer(q *Question, response string) (*Answer, error) {
	if !q.Valid(response) {
		return nil, ErrInvalidResponse
	}
	outTime, _ := basicmessage.AriesTime{Time: time.Now().UTC()}.MarshalJSON()
	return &Answer{
		Type:     pltype.QuestionAnswerAnswer,
		ID:       utils.UUID(),
		Response: response,
		Timing:   Timing{OutTime: string(outTime[1 : len(outTime)-1])},
		Thread:   decorator.CheckThread(q.Thread, q.ID),
	}, nil
}

// SignatureData is what the responder signs when the question asks for a
// signature: SHA-512 of response text followed by the question nonce.
func SignatureData(response, nonce string) []byte {
	h := sha512.Sum512([]byte(response + nonce))
	return h[:]
}

// Package decorator holds the Aries message decorators the exchange messages
// use: ~thread, ~attach and the signature decorator.
package decorator

import (
	"encoding/base64"
	"errors"

	"github.com/findy-network/findy-common-go/dto"
)

// Thread is the ~thread decorator. SenderOrder and ReceivedOrders follow the
// message threading RFC, keys of ReceivedOrders are the counterparty DIDs.
type Thread struct {
	ID             string         `json:"thid,omitempty"`
	PID            string         `json:"pthid,omitempty"`
	SenderOrder    int            `json:"sender_order"`
	ReceivedOrders map[string]int `json:"received_orders,omitempty"`
}

// AttachmentData carries the attachment payload either as base64 or as
// embedded JSON.
type AttachmentData struct {
	Base64 string      `json:"base64,omitempty"`
	JSON   interface{} `json:"json,omitempty"`
}

// Attachment is the ~attach decorator item.
type Attachment struct {
	ID       string         `json:"@id,omitempty"`
	MimeType string         `json:"mime-type,omitempty"`
	Data     AttachmentData `json:"data"`
}

// Signature is the field level signature decorator, e.g. connection~sig.
type Signature struct {
	Type      string `json:"@type,omitempty"`
	Signature string `json:"signature,omitempty"`
	SignData  string `json:"sig_data,omitempty"`
	Signer    string `json:"signer,omitempty"`
}

var ErrNoAttachmentData = errors.New("attachment data missing")

// NewAttachment builds a base64 JSON attachment of the value.
func NewAttachment(id string, v interface{}) Attachment {
	return Attachment{
		ID:       id,
		MimeType: "application/json",
		Data: AttachmentData{
			Base64: base64.StdEncoding.EncodeToString(dto.ToJSONBytes(v)),
		},
	}
}

// Bytes returns the raw attachment payload regardless of the encoding it was
// sent with.
func (a Attachment) Bytes() ([]byte, error) {
	if a.Data.Base64 != "" {
		data, err := base64.StdEncoding.DecodeString(a.Data.Base64)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(a.Data.Base64)
		}
		return data, err
	}
	if a.Data.JSON != nil {
		return dto.ToJSONBytes(a.Data.JSON), nil
	}
	return nil, ErrNoAttachmentData
}

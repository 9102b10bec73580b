package common

import (
	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/findy-network/findy-exchange/std/decorator"
)

const (
	AckStatusOK      = "OK"
	AckStatusPending = "PENDING"
	AckStatusFail    = "FAIL"
)

// Ack acknowledgement struct
type Ack struct {
	Type   string            `json:"@type,omitempty"`
	ID     string            `json:"@id,omitempty"`
	Status string            `json:"status,omitempty"`
	Thread *decorator.Thread `json:"~thread,omitempty"`
}

// NewAck builds an OK ack of the given type. Protocols with their own ack
// type pass it, others use the notification ack.
func NewAck(typ string, thread *decorator.Thread) *Ack {
	if typ == "" {
		typ = pltype.NotificationAck
	}
	return &Ack{
		Type:   typ,
		ID:     utils.UUID(),
		Status: AckStatusOK,
		Thread: thread,
	}
}

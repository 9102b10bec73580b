// Package trustping is the Aries trust ping protocol.
package trustping

import (
	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/findy-network/findy-exchange/std/decorator"
)

type Ping struct {
	Type              string            `json:"@type"`
	ID                string            `json:"@id"`
	Comment           string            `json:"comment,omitempty"`
	ResponseRequested bool              `json:"response_requested"`
	Thread            *decorator.Thread `json:"~thread,omitempty"`
}

type PingResponse struct {
	Type    string            `json:"@type"`
	ID      string            `json:"@id"`
	Comment string            `json:"comment,omitempty"`
	Thread  *decorator.Thread `json:"~thread,omitempty"`
}

func NewPing(comment string, responseRequested bool) *Ping {
	id := utils.UUID()
	return &Ping{
		Type:              pltype.TrustPingPing,
		ID:                id,
		Comment:           comment,
		ResponseRequested: responseRequested,
		Thread:            decorator.NewThread(id, ""),
	}
}

// NewResponse answers the ping in the ping's thread.
func NewResponse(ping *Ping) *PingResponse {
	return &PingResponse{
		Type:   pltype.TrustPingResponse,
		ID:     utils.UUID(),
		Thread: decorator.CheckThread(ping.Thread, ping.ID),
	}
}

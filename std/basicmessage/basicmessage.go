// Package basicmessage is the Aries basic message protocol, a one-way
// human readable message over an accepted connection.
package basicmessage

import (
	"time"

	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/findy-network/findy-exchange/std/decorator"
)

func New(content string) *Basicmessage {
	id := utils.UUID()
	return &Basicmessage{
		Type:     pltype.BasicMessageSend,
		ID:       id,
		Content:  content,
		SentTime: AriesTime{Time: time.Now().UTC()},
		Thread:   decorator.NewThread(id, ""),
	}
}

// Package inviteaction is the Aries invite to action protocol, only the
// invite message is sent by this agent.
package inviteaction

import (
	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/findy-network/findy-exchange/std/decorator"
)

type Invite struct {
	Type      string            `json:"@type"`
	ID        string            `json:"@id"`
	GoalCode  string            `json:"goal_code"`
	PleaseAck *PleaseAck        `json:"~please_ack,omitempty"`
	Thread    *decorator.Thread `json:"~thread,omitempty"`
}

type PleaseAck struct {
	On []string `json:"on,omitempty"`
}

func NewInvite(goalCode string, ackOn []string) *Invite {
	id := utils.UUID()
	i := &Invite{
		Type:     pltype.InviteActionInvite,
		ID:       id,
		GoalCode: goalCode,
		Thread:   decorator.NewThread(id, ""),
	}
	if len(ackOn) > 0 {
		i.PleaseAck = &PleaseAck{On: ackOn}
	}
	return i
}

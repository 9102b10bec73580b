package connection

import (
	"context"
	"encoding/json"

	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/prot"
	"github.com/findy-network/findy-exchange/agent/trans"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

type handlerFunc func(c *Connection, ctx context.Context, m *trans.Message) error

// handlers are the message types of the connection. The messages of the
// other protocol families stay in the mailbox for their own records.
var handlers = map[string]handlerFunc{
	pltype.AriesConnectionRequest:      (*Connection).onRequest,
	pltype.AriesConnectionResponse:     (*Connection).onResponse,
	pltype.NotificationAck:             (*Connection).onAck,
	pltype.LegacyConnectionAck:         (*Connection).onAck,
	pltype.LegacyConnectionAnswer:      (*Connection).onAnswer,
	pltype.LegacyConnectionRedirect:    (*Connection).onRedirect,
	pltype.NotificationProblemReport:   (*Connection).onProblem,
	pltype.ReportProblem:               (*Connection).onProblem,
	pltype.TrustPingPing:               (*Connection).onPing,
	pltype.TrustPingResponse:           (*Connection).onPingResponse,
	pltype.DiscoverFeaturesQuery:       (*Connection).onQuery,
	pltype.DiscoverFeaturesDisclose:    (*Connection).onDisclose,
	pltype.OutOfBandHandshakeReuse:     (*Connection).onReuse,
	pltype.OutOfBandHandshakeReuseDone: (*Connection).onReuseAccepted,
	pltype.QuestionAnswerQuestion:      (*Connection).onQuestion,
	pltype.QuestionAnswerAnswer:        (*Connection).onQuestionAnswer,
	pltype.BasicMessageSend:            (*Connection).onBasicMessage,
	pltype.InviteActionInvite:          (*Connection).onInvite,
}

// UpdateState downloads our mailbox and applies the messages of the
// connection in the order they arrived. It's a no-op when nothing has
// arrived.
func (c *Connection) UpdateState(ctx context.Context) (s prot.StateCode, err error) {
	defer err2.Handle(&err, "update connection %s", c.ID)

	unlock := try.To1(c.Lock())
	defer unlock()

	msgs := try.To1(c.Download(ctx))
	for i := range msgs {
		try.To(c.apply(ctx, &msgs[i]))
	}
	return c.State, nil
}

// UpdateStateWithMessage applies the message to the connection.
func (c *Connection) UpdateStateWithMessage(ctx context.Context, m trans.Message) (s prot.StateCode, err error) {
	defer err2.Handle(&err, "update connection %s", c.ID)

	unlock := try.To1(c.Lock())
	defer unlock()

	try.To(c.apply(ctx, &m))
	return c.State, nil
}

func (c *Connection) apply(ctx context.Context, m *trans.Message) error {
	h, ok := handlers[pltype.Normalize(m.Type)]
	if !ok {
		return nil
	}
	if c.IsSeen(m) {
		glog.V(3).Infoln("already applied:", m.Type, m.ID)
		c.Consume(ctx, m)
		return nil
	}
	return h(c, ctx, m)
}

// commit moves the connection to the state, persists it and consumes the
// message which caused the move.
func (c *Connection) commit(ctx context.Context, to prot.StateCode, m *trans.Message) error {
	rollback := c.Savepoint()
	c.See(m)
	if err := c.moveTo(to, m.Type); err != nil {
		rollback()
		return err
	}
	c.Agent().Consume(ctx, m.Owner, m.UID)
	return nil
}

// decode parses the payload. A malformed message is consumed, nobody can
// ever apply it.
func (c *Connection) decode(ctx context.Context, m *trans.Message, v interface{}) bool {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		glog.Warningln("malformed message", m.Type, m.UID, err)
		c.Consume(ctx, m)
		return false
	}
	return true
}

func (c *Connection) unexpected(m *trans.Message) {
	glog.Warningf("%s: connection %s in %s ignores %s",
		c.Agent().Label, c.ID, c.State, m.Type)
}

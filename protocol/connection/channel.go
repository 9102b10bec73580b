package connection

import (
	"context"
	"fmt"

	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/prot"
	"github.com/findy-network/findy-exchange/agent/trans"
	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/findy-network/findy-exchange/std/basicmessage"
	"github.com/findy-network/findy-exchange/std/decorator"
	"github.com/findy-network/findy-exchange/std/discovery"
	"github.com/findy-network/findy-exchange/std/inviteaction"
	"github.com/findy-network/findy-exchange/std/outofband"
	"github.com/findy-network/findy-exchange/std/questionanswer"
	"github.com/findy-network/findy-exchange/std/trustping"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// send is the one-way send of the accepted connection. It returns the ID of
// the message.
func (c *Connection) send(ctx context.Context, action string, msg interface{}, id string) (_ string, err error) {
	defer err2.Handle(&err, "%s %s", action, c.ID)

	unlock := try.To1(c.Lock())
	defer unlock()

	if c.State != prot.StateAccepted {
		return "", prot.Precondition(action, c.State)
	}
	try.To(c.Send(ctx, msg))
	return id, nil
}

// SendMessage sends a basic message.
func (c *Connection) SendMessage(ctx context.Context, content string) (string, error) {
	msg := basicmessage.New(content)
	return c.send(ctx, "send message", msg, msg.ID)
}

// SendPing sends a trust ping. The response is answered automatically by
// the other end when it's requested.
func (c *Connection) SendPing(ctx context.Context, comment string, responseRequested bool) (string, error) {
	msg := trustping.NewPing(comment, responseRequested)
	return c.send(ctx, "send ping", msg, msg.ID)
}

// SendDiscoveryFeatures asks which protocols the other end supports. The
// disclosed protocols are in Disclosed after the next update.
func (c *Connection) SendDiscoveryFeatures(ctx context.Context, query, comment string) (string, error) {
	msg := discovery.NewQuery(query, comment)
	return c.send(ctx, "send discovery features", msg, msg.ID)
}

// SendReuse asks the inviter of the out-of-band invitation to use this
// connection instead of a new one.
func (c *Connection) SendReuse(ctx context.Context, inv *outofband.Invitation) (string, error) {
	if inv == nil {
		return "", fmt.Errorf("%w: no invitation to reuse", prot.ErrMalformed)
	}
	msg := outofband.NewHandshakeReuse(inv.ID)
	return c.send(ctx, "send reuse", msg, msg.ID)
}

// SendInviteAction invites the other end to an action.
func (c *Connection) SendInviteAction(ctx context.Context, goalCode string, ackOn []string) (string, error) {
	msg := inviteaction.NewInvite(goalCode, ackOn)
	return c.send(ctx, "send invite action", msg, msg.ID)
}

// SendQuestion asks a question with the valid responses.
func (c *Connection) SendQuestion(
	ctx context.Context,
	text, detail string,
	responses []string,
	signatureRequired bool,
) (string, error) {
	msg := questionanswer.NewQuestion(text, detail, responses, signatureRequired)
	return c.send(ctx, "send question", msg, msg.ID)
}

// SendAnswer answers the received question. The answer is signed when the
// question requires it. The question is dropped once it's answered.
func (c *Connection) SendAnswer(ctx context.Context, questionID, response string) (err error) {
	defer err2.Handle(&err, "send answer %s", c.ID)

	unlock := try.To1(c.Lock())
	defer unlock()

	if c.State != prot.StateAccepted {
		return prot.Precondition("send answer", c.State)
	}
	i := c.question(questionID)
	if i < 0 {
		return fmt.Errorf("%w: no question %s", prot.ErrPrecondition, questionID)
	}
	q := c.Questions[i]
	ans, err := questionanswer.NewAnswer(q, response)
	if err != nil {
		return fmt.Errorf("%w: %v", prot.ErrMalformed, err)
	}
	ans.Thread.SenderOrder = c.Order
	if q.SignatureRequired {
		data := questionanswer.SignatureData(response, q.Nonce)
		sig, err := c.Agent().Wallet.Sign(ctx, c.PW.Me.VerKey, data)
		if err != nil {
			return prot.Retryable("sign answer", err)
		}
		ans.ResponseSignature = &decorator.Signature{
			Type:      pltype.AriesConnectionSignature,
			Signature: utils.EncodeB64(sig),
			SignData:  utils.EncodeB64(data),
			Signer:    c.PW.Me.VerKey,
		}
	}
	try.To(c.Send(ctx, ans))

	c.Order++
	c.Questions = append(c.Questions[:i], c.Questions[i+1:]...)
	return c.save(ans.Type)
}

func (c *Connection) question(id string) int {
	for i, q := range c.Questions {
		if q.ID == id {
			return i
		}
	}
	return -1
}

// SignData signs the data with our pairwise key.
func (c *Connection) SignData(ctx context.Context, data []byte) (sig []byte, err error) {
	defer err2.Handle(&err, "sign data %s", c.ID)

	try.To(c.Check())
	if c.PW.Me.VerKey == "" {
		return nil, prot.Precondition("sign data", c.State)
	}
	sig, err = c.Agent().Wallet.Sign(ctx, c.PW.Me.VerKey, data)
	if err != nil {
		return nil, prot.Retryable("sign", err)
	}
	return sig, nil
}

// VerifySignature checks that the other end has signed the data.
func (c *Connection) VerifySignature(ctx context.Context, data, sig []byte) (ok bool, err error) {
	defer err2.Handle(&err, "verify signature %s", c.ID)

	try.To(c.Check())
	if c.PW.Their.VerKey == "" {
		return false, prot.Precondition("verify signature", c.State)
	}
	ok, err = c.Agent().Wallet.Verify(ctx, c.PW.Their.VerKey, data, sig)
	if err != nil {
		return false, prot.Retryable("verify", err)
	}
	return ok, nil
}

// fromPeer tells if the message came from the other end of the accepted
// connection. The one-shot inviter learns the other end here.
func (c *Connection) fromPeer(m *trans.Message) bool {
	if c.State != prot.StateAccepted {
		return false
	}
	if c.PW.Their.VerKey == "" && c.OneShot && m.Sender != "" {
		glog.V(1).Infof("%s: one-shot connection %s learns %s", c.Agent().Label, c.ID, m.Sender)
		c.PW.Their.VerKey = m.Sender
		return true
	}
	return m.Sender == "" || m.Sender == c.PW.Their.VerKey
}

func (c *Connection) onPing(ctx context.Context, m *trans.Message) error {
	if !c.fromPeer(m) {
		return nil
	}
	var ping trustping.Ping
	if !c.decode(ctx, m, &ping) {
		return nil
	}
	if ping.ResponseRequested {
		if err := c.Send(ctx, trustping.NewResponse(&ping)); err != nil {
			return err
		}
	}
	return c.commit(ctx, c.State, m)
}

func (c *Connection) onPingResponse(ctx context.Context, m *trans.Message) error {
	if !c.fromPeer(m) {
		return nil
	}
	glog.V(3).Infoln("ping response in thread", m.ThreadID)
	return c.commit(ctx, c.State, m)
}

func (c *Connection) onQuery(ctx context.Context, m *trans.Message) error {
	if !c.fromPeer(m) {
		return nil
	}
	var q discovery.Query
	if !c.decode(ctx, m, &q) {
		return nil
	}
	if err := c.Send(ctx, discovery.NewDisclose(&q)); err != nil {
		return err
	}
	return c.commit(ctx, c.State, m)
}

func (c *Connection) onDisclose(ctx context.Context, m *trans.Message) error {
	if !c.fromPeer(m) {
		return nil
	}
	var d discovery.Disclose
	if !c.decode(ctx, m, &d) {
		return nil
	}
	c.Disclosed = d.Protocols
	return c.commit(ctx, c.State, m)
}

func (c *Connection) onReuse(ctx context.Context, m *trans.Message) error {
	if !c.fromPeer(m) {
		return nil
	}
	var r outofband.HandshakeReuse
	if !c.decode(ctx, m, &r) {
		return nil
	}
	if err := c.Send(ctx, outofband.NewReuseAccepted(c.Reply(r.Thread))); err != nil {
		return err
	}
	return c.commit(ctx, c.State, m)
}

func (c *Connection) onReuseAccepted(ctx context.Context, m *trans.Message) error {
	if !c.fromPeer(m) {
		return nil
	}
	return c.commit(ctx, c.State, m)
}

func (c *Connection) onQuestion(ctx context.Context, m *trans.Message) error {
	if !c.fromPeer(m) {
		return nil
	}
	q := new(questionanswer.Question)
	if !c.decode(ctx, m, q) {
		return nil
	}
	c.Questions = append(c.Questions, q)
	return c.commit(ctx, c.State, m)
}

func (c *Connection) onQuestionAnswer(ctx context.Context, m *trans.Message) error {
	if !c.fromPeer(m) {
		return nil
	}
	a := new(questionanswer.Answer)
	if !c.decode(ctx, m, a) {
		return nil
	}
	c.Answers = append(c.Answers, a)
	return c.commit(ctx, c.State, m)
}

func (c *Connection) onBasicMessage(ctx context.Context, m *trans.Message) error {
	if !c.fromPeer(m) {
		return nil
	}
	msg := new(basicmessage.Basicmessage)
	if !c.decode(ctx, m, msg) {
		return nil
	}
	c.Messages = append(c.Messages, msg)
	return c.commit(ctx, c.State, m)
}

func (c *Connection) onInvite(ctx context.Context, m *trans.Message) error {
	if !c.fromPeer(m) {
		return nil
	}
	inv := new(inviteaction.Invite)
	if !c.decode(ctx, m, inv) {
		return nil
	}
	c.Invites = append(c.Invites, inv)
	return c.commit(ctx, c.State, m)
}

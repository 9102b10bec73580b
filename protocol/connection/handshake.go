package connection

import (
	"context"
	"errors"
	"fmt"

	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/prot"
	"github.com/findy-network/findy-exchange/agent/ssi"
	"github.com/findy-network/findy-exchange/agent/trans"
	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/findy-network/findy-exchange/std/common"
	"github.com/findy-network/findy-exchange/std/decorator"
	"github.com/findy-network/findy-exchange/std/didexchange"
	"github.com/findy-network/findy-exchange/std/didexchange/invitation"
	"github.com/findy-network/findy-exchange/std/legacy"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Connect runs our first step of the handshake. The inviter gets the
// invitation payload to deliver out of band. The invitee sends its request or
// its answer and gets nil.
func (c *Connection) Connect(ctx context.Context) (payload []byte, err error) {
	defer err2.Handle(&err, "connect %s", c.ID)

	unlock := try.To1(c.Lock())
	defer unlock()

	if c.Role == prot.RoleInviter {
		return c.invite()
	}
	switch c.Variant {
	case prot.Legacy:
		try.To(c.answer(ctx))
	default:
		try.To(c.request(ctx))
	}
	return nil, nil
}

func (c *Connection) invite() (payload []byte, err error) {
	if c.State != prot.StateInitialized {
		return nil, prot.Precondition("connect", c.State)
	}
	a := c.Agent()
	e := evConnect
	switch {
	case c.Inv != nil && c.Inv.OutOfBand != nil:
		if c.OneShot {
			e = evConnectOneShot
		}
	case c.Variant == prot.Legacy:
		d := legacy.NewInviteDetail(c.senderDetail(), c.agencyDetail(), "")
		if err := c.claimThread(d.ThreadOrID()); err != nil {
			return nil, err
		}
		c.Thread = d.ThreadOrID()
		c.Inv = &invitation.Invitation{Legacy: d}
	default:
		c.Inv = &invitation.Invitation{Aries: &invitation.Aries{
			Type:            pltype.AriesConnectionInvitation,
			ID:              utils.UUID(),
			Label:           a.Label,
			RecipientKeys:   []string{c.PW.Me.VerKey},
			ServiceEndpoint: a.Endpoint,
		}}
	}
	if err := c.transit(e, ""); err != nil {
		return nil, err
	}
	return c.Inv.Payload(), nil
}

func (c *Connection) senderDetail() legacy.SenderDetail {
	return legacy.SenderDetail{
		Name:   c.Agent().Label,
		DID:    c.PW.Me.DID,
		VerKey: c.PW.Me.VerKey,
	}
}

func (c *Connection) agencyDetail() legacy.AgencyDetail {
	return legacy.AgencyDetail{Endpoint: c.Agent().Endpoint}
}

func (c *Connection) ourConnection() *didexchange.Connection {
	return didexchange.NewConnection(c.PW.Me.DID, c.PW.Me.VerKey, c.Agent().Endpoint, nil)
}

// request sends the Aries connection request to the invitation key.
func (c *Connection) request(ctx context.Context) error {
	to, ok := next(c.Variant, c.Role, c.State, evConnect)
	if !ok {
		return prot.Precondition("connect", c.State)
	}
	req := didexchange.NewRequest(c.Agent().Label, c.Inv.ID(), c.ourConnection())
	thid := req.Thread.ID
	if err := c.claimThread(thid); err != nil {
		return err
	}
	if err := c.Agent().Send(ctx, c.PW.Me.VerKey, c.InvitationKey, req); err != nil {
		c.unclaimThread(thid)
		return err
	}
	c.Thread = thid
	c.Order++
	return c.moveTo(to, req.Type)
}

// answer accepts the legacy invitation.
func (c *Connection) answer(ctx context.Context) error {
	to, ok := next(c.Variant, c.Role, c.State, evConnect)
	if !ok {
		return prot.Precondition("connect", c.State)
	}
	ans := legacy.NewAnswer(c.Inv.Legacy, c.senderDetail(), c.agencyDetail())
	ans.Thread.SenderOrder = c.Order
	if err := c.Send(ctx, ans); err != nil {
		return err
	}
	c.Order++
	return c.moveTo(to, ans.Type)
}

// Redirect answers the legacy invitation by pointing the inviter to the
// target, an accepted connection we already have with it.
func (c *Connection) Redirect(ctx context.Context, target *Connection) (err error) {
	defer err2.Handle(&err, "redirect %s", c.ID)

	unlock := try.To1(c.Lock())
	defer unlock()

	to, ok := next(c.Variant, c.Role, c.State, evRedirect)
	if !ok || c.Role != prot.RoleInvitee {
		return prot.Precondition("redirect", c.State)
	}
	if target == nil || target.State != prot.StateAccepted {
		return fmt.Errorf("%w: redirect target not accepted", prot.ErrPrecondition)
	}

	their, me := target.PW.Their, target.PW.Me
	sig, err := c.Agent().Wallet.Sign(ctx, me.VerKey, redirectData(me.DID, me.VerKey))
	if err != nil {
		return prot.Retryable("sign redirect", err)
	}
	rd := legacy.RedirectDetail{
		DID:         their.DID,
		VerKey:      their.VerKey,
		TheirDID:    me.DID,
		TheirVerKey: me.VerKey,
		Signature:   utils.EncodeB64(sig),
	}
	msg := legacy.NewRedirect(c.Inv.Legacy, rd)
	msg.Thread.SenderOrder = c.Order
	try.To(c.Send(ctx, msg))

	c.Order++
	c.Redirection = &rd
	return c.moveTo(to, msg.Type)
}

func redirectData(did, verKey string) []byte {
	return []byte(did + verKey)
}

func (c *Connection) onRequest(ctx context.Context, m *trans.Message) error {
	if c.Inv == nil || (m.PThreadID != "" && m.PThreadID != c.Inv.ID()) {
		return nil
	}
	to, ok := next(c.Variant, c.Role, c.State, evRequest)
	if !ok {
		c.unexpected(m)
		return nil
	}
	var req didexchange.Request
	if !c.decode(ctx, m, &req) {
		return nil
	}
	conn := req.Connection
	theirKey, err := ssi.RecipientVerKey(conn.VerKey())
	if err != nil {
		glog.Warningln("connection request without keys", m.UID, err)
		c.Consume(ctx, m)
		return nil
	}
	thid := m.ThreadID
	if err := c.claimThread(thid); err != nil {
		if errors.Is(err, prot.ErrThreadOwned) {
			glog.Warningln("request of a thread we have already:", thid)
			return nil
		}
		return prot.Retryable("claim thread", err)
	}

	res := didexchange.NewResponse(decorator.Reply(req.Thread, conn.DID, c.Order), c.ourConnection())
	if res.Thread.ID == "" {
		res.Thread.ID = thid
	}
	if err := didexchange.Sign(ctx, res, c.Agent().Wallet, c.PW.Me.VerKey); err != nil {
		c.unclaimThread(thid)
		return prot.Retryable("sign response", err)
	}
	if err := c.Agent().Send(ctx, c.PW.Me.VerKey, theirKey, res); err != nil {
		c.unclaimThread(thid)
		return err
	}

	c.Thread = thid
	c.Order++
	c.PW.Their = ssi.Identity{DID: conn.DID, VerKey: theirKey}
	c.PW.TheirLabel = req.Label
	c.PW.TheirEndpoint = conn.Endpoint()
	c.PW.TheirRoutingKeys = conn.RoutingKeys()
	return c.commit(ctx, to, m)
}

func (c *Connection) onResponse(ctx context.Context, m *trans.Message) error {
	if m.ThreadID != c.Thread {
		return nil
	}
	to, ok := next(c.Variant, c.Role, c.State, evResponse)
	if !ok {
		c.unexpected(m)
		return nil
	}
	var res didexchange.Response
	if !c.decode(ctx, m, &res) {
		return nil
	}
	err := didexchange.Verify(ctx, &res, c.Agent().Wallet, c.InvitationKey)
	if errors.Is(err, didexchange.ErrSignature) {
		return c.reject(ctx, m, common.CodeResponseNotAccepted, "connection signature not valid")
	} else if err != nil {
		return prot.Retryable("verify response", err)
	}
	conn := res.Connection
	theirKey, err := ssi.RecipientVerKey(conn.VerKey())
	if err != nil {
		return c.reject(ctx, m, common.CodeResponseNotAccepted, "connection without keys")
	}

	ack := common.NewAck("", decorator.Reply(res.Thread, conn.DID, c.Order))
	if err := c.Agent().Send(ctx, c.PW.Me.VerKey, theirKey, ack); err != nil {
		return err
	}
	c.Order++
	c.PW.Their = ssi.Identity{DID: conn.DID, VerKey: theirKey}
	c.PW.TheirEndpoint = conn.Endpoint()
	c.PW.TheirRoutingKeys = conn.RoutingKeys()
	return c.commit(ctx, to, m)
}

// reject tells the inviter that we don't accept its message and gives up
// the connection.
func (c *Connection) reject(ctx context.Context, m *trans.Message, code, explain string) error {
	pr := common.NewProblemReport(code, explain, decorator.Reply(&decorator.Thread{ID: c.Thread}, "", c.Order))
	if err := c.Agent().Send(ctx, c.PW.Me.VerKey, c.InvitationKey, pr); err != nil {
		return err
	}
	glog.Warningf("%s: rejected %s: %s", c.Agent().Label, m.Type, explain)
	c.Order++
	prev := c.Problem
	c.Problem = pr
	to, _ := next(c.Variant, c.Role, c.State, evProblem)
	if err := c.commit(ctx, to, m); err != nil {
		c.Problem = prev
		return err
	}
	return nil
}

func (c *Connection) onAck(ctx context.Context, m *trans.Message) error {
	if m.ThreadID != c.Thread || c.Thread == "" {
		return nil
	}
	if c.State == prot.StateAccepted {
		c.Consume(ctx, m)
		return nil
	}
	to, ok := next(c.Variant, c.Role, c.State, evAck)
	if !ok {
		c.unexpected(m)
		return nil
	}
	return c.commit(ctx, to, m)
}

func (c *Connection) onAnswer(ctx context.Context, m *trans.Message) error {
	if m.ThreadID != c.Thread || c.Thread == "" {
		return nil
	}
	to, ok := next(c.Variant, c.Role, c.State, evAnswer)
	if !ok {
		c.unexpected(m)
		return nil
	}
	var ans legacy.Answer
	if !c.decode(ctx, m, &ans) {
		return nil
	}
	their := ssi.Identity{DID: ans.SenderDetail.DID, VerKey: ans.SenderDetail.VerKey}
	ack := common.NewAck(pltype.LegacyConnectionAck, decorator.Reply(ans.Thread, their.DID, c.Order))
	if err := c.Agent().Send(ctx, c.PW.Me.VerKey, their.VerKey, ack); err != nil {
		return err
	}
	c.Order++
	c.PW.Their = their
	c.PW.TheirLabel = ans.SenderDetail.Name
	c.PW.TheirEndpoint = ans.SenderAgencyDetail.Endpoint
	return c.commit(ctx, to, m)
}

func (c *Connection) onRedirect(ctx context.Context, m *trans.Message) error {
	if m.ThreadID != c.Thread || c.Thread == "" {
		return nil
	}
	to, ok := next(c.Variant, c.Role, c.State, evRedirect)
	if !ok || c.Role != prot.RoleInviter {
		c.unexpected(m)
		return nil
	}
	var r legacy.Redirect
	if !c.decode(ctx, m, &r) {
		return nil
	}
	rd := r.RedirectDetail
	sig, err := utils.DecodeB64(rd.Signature)
	if err != nil {
		glog.Warningln("redirect signature:", err)
		c.Consume(ctx, m)
		return nil
	}
	valid, err := c.Agent().Wallet.Verify(ctx, rd.TheirVerKey, redirectData(rd.TheirDID, rd.TheirVerKey), sig)
	if err != nil || !valid {
		glog.Warningln("redirect not signed by its sender:", rd.TheirDID, err)
		c.Consume(ctx, m)
		return nil
	}
	c.Redirection = &rd
	return c.commit(ctx, to, m)
}

func (c *Connection) onProblem(ctx context.Context, m *trans.Message) error {
	ours := c.Thread != "" && m.ThreadID == c.Thread
	if !ours && c.Inv != nil && m.PThreadID != "" {
		ours = m.PThreadID == c.Inv.ID()
	}
	if !ours {
		return nil
	}
	to, ok := next(c.Variant, c.Role, c.State, evProblem)
	if !ok {
		c.unexpected(m)
		return nil
	}
	var pr common.ProblemReport
	if !c.decode(ctx, m, &pr) {
		return nil
	}
	glog.V(1).Infof("%s: connection %s got %s", c.Agent().Label, c.ID, pr.Error())
	prev := c.Problem
	c.Problem = &pr
	if err := c.commit(ctx, to, m); err != nil {
		c.Problem = prev
		return err
	}
	return nil
}

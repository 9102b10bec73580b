// Package connection is the connection state machine. The inviter creates a
// connection and gives its invitation to the invitee out of band, the invitee
// creates its connection from the invitation. Both the Aries connection
// protocol and the legacy pairwise protocol are run, the variant is selected
// when the connection is created.
//
// An out-of-band invitation without handshake protocols gives a one-shot
// channel which is usable at once, the inviter learns the other end's key
// from the first message it receives.
package connection

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/prot"
	"github.com/findy-network/findy-exchange/agent/ssi"
	"github.com/findy-network/findy-exchange/std/basicmessage"
	"github.com/findy-network/findy-exchange/std/common"
	"github.com/findy-network/findy-exchange/std/didexchange"
	"github.com/findy-network/findy-exchange/std/didexchange/invitation"
	"github.com/findy-network/findy-exchange/std/discovery"
	"github.com/findy-network/findy-exchange/std/inviteaction"
	"github.com/findy-network/findy-exchange/std/legacy"
	"github.com/findy-network/findy-exchange/std/outofband"
	"github.com/findy-network/findy-exchange/std/questionanswer"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Protocol is the protocol family name of the connection records.
const Protocol = pltype.AriesProtocolConnection

// Connection is the connection record. It's serialized as is, the snapshot
// has everything needed to continue polling after a restart.
type Connection struct {
	prot.Record

	SourceID string         `json:"source_id"`
	State    prot.StateCode `json:"state"`

	Inv *invitation.Invitation `json:"invitation,omitempty"`
	// InvitationKey is where the invitee sends its request.
	InvitationKey string `json:"invitation_key,omitempty"`
	OneShot       bool   `json:"one_shot,omitempty"`

	Redirection *legacy.RedirectDetail `json:"redirect,omitempty"`

	Questions []*questionanswer.Question   `json:"questions,omitempty"`
	Answers   []*questionanswer.Answer     `json:"answers,omitempty"`
	Disclosed []discovery.ProtocolDescr    `json:"disclosed,omitempty"`
	Messages  []*basicmessage.Basicmessage `json:"messages,omitempty"`
	Invites   []*inviteaction.Invite       `json:"invites,omitempty"`
}

var (
	_ prot.Updater = (*Connection)(nil)
	_ prot.Channel = (*Connection)(nil)
)

func newConnection(ctx context.Context, a *prot.Agent, sourceID string, r prot.Role, v prot.Variant) (c *Connection, err error) {
	defer err2.Handle(&err)

	c = &Connection{
		Record:   prot.NewRecord(a, Protocol, r, v),
		SourceID: sourceID,
	}
	me, err := a.Wallet.CreateLocalIdentity(ctx)
	if err != nil {
		return nil, prot.Retryable("create identity", err)
	}
	c.PW.Me = me
	return c, nil
}

// Create creates the inviter's connection.
func Create(ctx context.Context, a *prot.Agent, sourceID string, v prot.Variant) (c *Connection, err error) {
	defer err2.Handle(&err, "create connection %s", sourceID)

	c = try.To1(newConnection(ctx, a, sourceID, prot.RoleInviter, v))
	try.To(c.transit(evCreate, ""))
	return c, nil
}

// CreateOutOfBand creates the inviter's out-of-band connection. The
// attachment is optional. Without handshake the connection is a one-shot
// channel which is accepted on Connect.
func CreateOutOfBand(
	ctx context.Context,
	a *prot.Agent,
	sourceID, goal string,
	handshake bool,
	attachment interface{},
) (c *Connection, err error) {
	defer err2.Handle(&err, "create out-of-band connection %s", sourceID)

	c = try.To1(newConnection(ctx, a, sourceID, prot.RoleInviter, prot.Aries))
	didKey := try.To1(ssi.DIDKey(c.PW.Me.VerKey))
	service := didexchange.Service{
		ID:              "#inline",
		Type:            didexchange.ServiceTypeDIDCom,
		RecipientKeys:   []string{didKey},
		ServiceEndpoint: a.Endpoint,
	}
	oob := outofband.New(a.Label, goal, handshake, service, attachment)
	if err := oob.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", prot.ErrMalformed, err)
	}
	c.Inv = &invitation.Invitation{OutOfBand: oob}
	c.OneShot = !handshake
	if c.OneShot {
		c.Thread = oob.ID
		try.To(c.claimThread(c.Thread))
	}
	try.To(c.transit(evCreate, ""))
	return c, nil
}

// CreateFromInvitation creates the invitee's connection. The variant follows
// the invitation.
func CreateFromInvitation(
	ctx context.Context,
	a *prot.Agent,
	sourceID string,
	inv *invitation.Invitation,
) (c *Connection, err error) {
	defer err2.Handle(&err, "create connection %s from invitation", sourceID)

	if err := inv.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", prot.ErrMalformed, err)
	}
	v := prot.Aries
	if inv.Kind() == invitation.KindLegacy {
		v = prot.Legacy
	}
	c = try.To1(newConnection(ctx, a, sourceID, prot.RoleInvitee, v))
	c.Inv = inv
	c.PW.TheirLabel = inv.Label()

	e := evCreateFromInvitation
	switch inv.Kind() {
	case invitation.KindLegacy:
		sender := inv.Legacy.SenderDetail
		c.PW.Their = ssi.Identity{DID: sender.DID, VerKey: sender.VerKey}
		c.PW.TheirEndpoint = inv.Legacy.SenderAgencyDetail.Endpoint
		c.Thread = inv.ID()
		try.To(c.claimThread(c.Thread))

	case invitation.KindAries:
		if len(inv.Aries.RecipientKeys) == 0 {
			return nil, fmt.Errorf("%w: public DID invitations are not supported", prot.ErrMalformed)
		}
		c.InvitationKey = try.To1(recipientKey(inv.Aries.RecipientKeys[0]))
		c.PW.TheirEndpoint = inv.Aries.ServiceEndpoint
		c.PW.TheirRoutingKeys = inv.Aries.RoutingKeys

	case invitation.KindOutOfBand:
		service := inv.OutOfBand.Services[0]
		if len(service.RecipientKeys) == 0 {
			return nil, fmt.Errorf("%w: service without recipient keys", prot.ErrMalformed)
		}
		key := try.To1(recipientKey(service.RecipientKeys[0]))
		c.PW.TheirEndpoint = service.ServiceEndpoint
		c.PW.TheirRoutingKeys = service.RoutingKeys
		if inv.OutOfBand.Handshake() {
			c.InvitationKey = key
			break
		}
		c.OneShot = true
		c.PW.Their = ssi.Identity{VerKey: key}
		c.Thread = inv.ID()
		try.To(c.claimThread(c.Thread))
		e = evCreateOneShot
	}
	try.To(c.transit(e, ""))
	return c, nil
}

func recipientKey(key string) (string, error) {
	verKey, err := ssi.RecipientVerKey(key)
	if err != nil {
		return "", fmt.Errorf("%w: recipient key: %v", prot.ErrMalformed, err)
	}
	return verKey, nil
}

// Deserialize restores the connection from its snapshot and binds it to the
// agent.
func Deserialize(a *prot.Agent, data []byte) (c *Connection, err error) {
	c = new(Connection)
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("%w: connection snapshot: %v", prot.ErrMalformed, err)
	}
	if err := c.Bind(a); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads the persisted connection of the agent.
func Load(a *prot.Agent, id string) (c *Connection, err error) {
	defer err2.Handle(&err, "load connection %s", id)

	p := try.To1(a.LoadPSM(id))
	return Deserialize(a, p.Data)
}

// Serialize returns the snapshot of the connection.
func (c *Connection) Serialize() ([]byte, error) {
	if err := c.Check(); err != nil {
		return nil, err
	}
	return dto.ToJSONBytes(c), nil
}

func (c *Connection) StateCode() prot.StateCode {
	return c.State
}

// Terminal tells if polling the connection can stop. A connection in None
// has been rejected or deleted.
func (c *Connection) Terminal() bool {
	switch c.State {
	case prot.StateAccepted, prot.StateRedirected, prot.StateNone:
		return true
	}
	return false
}

// InvitationPayload returns the JSON of the invitation of the connection, nil
// if there is none yet.
func (c *Connection) InvitationPayload() []byte {
	if c.Inv == nil {
		return nil
	}
	return c.Inv.Payload()
}

// Attachment returns the embedded protocol message of the out-of-band
// invitation.
func (c *Connection) Attachment() ([]byte, error) {
	if c.Inv == nil || c.Inv.OutOfBand == nil {
		return nil, fmt.Errorf("%w: no out-of-band invitation", prot.ErrPrecondition)
	}
	return c.Inv.OutOfBand.Attachment()
}

// RedirectDetails returns the pairwise the connection was redirected to.
func (c *Connection) RedirectDetails() (*legacy.RedirectDetail, error) {
	if c.State != prot.StateRedirected || c.Redirection == nil {
		return nil, prot.Precondition("redirect details", c.State)
	}
	return c.Redirection, nil
}

// Delete tells the other end that the connection is gone and removes the
// record. Telling is best effort.
func (c *Connection) Delete(ctx context.Context) (err error) {
	defer err2.Handle(&err, "delete connection %s", c.ID)

	unlock := try.To1(c.Lock())
	defer unlock()

	if c.State != prot.StateNone && c.PW.Complete() {
		pr := common.NewProblemReport(common.CodeConnectionDeleted, "connection deleted", c.ThreadDecorator())
		if err := c.Send(ctx, pr); err != nil {
			glog.Warningln("cannot tell the deletion:", err)
		}
	}
	c.State, _ = next(c.Variant, c.Role, c.State, evDelete)
	return c.Remove()
}

func (c *Connection) transit(e event, msgType string) error {
	to, ok := next(c.Variant, c.Role, c.State, e)
	if !ok {
		return prot.Precondition(e.String(), c.State)
	}
	return c.moveTo(to, msgType)
}

// moveTo persists the connection in the new state. A connection which is
// back in None gives up its thread. The memory copy stays as it was if the
// save fails.
func (c *Connection) moveTo(to prot.StateCode, msgType string) error {
	rollback := c.Savepoint()
	from := c.State
	c.State = to
	if to == prot.StateNone {
		c.ReleaseThread()
	}
	if err := c.save(msgType); err != nil {
		c.State = from
		rollback()
		return err
	}
	return nil
}

func (c *Connection) save(msgType string) error {
	err := c.Save(c.State, stateName(c.Variant, c.Role, c.State), c.Terminal(), msgType, c)
	if err != nil {
		return prot.Retryable("save", err)
	}
	return nil
}

func (c *Connection) claimThread(thid string) error {
	return c.Agent().Store.ClaimThread(thid, c.Key())
}

// unclaimThread frees the thread claimed for a message we couldn't send.
func (c *Connection) unclaimThread(thid string) {
	if err := c.Agent().Store.ReleaseThread(thid, c.Key()); err != nil {
		glog.Warningln("release thread:", err)
	}
}

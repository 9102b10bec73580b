package prot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-exchange/agent/psm"
	"github.com/findy-network/findy-exchange/agent/ssi"
	"github.com/findy-network/findy-exchange/agent/trans"
	"github.com/findy-network/findy-exchange/agent/vc"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Agent is the environment of the state machines: the collaborators they
// call and the store where their records live. The collaborators are shared
// by all the records of the agent and they must be safe for concurrent use.
type Agent struct {
	// ID is the owner of the records in the Store.
	ID       string
	Label    string
	Endpoint string

	Transport trans.Transport
	Wallet    ssi.Wallet
	Store     *psm.Store
	Ledger    vc.Ledger
	Creds     vc.Capability

	// Notifier is optional.
	Notifier *Notifier
}

// Send delivers the protocol message from our verkey to theirs.
func (a *Agent) Send(ctx context.Context, from, to string, msg interface{}) error {
	payload := dto.ToJSONBytes(msg)
	m, err := trans.NewMessage("", to, from, payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := a.Transport.Send(ctx, to, m); err != nil {
		return fmt.Errorf("%w: send %s: %v", ErrTransport, m.Type, err)
	}
	glog.V(3).Infof("%s: sent %s (%s)", a.Label, m.Type, m.ThreadID)
	return nil
}

// Download returns the not yet consumed messages of our verkey's mailbox in
// the order they arrived.
func (a *Agent) Download(ctx context.Context, owner string) ([]trans.Message, error) {
	msgs, err := a.Transport.Download(ctx, trans.Filter{
		Status: trans.StatusReceived,
		Owners: []string{owner},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: download: %v", ErrTransport, err)
	}
	return msgs, nil
}

// Consume marks the messages consumed. The failure isn't returned: the
// record has already moved on and it skips the message it has seen when
// it's downloaded again.
func (a *Agent) Consume(ctx context.Context, owner string, uids ...string) {
	if len(uids) == 0 {
		return
	}
	if err := a.Transport.MarkConsumed(ctx, owner, uids); err != nil {
		glog.Warningln("cannot mark messages consumed:", err)
	}
}

// LoadPSM returns the persisted record of the ID.
func (a *Agent) LoadPSM(id string) (*psm.PSM, error) {
	return a.Store.GetPSM(psm.StateKey{DID: a.ID, Nonce: id})
}

func (a *Agent) save(r *Record, st psm.State, snapshot interface{}) (err error) {
	defer err2.Handle(&err, "save record %s", r.ID)

	key := r.Key()
	p, err := a.Store.GetPSM(key)
	if errors.Is(err, psm.ErrNotFound) {
		p = &psm.PSM{
			Key:      key,
			Protocol: r.Protocol,
			Role:     r.Role.String(),
		}
	} else {
		try.To(err)
	}
	p.ThreadID = r.Thread
	p.ThreadReleased = r.ThreadReleased
	p.Data = dto.ToJSONBytes(snapshot)
	st.Timestamp = time.Now().UnixNano()
	added := p.AddState(st)
	try.To(a.Store.AddPSM(p))

	if added {
		transitions.WithLabelValues(r.Protocol, StateCode(st.Code).String()).Inc()
		glog.V(1).Infof("%s: %s %s -> %s", a.Label, r.Protocol, r.ID, st.Name)
		a.Notifier.notify(Notification{
			AgentID:   a.ID,
			RecordID:  r.ID,
			Protocol:  r.Protocol,
			ThreadID:  r.Thread,
			Role:      r.Role,
			State:     StateCode(st.Code),
			Name:      st.Name,
			Timestamp: st.Timestamp,
		})
	}
	return nil
}

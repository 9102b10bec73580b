package prot

import (
	"context"
	"fmt"

	"github.com/findy-network/findy-exchange/agent/psm"
	"github.com/findy-network/findy-exchange/agent/ssi"
	"github.com/findy-network/findy-exchange/agent/trans"
	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/findy-network/findy-exchange/std/common"
	"github.com/findy-network/findy-exchange/std/decorator"
)

// Pairwise is our identity and the other end's identity of a connection.
// Their side is empty until the keys are exchanged.
type Pairwise struct {
	Me               ssi.Identity `json:"me"`
	Their            ssi.Identity `json:"their"`
	TheirLabel       string       `json:"their_label,omitempty"`
	TheirEndpoint    string       `json:"their_endpoint,omitempty"`
	TheirRoutingKeys []string     `json:"their_routing_keys,omitempty"`
}

// Complete tells if both ends are known.
func (p Pairwise) Complete() bool {
	return p.Me.VerKey != "" && p.Their.VerKey != ""
}

// Channel is the connection the credential and proof exchanges run over.
type Channel interface {
	Pairwise() Pairwise
	StateCode() StateCode
}

// Record is the part every exchange record shares. It's embedded in the
// records and serialized with them.
type Record struct {
	ID       string                `json:"id"`
	AgentID  string                `json:"agent"`
	Protocol string                `json:"protocol"`
	Role     Role                  `json:"role"`
	Variant  Variant               `json:"variant"`
	Thread   string                `json:"thid,omitempty"`
	PW       Pairwise              `json:"pairwise"`
	Order    int                   `json:"sender_order"`
	Seen     []string              `json:"seen,omitempty"`
	Problem  *common.ProblemReport `json:"problem_report,omitempty"`

	// ThreadReleased is set when the ended record has given up its thread.
	ThreadReleased bool `json:"thread_released,omitempty"`

	agent    *Agent
	released bool
}

func NewRecord(a *Agent, protocol string, role Role, v Variant) Record {
	return Record{
		ID:       utils.UUID(),
		AgentID:  a.ID,
		Protocol: protocol,
		Role:     role,
		Variant:  v,
		agent:    a,
	}
}

// Bind attaches a deserialized record to the agent.
func (r *Record) Bind(a *Agent) error {
	if r.AgentID != a.ID {
		return fmt.Errorf("%w: record of agent %s", ErrMalformed, r.AgentID)
	}
	r.agent = a
	r.released = false
	return nil
}

func (r *Record) Agent() *Agent {
	return r.agent
}

func (r *Record) Key() psm.StateKey {
	return psm.StateKey{DID: r.AgentID, Nonce: r.ID}
}

func (r *Record) ThreadID() string {
	return r.Thread
}

func (r *Record) Owner() string {
	return r.AgentID
}

// Family returns the protocol family name of the record.
func (r *Record) Family() string {
	return r.Protocol
}

func (r *Record) Pairwise() Pairwise {
	return r.PW
}

// ProblemReport returns the report which ended the exchange or nil.
func (r *Record) ProblemReport() *common.ProblemReport {
	return r.Problem
}

// Check returns ErrDeleted if the record cannot be used anymore.
func (r *Record) Check() error {
	if r.released || r.agent == nil {
		return fmt.Errorf("%w: %s", ErrDeleted, r.ID)
	}
	return nil
}

// Lock checks the record and gives the caller exclusive access to it.
func (r *Record) Lock() (unlock func(), err error) {
	if err := r.Check(); err != nil {
		return nil, err
	}
	return r.agent.Store.Lock(r.Key())
}

// Release drops the record from the memory. The persisted copy stays.
func (r *Record) Release() {
	r.released = true
}

// Remove deletes the persisted record and releases it.
func (r *Record) Remove() error {
	if err := r.agent.Store.RmPSM(r.Key()); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	r.released = true
	return nil
}

// Save persists the snapshot of the record as its new state.
func (r *Record) Save(code StateCode, name string, final bool, msgType string, snapshot interface{}) error {
	return r.agent.save(r, psm.State{
		Code:  int(code),
		Name:  name,
		Type:  msgType,
		Final: final,
	}, snapshot)
}

// ReleaseThread gives up the thread on the next save. The thread can then
// be claimed by a new record.
func (r *Record) ReleaseThread() {
	r.ThreadReleased = true
}

// Savepoint returns a function which restores what a failed save would
// leave behind in the memory copy of the record.
func (r *Record) Savepoint() (rollback func()) {
	seen := len(r.Seen)
	released := r.ThreadReleased
	pw := r.PW
	return func() {
		r.Seen = r.Seen[:seen]
		r.ThreadReleased = released
		r.PW = pw
	}
}

func seenKey(m *trans.Message) string {
	if m.ID != "" {
		return m.Type + "|" + m.ID
	}
	return m.UID
}

// IsSeen tells if the message was already applied to the record.
func (r *Record) IsSeen(m *trans.Message) bool {
	key := seenKey(m)
	for _, s := range r.Seen {
		if s == key {
			return true
		}
	}
	return false
}

func (r *Record) See(m *trans.Message) {
	if !r.IsSeen(m) {
		r.Seen = append(r.Seen, seenKey(m))
	}
}

// Consume marks the message seen and consumed at the relay.
func (r *Record) Consume(ctx context.Context, m *trans.Message) {
	r.See(m)
	r.agent.Consume(ctx, m.Owner, m.UID)
}

// Download returns the messages of our mailbox.
func (r *Record) Download(ctx context.Context) ([]trans.Message, error) {
	if r.PW.Me.VerKey == "" {
		return nil, nil
	}
	return r.agent.Download(ctx, r.PW.Me.VerKey)
}

// Send sends the message to the other end of the pairwise.
func (r *Record) Send(ctx context.Context, msg interface{}) error {
	if !r.PW.Complete() {
		return fmt.Errorf("%w: other end unknown", ErrPrecondition)
	}
	return r.agent.Send(ctx, r.PW.Me.VerKey, r.PW.Their.VerKey, msg)
}

// NextOrder returns the sender_order of our next message in the thread.
func (r *Record) NextOrder() int {
	o := r.Order
	r.Order++
	return o
}

// Reply builds the thread of our message answering the received thread.
func (r *Record) Reply(received *decorator.Thread) *decorator.Thread {
	t := decorator.Reply(received, r.PW.Their.DID, r.NextOrder())
	if t.ID == "" {
		t.ID = r.Thread
	}
	return t
}

// ThreadDecorator builds the thread of our next message in the record thread.
func (r *Record) ThreadDecorator() *decorator.Thread {
	return &decorator.Thread{ID: r.Thread, SenderOrder: r.NextOrder()}
}

// FromPeer tells if the message belongs to the record's thread and comes
// from the other end. Any sender is accepted while the other end is unknown.
func (r *Record) FromPeer(m *trans.Message) bool {
	if m.ThreadID != r.Thread {
		return false
	}
	return r.PW.Their.VerKey == "" || m.Sender == "" || m.Sender == r.PW.Their.VerKey
}

// Learn takes the sender of the message as the other end if it's unknown.
func (r *Record) Learn(m *trans.Message) {
	if r.PW.Their.VerKey == "" && m.Sender != "" {
		r.PW.Their.VerKey = m.Sender
	}
}

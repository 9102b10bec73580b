package prot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/trans"
	"github.com/findy-network/findy-exchange/std/common"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// ExchangeState is the detailed state of the credential and proof exchanges.
type ExchangeState interface {
	fmt.Stringer
	Code(r Role) StateCode
	Terminal() bool
	// Abandoned tells if the exchange ended with a rejection or a failure.
	Abandoned() bool
}

// Rules is the state machine of an exchange protocol.
type Rules[S ExchangeState, E fmt.Stringer] struct {
	Protocol string
	// Name is used in the logs and the errors.
	Name string
	Next func(r Role, from S, e E) (S, bool)

	// Problem is the event of a received problem report and Fail the event
	// of a message we cannot process.
	Problem E
	Fail    E

	// Deleted is the problem code told when a running exchange is deleted.
	Deleted string
}

// Handler applies a received message to the exchange.
type Handler func(ctx context.Context, m *trans.Message) error

// Exchange is the part the credential and proof exchange records share.
// The records embed it and the snapshot of the outer record is persisted.
type Exchange[S ExchangeState, E fmt.Stringer] struct {
	Record

	SourceID string `json:"source_id"`
	State    S      `json:"state"`

	rules *Rules[S, E]
	self  interface{}
}

func NewExchange[S ExchangeState, E fmt.Stringer](a *Agent, rules *Rules[S, E], sourceID string, r Role) Exchange[S, E] {
	return Exchange[S, E]{
		Record:   NewRecord(a, rules.Protocol, r, Aries),
		SourceID: sourceID,
		rules:    rules,
	}
}

// Init sets the outer record and the rules of a new or deserialized
// exchange.
func (x *Exchange[S, E]) Init(self interface{}, rules *Rules[S, E]) {
	x.self = self
	x.rules = rules
}

func (x *Exchange[S, E]) StateCode() StateCode {
	return x.State.Code(x.Role)
}

func (x *Exchange[S, E]) Terminal() bool {
	return x.State.Terminal()
}

// Serialize returns the snapshot of the exchange.
func (x *Exchange[S, E]) Serialize() ([]byte, error) {
	if err := x.Check(); err != nil {
		return nil, err
	}
	return dto.ToJSONBytes(x.self), nil
}

// BindChannel takes the pairwise of the connection the exchange runs over.
func (x *Exchange[S, E]) BindChannel(ch Channel) error {
	if ch == nil || ch.StateCode() != StateAccepted {
		return Precondition("bind connection", x.State)
	}
	x.PW = ch.Pairwise()
	return nil
}

func (x *Exchange[S, E]) Transit(e E, msgType string) error {
	to, ok := x.rules.Next(x.Role, x.State, e)
	if !ok {
		return Precondition(e.String(), x.State)
	}
	return x.moveTo(to, msgType)
}

// moveTo persists the exchange in the new state. An abandoned exchange
// gives up its thread. The memory copy stays as it was if the save fails.
func (x *Exchange[S, E]) moveTo(to S, msgType string) error {
	rollback := x.Savepoint()
	from := x.State
	x.State = to
	if to.Abandoned() {
		x.ReleaseThread()
	}
	if err := x.Persist(msgType); err != nil {
		x.State = from
		rollback()
		return err
	}
	return nil
}

// Persist saves the current state of the exchange.
func (x *Exchange[S, E]) Persist(msgType string) error {
	err := x.Save(x.StateCode(), x.State.String(), x.Terminal(), msgType, x.self)
	if err != nil {
		return Retryable("save", err)
	}
	return nil
}

func (x *Exchange[S, E]) ClaimThread(thid string) error {
	if err := x.Agent().Store.ClaimThread(thid, x.Key()); err != nil {
		return err
	}
	x.Thread = thid
	return nil
}

// Update downloads our mailbox and applies the messages of the exchange in
// the order they arrived.
func (x *Exchange[S, E]) Update(ctx context.Context, handlers map[string]Handler) (s StateCode, err error) {
	defer err2.Handle(&err, "update %s %s", x.rules.Name, x.ID)

	unlock := try.To1(x.Lock())
	defer unlock()

	msgs := try.To1(x.Download(ctx))
	for i := range msgs {
		try.To(x.apply(ctx, &msgs[i], handlers))
	}
	return x.StateCode(), nil
}

func (x *Exchange[S, E]) UpdateWith(ctx context.Context, m trans.Message, handlers map[string]Handler) (s StateCode, err error) {
	defer err2.Handle(&err, "update %s %s", x.rules.Name, x.ID)

	unlock := try.To1(x.Lock())
	defer unlock()

	try.To(x.apply(ctx, &m, handlers))
	return x.StateCode(), nil
}

// apply hands our thread's message to its handler. Messages of the other
// protocols stay in the mailbox for their own records.
func (x *Exchange[S, E]) apply(ctx context.Context, m *trans.Message, handlers map[string]Handler) error {
	h, ok := handlers[pltype.Normalize(m.Type)]
	if !ok || !x.FromPeer(m) {
		return nil
	}
	if x.IsSeen(m) || x.Terminal() {
		glog.V(3).Infof("%s %s (%s) drops %s %s", x.rules.Name, x.ID, x.State, m.Type, m.ID)
		x.Consume(ctx, m)
		return nil
	}
	return h(ctx, m)
}

// Commit moves the exchange with the event of the received message,
// persists it and consumes the message.
func (x *Exchange[S, E]) Commit(ctx context.Context, e E, m *trans.Message) error {
	to, ok := x.rules.Next(x.Role, x.State, e)
	if !ok {
		x.Unexpected(m)
		return nil
	}
	rollback := x.Savepoint()
	x.Learn(m)
	x.See(m)
	if err := x.moveTo(to, m.Type); err != nil {
		rollback()
		return err
	}
	x.Agent().Consume(ctx, m.Owner, m.UID)
	return nil
}

// Abandon ends the exchange with a problem report. The report is sent when
// the other end is known. A failed send leaves the exchange as it was.
func (x *Exchange[S, E]) Abandon(ctx context.Context, e E, code, explain string) error {
	if _, ok := x.rules.Next(x.Role, x.State, e); !ok {
		return Precondition(e.String(), x.State)
	}
	pr := common.NewProblemReport(code, explain, x.ThreadDecorator())
	if x.PW.Complete() {
		if err := x.Send(ctx, pr); err != nil {
			return err
		}
	}
	prev := x.Problem
	x.Problem = pr
	if err := x.Transit(e, pr.Type); err != nil {
		x.Problem = prev
		return err
	}
	return nil
}

// FailWith abandons the exchange because of the received message and
// consumes it.
func (x *Exchange[S, E]) FailWith(ctx context.Context, m *trans.Message, code string, cause error) error {
	glog.Warningf("%s: %s %s fails on %s: %v", x.Agent().Label, x.rules.Name, x.ID, m.Type, cause)
	x.Learn(m)
	if err := x.Abandon(ctx, x.rules.Fail, code, cause.Error()); err != nil {
		return err
	}
	x.Consume(ctx, m)
	return nil
}

func (x *Exchange[S, E]) OnProblem(ctx context.Context, m *trans.Message) error {
	pr := new(common.ProblemReport)
	if !x.Decode(ctx, m, pr) {
		return nil
	}
	prev := x.Problem
	x.Problem = pr
	if err := x.Commit(ctx, x.rules.Problem, m); err != nil {
		x.Problem = prev
		return err
	}
	return nil
}

// Discard tells the other end that the exchange is abandoned when it's
// still running, and removes the record with its thread.
func (x *Exchange[S, E]) Discard(ctx context.Context) (err error) {
	defer err2.Handle(&err, "delete %s %s", x.rules.Name, x.ID)

	unlock := try.To1(x.Lock())
	defer unlock()

	if !x.Terminal() && x.PW.Complete() {
		pr := common.NewProblemReport(x.rules.Deleted, "exchange deleted", x.ThreadDecorator())
		if err := x.Send(ctx, pr); err != nil {
			glog.Warningln("cannot tell the deletion:", err)
		}
	}
	return x.Remove()
}

// Decode parses the payload. A malformed message is consumed.
func (x *Exchange[S, E]) Decode(ctx context.Context, m *trans.Message, v interface{}) bool {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		x.Malformed(ctx, m, err)
		return false
	}
	return true
}

// Malformed consumes the message, nobody can ever apply it.
func (x *Exchange[S, E]) Malformed(ctx context.Context, m *trans.Message, err error) {
	glog.Warningln("malformed message", m.Type, m.UID, err)
	x.Consume(ctx, m)
}

func (x *Exchange[S, E]) Unexpected(m *trans.Message) {
	glog.Warningf("%s: %s %s in %s ignores %s",
		x.Agent().Label, x.rules.Name, x.ID, x.State, m.Type)
}

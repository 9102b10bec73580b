package prot

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-exchange/agent/psm"
	"github.com/findy-network/findy-exchange/agent/trans"
	"github.com/findy-network/findy-exchange/std/common"
	"github.com/findy-network/findy-exchange/std/decorator"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

type testState int

const (
	tsInitial testState = iota
	tsSent
	tsDone
	tsRejected
)

func (s testState) String() string {
	return fmt.Sprintf("test-%d", int(s))
}

func (s testState) Code(Role) StateCode {
	switch s {
	case tsInitial:
		return StateInitialized
	case tsSent:
		return StateOfferSent
	case tsDone:
		return StateAccepted
	}
	return StateRejected
}

func (s testState) Terminal() bool  { return s >= tsDone }
func (s testState) Abandoned() bool { return s == tsRejected }

type testEvent string

func (e testEvent) String() string { return string(e) }

var testRules = &Rules[testState, testEvent]{
	Protocol: "test",
	Name:     "test exchange",
	Next: func(_ Role, from testState, e testEvent) (testState, bool) {
		switch {
		case e == "send" && from == tsInitial:
			return tsSent, true
		case e == "ack" && from == tsSent:
			return tsDone, true
		case (e == "problem" || e == "fail") && !from.Terminal():
			return tsRejected, true
		}
		return from, false
	},
	Problem: "problem",
	Fail:    "fail",
	Deleted: "abandoned",
}

type testRecord struct {
	Exchange[testState, testEvent]
}

func newTestExchange(a *Agent, thid string) *testRecord {
	r := &testRecord{Exchange: NewExchange(a, testRules, "src", RoleIssuer)}
	r.Init(r, testRules)
	try.To(r.ClaimThread(thid))
	try.To(r.Persist(""))
	return r
}

func problemMessage(thid string) *trans.Message {
	pr := common.NewProblemReport("rejected", "no", &decorator.Thread{ID: thid})
	m := try.To1(trans.NewMessage("u-1", "my-key", "their-key", dto.ToJSONBytes(pr)))
	return &m
}

func TestExchange_FailedSaveKeepsState(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ctx := context.Background()
	a := newTestAgent(t, trans.NewRelay())
	x := newTestExchange(a, "thread-x")

	// another record takes the thread and every save of x fails
	other := psm.StateKey{DID: a.ID, Nonce: "other"}
	try.To(a.Store.ReleaseThread("thread-x", x.Key()))
	try.To(a.Store.ClaimThread("thread-x", other))

	err := x.Transit("send", "")
	assert.That(errors.Is(err, ErrTransport))
	assert.Equal(x.State, tsInitial)

	m := problemMessage("thread-x")
	err = x.OnProblem(ctx, m)
	assert.That(errors.Is(err, ErrTransport))
	assert.Equal(x.State, tsInitial)
	assert.That(x.Problem == nil)
	assert.ThatNot(x.ThreadReleased)
	assert.ThatNot(x.IsSeen(m))
	assert.Equal(x.PW.Their.VerKey, "")

	p := try.To1(a.LoadPSM(x.ID))
	assert.SLen(p.States, 1)

	try.To(a.Store.ReleaseThread("thread-x", other))
	assert.NoError(x.Transit("send", ""))
	assert.Equal(x.State, tsSent)
}

func TestExchange_AbandonedReleasesThread(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ctx := context.Background()
	a := newTestAgent(t, trans.NewRelay())
	x := newTestExchange(a, "thread-y")
	try.To(x.Transit("send", ""))

	m := problemMessage("thread-y")
	assert.NoError(x.OnProblem(ctx, m))
	assert.Equal(x.State, tsRejected)
	assert.Equal(x.StateCode(), StateRejected)
	assert.That(x.Problem != nil)
	assert.That(x.IsSeen(m))
	assert.Equal(x.PW.Their.VerKey, "their-key")

	_, found := try.To2(a.Store.ThreadOwner("thread-y"))
	assert.ThatNot(found)
	p := try.To1(a.LoadPSM(x.ID))
	assert.That(p.ThreadReleased)
	assert.That(p.IsReady())

	// a new record can take the thread of the ended one
	y := newTestExchange(a, "thread-y")
	owner, found := try.To2(a.Store.ThreadOwner("thread-y"))
	assert.That(found)
	assert.Equal(owner, y.Key())

	assert.NoError(x.Discard(ctx))
	owner, _ = try.To2(a.Store.ThreadOwner("thread-y"))
	assert.Equal(owner, y.Key())
	assert.That(errors.Is(x.Check(), ErrDeleted))
}

func TestExchange_Update(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ctx := context.Background()
	a := newTestAgent(t, trans.NewRelay())
	x := newTestExchange(a, "thread-z")
	try.To(x.Transit("send", ""))

	var applied int
	handlers := map[string]Handler{
		"ack": func(ctx context.Context, m *trans.Message) error {
			applied++
			return x.Commit(ctx, "ack", m)
		},
	}
	ack := trans.Message{UID: "u-2", ID: "a-1", Type: "ack", ThreadID: "thread-z", Owner: "my-key"}
	other := trans.Message{UID: "u-3", ID: "a-2", Type: "ack", ThreadID: "another", Owner: "my-key"}

	assert.Equal(try.To1(x.UpdateWith(ctx, other, handlers)), StateOfferSent)
	assert.Equal(applied, 0)
	assert.Equal(try.To1(x.UpdateWith(ctx, ack, handlers)), StateAccepted)
	assert.Equal(applied, 1)

	// terminal records drop what still arrives
	assert.Equal(try.To1(x.UpdateWith(ctx, ack, handlers)), StateAccepted)
	assert.Equal(applied, 1)

	_, found := try.To2(a.Store.ThreadOwner("thread-z"))
	assert.That(found)

	data := try.To1(x.Serialize())
	var back testRecord
	dto.FromJSON(data, &back)
	assert.Equal(back.State, tsDone)
	assert.Equal(back.SourceID, "src")
}

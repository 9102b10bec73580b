package prot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lainio/err2/assert"
)

type fakeUpdater struct {
	l        sync.Mutex
	thid     string
	calls    int
	readyAt  int
	errs     []error
	block    chan struct{}
	terminal bool
}

func (f *fakeUpdater) UpdateState(ctx context.Context) (StateCode, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return StateNone, ctx.Err()
		}
	}
	f.l.Lock()
	defer f.l.Unlock()

	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return StateOfferSent, err
	}
	if f.calls >= f.readyAt {
		f.terminal = true
		return StateAccepted, nil
	}
	return StateOfferSent, nil
}

func (f *fakeUpdater) Terminal() bool {
	f.l.Lock()
	defer f.l.Unlock()
	return f.terminal
}

func (f *fakeUpdater) ThreadID() string { return f.thid }
func (f *fakeUpdater) Owner() string    { return "agent" }

var fastPolicy = RetryPolicy{MaxAttempts: 5, Interval: time.Millisecond, Kind: BackoffConstant}

func TestPoll(t *testing.T) {
	tests := []struct {
		name    string
		updater *fakeUpdater
		state   StateCode
		calls   int
		wantErr error
	}{
		{"ready at once", &fakeUpdater{thid: "1", readyAt: 1}, StateAccepted, 1, nil},
		{"ready on third", &fakeUpdater{thid: "2", readyAt: 3}, StateAccepted, 3, nil},
		{"transport retried", &fakeUpdater{thid: "3", readyAt: 1,
			errs: []error{ErrTransport, ErrTransport}}, StateAccepted, 3, nil},
		{"precondition stops", &fakeUpdater{thid: "4", readyAt: 10,
			errs: []error{ErrPrecondition}}, StateNone, 1, ErrPrecondition},
		{"deleted stops", &fakeUpdater{thid: "5", readyAt: 10,
			errs: []error{ErrDeleted}}, StateNone, 1, ErrDeleted},
		{"attempts run out", &fakeUpdater{thid: "6", readyAt: 10}, StateOfferSent, 5, ErrNotTerminal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.PushTester(t)
			defer assert.PopTester()

			state, err := Poll(context.Background(), tt.updater, fastPolicy)
			if tt.wantErr != nil {
				assert.That(errors.Is(err, tt.wantErr), "got", err)
			} else {
				assert.NoError(err)
			}
			assert.Equal(state, tt.state)
			assert.Equal(tt.updater.calls, tt.calls)
		})
	}
}

func TestPoll_Canceled(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	u := &fakeUpdater{thid: "cancel", readyAt: 1000}
	policy := RetryPolicy{Interval: 5 * time.Millisecond, Kind: BackoffExponential}
	_, err := Poll(ctx, u, policy)
	assert.That(errors.Is(err, context.DeadlineExceeded), "got", err)
	assert.ThatNot(u.Terminal())
}

func TestPoll_SameThread(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	block := make(chan struct{})
	first := &fakeUpdater{thid: "shared", readyAt: 1, block: block}
	second := &fakeUpdater{thid: "shared", readyAt: 1}

	done := make(chan error)
	go func() {
		_, err := Poll(context.Background(), first, fastPolicy)
		done <- err
	}()
	// wait until the first poller owns the thread
	for {
		guard.l.Lock()
		_, busy := guard.busy["agent|shared"]
		guard.l.Unlock()
		if busy {
			break
		}
		time.Sleep(time.Millisecond)
	}

	_, err := Poll(context.Background(), second, fastPolicy)
	assert.That(errors.Is(err, ErrThreadOwned))
	assert.Equal(second.calls, 0)

	close(block)
	assert.NoError(<-done)

	_, err = Poll(context.Background(), second, fastPolicy)
	assert.NoError(err)
}

func TestPollAll(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	updaters := []Updater{
		&fakeUpdater{thid: "a", readyAt: 1},
		&fakeUpdater{thid: "b", readyAt: 2},
		&fakeUpdater{thid: "c", readyAt: 10},
		&fakeUpdater{thid: "d", readyAt: 1, errs: []error{ErrMalformed}},
	}
	results := PollAll(context.Background(), updaters, fastPolicy, 2)
	assert.SLen(results, 4)

	assert.Equal(results[0].ThreadID, "a")
	assert.NoError(results[0].Err)
	assert.Equal(results[1].State, StateAccepted)
	assert.That(errors.Is(results[2].Err, ErrNotTerminal))
	assert.That(errors.Is(results[3].Err, ErrMalformed))
}

func TestRetryPolicy_BackOff(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	b := RetryPolicy{MaxAttempts: 2, Interval: time.Second}.BackOff()
	assert.Equal(b.NextBackOff(), time.Second)
	assert.Equal(b.NextBackOff(), time.Duration(-1))

	b = RetryPolicy{Interval: time.Second, Kind: BackoffExponential}.BackOff()
	assert.That(b.NextBackOff() > 0)
}

func TestScheduler(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s, err := NewScheduler(time.Hour)
	assert.NoError(err)

	ready := &fakeUpdater{thid: "s1", readyAt: 2}
	broken := &fakeUpdater{thid: "s2", readyAt: 1, errs: []error{ErrPrecondition}}
	flaky := &fakeUpdater{thid: "s3", readyAt: 1, errs: []error{ErrTransport}}
	s.Add(ready)
	s.Add(broken)
	s.Add(flaky)
	assert.Equal(s.Len(), 3)

	s.PollOnce(context.Background())
	assert.Equal(s.Len(), 2)

	s.PollOnce(context.Background())
	assert.Equal(s.Len(), 0)
	assert.That(ready.Terminal())
	assert.That(flaky.Terminal())
}

func TestScheduler_Start(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s, err := NewScheduler(10 * time.Millisecond)
	assert.NoError(err)
	u := &fakeUpdater{thid: "cron", readyAt: 2}
	s.Add(u)
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for s.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(s.Len(), 0)
}

package prot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang/glog"
)

// Updater is the update contract all the state machines share. UpdateState
// pulls the new messages and applies them. It's a no-op when nothing has
// arrived.
type Updater interface {
	UpdateState(ctx context.Context) (StateCode, error)
	Terminal() bool
	ThreadID() string
	Owner() string
}

type BackoffKind string

const (
	BackoffConstant    BackoffKind = "constant"
	BackoffExponential BackoffKind = "exponential"
)

// RetryPolicy tells how many times and how often a record is polled.
// MaxAttempts zero means until the context is done.
type RetryPolicy struct {
	MaxAttempts int
	Interval    time.Duration
	Kind        BackoffKind
}

func DefaultPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 10,
		Interval:    500 * time.Millisecond,
		Kind:        BackoffConstant,
	}
}

// BackOff builds a fresh backoff of the policy.
func (p RetryPolicy) BackOff() backoff.BackOff {
	var b backoff.BackOff
	switch p.Kind {
	case BackoffExponential:
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = p.Interval
		eb.MaxElapsedTime = 0
		b = eb
	default:
		b = backoff.NewConstantBackOff(p.Interval)
	}
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
	}
	return b
}

// ErrNotTerminal is returned when the attempts run out before the record
// reaches its terminal state.
var ErrNotTerminal = errors.New("exchange not in terminal state")

// Poll runs UpdateState until the record is terminal. Transport errors and
// no-op polls are retried, the errors retrying cannot help are returned
// immediately. The state is the one of the last successful update.
func Poll(ctx context.Context, u Updater, policy RetryPolicy) (state StateCode, err error) {
	release, err := guard.acquire(u)
	if err != nil {
		return state, err
	}
	defer release()

	start := time.Now()
	defer func() {
		pollDuration.WithLabelValues(family(u)).Observe(time.Since(start).Seconds())
	}()

	op := func() error {
		s, err := u.UpdateState(ctx)
		if err != nil {
			if IsPermanent(err) {
				return backoff.Permanent(err)
			}
			glog.V(3).Infoln("poll retry:", err)
			return err
		}
		state = s
		if u.Terminal() {
			return nil
		}
		return ErrNotTerminal
	}
	err = backoff.Retry(op, backoff.WithContext(policy.BackOff(), ctx))
	return state, err
}

// PollResult is the outcome of one record polled by PollAll.
type PollResult struct {
	ThreadID string
	State    StateCode
	Err      error
}

// PollAll polls the records in parallel, at most workers at a time. Results
// are in the order of the updaters.
func PollAll(ctx context.Context, updaters []Updater, policy RetryPolicy, workers int) []PollResult {
	if workers <= 0 || workers > len(updaters) {
		workers = len(updaters)
	}
	results := make([]PollResult, len(updaters))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i := range updaters {
		wg.Add(1)
		go func(i int, u Updater) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			s, err := Poll(ctx, u, policy)
			results[i] = PollResult{ThreadID: u.ThreadID(), State: s, Err: err}
		}(i, updaters[i])
	}
	wg.Wait()
	return results
}

func family(u Updater) string {
	if f, ok := u.(interface{ Family() string }); ok {
		return f.Family()
	}
	return "unknown"
}

// threadGuard keeps the threads being polled. A record without a thread yet
// is guarded by its identity.
type threadGuard struct {
	l    sync.Mutex
	busy map[string]struct{}
}

var guard = &threadGuard{busy: make(map[string]struct{})}

func guardKey(u Updater) string {
	if thid := u.ThreadID(); thid != "" {
		return u.Owner() + "|" + thid
	}
	return fmt.Sprintf("%s|%p", u.Owner(), u)
}

func (g *threadGuard) acquire(u Updater) (release func(), err error) {
	key := guardKey(u)

	g.l.Lock()
	defer g.l.Unlock()

	if _, ok := g.busy[key]; ok {
		return nil, fmt.Errorf("%w: %s is polled already", ErrThreadOwned, u.ThreadID())
	}
	g.busy[key] = struct{}{}
	return func() {
		g.l.Lock()
		delete(g.busy, key)
		g.l.Unlock()
	}, nil
}

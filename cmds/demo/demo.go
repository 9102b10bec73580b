// Package demo runs the exchange flows between two agents in one process.
// The agents talk over a shared relay, which is in memory or on Redis, and
// write their records to their own storages.
package demo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/findy-network/findy-exchange/agent/prot"
	"github.com/findy-network/findy-exchange/cmds"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

const (
	RelayMemory = "memory"
	RelayRedis  = "redis"
)

type Cmd struct {
	StoragePath string
	StorageKey  string

	Relay       string
	RedisAddr   string
	RedisPrefix string
	Sealed      bool

	Policy            prot.RetryPolicy
	SchedulerInterval time.Duration
	MetricsAddr       string

	Scenarios []string
}

var DefaultValues = Cmd{
	Relay:             RelayMemory,
	RedisPrefix:       "exchange:relay:",
	Policy:            prot.DefaultPolicy(),
	SchedulerInterval: 200 * time.Millisecond,
	Scenarios:         ScenarioNames(),
}

func (c Cmd) Validate() error {
	switch c.Relay {
	case RelayMemory:
	case RelayRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis relay needs an address", cmds.ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown relay %q", cmds.ErrInvalid, c.Relay)
	}
	switch c.Policy.Kind {
	case prot.BackoffConstant, prot.BackoffExponential:
	default:
		return fmt.Errorf("%w: unknown backoff %q", cmds.ErrInvalid, c.Policy.Kind)
	}
	if c.Policy.MaxAttempts < 0 {
		return fmt.Errorf("%w: poll attempts cannot be negative", cmds.ErrInvalid)
	}
	if err := cmds.ValidateInterval("poll interval", c.Policy.Interval); err != nil {
		return err
	}
	if err := cmds.ValidateInterval("scheduler interval", c.SchedulerInterval); err != nil {
		return err
	}
	if err := cmds.ValidateKey(c.StorageKey); err != nil {
		return err
	}
	if len(c.Scenarios) == 0 {
		return fmt.Errorf("%w: no scenarios", cmds.ErrInvalid)
	}
	for _, name := range c.Scenarios {
		if _, ok := scenarios[name]; !ok {
			return fmt.Errorf("%w: unknown scenario %q", cmds.ErrInvalid, name)
		}
	}
	return nil
}

// Step is one observed state of a record.
type Step struct {
	Agent  string `json:"agent"`
	Record string `json:"record"`
	State  string `json:"state"`
	Detail string `json:"detail,omitempty"`
}

type ScenarioResult struct {
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

type Result struct {
	Scenarios   []ScenarioResult `json:"scenarios"`
	Transitions map[string]int   `json:"transitions"`
}

func (r *Result) JSON() ([]byte, error) {
	return json.Marshal(r)
}

// Last returns the last step of the record in the scenario.
func (r *Result) Last(scenario, agent, record string) (Step, bool) {
	for _, s := range r.Scenarios {
		if s.Name != scenario {
			continue
		}
		for i := len(s.Steps) - 1; i >= 0; i-- {
			st := s.Steps[i]
			if st.Agent == agent && st.Record == record {
				return st, true
			}
		}
	}
	return Step{}, false
}

func (c Cmd) Exec(w io.Writer) (_ cmds.Result, err error) {
	defer err2.Handle(&err, "demo")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if c.MetricsAddr != "" {
		stop := serveMetrics(c.MetricsAddr)
		defer stop()
	}

	notifier := prot.NewNotifier()
	counted := countTransitions(notifier)

	n := try.To1(newNetwork(c, notifier))
	defer n.close()

	res := &Result{}
	for _, name := range c.Scenarios {
		cmds.Fprintf(w, "== %s\n", name)
		r := &run{
			w:        w,
			net:      n,
			policy:   c.Policy,
			interval: c.SchedulerInterval,
			result:   &ScenarioResult{Name: name},
		}
		try.To(scenarios[name](ctx, r))
		res.Scenarios = append(res.Scenarios, *r.result)
	}
	res.Transitions = counted()

	families := make([]string, 0, len(res.Transitions))
	for f := range res.Transitions {
		families = append(families, f)
	}
	sort.Strings(families)
	for _, f := range families {
		cmds.Fprintf(w, "%s transitions: %d\n", f, res.Transitions[f])
	}
	return res, nil
}

// countTransitions counts the notifications per protocol until the returned
// function is called.
func countTransitions(n *prot.Notifier) func() map[string]int {
	ch := n.Subscribe()
	counts := make(map[string]int)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for nf := range ch {
			counts[nf.Protocol]++
		}
	}()
	return func() map[string]int {
		n.Unsubscribe(ch)
		wg.Wait()
		return counts
	}
}

func serveMetrics(addr string) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", prot.MetricsHandler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			glog.Errorln("metrics server:", err)
		}
	}()
	glog.V(1).Infoln("metrics served at", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			glog.Warningln("metrics server shutdown:", err)
		}
	}
}

var errNotYet = errors.New("state not reached yet")

// run is the context of one scenario.
type run struct {
	w        io.Writer
	net      *network
	policy   prot.RetryPolicy
	interval time.Duration
	result   *ScenarioResult
}

type stateful interface {
	StateCode() prot.StateCode
}

func (r *run) report(agent, record string, s stateful, detail string) {
	st := Step{Agent: agent, Record: record, State: s.StateCode().String(), Detail: detail}
	r.result.Steps = append(r.result.Steps, st)
	if detail != "" {
		cmds.Fprintf(r.w, "%-6s %-12s %-16s %s\n", agent, record, st.State, detail)
	} else {
		cmds.Fprintf(r.w, "%-6s %-12s %s\n", agent, record, st.State)
	}
}

// waitFor updates the record until it's in the state. The attempts and
// their interval come from the retry policy.
func (r *run) waitFor(ctx context.Context, u prot.Updater, want prot.StateCode) error {
	op := func() error {
		s, err := u.UpdateState(ctx)
		switch {
		case err != nil && prot.IsPermanent(err):
			return backoff.Permanent(err)
		case err != nil:
			return err
		case s != want:
			return fmt.Errorf("%w: %s, want %s", errNotYet, s, want)
		}
		return nil
	}
	return backoff.Retry(op, backoff.WithContext(r.policy.BackOff(), ctx))
}

// pollAll polls the records to their terminal states in parallel.
func (r *run) pollAll(ctx context.Context, us ...prot.Updater) error {
	for _, res := range prot.PollAll(ctx, us, r.policy, len(us)) {
		if res.Err != nil {
			return fmt.Errorf("poll %s: %w", res.ThreadID, res.Err)
		}
	}
	return nil
}

// schedule lets the scheduler poll the records until they all are terminal.
func (r *run) schedule(ctx context.Context, us ...prot.Updater) (err error) {
	defer err2.Handle(&err, "schedule")

	s := try.To1(prot.NewScheduler(r.interval))
	for _, u := range us {
		s.Add(u)
	}
	s.Start()
	defer s.Stop()

	op := func() error {
		if n := s.Len(); n > 0 {
			return fmt.Errorf("%w: %d records polled", errNotYet, n)
		}
		return nil
	}
	try.To(backoff.Retry(op, backoff.WithContext(r.policy.BackOff(), ctx)))
	for _, u := range us {
		if !u.Terminal() {
			return fmt.Errorf("%s dropped before terminal", u.ThreadID())
		}
	}
	return nil
}

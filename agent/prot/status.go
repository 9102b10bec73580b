package prot

import (
	"time"

	"github.com/findy-network/findy-exchange/agent/psm"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// RecordStatus is the summary of a persisted record.
type RecordStatus struct {
	ID          string    `json:"id"`
	Protocol    string    `json:"protocol"`
	Role        string    `json:"role"`
	ThreadID    string    `json:"thid,omitempty"`
	State       string    `json:"state"`
	Code        StateCode `json:"code"`
	Ready       bool      `json:"ready"`
	TimestampMs uint64    `json:"timestamp"`
	Transitions int       `json:"transitions"`
}

const (
	StatusReady   = "ready"
	StatusWaiting = "waiting"
)

func (s *RecordStatus) Status() string {
	if s.Ready {
		return StatusReady
	}
	return StatusWaiting
}

func statusOf(p *psm.PSM) RecordStatus {
	s := RecordStatus{
		ID:          p.Key.Nonce,
		Protocol:    p.Protocol,
		Role:        p.Role,
		ThreadID:    p.ThreadID,
		Ready:       p.IsReady(),
		TimestampMs: uint64(p.Timestamp() / int64(time.Millisecond)),
		Transitions: len(p.States),
	}
	if last := p.LastState(); last != nil {
		s.State = last.Name
		s.Code = StateCode(last.Code)
	}
	return s
}

// StatusForRecord returns the status of the agent's record.
func (a *Agent) StatusForRecord(id string) (s *RecordStatus, err error) {
	defer err2.Handle(&err, "status for %s", id)

	st := statusOf(try.To1(a.LoadPSM(id)))
	return &st, nil
}

// Records returns the statuses of the agent's records of the protocol, all
// of them if protocol is empty.
func (a *Agent) Records(protocol string) (s []RecordStatus, err error) {
	defer err2.Handle(&err, "records")

	all := try.To1(a.Store.AllPSM(a.ID, protocol))
	s = make([]RecordStatus, 0, len(all))
	for i := range all {
		s = append(s, statusOf(&all[i]))
	}
	return s, nil
}

// Package psm is the persistent store of the protocol state machines. Every
// exchange record is saved as a PSM which keeps the record snapshot and the
// history of its state transitions in event sourcing style.
package psm

import (
	"strings"

	"github.com/findy-network/findy-common-go/dto"
)

// StateKey is the primary key of the PSM: the owning agent and the record
// ID.
type StateKey struct {
	DID   string
	Nonce string
}

func (key StateKey) Data() []byte {
	return []byte(key.String())
}

func (key StateKey) String() string {
	return key.DID + "|" + key.Nonce
}

// ParseStateKey is the inverse of String.
func ParseStateKey(s string) (StateKey, bool) {
	did, nonce, ok := strings.Cut(s, "|")
	return StateKey{DID: did, Nonce: nonce}, ok
}

// State is one transition of the PSM. Code is the numeric state code of the
// record, Name its protocol specific state, and Type the message type that
// caused the transition. Type is empty for local actions. Final is set when
// the record doesn't wait for more messages.
type State struct {
	Timestamp int64
	Code      int
	Name      string
	Type      string
	Final     bool
}

// PSM is Protocol State Machine that works in event sourcing principle, i.e.
// every state transition is saved to its States field. Data is the latest
// snapshot of the record.
type PSM struct {
	Key StateKey

	// Protocol is the protocol family name, e.g. connection.
	Protocol string

	// Role is the protocol role of our end.
	Role string

	ThreadID string

	// ThreadReleased is set when the record has ended and doesn't own its
	// thread anymore.
	ThreadReleased bool

	// Data is the JSON snapshot of the exchange record.
	Data []byte

	// States has all of the state history of this PSM in timestamp order
	States []State
}

func NewPSM(d []byte) *PSM {
	p := &PSM{}
	dto.FromGOB(d, p)
	return p
}

func (p *PSM) Bytes() []byte {
	return dto.ToGOB(p)
}

func (p *PSM) Timestamp() int64 {
	if state := p.LastState(); state != nil {
		return state.Timestamp
	}
	return 0
}

func (p *PSM) FirstState() *State {
	sCount := len(p.States)
	if sCount > 0 {
		return &p.States[0]
	}
	return nil
}

func (p *PSM) LastState() *State {
	sCount := len(p.States)
	if sCount > 0 {
		return &p.States[sCount-1]
	}
	return nil
}

// IsReady tells if the PSM has reached its final state.
func (p *PSM) IsReady() bool {
	if lastState := p.LastState(); lastState != nil {
		return lastState.Final
	}
	return false
}

// AddState appends the transition unless it repeats the last state.
func (p *PSM) AddState(s State) bool {
	if last := p.LastState(); last != nil && last.Code == s.Code && last.Name == s.Name {
		return false
	}
	p.States = append(p.States, s)
	return true
}

// Package prot is the shared contract of the exchange protocol family: state
// codes, roles and variants, the error taxonomy, the record every state
// machine embeds, and the Polling/Update Driver which runs them.
package prot

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StateCode is the numeric state every record reports regardless of its
// protocol. The values are stable, they are what the callers persist and
// compare.
type StateCode int

const (
	StateNone StateCode = iota
	StateInitialized
	StateOfferSent
	StateRequestReceived
	StateAccepted
	StateUnfulfilled
	StateExpired
	StateRevoked
	StateRedirected
	StateRejected
)

var stateNames = [...]string{
	"None",
	"Initialized",
	"OfferSent",
	"RequestReceived",
	"Accepted",
	"Unfulfilled",
	"Expired",
	"Revoked",
	"Redirected",
	"Rejected",
}

func (s StateCode) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("StateCode(%d)", int(s))
	}
	return stateNames[s]
}

// Variant is the protocol variant of a record. It's selected when the
// record is created and it never changes.
type Variant int

const (
	Aries Variant = iota
	Legacy
)

func (v Variant) String() string {
	switch v {
	case Legacy:
		return "legacy"
	default:
		return "aries"
	}
}

func (v Variant) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func (v *Variant) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch strings.ToLower(s) {
	case "legacy", "proprietary":
		*v = Legacy
	case "aries", "":
		*v = Aries
	default:
		return fmt.Errorf("unknown protocol variant %q", s)
	}
	return nil
}

// Role is our end's role in the protocol.
type Role int

const (
	RoleInviter Role = iota + 1
	RoleInvitee
	RoleIssuer
	RoleHolder
	RoleVerifier
	RoleProver
)

var roleNames = map[Role]string{
	RoleInviter:  "inviter",
	RoleInvitee:  "invitee",
	RoleIssuer:   "issuer",
	RoleHolder:   "holder",
	RoleVerifier: "verifier",
	RoleProver:   "prover",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for role, name := range roleNames {
		if name == s {
			*r = role
			return nil
		}
	}
	return fmt.Errorf("unknown role %q", s)
}

package vc

import (
	"fmt"
	"strconv"
)

// Predicate types.
const (
	PredicateGE = ">="
	PredicateLE = "<="
	PredicateGT = ">"
	PredicateLT = "<"
)

// ProofRequest is the verifier's request attachment. Keys of the maps are
// the referents the proof uses to answer them.
type ProofRequest struct {
	Name                string                   `json:"name"`
	Version             string                   `json:"version"`
	Nonce               string                   `json:"nonce"`
	RequestedAttributes map[string]AttrInfo      `json:"requested_attributes"`
	RequestedPredicates map[string]PredicateInfo `json:"requested_predicates"`
	NonRevoked          *Interval                `json:"non_revoked,omitempty"`
}

// AttrInfo requests either one attribute by Name or an attribute group by
// Names. A group must be revealed from one credential.
type AttrInfo struct {
	Name              string        `json:"name,omitempty"`
	Names             []string      `json:"names,omitempty"`
	Restrictions      []Restriction `json:"restrictions,omitempty"`
	NonRevoked        *Interval     `json:"non_revoked,omitempty"`
	SelfAttestAllowed bool          `json:"self_attest_allowed,omitempty"`
}

type PredicateInfo struct {
	Name         string        `json:"name"`
	PType        string        `json:"p_type"`
	PValue       int64         `json:"p_value"`
	Restrictions []Restriction `json:"restrictions,omitempty"`
	NonRevoked   *Interval     `json:"non_revoked,omitempty"`
}

// Restriction fields are ANDed, restrictions of one request item are ORed.
type Restriction struct {
	SchemaID      string `json:"schema_id,omitempty"`
	SchemaName    string `json:"schema_name,omitempty"`
	SchemaVersion string `json:"schema_version,omitempty"`
	CredDefID     string `json:"cred_def_id,omitempty"`
	IssuerDID     string `json:"issuer_did,omitempty"`
}

type Interval struct {
	From int64 `json:"from,omitempty"`
	To   int64 `json:"to,omitempty"`
}

// Proof is the prover's presentation attachment. The signed credentials are
// disclosed as such, the proof is not zero knowledge.
type Proof struct {
	Nonce          string         `json:"nonce"`
	RequestedProof RequestedProof `json:"requested_proof"`
	Identifiers    []Identifier   `json:"identifiers"`
	Credentials    []Credential   `json:"credentials"`
}

type RequestedProof struct {
	RevealedAttrs      map[string]RevealedAttr  `json:"revealed_attrs"`
	RevealedAttrGroups map[string]RevealedGroup `json:"revealed_attr_groups,omitempty"`
	SelfAttestedAttrs  map[string]string        `json:"self_attested_attrs,omitempty"`
	Predicates         map[string]SubProofRef   `json:"predicates"`
}

type RevealedAttr struct {
	SubProofIndex int    `json:"sub_proof_index"`
	Raw           string `json:"raw"`
	Encoded       string `json:"encoded"`
}

type RevealedGroup struct {
	SubProofIndex int                  `json:"sub_proof_index"`
	Values        map[string]AttrValue `json:"values"`
}

type SubProofRef struct {
	SubProofIndex int `json:"sub_proof_index"`
}

type Identifier struct {
	SchemaID  string `json:"schema_id"`
	CredDefID string `json:"cred_def_id"`
	RevRegID  string `json:"rev_reg_id,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// CredInfo is a stored credential candidate for a request item.
type CredInfo struct {
	Referent  string            `json:"referent"`
	SchemaID  string            `json:"schema_id"`
	CredDefID string            `json:"cred_def_id"`
	Attrs     map[string]string `json:"attrs"`
}

// CredentialsForRequest lists the candidates per request referent.
type CredentialsForRequest struct {
	Attrs      map[string][]CredInfo `json:"attrs"`
	Predicates map[string][]CredInfo `json:"predicates"`
}

// Selection maps the request referents to the credential referents the
// prover chose. SelfAttested answers attributes which allow it.
type Selection struct {
	Attrs        map[string]string `json:"attrs"`
	Predicates   map[string]string `json:"predicates"`
	SelfAttested map[string]string `json:"self_attested,omitempty"`
}

// FirstCandidates selects the first candidate of every request item.
func (c *CredentialsForRequest) FirstCandidates() *Selection {
	s := &Selection{
		Attrs:      make(map[string]string, len(c.Attrs)),
		Predicates: make(map[string]string, len(c.Predicates)),
	}
	for ref, infos := range c.Attrs {
		if len(infos) > 0 {
			s.Attrs[ref] = infos[0].Referent
		}
	}
	for ref, infos := range c.Predicates {
		if len(infos) > 0 {
			s.Predicates[ref] = infos[0].Referent
		}
	}
	return s
}

func (a AttrInfo) names() []string {
	if len(a.Names) > 0 {
		return a.Names
	}
	return []string{a.Name}
}

func (a AttrInfo) isGroup() bool {
	return len(a.Names) > 0
}

func (a AttrInfo) valid() error {
	if a.Name == "" && len(a.Names) == 0 {
		return fmt.Errorf("attribute needs name or names")
	}
	if a.Name != "" && len(a.Names) > 0 {
		return fmt.Errorf("attribute %s has both name and names", a.Name)
	}
	return nil
}

// match tells if the credential satisfies one of the restrictions. Schema
// is needed only for the name and version restrictions.
func match(restrictions []Restriction, c *Credential, schema *Schema) bool {
	if len(restrictions) == 0 {
		return true
	}
	for _, r := range restrictions {
		if r.SchemaID != "" && r.SchemaID != c.SchemaID {
			continue
		}
		if r.CredDefID != "" && r.CredDefID != c.CredDefID {
			continue
		}
		if r.IssuerDID != "" && r.IssuerDID != c.IssuerDID {
			continue
		}
		if r.SchemaName != "" && (schema == nil || r.SchemaName != schema.Name) {
			continue
		}
		if r.SchemaVersion != "" && (schema == nil || r.SchemaVersion != schema.Version) {
			continue
		}
		return true
	}
	return false
}

func needsSchema(restrictions []Restriction) bool {
	for _, r := range restrictions {
		if r.SchemaName != "" || r.SchemaVersion != "" {
			return true
		}
	}
	return false
}

// hasAll tells if the credential has all of the attributes.
func hasAll(c *Credential, names []string) bool {
	for _, n := range names {
		if _, ok := c.Value(n); !ok {
			return false
		}
	}
	return true
}

// satisfies evaluates the predicate against the credential.
func (p PredicateInfo) satisfies(c *Credential) (bool, error) {
	v, ok := c.Value(p.Name)
	if !ok {
		return false, nil
	}
	value, err := strconv.ParseInt(v.Raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("predicate attribute %s is not an integer", p.Name)
	}
	switch p.PType {
	case PredicateGE:
		return value >= p.PValue, nil
	case PredicateLE:
		return value <= p.PValue, nil
	case PredicateGT:
		return value > p.PValue, nil
	case PredicateLT:
		return value < p.PValue, nil
	}
	return false, fmt.Errorf("unknown predicate type %q", p.PType)
}

// revocationChecked tells if the request asks revocation status of the item.
func (pr *ProofRequest) revocationChecked(item *Interval) bool {
	return item != nil || pr.NonRevoked != nil
}

// Validate checks the request is something a proof can answer: at least one
// item, every attribute named once, known predicate types.
func (pr *ProofRequest) Validate() error {
	if len(pr.RequestedAttributes) == 0 && len(pr.RequestedPredicates) == 0 {
		return fmt.Errorf("proof request has no attributes or predicates")
	}
	for ref, attr := range pr.RequestedAttributes {
		if err := attr.valid(); err != nil {
			return fmt.Errorf("%s: %v", ref, err)
		}
	}
	for ref, p := range pr.RequestedPredicates {
		switch p.PType {
		case PredicateGE, PredicateLE, PredicateGT, PredicateLT:
		default:
			return fmt.Errorf("%s: unknown predicate type %q", ref, p.PType)
		}
		if p.Name == "" {
			return fmt.Errorf("%s: predicate needs name", ref)
		}
	}
	return nil
}

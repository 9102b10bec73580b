package vc

import (
	"context"
	"fmt"

	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// QueryCredentials lists the stored credentials which can answer each item
// of the request. Predicates are evaluated already here.
func (e *Engine) QueryCredentials(ctx context.Context, req *ProofRequest) (res *CredentialsForRequest, err error) {
	defer err2.Handle(&err, "query credentials")

	creds := try.To1(e.credentials())
	res = &CredentialsForRequest{
		Attrs:      make(map[string][]CredInfo, len(req.RequestedAttributes)),
		Predicates: make(map[string][]CredInfo, len(req.RequestedPredicates)),
	}
	for ref, attr := range req.RequestedAttributes {
		try.To(attr.valid())
		res.Attrs[ref] = []CredInfo{}
		for i := range creds {
			c := &creds[i]
			if !hasAll(c, attr.names()) {
				continue
			}
			schema := try.To1(e.schemaOf(ctx, attr.Restrictions, c))
			if match(attr.Restrictions, c, schema) {
				res.Attrs[ref] = append(res.Attrs[ref], info(c))
			}
		}
	}
	for ref, pred := range req.RequestedPredicates {
		res.Predicates[ref] = []CredInfo{}
		for i := range creds {
			c := &creds[i]
			schema := try.To1(e.schemaOf(ctx, pred.Restrictions, c))
			if !match(pred.Restrictions, c, schema) {
				continue
			}
			if ok, _ := pred.satisfies(c); ok {
				res.Predicates[ref] = append(res.Predicates[ref], info(c))
			}
		}
	}
	return res, nil
}

func info(c *Credential) CredInfo {
	attrs := make(map[string]string, len(c.Values))
	for name, v := range c.Values {
		attrs[name] = v.Raw
	}
	return CredInfo{
		Referent:  c.Referent,
		SchemaID:  c.SchemaID,
		CredDefID: c.CredDefID,
		Attrs:     attrs,
	}
}

// proofBuilder collects the credentials of the proof so that each credential
// is one sub proof.
type proofBuilder struct {
	proof   *Proof
	indexes map[string]int
}

func (b *proofBuilder) subProof(c *Credential) int {
	if i, ok := b.indexes[c.Referent]; ok {
		return i
	}
	i := len(b.proof.Credentials)
	b.indexes[c.Referent] = i
	disclosed := *c
	disclosed.Referent = ""
	b.proof.Credentials = append(b.proof.Credentials, disclosed)
	b.proof.Identifiers = append(b.proof.Identifiers, Identifier{
		SchemaID:  c.SchemaID,
		CredDefID: c.CredDefID,
		RevRegID:  c.RevRegID,
	})
	return i
}

// CreateProof builds the proof from the selected credentials. Every
// selection is checked against the request before anything is disclosed.
func (e *Engine) CreateProof(ctx context.Context, req *ProofRequest, sel *Selection) (p *Proof, err error) {
	defer err2.Handle(&err, "create proof")

	if sel == nil {
		sel = &Selection{}
	}
	b := &proofBuilder{
		proof: &Proof{
			Nonce: req.Nonce,
			RequestedProof: RequestedProof{
				RevealedAttrs:      make(map[string]RevealedAttr),
				RevealedAttrGroups: make(map[string]RevealedGroup),
				SelfAttestedAttrs:  make(map[string]string),
				Predicates:         make(map[string]SubProofRef),
			},
			Identifiers: []Identifier{},
			Credentials: []Credential{},
		},
		indexes: make(map[string]int),
	}
	rp := &b.proof.RequestedProof

	for ref, attr := range req.RequestedAttributes {
		try.To(attr.valid())

		if v, ok := sel.SelfAttested[ref]; ok && attr.SelfAttestAllowed && !attr.isGroup() {
			rp.SelfAttestedAttrs[ref] = v
			continue
		}
		credRef, ok := sel.Attrs[ref]
		if !ok {
			return nil, fmt.Errorf("%w: no credential for %s", ErrUnsatisfied, ref)
		}
		c := try.To1(e.Credential(credRef))
		c.Referent = credRef
		schema := try.To1(e.schemaOf(ctx, attr.Restrictions, c))
		if !hasAll(c, attr.names()) || !match(attr.Restrictions, c, schema) {
			return nil, fmt.Errorf("%w: credential doesn't answer %s", ErrUnsatisfied, ref)
		}
		index := b.subProof(c)
		if attr.isGroup() {
			values := make(map[string]AttrValue, len(attr.Names))
			for _, name := range attr.Names {
				values[name], _ = c.Value(name)
			}
			rp.RevealedAttrGroups[ref] = RevealedGroup{SubProofIndex: index, Values: values}
			continue
		}
		v, _ := c.Value(attr.Name)
		rp.RevealedAttrs[ref] = RevealedAttr{SubProofIndex: index, Raw: v.Raw, Encoded: v.Encoded}
	}

	for ref, pred := range req.RequestedPredicates {
		credRef, ok := sel.Predicates[ref]
		if !ok {
			return nil, fmt.Errorf("%w: no credential for %s", ErrUnsatisfied, ref)
		}
		c := try.To1(e.Credential(credRef))
		c.Referent = credRef
		schema := try.To1(e.schemaOf(ctx, pred.Restrictions, c))
		if !match(pred.Restrictions, c, schema) || !try.To1(pred.satisfies(c)) {
			return nil, fmt.Errorf("%w: predicate %s", ErrUnsatisfied, ref)
		}
		rp.Predicates[ref] = SubProofRef{SubProofIndex: b.subProof(c)}
	}
	glog.V(3).Infof("proof with %d credentials created", len(b.proof.Credentials))
	return b.proof, nil
}

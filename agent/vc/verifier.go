package vc

import (
	"context"
	"errors"

	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// VerifyProof checks the proof against the request. A proof which doesn't
// answer the request returns false without an error, errors are reserved for
// the ledger access.
func (e *Engine) VerifyProof(ctx context.Context, req *ProofRequest, proof *Proof) (ok bool, err error) {
	defer err2.Handle(&err, "verify proof")

	if proof.Nonce != req.Nonce {
		glog.Warningln("proof nonce mismatch")
		return false, nil
	}
	if len(proof.Identifiers) != len(proof.Credentials) {
		return false, nil
	}
	for i := range proof.Credentials {
		c := &proof.Credentials[i]
		id := proof.Identifiers[i]
		if id.SchemaID != c.SchemaID || id.CredDefID != c.CredDefID || id.RevRegID != c.RevRegID {
			return false, nil
		}
		if !try.To1(e.verifyCredential(ctx, c)) {
			glog.Warningln("invalid credential signature in proof")
			return false, nil
		}
	}

	rp := &proof.RequestedProof
	for ref, attr := range req.RequestedAttributes {
		if attr.valid() != nil {
			return false, nil
		}
		var c *Credential
		switch {
		case attr.isGroup():
			g, found := rp.RevealedAttrGroups[ref]
			if c = credential(proof, g.SubProofIndex); !found || c == nil {
				return false, nil
			}
			for _, name := range attr.Names {
				v, has := c.Value(name)
				if !has || g.Values[name] != v {
					return false, nil
				}
			}
		case rp.SelfAttestedAttrs[ref] != "":
			if !attr.SelfAttestAllowed {
				return false, nil
			}
			continue
		default:
			a, found := rp.RevealedAttrs[ref]
			if c = credential(proof, a.SubProofIndex); !found || c == nil {
				return false, nil
			}
			v, has := c.Value(attr.Name)
			if !has || v.Raw != a.Raw || v.Encoded != a.Encoded {
				return false, nil
			}
		}
		if !try.To1(e.accepts(ctx, req, attr.Restrictions, attr.NonRevoked, c)) {
			return false, nil
		}
	}

	for ref, pred := range req.RequestedPredicates {
		p, found := rp.Predicates[ref]
		c := credential(proof, p.SubProofIndex)
		if !found || c == nil {
			return false, nil
		}
		if ok, _ := pred.satisfies(c); !ok {
			return false, nil
		}
		if !try.To1(e.accepts(ctx, req, pred.Restrictions, pred.NonRevoked, c)) {
			return false, nil
		}
	}
	return true, nil
}

func credential(proof *Proof, index int) *Credential {
	if index < 0 || index >= len(proof.Credentials) {
		return nil
	}
	return &proof.Credentials[index]
}

// accepts checks the restrictions and the revocation status of the
// credential.
func (e *Engine) accepts(
	ctx context.Context,
	req *ProofRequest,
	restrictions []Restriction,
	nonRevoked *Interval,
	c *Credential,
) (
	ok bool,
	err error,
) {
	defer err2.Handle(&err)

	schema, err := e.schemaOf(ctx, restrictions, c)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	try.To(err)
	if !match(restrictions, c, schema) {
		return false, nil
	}
	if !req.revocationChecked(nonRevoked) || c.RevRegID == "" {
		return true, nil
	}
	rr, err := e.ledger.ResolveRevocationRegistry(ctx, c.RevRegID)
	if errors.Is(err, ErrNotFound) {
		return false, ErrRevocationCheck
	}
	try.To(err)
	if rr.IsRevoked(c.CredRevID) {
		glog.V(1).Infoln("credential revoked:", c.CredRevID)
		return false, nil
	}
	return true, nil
}

package vc

import (
	"crypto/sha256"
	"math/big"
	"strconv"
)

// Offer is the issuer's offer attachment.
type Offer struct {
	SchemaID  string `json:"schema_id"`
	CredDefID string `json:"cred_def_id"`
	Nonce     string `json:"nonce"`
}

// Request is the holder's credential request attachment. OfferNonce binds
// the request to the offer.
type Request struct {
	ProverDID  string `json:"prover_did"`
	CredDefID  string `json:"cred_def_id"`
	OfferNonce string `json:"offer_nonce"`
	Nonce      string `json:"nonce"`
}

// AttrValue is an attribute value with its integer encoding.
type AttrValue struct {
	Raw     string `json:"raw"`
	Encoded string `json:"encoded"`
}

// Credential is the issued credential. Signature covers everything but
// itself and the local Referent.
type Credential struct {
	Referent  string               `json:"referent,omitempty"`
	SchemaID  string               `json:"schema_id"`
	CredDefID string               `json:"cred_def_id"`
	IssuerDID string               `json:"issuer_did"`
	ProverDID string               `json:"prover_did"`
	RevRegID  string               `json:"rev_reg_id,omitempty"`
	CredRevID string               `json:"cred_rev_id,omitempty"`
	Values    map[string]AttrValue `json:"values"`
	Signature []byte               `json:"signature"`
}

// signedBody is the part of the credential the issuer signs. JSON encoding
// sorts map keys which makes the body deterministic.
type signedBody struct {
	SchemaID  string               `json:"schema_id"`
	CredDefID string               `json:"cred_def_id"`
	IssuerDID string               `json:"issuer_did"`
	ProverDID string               `json:"prover_did"`
	RevRegID  string               `json:"rev_reg_id,omitempty"`
	CredRevID string               `json:"cred_rev_id,omitempty"`
	Values    map[string]AttrValue `json:"values"`
}

func (c *Credential) body() signedBody {
	return signedBody{
		SchemaID:  c.SchemaID,
		CredDefID: c.CredDefID,
		IssuerDID: c.IssuerDID,
		ProverDID: c.ProverDID,
		RevRegID:  c.RevRegID,
		CredRevID: c.CredRevID,
		Values:    c.Values,
	}
}

// Value returns the attribute value by the name in any form.
func (c *Credential) Value(name string) (AttrValue, bool) {
	if v, ok := c.Values[AttrName(name)]; ok {
		return v, true
	}
	v, ok := c.Values[name]
	return v, ok
}

// Encode returns the integer encoding of the attribute value: 32 bit
// integers as is, everything else as the decimal of its SHA-256.
func Encode(raw string) string {
	if i, err := strconv.ParseInt(raw, 10, 32); err == nil {
		return strconv.FormatInt(i, 10)
	}
	sum := sha256.Sum256([]byte(raw))
	return new(big.Int).SetBytes(sum[:]).String()
}

// EncodeValues encodes the raw values and canonizes the names.
func EncodeValues(raw map[string]string) map[string]AttrValue {
	values := make(map[string]AttrValue, len(raw))
	for name, v := range raw {
		values[AttrName(name)] = AttrValue{Raw: v, Encoded: Encode(v)}
	}
	return values
}

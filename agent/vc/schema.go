// Package vc is the verifiable credential layer of the agent: the ledger
// objects, the ledger contract and the credential engine the issue and
// present protocols call as an opaque capability.
package vc

import (
	"context"
	"fmt"
	"strings"

	"github.com/findy-network/findy-exchange/agent/ssi"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

type Schema struct {
	ID      string   `json:"id,omitempty"`      // ID from Indy/Ledger
	Name    string   `json:"name,omitempty"`    // name of the schema
	Version string   `json:"version,omitempty"` // version number in string
	Attrs   []string `json:"attrNames,omitempty"`
}

// CredDef binds a schema to the issuer's signing key. VerKey is the public
// key the credential signatures are checked with.
type CredDef struct {
	ID        string `json:"id"`
	SchemaID  string `json:"schemaId"`
	IssuerDID string `json:"issuerDid"`
	Tag       string `json:"tag"`
	VerKey    string `json:"verkey"`
	RevRegID  string `json:"revRegId,omitempty"`
}

// RevocationRegistry lists the revoked credential revocation IDs of a
// credential definition. Timestamp is the Unix time of the last update.
type RevocationRegistry struct {
	ID        string   `json:"id"`
	CredDefID string   `json:"credDefId"`
	Revoked   []string `json:"revoked,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

func SchemaID(issuerDID, name, version string) string {
	return fmt.Sprintf("%s:2:%s:%s", issuerDID, name, version)
}

func CredDefID(issuerDID, schemaID, tag string) string {
	return fmt.Sprintf("%s:3:CL:%s:%s", issuerDID, schemaID, tag)
}

func RevRegID(issuerDID, credDefID, tag string) string {
	return fmt.Sprintf("%s:4:%s:CL_ACCUM:%s", issuerDID, credDefID, tag)
}

func NewSchema(issuerDID, name, version string, attrs []string) *Schema {
	return &Schema{
		ID:      SchemaID(issuerDID, name, version),
		Name:    name,
		Version: version,
		Attrs:   attrs,
	}
}

// HasAttr tells if the schema has the attribute. Attribute names are compared
// in their canonical form.
func (s *Schema) HasAttr(name string) bool {
	name = AttrName(name)
	for _, a := range s.Attrs {
		if AttrName(a) == name {
			return true
		}
	}
	return false
}

func (r *RevocationRegistry) IsRevoked(credRevID string) bool {
	for _, id := range r.Revoked {
		if id == credRevID {
			return true
		}
	}
	return false
}

// NewCredDef creates a new signing key to the wallet and returns the
// credential definition of it. With revocable the definition names the
// revocation registry which the caller must write to the ledger as well.
func NewCredDef(
	ctx context.Context,
	w ssi.Wallet,
	issuerDID string,
	schema *Schema,
	tag string,
	revocable bool,
) (
	cd *CredDef,
	rr *RevocationRegistry,
	err error,
) {
	defer err2.Handle(&err, "new cred def")

	key := try.To1(w.CreateLocalIdentity(ctx))
	cd = &CredDef{
		ID:        CredDefID(issuerDID, schema.ID, tag),
		SchemaID:  schema.ID,
		IssuerDID: issuerDID,
		Tag:       tag,
		VerKey:    key.VerKey,
	}
	if revocable {
		rr = &RevocationRegistry{
			ID:        RevRegID(issuerDID, cd.ID, tag),
			CredDefID: cd.ID,
		}
		cd.RevRegID = rr.ID
	}
	return cd, rr, nil
}

// AttrName returns the canonical form of the attribute name: lower case
// without spaces.
func AttrName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", ""))
}

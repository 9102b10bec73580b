package vc

import (
	"context"
	"errors"
	"fmt"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-exchange/agent/ssi"
	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/golang/glog"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

var (
	ErrOfferMismatch   = errors.New("credential request doesn't match the offer")
	ErrMissingValue    = errors.New("credential value missing")
	ErrInvalidCred     = errors.New("invalid credential")
	ErrNoCredential    = errors.New("credential not found")
	ErrUnsatisfied     = errors.New("proof request not satisfied")
	ErrRevocationCheck = errors.New("revocation registry not available")
)

// Capability is the opaque credential engine of the protocols. The issuer
// side is CreateOffer and IssueCredential, the holder side CreateRequest and
// StoreCredential, the prover side QueryCredentials and CreateProof, and the
// verifier side VerifyProof.
type Capability interface {
	CreateOffer(ctx context.Context, credDefID string) (*Offer, error)
	CreateRequest(ctx context.Context, proverDID string, offer *Offer) (*Request, error)
	IssueCredential(ctx context.Context, offer *Offer, req *Request, values map[string]string) (*Credential, error)
	StoreCredential(ctx context.Context, cred *Credential) (string, error)
	QueryCredentials(ctx context.Context, req *ProofRequest) (*CredentialsForRequest, error)
	CreateProof(ctx context.Context, req *ProofRequest, sel *Selection) (*Proof, error)
	VerifyProof(ctx context.Context, req *ProofRequest, proof *Proof) (bool, error)
}

// Engine signs the credentials with the credential definition keys of the
// wallet and keeps the received credentials in the credential store.
type Engine struct {
	wallet ssi.Wallet
	ledger Ledger
	creds  storage.Store
}

var _ Capability = (*Engine)(nil)

const (
	tagKind      = "kind"
	tagCredDefID = "cred_def_id"
	tagSchemaID  = "schema_id"
	kindCred     = "credential"
)

func NewEngine(w ssi.Wallet, l Ledger, creds storage.Store) *Engine {
	return &Engine{wallet: w, ledger: l, creds: creds}
}

// CreateOffer resolves the credential definition and its revocation registry
// so that an offer of an unusable definition is never sent.
func (e *Engine) CreateOffer(ctx context.Context, credDefID string) (o *Offer, err error) {
	defer err2.Handle(&err, "create offer")

	cd := try.To1(e.ledger.ResolveCredentialDefinition(ctx, credDefID))
	if cd.RevRegID != "" {
		_, err := e.ledger.ResolveRevocationRegistry(ctx, cd.RevRegID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRevocationCheck, err)
		}
	}
	return &Offer{
		SchemaID:  cd.SchemaID,
		CredDefID: cd.ID,
		Nonce:     utils.NewNonceStr(),
	}, nil
}

func (e *Engine) CreateRequest(ctx context.Context, proverDID string, offer *Offer) (r *Request, err error) {
	defer err2.Handle(&err, "create cred request")

	_ = try.To1(e.ledger.ResolveCredentialDefinition(ctx, offer.CredDefID))
	return &Request{
		ProverDID:  proverDID,
		CredDefID:  offer.CredDefID,
		OfferNonce: offer.Nonce,
		Nonce:      utils.NewNonceStr(),
	}, nil
}

func (e *Engine) IssueCredential(
	ctx context.Context,
	offer *Offer,
	req *Request,
	values map[string]string,
) (
	c *Credential,
	err error,
) {
	defer err2.Handle(&err, "issue credential")

	if req.CredDefID != offer.CredDefID || req.OfferNonce != offer.Nonce {
		return nil, ErrOfferMismatch
	}
	cd := try.To1(e.ledger.ResolveCredentialDefinition(ctx, offer.CredDefID))
	schema := try.To1(e.ledger.ResolveSchema(ctx, cd.SchemaID))
	for _, attr := range schema.Attrs {
		if _, ok := values[attr]; !ok {
			if _, ok := values[AttrName(attr)]; !ok {
				return nil, fmt.Errorf("%w: %s", ErrMissingValue, attr)
			}
		}
	}

	c = &Credential{
		SchemaID:  cd.SchemaID,
		CredDefID: cd.ID,
		IssuerDID: cd.IssuerDID,
		ProverDID: req.ProverDID,
		Values:    EncodeValues(values),
	}
	if cd.RevRegID != "" {
		c.RevRegID = cd.RevRegID
		c.CredRevID = utils.UUID()
	}
	c.Signature = try.To1(e.wallet.Sign(ctx, cd.VerKey, dto.ToJSONBytes(c.body())))
	glog.V(3).Infoln("issued credential of", cd.ID)
	return c, nil
}

// StoreCredential verifies the credential before it's stored and returns
// its local referent.
func (e *Engine) StoreCredential(ctx context.Context, cred *Credential) (ref string, err error) {
	defer err2.Handle(&err, "store credential")

	if !try.To1(e.verifyCredential(ctx, cred)) {
		return "", ErrInvalidCred
	}
	c := *cred
	c.Referent = utils.UUID()
	try.To(e.creds.Put(c.Referent, dto.ToJSONBytes(&c),
		storage.Tag{Name: tagKind, Value: kindCred},
		storage.Tag{Name: tagCredDefID, Value: c.CredDefID},
		storage.Tag{Name: tagSchemaID, Value: c.SchemaID},
	))
	glog.V(3).Infoln("stored credential", c.Referent)
	return c.Referent, nil
}

// Credential returns the stored credential by its referent.
func (e *Engine) Credential(ref string) (c *Credential, err error) {
	data, err := e.creds.Get(ref)
	if errors.Is(err, storage.ErrDataNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoCredential, ref)
	} else if err != nil {
		return nil, err
	}
	c = new(Credential)
	dto.FromJSON(data, c)
	return c, nil
}

func (e *Engine) credentials() (creds []Credential, err error) {
	defer err2.Handle(&err, "list credentials")

	it := try.To1(e.creds.Query(tagKind + ":" + kindCred))
	defer it.Close()

	for try.To1(it.Next()) {
		var c Credential
		dto.FromJSON(try.To1(it.Value()), &c)
		creds = append(creds, c)
	}
	return creds, nil
}

func (e *Engine) verifyCredential(ctx context.Context, c *Credential) (ok bool, err error) {
	defer err2.Handle(&err, "verify credential")

	cd, err := e.ledger.ResolveCredentialDefinition(ctx, c.CredDefID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	try.To(err)
	if cd.SchemaID != c.SchemaID || cd.IssuerDID != c.IssuerDID {
		return false, nil
	}
	return e.wallet.Verify(ctx, cd.VerKey, dto.ToJSONBytes(c.body()), c.Signature)
}

// schemaOf resolves the schema only when the restrictions need it.
func (e *Engine) schemaOf(ctx context.Context, restrictions []Restriction, c *Credential) (*Schema, error) {
	if !needsSchema(restrictions) {
		return nil, nil
	}
	return e.ledger.ResolveSchema(ctx, c.SchemaID)
}

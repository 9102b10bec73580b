package vc

import (
	"context"
	"errors"
	"flag"
	"os"
	"testing"

	"github.com/findy-network/findy-exchange/agent/ssi"
	"github.com/findy-network/findy-exchange/agent/storage/api"
	"github.com/findy-network/findy-exchange/agent/storage/mgddb"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

var (
	ctx = context.Background()

	ledger  *StoreLedger
	issuer  *Engine
	holder  *Engine
	credDef *CredDef
	revReg  *RevocationRegistry
	schema  *Schema

	issuerDID = "IssuerDID1111111111111"
	holderDID = "HolderDID11111111111111"
)

func TestMain(m *testing.M) {
	setUp()
	code := m.Run()
	os.Exit(code)
}

func newEngine(l *StoreLedger) *Engine {
	s := try.To1(mgddb.NewMemory())
	return NewEngine(ssi.NewWallet(s), l, try.To1(s.OpenStore(api.NameCredential)))
}

func setUp() {
	try.To(flag.Set("logtostderr", "true"))
	try.To(flag.Set("stderrthreshold", "WARNING"))
	try.To(flag.Set("v", "3"))
	flag.Parse()

	ledgerStorage := try.To1(mgddb.NewMemory())
	ledger = NewLedger(try.To1(ledgerStorage.OpenStore(api.NameLedger)))
	issuer = newEngine(ledger)
	holder = newEngine(ledger)

	schema = NewSchema(issuerDID, "email", "1.0", []string{"email", "age", "first name"})
	try.To(ledger.WriteSchema(ctx, schema))
	credDef, revReg = try.To2(NewCredDef(ctx, issuer.wallet, issuerDID, schema, "T1", true))
	try.To(ledger.WriteCredentialDefinition(ctx, credDef))
	try.To(ledger.WriteRevocationRegistry(ctx, revReg))
}

func issue(t *testing.T, values map[string]string) (*Credential, string) {
	offer := try.To1(issuer.CreateOffer(ctx, credDef.ID))
	req := try.To1(holder.CreateRequest(ctx, holderDID, offer))
	cred := try.To1(issuer.IssueCredential(ctx, offer, req, values))
	ref := try.To1(holder.StoreCredential(ctx, cred))
	return cred, ref
}

func TestEncode(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	tests := []struct {
		raw, encoded string
	}{
		{"42", "42"},
		{"-7", "-7"},
		{"101 Wilson Lane", "68086943237164982734333428280784300550565381723532936263016368251445461241953"},
		{"4294967296", Encode("4294967296")},
	}
	for _, tt := range tests {
		assert.Equal(Encode(tt.raw), tt.encoded)
	}
	assert.NotEqual(Encode("4294967296"), "4294967296")
	assert.Equal(AttrName("First Name"), "firstname")
}

func TestIssueAndStore(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	cred, ref := issue(t, map[string]string{"email": "a@b.c", "age": "30", "first name": "Alice"})
	assert.NotEmpty(ref)
	assert.Equal(cred.IssuerDID, issuerDID)
	assert.NotEmpty(cred.CredRevID)
	v, ok := cred.Value("First Name")
	assert.That(ok)
	assert.Equal(v.Raw, "Alice")

	stored, err := holder.Credential(ref)
	assert.NoError(err)
	assert.DeepEqual(stored.Signature, cred.Signature)
}

func TestIssueErrors(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	_, err := issuer.CreateOffer(ctx, "missing-cred-def")
	assert.Error(err)
	assert.That(errors.Is(err, ErrNotFound))

	offer := try.To1(issuer.CreateOffer(ctx, credDef.ID))
	req := try.To1(holder.CreateRequest(ctx, holderDID, offer))

	_, err = issuer.IssueCredential(ctx, offer, req, map[string]string{"email": "x"})
	assert.That(errors.Is(err, ErrMissingValue))

	other := *req
	other.OfferNonce = "123"
	_, err = issuer.IssueCredential(ctx, offer, &other, map[string]string{})
	assert.That(errors.Is(err, ErrOfferMismatch))

	cred := try.To1(issuer.IssueCredential(ctx, offer, req,
		map[string]string{"email": "x", "age": "1", "first name": "X"}))
	cred.Values["age"] = AttrValue{Raw: "99", Encoded: "99"}
	_, err = holder.StoreCredential(ctx, cred)
	assert.That(errors.Is(err, ErrInvalidCred))
}

func TestCreateOfferWithoutRevocationRegistry(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	cd, _ := try.To2(NewCredDef(ctx, issuer.wallet, issuerDID, schema, "NOREG", true))
	try.To(ledger.WriteCredentialDefinition(ctx, cd))

	_, err := issuer.CreateOffer(ctx, cd.ID)
	assert.That(errors.Is(err, ErrRevocationCheck))
}

func TestProofRoundTrip(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	issue(t, map[string]string{"email": "bob@example.com", "age": "42", "first name": "Bob"})

	tests := []struct {
		name     string
		req      *ProofRequest
		verified bool
	}{
		{"single attribute", &ProofRequest{
			Nonce: "1",
			RequestedAttributes: map[string]AttrInfo{
				"attr1": {Name: "email", Restrictions: []Restriction{{CredDefID: credDef.ID}}},
			},
		}, true},
		{"group and predicate", &ProofRequest{
			Nonce: "2",
			RequestedAttributes: map[string]AttrInfo{
				"group1": {Names: []string{"email", "first name"},
					Restrictions: []Restriction{{SchemaName: "email", IssuerDID: issuerDID}}},
			},
			RequestedPredicates: map[string]PredicateInfo{
				"pred1": {Name: "age", PType: PredicateGE, PValue: 42},
			},
		}, true},
		{"non revoked", &ProofRequest{
			Nonce:      "3",
			NonRevoked: &Interval{To: 1},
			RequestedAttributes: map[string]AttrInfo{
				"attr1": {Name: "age"},
			},
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.PushTester(t)
			defer assert.PopTester()

			creds, err := holder.QueryCredentials(ctx, tt.req)
			assert.NoError(err)
			sel := creds.FirstCandidates()
			proof, err := holder.CreateProof(ctx, tt.req, sel)
			assert.NoError(err)

			ok, err := issuer.VerifyProof(ctx, tt.req, proof)
			assert.NoError(err)
			assert.Equal(ok, tt.verified)

			wrongNonce := *tt.req
			wrongNonce.Nonce = "other"
			ok, err = issuer.VerifyProof(ctx, &wrongNonce, proof)
			assert.NoError(err)
			assert.ThatNot(ok)
		})
	}
}

func TestProofUnsatisfied(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	issue(t, map[string]string{"email": "carol@example.com", "age": "17", "first name": "Carol"})

	req := &ProofRequest{
		Nonce: "4",
		RequestedPredicates: map[string]PredicateInfo{
			"adult": {Name: "age", PType: PredicateGT, PValue: 100},
		},
	}
	creds, err := holder.QueryCredentials(ctx, req)
	assert.NoError(err)
	assert.SLen(creds.Predicates["adult"], 0)

	_, err = holder.CreateProof(ctx, req, creds.FirstCandidates())
	assert.That(errors.Is(err, ErrUnsatisfied))

	req = &ProofRequest{
		Nonce: "5",
		RequestedAttributes: map[string]AttrInfo{
			"attr1": {Name: "email", Restrictions: []Restriction{{IssuerDID: "someone else"}}},
		},
	}
	creds, err = holder.QueryCredentials(ctx, req)
	assert.NoError(err)
	assert.SLen(creds.Attrs["attr1"], 0)
}

func TestProofTampered(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	issue(t, map[string]string{"email": "dave@example.com", "age": "50", "first name": "Dave"})
	req := &ProofRequest{
		Nonce: "6",
		RequestedAttributes: map[string]AttrInfo{
			"attr1": {Name: "first name", Restrictions: []Restriction{{CredDefID: credDef.ID}}},
		},
	}
	creds := try.To1(holder.QueryCredentials(ctx, req))
	proof := try.To1(holder.CreateProof(ctx, req, creds.FirstCandidates()))

	revealed := proof.RequestedProof.RevealedAttrs["attr1"]
	revealed.Raw = "Mallory"
	proof.RequestedProof.RevealedAttrs["attr1"] = revealed
	ok, err := issuer.VerifyProof(ctx, req, proof)
	assert.NoError(err)
	assert.ThatNot(ok)
}

func TestSelfAttested(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	req := &ProofRequest{
		Nonce: "7",
		RequestedAttributes: map[string]AttrInfo{
			"nick": {Name: "nickname", SelfAttestAllowed: true},
		},
	}
	proof, err := holder.CreateProof(ctx, req, &Selection{
		SelfAttested: map[string]string{"nick": "bobby"},
	})
	assert.NoError(err)
	assert.Equal(proof.RequestedProof.SelfAttestedAttrs["nick"], "bobby")

	ok, err := issuer.VerifyProof(ctx, req, proof)
	assert.NoError(err)
	assert.That(ok)

	req.RequestedAttributes["nick"] = AttrInfo{Name: "nickname"}
	ok, err = issuer.VerifyProof(ctx, req, proof)
	assert.NoError(err)
	assert.ThatNot(ok)
}

func TestRevokedCredential(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	cred, ref := issue(t, map[string]string{"email": "eve@example.com", "age": "33", "first name": "Eve"})
	req := &ProofRequest{
		Nonce:      "8",
		NonRevoked: &Interval{},
		RequestedAttributes: map[string]AttrInfo{
			"attr1": {Name: "email"},
		},
	}
	proof := try.To1(holder.CreateProof(ctx, req, &Selection{Attrs: map[string]string{"attr1": ref}}))

	ok, err := issuer.VerifyProof(ctx, req, proof)
	assert.NoError(err)
	assert.That(ok)

	try.To(ledger.Revoke(ctx, revReg.ID, cred.CredRevID))
	rr := try.To1(ledger.ResolveRevocationRegistry(ctx, revReg.ID))
	assert.That(rr.IsRevoked(cred.CredRevID))

	ok, err = issuer.VerifyProof(ctx, req, proof)
	assert.NoError(err)
	assert.ThatNot(ok)

	req.NonRevoked = nil
	ok, err = issuer.VerifyProof(ctx, req, proof)
	assert.NoError(err)
	assert.That(ok)
}

func TestProofRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  ProofRequest
		ok   bool
	}{
		{"attribute", ProofRequest{RequestedAttributes: map[string]AttrInfo{"a": {Name: "email"}}}, true},
		{"group", ProofRequest{RequestedAttributes: map[string]AttrInfo{"a": {Names: []string{"email", "age"}}}}, true},
		{"predicate", ProofRequest{RequestedPredicates: map[string]PredicateInfo{"p": {Name: "age", PType: PredicateGE, PValue: 18}}}, true},
		{"empty", ProofRequest{}, false},
		{"name and names", ProofRequest{RequestedAttributes: map[string]AttrInfo{"a": {Name: "x", Names: []string{"y"}}}}, false},
		{"no name", ProofRequest{RequestedAttributes: map[string]AttrInfo{"a": {}}}, false},
		{"predicate type", ProofRequest{RequestedPredicates: map[string]PredicateInfo{"p": {Name: "age", PType: "=="}}}, false},
		{"predicate name", ProofRequest{RequestedPredicates: map[string]PredicateInfo{"p": {PType: PredicateLT}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.PushTester(t)
			defer assert.PopTester()

			err := tt.req.Validate()
			if tt.ok {
				assert.NoError(err)
			} else {
				assert.Error(err)
			}
		})
	}
}

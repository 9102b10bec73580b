// Package ssi implements the wallet of the agent: local identities, their
// key material and the signatures made with them.
package ssi

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/findy-network/findy-exchange/agent/storage/api"
	"github.com/golang/glog"
	cryptoapi "github.com/hyperledger/aries-framework-go/pkg/crypto"
	"github.com/hyperledger/aries-framework-go/pkg/doc/util/jwkkid"
	"github.com/hyperledger/aries-framework-go/pkg/kms"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/mr-tron/base58"
)

// Identity is a local DID and its verification key. KID is the key ID in the
// KMS and it's empty for the identities of the other end.
type Identity struct {
	DID    string `json:"did"`
	VerKey string `json:"verkey"`
	KID    string `json:"kid,omitempty"`
}

// Wallet is the signing capability the protocols need from the agent.
type Wallet interface {
	CreateLocalIdentity(ctx context.Context) (Identity, error)
	Sign(ctx context.Context, verKey string, data []byte) ([]byte, error)
	Verify(ctx context.Context, verKey string, data, sig []byte) (bool, error)
}

// KMSWallet keeps the keys in the KMS of the agent storage. DIDs are the
// base58 of the first 16 bytes of the verkey like in Indy.
type KMSWallet struct {
	kms    kms.KeyManager
	crypto cryptoapi.Crypto
	cache  Cache
}

var _ Wallet = (*KMSWallet)(nil)

func NewWallet(s api.AgentStorage) *KMSWallet {
	return &KMSWallet{
		kms:    s.KMS(),
		crypto: s.Crypto(),
	}
}

func (w *KMSWallet) CreateLocalIdentity(ctx context.Context) (id Identity, err error) {
	defer err2.Handle(&err, "create local identity")

	try.To(ctx.Err())

	kid, pub := try.To2(w.kms.CreateAndExportPubKeyBytes(kms.ED25519Type))
	id = Identity{
		DID:    base58.Encode(pub[:16]),
		VerKey: base58.Encode(pub),
		KID:    kid,
	}
	w.cache.Add(&id)
	glog.V(3).Infoln("new local identity:", id.DID)
	return id, nil
}

func (w *KMSWallet) Sign(ctx context.Context, verKey string, data []byte) (sig []byte, err error) {
	defer err2.Handle(&err, "sign with %s", verKey)

	try.To(ctx.Err())

	kid := try.To1(w.kid(verKey))
	kh := try.To1(w.kms.Get(kid))
	return w.crypto.Sign(data, kh)
}

// Verify returns false without an error when the signature doesn't match.
// Errors are reserved for malformed keys.
func (w *KMSWallet) Verify(ctx context.Context, verKey string, data, sig []byte) (ok bool, err error) {
	defer err2.Handle(&err, "verify with %s", verKey)

	try.To(ctx.Err())

	pub := try.To1(pubKey(verKey))
	kh := try.To1(w.kms.PubKeyBytesToHandle(pub, kms.ED25519Type))
	if err := w.crypto.Verify(sig, data, kh); err != nil {
		glog.V(3).Infoln("signature verification failed:", err)
		return false, nil
	}
	return true, nil
}

func (w *KMSWallet) kid(verKey string) (string, error) {
	if id := w.cache.Get(verKey); id != nil && id.KID != "" {
		return id.KID, nil
	}
	pub, err := pubKey(verKey)
	if err != nil {
		return "", err
	}
	kid, err := jwkkid.CreateKID(pub, kms.ED25519Type)
	if err != nil {
		return "", err
	}
	w.cache.LazyAdd(verKey, &Identity{VerKey: verKey, KID: kid})
	return kid, nil
}

func pubKey(verKey string) ([]byte, error) {
	pub, err := base58.Decode(verKey)
	if err != nil {
		return nil, err
	}
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("verkey length %d", len(pub))
	}
	return pub, nil
}

package ssi

import (
	"strings"

	"github.com/hyperledger/aries-framework-go/pkg/vdr/fingerprint"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/mr-tron/base58"
)

// DIDKey returns the did:key of the base58 verkey.
func DIDKey(verKey string) (didKey string, err error) {
	defer err2.Handle(&err, "did:key of %s", verKey)

	pub := try.To1(pubKey(verKey))
	didKey, _ = fingerprint.CreateDIDKey(pub)
	return didKey, nil
}

// VerKeyFromDIDKey returns the base58 verkey of the did:key.
func VerKeyFromDIDKey(didKey string) (verKey string, err error) {
	defer err2.Handle(&err, "verkey of %s", didKey)

	pub := try.To1(fingerprint.PubKeyFromDIDKey(didKey))
	return base58.Encode(pub), nil
}

// RecipientVerKey accepts both did:key and raw base58 verkeys.
func RecipientVerKey(key string) (string, error) {
	if strings.HasPrefix(key, didKeyPrefix) {
		return VerKeyFromDIDKey(key)
	}
	_, err := pubKey(key)
	return key, err
}

const didKeyPrefix = "did:key:"

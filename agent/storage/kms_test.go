package storage

import (
	"context"
	"testing"

	"github.com/findy-network/findy-exchange/agent/ssi"
	"github.com/findy-network/findy-exchange/std/decorator"
	"github.com/findy-network/findy-exchange/std/didexchange"
	"github.com/google/tink/go/keyset"
	"github.com/hyperledger/aries-framework-go/pkg/doc/util/jwkkid"
	"github.com/hyperledger/aries-framework-go/pkg/kms"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
	"github.com/mr-tron/base58"
)

func assertKeyset(km kms.KeyManager, kid string) {
	kh, err := km.Get(kid)
	assert.NoError(err)
	primitives, err := kh.(*keyset.Handle).Primitives()
	assert.NoError(err)
	assert.MNotEmpty(primitives.Entries)
}

// The pairwise keys the wallet creates live in the storage KMS and survive
// closing the storage.
func TestKMS_WalletIdentity(t *testing.T) {
	for index := range kmsTestStorages {
		testCase := kmsTestStorages[index]
		t.Run(testCase.name, func(t *testing.T) {
			assert.PushTester(t)
			defer assert.PopTester()

			ctx := context.Background()
			w := ssi.NewWallet(testCase.storage)
			id := try.To1(w.CreateLocalIdentity(ctx))
			pub := try.To1(base58.Decode(id.VerKey))
			assert.Equal(try.To1(jwkkid.CreateKID(pub, kms.ED25519Type)), id.KID)
			assertKeyset(testCase.storage.KMS(), id.KID)

			data := []byte("connection~sig")
			sig := try.To1(w.Sign(ctx, id.VerKey, data))

			assert.NoError(testCase.storage.Close())
			assert.NoError(testCase.storage.Open())

			assertKeyset(testCase.storage.KMS(), id.KID)
			exported, _, err := testCase.storage.KMS().ExportPubKeyBytes(id.KID)
			assert.NoError(err)
			assert.DeepEqual(exported, pub)

			// a new wallet finds the key by the verkey alone
			reopened := ssi.NewWallet(testCase.storage)
			assert.DeepEqual(try.To1(reopened.Sign(ctx, id.VerKey, data)), sig)
			assert.That(try.To1(reopened.Verify(ctx, id.VerKey, data, sig)))
			assert.ThatNot(try.To1(reopened.Verify(ctx, id.VerKey, []byte("other"), sig)))
		})
	}
}

// The connection response is signed and verified with the KMS keys of two
// different storages.
func TestKMS_ConnectionSignature(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ctx := context.Background()
	inviter := ssi.NewWallet(memTestStorage)
	invitee := ssi.NewWallet(kmsTestStorages[0].storage)

	invitationKey := try.To1(inviter.CreateLocalIdentity(ctx))
	pairwise := try.To1(inviter.CreateLocalIdentity(ctx))
	assert.NotEqual(invitationKey.KID, pairwise.KID)

	res := didexchange.NewResponse(&decorator.Thread{ID: "thread-1"},
		didexchange.NewConnection(pairwise.DID, pairwise.VerKey, "http://localhost/inviter", nil))
	assert.NoError(didexchange.Sign(ctx, res, inviter, invitationKey.VerKey))
	assert.NoError(didexchange.Verify(ctx, res, invitee, invitationKey.VerKey))
	assert.Error(didexchange.Verify(ctx, res, invitee, pairwise.VerKey))

	// the invitee's KMS has no private part of the inviter's keys
	_, err := invitee.Sign(ctx, invitationKey.VerKey, []byte("data"))
	assert.Error(err)
}

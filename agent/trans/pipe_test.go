package trans_test

import (
	"context"
	"testing"

	"github.com/findy-network/findy-exchange/agent/ssi"
	"github.com/findy-network/findy-exchange/agent/storage/mgddb"
	"github.com/findy-network/findy-exchange/agent/trans"
	"github.com/findy-network/findy-exchange/agent/vdr"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

type endpoint struct {
	pipe *trans.Pipe
	id   ssi.Identity
}

func newEndpoint(t *testing.T, relay trans.Transport) endpoint {
	t.Helper()
	storage := try.To1(mgddb.NewMemory())
	registry := try.To1(vdr.New(storage))
	packager := try.To1(mgddb.NewPackager(storage, registry.Registry()))
	id := try.To1(ssi.NewWallet(storage).CreateLocalIdentity(context.Background()))
	return endpoint{pipe: trans.NewPipe(relay, packager), id: id}
}

func TestPipe(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ctx := context.Background()
	relay := trans.NewRelay()
	alice := newEndpoint(t, relay)
	bob := newEndpoint(t, relay)

	payload := []byte(`{"@type":"https://didcomm.org/trust_ping/1.0/ping","@id":"p1"}`)
	msg := try.To1(trans.NewMessage("", "", alice.id.VerKey, payload))
	assert.NoError(alice.pipe.Send(ctx, bob.id.VerKey, msg))

	sealed := try.To1(relay.Download(ctx, trans.Filter{Owners: []string{bob.id.VerKey}}))
	assert.SLen(sealed, 1)
	assert.NotDeepEqual(sealed[0].Payload, payload)
	assert.Equal(sealed[0].Type, "")

	opened := try.To1(bob.pipe.Download(ctx, trans.Filter{Owners: []string{bob.id.VerKey}}))
	assert.SLen(opened, 1)
	assert.DeepEqual(opened[0].Payload, payload)
	assert.Equal(opened[0].Sender, alice.id.VerKey)
	assert.Equal(opened[0].ThreadID, "p1")
	assert.Equal(opened[0].Owner, bob.id.VerKey)

	// alice cannot open the message of bob
	none := try.To1(alice.pipe.Download(ctx, trans.Filter{Owners: []string{bob.id.VerKey}}))
	assert.SLen(none, 0)

	assert.NoError(bob.pipe.MarkConsumed(ctx, bob.id.VerKey, []string{opened[0].UID}))
	left := try.To1(bob.pipe.Download(ctx, trans.Filter{
		Status: trans.StatusReceived,
		Owners: []string{bob.id.VerKey},
	}))
	assert.SLen(left, 0)
}

func TestPipe_NoSender(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	relay := trans.NewRelay()
	alice := newEndpoint(t, relay)
	msg := try.To1(trans.NewMessage("", "", "", []byte(`{"@type":"t","@id":"1"}`)))
	assert.Error(alice.pipe.Send(context.Background(), alice.id.VerKey, msg))
}

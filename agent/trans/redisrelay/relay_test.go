package redisrelay_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/findy-network/findy-exchange/agent/trans"
	"github.com/findy-network/findy-exchange/agent/trans/redisrelay"
	"github.com/lainio/err2/assert"
	backend "github.com/redis/go-redis/v9"
)

func newRelay(t *testing.T, opts ...redisrelay.Option) (*redisrelay.Relay, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	return redisrelay.NewFromClient(client, opts...), mr
}

func msg(uid, thid string) trans.Message {
	payload := []byte(`{"@type":"https://didcomm.org/trust_ping/1.0/ping","@id":"` +
		uid + `","~thread":{"thid":"` + thid + `"}}`)
	m, _ := trans.NewMessage(uid, "", "sender", payload)
	return m
}

func TestRelay_SendDownloadConsume(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	relay, mr := newRelay(t)
	defer mr.Close()
	ctx := context.Background()

	assert.NoError(relay.Send(ctx, "bob", msg("1", "t1")))
	assert.NoError(relay.Send(ctx, "bob", msg("2", "t2")))
	assert.NoError(relay.Send(ctx, "alice", msg("3", "t3")))
	assert.Error(relay.Send(ctx, "", msg("4", "t4")))

	msgs, err := relay.Download(ctx, trans.Filter{Owners: []string{"bob"}})
	assert.NoError(err)
	assert.SLen(msgs, 2)
	assert.Equal(msgs[0].UID, "1")
	assert.Equal(msgs[1].ThreadID, "t2")
	assert.Equal(msgs[0].Status, trans.StatusReceived)

	all, err := relay.Download(ctx, trans.Filter{})
	assert.NoError(err)
	assert.SLen(all, 3)

	assert.NoError(relay.MarkConsumed(ctx, "bob", []string{"1"}))
	err = relay.MarkConsumed(ctx, "alice", []string{"2"})
	assert.That(errors.Is(err, trans.ErrUnknownOwner))

	pending, err := relay.Download(ctx, trans.Filter{
		Status: trans.StatusReceived,
		Owners: []string{"bob"},
	})
	assert.NoError(err)
	assert.SLen(pending, 1)
	assert.Equal(pending[0].UID, "2")

	byUID, err := relay.Download(ctx, trans.Filter{UIDs: []string{"1"}})
	assert.NoError(err)
	assert.SLen(byUID, 1)
	assert.Equal(byUID[0].Status, trans.StatusReviewed)

	// the mailbox has only the pending ones
	box, err := mr.List("exchange:relay:box:bob")
	assert.NoError(err)
	assert.DeepEqual(box, []string{"2"})
	reviewed, err := mr.List("exchange:relay:reviewed:bob")
	assert.NoError(err)
	assert.DeepEqual(reviewed, []string{"1"})
	assert.Equal(mr.TTL("exchange:relay:msg:1"), time.Hour)

	// consuming twice changes nothing
	assert.NoError(relay.MarkConsumed(ctx, "bob", []string{"1"}))
	reviewed, _ = mr.List("exchange:relay:reviewed:bob")
	assert.SLen(reviewed, 1)
}

func TestRelay_Reviewed(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	relay, mr := newRelay(t, redisrelay.WithReviewed(2), redisrelay.WithRetention(time.Minute))
	defer mr.Close()
	ctx := context.Background()

	for _, uid := range []string{"1", "2", "3", "4"} {
		assert.NoError(relay.Send(ctx, "bob", msg(uid, "t"+uid)))
	}
	assert.NoError(relay.MarkConsumed(ctx, "bob", []string{"1", "2", "3"}))

	reviewed, err := mr.List("exchange:relay:reviewed:bob")
	assert.NoError(err)
	assert.DeepEqual(reviewed, []string{"2", "3"})

	pending, err := relay.Download(ctx, trans.Filter{Status: trans.StatusReceived})
	assert.NoError(err)
	assert.SLen(pending, 1)
	assert.Equal(pending[0].UID, "4")

	all, err := relay.Download(ctx, trans.Filter{Owners: []string{"bob"}})
	assert.NoError(err)
	assert.SLen(all, 3)

	// the reviewed copies expire with the retention
	mr.FastForward(2 * time.Minute)
	all, err = relay.Download(ctx, trans.Filter{Owners: []string{"bob"}})
	assert.NoError(err)
	assert.SLen(all, 1)
	reviewed, _ = mr.List("exchange:relay:reviewed:bob")
	assert.SLen(reviewed, 0)
}

func TestRelay_TTL(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	relay, mr := newRelay(t, redisrelay.WithTTL(time.Minute), redisrelay.WithPrefix("test:"))
	defer mr.Close()
	ctx := context.Background()

	assert.NoError(relay.Send(ctx, "bob", msg("1", "t1")))
	assert.That(mr.Exists("test:msg:1"))

	mr.FastForward(2 * time.Minute)

	msgs, err := relay.Download(ctx, trans.Filter{Owners: []string{"bob"}})
	assert.NoError(err)
	assert.SLen(msgs, 0)
	assert.NoError(relay.MarkConsumed(ctx, "bob", []string{"1"}))
}

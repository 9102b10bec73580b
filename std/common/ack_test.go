package common

import (
	"encoding/json"
	"testing"

	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/std/decorator"
	"github.com/lainio/err2/assert"
)

func TestNewAck(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ack := NewAck("", decorator.NewThread("thid", ""))
	assert.Equal(ack.Type, pltype.NotificationAck)
	assert.Equal(ack.Status, AckStatusOK)
	assert.NotEmpty(ack.ID)

	ack = NewAck(pltype.PresentProofACK, nil)
	assert.Equal(ack.Type, pltype.PresentProofACK)
}

func TestAckJSON(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ackJSON := `{"@type":"did:sov:BzCbsNYhMrjHiqZDTUASHg;spec/notification/1.0/ack",
"@id":"id-1","status":"OK","~thread":{"thid":"thread-1","sender_order":1}}`
	var ack Ack
	assert.NoError(json.Unmarshal([]byte(ackJSON), &ack))
	assert.Equal(ack.Thread.ID, "thread-1")
	assert.Equal(ack.Thread.SenderOrder, 1)
	assert.Equal(ack.Status, AckStatusOK)
}

package trustping

import (
	"testing"

	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/lainio/err2/assert"
)

func TestNewResponse(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	p := NewPing("hi", true)
	assert.Equal(p.Type, pltype.TrustPingPing)
	assert.That(p.ResponseRequested)

	r := NewResponse(p)
	assert.Equal(r.Type, pltype.TrustPingResponse)
	assert.Equal(r.Thread.ID, p.ID)

	r = NewResponse(&Ping{ID: "no-thread"})
	assert.Equal(r.Thread.ID, "no-thread")
}

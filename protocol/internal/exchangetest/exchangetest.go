// Package exchangetest runs agents in one process for the protocol tests.
// The agents share a relay and a ledger, everything else is their own.
package exchangetest

import (
	"context"
	"testing"

	"github.com/findy-network/findy-exchange/agent/prot"
	"github.com/findy-network/findy-exchange/agent/psm"
	"github.com/findy-network/findy-exchange/agent/ssi"
	"github.com/findy-network/findy-exchange/agent/storage/api"
	"github.com/findy-network/findy-exchange/agent/storage/mgddb"
	"github.com/findy-network/findy-exchange/agent/trans"
	"github.com/findy-network/findy-exchange/agent/vc"
	"github.com/findy-network/findy-exchange/agent/vdr"
	"github.com/findy-network/findy-exchange/protocol/connection"
	"github.com/findy-network/findy-exchange/std/didexchange/invitation"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

type Network struct {
	Relay  *trans.Relay
	Ledger *vc.StoreLedger

	// Sealed agents encrypt their messages on the relay.
	Sealed bool
}

func NewNetwork() *Network {
	ledgerStorage := try.To1(mgddb.NewMemory())
	return &Network{
		Relay:  trans.NewRelay(),
		Ledger: vc.NewLedger(try.To1(ledgerStorage.OpenStore(api.NameLedger))),
	}
}

// Agent builds an agent with memory storage.
func (n *Network) Agent(label string) *prot.Agent {
	storage := try.To1(mgddb.NewMemory())
	wallet := ssi.NewWallet(storage)

	var tr trans.Transport = n.Relay
	if n.Sealed {
		registry := try.To1(vdr.New(storage))
		packager := try.To1(mgddb.NewPackager(storage, registry.Registry()))
		tr = trans.NewPipe(n.Relay, packager)
	}
	return &prot.Agent{
		ID:        label,
		Label:     label,
		Endpoint:  "http://localhost:8080/" + label,
		Transport: tr,
		Wallet:    wallet,
		Store:     try.To1(psm.New(storage)),
		Ledger:    n.Ledger,
		Creds:     vc.NewEngine(wallet, n.Ledger, try.To1(storage.OpenStore(api.NameCredential))),
	}
}

// CredDef writes a schema and a credential definition of the issuer to the
// ledger.
func (n *Network) CredDef(issuer *prot.Agent, name string, attrs []string, revocable bool) *vc.CredDef {
	ctx := context.Background()
	id := try.To1(issuer.Wallet.CreateLocalIdentity(ctx))
	schema := vc.NewSchema(id.DID, name, "1.0", attrs)
	try.To(n.Ledger.WriteSchema(ctx, schema))
	credDef, revReg := try.To2(vc.NewCredDef(ctx, issuer.Wallet, id.DID, schema, "T1", revocable))
	try.To(n.Ledger.WriteCredentialDefinition(ctx, credDef))
	if revReg != nil {
		try.To(n.Ledger.WriteRevocationRegistry(ctx, revReg))
	}
	return credDef
}

// Connect runs the Aries handshake between the agents and returns both ends
// accepted.
func Connect(t testing.TB, inviter, invitee *prot.Agent) (*connection.Connection, *connection.Connection) {
	t.Helper()
	ctx := context.Background()

	ours := try.To1(connection.Create(ctx, inviter, "inviter", prot.Aries))
	payload := try.To1(ours.Connect(ctx))
	inv := try.To1(invitation.Parse(payload))

	theirs := try.To1(connection.CreateFromInvitation(ctx, invitee, "invitee", inv))
	try.To1(theirs.Connect(ctx))

	assert.Equal(try.To1(ours.UpdateState(ctx)), prot.StateRequestReceived)
	assert.Equal(try.To1(theirs.UpdateState(ctx)), prot.StateAccepted)
	assert.Equal(try.To1(ours.UpdateState(ctx)), prot.StateAccepted)
	return ours, theirs
}

package demo

import (
	"context"
	"fmt"
	"io"

	"github.com/findy-network/findy-exchange/agent/prot"
	"github.com/findy-network/findy-exchange/agent/psm"
	"github.com/findy-network/findy-exchange/agent/ssi"
	"github.com/findy-network/findy-exchange/agent/storage/api"
	"github.com/findy-network/findy-exchange/agent/storage/cfg"
	"github.com/findy-network/findy-exchange/agent/storage/mgddb"
	"github.com/findy-network/findy-exchange/agent/trans"
	"github.com/findy-network/findy-exchange/agent/trans/redisrelay"
	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/findy-network/findy-exchange/agent/vc"
	"github.com/findy-network/findy-exchange/agent/vdr"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

type openStorage struct {
	cfg    *cfg.AgentStorage
	handle int
}

// network is what the demo agents share: the relay, the ledger and the
// notifier. Every agent has its own storage.
type network struct {
	Cmd

	relay    trans.Transport
	closer   io.Closer
	ledger   *vc.StoreLedger
	notifier *prot.Notifier

	// run separates the agents of the runs sharing a storage path
	run    string
	opened []openStorage
}

func newNetwork(c Cmd, notifier *prot.Notifier) (n *network, err error) {
	defer err2.Handle(&err, "demo network")

	n = &network{
		Cmd:      c,
		notifier: notifier,
		run:      utils.UUID()[:8],
	}
	switch c.Relay {
	case RelayRedis:
		r := redisrelay.New(c.RedisAddr, redisrelay.WithPrefix(c.RedisPrefix))
		n.relay, n.closer = r, r
	default:
		n.relay = trans.NewRelay()
	}
	ledgerStorage := try.To1(n.open("ledger"))
	n.ledger = vc.NewLedger(try.To1(ledgerStorage.OpenStore(api.NameLedger)))
	return n, nil
}

func (n *network) open(name string) (s *mgddb.Storage, err error) {
	defer err2.Handle(&err, "open storage %s", name)

	sc := &cfg.AgentStorage{AgentStorageConfig: api.AgentStorageConfig{
		AgentKey: n.StorageKey,
		AgentID:  name + "-" + n.run,
		FilePath: n.StoragePath,
	}}
	h := try.To1(sc.OpenStorage())
	n.opened = append(n.opened, openStorage{cfg: sc, handle: h})
	s = cfg.Storage(h)
	if s == nil {
		return nil, fmt.Errorf("no storage for handle %d", h)
	}
	return s, nil
}

// agent builds the agent of the label. A sealed agent packs its messages
// before they go to the relay.
func (n *network) agent(label string) (a *prot.Agent, err error) {
	defer err2.Handle(&err, "agent %s", label)

	storage := try.To1(n.open(label))
	wallet := ssi.NewWallet(storage)

	tr := n.relay
	if n.Sealed {
		registry := try.To1(vdr.New(storage))
		packager := try.To1(mgddb.NewPackager(storage, registry.Registry()))
		tr = trans.NewPipe(n.relay, packager)
	}
	return &prot.Agent{
		ID:        label + "-" + n.run,
		Label:     label,
		Endpoint:  "http://localhost:8080/" + label,
		Transport: tr,
		Wallet:    wallet,
		Store:     try.To1(psm.New(storage)),
		Ledger:    n.ledger,
		Creds:     vc.NewEngine(wallet, n.ledger, try.To1(storage.OpenStore(api.NameCredential))),
		Notifier:  n.notifier,
	}, nil
}

// credDef writes a schema and a credential definition of the issuer to the
// ledger.
func (n *network) credDef(ctx context.Context, issuer *prot.Agent, name string, attrs []string, revocable bool) (cd *vc.CredDef, err error) {
	defer err2.Handle(&err, "credential definition %s", name)

	id := try.To1(issuer.Wallet.CreateLocalIdentity(ctx))
	schema := vc.NewSchema(id.DID, name, "1.0", attrs)
	try.To(n.ledger.WriteSchema(ctx, schema))
	cd, revReg := try.To2(vc.NewCredDef(ctx, issuer.Wallet, id.DID, schema, "T1", revocable))
	try.To(n.ledger.WriteCredentialDefinition(ctx, cd))
	if revReg != nil {
		try.To(n.ledger.WriteRevocationRegistry(ctx, revReg))
	}
	return cd, nil
}

func (n *network) close() {
	for _, o := range n.opened {
		if err := o.cfg.CloseStorage(o.handle); err != nil {
			glog.Warningln("close storage:", err)
		}
	}
	n.opened = nil
	if n.closer != nil {
		if err := n.closer.Close(); err != nil {
			glog.Warningln("close relay:", err)
		}
	}
}

// Package vdr wires the verifiable data registries the packager uses to
// resolve the keys of the DIDComm envelopes.
package vdr

import (
	"github.com/hyperledger/aries-framework-go/pkg/framework/aries/api/vdr"
	registry "github.com/hyperledger/aries-framework-go/pkg/vdr"
	"github.com/hyperledger/aries-framework-go/pkg/vdr/key"
	"github.com/hyperledger/aries-framework-go/pkg/vdr/peer"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

type VDR struct {
	registry vdr.Registry

	keyVDR  vdr.VDR
	peerVDR vdr.VDR
}

func New(provider storage.Provider) (v *VDR, err error) {
	defer err2.Handle(&err, "vdr new")

	v = &VDR{
		keyVDR:  &key.VDR{},
		peerVDR: try.To1(peer.New(provider)),
	}
	v.registry = registry.New(
		registry.WithVDR(v.keyVDR),
		registry.WithVDR(v.peerVDR),
	)
	return v, nil
}

func (v *VDR) Key() vdr.VDR {
	return v.keyVDR
}

func (v *VDR) Peer() vdr.VDR {
	return v.peerVDR
}

func (v *VDR) Registry() vdr.Registry {
	return v.registry
}

package vc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/golang/glog"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

var ErrNotFound = errors.New("ledger object not found")

// Ledger is the read side of the ledger the protocols need.
type Ledger interface {
	ResolveSchema(ctx context.Context, id string) (*Schema, error)
	ResolveCredentialDefinition(ctx context.Context, id string) (*CredDef, error)
	ResolveRevocationRegistry(ctx context.Context, id string) (*RevocationRegistry, error)
}

// Revoker is the write side of the revocation registries.
type Revoker interface {
	Revoke(ctx context.Context, regID, credRevID string) error
}

const (
	kindSchema  = "schema"
	kindCredDef = "cred_def"
	kindRevReg  = "rev_reg"
)

// StoreLedger keeps the ledger objects in an aries storage. It's the ledger
// of the demos and tests, and it's shared by all the agents which open the
// same store.
type StoreLedger struct {
	store storage.Store
}

var (
	_ Ledger  = (*StoreLedger)(nil)
	_ Revoker = (*StoreLedger)(nil)
)

func NewLedger(store storage.Store) *StoreLedger {
	return &StoreLedger{store: store}
}

func (l *StoreLedger) WriteSchema(_ context.Context, s *Schema) error {
	return l.write(kindSchema, s.ID, s)
}

func (l *StoreLedger) WriteCredentialDefinition(_ context.Context, cd *CredDef) error {
	return l.write(kindCredDef, cd.ID, cd)
}

func (l *StoreLedger) WriteRevocationRegistry(_ context.Context, rr *RevocationRegistry) error {
	rr.Timestamp = time.Now().Unix()
	return l.write(kindRevReg, rr.ID, rr)
}

// Revoke adds the credential revocation ID to the registry.
func (l *StoreLedger) Revoke(ctx context.Context, regID, credRevID string) (err error) {
	defer err2.Handle(&err, "revoke %s", credRevID)

	rr := try.To1(l.ResolveRevocationRegistry(ctx, regID))
	if rr.IsRevoked(credRevID) {
		return nil
	}
	rr.Revoked = append(rr.Revoked, credRevID)
	glog.V(1).Infof("revoked %s from %s", credRevID, regID)
	return l.WriteRevocationRegistry(ctx, rr)
}

func (l *StoreLedger) ResolveSchema(_ context.Context, id string) (*Schema, error) {
	s := new(Schema)
	if err := l.read(kindSchema, id, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (l *StoreLedger) ResolveCredentialDefinition(_ context.Context, id string) (*CredDef, error) {
	cd := new(CredDef)
	if err := l.read(kindCredDef, id, cd); err != nil {
		return nil, err
	}
	return cd, nil
}

func (l *StoreLedger) ResolveRevocationRegistry(_ context.Context, id string) (*RevocationRegistry, error) {
	rr := new(RevocationRegistry)
	if err := l.read(kindRevReg, id, rr); err != nil {
		return nil, err
	}
	return rr, nil
}

func (l *StoreLedger) write(kind, id string, v interface{}) error {
	glog.V(5).Infoln("ledger write", kind, id)
	return l.store.Put(kind+"|"+id, dto.ToJSONBytes(v),
		storage.Tag{Name: "kind", Value: kind})
}

func (l *StoreLedger) read(kind, id string, v interface{}) (err error) {
	defer err2.Handle(&err, "resolve %s %s", kind, id)

	if id == "" {
		return fmt.Errorf("empty id: %w", ErrNotFound)
	}
	data, err := l.store.Get(kind + "|" + id)
	if errors.Is(err, storage.ErrDataNotFound) {
		return ErrNotFound
	}
	try.To(err)
	dto.FromJSON(data, v)
	return nil
}

// Package mgddb implements the agent storage on top of the managed bolt DB
// wrapper. The same storage can be run in memory for tests and demos.
package mgddb

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/findy-network/findy-exchange/agent/storage/api"
	"github.com/findy-network/findy-exchange/agent/storage/wrapper"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	cryptoapi "github.com/hyperledger/aries-framework-go/pkg/crypto"
	"github.com/hyperledger/aries-framework-go/pkg/crypto/tinkcrypto"
	"github.com/hyperledger/aries-framework-go/pkg/kms"
	"github.com/hyperledger/aries-framework-go/pkg/kms/localkms"
	"github.com/hyperledger/aries-framework-go/pkg/secretlock"
	"github.com/hyperledger/aries-framework-go/pkg/secretlock/noop"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

type Storage struct {
	storage.Provider

	open     func() error
	keys     kms.KeyManager
	keyStore kms.Store
	crypto   cryptoapi.Crypto
}

// keyLockURI names the primary key of the local KMS. The keys are stored in
// the agent storage which the agent key already encrypts, so the KMS doesn't
// lock them again.
const keyLockURI = "local-lock://primary/exchange/"

// New returns the file based storage. The key is the hex encoded storage key,
// empty key leaves the data unencrypted.
func New(config api.AgentStorageConfig) (a *Storage, err error) {
	defer err2.Handle(&err, "afgo storage new")

	provider := wrapper.New(wrapper.Config{
		Key:       config.AgentKey,
		FileName:  config.AgentID,
		FilePath:  config.FilePath,
		BucketIDs: api.BucketIDs,
	})
	try.To(provider.Init())

	return newStorage(provider, provider.Init)
}

// NewMemory returns storage which lives only as long as the process.
func NewMemory() (a *Storage, err error) {
	defer err2.Handle(&err, "memory storage new")

	return newStorage(mem.NewProvider(), func() error { return nil })
}

func newStorage(provider storage.Provider, open func() error) (a *Storage, err error) {
	defer err2.Handle(&err)

	me := &Storage{
		Provider: provider,
		open:     open,
	}
	me.keyStore = try.To1(kms.NewAriesProviderWrapper(me))
	me.keys = try.To1(localkms.New(keyLockURI, me))
	me.crypto = try.To1(tinkcrypto.New())
	return me, nil
}

// GenerateKey returns a new random storage key in hex.
func GenerateKey() string {
	key := make([]byte, 32)
	try.To1(rand.Read(key))
	return hex.EncodeToString(key)
}

func (s *Storage) Open() error {
	return s.open()
}

// KMS returns the key manager of the wallet keys.
func (s *Storage) KMS() kms.KeyManager {
	return s.keys
}

// StorageProvider is where the local KMS keeps the keys.
func (s *Storage) StorageProvider() kms.Store {
	return s.keyStore
}

func (s *Storage) SecretLock() secretlock.Service {
	return &noop.NoLock{}
}

func (s *Storage) Crypto() cryptoapi.Crypto {
	return s.crypto
}

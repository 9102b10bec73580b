// Package api defines the contract of the agent storage: the aries
// storage provider, key manager and the message packager built on top of
// them.
package api

import (
	cryptoapi "github.com/hyperledger/aries-framework-go/pkg/crypto"
	"github.com/hyperledger/aries-framework-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-framework-go/pkg/kms"
	"github.com/hyperledger/aries-framework-go/spi/storage"
)

// Bucket names of the agent storage.
const (
	NameKey        = "kmsdb"
	NameVDRPeer    = "peer"
	NameRecord     = "record"
	NameThread     = "thread"
	NameCredential = "credential"
	NameLedger     = "ledger"
)

var BucketIDs = []string{
	NameKey,
	NameVDRPeer,
	NameRecord,
	NameThread,
	NameCredential,
	NameLedger,
}

type AgentStorageConfig struct {
	AgentKey string
	AgentID  string
	FilePath string
}

type AgentStorage interface {
	storage.Provider

	Open() error

	KMS() kms.KeyManager
	Crypto() cryptoapi.Crypto
}

type Packager interface {
	UnpackMessage(encMessage []byte) (*transport.Envelope, error)
	PackMessage(messageEnvelope *transport.Envelope) ([]byte, error)
}

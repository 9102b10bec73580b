package didexchange

const (
	didContext        = "https://w3id.org/did/v1"
	keyType           = "Ed25519VerificationKey2018"
	authType          = "Ed25519SignatureAuthentication2018"
	ServiceTypeIndy   = "IndyAgent"
	ServiceTypeDIDCom = "did-communication"
	sovPrefix         = "did:sov:"
)

// Doc is the DID document carried in connection messages.
type Doc struct {
	Context        string               `json:"@context,omitempty"`
	ID             string               `json:"id,omitempty"`
	PublicKey      []PublicKey          `json:"publicKey,omitempty"`
	Service        []Service            `json:"service,omitempty"`
	Authentication []VerificationMethod `json:"authentication,omitempty"`
}

// PublicKey DID doc public key
type PublicKey struct {
	ID              string `json:"id,omitempty"`
	Type            string `json:"type,omitempty"`
	Controller      string `json:"controller,omitempty"`
	PublicKeyBase58 string `json:"publicKeyBase58,omitempty"`
}

// Service DID doc service
type Service struct {
	ID              string   `json:"id,omitempty"`
	Type            string   `json:"type,omitempty"`
	Priority        uint     `json:"priority,omitempty"`
	RecipientKeys   []string `json:"recipientKeys,omitempty"`
	RoutingKeys     []string `json:"routingKeys,omitempty"`
	ServiceEndpoint string   `json:"serviceEndpoint"`
}

// VerificationMethod authentication verification method
type VerificationMethod struct {
	Type      string `json:"type,omitempty"`
	PublicKey string `json:"publicKey,omitempty"`
}

// NewConnection builds the connection block with a DID document of one key
// and one service.
func NewConnection(did, verKey, endpoint string, routingKeys []string) *Connection {
	didURI := sovPrefix + did
	didURIRef := didURI + "#1"
	return &Connection{
		DID: did,
		DIDDoc: &Doc{
			Context: didContext,
			ID:      didURI,
			PublicKey: []PublicKey{{
				ID:              didURIRef,
				Type:            keyType,
				Controller:      didURI,
				PublicKeyBase58: verKey,
			}},
			Service: []Service{{
				ID:              didURI + ";indy",
				Type:            ServiceTypeIndy,
				RecipientKeys:   []string{verKey},
				RoutingKeys:     routingKeys,
				ServiceEndpoint: endpoint,
			}},
			Authentication: []VerificationMethod{{
				Type:      authType,
				PublicKey: didURIRef,
			}},
		},
	}
}

// VerKey returns the first recipient key of the first service, falling back
// to the first public key.
func (c *Connection) VerKey() string {
	if c == nil || c.DIDDoc == nil {
		return ""
	}
	for _, s := range c.DIDDoc.Service {
		if len(s.RecipientKeys) > 0 {
			return s.RecipientKeys[0]
		}
	}
	if len(c.DIDDoc.PublicKey) > 0 {
		return c.DIDDoc.PublicKey[0].PublicKeyBase58
	}
	return ""
}

func (c *Connection) Endpoint() string {
	if c == nil || c.DIDDoc == nil || len(c.DIDDoc.Service) == 0 {
		return ""
	}
	return c.DIDDoc.Service[0].ServiceEndpoint
}

func (c *Connection) RoutingKeys() []string {
	if c == nil || c.DIDDoc == nil || len(c.DIDDoc.Service) == 0 {
		return nil
	}
	return c.DIDDoc.Service[0].RoutingKeys
}

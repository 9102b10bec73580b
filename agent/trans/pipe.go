package trans

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/findy-network/findy-exchange/agent/ssi"
	"github.com/findy-network/findy-exchange/agent/storage/api"
	"github.com/golang/glog"
	"github.com/hyperledger/aries-framework-go/pkg/didcomm/transport"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/mr-tron/base58"
)

// Pipe encrypts the payloads for the recipient before they enter the relay
// and decrypts them after download. The relay sees only the mailbox owner
// and the ciphertext.
type Pipe struct {
	relay    Transport
	packager api.Packager
}

var _ Transport = (*Pipe)(nil)

func NewPipe(relay Transport, packager api.Packager) *Pipe {
	return &Pipe{relay: relay, packager: packager}
}

// Send packs the payload from msg.Sender to the verkey to.
func (p *Pipe) Send(ctx context.Context, to string, msg Message) (err error) {
	defer err2.Handle(&err, "pipe send")

	if msg.Sender == "" {
		return fmt.Errorf("sender verkey missing")
	}
	fromKey := try.To1(ssi.DIDKey(msg.Sender))
	toKey := try.To1(ssi.DIDKey(to))

	packed := try.To1(p.packager.PackMessage(&transport.Envelope{
		MediaTypeProfile: transport.MediaTypeProfileDIDCommAIP1,
		Message:          msg.Payload,
		FromKey:          []byte(fromKey),
		ToKeys:           []string{toKey},
	}))
	sealed := Message{
		UID:       msg.UID,
		Timestamp: msg.Timestamp,
		Payload:   packed,
	}
	return p.relay.Send(ctx, to, sealed)
}

// Download unpacks the messages. Messages which cannot be opened are skipped
// and logged, they belong to no protocol we can run.
func (p *Pipe) Download(ctx context.Context, filter Filter) (msgs []Message, err error) {
	defer err2.Handle(&err, "pipe download")

	sealed := try.To1(p.relay.Download(ctx, filter))
	msgs = make([]Message, 0, len(sealed))
	for _, m := range sealed {
		env, err := p.packager.UnpackMessage(m.Payload)
		if err != nil {
			glog.Warningln("cannot unpack message", m.UID, err)
			continue
		}
		opened, err := NewMessage(m.UID, m.Owner, senderKey(env), env.Message)
		if err != nil {
			glog.Warningln("malformed message", m.UID, err)
			continue
		}
		opened.Status = m.Status
		opened.Timestamp = m.Timestamp
		msgs = append(msgs, opened)
	}
	return msgs, nil
}

func (p *Pipe) MarkConsumed(ctx context.Context, owner string, uids []string) error {
	return p.relay.MarkConsumed(ctx, owner, uids)
}

// senderKey returns the base58 verkey of the unpacked sender. Legacy packers
// give raw key bytes, the others a did:key.
func senderKey(env *transport.Envelope) string {
	from := env.FromKey
	if len(from) == 0 {
		from = env.FromKey
	}
	if len(from) == ed25519.PublicKeySize {
		return base58.Encode(from)
	}
	key, err := ssi.RecipientVerKey(string(from))
	if err != nil {
		return ""
	}
	return key
}

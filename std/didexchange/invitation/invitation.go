package invitation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/findy-network/findy-exchange/std/legacy"
	"github.com/findy-network/findy-exchange/std/outofband"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

var ErrUnknown = errors.New("unknown invitation format")

func (i *Invitation) Kind() Kind {
	switch {
	case i == nil:
		return KindNone
	case i.OutOfBand != nil:
		return KindOutOfBand
	case i.Aries != nil:
		return KindAries
	case i.Legacy != nil:
		return KindLegacy
	default:
		return KindNone
	}
}

// ID returns the ID the invitee refers to as the parent thread.
func (i *Invitation) ID() string {
	switch i.Kind() {
	case KindOutOfBand:
		return i.OutOfBand.ID
	case KindAries:
		return i.Aries.ID
	case KindLegacy:
		return i.Legacy.ThreadOrID()
	default:
		return ""
	}
}

func (i *Invitation) Label() string {
	switch i.Kind() {
	case KindOutOfBand:
		return i.OutOfBand.Label
	case KindAries:
		return i.Aries.Label
	case KindLegacy:
		return i.Legacy.SenderDetail.Name
	default:
		return ""
	}
}

// Payload returns the JSON that is given to the invitee out of band.
func (i *Invitation) Payload() []byte {
	switch i.Kind() {
	case KindOutOfBand:
		return dto.ToJSONBytes(i.OutOfBand)
	case KindAries:
		return dto.ToJSONBytes(i.Aries)
	case KindLegacy:
		return dto.ToJSONBytes(i.Legacy)
	default:
		return nil
	}
}

// Validate checks the invitation has what the invitee needs to answer it.
func (i *Invitation) Validate() error {
	switch i.Kind() {
	case KindOutOfBand:
		return i.OutOfBand.Validate()
	case KindAries:
		if len(i.Aries.RecipientKeys) == 0 && i.Aries.DID == "" {
			return fmt.Errorf("%w: aries invitation without keys", ErrUnknown)
		}
		return nil
	case KindLegacy:
		if !i.Legacy.Valid() {
			return fmt.Errorf("%w: legacy invite detail without keys", ErrUnknown)
		}
		return nil
	default:
		return ErrUnknown
	}
}

type header struct {
	Type      string `json:"@type"`
	ConnReqID string `json:"connReqId"`
}

// Parse detects the kind of the JSON invitation and validates it.
func Parse(data []byte) (i *Invitation, err error) {
	defer err2.Handle(&err, "parse invitation")

	var p header
	try.To(json.Unmarshal(data, &p))

	i = new(Invitation)
	typ := pltype.Normalize(p.Type)
	switch {
	case strings.Contains(typ, pltype.ProtocolOutOfBand+"/"):
		i.OutOfBand = new(outofband.Invitation)
		try.To(json.Unmarshal(data, i.OutOfBand))
	case strings.Contains(typ, pltype.AriesProtocolConnection+"/"):
		i.Aries = new(Aries)
		try.To(json.Unmarshal(data, i.Aries))
	case p.ConnReqID != "":
		i.Legacy = new(legacy.InviteDetail)
		try.To(json.Unmarshal(data, i.Legacy))
	default:
		return nil, ErrUnknown
	}
	try.To(i.Validate())
	return i, nil
}

// Translate accepts either the invitation JSON or an URL carrying it base64
// encoded in the c_i, oob or d_m query parameter.
func Translate(s string) (i *Invitation, err error) {
	defer err2.Handle(&err, "translate invitation")

	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		return Parse([]byte(s))
	}

	u := try.To1(url.Parse(s))
	q := u.Query()
	for _, name := range []string{"c_i", "oob", "d_m"} {
		if v := q.Get(name); v != "" {
			return Parse(try.To1(utils.DecodeB64(v)))
		}
	}
	return nil, ErrUnknown
}

// Build returns the URL form of the invitation on the base address.
func Build(i *Invitation, base string) (s string, err error) {
	defer err2.Handle(&err, "build invitation URL")

	name := "c_i"
	switch i.Kind() {
	case KindOutOfBand:
		name = "oob"
	case KindNone:
		return "", ErrUnknown
	}
	u := try.To1(url.Parse(base))
	q := u.Query()
	q.Set(name, utils.EncodeB64(i.Payload()))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

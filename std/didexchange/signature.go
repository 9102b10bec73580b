package didexchange

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"time"

	"github.com/findy-network/findy-exchange/agent/pltype"
	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/findy-network/findy-exchange/std/decorator"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

const connectionSigExpTime = 10 * 60 * 60

var ErrSignature = errors.New("connection signature not valid")

// Signer is the part of the wallet the connection signature needs.
type Signer interface {
	Sign(ctx context.Context, verKey string, data []byte) ([]byte, error)
	Verify(ctx context.Context, verKey string, data, sig []byte) (bool, error)
}

// Sign signs the response's Connection with the verKey and sets
// connection~sig. Signed data is an 8 byte big endian unix timestamp followed
// by the connection JSON.
func Sign(ctx context.Context, r *Response, s Signer, verKey string) (err error) {
	defer err2.Handle(&err, "build connection sign")

	connectionJSON := try.To1(json.Marshal(r.Connection))

	data := make([]byte, 8, 8+len(connectionJSON))
	binary.BigEndian.PutUint64(data, uint64(time.Now().Unix()))
	data = append(data, connectionJSON...)

	signature := try.To1(s.Sign(ctx, verKey, data))

	r.ConnectionSignature = &decorator.Signature{
		Type:      pltype.AriesConnectionSignature,
		SignData:  base64.URLEncoding.EncodeToString(data),
		Signer:    verKey,
		Signature: base64.URLEncoding.EncodeToString(signature),
	}
	return nil
}

// Verify checks the connection~sig against the expected signer key and
// fills the Connection from the signed data.
func Verify(ctx context.Context, r *Response, s Signer, verKey string) (err error) {
	defer err2.Handle(&err, "verify connection sign")

	cs := r.ConnectionSignature
	if cs == nil {
		return ErrSignature
	}
	if verKey != "" && cs.Signer != verKey {
		glog.Warningln("connection signed with unexpected key", cs.Signer)
		return ErrSignature
	}

	data := try.To1(utils.DecodeB64(cs.SignData))
	if len(data) <= 8 {
		return ErrSignature
	}
	signature := try.To1(utils.DecodeB64(cs.Signature))

	if ok := try.To1(s.Verify(ctx, cs.Signer, data, signature)); !ok {
		return ErrSignature
	}

	timestamp := int64(binary.BigEndian.Uint64(data))
	diff := time.Now().Unix() - timestamp
	if diff < 0 || diff > connectionSigExpTime {
		glog.Errorln("connection signature timestamp is invalid: ", time.Unix(timestamp, 0))
		return ErrSignature
	}
	glog.V(3).Info("verified connection signature w/ ts:", time.Unix(timestamp, 0))

	var connection Connection
	try.To(json.Unmarshal(data[8:], &connection))
	r.Connection = &connection
	return nil
}

// Package trans is the transport adapter of the protocols. Messages wait in
// a store-and-forward relay in the mailbox of their owner, the recipient's
// verkey, until they are downloaded and marked consumed.
package trans

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the relay status of a message.
type Status string

const (
	StatusAny      Status = ""
	StatusReceived Status = "MS-103"
	StatusReviewed Status = "MS-106"
)

// Message is the relay envelope. UID is given by the relay, ID is the @id of
// the payload. Type and thread IDs are read from the payload by Inspect, the
// payload itself is opaque to the relay.
type Message struct {
	UID       string `json:"uid"`
	ID        string `json:"id,omitempty"`
	Owner     string `json:"owner"`
	Sender    string `json:"sender,omitempty"`
	Type      string `json:"type,omitempty"`
	ThreadID  string `json:"thid,omitempty"`
	PThreadID string `json:"pthid,omitempty"`
	Status    Status `json:"status"`
	Timestamp int64  `json:"timestamp"`
	Payload   []byte `json:"payload"`
}

// Filter selects messages. Empty fields match everything.
type Filter struct {
	Status Status
	UIDs   []string
	Owners []string
}

func (f Filter) Match(m *Message) bool {
	if f.Status != StatusAny && f.Status != m.Status {
		return false
	}
	if len(f.UIDs) > 0 && !contains(f.UIDs, m.UID) {
		return false
	}
	if len(f.Owners) > 0 && !contains(f.Owners, m.Owner) {
		return false
	}
	return true
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

type header struct {
	Type   string `json:"@type"`
	ID     string `json:"@id"`
	Thread *struct {
		ID  string `json:"thid"`
		PID string `json:"pthid"`
	} `json:"~thread"`
	// legacy connection messages carry their thread here
	ThreadID string `json:"threadId"`
	ConnReq  string `json:"connReqId"`

	thid, pthid string
}

// Inspect reads the message type and thread IDs from the payload. A message
// without a thread decorator starts its own thread.
func Inspect(payload []byte) (typ, thid, pthid string, err error) {
	h, err := inspect(payload)
	if err != nil {
		return "", "", "", err
	}
	return h.Type, h.thid, h.pthid, nil
}

func inspect(payload []byte) (h header, err error) {
	if err := json.Unmarshal(payload, &h); err != nil {
		return h, fmt.Errorf("inspect payload: %w", err)
	}
	if h.Type == "" {
		return h, fmt.Errorf("inspect payload: no @type")
	}
	var thid, pthid string
	switch {
	case h.Thread != nil && h.Thread.ID != "":
		thid, pthid = h.Thread.ID, h.Thread.PID
	case h.Thread != nil:
		thid, pthid = h.ID, h.Thread.PID
	case h.ThreadID != "":
		thid = h.ThreadID
	case h.ConnReq != "":
		thid = h.ConnReq
	default:
		thid = h.ID
	}
	h.thid, h.pthid = thid, pthid
	return h, nil
}

// NewMessage builds a message of the protocol payload.
func NewMessage(uid, owner, sender string, payload []byte) (Message, error) {
	h, err := inspect(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{
		UID:       uid,
		ID:        h.ID,
		Owner:     owner,
		Sender:    sender,
		Type:      h.Type,
		ThreadID:  h.thid,
		PThreadID: h.pthid,
		Status:    StatusReceived,
		Timestamp: time.Now().UnixNano(),
		Payload:   payload,
	}, nil
}

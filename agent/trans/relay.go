package trans

import (
	"context"
	"fmt"
	"sync"

	"github.com/findy-network/findy-exchange/agent/utils"
	"github.com/golang/glog"
)

// Relay is the in-memory relay. All the agents of the process share it.
// Consumed messages leave the mailbox, the latest of them are kept in the
// owner's reviewed list.
type Relay struct {
	l        sync.RWMutex
	boxes    map[string][]Message
	reviewed map[string][]Message
}

var _ Transport = (*Relay)(nil)

// keepReviewed is how many consumed messages an owner's reviewed list keeps.
const keepReviewed = 256

func NewRelay() *Relay {
	return &Relay{
		boxes:    make(map[string][]Message),
		reviewed: make(map[string][]Message),
	}
}

func (r *Relay) Send(ctx context.Context, to string, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if to == "" {
		return ErrNoOwner
	}
	if msg.UID == "" {
		msg.UID = utils.UUID()
	}
	msg.Owner = to
	msg.Status = StatusReceived

	r.l.Lock()
	defer r.l.Unlock()

	r.boxes[to] = append(r.boxes[to], msg)
	glog.V(5).Infof("relay: %s -> %s (%s)", msg.UID, to, msg.Type)
	return nil
}

func (r *Relay) Download(ctx context.Context, filter Filter) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.l.RLock()
	defer r.l.RUnlock()

	owners := filter.Owners
	if len(owners) == 0 {
		owners = make([]string, 0, len(r.boxes))
		for owner := range r.boxes {
			owners = append(owners, owner)
		}
	}
	msgs := make([]Message, 0)
	for _, owner := range owners {
		lists := [][]Message{r.boxes[owner]}
		if filter.Status != StatusReceived {
			lists = append(lists, r.reviewed[owner])
		}
		for _, list := range lists {
			for i := range list {
				if filter.Match(&list[i]) {
					msgs = append(msgs, list[i])
				}
			}
		}
	}
	return msgs, nil
}

func (r *Relay) MarkConsumed(ctx context.Context, owner string, uids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.l.Lock()
	defer r.l.Unlock()

	box, ok := r.boxes[owner]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOwner, owner)
	}
	pending := box[:0]
	reviewed := r.reviewed[owner]
	for _, m := range box {
		if !contains(uids, m.UID) {
			pending = append(pending, m)
			continue
		}
		m.Status = StatusReviewed
		reviewed = append(reviewed, m)
	}
	if over := len(reviewed) - keepReviewed; over > 0 {
		reviewed = append([]Message(nil), reviewed[over:]...)
	}
	r.boxes[owner] = pending
	r.reviewed[owner] = reviewed
	return nil
}

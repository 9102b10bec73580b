package prot

import (
	"sync"

	"github.com/golang/glog"
)

// Notification tells that a record has moved to a new state.
type Notification struct {
	AgentID   string
	RecordID  string
	Protocol  string
	ThreadID  string
	Role      Role
	State     StateCode
	Name      string
	Timestamp int64
}

// Notifier fans the notifications out to the subscribers. A subscriber that
// doesn't keep up misses notifications, the records never wait for it.
type Notifier struct {
	l    sync.RWMutex
	subs map[chan Notification]struct{}
}

const notificationBuffer = 32

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[chan Notification]struct{})}
}

func (n *Notifier) Subscribe() <-chan Notification {
	ch := make(chan Notification, notificationBuffer)
	n.l.Lock()
	n.subs[ch] = struct{}{}
	n.l.Unlock()
	return ch
}

func (n *Notifier) Unsubscribe(ch <-chan Notification) {
	n.l.Lock()
	defer n.l.Unlock()

	for sub := range n.subs {
		if sub == ch {
			delete(n.subs, sub)
			close(sub)
			return
		}
	}
}

func (n *Notifier) notify(nf Notification) {
	if n == nil {
		return
	}
	n.l.RLock()
	defer n.l.RUnlock()

	for sub := range n.subs {
		select {
		case sub <- nf:
		default:
			glog.Warningln("notification dropped for slow subscriber:", nf.RecordID)
		}
	}
}

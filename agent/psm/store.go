package psm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/findy-network/findy-exchange/agent/storage/api"
	"github.com/golang/glog"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

var (
	ErrNotFound    = errors.New("PSM not found")
	ErrThreadOwned = errors.New("thread is owned by another record")
	ErrBusy        = errors.New("record is locked by another caller")
)

const (
	tagOwner    = "owner"
	tagProtocol = "protocol"
)

// Store keeps the PSMs in the record bucket and the thread ownership index
// in the thread bucket of the agent storage.
type Store struct {
	records storage.Store
	threads storage.Store

	l sync.Mutex
	// locks has only the keys that are locked at the moment.
	locks map[string]struct{}
}

func New(provider storage.Provider) (s *Store, err error) {
	defer err2.Handle(&err, "psm store new")

	return &Store{
		records: try.To1(provider.OpenStore(api.NameRecord)),
		threads: try.To1(provider.OpenStore(api.NameThread)),
		locks:   make(map[string]struct{}),
	}, nil
}

// AddPSM saves the PSM and claims its thread, or releases the thread when
// the PSM has given it up.
func (s *Store) AddPSM(p *PSM) (err error) {
	defer err2.Handle(&err, "add PSM %s", p.Key)

	switch {
	case p.ThreadID == "":
	case p.ThreadReleased:
		try.To(s.ReleaseThread(p.ThreadID, p.Key))
	default:
		try.To(s.ClaimThread(p.ThreadID, p.Key))
	}
	try.To(s.records.Put(p.Key.String(), p.Bytes(),
		storage.Tag{Name: tagOwner, Value: p.Key.DID},
		storage.Tag{Name: tagProtocol, Value: p.Protocol},
	))
	glog.V(5).Infoln("PSM saved:", p.Key, len(p.States))
	return nil
}

func (s *Store) GetPSM(key StateKey) (p *PSM, err error) {
	defer err2.Handle(&err, "get PSM")

	d, err := s.records.Get(key.String())
	if errors.Is(err, storage.ErrDataNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	try.To(err)
	return NewPSM(d), nil
}

// RmPSM removes the PSM and releases its thread.
func (s *Store) RmPSM(key StateKey) (err error) {
	defer err2.Handle(&err, "rm PSM")

	glog.V(1).Infoln("--- rm PSM:", key)
	p, err := s.GetPSM(key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	try.To(err)
	if p.ThreadID != "" {
		try.To(s.ReleaseThread(p.ThreadID, key))
	}
	return s.records.Delete(key.String())
}

// AllPSM returns the PSMs of the owner. Empty protocol returns all of them.
func (s *Store) AllPSM(owner, protocol string) (m []PSM, err error) {
	defer err2.Handle(&err, "all PSM")

	iter := try.To1(s.records.Query(tagOwner + ":" + owner))
	defer iter.Close()

	m = make([]PSM, 0)
	for try.To1(iter.Next()) {
		p := NewPSM(try.To1(iter.Value()))
		if protocol == "" || p.Protocol == protocol {
			m = append(m, *p)
		}
	}
	return m, nil
}

// ClaimThread makes the key the owner of the thread. Claiming the thread
// again with the same key is allowed.
func (s *Store) ClaimThread(thid string, key StateKey) (err error) {
	defer err2.Handle(&err, "claim thread %s", thid)

	s.l.Lock()
	defer s.l.Unlock()

	owner, found := try.To2(s.threadOwner(thid))
	if found && owner != key {
		return fmt.Errorf("%w: %s", ErrThreadOwned, owner)
	}
	if !found {
		try.To(s.threads.Put(thid, key.Data()))
	}
	return nil
}

// ReleaseThread frees the thread if the key owns it.
func (s *Store) ReleaseThread(thid string, key StateKey) (err error) {
	defer err2.Handle(&err, "release thread %s", thid)

	s.l.Lock()
	defer s.l.Unlock()

	owner, found := try.To2(s.threadOwner(thid))
	if !found || owner != key {
		return nil
	}
	return s.threads.Delete(thid)
}

func (s *Store) ThreadOwner(thid string) (StateKey, bool, error) {
	s.l.Lock()
	defer s.l.Unlock()
	return s.threadOwner(thid)
}

func (s *Store) threadOwner(thid string) (key StateKey, found bool, err error) {
	d, err := s.threads.Get(thid)
	if errors.Is(err, storage.ErrDataNotFound) {
		return key, false, nil
	} else if err != nil {
		return key, false, err
	}
	key, _ = ParseStateKey(string(d))
	return key, true, nil
}

// Lock gives exclusive access to the record. It doesn't wait: ErrBusy tells
// that someone else is already running the record.
func (s *Store) Lock(key StateKey) (unlock func(), err error) {
	s.l.Lock()
	defer s.l.Unlock()

	k := key.String()
	if _, locked := s.locks[k]; locked {
		return nil, fmt.Errorf("%w: %s", ErrBusy, key)
	}
	s.locks[k] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.l.Lock()
			delete(s.locks, k)
			s.l.Unlock()
		})
	}, nil
}

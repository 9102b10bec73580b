package prot

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/golang/glog"
)

// Scheduler polls the registered records periodically and drops them when
// they are terminal or fail permanently.
type Scheduler struct {
	cron *gocron.Scheduler

	l       sync.Mutex
	records map[Updater]struct{}
}

func NewScheduler(interval time.Duration) (s *Scheduler, err error) {
	s = &Scheduler{
		cron:    gocron.NewScheduler(time.Now().Location()),
		records: make(map[Updater]struct{}),
	}
	s.cron.SingletonModeAll()
	if _, err := s.cron.Every(interval).Do(s.PollOnce, context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Add(u Updater) {
	s.l.Lock()
	defer s.l.Unlock()
	s.records[u] = struct{}{}
}

func (s *Scheduler) Len() int {
	s.l.Lock()
	defer s.l.Unlock()
	return len(s.records)
}

func (s *Scheduler) Start() {
	s.cron.StartAsync()
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// PollOnce updates every registered record once.
func (s *Scheduler) PollOnce(ctx context.Context) {
	s.l.Lock()
	records := make([]Updater, 0, len(s.records))
	for u := range s.records {
		records = append(records, u)
	}
	s.l.Unlock()

	for _, u := range records {
		if s.pollOne(ctx, u) {
			s.l.Lock()
			delete(s.records, u)
			s.l.Unlock()
		}
	}
}

func (s *Scheduler) pollOne(ctx context.Context, u Updater) (done bool) {
	release, err := guard.acquire(u)
	if err != nil {
		glog.V(3).Infoln("scheduler skips:", err)
		return false
	}
	defer release()

	state, err := u.UpdateState(ctx)
	switch {
	case err != nil && IsPermanent(err):
		glog.Errorln("scheduler drops record:", u.ThreadID(), err)
		return true
	case err != nil:
		glog.Warningln("scheduler poll:", u.ThreadID(), err)
		return false
	case u.Terminal():
		glog.V(1).Infoln("scheduler record ready:", u.ThreadID(), state)
		return true
	}
	return false
}

package session

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically expires idle sessions.
type Sweeper struct {
	cron  *cron.Cron
	store *Store
	ttl   time.Duration
	spec  string
}

// NewSweeper creates a sweeper that runs on the given cron spec (e.g. "@every 10m").
func NewSweeper(store *Store, ttl time.Duration, spec string) *Sweeper {
	return &Sweeper{
		cron:  cron.New(cron.WithLocation(time.UTC)),
		store: store,
		ttl:   ttl,
		spec:  spec,
	}
}

// Start registers the sweep job and starts the scheduler. A non-positive TTL disables sweeping.
func (s *Sweeper) Start() error {
	if s.ttl <= 0 {
		log.Println("[session] SESSION_TTL disabled, idle sessions are kept for the process lifetime")
		return nil
	}

	if _, err := s.cron.AddFunc(s.spec, s.RunOnce); err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("[session] sweeper started: spec=%q ttl=%s", s.spec, s.ttl)
	return nil
}

// RunOnce expires idle sessions immediately.
func (s *Sweeper) RunOnce() {
	if removed := s.store.Sweep(s.ttl); removed > 0 {
		log.Printf("[session] expired %d idle sessions, %d remaining", removed, s.store.Len())
	}
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

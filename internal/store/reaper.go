package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultReapInterval = 5 * time.Minute

// Reaper periodically reclaims memory held by expired rooms. Lookups
// already treat expired rooms as absent, so a slow or stopped reaper only
// delays reclamation.
type Reaper struct {
	log      logrus.FieldLogger
	store    *Store
	interval time.Duration
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewReaper(logger logrus.FieldLogger, s *Store, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}

	return &Reaper{
		log:      logger,
		store:    s,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run sweeps the store on every tick until Shutdown is called.
func (r *Reaper) Run() {
	defer close(r.done)

	ticker := r.store.clock.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.WithField("interval", r.interval.String()).Info("room reaper started")
	for {
		select {
		case <-ticker.C:
			r.reap()
		case <-r.stop:
			r.log.Info("room reaper stopped")
			return
		}
	}
}

func (r *Reaper) reap() (reclaimed int) {
	defer func() {
		if err := recover(); err != nil {
			r.log.WithField("panic", fmt.Sprint(err)).Error("room sweep failed")
		}
	}()

	reclaimed = r.store.Sweep()
	if reclaimed > 0 {
		r.log.WithFields(logrus.Fields{
			"reclaimed":    reclaimed,
			"active_rooms": r.store.Len(),
		}).Info("cleaned up expired rooms")
	}

	return reclaimed
}

// Shutdown stops the reaper and waits for Run to return.
func (r *Reaper) Shutdown(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.stop) })

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

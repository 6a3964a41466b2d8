package broker

import (
	"context"
	"time"

	"github.com/Runic-Dev/ventrix/internal/logger"
	"github.com/Runic-Dev/ventrix/internal/storage"
)

// InflightClaimer decides whether a due retry may be re-injected onto
// the dispatch queue, guarding against a still in-flight delivery of
// the same event (spec.md §9, open question 3).
type InflightClaimer interface {
	Claim(ctx context.Context, eventID string) bool
}

// Scheduler polls storage for failed events whose retry time has
// elapsed and re-injects them onto the dispatch queue (spec.md §4.6).
// It is modelled on the teacher's ticker-driven retry loop.
type Scheduler struct {
	store    storage.Storage
	queue    *Queue
	interval time.Duration
	retryCap int
	inflight InflightClaimer
	log      *logger.Logger

	stop chan struct{}
	done chan struct{}
}

// NewScheduler wires a Scheduler. inflight may be nil, in which case
// every due retry is claimed unconditionally.
func NewScheduler(store storage.Storage, queue *Queue, interval time.Duration, retryCap int, inflight InflightClaimer, log *logger.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		queue:    queue,
		interval: interval,
		retryCap: retryCap,
		inflight: inflight,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the poll loop until Stop is called. It blocks, so callers
// run it in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("retry scheduler started", "interval", s.interval.String(), "retry_cap", s.retryCap)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

// Stop requests the poll loop to exit and waits for it to do so.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) poll(ctx context.Context) {
	due, err := s.store.GetFailedEvents(ctx, s.retryCap)
	if err != nil {
		s.log.Error("retry poll failed to load failed events", "error", err.Error())
		return
	}
	if len(due) == 0 {
		return
	}

	s.log.Info("retry poll found due events", "count", len(due))

	for _, event := range due {
		if s.inflight != nil && !s.inflight.Claim(ctx, event.ID) {
			s.log.Debug("skipping retry still in flight", "event_id", event.ID)
			continue
		}
		s.queue.Send(event)
	}
}

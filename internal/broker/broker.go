package broker

import (
	"context"
	"time"

	"github.com/Runic-Dev/ventrix/internal/logger"
	"github.com/Runic-Dev/ventrix/internal/storage"
	"github.com/Runic-Dev/ventrix/internal/validate"
)

// Broker owns the dispatch queue, the publish entry point, the
// delivery worker, and the retry scheduler, and sequences their
// startup and shutdown. cmd/ventrixd constructs one per process.
type Broker struct {
	Publisher *Publisher
	worker    *Worker
	scheduler *Scheduler
	queue     *Queue
	log       *logger.Logger

	cancel context.CancelFunc
}

// Config collects everything Broker needs to assemble its components.
type Config struct {
	Store             storage.Storage
	Validator         validate.Predicate
	Observer          DeliveryObserver
	Inflight          *InflightGuard
	ChannelCapacity   int
	SubscriberTimeout time.Duration
	RetryCap          int
	SchedulerInterval time.Duration
	Log               *logger.Logger
}

// InflightGuard is the minimal surface broker.Broker needs from
// internal/inflight.Marker, kept narrow so tests can supply a fake.
type InflightGuard struct {
	Claimer  InflightClaimer
	Releaser InflightReleaser
}

// New assembles a Broker from cfg but does not start it.
func New(cfg Config) *Broker {
	queue := NewQueue(cfg.ChannelCapacity)

	publisher := NewPublisher(cfg.Store, queue, cfg.Validator, cfg.Log)

	worker := NewWorker(cfg.Store, queue, cfg.SubscriberTimeout, cfg.Log)
	if cfg.Observer != nil {
		worker = worker.WithObserver(cfg.Observer)
	}
	if cfg.Inflight != nil && cfg.Inflight.Releaser != nil {
		worker = worker.WithInflightReleaser(cfg.Inflight.Releaser)
	}

	var claimer InflightClaimer
	if cfg.Inflight != nil {
		claimer = cfg.Inflight.Claimer
	}
	scheduler := NewScheduler(cfg.Store, queue, cfg.SchedulerInterval, cfg.RetryCap, claimer, cfg.Log)

	return &Broker{
		Publisher: publisher,
		worker:    worker,
		scheduler: scheduler,
		queue:     queue,
		log:       cfg.Log,
	}
}

// Start launches the delivery worker and retry scheduler in their own
// goroutines. It returns immediately.
func (b *Broker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	go b.worker.Run(ctx)
	go b.scheduler.Start(ctx)

	b.log.Info("broker started")
}

// Shutdown stops the scheduler, closes the dispatch queue so the
// worker drains and exits, and cancels any in-flight work.
func (b *Broker) Shutdown() {
	b.log.Info("broker shutting down")
	b.scheduler.Stop()
	b.queue.Close()
	if b.cancel != nil {
		b.cancel()
	}
}

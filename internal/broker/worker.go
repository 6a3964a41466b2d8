package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/Runic-Dev/ventrix/internal/domain"
	"github.com/Runic-Dev/ventrix/internal/httpclient"
	"github.com/Runic-Dev/ventrix/internal/logger"
	"github.com/Runic-Dev/ventrix/internal/storage"
)

// DeliveryObserver receives a notification after each per-subscriber
// HTTP attempt the worker makes. It is used to feed the admin
// WebSocket feed (internal/streaming); nil is a valid "no observer".
type DeliveryObserver interface {
	ObserveDelivery(event domain.PublishedEvent, subscriber domain.Subscriber, outcome string)
}

// InflightReleaser releases the double-injection guard a retry
// scheduler may have claimed for an event once its delivery cycle
// completes. nil is a valid "no guard configured".
type InflightReleaser interface {
	Release(ctx context.Context, eventID string)
}

// Worker is the single long-lived consumer of the dispatch queue
// (spec.md §4.5). It resolves subscribers, fans an event out to each
// sequentially, and records the outcome.
type Worker struct {
	store      storage.Storage
	queue      *Queue
	httpClient *httpclient.Client
	log        *logger.Logger
	observer   DeliveryObserver
	inflight   InflightReleaser
}

// NewWorker wires a Worker. subscriberTimeout bounds each per-subscriber
// HTTP call (spec.md §5 recommends a default, the core imposes none).
func NewWorker(store storage.Storage, queue *Queue, subscriberTimeout time.Duration, log *logger.Logger) *Worker {
	return &Worker{
		store:      store,
		queue:      queue,
		httpClient: httpclient.NewClient(subscriberTimeout),
		log:        log,
	}
}

// WithObserver attaches a DeliveryObserver, returning the Worker for
// chaining during construction.
func (w *Worker) WithObserver(observer DeliveryObserver) *Worker {
	w.observer = observer
	return w
}

// WithInflightReleaser attaches an InflightReleaser.
func (w *Worker) WithInflightReleaser(releaser InflightReleaser) *Worker {
	w.inflight = releaser
	return w
}

// Run drains the dispatch queue until it is closed. It is meant to run
// in its own goroutine for the lifetime of the broker process.
func (w *Worker) Run(ctx context.Context) {
	for event := range w.queue.Receive() {
		w.processEvent(ctx, event)
	}
}

func (w *Worker) processEvent(ctx context.Context, event domain.PublishedEvent) {
	if w.inflight != nil {
		defer w.inflight.Release(ctx, event.ID)
	}

	subscribers, err := w.store.GetSubscribers(ctx, event.EventType)
	if err != nil {
		w.log.Error("failed to resolve subscribers, dropping event", "event_id", event.ID, "event_type", event.EventType, "error", err.Error())
		return
	}
	if len(subscribers) == 0 {
		w.log.Info("no subscribers for event type, dropping event", "event_id", event.ID, "event_type", event.EventType)
		return
	}

	for _, subscriber := range subscribers {
		if !w.deliverOne(ctx, event, subscriber) {
			// Non-2xx on a retry cycle stops the fan-out for this
			// cycle (spec.md §4.5 failure path, retry branch).
			return
		}
	}
}

// deliverOne attempts delivery to a single subscriber and applies the
// success/failure bookkeeping. It returns false when the caller should
// stop processing remaining subscribers for this cycle.
func (w *Worker) deliverOne(ctx context.Context, event domain.PublishedEvent, subscriber domain.Subscriber) bool {
	destination := subscriber.ServiceURL + subscriber.Endpoint

	resp, err := w.httpClient.Post(ctx, destination, event)
	if err != nil {
		// Transport error: no response at all. Per spec.md §4.5 this
		// takes no persistence action — logged only.
		w.log.Error("transport error delivering event", "event_id", event.ID, "destination", destination, "error", err.Error())
		w.notify(event, subscriber, "transport_error")
		return true
	}

	if resp.Ok() {
		w.onSuccess(ctx, event, subscriber)
		return true
	}

	return w.onFailure(ctx, event, subscriber, resp.StatusCode)
}

func (w *Worker) onSuccess(ctx context.Context, event domain.PublishedEvent, subscriber domain.Subscriber) {
	if event.IsRetry() {
		if err := w.store.ResolveFailedEvent(ctx, event.ID); err != nil {
			w.log.Warn("delivered on retry but failed to resolve failed_events row", "event_id", event.ID, "error", err.Error())
		}
	}

	if err := w.store.FulfilEvent(ctx, event.ID); err != nil {
		w.log.Info("delivered but failed to mark event fulfilled", "event_id", event.ID, "error", err.Error())
	}

	w.log.Info("event delivered", "event_id", event.ID, "service", subscriber.ServiceName)
	w.notify(event, subscriber, "fulfilled")
}

func (w *Worker) onFailure(ctx context.Context, event domain.PublishedEvent, subscriber domain.Subscriber, status int) bool {
	w.log.Warn("subscriber returned non-2xx", "event_id", event.ID, "service", subscriber.ServiceName, "status", fmt.Sprint(status))
	w.notify(event, subscriber, "failed")

	if event.IsRetry() {
		nextRetries := event.RetryDetails.RetryCount + 1
		nextRetryTime := time.Now().UTC().Add(time.Duration(nextRetries+1) * time.Minute)
		if err := w.store.UpdateRetryTime(ctx, event.ID, nextRetryTime, nextRetries); err != nil {
			w.log.Error("failed to update retry time after failed retry attempt", "event_id", event.ID, "error", err.Error())
		}
		// Per spec.md §4.5: a non-2xx during a retry cycle stops the
		// fan-out for the remaining subscribers in this cycle.
		return false
	}

	if err := w.store.AddFailedEvent(ctx, &event); err != nil {
		w.log.Error("failed to record failed event", "event_id", event.ID, "error", err.Error())
	}
	return true
}

func (w *Worker) notify(event domain.PublishedEvent, subscriber domain.Subscriber, outcome string) {
	if w.observer == nil {
		return
	}
	w.observer.ObserveDelivery(event, subscriber, outcome)
}

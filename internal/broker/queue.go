package broker

import (
	"github.com/Runic-Dev/ventrix/internal/domain"
)

// Queue is the bounded, multiple-producer/single-consumer dispatch
// channel handing events from the publish call site (and the retry
// scheduler) to the delivery worker. A full queue blocks the sender —
// this is the back-pressure contract spec.md §5 requires; there is no
// select/default escape hatch here.
type Queue struct {
	events chan domain.PublishedEvent
}

// NewQueue creates a dispatch queue with the given capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{events: make(chan domain.PublishedEvent, capacity)}
}

// Send enqueues event, blocking if the queue is full. It panics if the
// queue has been closed — per spec.md §5, a closed dispatch channel is
// a fatal, unrecoverable condition for the process.
func (q *Queue) Send(event domain.PublishedEvent) {
	q.events <- event
}

// Receive returns the channel the delivery worker ranges over.
func (q *Queue) Receive() <-chan domain.PublishedEvent {
	return q.events
}

// Close closes the dispatch channel. Only the owning broker should
// call this, during shutdown, after producers have stopped.
func (q *Queue) Close() {
	close(q.events)
}

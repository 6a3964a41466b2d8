// Package inflight guards against the retry scheduler double-injecting
// a failed event while a prior injection of that same event is still
// being delivered (spec.md §9, open question 3). It is a best-effort
// claim backed by Redis, not a correctness requirement of the retry
// contract: when Redis is unavailable the marker degrades to
// always-allow.
package inflight

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Runic-Dev/ventrix/internal/logger"
)

const keyPrefix = "ventrix:inflight:"

// Marker claims and releases per-event in-flight markers.
type Marker struct {
	rdb    *redis.Client
	ttl    time.Duration
	log    *logger.Logger
	broken bool
}

// NewMarker connects to redisURL. If redisURL is empty, the returned
// Marker always allows claims (the feature degrades to a no-op rather
// than blocking retries).
func NewMarker(redisURL string, ttl time.Duration, log *logger.Logger) *Marker {
	if redisURL == "" {
		log.Info("in-flight marker disabled: no REDIS_URL configured")
		return &Marker{ttl: ttl, log: log, broken: true}
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Warn("in-flight marker disabled: invalid REDIS_URL", "error", err.Error())
		return &Marker{ttl: ttl, log: log, broken: true}
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("in-flight marker disabled: redis unreachable", "error", err.Error())
		return &Marker{ttl: ttl, log: log, broken: true}
	}

	return &Marker{rdb: rdb, ttl: ttl, log: log}
}

// Claim attempts to mark eventID as in flight. It returns true when
// the caller may proceed to enqueue the event; false means another
// poll already holds the claim.
func (m *Marker) Claim(ctx context.Context, eventID string) bool {
	if m.broken {
		return true
	}

	ok, err := m.rdb.SetNX(ctx, keyPrefix+eventID, "1", m.ttl).Result()
	if err != nil {
		m.log.Warn("in-flight claim failed, allowing enqueue", "event_id", eventID, "error", err.Error())
		return true
	}
	return ok
}

// Release clears the in-flight marker for eventID once a delivery
// cycle for it has completed, so the next due retry can reclaim it.
func (m *Marker) Release(ctx context.Context, eventID string) {
	if m.broken {
		return
	}
	if err := m.rdb.Del(ctx, keyPrefix+eventID).Err(); err != nil {
		m.log.Warn("failed to release in-flight marker", "event_id", eventID, "error", err.Error())
	}
}

// Close releases the underlying Redis connection, if any.
func (m *Marker) Close() error {
	if m.rdb == nil {
		return nil
	}
	return m.rdb.Close()
}

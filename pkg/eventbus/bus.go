// Package eventbus publishes persisted events to per-context topics for
// downstream projections and the query side to consume (spec §4.3,
// §9 "topic routing"). No teacher file wires a broker directly —
// go.mod lists gobreaker and the teacher's internal/membership uses
// golang.org/x/time/rate for login throttling (internal/membership/implementation.go)
// — this package reuses both idioms for publish resilience and outbox
// throttling instead of leaving them as manifest-only dependencies.
package eventbus

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/jules-labs/lexitrace/pkg/events"
)

// Bus publishes envelopes to topics derived from their event type's
// leading context segment. Implementations must be safe for concurrent
// use by the outbox worker and any inline publish path.
type Bus interface {
	Publish(ctx context.Context, env events.Envelope) error
	PublishBatch(ctx context.Context, envs []events.Envelope) error
}

// TopicPrefix names the deployment (e.g. "lexitrace-prod"); topics are
// "<prefix>-<context>-events", falling back to "<prefix>-unknown-events"
// for event types without a dotted context (spec §4.3).
type TopicPrefix string

func (p TopicPrefix) Topic(eventType string) string {
	return string(p) + "-" + events.Context(eventType) + "-events"
}

// OrderingKey returns the per-aggregate ordering key so a broker that
// honors it (e.g. Pub/Sub ordering keys) delivers one aggregate's
// events in append order.
func OrderingKey(env events.Envelope) string {
	return env.AggregateType + ":" + env.AggregateID
}

// publisher is the narrow per-topic handle a Bus implementation caches,
// mirroring the teacher's sync.RWMutex double-checked-lock cache idiom
// (pkg/schemaregistry.Registry, go-chaos.ChaosEngine).
type publisher struct {
	topic   string
	breaker *gobreaker.CircuitBreaker
}

// publisherCache lazily builds one circuit-breaker-wrapped publisher
// per topic and reuses it across Publish calls.
type publisherCache struct {
	mu      sync.RWMutex
	byTopic map[string]*publisher
	newFn   func(topic string) *gobreaker.CircuitBreaker
}

func newPublisherCache(newFn func(topic string) *gobreaker.CircuitBreaker) *publisherCache {
	return &publisherCache{byTopic: make(map[string]*publisher), newFn: newFn}
}

func (c *publisherCache) get(topic string) *publisher {
	c.mu.RLock()
	p, ok := c.byTopic[topic]
	c.mu.RUnlock()
	if ok {
		return p
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.byTopic[topic]; ok {
		return p
	}
	p = &publisher{topic: topic, breaker: c.newFn(topic)}
	c.byTopic[topic] = p
	return p
}

func defaultBreaker(topic string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "eventbus-" + topic,
		MaxRequests: 5,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

func sanitizeTopic(topic string) string {
	return strings.ToLower(strings.ReplaceAll(topic, "_", "-"))
}

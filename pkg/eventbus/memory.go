package eventbus

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/jules-labs/lexitrace/pkg/errs"
	"github.com/jules-labs/lexitrace/pkg/events"
	"github.com/jules-labs/lexitrace/pkg/logging"
)

// Subscription receives every envelope published to a topic, in
// publish order. Consumers (projection runtimes, the search indexer)
// own their own cursor and must tolerate redelivery — the bus is
// at-least-once (spec §4.3).
type Subscription struct {
	Topic string
	C     <-chan events.Envelope
}

// MemoryBus is the in-process Bus used by single-binary deployments and
// tests. It fans out published envelopes to every subscriber of the
// envelope's topic; a slow subscriber blocks publish, so subscribers
// must drain promptly or buffer internally.
type MemoryBus struct {
	prefix    TopicPrefix
	publisher *publisherCache
	log       *logrus.Entry

	mu   sync.RWMutex
	subs map[string][]chan events.Envelope
}

func NewMemoryBus(prefix TopicPrefix, log *logrus.Entry) *MemoryBus {
	return &MemoryBus{
		prefix:    prefix,
		publisher: newPublisherCache(defaultBreaker),
		log:       log,
		subs:      make(map[string][]chan events.Envelope),
	}
}

// Subscribe registers a new channel for topic and returns it wrapped in
// a Subscription. The channel is closed when ctx is done.
func (b *MemoryBus) Subscribe(ctx context.Context, topic string, buffer int) Subscription {
	ch := make(chan events.Envelope, buffer)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		remaining := b.subs[topic][:0]
		for _, c := range b.subs[topic] {
			if c != ch {
				remaining = append(remaining, c)
			}
		}
		b.subs[topic] = remaining
		close(ch)
	}()

	return Subscription{Topic: topic, C: ch}
}

func (b *MemoryBus) Publish(ctx context.Context, env events.Envelope) error {
	topic := sanitizeTopic(b.prefix.Topic(env.EventType))
	p := b.publisher.get(topic)

	_, err := p.breaker.Execute(func() (interface{}, error) {
		b.mu.RLock()
		subs := append([]chan events.Envelope(nil), b.subs[topic]...)
		b.mu.RUnlock()

		for _, ch := range subs {
			select {
			case ch <- env:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return nil, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return errs.Wrap(errs.EventStore, "event bus circuit open for topic "+topic, err)
		}
		return errs.Wrap(errs.EventStore, "publish to topic "+topic, err)
	}

	entry := logging.WithEvent(logging.WithAggregate(b.log, env.AggregateID, env.AggregateType), env.EventType, env.EventVersion)
	entry.Debug("published event")
	return nil
}

func (b *MemoryBus) PublishBatch(ctx context.Context, envs []events.Envelope) error {
	for _, env := range envs {
		if err := b.Publish(ctx, env); err != nil {
			return err
		}
	}
	return nil
}

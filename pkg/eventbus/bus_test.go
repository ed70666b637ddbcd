package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/jules-labs/lexitrace/pkg/events"
)

func TestTopicDerivationFromEventType(t *testing.T) {
	prefix := TopicPrefix("lexitrace-test")
	require.Equal(t, "lexitrace-test-vocabulary-events", prefix.Topic("vocabulary.EntryCreated"))
	require.Equal(t, "lexitrace-test-unknown-events", prefix.Topic("no_dots_here"))
}

func TestOrderingKeyIsAggregateScoped(t *testing.T) {
	env := events.Envelope{AggregateID: "item-1", AggregateType: "vocabulary_item"}
	require.Equal(t, "vocabulary_item:item-1", OrderingKey(env))
}

func TestMemoryBusDeliversToSubscribers(t *testing.T) {
	bus := NewMemoryBus("lexitrace-test", logrus.NewEntry(logrus.New()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := bus.Subscribe(ctx, "lexitrace-test-vocabulary-events", 4)

	env, err := events.New("item-1", "vocabulary_item", "vocabulary.EntryCreated", 1, map[string]string{"spelling": "serendipity"}, events.Metadata{SourceContext: "test"})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), env))

	select {
	case received := <-sub.C:
		require.Equal(t, env.EventType, received.EventType)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber delivery")
	}
}

func TestMemoryBusPublishBatch(t *testing.T) {
	bus := NewMemoryBus("lexitrace-test", logrus.NewEntry(logrus.New()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := bus.Subscribe(ctx, "lexitrace-test-algorithm-events", 4)

	env1, _ := events.New("item-1", "review_schedule", "algorithm.ReviewScheduleUpdated", 1, map[string]string{}, events.Metadata{SourceContext: "test"})
	env2, _ := events.New("item-1", "review_schedule", "algorithm.DifficultyAdjusted", 2, map[string]string{}, events.Metadata{SourceContext: "test"})

	require.NoError(t, bus.PublishBatch(context.Background(), []events.Envelope{env1, env2}))

	for i := 0; i < 2; i++ {
		select {
		case <-sub.C:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for batch delivery")
		}
	}
}

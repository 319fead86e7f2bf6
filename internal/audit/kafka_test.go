//go:build integration

package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"checkscan/pkg/testutil/containers"
)

func TestKafkaSink_Publish(t *testing.T) {
	kafka := containers.NewKafkaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	sink, err := NewKafkaSink(ctx, kafka.Brokers, "checkscan.batches")
	require.NoError(t, err)
	defer sink.Close()

	again, err := NewKafkaSink(ctx, kafka.Brokers, "checkscan.batches")
	require.NoError(t, err, "an existing topic is accepted")
	again.Close()

	event := Event{BatchID: "batch-1", Outcome: OutcomeReverted, Attempted: []string{"000001"}}
	require.NoError(t, sink.Publish(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(kafka.Brokers...),
		kgo.ConsumeTopics("checkscan.batches"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())
	records := fetches.Records()
	require.Len(t, records, 1)
	require.Equal(t, "batch-1", string(records[0].Key))

	var got Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, OutcomeReverted, got.Outcome)
	require.Equal(t, []string{"000001"}, got.Attempted)
}

package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkscan/internal/submission"
)

type recordingSink struct {
	events []Event
	err    error
}

func (s *recordingSink) Publish(_ context.Context, e Event) error {
	s.events = append(s.events, e)
	return s.err
}

type failingStore struct{ InMemoryStore }

func (*failingStore) Append(context.Context, Event) error { return errors.New("disk full") }

func TestPublisher_Emit(t *testing.T) {
	store := NewInMemoryStore()
	broken := &recordingSink{err: errors.New("broker down")}
	healthy := &recordingSink{}
	p, err := NewPublisher(store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithSink(broken),
		WithSink(healthy),
	)
	require.NoError(t, err)

	require.NoError(t, p.Emit(context.Background(), Event{BatchID: "b1"}))
	require.NoError(t, p.Emit(context.Background(), Event{BatchID: "b2"}))

	events, err := p.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "b2", events[0].BatchID, "newest first")
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Len(t, healthy.events, 2, "a failing sink does not stop the others")
}

func TestPublisher_StoreFailure(t *testing.T) {
	sink := &recordingSink{}
	p, err := NewPublisher(&failingStore{}, WithSink(sink))
	require.NoError(t, err)

	assert.Error(t, p.Emit(context.Background(), Event{BatchID: "b1"}))
	assert.Empty(t, sink.events)

	_, err = NewPublisher(nil)
	assert.Error(t, err)
}

func TestInMemoryStore_ListRecentLimit(t *testing.T) {
	store := NewInMemoryStore()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Append(context.Background(), Event{BatchID: id}))
	}
	events, err := store.ListRecent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "c", events[0].BatchID)
	assert.Equal(t, "b", events[1].BatchID)
}

func TestEventFromBatch(t *testing.T) {
	at := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		result submission.BatchResult
		want   Outcome
	}{
		{"clean batch", submission.BatchResult{Attempted: []string{"a"}}, OutcomeCommitted},
		{
			"reverted",
			submission.BatchResult{
				Attempted: []string{"a", "b"},
				Outcomes:  []submission.Outcome{{Name: "a"}, {Name: "b", HasError: true}},
				Failed:    true,
				Revert:    &submission.RevertResult{Names: []string{"a", "b"}},
			},
			OutcomeReverted,
		},
		{
			"revert failed",
			submission.BatchResult{
				Attempted: []string{"a"},
				Failed:    true,
				Revert:    &submission.RevertResult{HasError: true, ErrorDetail: "timeout"},
			},
			OutcomeRevertFailed,
		},
		{"nothing sent", submission.BatchResult{Skipped: []string{"a"}, Failed: true}, OutcomeAbandoned},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := EventFromBatch(tc.result, at)
			assert.Equal(t, tc.want, e.Outcome)
			assert.Equal(t, at, e.Timestamp)
			assert.NotNil(t, e.Failed)
			assert.NotNil(t, e.Skipped)
		})
	}

	e := EventFromBatch(cases[2].result, at)
	assert.Equal(t, "timeout", e.RevertError)
	e = EventFromBatch(cases[1].result, at)
	assert.Equal(t, []string{"b"}, e.Failed)
}

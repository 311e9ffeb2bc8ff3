package kafka

import (
	"testing"
	"time"

	"github.com/couchcryptid/blow-storage/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("17"),
		Value:     []byte(`{"event_id":"evt-1"}`),
		Topic:     "blow-events",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte("blow.submitted")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("17"), raw.Key)
	assert.JSONEq(t, `{"event_id":"evt-1"}`, string(raw.Value))
	assert.Equal(t, "blow-events", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "blow.submitted", raw.Headers["event_type"])
	assert.Nil(t, raw.Commit)
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	event := domain.BlowEvent{
		EventID:    "evt-1",
		Type:       domain.EventSubmitted,
		BlowID:     17,
		OccurredAt: now,
		Blow:       domain.Blow{ID: 17, Description: "report"},
	}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("17"), msg.Key)
	assert.Contains(t, string(msg.Value), `"type":"blow.submitted"`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("blow.submitted"), msg.Headers[0].Value)
	assert.Equal(t, "occurred_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339Nano)), msg.Headers[1].Value)
}

func TestSerializeRoundTripsThroughParse(t *testing.T) {
	event := domain.BlowEvent{
		EventID:    "evt-2",
		Type:       domain.EventFlagged,
		BlowID:     3,
		OccurredAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Blow:       domain.Blow{ID: 3, Description: "report", Flagged: true},
	}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	parsed, err := domain.ParseBlowEvent(mapMessageToRawEvent(msg))
	require.NoError(t, err)
	assert.Equal(t, event.Type, parsed.Type)
	assert.Equal(t, event.BlowID, parsed.BlowID)
	assert.True(t, parsed.OccurredAt.Equal(event.OccurredAt))
	assert.True(t, parsed.Blow.Flagged)
}

package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a blow lifecycle transition.
type EventType string

const (
	EventSubmitted     EventType = "blow.submitted"
	EventUpvoted       EventType = "blow.upvoted"
	EventDownvoted     EventType = "blow.downvoted"
	EventTrustScored   EventType = "blow.trust_scored"
	EventFlagged       EventType = "blow.flagged"
	EventVisibilitySet EventType = "blow.visibility_set"
)

// BlowEvent is published after every committed mutation of a blow.
// The snapshot carries file names and content types but not file bytes.
type BlowEvent struct {
	EventID    string    `json:"event_id"`
	Type       EventType `json:"type"`
	BlowID     uint64    `json:"blow_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Blow       Blow      `json:"blow"`
}

// NewBlowEvent snapshots b for publication.
func NewBlowEvent(t EventType, b Blow) BlowEvent {
	snap := b.Clone()
	for i := range snap.Files {
		snap.Files[i].Data = nil
	}
	return BlowEvent{
		EventID:    uuid.NewString(),
		Type:       t,
		BlowID:     b.ID,
		OccurredAt: clock.Now().UTC(),
		Blow:       snap,
	}
}

// RawEvent represents an unprocessed message from the events topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// ParseBlowEvent deserializes a RawEvent's value into a BlowEvent.
func ParseBlowEvent(raw RawEvent) (BlowEvent, error) {
	var event BlowEvent
	if err := json.Unmarshal(raw.Value, &event); err != nil {
		return BlowEvent{}, fmt.Errorf("parse blow event: %w", err)
	}
	if event.Type == "" {
		event.Type = EventType(raw.Headers["event_type"])
	}
	if event.BlowID == 0 {
		event.BlowID = event.Blow.ID
	}
	return event, nil
}

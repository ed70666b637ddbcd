// Package events defines the canonical event envelope from spec §3.2
// and the per-context DomainEvent tagged sum from spec §9
// ("Polymorphism over events"). It generalizes the teacher's
// eventstore.Event struct (go-eventstore/eventstore.go), which only
// carries a loose map[string]interface{} metadata bag, into the full
// causation/correlation/trace/schema_version shape the spec requires.
package events

import (
	"encoding/json"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/jules-labs/lexitrace/pkg/ids"
)

// Metadata is the invariant metadata block attached to every persisted
// event (spec §3.2).
type Metadata struct {
	OccurredAt    time.Time `json:"occurred_at"`
	CausedByUser  *ids.UserId `json:"caused_by_user_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	CausationID   string    `json:"causation_id,omitempty"`
	TraceContext  string    `json:"trace_context,omitempty"`
	SourceContext string    `json:"source_context"`
	SchemaVersion int       `json:"schema_version"`
}

// Envelope is the canonical persisted event shape (spec §3.2). Position
// is assigned by the store on append and is zero until then.
type Envelope struct {
	EventID       ids.EventId     `json:"event_id" db:"event_id"`
	AggregateID   string          `json:"aggregate_id" db:"aggregate_id"`
	AggregateType string          `json:"aggregate_type" db:"aggregate_type"`
	EventType     string          `json:"event_type" db:"event_type"`
	EventVersion  int             `json:"event_version" db:"event_version"`
	EventData     json.RawMessage `json:"event_data" db:"event_data"`
	Metadata      Metadata        `json:"metadata" db:"metadata"`
	Position      int64           `json:"position" db:"position"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Context returns the leading dotted segment of the event type, e.g.
// "vocabulary" for "vocabulary.EntryCreated". Unknown/malformed types
// yield "unknown", matching the bus's topic-routing fallback (§4.3).
func Context(eventType string) string {
	for i := 0; i < len(eventType); i++ {
		if eventType[i] == '.' {
			return eventType[:i]
		}
	}
	return "unknown"
}

// New builds an envelope ready for append: position/created_at are
// left zero for the store to assign.
func New(aggregateID, aggregateType, eventType string, version int, data interface{}, meta Metadata) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	if meta.OccurredAt.IsZero() {
		// Routed through timestamppb rather than a bare time.Now() so
		// occurred_at is always representable on the wire formats
		// (protobuf/gRPC) this envelope may eventually cross, not just
		// JSON (spec §3.2's metadata block is described in protobuf-ish
		// terms).
		meta.OccurredAt = timestamppb.Now().AsTime()
	}
	if meta.SchemaVersion == 0 {
		meta.SchemaVersion = 1
	}
	return Envelope{
		EventID:       ids.NewEventId(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		EventVersion:  version,
		EventData:     raw,
		Metadata:      meta,
	}, nil
}

// Package ids defines the strongly-typed identifier newtypes shared by
// every bounded context, so a UserId can never be passed where an
// ItemId is expected.
package ids

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// typedID wraps uuid.UUID so each identifier kind is its own Go type.
type typedID struct {
	uuid.UUID
}

// UserId identifies a user aggregate.
type UserId struct{ typedID }

// ItemId identifies a vocabulary item aggregate.
type ItemId struct{ typedID }

// EntryId identifies a vocabulary entry aggregate.
type EntryId struct{ typedID }

// SessionId identifies a learning session.
type SessionId struct{ typedID }

// EventId identifies a single persisted event.
type EventId struct{ typedID }

// NewUserId, NewItemId, ... mint a fresh random identifier of the
// matching kind.
func NewUserId() UserId       { return UserId{typedID{uuid.New()}} }
func NewItemId() ItemId       { return ItemId{typedID{uuid.New()}} }
func NewEntryId() EntryId     { return EntryId{typedID{uuid.New()}} }
func NewSessionId() SessionId { return SessionId{typedID{uuid.New()}} }
func NewEventId() EventId     { return EventId{typedID{uuid.New()}} }

// ParseUserId, ParseItemId, ... parse an RFC-4122 string into the
// matching typed identifier.
func ParseUserId(s string) (UserId, error) {
	u, err := uuid.Parse(s)
	return UserId{typedID{u}}, err
}

func ParseItemId(s string) (ItemId, error) {
	u, err := uuid.Parse(s)
	return ItemId{typedID{u}}, err
}

func ParseEntryId(s string) (EntryId, error) {
	u, err := uuid.Parse(s)
	return EntryId{typedID{u}}, err
}

func ParseSessionId(s string) (SessionId, error) {
	u, err := uuid.Parse(s)
	return SessionId{typedID{u}}, err
}

func ParseEventId(s string) (EventId, error) {
	u, err := uuid.Parse(s)
	return EventId{typedID{u}}, err
}

// Value/Scan let every typed id be used directly as a sqlx/database-sql
// column, following the pattern the teacher relies on implicitly via
// uuid.UUID's own driver.Valuer/Scanner.
func (id typedID) Value() (driver.Value, error) { return id.UUID.String(), nil }

func (id *typedID) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		u, err := uuid.Parse(v)
		if err != nil {
			return err
		}
		id.UUID = u
		return nil
	case []byte:
		u, err := uuid.Parse(string(v))
		if err != nil {
			return err
		}
		id.UUID = u
		return nil
	default:
		return fmt.Errorf("ids: cannot scan %T into typed id", src)
	}
}

// CEFRLevel is a Common European Framework proficiency band.
type CEFRLevel int

const (
	A1 CEFRLevel = iota + 1
	A2
	B1
	B2
	C1
	C2
)

func (l CEFRLevel) String() string {
	switch l {
	case A1:
		return "A1"
	case A2:
		return "A2"
	case B1:
		return "B1"
	case B2:
		return "B2"
	case C1:
		return "C1"
	case C2:
		return "C2"
	default:
		return "unknown"
	}
}

// Valid reports whether l is one of the six defined CEFR bands.
func (l CEFRLevel) Valid() bool { return l >= A1 && l <= C2 }

// ParseCEFRLevel parses the "A1".."C2" wire/storage representation.
func ParseCEFRLevel(s string) (CEFRLevel, error) {
	switch s {
	case "A1":
		return A1, nil
	case "A2":
		return A2, nil
	case "B1":
		return B1, nil
	case "B2":
		return B2, nil
	case "C1":
		return C1, nil
	case "C2":
		return C2, nil
	default:
		return 0, fmt.Errorf("ids: invalid CEFR level %q", s)
	}
}

// Value/Scan persist CEFRLevel as its "A1".."C2" text form, matching
// the TEXT columns read models store it in.
func (l CEFRLevel) Value() (driver.Value, error) { return l.String(), nil }

func (l *CEFRLevel) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("ids: cannot scan %T into CEFRLevel", src)
	}
	parsed, err := ParseCEFRLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// CorrectnessJudgment is the product-level verdict surfaced by the API,
// mapped onto an SM-2 difficulty code by pkg algorithm.
type CorrectnessJudgment int

const (
	Incorrect CorrectnessJudgment = 1
	Partial   CorrectnessJudgment = 2
	Correct   CorrectnessJudgment = 3
	Perfect   CorrectnessJudgment = 4
)

package schemaregistry

import (
	"context"
	"encoding/json"
)

// FieldError is a single validation failure (spec §4.2).
type FieldError struct {
	Field   string
	Message string
	Code    string
}

// FieldCheck validates one event type's payload beyond "is this valid
// JSON" — e.g. vocabulary.EntryCreated must carry entry_id and
// spelling.
type FieldCheck func(payload map[string]interface{}) []FieldError

// Validator consults the registry for existence, then runs the
// context-specific FieldCheck registered for that event type.
type Validator struct {
	registry *Registry
	checks   map[string]FieldCheck
}

func NewValidator(registry *Registry) *Validator {
	return &Validator{registry: registry, checks: make(map[string]FieldCheck)}
}

// RegisterCheck attaches a field-level check for eventType.
func (v *Validator) RegisterCheck(eventType string, check FieldCheck) {
	v.checks[eventType] = check
}

// Validate returns the empty slice when the payload is valid, or the
// list of field errors otherwise. Unknown event types are surfaced as
// a single FieldError with code UNKNOWN_EVENT_TYPE (spec §4.2).
func (v *Validator) Validate(ctx context.Context, eventType string, payload json.RawMessage) ([]FieldError, error) {
	if _, err := v.registry.GetSchema(ctx, eventType, nil); err != nil {
		return []FieldError{{Field: "event_type", Message: "unknown event type: " + eventType, Code: "UNKNOWN_EVENT_TYPE"}}, nil
	}

	check, ok := v.checks[eventType]
	if !ok {
		return nil, nil
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return []FieldError{{Field: "event_data", Message: "payload is not a JSON object", Code: "MALFORMED_PAYLOAD"}}, nil
	}
	return check(decoded), nil
}

// RequireFields builds a FieldCheck that requires the given fields to
// be present and, when their value is a string, non-empty (non-string
// values pass), the shape used by
// vocabulary.EntryCreated{entry_id, spelling} (spec §4.2).
func RequireFields(fields ...string) FieldCheck {
	return func(payload map[string]interface{}) []FieldError {
		var errs []FieldError
		for _, f := range fields {
			v, ok := payload[f]
			if !ok {
				errs = append(errs, FieldError{Field: f, Message: "field is required", Code: "REQUIRED"})
				continue
			}
			if s, ok := v.(string); ok && s == "" {
				errs = append(errs, FieldError{Field: f, Message: "field must not be empty", Code: "REQUIRED"})
			}
		}
		return errs
	}
}

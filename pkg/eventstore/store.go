// Package eventstore implements the append-only, per-stream event log
// from spec §4.1. It generalizes go-eventstore/eventstore.go (single
// aggregate_id keyed store, no stream_type, no soft-delete, no global
// read_all_forward/backward) into the full contract: streams are keyed
// by (stream_id, stream_type), position is a separate global monotonic
// sequence independent of per-stream version, and a soft-deleted
// stream's events still exist but are hidden from Read.
package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jules-labs/lexitrace/pkg/errs"
	"github.com/jules-labs/lexitrace/pkg/events"
	"github.com/jules-labs/lexitrace/pkg/ids"
	"github.com/jules-labs/lexitrace/pkg/schemaregistry"
)

// AnyVersion is the expected_version sentinel meaning "append
// regardless of the stream's current version" (spec §4.1).
const AnyVersion = -1

// EmptyStreamVersion is the current version of a stream that has never
// been appended to; versions are 1-based, so a stream's first event is
// version 1.
const EmptyStreamVersion = 0

// Store provides ACID append/read access to the event log, matching
// the teacher's EventStore but parameterized by stream_type and with
// the retry/soft-delete/global-read behavior spec §4.1 requires.
type Store struct {
	db        *sql.DB
	tracer    trace.Tracer
	registry  *schemaregistry.Registry
	validator *schemaregistry.Validator
}

// Option configures optional Store dependencies, matching
// pkg/repository's Option[T]/WithSoftDelete idiom.
type Option func(*Store)

// WithSchemaRegistry attaches the schema registry whose latest
// version per event type tags every appended event's
// metadata.schema_version (spec §3.2/§4.2).
func WithSchemaRegistry(registry *schemaregistry.Registry) Option {
	return func(s *Store) { s.registry = registry }
}

// WithValidator attaches a schema validator whose field-level checks
// run against every appended event's payload (spec §4.2's validation
// hooks). Event types with no registered schema are tolerated.
func WithValidator(validator *schemaregistry.Validator) Option {
	return func(s *Store) { s.validator = validator }
}

func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, tracer: otel.Tracer("lexitrace/eventstore")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// retryPolicy bounds the internal retry on serialization failures
// (spec §4.1/§5: 3 attempts, 10ms base, exponential backoff).
const (
	maxAttempts  = 3
	baseBackoff  = 10 * time.Millisecond
)

// Append atomically appends events to (streamID, streamType), enforcing
// optimistic concurrency against expectedVersion. expectedVersion ==
// AnyVersion skips the check. An empty events slice succeeds and
// returns the stream's unchanged current version (spec §8's chosen
// policy). On success it returns the new stream version.
func (s *Store) Append(ctx context.Context, streamID, streamType string, expectedVersion int, batch []events.Envelope) (int, error) {
	ctx, span := s.tracer.Start(ctx, "eventstore.append",
		trace.WithAttributes(
			attribute.String("stream.id", streamID),
			attribute.String("stream.type", streamType),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("event.count", len(batch)),
		),
	)
	defer span.End()

	var newVersion int
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		newVersion, err = s.appendOnce(ctx, streamID, streamType, expectedVersion, batch)
		if err == nil {
			return newVersion, nil
		}
		if !isSerializationFailure(err) {
			return 0, err
		}
		span.AddEvent("append.retry", trace.WithAttributes(attribute.Int("attempt", attempt+1)))
		time.Sleep(baseBackoff * time.Duration(math.Pow(2, float64(attempt))))
	}
	return 0, errs.Wrap(errs.EventStore, "append failed after retries", err)
}

func (s *Store) appendOnce(ctx context.Context, streamID, streamType string, expectedVersion int, batch []events.Envelope) (int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, errs.Wrap(errs.Database, "begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO event_streams (stream_id, stream_type) VALUES ($1, $2)
		ON CONFLICT (stream_id, stream_type) DO NOTHING
	`, streamID, streamType); err != nil {
		return 0, errs.Wrap(errs.Database, "ensure stream row", err)
	}

	current, err := currentVersionForUpdate(ctx, tx, streamID, streamType)
	if err != nil {
		return 0, err
	}

	if expectedVersion != AnyVersion && current != expectedVersion {
		return 0, errs.NewVersionConflict(expectedVersion, current)
	}

	if len(batch) == 0 {
		if err := tx.Commit(); err != nil {
			return 0, errs.Wrap(errs.Database, "commit empty append", err)
		}
		return current, nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (event_id, stream_id, stream_type, aggregate_type, event_type, event_version, event_data, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING position
	`)
	if err != nil {
		return 0, errs.Wrap(errs.Database, "prepare insert", err)
	}
	defer stmt.Close()

	newVersion := current
	for i := range batch {
		ev := &batch[i]
		version := current + i + 1
		if err := s.prepareMetadata(ctx, ev); err != nil {
			return 0, err
		}
		metaJSON, err := json.Marshal(ev.Metadata)
		if err != nil {
			return 0, errs.Wrap(errs.Serialization, "marshal metadata", err)
		}

		var position int64
		err = stmt.QueryRowContext(ctx,
			ev.EventID.String(), streamID, streamType, ev.AggregateType, ev.EventType,
			version, ev.EventData, metaJSON, time.Now().UTC(),
		).Scan(&position)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
				return 0, errs.NewVersionConflict(expectedVersion, current)
			}
			return 0, errs.Wrap(errs.Database, fmt.Sprintf("insert event %d", i), err)
		}
		newVersion = version
	}

	if err := tx.Commit(); err != nil {
		return 0, errs.Wrap(errs.Database, "commit append", err)
	}
	return newVersion, nil
}

// prepareMetadata tags ev with the registry's latest schema version
// for its event type and, when a validator is attached, runs the
// type's registered field check against the payload. Event types with
// no registered schema are tolerated: schema registration is
// progressive, not a precondition for appending (spec §4.2).
func (s *Store) prepareMetadata(ctx context.Context, ev *events.Envelope) error {
	if s.registry != nil {
		if schema, err := s.registry.GetSchema(ctx, ev.EventType, nil); err == nil {
			ev.Metadata.SchemaVersion = schema.Version
		}
	}
	if s.validator == nil {
		return nil
	}
	fieldErrs, err := s.validator.Validate(ctx, ev.EventType, ev.EventData)
	if err != nil {
		return errs.Wrap(errs.Internal, "validate event payload", err)
	}
	for _, fe := range fieldErrs {
		if fe.Code == "UNKNOWN_EVENT_TYPE" {
			return nil
		}
		return errs.New(errs.Validation, fe.Field+": "+fe.Message)
	}
	return nil
}

func currentVersionForUpdate(ctx context.Context, tx *sql.Tx, streamID, streamType string) (int, error) {
	if _, err := tx.ExecContext(ctx, `
		SELECT 1 FROM event_streams
		WHERE stream_id = $1 AND stream_type = $2
		FOR UPDATE
	`, streamID, streamType); err != nil {
		return 0, errs.Wrap(errs.Database, "lock stream row", err)
	}

	var current sql.NullInt64
	err := tx.QueryRowContext(ctx, `
		SELECT MAX(event_version)
		FROM events
		WHERE stream_id = $1 AND stream_type = $2
	`, streamID, streamType).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, errs.Wrap(errs.Database, "query current version", err)
	}
	if !current.Valid {
		return EmptyStreamVersion, nil
	}
	return int(current.Int64), nil
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" // serialization_failure
	}
	return false
}

// Read returns the visible (non-soft-deleted) events of a stream in
// ascending version order, optionally bounded by toVersion (0 means
// unbounded).
func (s *Store) Read(ctx context.Context, streamID, streamType string, fromVersion, toVersion int) ([]events.Envelope, error) {
	ctx, span := s.tracer.Start(ctx, "eventstore.read",
		trace.WithAttributes(
			attribute.String("stream.id", streamID),
			attribute.String("stream.type", streamType),
			attribute.Int("from.version", fromVersion),
		),
	)
	defer span.End()

	query := `
		SELECT e.event_id, e.stream_id, e.aggregate_type, e.event_type, e.event_version, e.event_data, e.metadata, e.position, e.created_at
		FROM events e
		JOIN event_streams st ON st.stream_id = e.stream_id AND st.stream_type = e.stream_type
		WHERE e.stream_id = $1 AND e.stream_type = $2 AND e.event_version >= $3 AND st.deleted_at IS NULL
	`
	args := []interface{}{streamID, streamType, fromVersion}
	if toVersion > 0 {
		query += " AND e.event_version <= $4"
		args = append(args, toVersion)
	}
	query += " ORDER BY e.event_version ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.Database, "query events", err)
	}
	defer rows.Close()

	out, err := scanEnvelopes(rows, streamType)
	span.SetAttributes(attribute.Int("events.read", len(out)))
	return out, err
}

// ReadAllForward streams the global event log in ascending position
// order starting after fromPosition, used by projection catch-up
// (spec §4.5).
func (s *Store) ReadAllForward(ctx context.Context, fromPosition int64, max int) ([]events.Envelope, error) {
	return s.readAll(ctx, fromPosition, max, "ASC")
}

// ReadAllBackward streams the global event log in descending position
// order starting before fromPosition.
func (s *Store) ReadAllBackward(ctx context.Context, fromPosition int64, max int) ([]events.Envelope, error) {
	return s.readAll(ctx, fromPosition, max, "DESC")
}

func (s *Store) readAll(ctx context.Context, fromPosition int64, max int, dir string) ([]events.Envelope, error) {
	ctx, span := s.tracer.Start(ctx, "eventstore.read_all")
	defer span.End()

	cmp := ">"
	if dir == "DESC" {
		cmp = "<"
	}
	query := fmt.Sprintf(`
		SELECT event_id, stream_id, aggregate_type, event_type, event_version, event_data, metadata, position, created_at
		FROM events
		WHERE position %s $1
		ORDER BY position %s
		LIMIT $2
	`, cmp, dir)

	rows, err := s.db.QueryContext(ctx, query, fromPosition, max)
	if err != nil {
		return nil, errs.Wrap(errs.Database, "query event stream", err)
	}
	defer rows.Close()

	out, err := scanEnvelopes(rows, "")
	span.SetAttributes(attribute.Int("events.streamed", len(out)))
	return out, err
}

func scanEnvelopes(rows *sql.Rows, streamType string) ([]events.Envelope, error) {
	var out []events.Envelope
	for rows.Next() {
		var env events.Envelope
		var eventID string
		var metaJSON []byte
		if err := rows.Scan(&eventID, &env.AggregateID, &env.AggregateType, &env.EventType, &env.EventVersion, &env.EventData, &metaJSON, &env.Position, &env.CreatedAt); err != nil {
			return nil, errs.Wrap(errs.Database, "scan event", err)
		}
		if id, err := ids.ParseEventId(eventID); err == nil {
			env.EventID = id
		}
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &env.Metadata)
		}
		out = append(out, env)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.Database, "iterate events", err)
	}
	return out, nil
}

// DeleteStream soft-deletes a stream: rows remain for audit/replay from
// snapshots and are hidden from Read's JOIN filter. ReadAllForward and
// ReadAllBackward do not filter on deleted_at and still return them.
func (s *Store) DeleteStream(ctx context.Context, streamID, streamType string, expectedVersion int) error {
	ctx, span := s.tracer.Start(ctx, "eventstore.delete_stream")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.Database, "begin transaction", err)
	}
	defer tx.Rollback()

	if expectedVersion != AnyVersion {
		current, err := currentVersionForUpdate(ctx, tx, streamID, streamType)
		if err != nil {
			return err
		}
		if current == EmptyStreamVersion {
			return errs.NewNotFound("stream", streamID)
		}
		if current != expectedVersion {
			return errs.NewVersionConflict(expectedVersion, current)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE event_streams SET deleted_at = NOW()
		WHERE stream_id = $1 AND stream_type = $2 AND deleted_at IS NULL
	`, streamID, streamType)
	if err != nil {
		return errs.Wrap(errs.Database, "soft-delete stream", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NewNotFound("stream", streamID)
	}
	return tx.Commit()
}

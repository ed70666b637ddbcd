package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jules-labs/lexitrace/pkg/errs"
)

// Snapshot is an opaque checkpoint of aggregate state at a given
// version (spec §3.4). Content is opaque to the store — callers
// marshal/unmarshal their own aggregate representation.
type Snapshot struct {
	StreamID      string          `json:"stream_id"`
	StreamType    string          `json:"stream_type"`
	Version       int             `json:"version"`
	Data          json.RawMessage `json:"data"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SaveSnapshot upserts keyed on (stream_id, stream_type, version), per
// spec §4.1.
func (s *Store) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	_, span := s.tracer.Start(ctx, "eventstore.save_snapshot",
		trace.WithAttributes(
			attribute.String("stream.id", snap.StreamID),
			attribute.Int("snapshot.version", snap.Version),
		),
	)
	defer span.End()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (stream_id, stream_type, version, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (stream_id, stream_type, version) DO UPDATE
		SET data = EXCLUDED.data, created_at = EXCLUDED.created_at
	`, snap.StreamID, snap.StreamType, snap.Version, snap.Data, time.Now().UTC())
	if err != nil {
		return errs.Wrap(errs.Database, "save snapshot", err)
	}
	return nil
}

// GetSnapshot returns the latest snapshot with version <= maxVersion
// (0 means "latest regardless of version"), or nil if none exists.
// Snapshots may be sparse; this is the store's only obligation.
func (s *Store) GetSnapshot(ctx context.Context, streamID, streamType string, maxVersion int) (*Snapshot, error) {
	_, span := s.tracer.Start(ctx, "eventstore.get_snapshot")
	defer span.End()

	query := `
		SELECT stream_id, stream_type, version, data, created_at
		FROM snapshots
		WHERE stream_id = $1 AND stream_type = $2
	`
	args := []interface{}{streamID, streamType}
	if maxVersion > 0 {
		query += " AND version <= $3"
		args = append(args, maxVersion)
	}
	query += " ORDER BY version DESC LIMIT 1"

	var snap Snapshot
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&snap.StreamID, &snap.StreamType, &snap.Version, &snap.Data, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.Database, "load snapshot", err)
	}
	return &snap, nil
}

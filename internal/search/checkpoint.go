package search

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jules-labs/lexitrace/pkg/errs"
)

// Status is a projection's catch-up state, mirroring
// internal/progress/checkpoint.go's Status (spec §4.5). Duplicated
// rather than shared because this context's checkpoint lives in its
// own index-sidecar database, separate from progress's read-model
// database.
type Status string

const (
	StatusRunning    Status = "running"
	StatusCatchingUp Status = "catching_up"
	StatusFaulted    Status = "faulted"
)

type checkpoint struct {
	Name                   string    `db:"name"`
	LastProcessedEventID   string    `db:"last_processed_event_id"`
	LastProcessedTimestamp time.Time `db:"last_processed_timestamp"`
	EventStorePosition     int64     `db:"event_store_position"`
	Status                 Status    `db:"status"`
	ErrorCount             int       `db:"error_count"`
	LastError              string    `db:"last_error"`
}

func loadCheckpoint(ctx context.Context, db *sqlx.DB, name string) (checkpoint, error) {
	var cp checkpoint
	err := db.GetContext(ctx, &cp, `SELECT * FROM projection_checkpoints WHERE name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return checkpoint{Name: name, Status: StatusCatchingUp}, nil
	}
	if err != nil {
		return checkpoint{}, errs.Wrap(errs.Database, "load projection checkpoint", err)
	}
	return cp, nil
}

func saveCheckpoint(ctx context.Context, db *sqlx.DB, cp checkpoint) error {
	_, err := sqlx.NamedExecContext(ctx, db, `
		INSERT INTO projection_checkpoints
			(name, last_processed_event_id, last_processed_timestamp, event_store_position, status, error_count, last_error)
		VALUES
			(:name, :last_processed_event_id, :last_processed_timestamp, :event_store_position, :status, :error_count, :last_error)
		ON CONFLICT (name) DO UPDATE SET
			last_processed_event_id = EXCLUDED.last_processed_event_id,
			last_processed_timestamp = EXCLUDED.last_processed_timestamp,
			event_store_position = EXCLUDED.event_store_position,
			status = EXCLUDED.status,
			error_count = EXCLUDED.error_count,
			last_error = EXCLUDED.last_error
	`, cp)
	if err != nil {
		return errs.Wrap(errs.Database, "save projection checkpoint", err)
	}
	return nil
}

func markFaulted(ctx context.Context, db *sqlx.DB, cp checkpoint, cause error) error {
	cp.Status = StatusFaulted
	cp.ErrorCount++
	cp.LastError = cause.Error()
	return saveCheckpoint(ctx, db, cp)
}

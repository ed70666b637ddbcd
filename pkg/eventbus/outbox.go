package eventbus

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/jules-labs/lexitrace/pkg/errs"
	"github.com/jules-labs/lexitrace/pkg/eventstore"
)

// outbox tracks how far the bus has reconciled the global event log, so
// a restart resumes from the last acknowledged position rather than
// replaying the whole store (spec §4.3's outbox/at-least-once delivery
// requirement). There is no teacher equivalent; the single-row
// checkpoint shape mirrors the projection checkpoint convention
// documented in SPEC_FULL.md §4.5.
type Outbox struct {
	db    *sql.DB
	store *eventstore.Store
	bus   Bus

	limiter   *rate.Limiter
	batchSize int
}

// NewOutbox builds a reconciliation worker that polls the event store
// for positions beyond its last checkpoint and republishes them,
// throttled to maxPollsPerSecond polls/sec so a quiet system doesn't
// spin the database.
func NewOutbox(db *sql.DB, store *eventstore.Store, bus Bus, maxPollsPerSecond rate.Limit, batchSize int) *Outbox {
	return &Outbox{
		db:        db,
		store:     store,
		bus:       bus,
		limiter:   rate.NewLimiter(maxPollsPerSecond, 1),
		batchSize: batchSize,
	}
}

// Run polls until ctx is cancelled. Each iteration reads the next batch
// of events after the checkpointed position, publishes them, and
// advances the checkpoint only once every event in the batch publishes
// successfully — republishing a batch on failure is expected to be
// idempotent downstream (spec §4.3 at-least-once).
func (o *Outbox) Run(ctx context.Context) error {
	for {
		if err := o.limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}

		advanced, err := o.reconcileOnce(ctx)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !advanced {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(200 * time.Millisecond):
			}
		}
	}
}

func (o *Outbox) reconcileOnce(ctx context.Context) (bool, error) {
	checkpoint, err := o.loadCheckpoint(ctx)
	if err != nil {
		return false, err
	}

	batch, err := o.store.ReadAllForward(ctx, checkpoint, o.batchSize)
	if err != nil {
		return false, err
	}
	if len(batch) == 0 {
		return false, nil
	}

	if err := o.bus.PublishBatch(ctx, batch); err != nil {
		return false, err
	}

	return true, o.saveCheckpoint(ctx, batch[len(batch)-1].Position)
}

func (o *Outbox) loadCheckpoint(ctx context.Context) (int64, error) {
	var position int64
	err := o.db.QueryRowContext(ctx, `SELECT last_position FROM outbox_checkpoint WHERE id = 1`).Scan(&position)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errs.Wrap(errs.Database, "load outbox checkpoint", err)
	}
	return position, nil
}

func (o *Outbox) saveCheckpoint(ctx context.Context, position int64) error {
	_, err := o.db.ExecContext(ctx, `
		INSERT INTO outbox_checkpoint (id, last_position, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET last_position = EXCLUDED.last_position, updated_at = EXCLUDED.updated_at
		WHERE outbox_checkpoint.last_position < EXCLUDED.last_position
	`, position)
	if err != nil {
		return errs.Wrap(errs.Database, "save outbox checkpoint", err)
	}
	return nil
}

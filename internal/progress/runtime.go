package progress

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/time/rate"

	"github.com/jules-labs/lexitrace/pkg/errs"
	"github.com/jules-labs/lexitrace/pkg/eventbus"
	"github.com/jules-labs/lexitrace/pkg/events"
	"github.com/jules-labs/lexitrace/pkg/eventstore"
)

// handlerFunc folds one event into the read models reachable from tx,
// matching the "pure function over (row, event) -> new row" shape of
// §4.5. Handlers are themselves responsible for the
// env.Position > stored last_event_version idempotence check (the
// column stores the event's global position), since
// the row that check applies against differs per event type. Any
// events the handler itself originates (achievements) are returned
// rather than appended inline, so they reach the store only after tx
// has committed.
type handlerFunc func(ctx context.Context, tx *sqlx.Tx, env events.Envelope) ([]events.Envelope, error)

// Runtime polls the event store in position order and routes each
// envelope to the handler registered for its event type, generalizing
// pkg/eventbus.Outbox's poll-dispatch-checkpoint loop (no teacher
// equivalent exists; the teacher writes read models inline in the
// command path) to cover every event type progress cares about instead
// of one fixed republish action.
type Runtime struct {
	name      string
	db        *sqlx.DB
	store     *eventstore.Store
	bus       eventbus.Bus
	limiter   *rate.Limiter
	batchSize int
	handlers  map[string]handlerFunc
}

// NewRuntime builds the progress projection runtime, wired to fold
// algorithm/user events into the §3.8 read models.
func NewRuntime(db *sqlx.DB, store *eventstore.Store, bus eventbus.Bus, maxPollsPerSecond rate.Limit, batchSize int) *Runtime {
	r := &Runtime{
		name:      "progress",
		db:        db,
		store:     store,
		bus:       bus,
		limiter:   rate.NewLimiter(maxPollsPerSecond, 1),
		batchSize: batchSize,
		handlers:  map[string]handlerFunc{},
	}
	r.registerHandlers()
	return r
}

func (r *Runtime) on(eventType string, h handlerFunc) {
	r.handlers[eventType] = h
}

// Run polls until ctx is cancelled, dispatching each batch of events
// one at a time so a handler failure mid-batch faults the checkpoint at
// exactly the offending event rather than silently skipping it.
func (r *Runtime) Run(ctx context.Context) error {
	for {
		if err := r.limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}

		advanced, err := r.tick(ctx)
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

func (r *Runtime) tick(ctx context.Context) (bool, error) {
	cp, err := loadCheckpoint(ctx, r.db, r.name)
	if err != nil {
		return false, err
	}

	batch, err := r.store.ReadAllForward(ctx, cp.EventStorePosition, r.batchSize)
	if err != nil {
		return false, err
	}
	if len(batch) == 0 {
		if cp.Status != StatusRunning {
			cp.Status = StatusRunning
			_ = saveCheckpoint(ctx, r.db, cp)
		}
		return false, nil
	}

	for _, env := range batch {
		if err := r.dispatchOne(ctx, env); err != nil {
			cp.EventStorePosition = env.Position - 1
			_ = markFaulted(ctx, r.db, cp, err)
			return false, err
		}
		cp.EventStorePosition = env.Position
		cp.LastProcessedEventID = env.EventID.String()
		cp.LastProcessedTimestamp = env.CreatedAt
		cp.Status = StatusRunning
		cp.LastError = ""
	}
	return true, saveCheckpoint(ctx, r.db, cp)
}

// dispatchOne runs the registered handler (if any) for env's type
// inside one DB transaction, so a partially-applied read-model mutation
// can never be observed. Any events the handler originates are only
// appended to the store, and published, once the read-model
// transaction has committed successfully.
func (r *Runtime) dispatchOne(ctx context.Context, env events.Envelope) error {
	h, ok := r.handlers[env.EventType]
	if !ok {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.Database, "begin projection transaction", err)
	}
	originated, err := h(ctx, tx, env)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.Database, "commit projection transaction", err)
	}

	for _, oenv := range originated {
		if _, err := r.store.Append(ctx, oenv.AggregateID, oenv.AggregateType, eventstore.AnyVersion, []events.Envelope{oenv}); err != nil {
			continue // best-effort; the achievement row is already durable, the outbox is not responsible for self-originated events outside the main aggregates
		}
		_ = r.bus.Publish(ctx, oenv)
	}
	return nil
}

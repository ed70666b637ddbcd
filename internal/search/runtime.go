package search

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/time/rate"

	"github.com/jules-labs/lexitrace/pkg/errs"
	"github.com/jules-labs/lexitrace/pkg/events"
	"github.com/jules-labs/lexitrace/pkg/eventstore"
)

type handlerFunc func(ctx context.Context, env events.Envelope) error

// Runtime is the projection loop that keeps the Meilisearch index
// current, structured the same poll/dispatch/checkpoint way as
// internal/progress.Runtime (spec §4.5). It carries no read-model
// database of its own beyond the checkpoint row, since Meilisearch
// itself is the projected state.
type Runtime struct {
	name      string
	db        *sqlx.DB
	store     *eventstore.Store
	indexer   *Indexer
	limiter   *rate.Limiter
	batchSize int
	handlers  map[string]handlerFunc
}

func NewRuntime(db *sqlx.DB, store *eventstore.Store, indexer *Indexer, maxPollsPerSecond rate.Limit, batchSize int) *Runtime {
	r := &Runtime{name: "search", db: db, store: store, indexer: indexer,
		limiter: rate.NewLimiter(maxPollsPerSecond, 1), batchSize: batchSize, handlers: map[string]handlerFunc{}}
	r.registerHandlers()
	return r
}

func (r *Runtime) registerHandlers() {
	r.handlers[events.TypeVocabularyItemCreated] = r.handleItemCreated
	r.handlers[events.TypeVocabularyItemDisambiguationUpdated] = r.handleDisambiguationUpdated
	r.handlers[events.TypeVocabularyItemPublished] = r.handlePublished
	r.handlers[events.TypeVocabularyItemDeleted] = r.handleDeleted
}

func (r *Runtime) Run(ctx context.Context) error {
	if err := r.indexer.EnsureIndex(); err != nil {
		return err
	}
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
		if h, ok := r.handlers[env.EventType]; ok {
			if err := h(ctx, env); err != nil {
				cp.EventStorePosition = env.Position - 1
				_ = markFaulted(ctx, r.db, cp, err)
				return false, err
			}
		}
		cp.EventStorePosition = env.Position
		cp.LastProcessedEventID = env.EventID.String()
		cp.LastProcessedTimestamp = env.CreatedAt
		cp.Status = StatusRunning
		cp.LastError = ""
	}
	return true, saveCheckpoint(ctx, r.db, cp)
}

func decode[T any](env events.Envelope) (T, error) {
	var payload T
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		var zero T
		return zero, errs.Wrap(errs.Serialization, "decode "+env.EventType+" payload", err)
	}
	return payload, nil
}

func (r *Runtime) handleItemCreated(ctx context.Context, env events.Envelope) error {
	payload, err := decode[events.VocabularyItemCreated](env)
	if err != nil {
		return err
	}
	now := env.CreatedAt
	cefr := ""
	if payload.CEFRLevel.Valid() {
		cefr = payload.CEFRLevel.String()
	}
	doc := Document{
		ItemID:         payload.ItemID.String(),
		EntryID:        payload.EntryID.String(),
		Spelling:       payload.Spelling,
		Disambiguation: payload.Disambiguation,
		PartOfSpeech:   payload.PartOfSpeech,
		Register:       payload.Register,
		Domain:         payload.Domain,
		Definitions:    payload.Definitions,
		CEFRLevel:      cefr,
		HasDefinition:  len(payload.Definitions) > 0,
		Published:      false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return r.indexer.IndexDocument(doc)
}

func (r *Runtime) handleDisambiguationUpdated(ctx context.Context, env events.Envelope) error {
	payload, err := decode[events.VocabularyItemDisambiguationUpdated](env)
	if err != nil {
		return err
	}
	return r.indexer.MergeDocument(map[string]interface{}{
		"item_id":        payload.ItemID.String(),
		"disambiguation": payload.New,
		"updated_at":     env.CreatedAt,
	})
}

func (r *Runtime) handlePublished(ctx context.Context, env events.Envelope) error {
	payload, err := decode[events.VocabularyItemPublished](env)
	if err != nil {
		return err
	}
	return r.indexer.MergeDocument(map[string]interface{}{
		"item_id":      payload.ItemID.String(),
		"is_published": true,
		"updated_at":   env.CreatedAt,
	})
}

func (r *Runtime) handleDeleted(ctx context.Context, env events.Envelope) error {
	payload, err := decode[events.VocabularyItemDeleted](env)
	if err != nil {
		return err
	}
	return r.indexer.DeleteDocument(payload.ItemID.String())
}

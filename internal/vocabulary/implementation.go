package vocabulary

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jules-labs/lexitrace/pkg/errs"
	"github.com/jules-labs/lexitrace/pkg/events"
	"github.com/jules-labs/lexitrace/pkg/eventbus"
	"github.com/jules-labs/lexitrace/pkg/eventstore"
	"github.com/jules-labs/lexitrace/pkg/ids"
	"github.com/jules-labs/lexitrace/pkg/repository"
)

const (
	itemAggregateType  = "vocabulary_item"
	entryAggregateType = "vocabulary_entry"
)

// service implements Service, generalizing catalog.service's
// event-store-then-read-model write order (AddItem/UpdateItemCopies/
// RemoveItem) onto the Entry/Item aggregate pair.
type service struct {
	store   *eventstore.Store
	bus     eventbus.Bus
	items   *repository.Repository[Item]
	entries *repository.Repository[Entry]
	db      *sqlx.DB
}

func NewService(store *eventstore.Store, bus eventbus.Bus, db *sqlx.DB) Service {
	return &service{
		store:   store,
		bus:     bus,
		items:   repository.New[Item](db, "vocabulary_items", "id", repository.WithSoftDelete[Item]()),
		entries: repository.New[Entry](db, "vocabulary_entries", "id"),
		db:      db,
	}
}

// findOrCreateEntry resolves spelling to an Entry id, creating one if
// none exists yet. The INSERT ... ON CONFLICT ... RETURNING xmax trick
// makes the read-model side of "find-or-create" a single atomic
// statement (spec §9), independent of the surrounding event-store
// appends, so concurrent callers racing on the same spelling can never
// both observe "not found" and insert a duplicate.
func (s *service) findOrCreateEntry(ctx context.Context, spelling string) (ids.EntryId, bool, error) {
	newID := ids.NewEntryId()
	var (
		resolvedID string
		inserted   bool
	)
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO vocabulary_entries (id, spelling, version)
		VALUES ($1, $2, 1)
		ON CONFLICT (spelling) DO UPDATE SET spelling = EXCLUDED.spelling
		RETURNING id, (xmax = 0) AS inserted
	`, newID.String(), spelling).Scan(&resolvedID, &inserted)
	if err != nil {
		return ids.EntryId{}, false, errs.Wrap(errs.Database, "find or create vocabulary entry", err)
	}

	entryID, err := ids.ParseEntryId(resolvedID)
	if err != nil {
		return ids.EntryId{}, false, errs.Wrap(errs.Internal, "parse resolved entry id", err)
	}
	return entryID, inserted, nil
}

func (s *service) CreateVocabularyItem(ctx context.Context, entryID *ids.EntryId, spelling, disambiguation string, partOfSpeech PartOfSpeech, register Register, domain Domain, definitions []string, level ids.CEFRLevel) (*Item, error) {
	if spelling == "" || len(definitions) == 0 {
		return nil, errs.New(errs.Validation, "spelling and at least one definition are required")
	}
	if !partOfSpeech.Valid() {
		return nil, errs.New(errs.Validation, "invalid part_of_speech")
	}

	var resolvedEntryID ids.EntryId
	var entryCreated bool
	var err error
	if entryID != nil {
		resolvedEntryID = *entryID
	} else {
		resolvedEntryID, entryCreated, err = s.findOrCreateEntry(ctx, spelling)
		if err != nil {
			return nil, err
		}
	}

	if entryCreated {
		entryEnv, err := events.New(resolvedEntryID.String(), entryAggregateType, events.TypeVocabularyEntryCreated, 0,
			events.VocabularyEntryCreated{EntryID: resolvedEntryID, Spelling: spelling},
			events.Metadata{SourceContext: "vocabulary"})
		if err != nil {
			return nil, errs.Wrap(errs.Internal, "build entry event envelope", err)
		}
		if _, err := s.store.Append(ctx, resolvedEntryID.String(), entryAggregateType, eventstore.AnyVersion, []events.Envelope{entryEnv}); err != nil {
			return nil, err
		}
		_ = s.bus.Publish(ctx, entryEnv)
	}

	itemID := ids.NewItemId()
	itemEnv, err := events.New(itemID.String(), itemAggregateType, events.TypeVocabularyItemCreated, 0,
		events.VocabularyItemCreated{ItemID: itemID, EntryID: resolvedEntryID, Spelling: spelling,
			Disambiguation: disambiguation, PartOfSpeech: string(partOfSpeech),
			Register: string(register), Domain: string(domain), Definitions: definitions,
			CEFRLevel: level},
		events.Metadata{SourceContext: "vocabulary"})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "build item event envelope", err)
	}
	if _, err := s.store.Append(ctx, itemID.String(), itemAggregateType, eventstore.AnyVersion, []events.Envelope{itemEnv}); err != nil {
		return nil, err
	}

	item := Item{
		ID: itemID, EntryID: resolvedEntryID, Spelling: spelling, Disambiguation: disambiguation,
		PartOfSpeech: partOfSpeech, Register: register, Domain: domain, Definitions: definitions,
		CEFRLevel: level, Published: false, Version: 1,
	}
	if err := s.items.Insert(ctx, []string{"id", "entry_id", "spelling", "disambiguation", "part_of_speech",
		"register", "domain", "definitions", "cefr_level", "published", "version"}, item); err != nil {
		return nil, err
	}

	_ = s.bus.Publish(ctx, itemEnv)
	return &item, nil
}

func (s *service) UpdateVocabularyItem(ctx context.Context, itemID ids.ItemId, expectedVersion int, updates []FieldUpdate) (int, error) {
	var current Item
	if err := s.items.FindByID(ctx, itemID.String(), &current); err != nil {
		return 0, err
	}

	set := map[string]interface{}{}
	var disambiguationEnv *events.Envelope
	for _, u := range updates {
		switch u.FieldName {
		case "disambiguation":
			if u.ValueJSON != current.Disambiguation {
				env, err := events.New(itemID.String(), itemAggregateType, events.TypeVocabularyItemDisambiguationUpdated, expectedVersion,
					events.VocabularyItemDisambiguationUpdated{ItemID: itemID, Old: current.Disambiguation, New: u.ValueJSON},
					events.Metadata{SourceContext: "vocabulary"})
				if err != nil {
					return 0, errs.Wrap(errs.Internal, "build disambiguation event envelope", err)
				}
				disambiguationEnv = &env
				set["disambiguation"] = u.ValueJSON
			}
		case "register":
			set["register"] = u.ValueJSON
		case "domain":
			set["domain"] = u.ValueJSON
		default:
			return 0, errs.New(errs.Validation, "unsupported update field: "+u.FieldName)
		}
	}
	if len(set) == 0 {
		return current.Version, nil
	}

	batch := []events.Envelope{}
	if disambiguationEnv != nil {
		batch = append(batch, *disambiguationEnv)
	}
	if len(batch) > 0 {
		if _, err := s.store.Append(ctx, itemID.String(), itemAggregateType, expectedVersion, batch); err != nil {
			return 0, err
		}
	}

	if err := s.items.UpdateVersioned(ctx, itemID.String(), expectedVersion, set); err != nil {
		return 0, err
	}
	for _, env := range batch {
		_ = s.bus.Publish(ctx, env)
	}
	return expectedVersion + 1, nil
}

func (s *service) PublishVocabularyItem(ctx context.Context, itemID ids.ItemId, expectedVersion int) error {
	var current Item
	if err := s.items.FindByID(ctx, itemID.String(), &current); err != nil {
		return err
	}
	if current.Published {
		return errs.New(errs.Domain, "item is already published")
	}

	env, err := events.New(itemID.String(), itemAggregateType, events.TypeVocabularyItemPublished, expectedVersion,
		events.VocabularyItemPublished{ItemID: itemID},
		events.Metadata{SourceContext: "vocabulary"})
	if err != nil {
		return errs.Wrap(errs.Internal, "build publish event envelope", err)
	}
	if _, err := s.store.Append(ctx, itemID.String(), itemAggregateType, expectedVersion, []events.Envelope{env}); err != nil {
		return err
	}
	if err := s.items.UpdateVersioned(ctx, itemID.String(), expectedVersion, map[string]interface{}{"published": true}); err != nil {
		return err
	}
	_ = s.bus.Publish(ctx, env)
	return nil
}

func (s *service) DeleteVocabularyItem(ctx context.Context, itemID ids.ItemId, issuedBy ids.UserId) error {
	var current Item
	if err := s.items.FindByID(ctx, itemID.String(), &current); err != nil {
		return err
	}

	env, err := events.New(itemID.String(), itemAggregateType, events.TypeVocabularyItemDeleted, current.Version,
		events.VocabularyItemDeleted{ItemID: itemID, DeletedBy: issuedBy},
		events.Metadata{SourceContext: "vocabulary", CausedByUser: &issuedBy})
	if err != nil {
		return errs.Wrap(errs.Internal, "build delete event envelope", err)
	}
	if _, err := s.store.Append(ctx, itemID.String(), itemAggregateType, current.Version, []events.Envelope{env}); err != nil {
		return err
	}
	if err := s.items.SoftDelete(ctx, itemID.String(), current.Version); err != nil {
		return err
	}
	_ = s.bus.Publish(ctx, env)
	return nil
}


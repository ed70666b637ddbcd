package vocabulary

import (
	"context"

	"github.com/jules-labs/lexitrace/pkg/ids"
)

// Service is the vocabulary bounded context's command/query surface
// (spec §6.2).
type Service interface {
	CreateVocabularyItem(ctx context.Context, entryID *ids.EntryId, spelling, disambiguation string, partOfSpeech PartOfSpeech, register Register, domain Domain, definitions []string, level ids.CEFRLevel) (*Item, error)
	UpdateVocabularyItem(ctx context.Context, itemID ids.ItemId, expectedVersion int, updates []FieldUpdate) (int, error)
	DeleteVocabularyItem(ctx context.Context, itemID ids.ItemId, issuedBy ids.UserId) error
	PublishVocabularyItem(ctx context.Context, itemID ids.ItemId, expectedVersion int) error
	GetItem(ctx context.Context, itemID ids.ItemId) (*Item, error)
	GetEntry(ctx context.Context, entryID ids.EntryId) (*Entry, error)
	FindBySpelling(ctx context.Context, spelling string) ([]Item, error)
}

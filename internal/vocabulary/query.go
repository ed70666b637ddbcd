package vocabulary

import (
	"context"

	"github.com/jules-labs/lexitrace/pkg/errs"
	"github.com/jules-labs/lexitrace/pkg/ids"
)

// Query-side reads for the vocabulary context, split from
// implementation.go's command handlers the way
// vocabulary_query_service sits apart from the write-side service in
// the original system — command handling and read-model access share
// the same Service interface here, but never the same method bodies.

func (s *service) GetItem(ctx context.Context, itemID ids.ItemId) (*Item, error) {
	var item Item
	if err := s.items.FindByID(ctx, itemID.String(), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *service) GetEntry(ctx context.Context, entryID ids.EntryId) (*Entry, error) {
	var entry Entry
	if err := s.entries.FindByID(ctx, entryID.String(), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *service) FindBySpelling(ctx context.Context, spelling string) ([]Item, error) {
	var items []Item
	err := s.db.SelectContext(ctx, &items, `
		SELECT * FROM vocabulary_items WHERE spelling = $1 AND deleted_at IS NULL ORDER BY created_at ASC
	`, spelling)
	if err != nil {
		return nil, errs.Wrap(errs.Database, "find vocabulary items by spelling", err)
	}
	return items, nil
}

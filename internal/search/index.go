package search

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/meilisearch/meilisearch-go"

	"github.com/jules-labs/lexitrace/pkg/errs"
)

// searchableAttributes, filterableAttributes, and sortableAttributes
// mirror meilisearch.rs's apply_default_settings, adapted to
// Document's field names.
var (
	searchableAttributes = []string{"spelling", "disambiguation", "definitions"}
	filterableAttributes = []string{"part_of_speech", "cefr_level", "is_published", "has_definition"}
	sortableAttributes    = []string{"spelling", "cefr_level", "created_at", "updated_at"}
	rankingRules          = []string{"words", "typo", "proximity", "attribute", "sort", "exactness"}
)

// Indexer wraps a Meilisearch index, grounded on
// original_source/.../infrastructure/repositories/meilisearch.rs's
// MeilisearchRepository. It lazily creates and configures its index
// on first use rather than requiring a separate migration step, same
// as the original's get_or_create_index.
type Indexer struct {
	client    meilisearch.ServiceManager
	indexName string
}

func NewIndexer(host, apiKey, indexName string) *Indexer {
	client := meilisearch.NewClient(meilisearch.ClientConfig{Host: host, APIKey: apiKey})
	return &Indexer{client: client, indexName: indexName}
}

func (ix *Indexer) index() meilisearch.IndexManager {
	return ix.client.Index(ix.indexName)
}

// EnsureIndex creates the index and applies its settings if it
// doesn't exist yet. Safe to call repeatedly; Meilisearch itself is
// idempotent about index creation.
func (ix *Indexer) EnsureIndex() error {
	if _, err := ix.client.GetIndex(ix.indexName); err == nil {
		return nil
	}
	if _, err := ix.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        ix.indexName,
		PrimaryKey: "item_id",
	}); err != nil {
		return errs.Wrap(errs.Internal, "create search index", err)
	}
	settings := &meilisearch.Settings{
		SearchableAttributes: searchableAttributes,
		FilterableAttributes: filterableAttributes,
		SortableAttributes:   sortableAttributes,
		RankingRules:         rankingRules,
	}
	if _, err := ix.index().UpdateSettings(settings); err != nil {
		return errs.Wrap(errs.Internal, "apply search index settings", err)
	}
	return nil
}

func (ix *Indexer) IndexDocument(doc Document) error {
	return ix.BatchIndex([]Document{doc})
}

func (ix *Indexer) BatchIndex(docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	if _, err := ix.index().AddDocuments(docs, "item_id"); err != nil {
		return errs.Wrap(errs.Internal, "index search documents", err)
	}
	return nil
}

// MergeDocument partially updates an existing document, leaving
// unspecified fields untouched — Meilisearch's update-documents
// endpoint merges by primary key rather than replacing, unlike
// AddDocuments/IndexDocument which always replaces the full record.
func (ix *Indexer) MergeDocument(partial map[string]interface{}) error {
	if _, err := ix.index().UpdateDocuments([]map[string]interface{}{partial}, "item_id"); err != nil {
		return errs.Wrap(errs.Internal, "merge search document", err)
	}
	return nil
}

func (ix *Indexer) DeleteDocument(itemID string) error {
	if _, err := ix.index().DeleteDocument(itemID); err != nil {
		return errs.Wrap(errs.Internal, "delete search document", err)
	}
	return nil
}

func (ix *Indexer) ClearIndex() error {
	if _, err := ix.index().DeleteAllDocuments(); err != nil {
		return errs.Wrap(errs.Internal, "clear search index", err)
	}
	return nil
}

func (ix *Indexer) Statistics() (IndexStatistics, error) {
	stats, err := ix.index().GetStats()
	if err != nil {
		return IndexStatistics{}, errs.Wrap(errs.Internal, "read search index stats", err)
	}
	return IndexStatistics{
		TotalDocuments: stats.NumberOfDocuments,
		IsIndexing:     stats.IsIndexing,
		LastUpdated:    time.Now().UTC(),
	}, nil
}

func (ix *Indexer) Search(analyzed AnalyzedQuery, q Query) (Result, error) {
	start := time.Now()

	req := &meilisearch.SearchRequest{
		Limit:  int64(q.perPage()),
		Offset: int64((q.page() - 1) * q.perPage()),
	}
	if filter := buildFilter(q.Filter); filter != "" {
		req.Filter = filter
	}
	if q.SortBy != SortRelevance {
		order := Ascending
		if q.SortOrder != "" {
			order = q.SortOrder
		}
		req.Sort = []string{fmt.Sprintf("%s:%s", q.SortBy, order)}
	}

	res, err := ix.index().Search(analyzed.NormalizedQuery, req)
	if err != nil {
		return Result{}, errs.Wrap(errs.Internal, "execute search", err)
	}

	docs := make([]Document, 0, len(res.Hits))
	for _, hit := range res.Hits {
		raw, err := json.Marshal(hit)
		if err != nil {
			continue
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		docs = append(docs, doc)
	}

	perPage := int64(q.perPage())
	totalPages := res.EstimatedTotalHits / perPage
	if res.EstimatedTotalHits%perPage != 0 {
		totalPages++
	}

	return Result{
		Items:            docs,
		TotalResults:     res.EstimatedTotalHits,
		TotalPages:       totalPages,
		CurrentPage:      q.page(),
		ProcessingTimeMs: res.ProcessingTimeMs,
		Query:            analyzed.OriginalQuery,
	}, nil
}

func (ix *Indexer) Suggest(prefix string, limit int) ([]Suggestion, error) {
	res, err := ix.index().Search(prefix, &meilisearch.SearchRequest{
		Limit:                int64(limit),
		AttributesToRetrieve: []string{"spelling"},
	})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "execute suggest", err)
	}
	suggestions := make([]Suggestion, 0, len(res.Hits))
	for _, hit := range res.Hits {
		raw, err := json.Marshal(hit)
		if err != nil {
			continue
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		suggestions = append(suggestions, Suggestion{Spelling: doc.Spelling})
	}
	return suggestions, nil
}

func buildFilter(f *Filter) string {
	if f == nil {
		return ""
	}
	var clauses []string
	if len(f.PartOfSpeech) > 0 {
		clauses = append(clauses, orClause("part_of_speech", f.PartOfSpeech))
	}
	if len(f.CEFRLevel) > 0 {
		clauses = append(clauses, orClause("cefr_level", f.CEFRLevel))
	}
	if f.PublishedOnly {
		clauses = append(clauses, "is_published = true")
	}
	filter := ""
	for i, c := range clauses {
		if i > 0 {
			filter += " AND "
		}
		filter += c
	}
	return filter
}

func orClause(field string, values []string) string {
	clause := "("
	for i, v := range values {
		if i > 0 {
			clause += " OR "
		}
		clause += fmt.Sprintf("%s = %q", field, v)
	}
	return clause + ")"
}

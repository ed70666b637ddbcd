// Package search implements the vocabulary search bounded context: a
// Meilisearch-backed document index kept current by a projection
// runtime, plus a small query analyzer that normalizes and expands
// queries before they reach the index (supplemented from
// original_source/services/vocabulary_search_service, dropped by the
// distillation but reintroduced here since spec §9's vocabulary
// context has nothing that lets a learner find an item by spelling or
// definition text).
package search

import "time"

// Document is the denormalized, flat record indexed per vocabulary
// item. Field names match the index's searchable/filterable/sortable
// attribute names directly since Meilisearch documents are schemaless
// JSON.
type Document struct {
	ItemID         string    `json:"item_id"`
	EntryID        string    `json:"entry_id"`
	Spelling       string    `json:"spelling"`
	Disambiguation string    `json:"disambiguation"`
	PartOfSpeech   string    `json:"part_of_speech"`
	Register       string    `json:"register"`
	Domain         string    `json:"domain"`
	Definitions    []string  `json:"definitions"`
	CEFRLevel      string    `json:"cefr_level"`
	HasDefinition  bool      `json:"has_definition"`
	Published      bool      `json:"is_published"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SortBy names a sortable attribute a caller may order results by.
type SortBy string

const (
	SortRelevance SortBy = ""
	SortSpelling  SortBy = "spelling"
	SortCEFRLevel SortBy = "cefr_level"
	SortCreatedAt SortBy = "created_at"
	SortUpdatedAt SortBy = "updated_at"
)

// SortOrder is ascending or descending.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// Filter narrows a Query to items matching every non-empty field.
type Filter struct {
	PartOfSpeech []string
	CEFRLevel    []string
	PublishedOnly bool
}

// Query is one search request, after validation but before analysis.
type Query struct {
	Text      string
	Page      int
	PerPage   int
	Filter    *Filter
	SortBy    SortBy
	SortOrder SortOrder
}

func (q Query) page() int {
	if q.Page < 1 {
		return 1
	}
	return q.Page
}

func (q Query) perPage() int {
	if q.PerPage < 1 || q.PerPage > 100 {
		return 20
	}
	return q.PerPage
}

// Result is one page of matches.
type Result struct {
	Items           []Document `json:"items"`
	TotalResults    int64      `json:"total_results"`
	TotalPages      int64      `json:"total_pages"`
	CurrentPage     int        `json:"current_page"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	Query           string     `json:"query"`
}

// Suggestion is one autocomplete candidate.
type Suggestion struct {
	Spelling      string `json:"spelling"`
	FrequencyRank *int   `json:"frequency_rank,omitempty"`
}

// IndexStatistics reports the indexer's current state.
type IndexStatistics struct {
	TotalDocuments int64     `json:"total_documents"`
	IsIndexing     bool      `json:"is_indexing"`
	LastUpdated    time.Time `json:"last_updated"`
}

// Language is the detected language of an analyzed query.
type Language string

const (
	LanguageEnglish Language = "english"
	LanguageUnknown Language = "unknown"
)

// AnalyzedQuery is the output of Analyzer.Analyze: the raw query
// broken into tokens, normalized, and expanded with known synonyms.
type AnalyzedQuery struct {
	OriginalQuery   string
	NormalizedQuery string
	Tokens          []string
	Synonyms        []string
	Language        Language
}

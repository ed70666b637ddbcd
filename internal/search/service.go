package search

import "context"

// Service is search's read-only query surface: analyze a raw query,
// run it against the index, or ask for autocomplete suggestions.
type Service interface {
	Search(ctx context.Context, q Query) (Result, error)
	Suggest(ctx context.Context, prefix string, limit int) ([]Suggestion, error)
	Statistics(ctx context.Context) (IndexStatistics, error)
}

type service struct {
	indexer  *Indexer
	analyzer *Analyzer
}

func NewService(indexer *Indexer, analyzer *Analyzer) Service {
	return &service{indexer: indexer, analyzer: analyzer}
}

func (s *service) Search(ctx context.Context, q Query) (Result, error) {
	analyzed := s.analyzer.Analyze(q.Text)
	return s.indexer.Search(analyzed, q)
}

func (s *service) Suggest(ctx context.Context, prefix string, limit int) ([]Suggestion, error) {
	if limit < 1 || limit > 50 {
		limit = 10
	}
	return s.indexer.Suggest(prefix, limit)
}

func (s *service) Statistics(ctx context.Context) (IndexStatistics, error) {
	return s.indexer.Statistics()
}

package search

import (
	"context"
	"sort"

	"newslens/internal/domain"
	"newslens/internal/vectorstore"
)

// Searcher answers natural-language queries by embedding each expanded
// phrasing of the query, running one similarity search per phrasing, and
// max-fusing the result lists: a record keeps the best score it achieved
// under any phrasing.
type Searcher struct {
	expander domain.QueryExpander
	embedder domain.Embedder
	store    vectorstore.Storage
	minScore float64
}

// New creates a Searcher. expander may be nil, in which case only the
// raw query is searched.
func New(expander domain.QueryExpander, embedder domain.Embedder, store vectorstore.Storage, minScore float64) *Searcher {
	return &Searcher{expander: expander, embedder: embedder, store: store, minScore: minScore}
}

// Search returns up to k results descending by fused score. An empty
// store yields an empty slice, not an error. Store failures fail closed;
// embedding failures on individual expanded phrasings are skipped as long
// as at least one phrasing could be searched.
func (s *Searcher) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = 5
	}
	queries := []string{query}
	if s.expander != nil {
		queries = s.expander.Expand(ctx, query)
	}

	fused := make(map[string]domain.SearchResult)
	var firstErr error
	searched := 0
	for _, q := range queries {
		vec, err := s.embedder.Embed(ctx, q)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results, err := s.store.Query(ctx, vec, k)
		if err != nil {
			return nil, err
		}
		searched++
		for _, r := range results {
			if prev, ok := fused[r.Record.Fingerprint]; !ok || r.Score > prev.Score {
				fused[r.Record.Fingerprint] = r
			}
		}
	}
	if searched == 0 {
		return nil, firstErr
	}

	merged := make([]domain.SearchResult, 0, len(fused))
	for _, r := range fused {
		if r.Score < s.minScore {
			continue
		}
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		if !merged[i].Record.UpdatedAt.Equal(merged[j].Record.UpdatedAt) {
			return merged[i].Record.UpdatedAt.After(merged[j].Record.UpdatedAt)
		}
		return merged[i].Record.Fingerprint < merged[j].Record.Fingerprint
	})
	if k < len(merged) {
		merged = merged[:k]
	}
	return merged, nil
}

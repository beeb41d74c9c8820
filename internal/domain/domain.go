package domain

import (
	"context"
	"time"
)

// ArticleRecord is a stored article with its derived summary, topics and
// embedding. Exactly one record exists per fingerprint.
type ArticleRecord struct {
	Fingerprint string
	URL         string
	Headline    string
	RawText     string
	Summary     string
	Topics      []string
	Embedding   []float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Annotation is the validated output of the summarization gateway.
type Annotation struct {
	Summary string
	Topics  []string
}

// SearchResult pairs a record with its similarity score (higher is better).
type SearchResult struct {
	Record ArticleRecord
	Score  float64
}

// Summarizer turns article text into a summary and a bounded topic list.
type Summarizer interface {
	SummarizeAndTag(ctx context.Context, text string) (Annotation, error)
}

// Embedder converts free text into a numeric vector representation of a
// fixed dimension.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// QueryExpander rewrites one query into related phrasings. The original
// query is always first; expansion failures degrade to just the original.
type QueryExpander interface {
	Expand(ctx context.Context, query string) []string
}

package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"newslens/internal/article"
	"newslens/internal/domain"
	"newslens/internal/vectorstore"
)

// Service runs the ingestion pipeline: normalize, summarize and tag,
// embed, then upsert. The store write happens only after every derived
// field has been computed, so a cancelled or failed ingestion never
// leaves a partial record behind.
type Service struct {
	summarizer domain.Summarizer
	embedder   domain.Embedder
	store      vectorstore.Storage
	now        func() time.Time
}

func New(summarizer domain.Summarizer, embedder domain.Embedder, store vectorstore.Storage) *Service {
	return &Service{summarizer: summarizer, embedder: embedder, store: store, now: time.Now}
}

// Ingest stores one article. Re-ingesting the same URL replaces the
// record's derived fields and advances updated_at; created_at survives
// from the first ingestion.
func (s *Service) Ingest(ctx context.Context, url, headline, rawText string) (domain.ArticleRecord, error) {
	rec, err := article.Normalize(url, headline, rawText)
	if err != nil {
		return domain.ArticleRecord{}, err
	}
	fp := shortFP(rec.Fingerprint)

	ann, err := s.summarizer.SummarizeAndTag(ctx, rec.RawText)
	if err != nil {
		return domain.ArticleRecord{}, fmt.Errorf("summarize %s: %w", fp, err)
	}
	vec, err := s.embedder.Embed(ctx, embeddingInput(rec.Headline, ann))
	if err != nil {
		return domain.ArticleRecord{}, fmt.Errorf("embed %s: %w", fp, err)
	}
	rec.Summary = ann.Summary
	rec.Topics = ann.Topics
	rec.Embedding = vec

	now := s.now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if existing, err := s.store.Get(ctx, rec.Fingerprint); err == nil {
		rec.CreatedAt = existing.CreatedAt
	}
	if err := s.store.Upsert(ctx, rec); err != nil {
		return domain.ArticleRecord{}, fmt.Errorf("store %s: %w", fp, err)
	}
	return rec, nil
}

// Item is one article queued for batch ingestion.
type Item struct {
	URL      string
	Headline string
	RawText  string
}

// Outcome reports the result of ingesting one item of a batch.
type Outcome struct {
	Item   Item
	Record domain.ArticleRecord
	Err    error
}

// IngestAll ingests items with at most limit running concurrently.
// Items are independent; one failure does not stop the rest. Outcomes
// are returned in input order.
func (s *Service) IngestAll(ctx context.Context, items []Item, limit int) []Outcome {
	if limit <= 0 {
		limit = 4
	}
	outcomes := make([]Outcome, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, it := range items {
		i, it := i, it
		g.Go(func() error {
			rec, err := s.Ingest(ctx, it.URL, it.Headline, it.RawText)
			outcomes[i] = Outcome{Item: it, Record: rec, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// embeddingInput builds the text whose embedding represents the record:
// headline plus derived summary and topics, the strongest semantic
// signal per stored article.
func embeddingInput(headline string, ann domain.Annotation) string {
	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(headline)
	b.WriteString("\nSummary: ")
	b.WriteString(ann.Summary)
	b.WriteString("\nTopics: ")
	b.WriteString(strings.Join(ann.Topics, ", "))
	return b.String()
}

func shortFP(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

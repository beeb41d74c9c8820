package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"newslens/internal/domain"
)

// Store is a minimal REST client to Qdrant using cosine distance. Point
// IDs are UUIDv5 values derived from the record fingerprint, so upserting
// the same fingerprint always addresses the same point and Qdrant's own
// point-level upsert provides the per-fingerprint write serialization.
type Store struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "articles"
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
}

func pointID(fingerprint string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fingerprint)).String()
}

func (s *Store) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	// An existing collection's dimension is immutable; verify before
	// creating.
	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	status, err := s.do(ctx, http.MethodGet, fmt.Sprintf("%s/collections/%s", s.url, s.collection), nil, &info)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusOK:
		if got := info.Result.Config.Params.Vectors.Size; got != dimension {
			return fmt.Errorf("%w: collection has %d, requested %d", domain.ErrDimensionMismatch, got, dimension)
		}
	case status == http.StatusNotFound:
		body := map[string]any{
			"vectors": map[string]any{"size": dimension, "distance": "Cosine"},
		}
		if status, err := s.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body, nil); err != nil {
			return err
		} else if status >= 300 {
			return fmt.Errorf("qdrant create collection failed: status %d", status)
		}
	default:
		return fmt.Errorf("qdrant collection check failed: status %d", status)
	}
	s.dimension = dimension
	return nil
}

func (s *Store) Upsert(ctx context.Context, rec domain.ArticleRecord) error {
	if rec.Fingerprint == "" {
		return errors.New("missing fingerprint")
	}
	if len(rec.Embedding) != s.dimension {
		return fmt.Errorf("%w: vector has %d, store has %d", domain.ErrDimensionMismatch, len(rec.Embedding), s.dimension)
	}
	body := map[string]any{
		"points": []map[string]any{{
			"id":      pointID(rec.Fingerprint),
			"vector":  rec.Embedding,
			"payload": payloadFrom(rec),
		}},
	}
	status, err := s.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("qdrant upsert failed: status %d", status)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float64, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
		"with_vector":  true,
	}
	var resp struct {
		Result []point `json:"result"`
	}
	status, err := s.do(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("qdrant search failed: status %d", status)
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, p := range resp.Result {
		results = append(results, domain.SearchResult{Record: p.record(), Score: p.Score})
	}
	return results, nil
}

func (s *Store) Get(ctx context.Context, fingerprint string) (domain.ArticleRecord, error) {
	req := map[string]any{
		"ids":          []string{pointID(fingerprint)},
		"with_payload": true,
		"with_vector":  true,
	}
	var resp struct {
		Result []point `json:"result"`
	}
	status, err := s.do(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points", s.url, s.collection), req, &resp)
	if err != nil {
		return domain.ArticleRecord{}, err
	}
	if status >= 300 {
		return domain.ArticleRecord{}, fmt.Errorf("qdrant get failed: status %d", status)
	}
	if len(resp.Result) == 0 {
		return domain.ArticleRecord{}, domain.ErrNotFound
	}
	return resp.Result[0].record(), nil
}

func (s *Store) List(ctx context.Context) ([]domain.ArticleRecord, error) {
	var out []domain.ArticleRecord
	var offset any
	for {
		req := map[string]any{
			"limit":        256,
			"with_payload": true,
			"with_vector":  true,
		}
		if offset != nil {
			req["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points         []point `json:"points"`
				NextPageOffset any     `json:"next_page_offset"`
			} `json:"result"`
		}
		status, err := s.do(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/scroll", s.url, s.collection), req, &resp)
		if err != nil {
			return nil, err
		}
		if status >= 300 {
			return nil, fmt.Errorf("qdrant scroll failed: status %d", status)
		}
		for _, p := range resp.Result.Points {
			out = append(out, p.record())
		}
		if resp.Result.NextPageOffset == nil {
			return out, nil
		}
		offset = resp.Result.NextPageOffset
	}
}

func (s *Store) Delete(ctx context.Context, fingerprint string) error {
	body := map[string]any{"points": []string{pointID(fingerprint)}}
	status, err := s.do(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.url, s.collection), body, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("qdrant delete failed: status %d", status)
	}
	return nil
}

// Clear drops the collection and recreates it with the dimension from
// Init, so the store comes back empty but ready for writes.
func (s *Store) Clear(ctx context.Context) error {
	status, err := s.do(ctx, http.MethodDelete, fmt.Sprintf("%s/collections/%s", s.url, s.collection), nil, nil)
	if err != nil {
		return err
	}
	if status >= 300 && status != http.StatusNotFound {
		return fmt.Errorf("qdrant drop collection failed: status %d", status)
	}
	if s.dimension == 0 {
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{"size": s.dimension, "distance": "Cosine"},
	}
	status, err = s.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("qdrant recreate collection failed: status %d", status)
	}
	return nil
}

func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

type point struct {
	Score   float64        `json:"score"`
	Vector  []float64      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func payloadFrom(rec domain.ArticleRecord) map[string]any {
	return map[string]any{
		"fingerprint": rec.Fingerprint,
		"url":         rec.URL,
		"headline":    rec.Headline,
		"raw_text":    rec.RawText,
		"summary":     rec.Summary,
		"topics":      rec.Topics,
		"created_at":  rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":  rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (p point) record() domain.ArticleRecord {
	rec := domain.ArticleRecord{Embedding: p.Vector}
	if v, ok := p.Payload["fingerprint"].(string); ok {
		rec.Fingerprint = v
	}
	if v, ok := p.Payload["url"].(string); ok {
		rec.URL = v
	}
	if v, ok := p.Payload["headline"].(string); ok {
		rec.Headline = v
	}
	if v, ok := p.Payload["raw_text"].(string); ok {
		rec.RawText = v
	}
	if v, ok := p.Payload["summary"].(string); ok {
		rec.Summary = v
	}
	if vs, ok := p.Payload["topics"].([]any); ok {
		for _, v := range vs {
			if t, ok := v.(string); ok {
				rec.Topics = append(rec.Topics, t)
			}
		}
	}
	if v, ok := p.Payload["created_at"].(string); ok {
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	if v, ok := p.Payload["updated_at"].(string); ok {
		rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	return rec
}

func (s *Store) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding qdrant response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"newslens/internal/domain"
	"newslens/internal/vectorstore"
)

type entry struct {
	rec domain.ArticleRecord
	seq uint64
}

// Store is an in-memory vector store using brute-force cosine similarity.
// Writes to the same fingerprint are serialized through a keyed mutex
// table so concurrent re-ingestions cannot interleave.
type Store struct {
	mu        sync.RWMutex
	dimension int
	recs      map[string]entry
	seq       uint64

	lmu   sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{recs: make(map[string]entry), locks: make(map[string]*sync.Mutex)}
}

func (s *Store) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 && s.dimension != dimension {
		return fmt.Errorf("%w: store has %d, requested %d", domain.ErrDimensionMismatch, s.dimension, dimension)
	}
	s.dimension = dimension
	return nil
}

func (s *Store) Upsert(ctx context.Context, rec domain.ArticleRecord) error {
	if rec.Fingerprint == "" {
		return errors.New("missing fingerprint")
	}
	if len(rec.Embedding) != s.dim() {
		return fmt.Errorf("%w: vector has %d, store has %d", domain.ErrDimensionMismatch, len(rec.Embedding), s.dim())
	}
	unlock := s.lockFingerprint(rec.Fingerprint)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.recs[rec.Fingerprint] = entry{rec: rec, seq: s.seq}
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float64, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = 5
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	type scored struct {
		e     entry
		score float64
	}
	all := make([]scored, 0, len(s.recs))
	for _, e := range s.recs {
		all = append(all, scored{e: e, score: vectorstore.Cosine(e.rec.Embedding, vector)})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		// newer write wins the tie for deterministic ordering
		return all[i].e.seq > all[j].e.seq
	})
	if k > len(all) {
		k = len(all)
	}
	results := make([]domain.SearchResult, 0, k)
	for i := 0; i < k; i++ {
		results = append(results, domain.SearchResult{Record: all[i].e.rec, Score: all[i].score})
	}
	return results, nil
}

func (s *Store) Get(ctx context.Context, fingerprint string) (domain.ArticleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.recs[fingerprint]
	if !ok {
		return domain.ArticleRecord{}, domain.ErrNotFound
	}
	return e.rec, nil
}

func (s *Store) List(ctx context.Context) ([]domain.ArticleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ArticleRecord, 0, len(s.recs))
	for _, e := range s.recs {
		out = append(out, e.rec)
	}
	// stable within one call: insertion order
	sort.Slice(out, func(i, j int) bool {
		return s.recs[out[i].Fingerprint].seq < s.recs[out[j].Fingerprint].seq
	})
	return out, nil
}

func (s *Store) Delete(ctx context.Context, fingerprint string) error {
	unlock := s.lockFingerprint(fingerprint)
	defer unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, fingerprint)
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = make(map[string]entry)
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) dim() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

func (s *Store) lockFingerprint(fp string) func() {
	s.lmu.Lock()
	l, ok := s.locks[fp]
	if !ok {
		l = &sync.Mutex{}
		s.locks[fp] = l
	}
	s.lmu.Unlock()
	l.Lock()
	return l.Unlock
}

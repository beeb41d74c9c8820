package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"newslens/internal/domain"
)

func newInitedStore(t *testing.T, dim int) *Store {
	t.Helper()
	s := NewStore()
	if err := s.Init(context.Background(), dim); err != nil {
		t.Fatal(err)
	}
	return s
}

func rec(fp string, vec ...float64) domain.ArticleRecord {
	now := time.Now().UTC()
	return domain.ArticleRecord{
		Fingerprint: fp,
		URL:         "https://example.com/" + fp,
		Headline:    "headline " + fp,
		Summary:     "summary",
		Topics:      []string{"topic"},
		Embedding:   vec,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newInitedStore(t, 2)
	r := rec("fp1", 1, 0)
	if err := s.Upsert(ctx, r); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, r); err != nil {
		t.Fatal(err)
	}
	all, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 record after double upsert, got %d", len(all))
	}
}

func TestUpsertReplacesFields(t *testing.T) {
	ctx := context.Background()
	s := newInitedStore(t, 2)
	r := rec("fp1", 1, 0)
	r.Summary = "old"
	if err := s.Upsert(ctx, r); err != nil {
		t.Fatal(err)
	}
	r.Summary = "new"
	if err := s.Upsert(ctx, r); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "fp1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Summary != "new" {
		t.Errorf("expected replaced summary, got %q", got.Summary)
	}
}

func TestUpsertDimensionMismatchLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	s := newInitedStore(t, 2)
	if err := s.Upsert(ctx, rec("fp1", 1, 0)); err != nil {
		t.Fatal(err)
	}
	err := s.Upsert(ctx, rec("fp2", 1, 0, 0))
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	all, _ := s.List(ctx)
	if len(all) != 1 || all[0].Fingerprint != "fp1" {
		t.Errorf("store changed after failed write: %v", all)
	}
}

func TestInitRejectsDifferentDimension(t *testing.T) {
	s := newInitedStore(t, 2)
	err := s.Init(context.Background(), 3)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestQueryOrdersByScoreAndTruncates(t *testing.T) {
	ctx := context.Background()
	s := newInitedStore(t, 2)
	// cosine against (1,0): a=1.0, b≈0.707, c=0.0
	for _, r := range []domain.ArticleRecord{
		rec("c", 0, 1),
		rec("a", 1, 0),
		rec("b", 1, 1),
	} {
		if err := s.Upsert(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.Query(ctx, []float64{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Record.Fingerprint != "a" || got[1].Record.Fingerprint != "b" {
		t.Errorf("wrong order: %s, %s", got[0].Record.Fingerprint, got[1].Record.Fingerprint)
	}
	if got[0].Score <= got[1].Score {
		t.Errorf("scores not descending: %f, %f", got[0].Score, got[1].Score)
	}
}

func TestQueryTieBreaksTowardNewerWrite(t *testing.T) {
	ctx := context.Background()
	s := newInitedStore(t, 2)
	if err := s.Upsert(ctx, rec("older", 1, 0)); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, rec("newer", 1, 0)); err != nil {
		t.Fatal(err)
	}
	got, err := s.Query(ctx, []float64{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Record.Fingerprint != "newer" {
		t.Errorf("expected newer record first on tie, got %s", got[0].Record.Fingerprint)
	}
}

func TestQueryEmptyStore(t *testing.T) {
	s := newInitedStore(t, 2)
	got, err := s.Query(context.Background(), []float64{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d", len(got))
	}
}

func TestGetNotFound(t *testing.T) {
	s := newInitedStore(t, 2)
	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newInitedStore(t, 2)
	if err := s.Upsert(ctx, rec("fp1", 1, 0)); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "fp1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "fp1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	// deleting again is not an error
	if err := s.Delete(ctx, "fp1"); err != nil {
		t.Fatal(err)
	}
}

func TestClearEmptiesStoreButKeepsDimension(t *testing.T) {
	ctx := context.Background()
	s := newInitedStore(t, 2)
	for _, r := range []domain.ArticleRecord{rec("fp1", 1, 0), rec("fp2", 0, 1)} {
		if err := s.Upsert(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	all, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty store after clear, got %d records", len(all))
	}
	// the collection stays usable at its original dimension
	if err := s.Upsert(ctx, rec("fp3", 1, 1)); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, rec("bad", 1, 0, 0)); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch after clear, got %v", err)
	}
}

func TestConcurrentUpsertsSameFingerprint(t *testing.T) {
	ctx := context.Background()
	s := newInitedStore(t, 2)
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				_ = s.Upsert(ctx, rec("same", 1, 0))
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	all, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("expected single record, got %d", len(all))
	}
}

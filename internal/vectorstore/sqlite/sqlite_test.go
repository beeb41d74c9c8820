package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"newslens/internal/domain"
)

func openTestStore(t *testing.T, dim int) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "articles.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
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
		RawText:     "raw text",
		Summary:     "summary",
		Topics:      []string{"one", "two"},
		Embedding:   vec,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 2)
	want := rec("fp1", 0.5, 0.5)
	if err := s.Upsert(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "fp1")
	if err != nil {
		t.Fatal(err)
	}
	if got.URL != want.URL || got.Headline != want.Headline || got.Summary != want.Summary {
		t.Errorf("fields lost in round trip: %+v", got)
	}
	if len(got.Topics) != 2 || got.Topics[0] != "one" {
		t.Errorf("topics lost: %v", got.Topics)
	}
	if len(got.Embedding) != 2 {
		t.Errorf("embedding lost: %v", got.Embedding)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("created_at changed: %v != %v", got.CreatedAt, want.CreatedAt)
	}
}

func TestUpsertReplacesNotDuplicates(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 2)
	r := rec("fp1", 1, 0)
	if err := s.Upsert(ctx, r); err != nil {
		t.Fatal(err)
	}
	r.Summary = "replaced"
	if err := s.Upsert(ctx, r); err != nil {
		t.Fatal(err)
	}
	all, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 record, got %d", len(all))
	}
	if all[0].Summary != "replaced" {
		t.Errorf("expected replaced summary, got %q", all[0].Summary)
	}
}

func TestDimensionFixedAtCreation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Init(context.Background(), 3); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if err := s2.Init(context.Background(), 4); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch on reopen with new dimension, got %v", err)
	}
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 2)
	err := s.Upsert(ctx, rec("fp1", 1, 2, 3))
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	all, _ := s.List(ctx)
	if len(all) != 0 {
		t.Errorf("store changed after failed write: %v", all)
	}
}

func TestQueryOrdering(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 2)
	for _, r := range []domain.ArticleRecord{
		rec("low", 0, 1),
		rec("high", 1, 0),
		rec("mid", 1, 1),
	} {
		if err := s.Upsert(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.Query(ctx, []float64{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Record.Fingerprint != "high" || got[1].Record.Fingerprint != "mid" {
		t.Errorf("unexpected order: %v", got)
	}
}

func TestDeleteAndNotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 2)
	if err := s.Upsert(ctx, rec("fp1", 1, 0)); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "fp1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "fp1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClearEmptiesStoreButKeepsDimension(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 2)
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
	if err := s.Init(ctx, 3); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("clear must not relax the dimension, got %v", err)
	}
	if err := s.Upsert(ctx, rec("fp3", 1, 1)); err != nil {
		t.Fatal(err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "articles.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Init(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, rec("fp1", 1, 0)); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if err := s2.Init(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if _, err := s2.Get(ctx, "fp1"); err != nil {
		t.Fatalf("record lost across reopen: %v", err)
	}
}

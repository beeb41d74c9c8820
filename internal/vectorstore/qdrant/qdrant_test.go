package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"newslens/internal/domain"
)

func TestPointIDDeterministic(t *testing.T) {
	a := pointID("fingerprint-1")
	b := pointID("fingerprint-1")
	if a != b {
		t.Errorf("same fingerprint produced different point IDs: %s != %s", a, b)
	}
	if a == pointID("fingerprint-2") {
		t.Error("different fingerprints produced the same point ID")
	}
}

func TestInitRejectsExistingCollectionWithOtherDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"config": map[string]any{
					"params": map[string]any{
						"vectors": map[string]any{"size": 768},
					},
				},
			},
		})
	}))
	defer srv.Close()
	s := NewStore(Config{URL: srv.URL, Collection: "articles"})
	err := s.Init(context.Background(), 1536)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestInitCreatesMissingCollection(t *testing.T) {
	var created bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		created = true
	}))
	defer srv.Close()
	s := NewStore(Config{URL: srv.URL, Collection: "articles"})
	if err := s.Init(context.Background(), 1536); err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("expected collection creation request")
	}
}

func TestClearDropsAndRecreatesCollection(t *testing.T) {
	var dropped, recreated bool
	var size float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			dropped = true
		case http.MethodPut:
			recreated = true
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if vectors, ok := body["vectors"].(map[string]any); ok {
				size, _ = vectors["size"].(float64)
			}
		}
	}))
	defer srv.Close()
	s := NewStore(Config{URL: srv.URL, Collection: "articles"})
	s.dimension = 1536
	if err := s.Clear(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !dropped || !recreated {
		t.Fatalf("expected drop then recreate, got dropped=%v recreated=%v", dropped, recreated)
	}
	if size != 1536 {
		t.Errorf("recreated collection with size %v, want 1536", size)
	}
}

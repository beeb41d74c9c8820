package vectorstore

import (
	"context"
	"math"

	"newslens/internal/domain"
)

// Storage persists article records keyed by fingerprint and supports
// similarity search. The embedding dimension is fixed at Init and
// enforced on every write.
type Storage interface {
	// Init opens or creates the collection with the given dimension.
	// A dimension differing from an existing collection's is a fatal
	// configuration error.
	Init(ctx context.Context, dimension int) error
	// Upsert inserts the record or fully replaces an existing one with
	// the same fingerprint. Idempotent; writes to the same fingerprint
	// are serialized.
	Upsert(ctx context.Context, rec domain.ArticleRecord) error
	// Query returns up to k results descending by similarity. Ties break
	// toward the more recently written record. Pure read.
	Query(ctx context.Context, vector []float64, k int) ([]domain.SearchResult, error)
	// Get returns the record for a fingerprint or domain.ErrNotFound.
	Get(ctx context.Context, fingerprint string) (domain.ArticleRecord, error)
	// List returns all records, order stable within one call.
	List(ctx context.Context) ([]domain.ArticleRecord, error)
	// Delete removes the record for a fingerprint. Unknown fingerprints
	// are not an error.
	Delete(ctx context.Context, fingerprint string) error
	// Clear removes every record. The collection survives with its
	// configured dimension.
	Clear(ctx context.Context) error
	Close() error
}

// Cosine returns the cosine similarity of two equal-length vectors.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"newslens/internal/domain"
	"newslens/internal/vectorstore"
)

// Store persists article records in a local sqlite database. Embeddings
// are stored as JSON arrays and scored with a brute-force cosine scan,
// which is plenty for a personal article corpus. The write handle is
// capped at one connection, so every write (and thus every write to a
// given fingerprint) is serialized.
type Store struct {
	readDB    *sql.DB
	writeDB   *sql.DB
	dimension int
}

// Open opens or creates the database at dbPath, creating parent
// directories as needed.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}

	return &Store{readDB: readDB, writeDB: writeDB}, nil
}

func (s *Store) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	_, err := s.writeDB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS articles (
			fingerprint TEXT PRIMARY KEY,
			url         TEXT NOT NULL DEFAULT '',
			headline    TEXT NOT NULL DEFAULT '',
			raw_text    TEXT NOT NULL DEFAULT '',
			summary     TEXT NOT NULL DEFAULT '',
			topics      TEXT NOT NULL DEFAULT '[]',
			embedding   TEXT NOT NULL,
			dim         INTEGER NOT NULL,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}

	// The collection dimension is fixed at creation and immutable.
	var stored string
	err = s.readDB.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'dimension'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.writeDB.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES('dimension', ?)`, strconv.Itoa(dimension)); err != nil {
			return fmt.Errorf("recording dimension: %w", err)
		}
	case err != nil:
		return fmt.Errorf("reading dimension: %w", err)
	default:
		existing, err := strconv.Atoi(stored)
		if err != nil {
			return fmt.Errorf("corrupt dimension value %q: %w", stored, err)
		}
		if existing != dimension {
			return fmt.Errorf("%w: store has %d, requested %d", domain.ErrDimensionMismatch, existing, dimension)
		}
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
	topics, err := json.Marshal(rec.Topics)
	if err != nil {
		return err
	}
	vec, err := json.Marshal(rec.Embedding)
	if err != nil {
		return err
	}
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting upsert: %w", err)
	}
	defer tx.Rollback()

	// delete-then-insert keeps the rowid monotonic, which is what the
	// recency tie-break in Query relies on
	if _, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE fingerprint = ?`, rec.Fingerprint); err != nil {
		return fmt.Errorf("replacing record: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO articles(fingerprint, url, headline, raw_text, summary, topics, embedding, dim, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Fingerprint, rec.URL, rec.Headline, rec.RawText, rec.Summary,
		string(topics), string(vec), len(rec.Embedding),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting record: %w", err)
	}
	return tx.Commit()
}

func (s *Store) Query(ctx context.Context, vector []float64, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = 5
	}
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT rowid, fingerprint, url, headline, raw_text, summary, topics, embedding, created_at, updated_at
		FROM articles WHERE dim = ?`, len(vector))
	if err != nil {
		return nil, fmt.Errorf("querying articles: %w", err)
	}
	defer rows.Close()

	type scored struct {
		res   domain.SearchResult
		rowid int64
	}
	var all []scored
	for rows.Next() {
		rec, rowid, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, scored{
			res:   domain.SearchResult{Record: rec, Score: vectorstore.Cosine(rec.Embedding, vector)},
			rowid: rowid,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].res.Score != all[j].res.Score {
			return all[i].res.Score > all[j].res.Score
		}
		return all[i].rowid > all[j].rowid
	})
	if k > len(all) {
		k = len(all)
	}
	results := make([]domain.SearchResult, 0, k)
	for i := 0; i < k; i++ {
		results = append(results, all[i].res)
	}
	return results, nil
}

func (s *Store) Get(ctx context.Context, fingerprint string) (domain.ArticleRecord, error) {
	row := s.readDB.QueryRowContext(ctx, `
		SELECT rowid, fingerprint, url, headline, raw_text, summary, topics, embedding, created_at, updated_at
		FROM articles WHERE fingerprint = ?`, fingerprint)
	rec, _, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ArticleRecord{}, domain.ErrNotFound
	}
	return rec, err
}

func (s *Store) List(ctx context.Context) ([]domain.ArticleRecord, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT rowid, fingerprint, url, headline, raw_text, summary, topics, embedding, created_at, updated_at
		FROM articles ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("listing articles: %w", err)
	}
	defer rows.Close()
	var out []domain.ArticleRecord
	for rows.Next() {
		rec, _, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, fingerprint string) error {
	_, err := s.writeDB.ExecContext(ctx, `DELETE FROM articles WHERE fingerprint = ?`, fingerprint)
	return err
}

func (s *Store) Clear(ctx context.Context) error {
	_, err := s.writeDB.ExecContext(ctx, `DELETE FROM articles`)
	if err != nil {
		return fmt.Errorf("clearing articles: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	var errs []error
	if err := s.readDB.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.writeDB.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.ArticleRecord, int64, error) {
	var (
		rec                           domain.ArticleRecord
		rowid                         int64
		topics, vec, created, updated string
	)
	err := row.Scan(&rowid, &rec.Fingerprint, &rec.URL, &rec.Headline, &rec.RawText,
		&rec.Summary, &topics, &vec, &created, &updated)
	if err != nil {
		return rec, 0, err
	}
	if err := json.Unmarshal([]byte(topics), &rec.Topics); err != nil {
		return rec, 0, fmt.Errorf("corrupt topics for %s: %w", rec.Fingerprint, err)
	}
	if err := json.Unmarshal([]byte(vec), &rec.Embedding); err != nil {
		return rec, 0, fmt.Errorf("corrupt embedding for %s: %w", rec.Fingerprint, err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return rec, 0, fmt.Errorf("corrupt created_at for %s: %w", rec.Fingerprint, err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return rec, 0, fmt.Errorf("corrupt updated_at for %s: %w", rec.Fingerprint, err)
	}
	return rec, rowid, nil
}

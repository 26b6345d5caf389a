// Package store implements the Document Store: an embedded, transactional
// key/value + vector store holding versioned chunks, with
// exact CRUD, scope uniqueness, and hybrid-search-ready vector recall.
//
// Persistence is modernc.org/sqlite via dbopen (same production pragmas
// the rest of the module uses); the vector index is a single process-wide
// github.com/hazyhaar/horosvec.Index shared across all scopes, with
// in-scope filtering applied on top of the ANN recall (see vector.go) —
// horosvec has no native per-scope partitioning, so docreef over-fetches
// candidates from the global index and filters by (library, version)
// before returning, widening the fetch until enough in-scope hits are
// found or the index is exhausted.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/docreef/docreef/errs"
	"github.com/docreef/docreef/version"
)

// Type names a structural kind a chunk may carry; mirrors split.Type
// without importing the splitter (the store has no business knowing how
// a chunk was produced).
type Type string

const (
	TypeHeading Type = "heading"
	TypeText    Type = "text"
	TypeCode    Type = "code"
	TypeTable   Type = "table"
)

// Chunk is the persisted unit of storage.
type Chunk struct {
	Library      string
	Version      string
	SourceURL    string
	Title        string
	ChunkIndex   int // assigned by AddChunks; ignored on input
	Content      string
	Types        []Type
	SectionLevel int
	SectionPath  []string
	Embedding    []float32

	rowid int64
}

// SearchResult is one hit from VectorSearch.
type SearchResult struct {
	Chunk
	Score float64
}

// Config configures a Store.
type Config struct {
	// Path names the SQLite database file. New does not read it: the store
	// uses the *sql.DB handle it is given, which the caller opens.
	Path   string
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Store is the Document Store. Many concurrent readers are supported;
// writes are serialized per scope (see lockFor) but not globally.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	vec    *vectorIndex

	mu         sync.Mutex
	scopeLocks map[string]*sync.Mutex
}

// New creates the document store backed by db; Initialize creates the
// schema. The
// caller owns db's lifecycle (dbopen.Open/.OpenMemory); Store does not
// close it.
func New(db *sql.DB, cfg Config) (*Store, error) {
	cfg.defaults()
	s := &Store{
		db:         db,
		logger:     cfg.Logger,
		scopeLocks: make(map[string]*sync.Mutex),
	}
	vec, err := newVectorIndex(db, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("store: vector index: %w", err)
	}
	s.vec = vec
	return s, nil
}

// Initialize prepares persistence. Idempotent: safe to call on every
// startup.
func (s *Store) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: initialize schema: %w", err)
	}
	return s.vec.ensureBuilt(ctx, s.db)
}

func normScope(library, ver string) (string, string) {
	return version.NormalizeLibrary(library), version.Normalize(ver)
}

func scopeKey(libNorm, verNorm string) string {
	return libNorm + "\x00" + verNorm
}

func (s *Store) lockFor(libNorm, verNorm string) *sync.Mutex {
	key := scopeKey(libNorm, verNorm)
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.scopeLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.scopeLocks[key] = l
	}
	return l
}

// Exists reports whether any chunk is indexed for (library, version).
func (s *Store) Exists(ctx context.Context, library, ver string) (bool, error) {
	libNorm, verNorm := normScope(library, ver)
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM chunks WHERE library_norm = ? AND version_norm = ? LIMIT 1`,
		libNorm, verNorm).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: exists: %w", err)
	}
	return n > 0, nil
}

// AddChunks persists chunks atomically, assigning a monotonic chunk_index
// per unique source_url within the (library, version) scope, continuing
// numbering if prior chunks for that URL already exist. Embeddings, if
// present, are added to the vector index after the transaction commits.
func (s *Store) AddChunks(ctx context.Context, library, ver string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	libNorm, verNorm := normScope(library, ver)
	lock := s.lockFor(libNorm, verNorm)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: add_chunks: begin: %w", err)
	}
	defer tx.Rollback()

	nextIndex := make(map[string]int)
	stored := make([]Chunk, 0, len(chunks))
	now := time.Now().UnixMilli()

	for _, c := range chunks {
		idx, ok := nextIndex[c.SourceURL]
		if !ok {
			idx, err = maxChunkIndex(ctx, tx, libNorm, verNorm, c.SourceURL)
			if err != nil {
				return err
			}
		}
		c.Library, c.Version, c.ChunkIndex = libNorm, verNorm, idx
		res, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (library_norm, version_norm, source_url, chunk_index,
				title, content, types, section_level, section_path, embedding, created_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			libNorm, verNorm, c.SourceURL, c.ChunkIndex,
			c.Title, c.Content, joinTypes(c.Types), c.SectionLevel, strings.Join(c.SectionPath, "\x1f"),
			serializeVector(c.Embedding), now)
		if err != nil {
			return fmt.Errorf("store: add_chunks: insert: %w", err)
		}
		rowid, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("store: add_chunks: rowid: %w", err)
		}
		c.rowid = rowid
		nextIndex[c.SourceURL] = idx + 1
		stored = append(stored, c)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: add_chunks: commit: %w", err)
	}

	s.vec.insert(stored)
	return nil
}

func maxChunkIndex(ctx context.Context, tx *sql.Tx, libNorm, verNorm, sourceURL string) (int, error) {
	var max sql.NullInt64
	err := tx.QueryRowContext(ctx, `
		SELECT MAX(chunk_index) FROM chunks
		WHERE library_norm = ? AND version_norm = ? AND source_url = ?`,
		libNorm, verNorm, sourceURL).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("store: add_chunks: max index: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

// DeleteScope removes exactly the chunks matching (library, version); an
// empty version targets only the unversioned bucket, never every version
// of library.
func (s *Store) DeleteScope(ctx context.Context, library, ver string) error {
	libNorm, verNorm := normScope(library, ver)
	lock := s.lockFor(libNorm, verNorm)
	lock.Lock()
	defer lock.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE library_norm = ? AND version_norm = ?`, libNorm, verNorm)
	if err != nil {
		return fmt.Errorf("store: delete_scope: %w", err)
	}
	s.vec.invalidate()
	return nil
}

// QueryUniqueVersions returns the distinct version strings indexed for
// library, possibly including the empty (unversioned) string.
func (s *Store) QueryUniqueVersions(ctx context.Context, library string) ([]string, error) {
	libNorm := version.NormalizeLibrary(library)
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT version_norm FROM chunks WHERE library_norm = ?`, libNorm)
	if err != nil {
		return nil, fmt.Errorf("store: query_unique_versions: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// QueryLibraryVersions returns every indexed library mapped to its set of
// indexed versions.
func (s *Store) QueryLibraryVersions(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT library_norm, version_norm FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("store: query_library_versions: %w", err)
	}
	defer rows.Close()
	out := make(map[string][]string)
	for rows.Next() {
		var lib, ver string
		if err := rows.Scan(&lib, &ver); err != nil {
			return nil, err
		}
		out[lib] = append(out[lib], ver)
	}
	return out, rows.Err()
}

// VectorSearch performs vector similarity search limited to (library,
// version), returning up to k chunks ordered by descending similarity.
func (s *Store) VectorSearch(ctx context.Context, library, ver string, queryVec []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		k = 1
	}
	libNorm, verNorm := normScope(library, ver)
	if err := s.vec.ensureBuilt(ctx, s.db); err != nil {
		return nil, err
	}
	hits, err := s.vec.search(queryVec, libNorm, verNorm, k)
	if err != nil {
		return nil, fmt.Errorf("store: vector_search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}
	return s.loadResults(ctx, hits)
}

func (s *Store) loadResults(ctx context.Context, hits []vectorHit) ([]SearchResult, error) {
	out := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		row := s.db.QueryRowContext(ctx, `
			SELECT library_norm, version_norm, source_url, chunk_index, title,
			       content, types, section_level, section_path
			FROM chunks WHERE rowid = ?`, h.rowid)
		var c Chunk
		var typesStr, pathStr string
		if err := row.Scan(&c.Library, &c.Version, &c.SourceURL, &c.ChunkIndex, &c.Title,
			&c.Content, &typesStr, &c.SectionLevel, &pathStr); err != nil {
			if err == sql.ErrNoRows {
				continue // deleted since the index was built
			}
			return nil, fmt.Errorf("store: load chunk rowid=%d: %w", h.rowid, err)
		}
		c.Types = splitTypes(typesStr)
		if pathStr != "" {
			c.SectionPath = strings.Split(pathStr, "\x1f")
		}
		c.rowid = h.rowid
		out = append(out, SearchResult{Chunk: c, Score: h.score})
	}
	return out, nil
}

func joinTypes(ts []Type) string {
	ss := make([]string, len(ts))
	for i, t := range ts {
		ss[i] = string(t)
	}
	return strings.Join(ss, ",")
}

func splitTypes(s string) []Type {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]Type, len(parts))
	for i, p := range parts {
		out[i] = Type(p)
	}
	return out
}

// NotFoundError builds an errs.Error of the given kind with suggestions,
// for callers that resolve a scope before querying the store.
func NotFoundError(kind errs.Kind, msg string, suggestions ...string) error {
	return errs.New(kind, msg).WithSuggestions(suggestions...)
}

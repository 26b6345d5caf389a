package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/hazyhaar/horosvec"
)

// vectorHit is one in-scope ANN candidate, resolved to its sqlite rowid.
type vectorHit struct {
	rowid int64
	score float64
}

// vectorIndex wraps a single process-wide horosvec.Index shared across
// every (library, version) scope. horosvec has no native per-scope
// partitioning, so scope filtering happens client-side: search widens its
// candidate fetch until enough in-scope hits are found or the index is
// exhausted, then resolves ext_ids back to sqlite rowids via the chunks
// table. This trades a wider ANN fetch for the simplicity of one index
// per store instead of one per indexed scope — an acceptable tradeoff
// since a single docreef deployment indexes at most a few hundred
// libraries, not the open web.
type vectorIndex struct {
	mu      sync.Mutex
	idx     *horosvec.Index
	db      *sql.DB
	logger  *slog.Logger
	built   bool
	dirty   bool
}

func newVectorIndex(db *sql.DB, logger *slog.Logger) (*vectorIndex, error) {
	return &vectorIndex{db: db, logger: logger}, nil
}

// ensureBuilt lazily constructs the horosvec.Index and (re)builds it from
// the chunks table whenever a prior DeleteScope invalidated it. horosvec
// has no per-id delete, so a full rebuild is the only correct way to
// reflect removed scopes in the ANN index.
func (v *vectorIndex) ensureBuilt(ctx context.Context, db *sql.DB) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.idx == nil {
		idx, err := horosvec.New(db, horosvec.DefaultConfig())
		if err != nil {
			return fmt.Errorf("vector index: open: %w", err)
		}
		v.idx = idx
		v.built = true
		v.dirty = true
	}
	if !v.dirty {
		return nil
	}
	iter := &rowIterator{ctx: ctx, db: db}
	if err := v.idx.Build(ctx, iter); err != nil {
		return fmt.Errorf("vector index: build: %w", err)
	}
	if err := iter.err(); err != nil {
		return fmt.Errorf("vector index: scan rows: %w", err)
	}
	v.dirty = false
	return nil
}

// invalidate marks the index stale; the next ensureBuilt rebuilds it from
// the chunks table's current contents.
func (v *vectorIndex) invalidate() {
	v.mu.Lock()
	v.dirty = true
	v.mu.Unlock()
}

// insert adds freshly committed chunks to the live index incrementally,
// avoiding a full rebuild on the common add_chunks path.
func (v *vectorIndex) insert(chunks []Chunk) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.idx == nil || v.dirty {
		// Index not yet built or already scheduled for a rebuild that
		// will pick these rows up; nothing more to do here.
		return
	}
	vectors := make([][]float32, 0, len(chunks))
	ids := make([][]byte, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		vectors = append(vectors, c.Embedding)
		ids = append(ids, encodeRowID(c.rowid))
	}
	if len(vectors) == 0 {
		return
	}
	if err := v.idx.Insert(vectors, ids); err != nil {
		v.logger.Warn("vector index: incremental insert failed, scheduling rebuild", "error", err)
		v.dirty = true
	}
}

// search widens the ANN fetch until k in-scope hits are found or the
// index is exhausted.
func (v *vectorIndex) search(queryVec []float32, libNorm, verNorm string, k int) ([]vectorHit, error) {
	v.mu.Lock()
	idx := v.idx
	v.mu.Unlock()
	if idx == nil {
		return nil, nil
	}

	fetch := k * 2
	if fetch < k {
		fetch = k
	}
	total := idx.Count()
	for {
		if fetch > total {
			fetch = total
		}
		if fetch == 0 {
			return nil, nil
		}
		results, err := idx.Search(queryVec, fetch)
		if err != nil {
			return nil, err
		}
		hits, err := v.filterScope(results, libNorm, verNorm)
		if err != nil {
			return nil, err
		}
		if len(hits) >= k || fetch >= total {
			if len(hits) > k {
				hits = hits[:k]
			}
			return hits, nil
		}
		fetch *= 2
	}
}

func (v *vectorIndex) filterScope(results []horosvec.Result, libNorm, verNorm string) ([]vectorHit, error) {
	if len(results) == 0 {
		return nil, nil
	}
	byRowID := make(map[int64]float64, len(results))
	placeholders := make([]any, 0, len(results)+2)
	placeholders = append(placeholders, libNorm, verNorm)
	q := `SELECT rowid FROM chunks WHERE library_norm = ? AND version_norm = ? AND rowid IN (`
	for i, r := range results {
		rowid := decodeRowID(r.ID)
		byRowID[rowid] = float64(r.Score)
		if i > 0 {
			q += ","
		}
		q += "?"
		placeholders = append(placeholders, rowid)
	}
	q += ")"

	rows, err := v.db.Query(q, placeholders...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []vectorHit
	for rows.Next() {
		var rowid int64
		if err := rows.Scan(&rowid); err != nil {
			return nil, err
		}
		hits = append(hits, vectorHit{rowid: rowid, score: byRowID[rowid]})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Preserve the ANN's descending-score order among the in-scope subset.
	sortHitsByScoreDesc(hits)
	return hits, nil
}

func sortHitsByScoreDesc(hits []vectorHit) {
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].score > hits[j-1].score; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
}

// rowIterator implements horosvec.VectorIterator over every chunk in the
// store, for (re)building the ANN index from scratch.
type rowIterator struct {
	ctx    context.Context
	db     *sql.DB
	rows   *sql.Rows
	scanE  error
}

func (r *rowIterator) Next() ([]byte, []float32, bool) {
	if r.rows == nil {
		rows, err := r.db.QueryContext(r.ctx, `SELECT rowid, embedding FROM chunks WHERE length(embedding) > 0 ORDER BY rowid`)
		if err != nil {
			r.scanE = err
			return nil, nil, false
		}
		r.rows = rows
	}
	if !r.rows.Next() {
		r.rows.Close()
		return nil, nil, false
	}
	var rowid int64
	var blob []byte
	if err := r.rows.Scan(&rowid, &blob); err != nil {
		r.scanE = err
		return nil, nil, false
	}
	return encodeRowID(rowid), deserializeVector(blob), true
}

func (r *rowIterator) Reset() error {
	if r.rows != nil {
		r.rows.Close()
		r.rows = nil
	}
	r.scanE = nil
	return nil
}

func (r *rowIterator) err() error { return r.scanE }

func encodeRowID(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func decodeRowID(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func serializeVector(v []float32) []byte {
	b := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

func deserializeVector(b []byte) []float32 {
	n := len(b) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(b[i*4:])
		v[i] = math.Float32frombits(bits)
	}
	return v
}

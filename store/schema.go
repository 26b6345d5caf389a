package store

// schema is the complete DDL for the document store: one logical table
// of chunks keyed by (library_norm, version_norm,
// source_url, chunk_index), with a secondary vector-adjacency table
// populated by horosvec itself. Jobs are not persisted here; the manager
// keeps them in memory.
const schema = `
CREATE TABLE IF NOT EXISTS chunks (
    rowid        INTEGER PRIMARY KEY,
    library_norm TEXT NOT NULL,
    version_norm TEXT NOT NULL,
    source_url   TEXT NOT NULL,
    chunk_index  INTEGER NOT NULL,
    title        TEXT NOT NULL DEFAULT '',
    content      TEXT NOT NULL,
    types        TEXT NOT NULL DEFAULT '',
    section_level INTEGER NOT NULL DEFAULT 0,
    section_path TEXT NOT NULL DEFAULT '',
    embedding    BLOB NOT NULL DEFAULT (x''),
    created_at   INTEGER NOT NULL,
    UNIQUE (library_norm, version_norm, source_url, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_chunks_scope ON chunks(library_norm, version_norm);
CREATE INDEX IF NOT EXISTS idx_chunks_scope_url ON chunks(library_norm, version_norm, source_url);
`

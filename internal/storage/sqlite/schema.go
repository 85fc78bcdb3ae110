// ABOUTME: SQLite database schema for the chunk, parent, memory and feedback stores
// ABOUTME: Triggers enforce that findings are never deleted and feedback is append-only
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    source TEXT,
    body TEXT NOT NULL,
    metadata TEXT,
    ingested_at INTEGER NOT NULL
);

-- Parent store: sections partition a document body
CREATE TABLE IF NOT EXISTS sections (
    id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    ordinal INTEGER NOT NULL,
    start_offset INTEGER NOT NULL,
    end_offset INTEGER NOT NULL,
    text TEXT NOT NULL,
    ingested_at INTEGER NOT NULL
);

-- Chunk store: overlapping windows over a section
CREATE TABLE IF NOT EXISTS chunks (
    id TEXT PRIMARY KEY,
    section_id TEXT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    ordinal INTEGER NOT NULL,
    start_offset INTEGER NOT NULL,
    end_offset INTEGER NOT NULL,
    text TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chunk_embeddings (
    chunk_id TEXT NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
    model TEXT NOT NULL,
    dimension INTEGER NOT NULL,
    vector BLOB NOT NULL,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (chunk_id, model)
);

CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    state TEXT NOT NULL DEFAULT 'active',
    created_at INTEGER NOT NULL,
    closed_at INTEGER
);

-- Short-term and long-term memory share one table; scope is a tag
CREATE TABLE IF NOT EXISTS memory_entries (
    id TEXT PRIMARY KEY,
    scope TEXT NOT NULL,
    kind TEXT NOT NULL,
    session_id TEXT,
    content TEXT NOT NULL,
    finding_id TEXT,
    prov_session_id TEXT,
    prov_query TEXT,
    pinned INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    expires_at INTEGER,
    expired_at INTEGER,
    expire_reason TEXT,
    promoted_at INTEGER,
    last_used_seq INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS findings (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    query TEXT NOT NULL,
    description TEXT NOT NULL,
    severity TEXT NOT NULL,
    confidence REAL NOT NULL,
    context_refs TEXT,
    state TEXT NOT NULL DEFAULT 'proposed',
    supersedes_id TEXT,
    superseded_by TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    finding_id TEXT NOT NULL,
    verdict TEXT NOT NULL,
    rationale TEXT,
    author TEXT NOT NULL,
    edited_description TEXT,
    edited_severity TEXT,
    resulting_finding_id TEXT,
    created_at INTEGER NOT NULL
);

-- Cumulative feedback signal per section, used as a ranking tie-break
CREATE TABLE IF NOT EXISTS context_associations (
    section_id TEXT PRIMARY KEY,
    weight REAL NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL
);

CREATE TRIGGER IF NOT EXISTS findings_no_delete
BEFORE DELETE ON findings
BEGIN
    SELECT RAISE(ABORT, 'findings are never deleted');
END;

CREATE TRIGGER IF NOT EXISTS feedback_no_update
BEFORE UPDATE ON feedback
BEGIN
    SELECT RAISE(ABORT, 'feedback records are immutable');
END;

CREATE TRIGGER IF NOT EXISTS feedback_no_delete
BEFORE DELETE ON feedback
BEGIN
    SELECT RAISE(ABORT, 'feedback records are immutable');
END;

CREATE INDEX IF NOT EXISTS idx_sections_document ON sections(document_id, ordinal);
CREATE INDEX IF NOT EXISTS idx_chunks_section ON chunks(section_id, ordinal);
CREATE INDEX IF NOT EXISTS idx_embeddings_model ON chunk_embeddings(model);
CREATE INDEX IF NOT EXISTS idx_memory_scope ON memory_entries(scope, expired_at);
CREATE INDEX IF NOT EXISTS idx_memory_session ON memory_entries(session_id);
CREATE INDEX IF NOT EXISTS idx_memory_lru ON memory_entries(scope, last_used_seq);
CREATE INDEX IF NOT EXISTS idx_findings_session ON findings(session_id);
CREATE INDEX IF NOT EXISTS idx_findings_state ON findings(state);
CREATE INDEX IF NOT EXISTS idx_feedback_finding ON feedback(finding_id);
CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback(created_at);
`

// SchemaVersion is the current schema version for migrations
const SchemaVersion = 1

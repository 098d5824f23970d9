// CLAUDE:SUMMARY Complete recolte catalog schema: urls, tags, url_tags, knowledge_entries, original_files, ingest_log, FTS5.
package store

import "database/sql"

// Schema is the complete catalog schema. Every statement is idempotent so
// ApplySchema is safe to run on every startup.
const Schema = `
-- Registered URLs and their content-hash lifecycle
CREATE TABLE IF NOT EXISTS urls (
    id                  TEXT PRIMARY KEY,
    url                 TEXT NOT NULL,
    normalized_url      TEXT NOT NULL UNIQUE,
    content_hash        TEXT NOT NULL DEFAULT '',
    previous_hash       TEXT NOT NULL DEFAULT '',
    status              TEXT NOT NULL DEFAULT 'pending',
    error_message       TEXT NOT NULL DEFAULT '',
    first_seen          INTEGER NOT NULL,
    last_checked        INTEGER NOT NULL,
    last_content_change INTEGER,
    process_count       INTEGER NOT NULL DEFAULT 0,
    content_version     INTEGER NOT NULL DEFAULT 0,
    metadata            TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_urls_normalized ON urls(normalized_url);
CREATE INDEX IF NOT EXISTS idx_urls_hash ON urls(content_hash);
CREATE INDEX IF NOT EXISTS idx_urls_status ON urls(status);
CREATE INDEX IF NOT EXISTS idx_urls_first_seen ON urls(first_seen);

-- Hierarchical tag catalog (forest: each tag has at most one parent)
CREATE TABLE IF NOT EXISTS tags (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    parent_id   TEXT REFERENCES tags(id) ON DELETE SET NULL,
    description TEXT NOT NULL DEFAULT '',
    color       TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tags_name ON tags(name);
CREATE INDEX IF NOT EXISTS idx_tags_parent ON tags(parent_id);

-- Many-to-many URL <-> tag edges
CREATE TABLE IF NOT EXISTS url_tags (
    url_id     TEXT NOT NULL REFERENCES urls(id) ON DELETE CASCADE,
    tag_id     TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (url_id, tag_id)
);
CREATE INDEX IF NOT EXISTS idx_url_tags_url ON url_tags(url_id);
CREATE INDEX IF NOT EXISTS idx_url_tags_tag ON url_tags(tag_id);

-- Extracted knowledge entries, one per (url, content checksum)
CREATE TABLE IF NOT EXISTS knowledge_entries (
    id                TEXT PRIMARY KEY,
    url_id            TEXT NOT NULL REFERENCES urls(id) ON DELETE CASCADE,
    url               TEXT NOT NULL,
    title             TEXT NOT NULL DEFAULT '',
    content_type      TEXT NOT NULL DEFAULT '',
    text              TEXT NOT NULL DEFAULT '',
    metadata          TEXT NOT NULL DEFAULT '{}',
    tags              TEXT NOT NULL DEFAULT '[]',
    created_at        INTEGER NOT NULL,
    updated_at        INTEGER NOT NULL,
    size              INTEGER NOT NULL DEFAULT 0,
    checksum          TEXT NOT NULL DEFAULT '',
    processing_status TEXT NOT NULL DEFAULT 'completed',
    error_message     TEXT NOT NULL DEFAULT '',
    UNIQUE (url_id, checksum)
);
CREATE INDEX IF NOT EXISTS idx_entries_url_id ON knowledge_entries(url_id);
CREATE INDEX IF NOT EXISTS idx_entries_url ON knowledge_entries(url);
CREATE INDEX IF NOT EXISTS idx_entries_checksum ON knowledge_entries(checksum);
CREATE INDEX IF NOT EXISTS idx_entries_created ON knowledge_entries(created_at);
CREATE INDEX IF NOT EXISTS idx_entries_content_type ON knowledge_entries(content_type);
CREATE INDEX IF NOT EXISTS idx_entries_status ON knowledge_entries(processing_status);

-- FTS5 on knowledge entries (title + text)
CREATE VIRTUAL TABLE IF NOT EXISTS knowledge_fts USING fts5(
    title, text, content='knowledge_entries', content_rowid='rowid',
    tokenize='unicode61 remove_diacritics 2'
);

-- Triggers to keep FTS5 in sync
CREATE TRIGGER IF NOT EXISTS knowledge_ai AFTER INSERT ON knowledge_entries BEGIN
    INSERT INTO knowledge_fts(rowid, title, text) VALUES (new.rowid, new.title, new.text);
END;
CREATE TRIGGER IF NOT EXISTS knowledge_ad AFTER DELETE ON knowledge_entries BEGIN
    INSERT INTO knowledge_fts(knowledge_fts, rowid, title, text) VALUES('delete', old.rowid, old.title, old.text);
END;
CREATE TRIGGER IF NOT EXISTS knowledge_au AFTER UPDATE ON knowledge_entries BEGIN
    INSERT INTO knowledge_fts(knowledge_fts, rowid, title, text) VALUES('delete', old.rowid, old.title, old.text);
    INSERT INTO knowledge_fts(rowid, title, text) VALUES (new.rowid, new.title, new.text);
END;

-- Raw fetched payloads persisted on disk (provenance)
CREATE TABLE IF NOT EXISTS original_files (
    id           TEXT PRIMARY KEY,
    url_id       TEXT REFERENCES urls(id) ON DELETE SET NULL,
    url          TEXT NOT NULL DEFAULT '',
    file_path    TEXT NOT NULL UNIQUE,
    mime_type    TEXT NOT NULL DEFAULT '',
    size         INTEGER NOT NULL DEFAULT 0,
    checksum     TEXT NOT NULL DEFAULT '',
    scraper_used TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT 'active',
    metadata     TEXT NOT NULL DEFAULT '{}',
    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL,
    accessed_at  INTEGER,
    download_url TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_files_url_id ON original_files(url_id);
CREATE INDEX IF NOT EXISTS idx_files_url ON original_files(url);
CREATE INDEX IF NOT EXISTS idx_files_status ON original_files(status);
CREATE INDEX IF NOT EXISTS idx_files_mime ON original_files(mime_type);
CREATE INDEX IF NOT EXISTS idx_files_created ON original_files(created_at);
CREATE INDEX IF NOT EXISTS idx_files_checksum ON original_files(checksum);

-- Per-attempt ingestion log (observability)
CREATE TABLE IF NOT EXISTS ingest_log (
    id            TEXT PRIMARY KEY,
    url_id        TEXT NOT NULL DEFAULT '',
    url           TEXT NOT NULL,
    status        TEXT NOT NULL,
    stage         TEXT NOT NULL DEFAULT '',
    error_code    TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    content_hash  TEXT NOT NULL DEFAULT '',
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    attempted_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ingest_log_url ON ingest_log(url_id, attempted_at DESC);
`

// ApplySchema creates all tables, indexes, and triggers on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

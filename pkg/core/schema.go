package core

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SchemaVersion is the version recorded by EnsureSchema
const SchemaVersion = 1

// timeFormat is fixed-width ISO-8601 so stored timestamps sort lexically
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		ontology_name TEXT NOT NULL DEFAULT '',
		ontology_path TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS trajectories (
		trajectory_id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		task_query TEXT NOT NULL,
		final_answer TEXT NOT NULL DEFAULT '',
		iteration_count INTEGER NOT NULL DEFAULT 0,
		converged INTEGER NOT NULL DEFAULT 0,
		artifact BLOB,
		rlm_log_path TEXT,
		created_at TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(run_id)
	)`,
	`CREATE TABLE IF NOT EXISTS judgments (
		trajectory_id TEXT PRIMARY KEY,
		is_success INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		confidence TEXT NOT NULL CHECK (confidence IN ('high', 'medium', 'low')),
		missing TEXT NOT NULL DEFAULT '[]', -- JSON list
		FOREIGN KEY (trajectory_id) REFERENCES trajectories(trajectory_id)
	)`,
	`CREATE TABLE IF NOT EXISTS memory_items (
		memory_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		source_type TEXT NOT NULL,
		task_query TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		tags TEXT NOT NULL DEFAULT '[]',       -- JSON list
		scope TEXT NOT NULL DEFAULT '{}',      -- JSON object
		provenance TEXT NOT NULL DEFAULT '{}', -- JSON object
		access_count INTEGER NOT NULL DEFAULT 0,
		success_count INTEGER NOT NULL DEFAULT 0,
		failure_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS memory_usage (
		trajectory_id TEXT NOT NULL,
		memory_id TEXT NOT NULL,
		rank INTEGER NOT NULL,
		score REAL,
		PRIMARY KEY (trajectory_id, memory_id),
		FOREIGN KEY (trajectory_id) REFERENCES trajectories(trajectory_id),
		FOREIGN KEY (memory_id) REFERENCES memory_items(memory_id)
	)`,
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trajectories_run_id ON trajectories(run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_memory_items_created_at ON memory_items(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_memory_items_source_type ON memory_items(source_type)`,
	`CREATE INDEX IF NOT EXISTS idx_memory_usage_memory_id ON memory_usage(memory_id)`,
}

// ftsStatement indexes one synthesized document per memory, keyed by memory_id
const ftsStatement = `CREATE VIRTUAL TABLE IF NOT EXISTS memory_fts USING fts5(
	memory_id UNINDEXED,
	document,
	tokenize='porter unicode61'
)`

// EnsureSchema creates the tables, indices and full-text index if absent and
// records the schema version. It runs in one transaction and is idempotent.
// A missing FTS5 module only disables the full-text path.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	if err := s.checkOpen("ensure_schema"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapError("ensure_schema", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return wrapError("ensure_schema", fmt.Errorf("exec %q: %w", stmt[:min(len(stmt), 60)], err))
		}
	}

	fts := false
	if s.config.DisableFTS {
		s.logger.Warn("full-text index disabled by configuration, using in-process ranking")
	} else if _, err := tx.ExecContext(ctx, ftsStatement); err != nil {
		s.logger.Warn("full-text index unavailable, using in-process ranking", "error", err)
	} else {
		fts = true
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (?, ?)`,
		SchemaVersion, formatTime(time.Now()))
	if err != nil {
		return wrapError("ensure_schema", fmt.Errorf("record schema version: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return wrapError("ensure_schema", err)
	}
	s.ftsEnabled = fts

	if fts {
		if err := s.syncSearchIndex(ctx); err != nil {
			return err
		}
	}
	return nil
}

// GetSchemaVersion returns the highest recorded schema version, 0 if none
func (s *SQLiteStore) GetSchemaVersion(ctx context.Context) (int, error) {
	if err := s.checkOpen("get_schema_version"); err != nil {
		return 0, err
	}

	var version int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, wrapError("get_schema_version", err)
	}
	return version, nil
}

// HasFTSSupport reports whether retrieval uses the FTS5 index. The answer is
// probed once by EnsureSchema.
func (s *SQLiteStore) HasFTSSupport() bool {
	return s.ftsEnabled
}

// syncSearchIndex rebuilds the full-text index when it has drifted from
// memory_items, e.g. after rows were written with FTS disabled.
func (s *SQLiteStore) syncSearchIndex(ctx context.Context) error {
	var memories, docs int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_items`).Scan(&memories); err != nil {
		return wrapError("sync_search_index", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_fts`).Scan(&docs); err != nil {
		return wrapError("sync_search_index", err)
	}
	if memories == docs {
		return nil
	}
	s.logger.Info("full-text index out of sync, rebuilding", "memories", memories, "documents", docs)
	return s.RebuildSearchIndex(ctx)
}

// RebuildSearchIndex regenerates every full-text document from memory_items.
// It is a no-op when full-text search is unavailable.
func (s *SQLiteStore) RebuildSearchIndex(ctx context.Context) error {
	if err := s.checkOpen("rebuild_search_index"); err != nil {
		return err
	}
	if !s.ftsEnabled {
		return nil
	}

	items, err := s.ListMemories(ctx, MemoryFilter{})
	if err != nil {
		return wrapError("rebuild_search_index", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapError("rebuild_search_index", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_fts`); err != nil {
		return wrapError("rebuild_search_index", err)
	}
	for _, item := range items {
		if err := insertSearchDocument(ctx, tx, item); err != nil {
			return wrapError("rebuild_search_index", err)
		}
	}
	return wrapError("rebuild_search_index", tx.Commit())
}

// insertSearchDocument writes the FTS row for item
func insertSearchDocument(ctx context.Context, tx *sql.Tx, item *MemoryItem) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO memory_fts (memory_id, document) VALUES (?, ?)`,
		item.MemoryID, item.SearchDocument())
	if err != nil {
		return fmt.Errorf("insert search document: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// timestampLayouts are tried in order by parseTimestamp. Fractional seconds
// are optional in every layout; layouts without an offset parse as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO-8601 timestamp %q", s)
}

func parseTime(s string) time.Time {
	t, _ := parseTimestamp(s)
	return t
}

package core

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

// Init opens the SQLite connection and ensures the schema exists
func (s *SQLiteStore) Init(ctx context.Context) error {
	if s.closed {
		return wrapError("init", ErrStoreClosed)
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.config.Path)
	if err != nil {
		return wrapError("init", fmt.Errorf("failed to open database: %w", err))
	}

	// One connection for the store's whole lifetime: an in-memory database
	// exists per connection, and pragmas below are per connection too.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s.db = db

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	if s.config.Path != MemoryPath {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return wrapError("init", fmt.Errorf("failed to apply %q: %w", p, err))
		}
	}

	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}

	s.logger.Info("database initialized", "path", s.config.Path, "fts", s.ftsEnabled)

	return nil
}

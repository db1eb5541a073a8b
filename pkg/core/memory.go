package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const memoryColumns = `memory_id, title, description, content, source_type, task_query,
	created_at, tags, scope, provenance, access_count, success_count, failure_count`

// AddMemory stores item and returns its ID. Memories are content-addressed:
// when the ID is already present the stored record is left untouched and the
// existing ID is returned. New rows always start with zeroed counters.
func (s *SQLiteStore) AddMemory(ctx context.Context, item *MemoryItem) (string, error) {
	if err := s.checkOpen("add_memory"); err != nil {
		return "", err
	}
	if err := item.Validate(); err != nil {
		return "", wrapError("add_memory", err)
	}

	if item.MemoryID == "" {
		item.MemoryID = ComputeMemoryID(item.Title, item.Content)
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	exists, err := s.HasMemory(ctx, item.MemoryID)
	if err != nil {
		return "", wrapError("add_memory", err)
	}
	if exists {
		s.logger.Debug("memory already stored", "memory_id", item.MemoryID)
		return item.MemoryID, nil
	}

	tags, scope, provenance, err := encodeMemoryJSON(item)
	if err != nil {
		return "", wrapError("add_memory", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", wrapError("add_memory", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memory_items (`+memoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, 0)
	`, item.MemoryID, item.Title, item.Description, item.Content, string(item.SourceType),
		item.TaskQuery, formatTime(item.CreatedAt), tags, scope, provenance)
	if err != nil {
		return "", wrapError("add_memory", err)
	}

	if s.ftsEnabled {
		if err := insertSearchDocument(ctx, tx, item); err != nil {
			return "", wrapError("add_memory", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", wrapError("add_memory", err)
	}

	s.logger.Debug("memory added", "memory_id", item.MemoryID, "source_type", item.SourceType)
	return item.MemoryID, nil
}

// ReplaceMemory overwrites the descriptive fields of an existing memory:
// description, source_type, task_query, tags, scope and provenance. Title and
// content define the ID and cannot change; counters and created_at are kept.
func (s *SQLiteStore) ReplaceMemory(ctx context.Context, item *MemoryItem) error {
	if err := s.checkOpen("replace_memory"); err != nil {
		return err
	}
	if err := item.Validate(); err != nil {
		return wrapError("replace_memory", err)
	}
	if item.MemoryID == "" {
		item.MemoryID = ComputeMemoryID(item.Title, item.Content)
	}

	tags, scope, provenance, err := encodeMemoryJSON(item)
	if err != nil {
		return wrapError("replace_memory", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapError("replace_memory", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE memory_items
		SET description = ?, source_type = ?, task_query = ?, tags = ?, scope = ?, provenance = ?
		WHERE memory_id = ?
	`, item.Description, string(item.SourceType), item.TaskQuery, tags, scope, provenance, item.MemoryID)
	if err != nil {
		return wrapError("replace_memory", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return wrapError("replace_memory", err)
	} else if n == 0 {
		return wrapError("replace_memory", ErrNotFound)
	}

	if s.ftsEnabled {
		if _, err := tx.ExecContext(ctx, `DELETE FROM memory_fts WHERE memory_id = ?`, item.MemoryID); err != nil {
			return wrapError("replace_memory", err)
		}
		if err := insertSearchDocument(ctx, tx, item); err != nil {
			return wrapError("replace_memory", err)
		}
	}

	return wrapError("replace_memory", tx.Commit())
}

// HasMemory reports whether a memory with id is stored
func (s *SQLiteStore) HasMemory(ctx context.Context, id string) (bool, error) {
	if err := s.checkOpen("has_memory"); err != nil {
		return false, err
	}

	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM memory_items WHERE memory_id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrapError("has_memory", err)
	}
	return true, nil
}

// GetMemory retrieves a memory by ID, or ErrNotFound
func (s *SQLiteStore) GetMemory(ctx context.Context, id string) (*MemoryItem, error) {
	if err := s.checkOpen("get_memory"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memory_items WHERE memory_id = ?`, id)
	item, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapError("get_memory", ErrNotFound)
	}
	if err != nil {
		return nil, wrapError("get_memory", err)
	}
	return item, nil
}

// GetMemoriesByIDs fetches the memories for ids, skipping unknown IDs. Results
// follow the order of ids. More than Config.MaxBulkIDs ids is rejected.
func (s *SQLiteStore) GetMemoriesByIDs(ctx context.Context, ids []string) ([]*MemoryItem, error) {
	if err := s.checkOpen("get_memories_by_ids"); err != nil {
		return nil, err
	}
	if len(ids) > s.config.MaxBulkIDs {
		return nil, wrapError("get_memories_by_ids",
			fmt.Errorf("%w: %d requested, limit %d", ErrTooManyIDs, len(ids), s.config.MaxBulkIDs))
	}
	if len(ids) == 0 {
		return []*MemoryItem{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memoryColumns+` FROM memory_items WHERE memory_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, wrapError("get_memories_by_ids", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]*MemoryItem, len(ids))
	for rows.Next() {
		item, err := scanMemory(rows)
		if err != nil {
			return nil, wrapError("get_memories_by_ids", err)
		}
		byID[item.MemoryID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("get_memories_by_ids", err)
	}

	items := make([]*MemoryItem, 0, len(byID))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			items = append(items, item)
			delete(byID, id)
		}
	}
	return items, nil
}

// ListMemories returns stored memories newest first. SourceType is matched
// exactly; Ontology is a loose substring match against the serialized scope,
// so "uniprot" also matches a scope that mentions "uniprot-core".
func (s *SQLiteStore) ListMemories(ctx context.Context, filter MemoryFilter) ([]*MemoryItem, error) {
	if err := s.checkOpen("list_memories"); err != nil {
		return nil, err
	}

	where, args := filter.toSQL("")
	query := `SELECT ` + memoryColumns + ` FROM memory_items` + where +
		` ORDER BY created_at DESC, rowid DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError("list_memories", err)
	}
	defer func() { _ = rows.Close() }()

	items := []*MemoryItem{}
	for rows.Next() {
		item, err := scanMemory(rows)
		if err != nil {
			return nil, wrapError("list_memories", err)
		}
		items = append(items, item)
	}
	return items, wrapError("list_memories", rows.Err())
}

// UpdateMemoryStats increments the counters selected by update in a single
// statement. An empty update is a no-op; an unknown id returns ErrNotFound.
func (s *SQLiteStore) UpdateMemoryStats(ctx context.Context, id string, update StatsUpdate) error {
	if err := s.checkOpen("update_memory_stats"); err != nil {
		return err
	}
	if update.IsZero() {
		return nil
	}

	var sets []string
	if update.Accessed {
		sets = append(sets, "access_count = access_count + 1")
	}
	if update.Success {
		sets = append(sets, "success_count = success_count + 1")
	}
	if update.Failure {
		sets = append(sets, "failure_count = failure_count + 1")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE memory_items SET `+strings.Join(sets, ", ")+` WHERE memory_id = ?`, id)
	if err != nil {
		return wrapError("update_memory_stats", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapError("update_memory_stats", err)
	}
	if n == 0 {
		return wrapError("update_memory_stats", fmt.Errorf("memory %s: %w", id, ErrNotFound))
	}
	return nil
}

// toSQL renders the filter as a WHERE clause over memory_items
func (f MemoryFilter) toSQL(alias string) (string, []any) {
	conds, args := f.conditions(alias)
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// conditions returns the filter predicates, with column names qualified by
// alias when one is given
func (f MemoryFilter) conditions(alias string) ([]string, []any) {
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}

	var conds []string
	var args []any
	if f.SourceType != "" {
		conds = append(conds, col("source_type")+" = ?")
		args = append(args, string(f.SourceType))
	}
	if f.Ontology != "" {
		conds = append(conds, col("scope")+" LIKE ?")
		args = append(args, "%"+f.Ontology+"%")
	}
	return conds, args
}

func encodeMemoryJSON(item *MemoryItem) (tags, scope, provenance string, err error) {
	t := item.Tags
	if t == nil {
		t = []string{}
	}
	tagsJSON, err := json.Marshal(t)
	if err != nil {
		return "", "", "", fmt.Errorf("encode tags: %w", err)
	}
	scopeJSON, err := json.Marshal(item.Scope)
	if err != nil {
		return "", "", "", fmt.Errorf("encode scope: %w", err)
	}
	provJSON, err := json.Marshal(item.Provenance)
	if err != nil {
		return "", "", "", fmt.Errorf("encode provenance: %w", err)
	}
	return string(tagsJSON), string(scopeJSON), string(provJSON), nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*MemoryItem, error) {
	var item MemoryItem
	var sourceType, createdAt, tags, scope, provenance string

	err := row.Scan(&item.MemoryID, &item.Title, &item.Description, &item.Content, &sourceType,
		&item.TaskQuery, &createdAt, &tags, &scope, &provenance,
		&item.AccessCount, &item.SuccessCount, &item.FailureCount)
	if err != nil {
		return nil, err
	}

	item.SourceType = SourceType(sourceType)
	item.CreatedAt = parseTime(createdAt)
	if err := json.Unmarshal([]byte(tags), &item.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of %s: %w", item.MemoryID, err)
	}
	if err := json.Unmarshal([]byte(scope), &item.Scope); err != nil {
		return nil, fmt.Errorf("decode scope of %s: %w", item.MemoryID, err)
	}
	if err := json.Unmarshal([]byte(provenance), &item.Provenance); err != nil {
		return nil, fmt.Errorf("decode provenance of %s: %w", item.MemoryID, err)
	}
	return &item, nil
}

package core

import (
	"context"
	"database/sql"
	"fmt"
)

// RecordUsage notes that memoryID was surfaced to trajectoryID at rank.
// Recording the same pair again is a no-op that keeps the first rank and score.
func (s *SQLiteStore) RecordUsage(ctx context.Context, trajectoryID, memoryID string, rank int, score *float64) error {
	if err := s.checkOpen("record_usage"); err != nil {
		return err
	}
	if rank < 1 {
		return wrapError("record_usage", fmt.Errorf("rank must be 1-based, got %d", rank))
	}

	var sc sql.NullFloat64
	if score != nil {
		sc = sql.NullFloat64{Float64: *score, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO memory_usage (trajectory_id, memory_id, rank, score)
		VALUES (?, ?, ?, ?)
	`, trajectoryID, memoryID, rank, sc)
	return wrapError("record_usage", err)
}

// GetUsageForTrajectory lists the memories consulted by a trajectory, by rank
func (s *SQLiteStore) GetUsageForTrajectory(ctx context.Context, trajectoryID string) ([]UsageRecord, error) {
	if err := s.checkOpen("get_usage_for_trajectory"); err != nil {
		return nil, err
	}
	return s.queryUsage(ctx, "get_usage_for_trajectory", `
		SELECT trajectory_id, memory_id, rank, score FROM memory_usage
		WHERE trajectory_id = ?
		ORDER BY rank ASC
	`, trajectoryID)
}

// GetUsageForMemory lists every trajectory that consulted a memory
func (s *SQLiteStore) GetUsageForMemory(ctx context.Context, memoryID string) ([]UsageRecord, error) {
	if err := s.checkOpen("get_usage_for_memory"); err != nil {
		return nil, err
	}
	return s.queryUsage(ctx, "get_usage_for_memory", `
		SELECT trajectory_id, memory_id, rank, score FROM memory_usage
		WHERE memory_id = ?
		ORDER BY rowid ASC
	`, memoryID)
}

func (s *SQLiteStore) queryUsage(ctx context.Context, op, query string, args ...any) ([]UsageRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError(op, err)
	}
	defer func() { _ = rows.Close() }()

	records := []UsageRecord{}
	for rows.Next() {
		var r UsageRecord
		var score sql.NullFloat64
		if err := rows.Scan(&r.TrajectoryID, &r.MemoryID, &r.Rank, &score); err != nil {
			return nil, wrapError(op, err)
		}
		if score.Valid {
			v := score.Float64
			r.Score = &v
		}
		records = append(records, r)
	}
	return records, wrapError(op, rows.Err())
}

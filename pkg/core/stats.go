package core

import "context"

// GetStats counts the rows of every table
func (s *SQLiteStore) GetStats(ctx context.Context) (Stats, error) {
	stats := Stats{MemoriesBySource: map[string]int{}}
	if err := s.checkOpen("get_stats"); err != nil {
		return stats, err
	}

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM runs`, &stats.Runs},
		{`SELECT COUNT(*) FROM trajectories`, &stats.Trajectories},
		{`SELECT COUNT(*) FROM judgments`, &stats.Judgments},
		{`SELECT COUNT(*) FROM judgments WHERE is_success = 1`, &stats.SuccessfulJudgments},
		{`SELECT COUNT(*) FROM memory_items`, &stats.Memories},
		{`SELECT COUNT(*) FROM memory_usage`, &stats.UsageRecords},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return stats, wrapError("get_stats", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT source_type, COUNT(*) FROM memory_items GROUP BY source_type`)
	if err != nil {
		return stats, wrapError("get_stats", err)
	}
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			_ = rows.Close()
			return stats, wrapError("get_stats", err)
		}
		stats.MemoriesBySource[source] = n
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return stats, wrapError("get_stats", err)
	}
	if err := rows.Close(); err != nil {
		return stats, wrapError("get_stats", err)
	}

	version, err := s.GetSchemaVersion(ctx)
	if err != nil {
		return stats, err
	}
	stats.SchemaVersion = version
	stats.FTSEnabled = s.ftsEnabled

	return stats, nil
}

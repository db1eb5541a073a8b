package core

import (
	"context"
	"database/sql"
	"regexp"
	"sort"
	"strings"
)

// RetrieveOptions controls Retrieve
type RetrieveOptions struct {
	K      int          // Maximum number of results
	Filter MemoryFilter // Applied before ranking on both paths; Limit is ignored
}

var wordPattern = regexp.MustCompile(`\w+`)

// stopWords are dropped from full-text queries
var stopWords = map[string]struct{}{
	"a": {}, "about": {}, "after": {}, "all": {}, "also": {}, "an": {}, "and": {}, "any": {},
	"are": {}, "as": {}, "at": {}, "be": {}, "been": {}, "but": {}, "by": {}, "can": {},
	"could": {}, "did": {}, "do": {}, "does": {}, "for": {}, "from": {}, "had": {}, "has": {},
	"have": {}, "how": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {}, "its": {},
	"may": {}, "more": {}, "not": {}, "of": {}, "on": {}, "or": {}, "our": {}, "should": {},
	"so": {}, "than": {}, "that": {}, "the": {}, "their": {}, "them": {}, "then": {},
	"there": {}, "these": {}, "they": {}, "this": {}, "those": {}, "to": {}, "was": {},
	"we": {}, "were": {}, "what": {}, "when": {}, "which": {}, "who": {}, "why": {},
	"will": {}, "with": {}, "would": {}, "you": {}, "your": {},
}

// QueryTerms returns the lower-cased word tokens of text longer than two
// characters, minus stop words, in their original order.
func QueryTerms(text string) []string {
	var terms []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		terms = append(terms, w)
	}
	return terms
}

// buildMatchQuery joins terms into a disjunctive FTS5 query
func buildMatchQuery(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

// Retrieve ranks stored memories against task and returns at most opts.K of
// them, most relevant first. With the FTS5 index it uses the engine's BM25;
// otherwise it ranks the filtered corpus in-process.
func (s *SQLiteStore) Retrieve(ctx context.Context, task string, opts RetrieveOptions) ([]ScoredMemory, error) {
	if err := s.checkOpen("retrieve"); err != nil {
		return nil, err
	}
	if opts.K <= 0 {
		return []ScoredMemory{}, nil
	}

	if s.ftsEnabled {
		return s.retrieveFTS(ctx, task, opts)
	}
	return s.retrieveFallback(ctx, task, opts)
}

// retrieveFTS runs an OR query over the full-text index. A query with no
// usable terms matches nothing.
func (s *SQLiteStore) retrieveFTS(ctx context.Context, task string, opts RetrieveOptions) ([]ScoredMemory, error) {
	terms := QueryTerms(task)
	if len(terms) == 0 {
		return []ScoredMemory{}, nil
	}

	conds, args := opts.Filter.conditions("m")
	conds = append([]string{"memory_fts MATCH ?"}, conds...)
	args = append([]any{buildMatchQuery(terms)}, args...)
	args = append(args, opts.K)

	// bm25() is lower-is-better; ORDER BY ascending gives best matches first
	query := `
		SELECT ` + qualifiedMemoryColumns("m") + `, bm25(memory_fts) AS bm25_score
		FROM memory_fts
		JOIN memory_items m ON m.memory_id = memory_fts.memory_id
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY bm25_score
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError("retrieve", err)
	}
	defer func() { _ = rows.Close() }()

	results := []ScoredMemory{}
	for rows.Next() {
		var rank float64
		item, err := scanMemory(scoredRow{rows: rows, score: &rank})
		if err != nil {
			return nil, wrapError("retrieve", err)
		}
		results = append(results, ScoredMemory{MemoryItem: item, Score: -rank})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("retrieve", err)
	}

	s.logger.Debug("retrieved memories", "path", "fts", "terms", len(terms), "results", len(results))
	return results, nil
}

// retrieveFallback ranks every filtered memory with the configured Ranker.
// Without a ranker it degrades to an empty result.
func (s *SQLiteStore) retrieveFallback(ctx context.Context, task string, opts RetrieveOptions) ([]ScoredMemory, error) {
	filter := opts.Filter
	filter.Limit = 0
	items, err := s.ListMemories(ctx, filter)
	if err != nil {
		return nil, wrapError("retrieve", err)
	}
	if len(items) == 0 {
		return []ScoredMemory{}, nil
	}
	if s.ranker == nil {
		s.logger.Warn("no fallback ranker available, returning no results")
		return []ScoredMemory{}, nil
	}

	docs := make([]string, len(items))
	for i, item := range items {
		docs[i] = item.SearchDocument()
	}
	scores := s.ranker.Rank(strings.ToLower(task), docs)

	results := make([]ScoredMemory, len(items))
	for i, item := range items {
		var score float64
		if i < len(scores) {
			score = scores[i]
		}
		results[i] = ScoredMemory{MemoryItem: item, Score: score}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > opts.K {
		results = results[:opts.K]
	}

	s.logger.Debug("retrieved memories", "path", "fallback", "corpus", len(items), "results", len(results))
	return results, nil
}

// scoredRow appends a trailing score column to the memory columns
type scoredRow struct {
	rows  *sql.Rows
	score *float64
}

func (r scoredRow) Scan(dest ...any) error {
	return r.rows.Scan(append(dest, r.score)...)
}

func qualifiedMemoryColumns(alias string) string {
	cols := strings.Split(memoryColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

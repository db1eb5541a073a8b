package curriculum

import (
	"context"
	"fmt"
	"sort"

	"github.com/liliang-cn/reasoningbank/pkg/core"
)

const (
	// DefaultOversampleFactor multiplies K when fetching base candidates
	DefaultOversampleFactor = 3
	// DefaultTolerance is the level distance that still earns partial credit
	DefaultTolerance = 1
)

// Store is the part of core.SQLiteStore the curriculum layer reads from
type Store interface {
	Retrieve(ctx context.Context, task string, opts core.RetrieveOptions) ([]core.ScoredMemory, error)
	ListMemories(ctx context.Context, filter core.MemoryFilter) ([]*core.MemoryItem, error)
}

// Options controls RetrieveWithCurriculum
type Options struct {
	K        int
	Ontology string // Caller's ontology; empty disables ontology credit
	// Tolerance is the largest level distance that still scores. Zero credits
	// exact matches only; negative values select DefaultTolerance.
	Tolerance int
}

// DefaultOptions returns K=5 with the default tolerance
func DefaultOptions() Options {
	return Options{K: 5, Tolerance: DefaultTolerance}
}

// Result is one curriculum-ranked memory
type Result struct {
	core.ScoredMemory
	Exemplar        bool    `json:"exemplar"`
	CurriculumScore float64 `json:"curriculum_score"`
}

// Retriever re-ranks base retrieval so that exemplars close to the task's
// estimated level come first
type Retriever struct {
	store            Store
	logger           core.Logger
	oversampleFactor int
}

// NewRetriever wraps store. A nil logger discards output.
func NewRetriever(store Store, logger core.Logger) *Retriever {
	if logger == nil {
		logger = core.NopLogger()
	}
	return &Retriever{
		store:            store,
		logger:           logger,
		oversampleFactor: DefaultOversampleFactor,
	}
}

// WithOversampleFactor sets how many times K candidates are fetched from the
// base engine. Values below 1 are ignored.
func (r *Retriever) WithOversampleFactor(factor int) *Retriever {
	if factor >= 1 {
		r.oversampleFactor = factor
	}
	return r
}

// RetrieveWithCurriculum estimates the level of task, fetches oversampled
// candidates, then returns up to max(1, K/2) best-scoring exemplars followed
// by non-exemplars in base order, truncated to K.
//
// The zero Options has Tolerance 0, not DefaultTolerance; callers should
// start from DefaultOptions and override fields.
func (r *Retriever) RetrieveWithCurriculum(ctx context.Context, task string, opts Options) ([]Result, error) {
	if opts.K <= 0 {
		return []Result{}, nil
	}
	if opts.Tolerance < 0 {
		opts.Tolerance = DefaultTolerance
	}

	level := Estimate(task)
	candidates, err := r.store.Retrieve(ctx, task, core.RetrieveOptions{K: opts.K * r.oversampleFactor})
	if err != nil {
		return nil, fmt.Errorf("curriculum retrieve: %w", err)
	}

	var exemplars, others []Result
	for _, c := range candidates {
		if c.SourceType == core.SourceExemplar {
			exemplars = append(exemplars, Result{
				ScoredMemory:    c,
				Exemplar:        true,
				CurriculumScore: ScoreExemplar(c.MemoryItem, level, opts.Ontology, opts.Tolerance),
			})
		} else {
			others = append(others, Result{ScoredMemory: c})
		}
	}

	sort.SliceStable(exemplars, func(i, j int) bool {
		return exemplars[i].CurriculumScore > exemplars[j].CurriculumScore
	})
	slots := max(1, opts.K/2)
	if len(exemplars) > slots {
		exemplars = exemplars[:slots]
	}

	results := make([]Result, 0, opts.K)
	results = append(results, exemplars...)
	results = append(results, others...)
	if len(results) > opts.K {
		results = results[:opts.K]
	}

	r.logger.Debug("curriculum retrieval",
		"level", int(level), "candidates", len(candidates),
		"exemplars", len(exemplars), "results", len(results))
	return results, nil
}

// ScoreExemplar rates an exemplar for a task at taskLevel: 10 for the same
// level, 5 minus the distance when within tolerance, plus 5 when it is scoped
// to ontology or 1 when an ontology was given but differs.
func ScoreExemplar(item *core.MemoryItem, taskLevel Level, ontology string, tolerance int) float64 {
	score := 0.0

	if lvl, ok := ExemplarLevel(item); ok {
		delta := int(lvl - taskLevel)
		if delta < 0 {
			delta = -delta
		}
		switch {
		case delta == 0:
			score += 10
		case delta <= tolerance:
			score += float64(5 - delta)
		}
	}

	if ontology != "" {
		if item.Scope.HasOntology(ontology) {
			score += 5
		} else {
			score += 1
		}
	}
	return score
}

// ExemplarLevel returns the declared curriculum level of item, read from its
// scope and then its provenance
func ExemplarLevel(item *core.MemoryItem) (Level, bool) {
	if item.Scope.CurriculumLevel != nil {
		return Level(*item.Scope.CurriculumLevel), true
	}
	if item.Provenance.ExemplarLevel != nil {
		return Level(*item.Provenance.ExemplarLevel), true
	}
	return 0, false
}

// GetExemplarsForLevel lists stored exemplars at level, newest first,
// optionally restricted to ontology. A limit <= 0 returns all of them.
func (r *Retriever) GetExemplarsForLevel(ctx context.Context, level Level, ontology string, limit int) ([]*core.MemoryItem, error) {
	items, err := r.listExemplars(ctx, ontology)
	if err != nil {
		return nil, err
	}

	out := []*core.MemoryItem{}
	for _, item := range items {
		if lvl, ok := ExemplarLevel(item); !ok || lvl != level {
			continue
		}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Coverage summarizes how many exemplars exist per level and ontology
type Coverage struct {
	Total      int            `json:"total"`
	ByLevel    map[Level]int  `json:"by_level"`
	ByOntology map[string]int `json:"by_ontology"`
	// Gaps lists the levels with no exemplar, ascending
	Gaps []Level `json:"gaps"`
}

// AnalyzeCoverage counts stored exemplars, optionally restricted to ontology
func (r *Retriever) AnalyzeCoverage(ctx context.Context, ontology string) (Coverage, error) {
	cov := Coverage{
		ByLevel:    make(map[Level]int, int(MaxLevel)),
		ByOntology: map[string]int{},
		Gaps:       []Level{},
	}
	for l := MinLevel; l <= MaxLevel; l++ {
		cov.ByLevel[l] = 0
	}

	items, err := r.listExemplars(ctx, ontology)
	if err != nil {
		return cov, err
	}

	for _, item := range items {
		cov.Total++
		if lvl, ok := ExemplarLevel(item); ok && lvl.Valid() {
			cov.ByLevel[lvl]++
		}
		for _, o := range item.Scope.Ontology {
			cov.ByOntology[o]++
		}
	}
	for l := MinLevel; l <= MaxLevel; l++ {
		if cov.ByLevel[l] == 0 {
			cov.Gaps = append(cov.Gaps, l)
		}
	}
	return cov, nil
}

// listExemplars narrows the SQL substring filter to exact ontology membership
func (r *Retriever) listExemplars(ctx context.Context, ontology string) ([]*core.MemoryItem, error) {
	items, err := r.store.ListMemories(ctx, core.MemoryFilter{
		SourceType: core.SourceExemplar,
		Ontology:   ontology,
	})
	if err != nil {
		return nil, fmt.Errorf("list exemplars: %w", err)
	}
	if ontology == "" {
		return items, nil
	}

	out := items[:0]
	for _, item := range items {
		if item.Scope.HasOntology(ontology) {
			out = append(out, item)
		}
	}
	return out, nil
}

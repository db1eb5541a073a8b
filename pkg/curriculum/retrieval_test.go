package curriculum

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/reasoningbank/pkg/core"
)

func newTestStore(t *testing.T) *core.SQLiteStore {
	t.Helper()

	store, err := core.Open(context.Background(), core.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func addExemplar(t *testing.T, store *core.SQLiteStore, title, question string, level int, ontology string) *core.MemoryItem {
	t.Helper()

	item, err := ParseExemplar(exemplarDoc(title, question, level), ontology, "")
	require.NoError(t, err)
	_, err = store.AddMemory(context.Background(), item)
	require.NoError(t, err)
	return item
}

// seedCurriculum stores uniprot exemplars at levels 1 to 3 and one organic
// memory, all mentioning annotations
func seedCurriculum(t *testing.T, store *core.SQLiteStore) {
	t.Helper()

	addExemplar(t, store, "Annotations lookup", "What is the entry P12345?", 1, "uniprot")
	addExemplar(t, store, "Annotations cross reference", "Show annotations for P04637", 2, "uniprot")
	addExemplar(t, store, "Annotations filter", "List reviewed entries only", 3, "uniprot")

	organic := core.NewMemoryItem("Annotation paging", "Page through annotations in batches", "use LIMIT and OFFSET", core.SourceSuccess)
	_, err := store.AddMemory(context.Background(), organic)
	require.NoError(t, err)
}

func TestRetrieveWithCurriculum_PrefersMatchingLevel(t *testing.T) {
	store := newTestStore(t)
	seedCurriculum(t, store)
	r := NewRetriever(store, nil)

	task := "Show annotations for P04637"
	require.Equal(t, Level(2), Estimate(task))

	results, err := r.RetrieveWithCurriculum(context.Background(), task, Options{K: 4, Ontology: "uniprot", Tolerance: 1})
	require.NoError(t, err)
	require.Len(t, results, 3, "two exemplar slots plus the organic memory")

	assert.True(t, results[0].Exemplar)
	assert.Equal(t, "Annotations cross reference", results[0].Title)
	assert.InDelta(t, 15.0, results[0].CurriculumScore, 1e-9)

	assert.True(t, results[1].Exemplar)
	assert.InDelta(t, 9.0, results[1].CurriculumScore, 1e-9)

	assert.False(t, results[2].Exemplar)
	assert.Equal(t, "Annotation paging", results[2].Title)
}

func TestRetrieveWithCurriculum_ToleranceOptions(t *testing.T) {
	store := newTestStore(t)
	seedCurriculum(t, store)
	r := NewRetriever(store, nil)
	ctx := context.Background()
	task := "Show annotations for P04637"

	neighbourScore := func(opts Options) float64 {
		t.Helper()
		results, err := r.RetrieveWithCurriculum(ctx, task, opts)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(results), 2)
		require.True(t, results[1].Exemplar)
		return results[1].CurriculumScore
	}

	opts := DefaultOptions()
	opts.K = 4
	opts.Ontology = "uniprot"
	assert.InDelta(t, 9.0, neighbourScore(opts), 1e-9)

	opts.Tolerance = -1
	assert.InDelta(t, 9.0, neighbourScore(opts), 1e-9, "negative selects the default")

	opts.Tolerance = 0
	assert.InDelta(t, 5.0, neighbourScore(opts), 1e-9, "zero credits exact levels only")
}

func TestRetrieveWithCurriculum_SingleSlot(t *testing.T) {
	store := newTestStore(t)
	seedCurriculum(t, store)

	results, err := NewRetriever(store, nil).RetrieveWithCurriculum(context.Background(),
		"Show annotations for P04637", Options{K: 1, Ontology: "uniprot"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Annotations cross reference", results[0].Title)
}

func TestRetrieveWithCurriculum_FillsWithOrganicMemories(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, title := range []string{"Annotation paging", "Annotation caching", "Annotation export"} {
		_, err := store.AddMemory(ctx, core.NewMemoryItem(title, "handle annotations", "body of "+title, core.SourceSuccess))
		require.NoError(t, err)
	}

	results, err := NewRetriever(store, nil).RetrieveWithCurriculum(ctx, "annotations", Options{K: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.Exemplar)
	}
}

func TestRetrieveWithCurriculum_ZeroK(t *testing.T) {
	store := newTestStore(t)
	seedCurriculum(t, store)

	results, err := NewRetriever(store, nil).RetrieveWithCurriculum(context.Background(), "annotations", Options{K: 0})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestScoreExemplar(t *testing.T) {
	item := func(level int, ontology string) *core.MemoryItem {
		m := core.NewMemoryItem("t", "", "c", core.SourceExemplar)
		m.Scope.CurriculumLevel = core.IntPtr(level)
		if ontology != "" {
			m.Scope.Ontology = []string{ontology}
		}
		return m
	}

	tests := []struct {
		name      string
		item      *core.MemoryItem
		level     Level
		ontology  string
		tolerance int
		want      float64
	}{
		{"exact level and ontology", item(2, "uniprot"), 2, "uniprot", 1, 15},
		{"exact level no ontology given", item(2, "uniprot"), 2, "", 1, 10},
		{"one off within tolerance", item(3, "uniprot"), 2, "uniprot", 1, 9},
		{"two off within tolerance", item(4, ""), 2, "", 2, 3},
		{"beyond tolerance", item(5, ""), 2, "", 1, 0},
		{"other ontology credit", item(2, "go"), 2, "uniprot", 0, 11},
		{"ontology match is case-insensitive", item(1, "UniProt"), 1, "uniprot", 1, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ScoreExemplar(tt.item, tt.level, tt.ontology, tt.tolerance), 1e-9)
		})
	}

	undeclared := core.NewMemoryItem("t", "", "c", core.SourceExemplar)
	assert.Zero(t, ScoreExemplar(undeclared, 1, "", 1))

	fromProvenance := core.NewMemoryItem("t", "", "c", core.SourceExemplar)
	fromProvenance.Provenance.ExemplarLevel = core.IntPtr(3)
	lvl, ok := ExemplarLevel(fromProvenance)
	assert.True(t, ok)
	assert.Equal(t, Level(3), lvl)
}

func TestGetExemplarsForLevel(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	addExemplar(t, store, "Lookup A", "What is P12345?", 1, "uniprot")
	addExemplar(t, store, "Lookup B", "What is GO:0008150?", 1, "go")
	addExemplar(t, store, "Cross ref", "Show annotations for P04637", 2, "uniprot")
	r := NewRetriever(store, nil)

	all, err := r.GetExemplarsForLevel(ctx, 1, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := r.GetExemplarsForLevel(ctx, 1, "uniprot", 0)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "Lookup A", scoped[0].Title)

	limited, err := r.GetExemplarsForLevel(ctx, 1, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := r.GetExemplarsForLevel(ctx, 5, "", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAnalyzeCoverage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	addExemplar(t, store, "Lookup A", "What is P12345?", 1, "uniprot")
	addExemplar(t, store, "Lookup B", "What is GO:0008150?", 1, "go")
	addExemplar(t, store, "Cross ref", "Show annotations for P04637", 2, "uniprot")
	_, err := store.AddMemory(ctx, core.NewMemoryItem("organic", "", "not an exemplar", core.SourceHuman))
	require.NoError(t, err)
	r := NewRetriever(store, nil)

	cov, err := r.AnalyzeCoverage(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, cov.Total)
	assert.Equal(t, map[Level]int{1: 2, 2: 1, 3: 0, 4: 0, 5: 0}, cov.ByLevel)
	assert.Equal(t, map[string]int{"uniprot": 2, "go": 1}, cov.ByOntology)
	assert.Equal(t, []Level{3, 4, 5}, cov.Gaps)

	scoped, err := r.AnalyzeCoverage(ctx, "uniprot")
	require.NoError(t, err)
	assert.Equal(t, 2, scoped.Total)
	assert.Equal(t, map[string]int{"uniprot": 2}, scoped.ByOntology)

	empty, err := r.AnalyzeCoverage(ctx, "chebi")
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Equal(t, []Level{1, 2, 3, 4, 5}, empty.Gaps)
}

package curriculum

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/reasoningbank/pkg/core"
)

func exemplarDoc(title, question string, level int) string {
	return fmt.Sprintf(`# Reasoning Chain Exemplar: %s

**Question**: "%s"
**Complexity**: L%d

## Reasoning Chain
1. Identify the protein class.
2. Follow the annotation links.

## Final Query
Run this against the endpoint:
`+"```sparql\nSELECT ?p WHERE { ?p a up:Protein }\n```"+`

## Anti-Patterns Avoided
- Scanning every triple

## Key Learnings
- Start from the most selective pattern
`, title, question, level)
}

func TestParseExemplar(t *testing.T) {
	item, err := ParseExemplar(exemplarDoc("Protein annotations", "Show annotations for P04637", 2), "uniprot", "l2.md")
	require.NoError(t, err)

	assert.Equal(t, "Protein annotations", item.Title)
	assert.Equal(t, "Show annotations for P04637", item.Description)
	assert.Equal(t, "Show annotations for P04637", item.TaskQuery)
	assert.Equal(t, core.SourceExemplar, item.SourceType)
	assert.Equal(t, core.ComputeMemoryID(item.Title, item.Content), item.MemoryID)
	assert.Equal(t, []string{"level-2", "uniprot", "exemplar", "reasoning-chain"}, item.Tags)

	assert.Equal(t, []string{"uniprot"}, item.Scope.Ontology)
	require.NotNil(t, item.Scope.CurriculumLevel)
	assert.Equal(t, 2, *item.Scope.CurriculumLevel)
	require.NotNil(t, item.Scope.Transferable)
	assert.False(t, *item.Scope.Transferable)

	assert.Equal(t, "curriculum", item.Provenance.Source)
	assert.Equal(t, "l2.md", item.Provenance.SourceFile)
	require.NotNil(t, item.Provenance.ExemplarLevel)
	assert.Equal(t, 2, *item.Provenance.ExemplarLevel)

	assert.Contains(t, item.Content, "## Reasoning Chain\n1. Identify the protein class.")
	assert.Contains(t, item.Content, "## Final Query\n```sparql\nSELECT ?p WHERE { ?p a up:Protein }\n```")
	assert.NotContains(t, item.Content, "Run this against the endpoint")
	assert.Contains(t, item.Content, "## Anti-Patterns Avoided\n- Scanning every triple")
	assert.Contains(t, item.Content, "## Key Learnings\n- Start from the most selective pattern")
}

func TestParseExemplar_IsDeterministic(t *testing.T) {
	doc := exemplarDoc("Lookup", "What is P12345?", 1)

	a, err := ParseExemplar(doc, "uniprot", "a.md")
	require.NoError(t, err)
	b, err := ParseExemplar(doc, "uniprot", "b.md")
	require.NoError(t, err)
	assert.Equal(t, a.MemoryID, b.MemoryID)
}

func TestParseExemplar_MissingFields(t *testing.T) {
	valid := exemplarDoc("Lookup", "What is P12345?", 1)

	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{"no title", "**Question**: \"q\"\n**Complexity**: L1\n## Reasoning Chain\nx", "title"},
		{"no question", "# Reasoning Chain Exemplar: t\n**Complexity**: L1\n## Reasoning Chain\nx", "Question"},
		{"unquoted question", "# Reasoning Chain Exemplar: t\n**Question**: q\n**Complexity**: L1\n## Reasoning Chain\nx", "Question"},
		{"no complexity", "# Reasoning Chain Exemplar: t\n**Question**: \"q\"\n## Reasoning Chain\nx", "Complexity"},
		{"complexity out of range", "# Reasoning Chain Exemplar: t\n**Question**: \"q\"\n**Complexity**: L7\n## Reasoning Chain\nx", "Complexity"},
		{"no sections", "# Reasoning Chain Exemplar: t\n**Question**: \"q\"\n**Complexity**: L1\n", SectionReasoningChain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExemplar(tt.doc, "", "bad.md")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedExemplar)

			var exErr *ExemplarError
			require.True(t, errors.As(err, &exErr))
			assert.Equal(t, tt.field, exErr.Field)
			assert.Equal(t, "bad.md", exErr.File)
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	_, err := ParseExemplar(valid, "", "")
	assert.NoError(t, err)
}

func TestParseExemplar_WithoutOntology(t *testing.T) {
	item, err := ParseExemplar(exemplarDoc("Lookup", "What is P12345?", 1), "", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"level-1", "exemplar", "reasoning-chain"}, item.Tags)
	assert.Empty(t, item.Scope.Ontology)
}

func TestLoadExemplarDir(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	dir := t.TempDir()

	for i, q := range []string{"What is P12345?", "Show annotations for P04637", "How many proteins exist?"} {
		path := filepath.Join(dir, fmt.Sprintf("level%d.md", i+1))
		require.NoError(t, os.WriteFile(path, []byte(exemplarDoc(fmt.Sprintf("Exemplar %d", i+1), q, i+1)), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	ids, err := LoadExemplarDir(ctx, store, dir, "", "uniprot", nil)
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	again, err := LoadExemplarDir(ctx, store, dir, "*.md", "uniprot", nil)
	require.NoError(t, err)
	assert.Empty(t, again, "already stored exemplars are skipped")

	items, err := store.ListMemories(ctx, core.MemoryFilter{SourceType: core.SourceExemplar})
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestLoadExemplarDir_NoFiles(t *testing.T) {
	_, err := LoadExemplarDir(context.Background(), newTestStore(t), t.TempDir(), "*.md", "", nil)
	assert.ErrorIs(t, err, ErrNoExemplarFiles)
}

func TestLoadExemplarDir_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.md"), []byte("# Something else"), 0o644))

	_, err := LoadExemplarDir(context.Background(), newTestStore(t), dir, "", "", nil)
	var exErr *ExemplarError
	require.True(t, errors.As(err, &exErr))
	assert.Equal(t, "title", exErr.Field)
	assert.Equal(t, filepath.Join(dir, "broken.md"), exErr.File)
}

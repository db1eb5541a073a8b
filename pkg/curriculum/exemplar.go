package curriculum

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/liliang-cn/reasoningbank/pkg/core"
)

var (
	// ErrMalformedExemplar is wrapped by every *ExemplarError
	ErrMalformedExemplar = errors.New("malformed exemplar")
	// ErrNoExemplarFiles means a directory load matched nothing
	ErrNoExemplarFiles = errors.New("no exemplar files matched")
)

// ExemplarError names the field an exemplar document is missing or got wrong
type ExemplarError struct {
	Field  string
	File   string
	Detail string
}

func (e *ExemplarError) Error() string {
	msg := fmt.Sprintf("exemplar: missing or invalid %s", e.Field)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.File != "" {
		msg = e.File + ": " + msg
	}
	return msg
}

func (e *ExemplarError) Unwrap() error {
	return ErrMalformedExemplar
}

// Section headings recognized in an exemplar document, in output order
const (
	SectionReasoningChain = "Reasoning Chain"
	SectionFinalQuery     = "Final Query"
	SectionAntiPatterns   = "Anti-Patterns Avoided"
	SectionKeyLearnings   = "Key Learnings"
)

var sectionOrder = []string{SectionReasoningChain, SectionFinalQuery, SectionAntiPatterns, SectionKeyLearnings}

var (
	titlePattern      = regexp.MustCompile(`(?m)^#[ \t]+Reasoning Chain Exemplar:[ \t]*(.+?)[ \t]*$`)
	questionPattern   = regexp.MustCompile(`(?m)^\*\*Question:?\*\*:?[ \t]*"(.+)"[ \t]*$`)
	complexityPattern = regexp.MustCompile(`(?m)^\*\*Complexity:?\*\*:?[ \t]*L([0-9]+)\b`)
	headingPattern    = regexp.MustCompile(`(?m)^##[ \t]+(.+?)[ \t]*$`)
	fencePattern      = regexp.MustCompile("(?s)```[^\\n]*\\n.*?```")
)

// ParseExemplar converts one exemplar markdown document into a memory item.
// The title, question and complexity lines are required, as is at least one
// known section. ontology, when set, scopes the item and is added as a tag.
func ParseExemplar(markdown, ontology, sourceFile string) (*core.MemoryItem, error) {
	fail := func(field, detail string) error {
		return &ExemplarError{Field: field, File: sourceFile, Detail: detail}
	}

	m := titlePattern.FindStringSubmatch(markdown)
	if m == nil || m[1] == "" {
		return nil, fail("title", `expected "# Reasoning Chain Exemplar: <title>"`)
	}
	title := m[1]

	m = questionPattern.FindStringSubmatch(markdown)
	if m == nil {
		return nil, fail("Question", `expected **Question**: "<text>"`)
	}
	question := m[1]

	m = complexityPattern.FindStringSubmatch(markdown)
	if m == nil {
		return nil, fail("Complexity", "expected **Complexity**: L<1-5>")
	}
	n, _ := strconv.Atoi(m[1])
	level := Level(n)
	if !level.Valid() {
		return nil, fail("Complexity", fmt.Sprintf("level L%d out of range", n))
	}

	sections := splitSections(markdown)
	if q, ok := sections[SectionFinalQuery]; ok {
		if fence := fencePattern.FindString(q); fence != "" {
			sections[SectionFinalQuery] = fence
		}
	}

	var parts []string
	for _, name := range sectionOrder {
		body, ok := sections[name]
		if !ok || body == "" {
			continue
		}
		parts = append(parts, "## "+name+"\n"+body)
	}
	if len(parts) == 0 {
		return nil, fail(SectionReasoningChain, "no recognized sections")
	}

	item := core.NewMemoryItem(title, question, strings.Join(parts, "\n\n"), core.SourceExemplar)
	item.TaskQuery = question
	item.Tags = []string{fmt.Sprintf("level-%d", level)}
	if ontology != "" {
		item.Tags = append(item.Tags, ontology)
		item.Scope.Ontology = []string{ontology}
	}
	item.Tags = append(item.Tags, "exemplar", "reasoning-chain")
	item.Scope.CurriculumLevel = core.IntPtr(int(level))
	item.Scope.Transferable = core.BoolPtr(false)
	item.Provenance = core.Provenance{
		Source:        "curriculum",
		ExemplarLevel: core.IntPtr(int(level)),
		SourceFile:    sourceFile,
	}
	return item, nil
}

// splitSections maps each "## " heading to its trimmed body
func splitSections(markdown string) map[string]string {
	sections := map[string]string{}
	locs := headingPattern.FindAllStringSubmatchIndex(markdown, -1)
	for i, loc := range locs {
		name := markdown[loc[2]:loc[3]]
		end := len(markdown)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		sections[name] = strings.TrimSpace(markdown[loc[1]:end])
	}
	return sections
}

// LoadExemplarFile reads and parses one exemplar document
func LoadExemplarFile(path, ontology string) (*core.MemoryItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read exemplar: %w", err)
	}
	return ParseExemplar(string(data), ontology, path)
}

// ExemplarStore is the part of core.SQLiteStore the loader writes to
type ExemplarStore interface {
	HasMemory(ctx context.Context, id string) (bool, error)
	AddMemory(ctx context.Context, item *core.MemoryItem) (string, error)
}

// LoadExemplarDir parses every file in dir matching pattern (default "*.md")
// in name order and adds it to store. Exemplars already stored are skipped
// and logged. It returns the IDs that were newly added. A pattern matching
// no file is an error, as is any malformed document.
func LoadExemplarDir(ctx context.Context, store ExemplarStore, dir, pattern, ontology string, logger core.Logger) ([]string, error) {
	if logger == nil {
		logger = core.NopLogger()
	}
	if pattern == "" {
		pattern = "*.md"
	}

	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob exemplars: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoExemplarFiles, filepath.Join(dir, pattern))
	}
	sort.Strings(files)

	added := []string{}
	for _, file := range files {
		item, err := LoadExemplarFile(file, ontology)
		if err != nil {
			return added, err
		}

		exists, err := store.HasMemory(ctx, item.MemoryID)
		if err != nil {
			return added, err
		}
		if exists {
			logger.Info("exemplar already stored, skipping", "file", file, "memory_id", item.MemoryID)
			continue
		}

		id, err := store.AddMemory(ctx, item)
		if err != nil {
			return added, err
		}
		added = append(added, id)
	}

	logger.Info("exemplars loaded", "dir", dir, "files", len(files), "added", len(added))
	return added, nil
}

package pack

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/liliang-cn/reasoningbank/pkg/core"
)

// ValidationResult reports the problems found in a pack
type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Count      int      `json:"count"`
	Errors     []string `json:"errors"`
	Duplicates int      `json:"duplicates"`
}

// Validate checks every line of the pack at path without touching a store.
// It reports invalid JSON, missing title or content, unknown source types,
// IDs that disagree with the content hash and IDs repeated within the pack.
// The returned error is reserved for I/O failures.
func Validate(path string) (ValidationResult, error) {
	res := ValidationResult{Errors: []string{}}
	seen := map[string]int{}

	err := forEachLine(path, func(line int, data []byte) error {
		res.Count++
		fail := func(format string, args ...any) {
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: ", line)+fmt.Sprintf(format, args...))
		}

		var item core.MemoryItem
		if err := json.Unmarshal(data, &item); err != nil {
			fail("invalid JSON: %v", err)
			return nil
		}
		if strings.TrimSpace(item.Title) == "" {
			fail("missing title")
		}
		if strings.TrimSpace(item.Content) == "" {
			fail("missing content")
		}
		if !item.SourceType.Valid() {
			fail("invalid source_type %q", item.SourceType)
		}

		id, err := resolveID(item.MemoryID, item.Title, item.Content)
		if err != nil {
			fail("%v", err)
			id = item.MemoryID
		}
		if first, dup := seen[id]; dup {
			res.Duplicates++
			fail("duplicate memory_id %s (first seen on line %d)", id, first)
		} else {
			seen[id] = line
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("validate pack: %w", err)
	}

	res.Valid = len(res.Errors) == 0
	return res, nil
}

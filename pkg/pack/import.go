package pack

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/liliang-cn/reasoningbank/pkg/core"
)

// ImportOptions controls Import
type ImportOptions struct {
	// SkipDuplicates leaves memories already in the store untouched. When
	// false their descriptive fields are overwritten with ReplaceMemory.
	SkipDuplicates bool
	Logger         core.Logger
}

// DefaultImportOptions skips duplicates
func DefaultImportOptions() ImportOptions {
	return ImportOptions{SkipDuplicates: true}
}

// ImportResult reports what Import did
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
}

// Import adds every memory in the pack at path to store. Lines are committed
// one at a time; the first malformed line aborts with a *LineError and the
// lines before it stay imported. Usage counters in the pack are not restored.
func Import(ctx context.Context, store Store, path string, opts ImportOptions) (ImportResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = core.NopLogger()
	}

	var res ImportResult
	err := forEachLine(path, func(line int, data []byte) error {
		res.Total++

		var item core.MemoryItem
		if err := json.Unmarshal(data, &item); err != nil {
			return &LineError{Path: path, Line: line, Err: fmt.Errorf("invalid JSON: %w", err)}
		}
		if err := item.Validate(); err != nil {
			return &LineError{Path: path, Line: line, Err: err}
		}
		id, err := resolveID(item.MemoryID, item.Title, item.Content)
		if err != nil {
			return &LineError{Path: path, Line: line, Err: err}
		}
		item.MemoryID = id
		item.AccessCount, item.SuccessCount, item.FailureCount = 0, 0, 0
		if item.Tags == nil {
			item.Tags = []string{}
		}

		exists, err := store.HasMemory(ctx, id)
		if err != nil {
			return err
		}
		switch {
		case exists && opts.SkipDuplicates:
			res.Skipped++
			logger.Debug("pack memory already stored", "memory_id", id, "line", line)
		case exists:
			if err := store.ReplaceMemory(ctx, &item); err != nil {
				return err
			}
			res.Imported++
		default:
			if _, err := store.AddMemory(ctx, &item); err != nil {
				return err
			}
			res.Imported++
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("import pack: %w", err)
	}

	logger.Info("pack imported", "path", path, "imported", res.Imported, "skipped", res.Skipped, "total", res.Total)
	return res, nil
}

package pack

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// MergeResult reports what Merge wrote
type MergeResult struct {
	Total             int `json:"total"`
	Unique            int `json:"unique"`
	DuplicatesRemoved int `json:"duplicates_removed"`
}

// packKey is the subset of a line Merge needs to identify it
type packKey struct {
	MemoryID string `json:"memory_id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
}

// Merge streams the packs in paths, in order, into output. With deduplicate
// the first line seen for each memory_id wins and later ones are dropped.
// Lines are copied verbatim, so keys unknown to this version survive.
// Output is written to a temporary file and renamed into place once every
// input has been read, so it may also be one of paths.
func Merge(paths []string, output string, deduplicate bool) (MergeResult, error) {
	var res MergeResult

	dir := filepath.Dir(output)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, fmt.Errorf("create pack dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(output)+".*")
	if err != nil {
		return res, fmt.Errorf("create pack: %w", err)
	}
	tmp := f.Name()
	committed := false
	defer func() {
		if !committed {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()
	w := bufio.NewWriter(f)

	seen := map[string]struct{}{}
	for _, path := range paths {
		err := forEachLine(path, func(line int, data []byte) error {
			res.Total++

			var key packKey
			if err := json.Unmarshal(data, &key); err != nil {
				return &LineError{Path: path, Line: line, Err: fmt.Errorf("invalid JSON: %w", err)}
			}
			id := key.MemoryID
			if id == "" {
				id, _ = resolveID("", key.Title, key.Content)
			}

			if deduplicate {
				if _, dup := seen[id]; dup {
					res.DuplicatesRemoved++
					return nil
				}
				seen[id] = struct{}{}
			}

			if _, err := w.Write(data); err != nil {
				return err
			}
			if err := w.WriteByte('\n'); err != nil {
				return err
			}
			res.Unique++
			return nil
		})
		if err != nil {
			return res, fmt.Errorf("merge packs: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return res, fmt.Errorf("merge packs: %w", err)
	}
	if err := f.Chmod(0o644); err != nil {
		return res, fmt.Errorf("merge packs: %w", err)
	}
	if err := f.Close(); err != nil {
		return res, fmt.Errorf("merge packs: %w", err)
	}
	if err := os.Rename(tmp, output); err != nil {
		return res, fmt.Errorf("merge packs: %w", err)
	}
	committed = true
	return res, nil
}

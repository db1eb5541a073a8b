package pack

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"github.com/liliang-cn/reasoningbank/pkg/core"
)

// Export writes every memory matching filter to path, newest first, and
// returns how many were written. Counters are written as stored.
func Export(ctx context.Context, store Store, path string, filter core.MemoryFilter) (int, error) {
	items, err := store.ListMemories(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("export pack: %w", err)
	}

	f, err := createPackFile(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return 0, fmt.Errorf("export pack: encode %s: %w", item.MemoryID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return 0, fmt.Errorf("export pack: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("export pack: %w", err)
	}
	return len(items), nil
}

// Package pack reads and writes memory packs: JSON-Lines files holding one
// core.MemoryItem per line, portable between stores.
//
// Export writes a store's memories to a pack, Import feeds a pack back
// through AddMemory (so content-address deduplication applies), Validate
// checks a pack without touching any store and Merge concatenates packs with
// first-source-wins deduplication.
package pack

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/liliang-cn/reasoningbank/pkg/core"
)

const maxLineSize = 16 << 20

// ErrIDMismatch means a line's memory_id is not the hash of its title and content
var ErrIDMismatch = errors.New("memory_id does not match title and content")

// LineError locates a failure in a pack file
type LineError struct {
	Path string
	Line int // 1-based
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Store is the part of core.SQLiteStore packs are exchanged with
type Store interface {
	ListMemories(ctx context.Context, filter core.MemoryFilter) ([]*core.MemoryItem, error)
	HasMemory(ctx context.Context, id string) (bool, error)
	AddMemory(ctx context.Context, item *core.MemoryItem) (string, error)
	ReplaceMemory(ctx context.Context, item *core.MemoryItem) error
}

// forEachLine calls fn with every non-blank line of path and its 1-based
// line number. It stops at the first error fn returns.
func forEachLine(path string, fn func(line int, data []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open pack: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		if err := fn(line, data); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return &LineError{Path: path, Line: line + 1, Err: err}
	}
	return nil
}

// createPackFile creates path and its parent directories
func createPackFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create pack dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create pack: %w", err)
	}
	return f, nil
}

// resolveID fills a missing memory_id from the content hash and rejects one
// that disagrees with it
func resolveID(id, title, content string) (string, error) {
	want := core.ComputeMemoryID(title, content)
	if id == "" {
		return want, nil
	}
	if id != want {
		return "", fmt.Errorf("%w: got %s, want %s", ErrIDMismatch, id, want)
	}
	return id, nil
}

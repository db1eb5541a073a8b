package core

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/liliang-cn/reasoningbank/pkg/bm25"
)

// MemoryPath opens a private in-memory database whose data vanishes on Close
const MemoryPath = ":memory:"

// Ranker scores docs against query for the fallback retrieval path.
// The returned slice is parallel to docs; larger is more relevant.
type Ranker interface {
	Rank(query string, docs []string) []float64
}

// Config represents configuration options for the store
type Config struct {
	Path          string `json:"path"`          // Database file path or MemoryPath
	DisableFTS    bool   `json:"disableFts"`    // Skip the FTS5 index and always rank in-process
	DisableRanker bool   `json:"disableRanker"` // No fallback ranking: without FTS5, Retrieve returns nothing
	MaxBulkIDs    int    `json:"maxBulkIds"`    // Cap for GetMemoriesByIDs
	Ranker        Ranker `json:"-"`             // Fallback ranker, BM25 when nil
	Logger        Logger `json:"-"`             // Logger, no-op when nil
}

// DefaultConfig returns a default configuration backed by an in-memory database
func DefaultConfig() Config {
	return Config{
		Path:       MemoryPath,
		MaxBulkIDs: 500,
		Ranker:     bm25.New(),
		Logger:     NopLogger(),
	}
}

// SQLiteStore is the ReasoningBank backend. It owns one SQLite connection from
// Init until Close and is meant to be used from a single goroutine; callers
// needing parallelism open one store per worker.
type SQLiteStore struct {
	db         *sql.DB
	config     Config
	logger     Logger
	ranker     Ranker
	ftsEnabled bool
	closed     bool
}

// New creates a store for the database at path with default settings
func New(path string) (*SQLiteStore, error) {
	config := DefaultConfig()
	config.Path = path
	return NewWithConfig(config)
}

// NewWithConfig creates a store with custom configuration. Call Init before use.
func NewWithConfig(config Config) (*SQLiteStore, error) {
	if config.Path == "" {
		return nil, wrapError("init", fmt.Errorf("%w: database path cannot be empty", ErrInvalidConfig))
	}
	if config.MaxBulkIDs < 0 {
		return nil, wrapError("init", fmt.Errorf("%w: max bulk ids must be non-negative", ErrInvalidConfig))
	}
	if config.MaxBulkIDs == 0 {
		config.MaxBulkIDs = DefaultConfig().MaxBulkIDs
	}
	switch {
	case config.DisableRanker:
		config.Ranker = nil
	case isNilRanker(config.Ranker):
		config.Ranker = bm25.New()
	}
	if config.Logger == nil {
		config.Logger = NopLogger()
	}

	return &SQLiteStore{
		config: config,
		logger: config.Logger,
		ranker: config.Ranker,
	}, nil
}

// isNilRanker also catches a typed nil pointer stored in the interface
func isNilRanker(r Ranker) bool {
	if r == nil {
		return true
	}
	v := reflect.ValueOf(r)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// Open creates and initializes a store in one step
func Open(ctx context.Context, config Config) (*SQLiteStore, error) {
	store, err := NewWithConfig(config)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// Config returns the configuration the store was created with
func (s *SQLiteStore) Config() Config {
	return s.config
}

// GetDB exposes the underlying connection for diagnostics
func (s *SQLiteStore) GetDB() *sql.DB {
	return s.db
}

// checkOpen guards every operation against use before Init or after Close
func (s *SQLiteStore) checkOpen(op string) error {
	if s.closed {
		return wrapError(op, ErrStoreClosed)
	}
	if s.db == nil {
		return wrapError(op, ErrStoreNotInitialized)
	}
	return nil
}

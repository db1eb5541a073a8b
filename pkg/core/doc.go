// Package core provides the storage and retrieval engine for ReasoningBank.
//
// It keeps agent runs, trajectories, judgments and reusable memory items in a
// single SQLite database (modernc.org/sqlite, no CGO), ranks memories against
// free-text tasks and records which memories each trajectory consulted.
//
// # Key Components
//
//   - SQLiteStore: the backend, opened by Init and released by Close.
//   - Schema: five tables, a schema_version row and an optional FTS5 index,
//     created idempotently by EnsureSchema.
//   - Content store: AddRun, AddTrajectory, AddJudgment and the
//     content-addressed AddMemory, where re-adding the same title and content
//     is a no-op.
//   - Retrieval: Retrieve ranks with FTS5 bm25() when the index exists and
//     with an in-process Okapi BM25 ranker otherwise.
//   - Usage ledger: RecordUsage and UpdateMemoryStats.
//
// # Concurrency
//
// A SQLiteStore holds one connection and is not safe for concurrent use.
// Open one store per worker or serialize access externally.
//
// # Observability
//
// Logging goes through the Logger interface; NewZapLogger adapts a zap logger.
package core

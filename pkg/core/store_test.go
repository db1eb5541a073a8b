package core

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// newTestStore opens a file-backed store in a temp dir, closed on cleanup
func newTestStore(t *testing.T, configure ...func(*Config)) *SQLiteStore {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "bank.db")
	for _, fn := range configure {
		fn(&cfg)
	}

	store, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func withoutFTS(cfg *Config) { cfg.DisableFTS = true }

// seedTrajectory inserts a run and one trajectory and returns the trajectory ID
func seedTrajectory(t *testing.T, store *SQLiteStore, trajectoryID string) string {
	t.Helper()
	ctx := context.Background()

	runID, err := store.AddRun(ctx, &Run{Model: "test-model", OntologyName: "uniprot"})
	require.NoError(t, err)

	id, err := store.AddTrajectory(ctx, &Trajectory{
		TrajectoryID: trajectoryID,
		RunID:        runID,
		TaskQuery:    "find proteins",
	})
	require.NoError(t, err)
	return id
}

func TestNewWithConfig_Validation(t *testing.T) {
	_, err := NewWithConfig(Config{})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewWithConfig(Config{Path: "x.db", MaxBulkIDs: -1})
	require.ErrorIs(t, err, ErrInvalidConfig)

	store, err := NewWithConfig(Config{Path: "x.db"})
	require.NoError(t, err)
	assert.Equal(t, 500, store.Config().MaxBulkIDs)
	assert.NotNil(t, store.ranker)
	assert.NotNil(t, store.logger)
}

func TestOperationsBeforeInitAndAfterClose(t *testing.T) {
	ctx := context.Background()

	store, err := New(MemoryPath)
	require.NoError(t, err)

	_, err = store.HasMemory(ctx, "x")
	require.ErrorIs(t, err, ErrStoreNotInitialized)

	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "second close is a no-op")

	_, err = store.HasMemory(ctx, "x")
	require.ErrorIs(t, err, ErrStoreClosed)
	require.ErrorIs(t, store.Init(ctx), ErrStoreClosed)
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx))

	version, err := store.GetSchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)

	var rows int
	require.NoError(t, store.GetDB().QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_version`).Scan(&rows))
	assert.Equal(t, 1, rows)

	for _, table := range []string{"runs", "trajectories", "judgments", "memory_items", "memory_usage", "memory_fts"} {
		var name string
		err := store.GetDB().QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE name = ?`, table).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}
	assert.True(t, store.HasFTSSupport())
}

func TestEnsureSchema_DisabledFTSLogsWarning(t *testing.T) {
	obs, logs := observer.New(zapcore.WarnLevel)
	store := newTestStore(t, withoutFTS, func(cfg *Config) {
		cfg.Logger = NewZapLogger(zap.New(obs))
	})

	assert.False(t, store.HasFTSSupport())
	warnings := logs.FilterMessageSnippet("full-text index disabled").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, zapcore.WarnLevel, warnings[0].Level)
}

func TestEnsureSchema_BackfillsSearchIndex(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bank.db")

	cfg := DefaultConfig()
	cfg.Path = path
	cfg.DisableFTS = true
	store, err := Open(ctx, cfg)
	require.NoError(t, err)

	_, err = store.AddMemory(ctx, NewMemoryItem("Entity search", "find entities by label", "use the label index", SourceSuccess))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	cfg.DisableFTS = false
	store, err = Open(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.True(t, store.HasFTSSupport())
	results, err := store.Retrieve(ctx, "entity label", RetrieveOptions{K: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Entity search", results[0].Title)
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, DefaultConfig())
	require.NoError(t, err)

	id, err := store.AddMemory(ctx, NewMemoryItem("t", "d", "c", SourceManual))
	require.NoError(t, err)

	ok, err := store.HasMemory(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok, "single connection keeps the in-memory database alive")

	require.NoError(t, store.Close())
}

func TestRunsTrajectoriesJudgments(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	created := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	runID, err := store.AddRun(ctx, &Run{RunID: "run-1", CreatedAt: created, Model: "m", Notes: "n"})
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)

	run, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, created.Equal(run.CreatedAt))
	assert.Equal(t, "n", run.Notes)

	artifact := []byte{0x00, 0xff, 'p', 'k', 'l'}
	trajID, err := store.AddTrajectory(ctx, &Trajectory{
		TrajectoryID:   "traj-1",
		RunID:          runID,
		TaskQuery:      "what is P12345?",
		FinalAnswer:    "a kinase",
		IterationCount: 4,
		Converged:      true,
		Artifact:       artifact,
		RLMLogPath:     "/tmp/log.jsonl",
	})
	require.NoError(t, err)

	traj, err := store.GetTrajectory(ctx, trajID)
	require.NoError(t, err)
	assert.Equal(t, artifact, traj.Artifact)
	assert.True(t, traj.Converged)
	assert.Equal(t, 4, traj.IterationCount)
	assert.Equal(t, "/tmp/log.jsonl", traj.RLMLogPath)

	_, err = store.GetTrajectory(ctx, "missing")
	assert.True(t, IsNotFound(err))

	_, err = store.GetJudgment(ctx, trajID)
	assert.True(t, IsNotFound(err))

	_, err = store.AddJudgment(ctx, &Judgment{
		TrajectoryID: trajID,
		IsSuccess:    true,
		Reason:       "answer matches",
		Confidence:   ConfidenceHigh,
		Missing:      []string{"evidence"},
	})
	require.NoError(t, err)

	j, err := store.GetJudgment(ctx, trajID)
	require.NoError(t, err)
	assert.True(t, j.IsSuccess)
	assert.Equal(t, ConfidenceHigh, j.Confidence)
	assert.Equal(t, []string{"evidence"}, j.Missing)

	_, err = store.AddJudgment(ctx, &Judgment{TrajectoryID: trajID, Confidence: ConfidenceLow})
	assert.Error(t, err, "at most one judgment per trajectory")

	_, err = store.AddJudgment(ctx, &Judgment{TrajectoryID: trajID, Confidence: "certain"})
	assert.Error(t, err)
}

func TestAddRun_GeneratesID(t *testing.T) {
	store := newTestStore(t)

	id, err := store.AddRun(context.Background(), &Run{})
	require.NoError(t, err)
	assert.Len(t, id, 36)
}

func TestAddTrajectory_RequiresRun(t *testing.T) {
	store := newTestStore(t)

	_, err := store.AddTrajectory(context.Background(), &Trajectory{RunID: "nope", TaskQuery: "q"})
	assert.Error(t, err, "foreign key violation propagates")
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	trajID := seedTrajectory(t, store, "traj-stats")
	_, err := store.AddJudgment(ctx, &Judgment{TrajectoryID: trajID, IsSuccess: true, Confidence: ConfidenceMedium})
	require.NoError(t, err)

	id, err := store.AddMemory(ctx, NewMemoryItem("a", "", "b", SourceSuccess))
	require.NoError(t, err)
	_, err = store.AddMemory(ctx, NewMemoryItem("c", "", "d", SourceFailure))
	require.NoError(t, err)
	require.NoError(t, store.RecordUsage(ctx, trajID, id, 1, nil))

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Runs)
	assert.Equal(t, 1, stats.Trajectories)
	assert.Equal(t, 1, stats.Judgments)
	assert.Equal(t, 1, stats.SuccessfulJudgments)
	assert.Equal(t, 2, stats.Memories)
	assert.Equal(t, map[string]int{"success": 1, "failure": 1}, stats.MemoriesBySource)
	assert.Equal(t, 1, stats.UsageRecords)
	assert.Equal(t, SchemaVersion, stats.SchemaVersion)
	assert.True(t, stats.FTSEnabled)
}

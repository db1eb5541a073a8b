package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/reasoningbank/pkg/core"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func TestUsageRecordAfterRunAndTrajectory(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "bank.db")

	require.NoError(t, execute(t, "-d", db, "init"))

	store, err := core.Open(ctx, core.Config{Path: db})
	require.NoError(t, err)
	memoryID, err := store.AddMemory(ctx, core.NewMemoryItem("Entity search", "find entities", "use the label index", core.SourceSuccess))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	require.Error(t, execute(t, "-d", db, "usage", "record", "traj-1", memoryID),
		"usage needs an existing trajectory")

	require.NoError(t, execute(t, "-d", db, "run", "add", "--id", "run-1", "--model", "test-model", "--ontology", "uniprot"))
	require.NoError(t, execute(t, "-d", db, "trajectory", "add", "run-1",
		"--id", "traj-1", "--task", "find the entity", "--iterations", "3", "--converged"))
	require.NoError(t, execute(t, "-d", db, "trajectory", "judge", "traj-1",
		"--success", "--reason", "answer matched", "--confidence", "high"))
	require.NoError(t, execute(t, "-d", db, "usage", "record", "traj-1", memoryID, "--rank", "2"))

	store, err = core.Open(ctx, core.Config{Path: db})
	require.NoError(t, err)
	defer store.Close()

	traj, err := store.GetTrajectory(ctx, "traj-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", traj.RunID)
	assert.Equal(t, 3, traj.IterationCount)
	assert.True(t, traj.Converged)

	judgment, err := store.GetJudgment(ctx, "traj-1")
	require.NoError(t, err)
	assert.True(t, judgment.IsSuccess)
	assert.Equal(t, core.ConfidenceHigh, judgment.Confidence)

	records, err := store.GetUsageForTrajectory(ctx, "traj-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, memoryID, records[0].MemoryID)
	assert.Equal(t, 2, records[0].Rank)
}

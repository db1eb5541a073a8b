package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/reasoningbank/pkg/core"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /var/lib/bank.db
  max_bulk_ids: 50
retrieval:
  k: 8
  ontology: uniprot
logging:
  level: debug
  format: json
`), 0o600))

	t.Setenv("REASONINGBANK_DATABASE_DISABLE_FTS", "true")
	t.Setenv("REASONINGBANK_RETRIEVAL_K", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/bank.db", cfg.Database.Path)
	assert.Equal(t, 50, cfg.Database.MaxBulkIDs)
	assert.True(t, cfg.Database.DisableFTS)
	assert.Equal(t, 3, cfg.Retrieval.K, "environment overrides file")
	assert.Equal(t, "uniprot", cfg.Retrieval.Ontology)
	assert.Equal(t, 3, cfg.Retrieval.Oversample, "default applied")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  format: xml\n  level: loud\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.format")
	assert.Contains(t, err.Error(), "logging.level")
}

func TestStoreConfig(t *testing.T) {
	cfg := Default()
	cfg.Database.Path = "x.db"
	cfg.Database.DisableFTS = true

	sc := cfg.StoreConfig(nil)
	assert.Equal(t, "x.db", sc.Path)
	assert.True(t, sc.DisableFTS)
	assert.Equal(t, 500, sc.MaxBulkIDs)
	assert.NotNil(t, sc.Ranker)
	assert.Equal(t, core.NopLogger(), sc.Logger)
}

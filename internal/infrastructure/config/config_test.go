package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/matcher"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
matching:
  auto_threshold: 0.85
  workers: 4
storage:
  database_path: books.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.85, cfg.Matching.AutoThreshold)
	assert.Equal(t, 4, cfg.Matching.Workers)
	assert.Equal(t, 0.6, cfg.Matching.SuggestedThreshold, "untouched keys keep defaults")
	assert.Equal(t, 30, cfg.Matching.MaxPaymentWindowDays)
	assert.Equal(t, "books.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
}

func TestLoad_RejectsInvalidMatching(t *testing.T) {
	path := writeConfig(t, `
matching:
  auto_threshold: 0.5
  suggested_threshold: 0.7
`)

	cfg, err := Load(path)

	assert.Nil(t, cfg)
	assert.ErrorIs(t, err, matcher.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "suggested_threshold")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RECONCILER_DB_PATH", "test.db")
	t.Setenv("RECONCILER_AUTO_THRESHOLD", "0.9")
	t.Setenv("RECONCILER_WORKERS", "2")
	t.Setenv("LOG_FORMAT", "json")

	cfg := LoadFromEnv()

	assert.Equal(t, "test.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 0.9, cfg.Matching.AutoThreshold)
	assert.Equal(t, 2, cfg.Matching.Workers)
	assert.Equal(t, "json", cfg.Observability.Logging.Format)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("RECONCILER_DB_PATH", "")
	t.Setenv("RECONCILER_AUTO_THRESHOLD", "not-a-number")

	cfg := LoadFromEnv()

	assert.Equal(t, "reconciler.db", cfg.Storage.DatabasePath)
	assert.Equal(t, matcher.DefaultConfig(), cfg.Matching)
}

func TestLoadOrEnv_FallbackToEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RECONCILER_DB_PATH", "fallback.db")

	cfg, err := LoadOrEnv("")

	require.NoError(t, err)
	assert.Equal(t, "fallback.db", cfg.Storage.DatabasePath)
}

func TestLoadOrEnv_FindsDefaultFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("storage:\n  database_path: found.db\n"), 0644))
	t.Chdir(dir)

	cfg, err := LoadOrEnv("")

	require.NoError(t, err)
	assert.Equal(t, "found.db", cfg.Storage.DatabasePath)
}

func TestLoadOrEnv_InvalidFileFails(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad thresholds", "matching:\n  auto_threshold: 0.5\n  suggested_threshold: 0.7\n"},
		{"bad yaml", "matching: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RECONCILER_DB_PATH", "fallback.db")

			cfg, err := LoadOrEnv(writeConfig(t, tt.content))

			assert.Nil(t, cfg, "an invalid file never falls back to the environment")
			assert.Error(t, err)
		})
	}
}

func TestLoadOrEnv_DiscoveredInvalidFileFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("matching:\n  auto_threshold: 3\n"), 0644))
	t.Chdir(dir)

	_, err := LoadOrEnv("")

	assert.ErrorIs(t, err, matcher.ErrInvalidConfig)
}

func TestLoadOrEnv_MissingNamedFileFails(t *testing.T) {
	_, err := LoadOrEnv(filepath.Join(t.TempDir(), "nope.yaml"))

	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEnvVarExpansion(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "${TEST_DB_PATH}"
observability:
  logging:
    level: "${TEST_LOG_LEVEL}"
`)
	t.Setenv("TEST_DB_PATH", "expanded.db")
	t.Setenv("TEST_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "expanded.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "debug", cfg.Observability.Logging.Level)
}

func TestLoadDotEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("RECONCILER_TEST_FROM_DOTENV=hello\nRECONCILER_TEST_PRESET=from-file\n"), 0644))
	t.Setenv("RECONCILER_TEST_PRESET", "from-env")
	t.Cleanup(func() { os.Unsetenv("RECONCILER_TEST_FROM_DOTENV") })

	require.NoError(t, LoadDotEnv(envFile))

	assert.Equal(t, "hello", os.Getenv("RECONCILER_TEST_FROM_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("RECONCILER_TEST_PRESET"), "existing variables win")
}

func TestLoadDotEnv_MissingFileIsFine(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}

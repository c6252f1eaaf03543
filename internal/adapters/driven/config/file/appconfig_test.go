package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for name := range envKeys {
		t.Setenv(EnvPrefix+name, "")
	}
	t.Setenv("OPENAI_API_KEY", "")
}

func TestLoadAppConfig_Defaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	cfg, err := LoadAppConfig(store, "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "data"), cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "documents"), cfg.DocumentsDir)
	assert.Equal(t, 500*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 5*time.Second, cfg.PoolCooldown)
	assert.Equal(t, 2, cfg.Batch.Workers)
	assert.Equal(t, 16, cfg.Batch.EmbedBatchSize)
	assert.Equal(t, domain.AIProviderNone, cfg.Embedding.Provider)
	assert.Empty(t, cfg.Embedding.Model)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, time.Hour, cfg.Scheduler.GetTaskConfig(domain.TaskIDPeriodicDiscovery).Interval)
}

func TestLoadAppConfig_FromFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	content := `
data_dir = "/srv/redleaf/data"

[coordinator]
tick_interval = "250ms"
pool_cooldown = 10

[embedding]
provider = "ollama"
requests_per_second = 2.5

[batch]
workers = 6

[scheduler]
discovery_interval = "0s"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	cfg, err := LoadAppConfig(store, "")
	require.NoError(t, err)

	assert.Equal(t, "/srv/redleaf/data", cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "documents"), cfg.DocumentsDir)
	assert.Equal(t, 250*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 10*time.Second, cfg.PoolCooldown)
	assert.Equal(t, domain.AIProviderOllama, cfg.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.InDelta(t, 2.5, cfg.Embedding.RequestsPerSecond, 0.001)
	assert.Equal(t, 6, cfg.Batch.Workers)
	assert.False(t, cfg.Scheduler.GetTaskConfig(domain.TaskIDPeriodicDiscovery).Enabled)
}

func TestLoadAppConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set(KeyBatchWorkers, 3))
	require.NoError(t, store.Set(KeyEmbeddingProvider, "ollama"))

	t.Setenv("REDLEAF_BATCH_WORKERS", "8")
	t.Setenv("REDLEAF_EMBEDDING_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := LoadAppConfig(store, "")
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Batch.Workers)
	assert.Equal(t, domain.AIProviderOpenAI, cfg.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, "sk-env", cfg.Embedding.APIKey)
	assert.True(t, cfg.Embedding.IsConfigured())
}

func TestLoadAppConfig_EnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("REDLEAF_DOCUMENTS_DIR=/mnt/docs\n"), 0600))

	// Unset so godotenv may set it; t.Setenv above restores the original.
	require.NoError(t, os.Unsetenv("REDLEAF_DOCUMENTS_DIR"))

	cfg, err := LoadAppConfig(store, envFile)
	require.NoError(t, err)
	assert.Equal(t, "/mnt/docs", cfg.DocumentsDir)

	_, err = LoadAppConfig(store, filepath.Join(dir, "missing.env"))
	assert.NoError(t, err)
}

func TestLoadAppConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"zero workers", KeyBatchWorkers, 0},
		{"workers not a number", KeyBatchWorkers, "lots"},
		{"bad duration", KeyTickInterval, "soon"},
		{"negative cooldown", KeyPoolCooldown, -1},
		{"unknown provider", KeyEmbeddingProvider, "cohere"},
		{"dir not a string", KeyDataDir, 7},
		{"bad rate", KeyEmbeddingRate, "fast"},
		{"bad bool", KeySchedulerEnabled, "sometimes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			store, err := NewConfigStore(t.TempDir())
			require.NoError(t, err)
			require.NoError(t, store.Set(tt.key, tt.val))

			_, err = LoadAppConfig(store, "")
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot determine home directory")
	}

	assert.Equal(t, filepath.Join(home, ".redleaf"), expandHome("~/.redleaf"))
	assert.Equal(t, "/abs/path", expandHome("/abs/path"))
	assert.Equal(t, "relative", expandHome("relative"))
}

func TestKnownKeys(t *testing.T) {
	keys := KnownKeys()
	assert.Len(t, keys, len(envKeys))
	assert.IsNonDecreasing(t, keys)
	assert.Contains(t, keys, KeyEmbeddingAPIKey)
	assert.Contains(t, keys, KeyDiscoveryInterval)
}

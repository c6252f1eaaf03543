package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "redleaf-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

// registerTestDocument registers a file and returns its id.
func registerTestDocument(t *testing.T, store *Store, path string, fileType domain.FileType) int64 {
	t.Helper()

	id, err := store.DocumentStore().UpsertDocument(context.Background(), domain.DocumentFile{
		RelativePath: path,
		FileHash:     "hash-" + path,
		FileType:     fileType,
		SizeBytes:    128,
		ModifiedAt:   time.Now().Add(-time.Hour),
	}, "Ready for processing")
	require.NoError(t, err)
	return id
}

// ==================== Store Creation Tests ====================

func TestNewStore_CreatesDatabase(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	assert.Equal(t, DatabaseFile, filepath.Base(store.Path()))
	_, err := os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestNewStore_MigrationsAreIdempotent(t *testing.T) {
	tempDir := t.TempDir()

	first, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewStore(tempDir)
	require.NoError(t, err)
	defer second.Close()

	var version int
	require.NoError(t, second.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)
}

func TestNewStore_ForeignKeysEnabled(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.db.Exec(
		"INSERT INTO entity_appearances (doc_id, entity_id, page_number) VALUES (999, 999, 1)")
	assert.Error(t, err)
}

// ==================== Settings Store Tests ====================

func TestSettingsStore_SeededDefaults(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	settings, err := store.SettingsStore().ProcessingSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultProcessingSettings(), settings)
}

func TestSettingsStore_SetAndRead(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	ss := store.SettingsStore()

	require.NoError(t, ss.SetSetting(ctx, domain.SettingMaxWorkers, "6"))
	require.NoError(t, ss.SetSetting(ctx, domain.SettingUseGPU, "true"))
	require.NoError(t, ss.SetSetting(ctx, domain.SettingHTMLParsingMode, "pipermail"))

	settings, err := ss.ProcessingSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, settings.MaxWorkers)
	assert.True(t, settings.UseGPU)
	assert.Equal(t, domain.HTMLModePipermail, settings.HTMLParsingMode)

	all, err := ss.AllSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "6", all[domain.SettingMaxWorkers])
}

func TestSettingsStore_MalformedValuesFallBack(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	ss := store.SettingsStore()

	require.NoError(t, ss.SetSetting(ctx, domain.SettingMaxWorkers, "zero"))
	require.NoError(t, ss.SetSetting(ctx, domain.SettingHTMLParsingMode, "lxml"))

	settings, err := ss.ProcessingSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, settings.MaxWorkers)
	assert.Equal(t, domain.HTMLModeGeneric, settings.HTMLParsingMode)
}

// ==================== Helper Tests ====================

func TestFloat32Roundtrip(t *testing.T) {
	in := []float32{0.5, -1.25, 3}
	assert.Equal(t, in, bytesToFloat32Slice(float32SliceToBytes(in)))
	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

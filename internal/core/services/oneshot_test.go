package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

func TestOneShotProcessor_ProcessDocument(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	id := env.addDoc(t, "a.txt", "Alice met Bob in Paris.")
	loader := &fakeLoader{}

	o := NewOneShotProcessor(env.processor(nil), loader, env.store.SettingsStore(), "")
	result, err := o.ProcessDocument(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, id, result.DocID)
	assert.Equal(t, 3, result.Entities)
	assert.Equal(t, 1, loader.loadCount())
	require.Len(t, loader.loaded, 1)
	assert.True(t, loader.loaded[0].closed.Load())

	status, _ := env.status(t, id)
	assert.Equal(t, domain.StatusIndexed, status)
}

func TestOneShotProcessor_GPUFallback(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	id := env.addDoc(t, "a.txt", "Alice met Bob.")
	require.NoError(t, env.store.SettingsStore().SetSetting(ctx, domain.SettingUseGPU, "true"))

	o := NewOneShotProcessor(env.processor(nil), &fakeLoader{}, env.store.SettingsStore(), "")
	_, err := o.ProcessDocument(ctx, id)
	require.NoError(t, err)
}

func TestOneShotProcessor_LoaderFailure(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	id := env.addDoc(t, "a.txt", "Alice met Bob.")

	o := NewOneShotProcessor(env.processor(nil), &fakeLoader{err: errors.New("no model")}, env.store.SettingsStore(), "")
	_, err := o.ProcessDocument(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNLPUnavailable)

	status, _ := env.status(t, id)
	assert.Equal(t, domain.StatusNew, status)

	_, err = NewOneShotProcessor(env.processor(nil), nil, env.store.SettingsStore(), "").ProcessDocument(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNLPUnavailable)
}

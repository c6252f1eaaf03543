package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

func TestRecordRun(t *testing.T) {
	store := newMockSchedulerStore()
	started := time.Now().Add(-time.Second)

	recordRun(context.Background(), store, domain.TaskIDDiscover, started, 3, nil)
	recordRun(context.Background(), store, domain.TaskIDDiscover, started, 0, errors.New("walk failed"))

	runs := store.results[domain.TaskIDDiscover]
	require.Len(t, runs, 2)
	assert.True(t, runs[0].Success)
	assert.Equal(t, 3, runs[0].ItemsProcessed)
	assert.Equal(t, started, runs[0].StartedAt)
	assert.False(t, runs[0].EndedAt.Before(started))
	assert.False(t, runs[1].Success)
	assert.Equal(t, "walk failed", runs[1].Error)
}

func TestRecordRun_NilStore(t *testing.T) {
	assert.NotPanics(t, func() {
		recordRun(context.Background(), nil, domain.TaskIDCache, time.Now(), 0, nil)
	})
}

func TestRecordRun_CancelledContext(t *testing.T) {
	store := newMockSchedulerStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	recordRun(ctx, store, domain.TaskIDCache, time.Now(), 1, nil)

	assert.Len(t, store.results[domain.TaskIDCache], 1)
}

func TestHistoryService(t *testing.T) {
	store := newMockSchedulerStore()
	ctx := context.Background()
	svc := NewHistoryService(store)

	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{ID: domain.TaskIDPeriodicDiscovery, Interval: time.Hour}))
	for i := range 15 {
		recordRun(ctx, store, domain.TaskIDCache, time.Now(), i, nil)
	}

	triggers, err := svc.Triggers(ctx)
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.Equal(t, domain.TaskIDPeriodicDiscovery, triggers[0].ID)

	runs, err := svc.Runs(ctx, domain.TaskIDCache, 0)
	require.NoError(t, err)
	assert.Len(t, runs, DefaultHistoryLimit)

	runs, err = svc.Runs(ctx, domain.TaskIDCache, 3)
	require.NoError(t, err)
	assert.Len(t, runs, 3)

	runs, err = svc.Runs(ctx, domain.TaskIDPipeline, 5)
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, err = svc.Runs(ctx, "", 5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

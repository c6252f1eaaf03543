package sqlite

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

func TestSchedulerStore_SaveAndGetTask(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	ss := store.SchedulerStore()

	now := time.Now().UTC().Truncate(time.Second)
	task := &domain.ScheduledTask{
		ID:          domain.TaskIDPeriodicDiscovery,
		Name:        "Periodic Discovery",
		Interval:    time.Hour,
		LastRun:     now.Add(-30 * time.Minute),
		NextRun:     now.Add(30 * time.Minute),
		LastSuccess: now.Add(-30 * time.Minute),
		Enabled:     true,
	}
	require.NoError(t, ss.SaveTask(ctx, task))

	got, err := ss.GetTask(ctx, domain.TaskIDPeriodicDiscovery)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.Name, got.Name)
	assert.Equal(t, time.Hour, got.Interval)
	assert.True(t, got.Enabled)
	assert.WithinDuration(t, task.NextRun, got.NextRun, time.Second)

	task.LastError = "scan failed"
	task.Enabled = false
	require.NoError(t, ss.SaveTask(ctx, task))

	tasks, err := ss.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "scan failed", tasks[0].LastError)
	assert.False(t, tasks[0].Enabled)

	require.NoError(t, ss.DeleteTask(ctx, task.ID))
	got, err = ss.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSchedulerStore_NilInput(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ss := store.SchedulerStore()
	assert.ErrorIs(t, ss.SaveTask(context.Background(), nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, ss.RecordResult(context.Background(), nil), domain.ErrInvalidInput)
}

func TestSchedulerStore_HistoryAndPrune(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	ss := store.SchedulerStore()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		result := &domain.TaskResult{
			TaskID:         domain.TaskIDDiscover,
			StartedAt:      base.Add(time.Duration(i) * time.Minute),
			EndedAt:        base.Add(time.Duration(i)*time.Minute + time.Second),
			Success:        true,
			ItemsProcessed: i,
		}
		if i == 2 {
			result.Success = false
			result.Error = "boom"
		}
		require.NoError(t, ss.RecordResult(ctx, result))
	}
	require.NoError(t, ss.RecordResult(ctx, &domain.TaskResult{
		TaskID: domain.TaskIDCache, StartedAt: base, EndedAt: base, Success: true,
	}))

	history, err := ss.GetTaskHistory(ctx, domain.TaskIDDiscover, 10)
	require.NoError(t, err)
	require.Len(t, history, 5)
	assert.Equal(t, 4, history[0].ItemsProcessed, "most recent first")
	assert.Equal(t, "boom", history[2].Error)
	assert.False(t, history[2].Success)

	require.NoError(t, ss.PruneHistory(ctx, 2))

	history, err = ss.GetTaskHistory(ctx, domain.TaskIDDiscover, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	cache, err := ss.GetTaskHistory(ctx, domain.TaskIDCache, 10)
	require.NoError(t, err)
	assert.Len(t, cache, 1)
}

func TestSchedulerStore_TruncatesLongErrors(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	ss := store.SchedulerStore()
	now := time.Now()

	require.NoError(t, ss.RecordResult(ctx, &domain.TaskResult{
		TaskID: domain.TaskIDPipeline, StartedAt: now, EndedAt: now,
		Error: strings.Repeat("x", domain.MaxStatusMessageLength+500),
	}))

	history, err := ss.GetTaskHistory(ctx, domain.TaskIDPipeline, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Len(t, []rune(history[0].Error), domain.MaxStatusMessageLength)
}

func TestSchedulerStore_DeleteTask(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	ss := store.SchedulerStore()

	require.NoError(t, ss.SaveTask(ctx, &domain.ScheduledTask{
		ID: domain.TaskIDPeriodicDiscovery, Name: "Periodic Discovery", Interval: time.Hour, Enabled: true,
	}))
	require.NoError(t, ss.DeleteTask(ctx, domain.TaskIDPeriodicDiscovery))
	require.NoError(t, ss.DeleteTask(ctx, "missing"))

	task, err := ss.GetTask(ctx, domain.TaskIDPeriodicDiscovery)
	require.NoError(t, err)
	assert.Nil(t, task)
}

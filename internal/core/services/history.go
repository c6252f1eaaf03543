package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
	"github.com/custodia-labs/redleaf/internal/core/ports/driving"
	"github.com/custodia-labs/redleaf/internal/logger"
)

// recordRun stores the outcome of a maintenance run and prunes old history.
// A nil store is a no-op.
func recordRun(ctx context.Context, store driven.SchedulerStore, taskID string, started time.Time, items int, err error) {
	if store == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	result := &domain.TaskResult{
		TaskID:         taskID,
		StartedAt:      started,
		EndedAt:        time.Now(),
		Success:        err == nil,
		ItemsProcessed: items,
	}
	if err != nil {
		result.Error = err.Error()
	}

	if recordErr := store.RecordResult(ctx, result); recordErr != nil {
		logger.Warn("history: failed to record result for %s: %v", taskID, recordErr)
	}
	if pruneErr := store.PruneHistory(ctx, domain.TaskHistoryLimit); pruneErr != nil {
		logger.Warn("history: failed to prune history: %v", pruneErr)
	}
}

// HistoryService reads trigger state and maintenance history.
type HistoryService struct {
	store driven.SchedulerStore
}

var _ driving.TaskHistory = (*HistoryService)(nil)

// DefaultHistoryLimit is the number of runs returned when no limit is given.
const DefaultHistoryLimit = 10

// NewHistoryService creates a history service over store.
func NewHistoryService(store driven.SchedulerStore) *HistoryService {
	return &HistoryService{store: store}
}

// Triggers returns the stored periodic triggers.
func (s *HistoryService) Triggers(ctx context.Context) ([]domain.ScheduledTask, error) {
	return s.store.ListTasks(ctx)
}

// Runs returns recent runs of taskID, newest first.
func (s *HistoryService) Runs(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	if taskID == "" {
		return nil, fmt.Errorf("task id required: %w", domain.ErrInvalidInput)
	}
	if limit < 1 {
		limit = DefaultHistoryLimit
	}
	return s.store.GetTaskHistory(ctx, taskID, min(limit, domain.TaskHistoryLimit))
}

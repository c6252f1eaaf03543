package driving

import (
	"context"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

// Scheduler fires periodic triggers, such as the discovery scan, into the
// coordinator queue.
type Scheduler interface {
	// Start runs the trigger loop. It blocks until ctx is cancelled or Stop
	// is called, and returns at once when scheduling is disabled.
	Start(ctx context.Context) error

	// Stop ends the loop and waits for triggers that are firing.
	Stop() error
}

// TaskHistory reports scheduled triggers and past maintenance runs.
type TaskHistory interface {
	// Triggers returns the stored periodic triggers.
	Triggers(ctx context.Context) ([]domain.ScheduledTask, error)

	// Runs returns the most recent runs of taskID, newest first.
	Runs(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)
}

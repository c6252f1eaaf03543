package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
	"github.com/custodia-labs/redleaf/internal/core/ports/driving"
	"github.com/custodia-labs/redleaf/internal/logger"
)

// DefaultCheckInterval is how often the scheduler looks for due triggers.
const DefaultCheckInterval = time.Minute

// Enqueuer accepts coordinator tasks.
type Enqueuer interface {
	Enqueue(ctx context.Context, task domain.Task) error
}

// Scheduler fires periodic triggers. A trigger only enqueues coordinator
// work; the coordinator runs it and records its own history.
type Scheduler struct {
	config        domain.SchedulerConfig
	store         driven.SchedulerStore
	queue         Enqueuer
	checkInterval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

var _ driving.Scheduler = (*Scheduler)(nil)

// NewScheduler creates a scheduler with configuration.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	queue Enqueuer,
) *Scheduler {
	return &Scheduler{
		config:        config,
		store:         store,
		queue:         queue,
		checkInterval: DefaultCheckInterval,
	}
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		logger.Debug("scheduler: disabled")
		return nil
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if err := s.initialiseTasks(ctx); err != nil {
		logger.Warn("scheduler: failed to initialise tasks: %v", err)
	}

	return s.run(ctx)
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// initialiseTasks ensures all configured triggers exist in the store. A
// trigger without an interval is removed so a stale NextRun cannot fire it.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	taskCfg := s.config.GetTaskConfig(domain.TaskIDPeriodicDiscovery)
	if taskCfg.Interval <= 0 {
		return s.store.DeleteTask(ctx, domain.TaskIDPeriodicDiscovery)
	}
	return s.ensureTask(ctx, domain.TaskIDPeriodicDiscovery, "Periodic Discovery", taskCfg)
}

// ensureTask creates or updates a task in the store.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: cfg.Interval,
			Enabled:  cfg.Enabled,
			NextRun:  time.Now().Add(cfg.Interval),
		}
	} else {
		if task.Interval != cfg.Interval {
			task.Interval = cfg.Interval
			task.NextRun = time.Now().Add(cfg.Interval)
		}
		task.Enabled = cfg.Enabled
	}

	return s.store.SaveTask(ctx, task)
}

func (s *Scheduler) run(ctx context.Context) error {
	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// checkAndRunDueTasks fires every enabled trigger whose NextRun has passed.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: failed to list tasks: %v", err)
		return
	}

	now := time.Now()
	for i := range tasks {
		task := &tasks[i]
		if !task.Enabled {
			continue
		}
		if task.NextRun.IsZero() || !task.NextRun.After(now) {
			s.runTask(ctx, task)
		}
	}
}

// runTask fires a single trigger.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		started := time.Now()
		var (
			items int
			err   error
		)
		switch task.ID {
		case domain.TaskIDPeriodicDiscovery:
			items, err = s.triggerDiscovery(ctx)
		default:
			logger.Warn("scheduler: unknown task ID: %s", task.ID)
			return
		}

		ended := time.Now()
		if err != nil {
			task.LastError = err.Error()
			logger.Warn("scheduler: %s failed: %v", task.ID, err)
		} else {
			task.LastError = ""
			task.LastSuccess = ended
		}
		task.LastRun = started
		task.NextRun = ended.Add(task.Interval)

		if saveErr := s.store.SaveTask(context.WithoutCancel(ctx), task); saveErr != nil {
			logger.Warn("scheduler: failed to save task %s: %v", task.ID, saveErr)
		}
		recordRun(ctx, s.store, task.ID, started, items, err)
	}()
}

// triggerDiscovery enqueues a discovery scan.
func (s *Scheduler) triggerDiscovery(ctx context.Context) (int, error) {
	if s.queue == nil {
		return 0, nil
	}
	if err := s.queue.Enqueue(ctx, domain.DiscoverTask{}); err != nil {
		return 0, err
	}
	return 1, nil
}

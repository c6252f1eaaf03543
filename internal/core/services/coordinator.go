package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
	"github.com/custodia-labs/redleaf/internal/core/ports/driving"
	"github.com/custodia-labs/redleaf/internal/logger"
)

// CoordinatorConfig tunes the coordinator loop.
type CoordinatorConfig struct {
	// TickInterval is the loop period.
	TickInterval time.Duration

	// PoolCooldown is the wait before recreating a pool that failed.
	PoolCooldown time.Duration

	// ReleaseTimeout bounds how long pool teardown waits for running tasks.
	ReleaseTimeout time.Duration

	// ModelDir is passed to NLP loading.
	ModelDir string

	// AutoProcess enqueues a process task for every document a discover
	// task registers or finds modified.
	AutoProcess bool
}

// DefaultCoordinatorConfig returns the loop defaults.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		TickInterval:   500 * time.Millisecond,
		PoolCooldown:   5 * time.Second,
		ReleaseTimeout: DefaultReleaseTimeout,
		AutoProcess:    true,
	}
}

// DocumentProcessor runs the single-document path on a pool worker.
type DocumentProcessor interface {
	Process(ctx context.Context, state *WorkerState, docID int64) (*domain.ProcessResult, error)
}

// CoordinatorDeps are the collaborators of a Coordinator. Discoverer, Cache
// and History are optional.
type CoordinatorDeps struct {
	Documents  driven.DocumentStore
	Settings   driven.SettingsStore
	Loader     driven.NLPLoader
	Processor  DocumentProcessor
	Discoverer driving.Discoverer
	Cache      driving.CacheBuilder
	History    driven.SchedulerStore
}

// taskHandle tracks one in-flight task.
type taskHandle struct {
	task   domain.Task
	future *Future
	seq    uint64

	// rerun is set when the task was enqueued again while running. The
	// task is queued once more after this attempt finishes.
	rerun bool
}

// Coordinator owns the task queue and the worker pool, and drives each
// document from New to Indexed.
//
// The queue and the in-flight map each have their own mutex. The pool
// handle is only touched by the loop goroutine.
type Coordinator struct {
	cfg  CoordinatorConfig
	deps CoordinatorDeps

	queueMu sync.Mutex
	queue   []domain.Task

	flightMu sync.Mutex
	inFlight map[string]*taskHandle
	seq      uint64

	// loop-owned
	pool    *WorkerPool
	retryAt time.Time

	stateMu        sync.Mutex
	running        bool
	closed         bool
	stopCh         chan struct{}
	doneCh         chan struct{}
	poolState      domain.PoolState
	maxWorkers     int
	restartPending bool
	restarts       int
	completed      int
	failed         int
	lastErr        string
	lastErrAt      time.Time

	wg sync.WaitGroup
}

var _ driving.Coordinator = (*Coordinator)(nil)

// NewCoordinator creates a coordinator. Tasks may be enqueued before Start.
func NewCoordinator(cfg CoordinatorConfig, deps CoordinatorDeps) *Coordinator {
	defaults := DefaultCoordinatorConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaults.TickInterval
	}
	if cfg.PoolCooldown < 0 {
		cfg.PoolCooldown = defaults.PoolCooldown
	}
	if cfg.ReleaseTimeout <= 0 {
		cfg.ReleaseTimeout = defaults.ReleaseTimeout
	}

	return &Coordinator{
		cfg:       cfg,
		deps:      deps,
		inFlight:  make(map[string]*taskHandle),
		poolState: domain.PoolStateNone,
	}
}

// Start resets documents left Queued or Indexing by an earlier run,
// re-enqueues them and runs the loop. It blocks until ctx is done or Stop
// is called. Documents enqueued before Start are reset too and end up
// Queued again without a duplicate task.
func (c *Coordinator) Start(ctx context.Context) error {
	c.stateMu.Lock()
	if c.running {
		c.stateMu.Unlock()
		return nil
	}
	c.running = true
	c.closed = false
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.stateMu.Unlock()

	ids, err := c.deps.Documents.ResetInterrupted(ctx, domain.MsgInterrupted)
	if err != nil {
		logger.Warn("coordinator: failed to reset interrupted documents: %v", err)
	}
	if len(ids) > 0 {
		logger.Info("coordinator: re-queueing %d interrupted documents", len(ids))
	}
	for _, id := range ids {
		if err := c.Enqueue(ctx, domain.ProcessTask{DocID: id}); err != nil {
			logger.Warn("coordinator: failed to re-queue document %d: %v", id, err)
		}
	}

	return c.run(ctx)
}

// Stop ends the loop, releases the pool and waits for maintenance tasks.
func (c *Coordinator) Stop() error {
	c.stateMu.Lock()
	if !c.running {
		c.stateMu.Unlock()
		return nil
	}
	c.running = false
	close(c.stopCh)
	done := c.doneCh
	c.stateMu.Unlock()

	<-done
	return nil
}

// run is the main loop.
func (c *Coordinator) run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer c.shutdown(cancel)

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	c.tick(runCtx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return nil
		case <-ticker.C:
			c.tick(runCtx)
		}
	}
}

func (c *Coordinator) shutdown(cancel context.CancelFunc) {
	c.stateMu.Lock()
	c.closed = true
	c.running = false
	done := c.doneCh
	c.stateMu.Unlock()

	if c.pool != nil {
		if err := c.pool.Release(c.cfg.ReleaseTimeout); err != nil {
			logger.Warn("coordinator: %v", err)
		}
		c.pool = nil
	}
	cancel()
	c.wg.Wait()

	c.stateMu.Lock()
	c.poolState = domain.PoolStateNone
	c.stateMu.Unlock()

	close(done)
	logger.Debug("coordinator: stopped")
}

// tick runs one iteration of the loop.
func (c *Coordinator) tick(ctx context.Context) {
	// 1. Apply a deferred restart once no process task is in flight
	c.applyRestart()

	// 2. Create the pool if missing and the cooldown has passed
	c.ensurePool(ctx)

	// 3. Dispatch at most one task
	c.dispatch(ctx)

	// 4. Reap finished tasks
	finished := c.reap(ctx)

	// 5. Refresh the browse cache after processing
	if finished > 0 && c.deps.Cache != nil && !c.tracked(domain.CacheTask{}.Key()) {
		c.pushBack(domain.CacheTask{})
	}
}

func (c *Coordinator) applyRestart() {
	c.stateMu.Lock()
	pending := c.restartPending
	c.stateMu.Unlock()

	if !pending || c.countInFlight(domain.TaskKindProcess) > 0 {
		return
	}

	c.stateMu.Lock()
	c.restartPending = false
	if c.pool != nil {
		c.restarts++
	}
	c.poolState = domain.PoolStateRestarting
	c.stateMu.Unlock()

	if c.pool != nil {
		logger.Info("coordinator: restarting worker pool")
		if err := c.pool.Release(c.cfg.ReleaseTimeout); err != nil {
			logger.Warn("coordinator: %v", err)
		}
		c.pool = nil
	}
	c.retryAt = time.Time{}
}

func (c *Coordinator) ensurePool(ctx context.Context) {
	if c.pool != nil || time.Now().Before(c.retryAt) {
		return
	}

	settings := domain.DefaultProcessingSettings()
	if c.deps.Settings != nil {
		s, err := c.deps.Settings.ProcessingSettings(ctx)
		if err != nil {
			logger.Warn("coordinator: reading settings, using defaults: %v", err)
		} else {
			settings = s
		}
	}

	pool, err := NewWorkerPool(ctx, c.deps.Loader, settings, c.cfg.ModelDir)
	if err != nil {
		logger.Error("coordinator: worker pool creation failed, retrying in %s: %v", c.cfg.PoolCooldown, err)
		c.retryAt = time.Now().Add(c.cfg.PoolCooldown)
		c.stateMu.Lock()
		c.poolState = domain.PoolStateBroken
		c.stateMu.Unlock()
		c.setLastError(err)
		return
	}

	c.pool = pool
	c.stateMu.Lock()
	c.poolState = domain.PoolStateReady
	c.maxWorkers = pool.Size()
	c.stateMu.Unlock()
	logger.Info("coordinator: worker pool ready with %d workers", pool.Size())
}

// discardPool tears down a broken pool. Tasks it had not started complete
// as cancelled and are requeued when reaped.
func (c *Coordinator) discardPool(cause error) {
	if c.pool == nil {
		return
	}
	logger.Error("coordinator: worker pool failed, recreating in %s: %v", c.cfg.PoolCooldown, cause)

	if err := c.pool.Release(c.cfg.ReleaseTimeout); err != nil {
		logger.Warn("coordinator: %v", err)
	}
	c.pool = nil
	c.retryAt = time.Now().Add(c.cfg.PoolCooldown)

	c.stateMu.Lock()
	c.poolState = domain.PoolStateBroken
	c.restarts++
	c.stateMu.Unlock()
	c.setLastError(cause)
}

// dispatch takes the next task off the queue. Without a pool, process
// tasks stay queued and maintenance tasks behind them still run.
func (c *Coordinator) dispatch(ctx context.Context) {
	task, ok := c.popNext(c.pool != nil)
	if !ok {
		return
	}

	if t, ok := task.(domain.ProcessTask); ok {
		c.dispatchProcess(ctx, t)
		return
	}
	c.dispatchMaintenance(ctx, task)
}

func (c *Coordinator) dispatchProcess(ctx context.Context, t domain.ProcessTask) {
	if c.markRerun(t.Key()) {
		logger.Debug("coordinator: document %d already in flight, will rerun", t.DocID)
		return
	}
	if c.countInFlight(domain.TaskKindProcess) >= c.pool.Size() {
		c.pushBack(t)
		return
	}

	f, err := c.pool.Submit(ctx, func(ctx context.Context, state *WorkerState) error {
		_, err := c.deps.Processor.Process(ctx, state, t.DocID)
		return err
	})
	switch {
	case err == nil:
		c.addInFlight(t, f)
	case errors.Is(err, domain.ErrPoolBusy):
		c.pushFront(t)
	case errors.Is(err, domain.ErrPoolBroken):
		c.pushFront(t)
		c.discardPool(c.pool.BrokenErr())
	default:
		c.pushFront(t)
		c.setLastError(err)
		logger.Warn("coordinator: submitting document %d: %v", t.DocID, err)
	}
}

// dispatchMaintenance runs discover and cache tasks on their own goroutine,
// at most one of each kind at a time.
func (c *Coordinator) dispatchMaintenance(ctx context.Context, task domain.Task) {
	if c.isInFlight(task.Key()) {
		logger.Debug("coordinator: %s already running, dropping", task.Kind())
		return
	}

	f := newFuture()
	f.started.Store(true)
	c.addInFlight(task, f)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		f.complete(c.runMaintenance(ctx, task))
	}()
}

func (c *Coordinator) runMaintenance(ctx context.Context, task domain.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s task panic: %v", task.Kind(), r)
		}
	}()

	started := time.Now()
	switch task.Kind() {
	case domain.TaskKindDiscover:
		if c.deps.Discoverer == nil {
			return nil
		}
		report, err := c.deps.Discoverer.Discover(ctx)
		items := 0
		if report != nil {
			items = report.Registered + report.Modified
		}
		recordRun(ctx, c.deps.History, domain.TaskIDDiscover, started, items, err)
		if err != nil || report == nil {
			return err
		}
		logger.Info("coordinator: discovery found %d new and %d modified files", report.Registered, report.Modified)

		if c.cfg.AutoProcess {
			for _, id := range report.DocIDs {
				if err := c.Enqueue(ctx, domain.ProcessTask{DocID: id}); err != nil {
					logger.Warn("coordinator: failed to queue document %d: %v", id, err)
				}
			}
		}
		return nil

	case domain.TaskKindCache:
		if c.deps.Cache == nil {
			return nil
		}
		n, err := c.deps.Cache.Rebuild(ctx)
		recordRun(ctx, c.deps.History, domain.TaskIDCache, started, n, err)
		if err == nil {
			logger.Debug("coordinator: browse cache rebuilt with %d rows", n)
		}
		return err

	default:
		return fmt.Errorf("unexpected task kind %q: %w", task.Kind(), domain.ErrInvalidInput)
	}
}

// reap collects finished tasks and returns how many process tasks ran to
// completion, successfully or not.
func (c *Coordinator) reap(ctx context.Context) int {
	finished := 0
	var cancelled, reruns []*taskHandle

	for _, h := range c.takeFinished() {
		err := h.future.Err()
		isProcess := h.task.Kind() == domain.TaskKindProcess
		if h.rerun && !errors.Is(err, domain.ErrTaskCancelled) {
			reruns = append(reruns, h)
		}

		switch {
		case errors.Is(err, domain.ErrTaskCancelled):
			cancelled = append(cancelled, h)
			continue
		case err == nil:
			if isProcess {
				c.count(&c.completed)
			}
		case errors.Is(err, domain.ErrPoolBroken) && isProcess:
			docID := h.task.(domain.ProcessTask).DocID
			if serr := c.deps.Documents.SetStatus(context.WithoutCancel(ctx), docID,
				domain.StatusError, domain.MsgWorkerCrashed); serr != nil {
				logger.Error("coordinator: recording crash on document %d: %v", docID, serr)
			}
			c.count(&c.failed)
		default:
			logger.Warn("coordinator: %s failed: %v", h.task.Key(), err)
			c.setLastError(err)
			if isProcess {
				c.count(&c.failed)
			}
		}
		if isProcess {
			finished++
		}
	}

	// Requeue cancelled tasks at the front, keeping their submission order.
	sort.Slice(cancelled, func(i, j int) bool { return cancelled[i].seq > cancelled[j].seq })
	for _, h := range cancelled {
		c.pushFront(h.task)
	}

	for _, h := range reruns {
		logger.Debug("coordinator: %s changed while running, queueing again", h.task.Key())
		if err := c.Enqueue(context.WithoutCancel(ctx), h.task); err != nil {
			logger.Warn("coordinator: re-queueing %s: %v", h.task.Key(), err)
		}
	}

	if c.pool != nil && c.pool.Broken() {
		c.discardPool(c.pool.BrokenErr())
	}

	return finished
}

// Enqueue adds a task to the back of the queue. Tasks already queued are
// dropped, as are discover and cache tasks already running. A process task
// marks its document Queued; one whose document is being processed right
// now runs again once the current attempt finishes.
func (c *Coordinator) Enqueue(ctx context.Context, task domain.Task) error {
	if task == nil || !task.Kind().IsValid() {
		return fmt.Errorf("enqueue: %w", domain.ErrInvalidInput)
	}

	c.stateMu.Lock()
	closed := c.closed
	c.stateMu.Unlock()
	if closed {
		return domain.ErrQueueClosed
	}

	if t, ok := task.(domain.ProcessTask); ok {
		if c.markRerun(t.Key()) {
			return nil
		}
		if err := c.deps.Documents.SetStatus(ctx, t.DocID, domain.StatusQueued, domain.MsgQueued); err != nil {
			return fmt.Errorf("queueing document %d: %w", t.DocID, err)
		}
	} else if c.tracked(task.Key()) {
		return nil
	}

	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if slices.ContainsFunc(c.queue, func(q domain.Task) bool { return q.Key() == task.Key() }) {
		return nil
	}
	c.queue = append(c.queue, task)
	return nil
}

// QueueDepth returns the number of tasks waiting.
func (c *Coordinator) QueueDepth() int {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	return len(c.queue)
}

// RequestRestart recreates the pool from current settings once no process
// task is in flight.
func (c *Coordinator) RequestRestart() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.restartPending = true
}

// Status returns a snapshot of the coordinator.
func (c *Coordinator) Status() domain.CoordinatorStatus {
	st := domain.CoordinatorStatus{QueueDepth: c.QueueDepth()}

	c.flightMu.Lock()
	for _, h := range c.inFlight {
		if h.task.Kind() == domain.TaskKindProcess {
			st.InFlightProcess++
		} else {
			st.InFlightOther++
		}
	}
	c.flightMu.Unlock()

	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	st.Running = c.running
	st.MaxWorkers = c.maxWorkers
	st.Pool = c.poolState
	st.RestartPending = c.restartPending
	st.PoolRestarts = c.restarts
	st.ProcessCompleted = c.completed
	st.ProcessFailed = c.failed
	st.LastError = c.lastErr
	st.LastErrorAt = c.lastErrAt
	return st
}

// ==================== Queue ====================

// popNext removes the first task, or the first non-process task when
// withProcess is false.
func (c *Coordinator) popNext(withProcess bool) (domain.Task, bool) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()

	i := 0
	if !withProcess {
		i = slices.IndexFunc(c.queue, func(q domain.Task) bool { return q.Kind() != domain.TaskKindProcess })
	}
	if i < 0 || i >= len(c.queue) {
		return nil, false
	}
	task := c.queue[i]
	c.queue = slices.Delete(c.queue, i, i+1)
	return task, true
}

func (c *Coordinator) pushFront(task domain.Task) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	c.queue = slices.Insert(c.queue, 0, task)
}

func (c *Coordinator) pushBack(task domain.Task) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	c.queue = append(c.queue, task)
}

func (c *Coordinator) isQueued(key string) bool {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	return slices.ContainsFunc(c.queue, func(q domain.Task) bool { return q.Key() == key })
}

// tracked reports whether a task is queued or in flight.
func (c *Coordinator) tracked(key string) bool {
	return c.isInFlight(key) || c.isQueued(key)
}

// ==================== In-flight ====================

func (c *Coordinator) addInFlight(task domain.Task, f *Future) {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	c.seq++
	c.inFlight[task.Key()] = &taskHandle{task: task, future: f, seq: c.seq}
}

func (c *Coordinator) isInFlight(key string) bool {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	_, ok := c.inFlight[key]
	return ok
}

// markRerun flags an in-flight task to run again and reports whether it
// was in flight.
func (c *Coordinator) markRerun(key string) bool {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	h, ok := c.inFlight[key]
	if ok {
		h.rerun = true
	}
	return ok
}

func (c *Coordinator) countInFlight(kind domain.TaskKind) int {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	n := 0
	for _, h := range c.inFlight {
		if h.task.Kind() == kind {
			n++
		}
	}
	return n
}

func (c *Coordinator) takeFinished() []*taskHandle {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()

	var done []*taskHandle
	for key, h := range c.inFlight {
		select {
		case <-h.future.Done():
			done = append(done, h)
			delete(c.inFlight, key)
		default:
		}
	}
	return done
}

// ==================== Status ====================

func (c *Coordinator) count(n *int) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	*n++
}

func (c *Coordinator) setLastError(err error) {
	if err == nil {
		return
	}
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.lastErr = err.Error()
	c.lastErrAt = time.Now()
}

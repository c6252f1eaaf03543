package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
	"github.com/custodia-labs/redleaf/internal/logger"
)

// DefaultReleaseTimeout bounds how long Release waits for running tasks.
const DefaultReleaseTimeout = 10 * time.Second

// TaskFunc is work run on a pool worker with that worker's state.
type TaskFunc func(ctx context.Context, state *WorkerState) error

// Future is the pending result of a submitted task.
type Future struct {
	done    chan struct{}
	once    sync.Once
	err     error
	started atomic.Bool
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Done is closed when the task has finished or was cancelled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the task error. Only valid after Done is closed.
func (f *Future) Err() error {
	return f.err
}

// Started reports whether the task began running on a worker.
func (f *Future) Started() bool {
	return f.started.Load()
}

func (f *Future) complete(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// WorkerPool is a fixed set of worker slots on an ants pool. Each slot holds
// an NLP capability loaded once when the pool is created.
//
// A panic in a task marks the pool broken. A broken pool accepts no more
// work and must be released and recreated.
type WorkerPool struct {
	pool     *ants.Pool
	slots    chan *WorkerState
	states   []*WorkerState
	settings domain.ProcessingSettings
	quit     chan struct{}

	mu       sync.Mutex
	pending  map[*Future]struct{}
	closed   bool
	broken   bool
	brokeErr error
}

// NewWorkerPool loads one NLP capability per slot and starts the pool.
// GPU unavailability falls back to CPU with a warning; any other load
// failure releases what was loaded and returns an error wrapping
// domain.ErrNLPUnavailable.
func NewWorkerPool(
	ctx context.Context,
	loader driven.NLPLoader,
	settings domain.ProcessingSettings,
	modelDir string,
) (*WorkerPool, error) {
	if loader == nil {
		return nil, fmt.Errorf("no NLP loader: %w", domain.ErrNLPUnavailable)
	}
	size := max(settings.MaxWorkers, 1)

	p := &WorkerPool{
		slots:    make(chan *WorkerState, size),
		settings: settings,
		quit:     make(chan struct{}),
		pending:  make(map[*Future]struct{}),
	}

	opts := driven.NLPLoadOptions{UseGPU: settings.UseGPU, ModelDir: modelDir}
	for slot := 0; slot < size; slot++ {
		nlp, err := loadCapability(ctx, loader, opts)
		if errors.Is(err, domain.ErrGPUUnavailable) && nlp != nil {
			logger.Warn("workerpool: slot %d: %v, using CPU", slot, err)
			err = nil
		}
		if err != nil {
			p.closeStates()
			if !errors.Is(err, domain.ErrNLPUnavailable) {
				err = fmt.Errorf("%w: %w", domain.ErrNLPUnavailable, err)
			}
			return nil, fmt.Errorf("initialising worker slot %d: %w", slot, err)
		}

		state := &WorkerState{Slot: slot, NLP: nlp, Settings: settings}
		p.states = append(p.states, state)
		p.slots <- state
	}

	pool, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(p.handlePanic),
	)
	if err != nil {
		p.closeStates()
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	p.pool = pool

	logger.Debug("workerpool: started %d workers (gpu=%t)", size, settings.UseGPU)
	return p, nil
}

// loadCapability calls the loader, turning a panic into an error.
func loadCapability(ctx context.Context, loader driven.NLPLoader, opts driven.NLPLoadOptions) (nlp driven.NLPCapability, err error) {
	defer func() {
		if r := recover(); r != nil {
			nlp, err = nil, fmt.Errorf("%w: loader panic: %v", domain.ErrNLPUnavailable, r)
		}
	}()
	return loader.Load(ctx, opts)
}

// Size returns the number of worker slots.
func (p *WorkerPool) Size() int {
	return len(p.states)
}

// Settings returns the settings snapshot the pool was built from.
func (p *WorkerPool) Settings() domain.ProcessingSettings {
	return p.settings
}

// Broken reports whether a task panicked on this pool.
func (p *WorkerPool) Broken() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.broken
}

// BrokenErr returns the failure that broke the pool, if any.
func (p *WorkerPool) BrokenErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.brokeErr
}

// Submit hands fn to a free worker without blocking.
//
// Returns domain.ErrPoolBusy when every worker is taken, domain.ErrPoolBroken
// once a task has panicked and domain.ErrQueueClosed after Release.
func (p *WorkerPool) Submit(ctx context.Context, fn TaskFunc) (*Future, error) {
	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return nil, domain.ErrQueueClosed
	case p.broken:
		p.mu.Unlock()
		return nil, domain.ErrPoolBroken
	}
	f := newFuture()
	p.pending[f] = struct{}{}
	p.mu.Unlock()

	err := p.pool.Submit(func() { p.run(ctx, f, fn) })
	if err == nil {
		return f, nil
	}

	p.mu.Lock()
	delete(p.pending, f)
	p.mu.Unlock()

	switch {
	case errors.Is(err, ants.ErrPoolOverload):
		return nil, domain.ErrPoolBusy
	case errors.Is(err, ants.ErrPoolClosed):
		return nil, domain.ErrQueueClosed
	default:
		return nil, fmt.Errorf("submitting task: %w", err)
	}
}

// run executes one task on a worker. A panic escaping fn completes the
// future with domain.ErrPoolBroken and is re-raised to the ants panic
// handler.
func (p *WorkerPool) run(ctx context.Context, f *Future, fn TaskFunc) {
	p.mu.Lock()
	delete(p.pending, f)
	if p.closed || p.broken {
		p.mu.Unlock()
		f.complete(domain.ErrTaskCancelled)
		return
	}
	f.started.Store(true)
	p.mu.Unlock()

	var state *WorkerState
	select {
	case state = <-p.slots:
	case <-p.quit:
		f.complete(domain.ErrTaskCancelled)
		return
	case <-ctx.Done():
		f.complete(ctx.Err())
		return
	}
	defer func() { p.slots <- state }()

	finished := false
	defer func() {
		if !finished {
			p.markBroken(fmt.Errorf("task panicked on slot %d", state.Slot))
			f.complete(domain.ErrPoolBroken)
		}
	}()

	err := fn(ctx, state)
	finished = true
	f.complete(err)
}

func (p *WorkerPool) handlePanic(r any) {
	logger.Error("workerpool: task panic: %v", r)
	p.markBroken(fmt.Errorf("task panic: %v", r))
}

func (p *WorkerPool) markBroken(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.broken {
		p.broken = true
		p.brokeErr = fmt.Errorf("%w: %w", domain.ErrPoolBroken, err)
	}
}

// Release stops the pool. Tasks not yet started complete with
// domain.ErrTaskCancelled; running tasks get up to timeout to finish.
// Slot capabilities are closed only when every worker has exited, since a
// task still running owns its slot.
func (p *WorkerPool) Release(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	pending := p.pending
	p.pending = nil
	close(p.quit)
	p.mu.Unlock()

	for f := range pending {
		f.complete(domain.ErrTaskCancelled)
	}

	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		logger.Warn("workerpool: abandoning running tasks: %v", err)
		return fmt.Errorf("releasing worker pool: %w", err)
	}

	p.closeStates()
	return nil
}

func (p *WorkerPool) closeStates() {
	for _, s := range p.states {
		if s.NLP == nil {
			continue
		}
		if err := s.NLP.Close(); err != nil {
			logger.Warn("workerpool: closing slot %d: %v", s.Slot, err)
		}
	}
}

package domain

import (
	"fmt"
	"time"
)

// TaskKind identifies the class of a coordinator task.
type TaskKind string

// Task kinds.
const (
	TaskKindProcess  TaskKind = "process"
	TaskKindDiscover TaskKind = "discover"
	TaskKindCache    TaskKind = "cache"
)

// IsValid returns true if the kind is recognised.
func (k TaskKind) IsValid() bool {
	switch k {
	case TaskKindProcess, TaskKindDiscover, TaskKindCache:
		return true
	default:
		return false
	}
}

// Task is a unit of coordinator work. The set of implementations is closed:
// ProcessTask, DiscoverTask and CacheTask.
type Task interface {
	// Kind returns the task class.
	Kind() TaskKind

	// Key identifies the task for in-flight deduplication.
	Key() string

	isTask()
}

// ProcessTask runs the single-document path for one document.
type ProcessTask struct {
	DocID int64
}

// Kind returns TaskKindProcess.
func (ProcessTask) Kind() TaskKind { return TaskKindProcess }

// Key returns "process:<id>".
func (t ProcessTask) Key() string { return fmt.Sprintf("process:%d", t.DocID) }

func (ProcessTask) isTask() {}

// DiscoverTask scans the documents directory and registers new or changed files.
type DiscoverTask struct{}

// Kind returns TaskKindDiscover.
func (DiscoverTask) Kind() TaskKind { return TaskKindDiscover }

// Key returns "discover".
func (DiscoverTask) Key() string { return string(TaskKindDiscover) }

func (DiscoverTask) isTask() {}

// CacheTask rebuilds the aggregated browse cache.
type CacheTask struct{}

// Kind returns TaskKindCache.
func (CacheTask) Kind() TaskKind { return TaskKindCache }

// Key returns "cache".
func (CacheTask) Key() string { return string(TaskKindCache) }

func (CacheTask) isTask() {}

// ParseTask builds a task from its kind and an optional document id.
func ParseTask(kind TaskKind, docID int64) (Task, error) {
	switch kind {
	case TaskKindProcess:
		if docID <= 0 {
			return nil, fmt.Errorf("process task requires a document id: %w", ErrInvalidInput)
		}
		return ProcessTask{DocID: docID}, nil
	case TaskKindDiscover:
		return DiscoverTask{}, nil
	case TaskKindCache:
		return CacheTask{}, nil
	default:
		return nil, fmt.Errorf("unknown task kind %q: %w", kind, ErrInvalidInput)
	}
}

// PoolState describes the worker pool from the coordinator's point of view.
type PoolState string

// Pool states.
const (
	PoolStateNone       PoolState = "none"
	PoolStateReady      PoolState = "ready"
	PoolStateRestarting PoolState = "restarting"
	PoolStateBroken     PoolState = "broken"
)

// CoordinatorStatus is a point-in-time snapshot of the coordinator.
type CoordinatorStatus struct {
	Running          bool
	QueueDepth       int
	InFlightProcess  int
	InFlightOther    int
	MaxWorkers       int
	Pool             PoolState
	RestartPending   bool
	PoolRestarts     int
	ProcessCompleted int
	ProcessFailed    int
	LastError        string
	LastErrorAt      time.Time
}

// ProcessResult summarises one run of the single-document path.
type ProcessResult struct {
	DocID         int64
	Pages         int
	Entities      int
	Appearances   int
	Relationships int
	Cues          int
	Chunks        int
	Duration      time.Duration
}

// Package workflow is a small durable-execution runtime for per-instance
// state machines. Decision logic stays pure and replayable; every effect
// runs inside a named step whose result is checkpointed keyed by
// (instance, step). Resuming an instance replays its steps against the
// checkpoint store, so confirmed effects are observed rather than re-invoked.
package workflow

import (
	"context"
	"time"
)

// CheckpointStore persists step results. A missing checkpoint is nil, nil;
// a completed step with no payload is an empty, non-nil slice.
type CheckpointStore interface {
	GetCheckpoint(ctx context.Context, instanceID, step string) ([]byte, error)
	SaveCheckpoint(ctx context.Context, instanceID, step string, data []byte) error
}

// SignalReader reads the durable extend-signal record for an instance.
// It returns the instant the first signal was observed, or nil when no
// signal has been recorded.
type SignalReader interface {
	Signaled(ctx context.Context, instanceID string) (*time.Time, error)
}

// Watcher hands out wake channels for an instance's signal. Wakeups are
// advisory; the SignalReader record is authoritative.
type Watcher interface {
	Watch(ctx context.Context, instanceID string) (<-chan struct{}, func(), error)
}

// Run is the execution context of one workflow instance. A Run is used by
// exactly one goroutine; concurrency exists across instances, never within
// one instance's decision logic.
type Run struct {
	ctx         context.Context
	instanceID  string
	checkpoints CheckpointStore
	signals     SignalReader
	watcher     Watcher
}

func NewRun(ctx context.Context, instanceID string, checkpoints CheckpointStore, signals SignalReader, watcher Watcher) *Run {
	return &Run{
		ctx:         ctx,
		instanceID:  instanceID,
		checkpoints: checkpoints,
		signals:     signals,
		watcher:     watcher,
	}
}

func (r *Run) Context() context.Context {
	return r.ctx
}

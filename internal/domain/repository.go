package domain

import (
	"context"
	"time"
)

type InstanceRepository interface {
	CreateInstance(ctx context.Context, instance *Instance) error
	// GetInstance returns nil, nil when no instance exists for id.
	GetInstance(ctx context.Context, id string) (*Instance, error)
	// ArmDeadline records the response deadline and moves the instance to
	// awaiting_response. A deadline already on record is preserved, so a
	// replayed transition cannot move the race.
	ArmDeadline(ctx context.Context, id string, deadline time.Time) error
	// RecordSignal durably notes the first extend signal for a non-terminal
	// instance. It reports whether this call was the one that recorded it;
	// duplicates and signals against terminal instances report false.
	RecordSignal(ctx context.Context, id string, at time.Time) (bool, error)
	MarkPhase(ctx context.Context, id string, phase Phase) error
	// RecordFailure surfaces an exhausted workflow run for operators without
	// transitioning the instance to a terminal phase.
	RecordFailure(ctx context.Context, id string, message string) error
	// HasActiveInstance reports whether a non-terminal instance exists for
	// the resource group.
	HasActiveInstance(ctx context.Context, resourceGroup string) (bool, error)
	ListActiveInstances(ctx context.Context) ([]*Instance, error)
}

// CheckpointRepository stores step results keyed by (instance, step). A
// missing checkpoint is nil, nil; a recorded step with no payload is an
// empty, non-nil slice. First write wins: a checkpoint is never replaced.
type CheckpointRepository interface {
	GetCheckpoint(ctx context.Context, instanceID, step string) ([]byte, error)
	SaveCheckpoint(ctx context.Context, instanceID, step string, data []byte) error
}

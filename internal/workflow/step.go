package workflow

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
)

// Step executes a named effect at most once per instance. If a checkpoint
// exists for name the effect already ran to completion and the step returns
// immediately. On failure no checkpoint is written, so a retried run
// re-executes the effect.
func (r *Run) Step(name string, fn func(ctx context.Context) error) error {
	data, err := r.checkpoints.GetCheckpoint(r.ctx, r.instanceID, name)
	if err != nil {
		return fmt.Errorf("step %q: load checkpoint: %w", name, err)
	}
	if data != nil {
		return nil
	}

	if err := fn(r.ctx); err != nil {
		return fmt.Errorf("step %q: %w", name, err)
	}

	if err := r.checkpoints.SaveCheckpoint(r.ctx, r.instanceID, name, []byte{}); err != nil {
		return fmt.Errorf("step %q: save checkpoint: %w", name, err)
	}
	return nil
}

// StepWithResult executes a named effect that produces a value. The value is
// gob-encoded into the checkpoint; replay decodes and returns it without
// re-invoking the effect. It is a package-level function because Go does not
// allow generic methods.
func StepWithResult[T any](r *Run, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	data, err := r.checkpoints.GetCheckpoint(r.ctx, r.instanceID, name)
	if err != nil {
		return zero, fmt.Errorf("step %q: load checkpoint: %w", name, err)
	}
	if data != nil {
		var cached T
		if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&cached); err != nil {
			return zero, fmt.Errorf("step %q: decode checkpoint: %w", name, err)
		}
		return cached, nil
	}

	result, err := fn(r.ctx)
	if err != nil {
		return zero, fmt.Errorf("step %q: %w", name, err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(result); err != nil {
		return zero, fmt.Errorf("step %q: encode checkpoint: %w", name, err)
	}
	if err := r.checkpoints.SaveCheckpoint(r.ctx, r.instanceID, name, buf.Bytes()); err != nil {
		return zero, fmt.Errorf("step %q: save checkpoint: %w", name, err)
	}
	return result, nil
}

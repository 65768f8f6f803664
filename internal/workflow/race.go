package workflow

import (
	"encoding/json"
	"fmt"
	"time"
)

type Outcome string

const (
	// OutcomeExtend means the extend signal was observed strictly before
	// the deadline.
	OutcomeExtend Outcome = "extend"
	// OutcomeExpire means the deadline was reached with no timely signal.
	// A signal observed at or after the deadline still expires: extension
	// requires a timely, observed response.
	OutcomeExpire Outcome = "expire"
)

const raceStep = "race:extend"

type raceResult struct {
	Outcome    Outcome   `json:"outcome"`
	ObservedAt time.Time `json:"observed_at"`
}

// AwaitSignal races the fixed deadline against the arrival of the extend
// signal and resolves to exactly one Outcome. The resolution is checkpointed,
// so a resumed instance returns the recorded outcome instead of racing again.
//
// The durable SignaledAt record decides the race; the timer and the watch
// channel only say when to look. That makes the resolution independent of
// which wake source fires first at the scheduling layer: a signal recorded
// before the deadline wins even if the process only observes it after a
// restart, and a signal recorded at or after the deadline loses even if its
// wakeup arrives early.
func (r *Run) AwaitSignal(deadline time.Time) (Outcome, error) {
	data, err := r.checkpoints.GetCheckpoint(r.ctx, r.instanceID, raceStep)
	if err != nil {
		return "", fmt.Errorf("race: load checkpoint: %w", err)
	}
	if data != nil {
		var cached raceResult
		if err := json.Unmarshal(data, &cached); err != nil {
			return "", fmt.Errorf("race: decode checkpoint: %w", err)
		}
		return cached.Outcome, nil
	}

	wake, release, err := r.watcher.Watch(r.ctx, r.instanceID)
	if err != nil {
		return "", fmt.Errorf("race: watch signals: %w", err)
	}
	defer release()

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	for {
		signaledAt, err := r.signals.Signaled(r.ctx, r.instanceID)
		if err != nil {
			return "", fmt.Errorf("race: read signal record: %w", err)
		}
		if signaledAt != nil && signaledAt.Before(deadline) {
			// Signal won; the pending timer is released on return.
			return r.resolve(OutcomeExtend)
		}
		if !time.Now().Before(deadline) {
			return r.resolve(OutcomeExpire)
		}

		select {
		case <-timer.C:
		case <-wake:
		case <-r.ctx.Done():
			return "", r.ctx.Err()
		}
	}
}

func (r *Run) resolve(outcome Outcome) (Outcome, error) {
	data, err := json.Marshal(raceResult{Outcome: outcome, ObservedAt: time.Now().UTC()})
	if err != nil {
		return "", fmt.Errorf("race: encode result: %w", err)
	}
	if err := r.checkpoints.SaveCheckpoint(r.ctx, r.instanceID, raceStep, data); err != nil {
		return "", fmt.Errorf("race: save checkpoint: %w", err)
	}
	return outcome, nil
}

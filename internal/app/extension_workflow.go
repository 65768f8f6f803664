package app

import (
	"context"
	"fmt"
	"time"

	"github.com/joshdcar/spring-clean-resource-cleanup/internal/domain"
	"github.com/joshdcar/spring-clean-resource-cleanup/internal/workflow"
)

// Step names, part of the durable record of every instance. Renaming one
// would orphan checkpoints of in-flight instances.
const (
	stepSendNotification = "send-notification"
	stepArmDeadline      = "arm-deadline"
	stepExtendExpiration = "extend-expiration"
	stepDeleteResource   = "delete-resource"
)

// ExtensionWorkflow is the notify -> race -> resolve state machine executed
// once per expired, notifiable resource group. All collaborator calls happen
// inside checkpointed steps, so an instance resumed after a restart observes
// confirmed effects instead of repeating them.
type ExtensionWorkflow struct {
	store     domain.ResourceStore
	notifier  domain.Notifier
	instances domain.InstanceRepository
	baseURL   string
}

func NewExtensionWorkflow(store domain.ResourceStore, notifier domain.Notifier, instances domain.InstanceRepository, baseURL string) *ExtensionWorkflow {
	return &ExtensionWorkflow{
		store:     store,
		notifier:  notifier,
		instances: instances,
		baseURL:   baseURL,
	}
}

// Run drives inst to a terminal phase. It mutates inst.Phase and
// inst.ResponseDeadline to mirror the durable record as transitions land.
func (w *ExtensionWorkflow) Run(run *workflow.Run, inst *domain.Instance) error {
	// The cached result is the instant delivery was confirmed; replay after
	// a restart must not re-send, and a failed send must not arm the race.
	sentAt, err := workflow.StepWithResult(run, stepSendNotification, func(ctx context.Context) (time.Time, error) {
		subject, body := w.composeNotification(inst)
		if err := w.notifier.Send(ctx, inst.Email, subject, body); err != nil {
			return time.Time{}, err
		}
		return time.Now().UTC(), nil
	})
	if err != nil {
		return err
	}

	// Derived from the cached send time, the deadline is the same fixed
	// instant on every replay. ArmDeadline additionally keeps the first
	// recorded value should the step itself be re-executed.
	deadline := sentAt.Add(inst.RespondWithin)
	if err := run.Step(stepArmDeadline, func(ctx context.Context) error {
		return w.instances.ArmDeadline(ctx, inst.ID, deadline)
	}); err != nil {
		return err
	}
	inst.Phase = domain.PhaseAwaitingResponse
	inst.ResponseDeadline = &deadline

	outcome, err := run.AwaitSignal(deadline)
	if err != nil {
		return err
	}

	if outcome == workflow.OutcomeExtend {
		if err := run.Step(stepExtendExpiration, func(ctx context.Context) error {
			// Compound from the stored tag value, not from the deadline or
			// the current time, so repeated extensions stack on the
			// original schedule.
			current, err := w.store.GetExpiration(ctx, inst.ResourceGroup)
			if err != nil {
				return err
			}
			return w.store.UpdateExpiration(ctx, inst.ResourceGroup, current.Add(inst.ExtendBy))
		}); err != nil {
			return err
		}
		if err := w.instances.MarkPhase(run.Context(), inst.ID, domain.PhaseExtended); err != nil {
			return err
		}
		inst.Phase = domain.PhaseExtended
		return nil
	}

	if err := run.Step(stepDeleteResource, func(ctx context.Context) error {
		return w.store.Delete(ctx, inst.ResourceGroup)
	}); err != nil {
		return err
	}
	if err := w.instances.MarkPhase(run.Context(), inst.ID, domain.PhaseDeleted); err != nil {
		return err
	}
	inst.Phase = domain.PhaseDeleted
	return nil
}

func (w *ExtensionWorkflow) composeNotification(inst *domain.Instance) (subject, body string) {
	subject = fmt.Sprintf("Your resource group %s is about to be deleted", inst.ResourceGroup)
	extendURL := fmt.Sprintf("%s/extend/%s", w.baseURL, inst.ID)
	body = fmt.Sprintf(
		`<p>Your resource group <b>%s</b> has reached its expiration date and is scheduled for deletion.</p>
<p>If you do not respond within %s the resource group will be deleted.</p>
<p>Visit <a href=%q>%s</a> to extend it for another %s.</p>
<p>No action is necessary if you would like these resources deleted.</p>`,
		inst.ResourceGroup,
		formatWindow(inst.RespondWithin),
		extendURL, extendURL,
		formatWindow(inst.ExtendBy),
	)
	return subject, body
}

func formatWindow(d time.Duration) string {
	if h := d / time.Hour; h >= 1 && d%time.Hour == 0 {
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return d.String()
}

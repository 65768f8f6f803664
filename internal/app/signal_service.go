package app

import (
	"context"
	"log"
	"time"

	"github.com/joshdcar/spring-clean-resource-cleanup/internal/domain"
	"github.com/joshdcar/spring-clean-resource-cleanup/internal/obs"
)

// SignalService is the write side of the extension confirmation surface. It
// runs in the process hosting the HTTP endpoint, which need not be the
// process executing the workflows: the durable signal record plus a bus
// publish reach the racing instance wherever it runs.
type SignalService struct {
	instances domain.InstanceRepository
	bus       domain.SignalBus
	metrics   *obs.Metrics
}

func NewSignalService(instances domain.InstanceRepository, bus domain.SignalBus, metrics *obs.Metrics) *SignalService {
	return &SignalService{
		instances: instances,
		bus:       bus,
		metrics:   metrics,
	}
}

// Signal asserts "extend" against one workflow instance. Unknown identifiers
// return domain.ErrInstanceNotFound. Signals against resolved instances and
// duplicate signals are accepted no-ops, so repeated clicks on a
// notification link are harmless.
func (s *SignalService) Signal(ctx context.Context, instanceID string) error {
	inst, err := s.instances.GetInstance(ctx, instanceID)
	if err != nil {
		return err
	}
	if inst == nil {
		s.metrics.SignalsTotal.WithLabelValues("not_found").Inc()
		return domain.ErrInstanceNotFound
	}
	if inst.Phase.Terminal() {
		s.metrics.SignalsTotal.WithLabelValues("late").Inc()
		return nil
	}

	recorded, err := s.instances.RecordSignal(ctx, instanceID, time.Now().UTC())
	if err != nil {
		return err
	}
	if recorded {
		s.metrics.SignalsTotal.WithLabelValues("accepted").Inc()
		log.Printf("Extend signal recorded for workflow %s (resource group %s)", inst.ID, inst.ResourceGroup)
	} else {
		s.metrics.SignalsTotal.WithLabelValues("duplicate").Inc()
	}

	// Best-effort wakeup; the racing instance re-reads the durable record
	// at its deadline regardless.
	if err := s.bus.Publish(ctx, instanceID); err != nil {
		log.Printf("Failed to publish signal wakeup for workflow %s: %v", instanceID, err)
	}
	return nil
}

// Instance returns the durable state of one workflow instance, or
// domain.ErrInstanceNotFound.
func (s *SignalService) Instance(ctx context.Context, instanceID string) (*domain.Instance, error) {
	inst, err := s.instances.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, domain.ErrInstanceNotFound
	}
	return inst, nil
}

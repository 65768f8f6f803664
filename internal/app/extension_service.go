package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/joshdcar/spring-clean-resource-cleanup/internal/domain"
	"github.com/joshdcar/spring-clean-resource-cleanup/internal/obs"
	"github.com/joshdcar/spring-clean-resource-cleanup/internal/workflow"
)

const defaultMaxAttempts = 3

// ExtensionService owns the running extension workflow instances of this
// process: it starts new ones, resumes the non-terminal ones after a restart,
// and retries failed runs with backoff. Each instance executes on its own
// goroutine; replay determinism comes from the checkpoint store, not from
// scheduling.
type ExtensionService struct {
	instances   domain.InstanceRepository
	checkpoints domain.CheckpointRepository
	bus         domain.SignalBus
	definition  *ExtensionWorkflow
	metrics     *obs.Metrics
	maxAttempts int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewExtensionService(parent context.Context, instances domain.InstanceRepository, checkpoints domain.CheckpointRepository, bus domain.SignalBus, definition *ExtensionWorkflow, metrics *obs.Metrics) *ExtensionService {
	ctx, cancel := context.WithCancel(parent)
	return &ExtensionService{
		instances:   instances,
		checkpoints: checkpoints,
		bus:         bus,
		definition:  definition,
		metrics:     metrics,
		maxAttempts: defaultMaxAttempts,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// StartExtension creates a durable instance for req and launches its run.
// The returned identifier is the signal routing key handed to the owner.
func (s *ExtensionService) StartExtension(ctx context.Context, req domain.ExtendRequest) (string, error) {
	inst := domain.NewInstance(req)
	if err := s.instances.CreateInstance(ctx, inst); err != nil {
		return "", fmt.Errorf("create instance for %s: %w", req.ResourceGroup, err)
	}
	s.metrics.WorkflowsStartedTotal.Inc()
	log.Printf("Started extension workflow %s for resource group %s", inst.ID, inst.ResourceGroup)
	s.launch(inst)
	return inst.ID, nil
}

// ResumePending re-launches every non-terminal instance. Called once at
// process start, before the scanner begins producing new instances.
func (s *ExtensionService) ResumePending(ctx context.Context) error {
	pending, err := s.instances.ListActiveInstances(ctx)
	if err != nil {
		return fmt.Errorf("list active instances: %w", err)
	}
	for _, inst := range pending {
		log.Printf("Resuming extension workflow %s for resource group %s (phase %s)", inst.ID, inst.ResourceGroup, inst.Phase)
		s.launch(inst)
	}
	if len(pending) > 0 {
		log.Printf("Resumed %d extension workflows", len(pending))
	}
	return nil
}

// Stop cancels running instances and waits for them to yield. In-flight
// instances are left suspended in their durable state and picked up by
// ResumePending on the next start.
func (s *ExtensionService) Stop(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ExtensionService) launch(inst *domain.Instance) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(inst)
	}()
}

func (s *ExtensionService) execute(inst *domain.Instance) {
	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay(attempt)):
			case <-s.ctx.Done():
				return
			}
		}

		run := workflow.NewRun(s.ctx, inst.ID, s.checkpoints, instanceSignals{s.instances}, s.bus)
		lastErr = s.definition.Run(run, inst)
		if lastErr == nil {
			s.metrics.ResolutionsTotal.WithLabelValues(string(inst.Phase)).Inc()
			log.Printf("Extension workflow %s resolved: %s", inst.ID, inst.Phase)
			return
		}
		if s.ctx.Err() != nil {
			// Shutdown, not failure. The instance resumes on next start.
			return
		}
		log.Printf("Extension workflow %s attempt %d failed: %v", inst.ID, attempt+1, lastErr)
	}

	// Exhausted. Record the failure for operators; never guess a terminal
	// effect on the resource.
	s.metrics.ResolutionsTotal.WithLabelValues("failed").Inc()
	if err := s.instances.RecordFailure(context.Background(), inst.ID, lastErr.Error()); err != nil {
		log.Printf("Failed to record failure for workflow %s: %v", inst.ID, err)
	}
	log.Printf("Extension workflow %s failed after %d attempts: %v", inst.ID, s.maxAttempts, lastErr)
}

func retryDelay(attempt int) time.Duration {
	delay := time.Duration(1<<uint(attempt)) * time.Second
	if delay > time.Minute {
		delay = time.Minute
	}
	return delay
}

// instanceSignals adapts the instance repository to the workflow runtime's
// view of the durable signal record.
type instanceSignals struct {
	repo domain.InstanceRepository
}

func (s instanceSignals) Signaled(ctx context.Context, instanceID string) (*time.Time, error) {
	inst, err := s.repo.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, domain.ErrInstanceNotFound
	}
	return inst.SignaledAt, nil
}

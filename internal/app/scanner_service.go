package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joshdcar/spring-clean-resource-cleanup/internal/domain"
	"github.com/joshdcar/spring-clean-resource-cleanup/internal/obs"
)

// ExtensionStarter starts one extension workflow instance for an expired,
// notifiable resource group.
type ExtensionStarter interface {
	StartExtension(ctx context.Context, req domain.ExtendRequest) (string, error)
}

// ScannerService evaluates tagged resource groups against the expiration
// policy on every tick. Expired groups with a notification address get an
// extension workflow; the rest of the expired groups are deleted directly.
// A failure on one group never aborts the pass: the group is retried on the
// next tick through its unchanged tag state.
type ScannerService struct {
	store      domain.ResourceStore
	instances  domain.InstanceRepository
	extensions ExtensionStarter
	metrics    *obs.Metrics

	extendBy      time.Duration
	respondWithin time.Duration
	// notifyEnabled false selects the simple-scan mode: every expired group
	// is deleted directly, no workflows, no notifications.
	notifyEnabled bool
	concurrency   int
}

func NewScannerService(store domain.ResourceStore, instances domain.InstanceRepository, extensions ExtensionStarter, metrics *obs.Metrics, extendBy, respondWithin time.Duration, notifyEnabled bool, concurrency int) *ScannerService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ScannerService{
		store:         store,
		instances:     instances,
		extensions:    extensions,
		metrics:       metrics,
		extendBy:      extendBy,
		respondWithin: respondWithin,
		notifyEnabled: notifyEnabled,
		concurrency:   concurrency,
	}
}

// Scan runs one full pass over the tagged resource groups.
func (s *ScannerService) Scan(ctx context.Context) error {
	records, err := s.store.ListExpirable(ctx)
	if err != nil {
		return fmt.Errorf("list resource groups: %w", err)
	}

	now := time.Now().UTC()
	var mu sync.Mutex
	started := make(map[string]bool)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			// Per-resource errors are logged inside evaluate and never
			// returned, so one bad group cannot cancel the pass.
			s.evaluate(gctx, rec, now, started, &mu)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.metrics.ScansTotal.Inc()
	return nil
}

func (s *ScannerService) evaluate(ctx context.Context, rec domain.ResourceRecord, now time.Time, started map[string]bool, mu *sync.Mutex) {
	eval := domain.EvaluateResource(rec, now)

	action := eval.Action
	if action == domain.ActionStartWorkflow && !s.notifyEnabled {
		action = domain.ActionDelete
	}
	s.metrics.ResourcesEvaluatedTotal.WithLabelValues(string(action)).Inc()

	switch action {
	case domain.ActionSkip:
		if eval.Reason == domain.ReasonInvalidExpiration {
			log.Printf("Resource group %s has an unparsable %s tag value %q, skipping", rec.Name, domain.TagExpiration, rec.Tags[domain.TagExpiration])
		}

	case domain.ActionDelete:
		log.Printf("Resource group %s expired at %s (%s), deleting", rec.Name, eval.ExpiresAt.Format(time.RFC3339), eval.Reason)
		if err := s.store.Delete(ctx, rec.Name); err != nil {
			log.Printf("Failed to delete resource group %s: %v", rec.Name, err)
			return
		}
		s.metrics.DirectDeletesTotal.Inc()

	case domain.ActionStartWorkflow:
		// Serialize the already-started check so two concurrent evaluations
		// of the same group (duplicate listing entries) cannot both start
		// an instance in this tick.
		mu.Lock()
		if started[rec.Name] {
			mu.Unlock()
			return
		}
		active, err := s.instances.HasActiveInstance(ctx, rec.Name)
		if err != nil {
			mu.Unlock()
			log.Printf("Failed to check active workflow for resource group %s: %v", rec.Name, err)
			return
		}
		if active {
			mu.Unlock()
			return
		}
		started[rec.Name] = true
		mu.Unlock()

		req := domain.ExtendRequest{
			ResourceGroup: rec.Name,
			Email:         rec.Tags[domain.TagEmail],
			ExtendBy:      s.extendBy,
			RespondWithin: s.respondWithin,
		}
		id, err := s.extensions.StartExtension(ctx, req)
		if err != nil {
			log.Printf("Failed to start extension workflow for resource group %s: %v", rec.Name, err)
			// Allow a later evaluation in this tick to retry the group.
			mu.Lock()
			delete(started, rec.Name)
			mu.Unlock()
			return
		}
		log.Printf("Resource group %s expired at %s, started extension workflow %s", rec.Name, eval.ExpiresAt.Format(time.RFC3339), id)
	}
}

package app

import (
	"context"
	"log"
	"time"
)

// ScanRunner drives the scanner on a fixed interval until the context is
// cancelled. One pass runs immediately at start so a freshly deployed
// scanner does not wait a full interval before doing anything.
type ScanRunner struct {
	service  *ScannerService
	interval time.Duration
}

func NewScanRunner(service *ScannerService, interval time.Duration) *ScanRunner {
	return &ScanRunner{
		service:  service,
		interval: interval,
	}
}

func (r *ScanRunner) Start(ctx context.Context) error {
	log.Printf("Starting resource cleanup scanner (interval %s)...", r.interval)

	if err := r.service.Scan(ctx); err != nil {
		log.Printf("Error scanning resource groups: %v", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Scanner shutting down...")
			return nil
		case <-ticker.C:
			if err := r.service.Scan(ctx); err != nil {
				log.Printf("Error scanning resource groups: %v", err)
			}
		}
	}
}

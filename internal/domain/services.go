package domain

import (
	"context"
	"time"
)

// ResourceStore is the resource-manager surface the cleanup service consumes.
// It owns tag state; this service only reads it and performs at most one
// mutation per workflow instance.
type ResourceStore interface {
	// ListExpirable enumerates resource groups tagged as participating in
	// the cleanup policy.
	ListExpirable(ctx context.Context) ([]ResourceRecord, error)
	// GetExpiration reads the stored expiration instant for a group.
	GetExpiration(ctx context.Context, resourceGroup string) (time.Time, error)
	// UpdateExpiration writes a new expiration instant to the group's tags.
	UpdateExpiration(ctx context.Context, resourceGroup string, expires time.Time) error
	// Delete begins deletion of the group. Deletion is long-running on the
	// provider side; having started it is success.
	Delete(ctx context.Context, resourceGroup string) error
}

// Notifier delivers one outbound message. Send returns only after delivery
// has been accepted or refused; the workflow never proceeds on a guess.
type Notifier interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SignalBus carries extend-signal wakeups between processes. It is purely a
// wake channel: the durable SignaledAt record on the instance is what decides
// the race, so a lost publish only delays resolution until the deadline timer
// re-checks it.
type SignalBus interface {
	Publish(ctx context.Context, instanceID string) error
	// Watch returns a channel that receives a wakeup whenever a signal is
	// published for instanceID, plus a release function the caller must
	// invoke when done watching.
	Watch(ctx context.Context, instanceID string) (<-chan struct{}, func(), error)
}

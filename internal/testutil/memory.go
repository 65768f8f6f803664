package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/joshdcar/spring-clean-resource-cleanup/internal/domain"
)

// In-memory collaborator implementations for workflow and scanner tests.
// They mirror the semantics of the production adapters: checkpoints are
// first-write-wins, ArmDeadline keeps the first recorded deadline, and
// RecordSignal only lands once on a non-terminal instance.

type MemoryInstanceRepository struct {
	mu        sync.Mutex
	instances map[string]*domain.Instance
}

func NewMemoryInstanceRepository() *MemoryInstanceRepository {
	return &MemoryInstanceRepository{instances: make(map[string]*domain.Instance)}
}

func (r *MemoryInstanceRepository) CreateInstance(ctx context.Context, instance *domain.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *instance
	r.instances[instance.ID] = &clone
	return nil
}

func (r *MemoryInstanceRepository) GetInstance(ctx context.Context, id string) (*domain.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	instance, ok := r.instances[id]
	if !ok {
		return nil, nil
	}
	clone := *instance
	return &clone, nil
}

func (r *MemoryInstanceRepository) ArmDeadline(ctx context.Context, id string, deadline time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	instance, ok := r.instances[id]
	if !ok {
		return domain.ErrInstanceNotFound
	}
	if instance.ResponseDeadline == nil {
		d := deadline
		instance.ResponseDeadline = &d
	}
	instance.Phase = domain.PhaseAwaitingResponse
	instance.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryInstanceRepository) RecordSignal(ctx context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	instance, ok := r.instances[id]
	if !ok {
		return false, nil
	}
	if instance.SignaledAt != nil || instance.Phase.Terminal() {
		return false, nil
	}
	t := at
	instance.SignaledAt = &t
	instance.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *MemoryInstanceRepository) MarkPhase(ctx context.Context, id string, phase domain.Phase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	instance, ok := r.instances[id]
	if !ok {
		return domain.ErrInstanceNotFound
	}
	instance.Phase = phase
	instance.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryInstanceRepository) RecordFailure(ctx context.Context, id string, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	instance, ok := r.instances[id]
	if !ok {
		return domain.ErrInstanceNotFound
	}
	msg := message
	instance.Failure = &msg
	instance.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryInstanceRepository) HasActiveInstance(ctx context.Context, resourceGroup string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, instance := range r.instances {
		if instance.ResourceGroup == resourceGroup && !instance.Phase.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryInstanceRepository) ListActiveInstances(ctx context.Context) ([]*domain.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var active []*domain.Instance
	for _, instance := range r.instances {
		if !instance.Phase.Terminal() {
			clone := *instance
			active = append(active, &clone)
		}
	}
	return active, nil
}

type MemoryCheckpointStore struct {
	mu   sync.Mutex
	data map[string]map[string][]byte
}

func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{data: make(map[string]map[string][]byte)}
}

func (s *MemoryCheckpointStore) GetCheckpoint(ctx context.Context, instanceID, step string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	steps, ok := s.data[instanceID]
	if !ok {
		return nil, nil
	}
	data, ok := steps[step]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryCheckpointStore) SaveCheckpoint(ctx context.Context, instanceID, step string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	steps, ok := s.data[instanceID]
	if !ok {
		steps = make(map[string][]byte)
		s.data[instanceID] = steps
	}
	if _, exists := steps[step]; exists {
		return nil
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	steps[step] = stored
	return nil
}

// Steps returns the recorded step names for an instance, for assertions.
func (s *MemoryCheckpointStore) Steps(instanceID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for name := range s.data[instanceID] {
		names = append(names, name)
	}
	return names
}

type MemorySignalBus struct {
	mu       sync.Mutex
	watchers map[string][]chan struct{}
}

func NewMemorySignalBus() *MemorySignalBus {
	return &MemorySignalBus{watchers: make(map[string][]chan struct{})}
}

func (b *MemorySignalBus) Publish(ctx context.Context, instanceID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.watchers[instanceID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (b *MemorySignalBus) Watch(ctx context.Context, instanceID string) (<-chan struct{}, func(), error) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.watchers[instanceID] = append(b.watchers[instanceID], ch)
	b.mu.Unlock()

	release := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		chans := b.watchers[instanceID]
		for i, c := range chans {
			if c == ch {
				b.watchers[instanceID] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
	}
	return ch, release, nil
}

// RecordingResourceStore is an in-memory domain.ResourceStore that records
// every mutation for assertions.
type RecordingResourceStore struct {
	mu          sync.Mutex
	records     []domain.ResourceRecord
	expirations map[string]time.Time
	listErr     error

	UpdateCalls []ExpirationUpdate
	DeleteCalls []string
}

type ExpirationUpdate struct {
	ResourceGroup string
	Expires       time.Time
}

func NewRecordingResourceStore() *RecordingResourceStore {
	return &RecordingResourceStore{expirations: make(map[string]time.Time)}
}

func (s *RecordingResourceStore) SetRecords(records []domain.ResourceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
}

func (s *RecordingResourceStore) SetExpiration(resourceGroup string, expires time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expirations[resourceGroup] = expires
}

func (s *RecordingResourceStore) SetListError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErr = err
}

func (s *RecordingResourceStore) ListExpirable(ctx context.Context) ([]domain.ResourceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]domain.ResourceRecord(nil), s.records...), nil
}

func (s *RecordingResourceStore) GetExpiration(ctx context.Context, resourceGroup string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expires, ok := s.expirations[resourceGroup]
	if !ok {
		return time.Time{}, domain.ErrResourceNotFound
	}
	return expires, nil
}

func (s *RecordingResourceStore) UpdateExpiration(ctx context.Context, resourceGroup string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expirations[resourceGroup] = expires
	s.UpdateCalls = append(s.UpdateCalls, ExpirationUpdate{ResourceGroup: resourceGroup, Expires: expires})
	return nil
}

func (s *RecordingResourceStore) Delete(ctx context.Context, resourceGroup string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeleteCalls = append(s.DeleteCalls, resourceGroup)
	return nil
}

// Updates returns a snapshot of the recorded expiration updates.
func (s *RecordingResourceStore) Updates() []ExpirationUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ExpirationUpdate(nil), s.UpdateCalls...)
}

// Deletes returns a snapshot of the recorded delete calls.
func (s *RecordingResourceStore) Deletes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.DeleteCalls...)
}

// RecordingNotifier is an in-memory domain.Notifier. FailTimes makes the
// first N sends fail, for retry and failed-send tests.
type RecordingNotifier struct {
	mu        sync.Mutex
	FailTimes int
	failErr   error
	sent      []SentMessage
}

type SentMessage struct {
	To      string
	Subject string
	Body    string
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (n *RecordingNotifier) FailWith(err error, times int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failErr = err
	n.FailTimes = times
}

func (n *RecordingNotifier) Send(ctx context.Context, to, subject, htmlBody string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.FailTimes > 0 {
		n.FailTimes--
		return n.failErr
	}
	n.sent = append(n.sent, SentMessage{To: to, Subject: subject, Body: htmlBody})
	return nil
}

func (n *RecordingNotifier) Sent() []SentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]SentMessage(nil), n.sent...)
}

package app

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/joshdcar/spring-clean-resource-cleanup/internal/domain"
	"github.com/joshdcar/spring-clean-resource-cleanup/internal/obs"
	"github.com/joshdcar/spring-clean-resource-cleanup/internal/testutil"
)

// MockExtensionStarter is a mock implementation of ExtensionStarter
type MockExtensionStarter struct {
	mock.Mock
}

func (m *MockExtensionStarter) StartExtension(ctx context.Context, req domain.ExtendRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func newScanner(store *testutil.RecordingResourceStore, repo *testutil.MemoryInstanceRepository, starter ExtensionStarter, notifyEnabled bool) *ScannerService {
	metrics := obs.NewMetricsWithRegistry(prometheus.NewRegistry())
	return NewScannerService(store, repo, starter, metrics, 24*time.Hour, 12*time.Hour, notifyEnabled, 4)
}

func expiredTags(email string) map[string]string {
	tags := map[string]string{
		domain.TagParticipation: "enabled",
		domain.TagExpiration:    time.Now().UTC().Add(-2 * time.Hour).Format(time.RFC3339),
	}
	if email != "" {
		tags[domain.TagEmail] = email
	}
	return tags
}

// Scenario: expired group without a notification address is deleted
// directly and no workflow instance is ever created.
func TestScanDeletesExpiredWithoutEmail(t *testing.T) {
	store := testutil.NewRecordingResourceStore()
	store.SetRecords([]domain.ResourceRecord{
		{Name: "rg-no-email", Tags: expiredTags("")},
	})
	starter := &MockExtensionStarter{}

	scanner := newScanner(store, testutil.NewMemoryInstanceRepository(), starter, true)
	require.NoError(t, scanner.Scan(context.Background()))

	assert.Equal(t, []string{"rg-no-email"}, store.Deletes())
	starter.AssertNotCalled(t, "StartExtension", mock.Anything, mock.Anything)
}

// Scenario: group not yet expired — no mutation, no workflow, no
// notification.
func TestScanSkipsUnexpired(t *testing.T) {
	store := testutil.NewRecordingResourceStore()
	store.SetRecords([]domain.ResourceRecord{
		{Name: "rg-fresh", Tags: map[string]string{
			domain.TagParticipation: "enabled",
			domain.TagExpiration:    time.Now().UTC().Add(48 * time.Hour).Format(time.RFC3339),
			domain.TagEmail:         "owner@example.com",
		}},
	})
	starter := &MockExtensionStarter{}

	scanner := newScanner(store, testutil.NewMemoryInstanceRepository(), starter, true)
	require.NoError(t, scanner.Scan(context.Background()))

	assert.Empty(t, store.Deletes())
	assert.Empty(t, store.Updates())
	starter.AssertNotCalled(t, "StartExtension", mock.Anything, mock.Anything)
}

func TestScanSkipsMissingAndInvalidExpirationTags(t *testing.T) {
	store := testutil.NewRecordingResourceStore()
	store.SetRecords([]domain.ResourceRecord{
		{Name: "rg-untagged", Tags: map[string]string{domain.TagParticipation: "enabled"}},
		{Name: "rg-garbled", Tags: map[string]string{
			domain.TagParticipation: "enabled",
			domain.TagExpiration:    "not a date",
		}},
	})
	starter := &MockExtensionStarter{}

	scanner := newScanner(store, testutil.NewMemoryInstanceRepository(), starter, true)
	require.NoError(t, scanner.Scan(context.Background()))

	assert.Empty(t, store.Deletes())
	starter.AssertNotCalled(t, "StartExtension", mock.Anything, mock.Anything)
}

func TestScanStartsWorkflowForExpiredNotifiable(t *testing.T) {
	store := testutil.NewRecordingResourceStore()
	store.SetRecords([]domain.ResourceRecord{
		{Name: "rg-owned", Tags: expiredTags("owner@example.com")},
	})
	starter := &MockExtensionStarter{}
	starter.On("StartExtension", mock.Anything, mock.MatchedBy(func(req domain.ExtendRequest) bool {
		return req.ResourceGroup == "rg-owned" &&
			req.Email == "owner@example.com" &&
			req.ExtendBy == 24*time.Hour &&
			req.RespondWithin == 12*time.Hour
	})).Return("instance-1", nil).Once()

	scanner := newScanner(store, testutil.NewMemoryInstanceRepository(), starter, true)
	require.NoError(t, scanner.Scan(context.Background()))

	starter.AssertExpectations(t)
	assert.Empty(t, store.Deletes())
}

func TestScanDeletesWhenExtensionOptedOut(t *testing.T) {
	tags := expiredTags("owner@example.com")
	tags[domain.TagExtendPolicy] = domain.ExtendPolicyDisabled

	store := testutil.NewRecordingResourceStore()
	store.SetRecords([]domain.ResourceRecord{{Name: "rg-opted-out", Tags: tags}})
	starter := &MockExtensionStarter{}

	scanner := newScanner(store, testutil.NewMemoryInstanceRepository(), starter, true)
	require.NoError(t, scanner.Scan(context.Background()))

	assert.Equal(t, []string{"rg-opted-out"}, store.Deletes())
	starter.AssertNotCalled(t, "StartExtension", mock.Anything, mock.Anything)
}

// One instance per resource per tick, even when the listing repeats a
// group.
func TestScanStartsAtMostOneInstancePerResource(t *testing.T) {
	rec := domain.ResourceRecord{Name: "rg-dup", Tags: expiredTags("owner@example.com")}
	store := testutil.NewRecordingResourceStore()
	store.SetRecords([]domain.ResourceRecord{rec, rec, rec})

	starter := &MockExtensionStarter{}
	starter.On("StartExtension", mock.Anything, mock.Anything).Return("instance-1", nil).Once()

	scanner := newScanner(store, testutil.NewMemoryInstanceRepository(), starter, true)
	require.NoError(t, scanner.Scan(context.Background()))

	starter.AssertExpectations(t)
	starter.AssertNumberOfCalls(t, "StartExtension", 1)
}

// A group with a running workflow is left alone on later ticks; the tag
// state is unchanged until the workflow resolves.
func TestScanSkipsResourceWithActiveInstance(t *testing.T) {
	store := testutil.NewRecordingResourceStore()
	store.SetRecords([]domain.ResourceRecord{
		{Name: "rg-busy", Tags: expiredTags("owner@example.com")},
	})

	repo := testutil.NewMemoryInstanceRepository()
	require.NoError(t, repo.CreateInstance(context.Background(), domain.NewInstance(domain.ExtendRequest{
		ResourceGroup: "rg-busy",
		Email:         "owner@example.com",
	})))

	starter := &MockExtensionStarter{}
	scanner := newScanner(store, repo, starter, true)
	require.NoError(t, scanner.Scan(context.Background()))

	starter.AssertNotCalled(t, "StartExtension", mock.Anything, mock.Anything)
	assert.Empty(t, store.Deletes())
}

// A failure on one group never aborts the rest of the pass.
func TestScanContinuesPastFailingResource(t *testing.T) {
	store := testutil.NewRecordingResourceStore()
	store.SetRecords([]domain.ResourceRecord{
		{Name: "rg-breaks", Tags: expiredTags("owner@example.com")},
		{Name: "rg-fine", Tags: expiredTags("")},
	})

	starter := &MockExtensionStarter{}
	starter.On("StartExtension", mock.Anything, mock.Anything).
		Return("", assert.AnError)

	scanner := newScanner(store, testutil.NewMemoryInstanceRepository(), starter, true)
	require.NoError(t, scanner.Scan(context.Background()))

	assert.Contains(t, store.Deletes(), "rg-fine")
}

// Simple-scan mode: expired groups are deleted directly even when they
// carry a notification address.
func TestScanSimpleModeDeletesEverythingExpired(t *testing.T) {
	store := testutil.NewRecordingResourceStore()
	store.SetRecords([]domain.ResourceRecord{
		{Name: "rg-owned", Tags: expiredTags("owner@example.com")},
		{Name: "rg-no-email", Tags: expiredTags("")},
	})
	starter := &MockExtensionStarter{}

	scanner := newScanner(store, testutil.NewMemoryInstanceRepository(), starter, false)
	require.NoError(t, scanner.Scan(context.Background()))

	assert.ElementsMatch(t, []string{"rg-owned", "rg-no-email"}, store.Deletes())
	starter.AssertNotCalled(t, "StartExtension", mock.Anything, mock.Anything)
}

func TestScanPropagatesListFailure(t *testing.T) {
	store := testutil.NewRecordingResourceStore()
	store.SetListError(assert.AnError)

	scanner := newScanner(store, testutil.NewMemoryInstanceRepository(), &MockExtensionStarter{}, true)
	err := scanner.Scan(context.Background())
	assert.Error(t, err)
}

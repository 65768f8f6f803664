package app

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshdcar/spring-clean-resource-cleanup/internal/domain"
	"github.com/joshdcar/spring-clean-resource-cleanup/internal/obs"
	"github.com/joshdcar/spring-clean-resource-cleanup/internal/testutil"
)

func newSignalFixture(t *testing.T) (*SignalService, *testutil.MemoryInstanceRepository, *testutil.MemorySignalBus) {
	t.Helper()
	repo := testutil.NewMemoryInstanceRepository()
	bus := testutil.NewMemorySignalBus()
	metrics := obs.NewMetricsWithRegistry(prometheus.NewRegistry())
	return NewSignalService(repo, bus, metrics), repo, bus
}

func TestSignalUnknownInstance(t *testing.T) {
	service, _, _ := newSignalFixture(t)

	err := service.Signal(context.Background(), "no-such-instance")
	assert.ErrorIs(t, err, domain.ErrInstanceNotFound)
}

func TestSignalRecordsAndWakes(t *testing.T) {
	service, repo, bus := newSignalFixture(t)
	ctx := context.Background()

	inst := domain.NewInstance(domain.ExtendRequest{ResourceGroup: "rg-test", Email: "owner@example.com"})
	require.NoError(t, repo.CreateInstance(ctx, inst))

	wake, release, err := bus.Watch(ctx, inst.ID)
	require.NoError(t, err)
	defer release()

	require.NoError(t, service.Signal(ctx, inst.ID))

	stored, err := repo.GetInstance(ctx, inst.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.SignaledAt)

	select {
	case <-wake:
	case <-time.After(time.Second):
		t.Fatal("no wakeup published for signal")
	}
}

// Duplicate signals are accepted and keep the first recorded instant.
func TestSignalDuplicateKeepsFirstInstant(t *testing.T) {
	service, repo, _ := newSignalFixture(t)
	ctx := context.Background()

	inst := domain.NewInstance(domain.ExtendRequest{ResourceGroup: "rg-test", Email: "owner@example.com"})
	require.NoError(t, repo.CreateInstance(ctx, inst))

	require.NoError(t, service.Signal(ctx, inst.ID))
	first, err := repo.GetInstance(ctx, inst.ID)
	require.NoError(t, err)
	require.NotNil(t, first.SignaledAt)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, service.Signal(ctx, inst.ID))

	second, err := repo.GetInstance(ctx, inst.ID)
	require.NoError(t, err)
	assert.True(t, second.SignaledAt.Equal(*first.SignaledAt))
}

// A signal against a resolved instance is a no-op success, never an error
// and never a store mutation.
func TestSignalAfterResolutionIsNoOp(t *testing.T) {
	service, repo, _ := newSignalFixture(t)
	ctx := context.Background()

	inst := domain.NewInstance(domain.ExtendRequest{ResourceGroup: "rg-test", Email: "owner@example.com"})
	require.NoError(t, repo.CreateInstance(ctx, inst))
	require.NoError(t, repo.MarkPhase(ctx, inst.ID, domain.PhaseDeleted))

	require.NoError(t, service.Signal(ctx, inst.ID))

	stored, err := repo.GetInstance(ctx, inst.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.SignaledAt)
	assert.Equal(t, domain.PhaseDeleted, stored.Phase)
}

func TestInstanceLookup(t *testing.T) {
	service, repo, _ := newSignalFixture(t)
	ctx := context.Background()

	inst := domain.NewInstance(domain.ExtendRequest{ResourceGroup: "rg-test", Email: "owner@example.com"})
	require.NoError(t, repo.CreateInstance(ctx, inst))

	found, err := service.Instance(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, inst.ID, found.ID)

	_, err = service.Instance(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrInstanceNotFound)
}

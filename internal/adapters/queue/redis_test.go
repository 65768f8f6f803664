package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshdcar/spring-clean-resource-cleanup/internal/testutil"
)

func TestPublishWakesWatcher(t *testing.T) {
	ctx := context.Background()
	container, client := testutil.SetupTestRedis(t, ctx)
	defer container.Terminate(ctx)

	bus := NewRedisSignalBus(client)
	defer bus.Close()

	wake, release, err := bus.Watch(ctx, "instance-1")
	require.NoError(t, err)
	defer release()

	err = bus.Publish(ctx, "instance-1")
	require.NoError(t, err)

	select {
	case <-wake:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never woke after publish")
	}
}

func TestWatchIsScopedToInstance(t *testing.T) {
	ctx := context.Background()
	container, client := testutil.SetupTestRedis(t, ctx)
	defer container.Terminate(ctx)

	bus := NewRedisSignalBus(client)
	defer bus.Close()

	wake, release, err := bus.Watch(ctx, "instance-1")
	require.NoError(t, err)
	defer release()

	err = bus.Publish(ctx, "instance-2")
	require.NoError(t, err)

	select {
	case <-wake:
		t.Fatal("watcher woke for another instance's signal")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRepeatedPublishesCoalesce(t *testing.T) {
	ctx := context.Background()
	container, client := testutil.SetupTestRedis(t, ctx)
	defer container.Terminate(ctx)

	bus := NewRedisSignalBus(client)
	defer bus.Close()

	wake, release, err := bus.Watch(ctx, "instance-1")
	require.NoError(t, err)
	defer release()

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(ctx, "instance-1"))
	}

	// The wake channel only ever holds one pending notification; the
	// watcher re-reads durable state once woken, so coalescing is safe.
	select {
	case <-wake:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never woke after publish")
	}
}

func TestReleaseStopsDelivery(t *testing.T) {
	ctx := context.Background()
	container, client := testutil.SetupTestRedis(t, ctx)
	defer container.Terminate(ctx)

	bus := NewRedisSignalBus(client)
	defer bus.Close()

	wake, release, err := bus.Watch(ctx, "instance-1")
	require.NoError(t, err)
	release()

	err = bus.Publish(ctx, "instance-1")
	assert.NoError(t, err)

	select {
	case _, ok := <-wake:
		if ok {
			t.Fatal("released watcher still received a wakeup")
		}
	case <-time.After(200 * time.Millisecond):
	}
}

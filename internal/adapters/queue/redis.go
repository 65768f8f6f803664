package queue

import (
	"context"

	"github.com/go-redis/redis/v8"
)

const signalChannelPrefix = "springclean:extend:"

// RedisSignalBus delivers extend-signal wakeups across processes over Redis
// pub/sub, one channel per workflow instance. Delivery is best-effort: the
// durable signal record on the instance decides the race, so a dropped
// message only delays resolution until the deadline timer looks again.
type RedisSignalBus struct {
	client *redis.Client
}

func NewRedisSignalBus(client *redis.Client) *RedisSignalBus {
	return &RedisSignalBus{client: client}
}

func (b *RedisSignalBus) Publish(ctx context.Context, instanceID string) error {
	return b.client.Publish(ctx, signalChannelPrefix+instanceID, "extend").Err()
}

func (b *RedisSignalBus) Watch(ctx context.Context, instanceID string) (<-chan struct{}, func(), error) {
	sub := b.client.Subscribe(ctx, signalChannelPrefix+instanceID)

	// Confirm the subscription before handing out the channel so a publish
	// immediately after Watch returns is not lost.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, err
	}

	wake := make(chan struct{}, 1)
	go func() {
		for range sub.Channel() {
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}()

	release := func() {
		sub.Close()
	}
	return wake, release, nil
}

func (b *RedisSignalBus) Close() error {
	return b.client.Close()
}

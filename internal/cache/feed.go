package cache

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ChangeFeed signals game changes over Redis pub/sub so that every process
// holding a live subscription re-reads the collection.
type ChangeFeed struct {
	rdb     *redis.Client
	channel string
}

// NewChangeFeed returns a feed on the given channel.
func NewChangeFeed(rdb *redis.Client, channel string) *ChangeFeed {
	if channel == "" {
		channel = DefaultChannel
	}
	return &ChangeFeed{rdb: rdb, channel: channel}
}

// Publish announces that gameID changed.
func (f *ChangeFeed) Publish(ctx context.Context, gameID uuid.UUID) error {
	if err := f.rdb.Publish(ctx, f.channel, gameID.String()).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", f.channel, err)
	}
	return nil
}

// Listen subscribes to the channel. Bursts of messages are coalesced into a
// single pending signal because consumers always re-read the full set.
func (f *ChangeFeed) Listen(ctx context.Context) (<-chan struct{}, error) {
	pubsub := f.rdb.Subscribe(ctx, f.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", f.channel, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				signal(out)
			}
		}
	}()
	return out, nil
}

// signal does a non-blocking send; a pending value already covers this change.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

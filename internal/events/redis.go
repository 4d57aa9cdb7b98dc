package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus fans events out across instances via Redis pub/sub. Each topic maps
// to one Redis channel. No ordering is guaranteed across instances; listeners
// must tolerate out-of-order deltas the same way browser listeners did.
type RedisBus struct {
	rdb    *redis.Client
	logger *zap.SugaredLogger
}

func NewRedisBus(rdb *redis.Client, logger *zap.SugaredLogger) *RedisBus {
	return &RedisBus{rdb: rdb, logger: logger}
}

func (b *RedisBus) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, e.Topic, payload).Err()
}

func (b *RedisBus) Subscribe(topic string) (<-chan Event, func()) {
	pubsub := b.rdb.Subscribe(context.Background(), topic)
	out := make(chan Event, subscriberBuffer)

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				b.logger.Warnw("dropping malformed bus event", "topic", topic, "error", err)
				continue
			}
			select {
			case out <- e:
			default:
				b.logger.Warnw("bus subscriber not draining, dropping event", "topic", topic)
			}
		}
	}()

	cancel := func() {
		_ = pubsub.Close()
	}
	return out, cancel
}

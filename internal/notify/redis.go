package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const channelPrefix = "passport:events:"

// RedisBroker publishes events on Redis channels, one per topic
type RedisBroker struct {
	rdb *redis.Client
}

// NewRedisBroker wraps a Redis client
func NewRedisBroker(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{rdb: rdb}
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, ev Event) error {
	ev.Topic = topic
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.rdb.Publish(ctx, channelPrefix+topic, raw).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, topics ...string) (<-chan Event, error) {
	channels := make([]string, len(topics))
	for i, t := range topics {
		channels[i] = channelPrefix + t
	}
	ps := b.rdb.Subscribe(ctx, channels...)
	// Wait for the subscription confirmation so no event published after return is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logrus.WithFields(logrus.Fields{
						"channel": msg.Channel,
						"error":   err.Error(),
					}).Warn("Dropping undecodable event")
					continue
				}
				select {
				case out <- ev:
				default: // Slow consumer, it polls instead
				}
			}
		}
	}()
	return out, nil
}

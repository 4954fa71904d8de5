package notify

import (
	"context"
	"sync"
)

// subscriberBuffer bounds how far a slow subscriber may fall behind before
// events to it are dropped
const subscriberBuffer = 64

// LocalBroker delivers events to subscribers in the same process
type LocalBroker struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

// NewLocalBroker creates an empty broker
func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[string]map[chan Event]struct{})}
}

// Publish never blocks; a full subscriber misses the event and is expected to
// fall back to polling
func (b *LocalBroker) Publish(ctx context.Context, topic string, ev Event) error {
	ev.Topic = topic
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[topic] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

func (b *LocalBroker) Subscribe(ctx context.Context, topics ...string) (<-chan Event, error) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	for _, t := range topics {
		if b.subs[t] == nil {
			b.subs[t] = make(map[chan Event]struct{})
		}
		b.subs[t][ch] = struct{}{}
	}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		for _, t := range topics {
			delete(b.subs[t], ch)
			if len(b.subs[t]) == 0 {
				delete(b.subs, t)
			}
		}
		b.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

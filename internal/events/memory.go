// Package events publishes pipeline progress to subscribers.
package events

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/spherical/newspaper-digest/internal/domain"
)

const subscriberBuffer = 64

// Subscriber streams the events of one newspaper until unsubscribe is called.
type Subscriber interface {
	Subscribe(ctx context.Context, newspaperID uuid.UUID) (<-chan domain.Event, func(), error)
}

// Broker publishes and subscribes.
type Broker interface {
	domain.EventPublisher
	Subscriber
}

// MemoryBroker fans events out to in-process subscribers. Slow subscribers
// drop events rather than block the pipeline.
type MemoryBroker struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[*memorySub]struct{}
}

type memorySub struct {
	ch   chan domain.Event
	once sync.Once
}

var _ Broker = (*MemoryBroker)(nil)

// NewMemoryBroker creates an empty broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[uuid.UUID]map[*memorySub]struct{})}
}

func (b *MemoryBroker) Publish(_ context.Context, event domain.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[event.NewspaperID] {
		select {
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(_ context.Context, newspaperID uuid.UUID) (<-chan domain.Event, func(), error) {
	sub := &memorySub{ch: make(chan domain.Event, subscriberBuffer)}

	b.mu.Lock()
	if b.subs[newspaperID] == nil {
		b.subs[newspaperID] = make(map[*memorySub]struct{})
	}
	b.subs[newspaperID][sub] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		sub.once.Do(func() {
			b.mu.Lock()
			delete(b.subs[newspaperID], sub)
			if len(b.subs[newspaperID]) == 0 {
				delete(b.subs, newspaperID)
			}
			b.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, unsubscribe, nil
}

// Subscribers returns the number of live subscriptions for a newspaper.
func (b *MemoryBroker) Subscribers(newspaperID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[newspaperID])
}

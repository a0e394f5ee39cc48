package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/spherical/newspaper-digest/internal/cache"
	"github.com/spherical/newspaper-digest/internal/domain"
)

// PubSub is the subset of the redis cache client used for events.
type PubSub interface {
	Publish(ctx context.Context, channel string, message []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// RedisBroker distributes events across API instances over Redis pub/sub.
type RedisBroker struct {
	ps PubSub
}

var _ Broker = (*RedisBroker)(nil)

// NewRedisBroker creates a broker on top of a redis pub/sub client.
func NewRedisBroker(ps PubSub) *RedisBroker {
	return &RedisBroker{ps: ps}
}

func (b *RedisBroker) Publish(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return b.ps.Publish(ctx, cache.EventsChannel(event.NewspaperID.String()), data)
}

func (b *RedisBroker) Subscribe(ctx context.Context, newspaperID uuid.UUID) (<-chan domain.Event, func(), error) {
	raw, unsubscribe, err := b.ps.Subscribe(ctx, cache.EventsChannel(newspaperID.String()))
	if err != nil {
		return nil, nil, err
	}

	out := make(chan domain.Event, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range raw {
			var event domain.Event
			if err := json.Unmarshal(msg, &event); err != nil {
				continue
			}
			select {
			case out <- event:
			default:
			}
		}
	}()

	return out, unsubscribe, nil
}

package events

import (
	"context"
	"errors"

	"github.com/spherical/newspaper-digest/internal/domain"
)

// Fanout publishes each event to every publisher and joins their errors.
type Fanout []domain.EventPublisher

func (f Fanout) Publish(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, domain.Event) error { return nil }

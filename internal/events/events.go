// Package events fans kitchen status changes out to displays and brokers.
package events

import (
	"context"
	"errors"
	"log"

	"github.com/RubensDuarte2025/Julius-rmd/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, event models.KitchenEvent) error
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event models.KitchenEvent) error {
	var errs []error
	for _, publisher := range f {
		if publisher == nil {
			continue
		}
		if err := publisher.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Nop struct{}

func (Nop) Publish(context.Context, models.KitchenEvent) error { return nil }

// Notify publishes and only logs failures. State is never rolled back for a
// lost event.
func Notify(ctx context.Context, publisher Publisher, event models.KitchenEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		log.Printf("kitchen event publish failed type=%s origin=%s:%d status=%s error=%v",
			event.Type, event.OriginKind, event.OriginID, event.Status, err)
	}
}

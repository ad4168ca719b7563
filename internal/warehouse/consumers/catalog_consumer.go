package consumers

import (
	"context"

	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/internal/warehouse/service"
	"github.com/medflow/medflow-warehouse/pkg/actor"
	"github.com/medflow/medflow-warehouse/pkg/logger"
	"github.com/medflow/medflow-warehouse/pkg/messaging"
)

// CatalogSync applies catalog reference data to the warehouse.
type CatalogSync interface {
	UpsertItemDefinition(ctx context.Context, def domain.ItemDefinition) (*domain.Item, error)
	UpsertLocation(ctx context.Context, req service.LocationRequest) (*domain.Location, error)
}

// Deduplicator skips events that were already applied.
type Deduplicator interface {
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// CatalogEventConsumer consumes catalog events
type CatalogEventConsumer struct {
	consumer *messaging.Consumer
	sync     CatalogSync
	dedupe   Deduplicator
	logger   *logger.Logger
}

// NewCatalogEventConsumer creates a new catalog event consumer. dedupe may be nil.
func NewCatalogEventConsumer(rmq *messaging.RabbitMQ, sync CatalogSync, dedupe Deduplicator, log *logger.Logger) (*CatalogEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "warehouse-service.catalog-events", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeCatalogEvents, "catalog.#"); err != nil {
		return nil, err
	}

	c := &CatalogEventConsumer{
		consumer: consumer,
		sync:     sync,
		dedupe:   dedupe,
		logger:   log,
	}

	consumer.RegisterHandler(messaging.EventCatalogItemUpserted, c.once(c.handleItemUpserted))
	consumer.RegisterHandler(messaging.EventCatalogLocationUpserted, c.once(c.handleLocationUpserted))

	return c, nil
}

// Start starts consuming messages
func (c *CatalogEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// once drops redelivered events and releases the mark when the handler fails
// so the broker retry can run it again.
func (c *CatalogEventConsumer) once(handler messaging.MessageHandler) messaging.MessageHandler {
	return func(ctx context.Context, event *messaging.Event) error {
		if c.dedupe == nil || event.ID == "" {
			return handler(ctx, event)
		}

		fresh, err := c.dedupe.MarkProcessed(ctx, event.ID)
		if err != nil {
			c.logger.Warn().Err(err).Str("event_id", event.ID).Msg("idempotency check failed, processing anyway")
			return handler(ctx, event)
		}
		if !fresh {
			c.logger.Debug().Str("event_id", event.ID).Msg("skipping duplicate event")
			return nil
		}

		if err := handler(ctx, event); err != nil {
			if ferr := c.dedupe.Forget(ctx, event.ID); ferr != nil {
				c.logger.Warn().Err(ferr).Str("event_id", event.ID).Msg("failed to release idempotency mark")
			}
			return err
		}
		return nil
	}
}

func (c *CatalogEventConsumer) handleItemUpserted(ctx context.Context, event *messaging.Event) error {
	var data messaging.CatalogItemUpsertedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("item_id", data.ItemID).
		Str("item_code", data.Code).
		Msg("received catalog item event")

	_, err := c.sync.UpsertItemDefinition(systemContext(ctx), domain.ItemDefinition{
		ID:          data.ItemID,
		Code:        data.Code,
		Name:        data.Name,
		Unit:        data.Unit,
		TracksLots:  data.TracksLots,
		HasExpiry:   data.HasExpiry,
		MinQuantity: data.MinQuantity,
		MaxQuantity: data.MaxQuantity,
	})
	return err
}

func (c *CatalogEventConsumer) handleLocationUpserted(ctx context.Context, event *messaging.Event) error {
	var data messaging.CatalogLocationUpsertedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("location_id", data.LocationID).
		Str("location_code", data.Code).
		Msg("received catalog location event")

	_, err := c.sync.UpsertLocation(systemContext(ctx), service.LocationRequest{
		ID:          data.LocationID,
		WarehouseID: data.WarehouseID,
		Code:        data.Code,
		Name:        data.Name,
		Capacity:    data.Capacity,
	})
	return err
}

func systemContext(ctx context.Context) context.Context {
	return actor.WithActor(ctx, actor.SystemActor())
}

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/medflow/medflow-warehouse/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ackRecorder struct {
	acked, nacked, rejected bool
	requeue                 bool
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.acked = true
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	a.rejected, a.requeue = true, requeue
	return nil
}

func newTestConsumer() *Consumer {
	return &Consumer{queueName: "warehouse-service.catalog", handlers: make(map[string]MessageHandler), logger: logger.Nop()}
}

func delivery(t *testing.T, ack *ackRecorder, eventType string, data interface{}, headers amqp.Table) amqp.Delivery {
	t.Helper()
	event, err := NewEvent(eventType, "catalog-service", "corr-1", data)
	require.NoError(t, err)
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, Body: body, Headers: headers}
}

func TestConsumer_DispatchesToHandler(t *testing.T) {
	c := newTestConsumer()

	var got CatalogItemUpsertedEvent
	var corr string
	c.RegisterHandler(EventCatalogItemUpserted, func(ctx context.Context, event *Event) error {
		corr = CorrelationID(ctx)
		return event.UnmarshalData(&got)
	})

	ack := &ackRecorder{}
	c.handleMessage(context.Background(), delivery(t, ack, EventCatalogItemUpserted, CatalogItemUpsertedEvent{ItemID: "item-1", Code: "MED-001"}, nil))

	assert.True(t, ack.acked)
	assert.Equal(t, "MED-001", got.Code)
	assert.Equal(t, "corr-1", corr)
}

func TestConsumer_AcksUnknownEventTypes(t *testing.T) {
	c := newTestConsumer()
	ack := &ackRecorder{}
	c.handleMessage(context.Background(), delivery(t, ack, "catalog.supplier.upserted", map[string]string{}, nil))
	assert.True(t, ack.acked)
}

func TestConsumer_RejectsMalformedBody(t *testing.T) {
	c := newTestConsumer()
	ack := &ackRecorder{}
	c.handleMessage(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")})
	assert.True(t, ack.rejected)
	assert.False(t, ack.requeue)
}

func TestConsumer_RetriesWithAttemptCount(t *testing.T) {
	c := newTestConsumer()
	c.RegisterHandler(EventCatalogLocationUpserted, func(ctx context.Context, event *Event) error {
		return errors.New("database unavailable")
	})

	var retried []amqp.Publishing
	c.retry = func(ctx context.Context, msg amqp.Publishing) error {
		retried = append(retried, msg)
		return nil
	}

	ack := &ackRecorder{}
	c.handleMessage(context.Background(), delivery(t, ack, EventCatalogLocationUpserted, CatalogLocationUpsertedEvent{}, nil))
	assert.True(t, ack.acked)
	require.Len(t, retried, 1)
	assert.Equal(t, int32(1), retried[0].Headers[attemptHeader])

	ack = &ackRecorder{}
	c.handleMessage(context.Background(), delivery(t, ack, EventCatalogLocationUpserted, CatalogLocationUpsertedEvent{}, retried[0].Headers))
	require.Len(t, retried, 2)
	assert.Equal(t, int32(2), retried[1].Headers[attemptHeader])

	ack = &ackRecorder{}
	c.handleMessage(context.Background(), delivery(t, ack, EventCatalogLocationUpserted, CatalogLocationUpsertedEvent{}, retried[1].Headers))
	assert.True(t, ack.rejected)
	assert.False(t, ack.requeue)
	assert.Len(t, retried, 2)
}

func TestConsumer_RequeuesWhenRetryPublishFails(t *testing.T) {
	c := newTestConsumer()
	c.RegisterHandler(EventCatalogItemUpserted, func(ctx context.Context, event *Event) error {
		return errors.New("database unavailable")
	})
	c.retry = func(ctx context.Context, msg amqp.Publishing) error {
		return errors.New("channel closed")
	}

	ack := &ackRecorder{}
	c.handleMessage(context.Background(), delivery(t, ack, EventCatalogItemUpserted, CatalogItemUpsertedEvent{}, nil))
	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue)
}

func TestDeliveryAttempt_ReadsDeadLetterCount(t *testing.T) {
	msg := amqp.Delivery{Headers: amqp.Table{"x-death": []interface{}{amqp.Table{"count": int64(2)}}}}
	assert.Equal(t, 2, deliveryAttempt(msg))
	assert.Equal(t, 0, deliveryAttempt(amqp.Delivery{}))
}

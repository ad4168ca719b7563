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

type recordingChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (c *recordingChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return c.err
}

func TestPublisher_Publish(t *testing.T) {
	ch := &recordingChannel{}
	p := &Publisher{channel: ch, exchange: ExchangeWarehouseEvents, source: "warehouse-service", logger: logger.Nop()}

	ctx := WithCorrelationID(context.Background(), "req-42")
	err := p.Publish(ctx, EventLowStock, LowStockEvent{ItemID: "item-1", ItemCode: "MED-001", IssuableQuantity: 2, MinQuantity: 5})
	require.NoError(t, err)

	assert.Equal(t, ExchangeWarehouseEvents, ch.exchange)
	assert.Equal(t, EventLowStock, ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, uint8(amqp.Persistent), ch.msg.DeliveryMode)
	assert.Equal(t, "req-42", ch.msg.CorrelationId)

	var event Event
	require.NoError(t, json.Unmarshal(ch.msg.Body, &event))
	assert.Equal(t, EventLowStock, event.Type)
	assert.Equal(t, "warehouse-service", event.Source)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, event.ID, ch.msg.MessageId)
	assert.Equal(t, EventLowStock, ch.msg.Type)

	var data LowStockEvent
	require.NoError(t, event.UnmarshalData(&data))
	assert.Equal(t, "MED-001", data.ItemCode)
	assert.Equal(t, int64(5), data.MinQuantity)
}

func TestPublisher_PublishError(t *testing.T) {
	ch := &recordingChannel{err: errors.New("channel closed")}
	p := &Publisher{channel: ch, exchange: ExchangeWarehouseEvents, source: "warehouse-service", logger: logger.Nop()}

	err := p.Publish(context.Background(), EventStockAdjusted, StockAdjustedEvent{ItemID: "item-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
}

func TestCorrelationID_Missing(t *testing.T) {
	assert.Empty(t, CorrelationID(context.Background()))
}

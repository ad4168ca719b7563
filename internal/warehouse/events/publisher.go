package events

import (
	"context"

	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/pkg/logger"
	"github.com/medflow/medflow-warehouse/pkg/messaging"
)

// Sink publishes an event payload under an event type.
// *messaging.Publisher satisfies it.
type Sink interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// WarehouseEventPublisher publishes stock events after their transaction commits.
// Failures are logged; the ledger stays authoritative.
type WarehouseEventPublisher struct {
	publisher Sink
	logger    *logger.Logger
}

// NewWarehouseEventPublisher creates a publisher on the warehouse exchange
func NewWarehouseEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*WarehouseEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeWarehouseEvents, "warehouse-service", log)
	if err != nil {
		return nil, err
	}
	return NewWithSink(publisher, log), nil
}

// NewWithSink wraps an existing sink.
func NewWithSink(sink Sink, log *logger.Logger) *WarehouseEventPublisher {
	return &WarehouseEventPublisher{
		publisher: sink,
		logger:    log,
	}
}

// ReceiptApproved publishes a receipt approved event
func (p *WarehouseEventPublisher) ReceiptApproved(ctx context.Context, doc *domain.ReceiptDocument, movements []*domain.StockMovement) {
	if p == nil {
		return
	}
	data := messaging.DocumentApprovedEvent{
		DocumentType: string(domain.DocumentReceipt),
		DocumentID:   doc.ID,
		DocumentCode: doc.Code,
		WarehouseID:  doc.WarehouseID,
		ApprovedBy:   deref(doc.ApprovedBy),
		Movements:    payloads(movements),
	}
	if doc.ApprovedAt != nil {
		data.ApprovedAt = *doc.ApprovedAt
	}
	p.publish(ctx, messaging.EventReceiptApproved, data, doc.Code)
}

// ReceiptUnapproved publishes a receipt unapproved event
func (p *WarehouseEventPublisher) ReceiptUnapproved(ctx context.Context, doc *domain.ReceiptDocument, reason string, movements []*domain.StockMovement) {
	if p == nil {
		return
	}
	p.publish(ctx, messaging.EventReceiptUnapproved, messaging.DocumentUnapprovedEvent{
		DocumentType: string(domain.DocumentReceipt),
		DocumentID:   doc.ID,
		DocumentCode: doc.Code,
		WarehouseID:  doc.WarehouseID,
		Reason:       reason,
		UnapprovedBy: actorOf(movements),
		Movements:    payloads(movements),
	}, doc.Code)
}

// IssuanceApproved publishes an issuance approved event
func (p *WarehouseEventPublisher) IssuanceApproved(ctx context.Context, doc *domain.IssuanceDocument, movements []*domain.StockMovement) {
	if p == nil {
		return
	}
	data := messaging.DocumentApprovedEvent{
		DocumentType: string(domain.DocumentIssuance),
		DocumentID:   doc.ID,
		DocumentCode: doc.Code,
		WarehouseID:  doc.WarehouseID,
		DepartmentID: doc.DepartmentID,
		ApprovedBy:   deref(doc.ApprovedBy),
		Movements:    payloads(movements),
	}
	if doc.ApprovedAt != nil {
		data.ApprovedAt = *doc.ApprovedAt
	}
	p.publish(ctx, messaging.EventIssuanceApproved, data, doc.Code)
}

// IssuanceUnapproved publishes an issuance unapproved event
func (p *WarehouseEventPublisher) IssuanceUnapproved(ctx context.Context, doc *domain.IssuanceDocument, reason string, movements []*domain.StockMovement) {
	if p == nil {
		return
	}
	p.publish(ctx, messaging.EventIssuanceUnapproved, messaging.DocumentUnapprovedEvent{
		DocumentType: string(domain.DocumentIssuance),
		DocumentID:   doc.ID,
		DocumentCode: doc.Code,
		WarehouseID:  doc.WarehouseID,
		Reason:       reason,
		UnapprovedBy: actorOf(movements),
		Movements:    payloads(movements),
	}, doc.Code)
}

// StockAdjusted publishes a stock adjusted event
func (p *WarehouseEventPublisher) StockAdjusted(ctx context.Context, m *domain.StockMovement) {
	if p == nil {
		return
	}
	p.publish(ctx, messaging.EventStockAdjusted, messaging.StockAdjustedEvent{
		MovementID:  m.ID,
		ItemID:      m.ItemID,
		LotID:       m.LotID,
		LocationID:  m.LocationID,
		Adjustment:  m.QuantityDelta,
		NewQuantity: m.QuantityAfter,
		PerformedBy: m.ActorID,
		Reason:      deref(m.Reason),
	}, m.ItemID)
}

// LowStock publishes a low stock event
func (p *WarehouseEventPublisher) LowStock(ctx context.Context, item *domain.Item) {
	if p == nil {
		return
	}
	p.publish(ctx, messaging.EventLowStock, messaging.LowStockEvent{
		ItemID:           item.ID,
		ItemCode:         item.Code,
		ItemName:         item.Name,
		IssuableQuantity: item.IssuableQuantity,
		MinQuantity:      item.MinQuantity,
	}, item.Code)
}

func (p *WarehouseEventPublisher) publish(ctx context.Context, eventType string, data interface{}, subject string) {
	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).
			Str("event_type", eventType).
			Str("subject", subject).
			Msg("failed to publish warehouse event")
	}
}

func payloads(movements []*domain.StockMovement) []messaging.MovementPayload {
	out := make([]messaging.MovementPayload, len(movements))
	for i, m := range movements {
		out[i] = messaging.MovementPayload{
			MovementID:    m.ID,
			ItemID:        m.ItemID,
			LotID:         m.LotID,
			LocationID:    m.LocationID,
			MovementType:  string(m.MovementType),
			QuantityDelta: m.QuantityDelta,
			QuantityAfter: m.QuantityAfter,
			UnitCost:      m.UnitCost,
		}
	}
	return out
}

func actorOf(movements []*domain.StockMovement) string {
	if len(movements) == 0 {
		return ""
	}
	return movements[0].ActorID
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

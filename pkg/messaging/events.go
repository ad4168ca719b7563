package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	// Warehouse events
	EventReceiptApproved    = "warehouse.receipt.approved"
	EventReceiptUnapproved  = "warehouse.receipt.unapproved"
	EventIssuanceApproved   = "warehouse.issuance.approved"
	EventIssuanceUnapproved = "warehouse.issuance.unapproved"
	EventStockAdjusted      = "warehouse.stock.adjusted"
	EventLowStock           = "warehouse.stock.low"

	// Catalog events
	EventCatalogItemUpserted     = "catalog.item.upserted"
	EventCatalogLocationUpserted = "catalog.location.upserted"
)

// Exchange names
const (
	ExchangeWarehouseEvents = "warehouse.events"
	ExchangeCatalogEvents   = "catalog.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Warehouse Events

// MovementPayload is one ledger entry carried by a warehouse event.
type MovementPayload struct {
	MovementID    string          `json:"movement_id"`
	ItemID        string          `json:"item_id"`
	LotID         *string         `json:"lot_id,omitempty"`
	LocationID    *string         `json:"location_id,omitempty"`
	MovementType  string          `json:"movement_type"`
	QuantityDelta int64           `json:"quantity_delta"`
	QuantityAfter int64           `json:"quantity_after"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
}

// DocumentApprovedEvent is published when a receipt or issuance is approved
type DocumentApprovedEvent struct {
	DocumentType string            `json:"document_type"`
	DocumentID   string            `json:"document_id"`
	DocumentCode string            `json:"document_code"`
	WarehouseID  string            `json:"warehouse_id"`
	DepartmentID string            `json:"department_id,omitempty"`
	ApprovedBy   string            `json:"approved_by"`
	ApprovedAt   time.Time         `json:"approved_at"`
	Movements    []MovementPayload `json:"movements"`
}

// DocumentUnapprovedEvent is published when an approval is rolled back
type DocumentUnapprovedEvent struct {
	DocumentType string            `json:"document_type"`
	DocumentID   string            `json:"document_id"`
	DocumentCode string            `json:"document_code"`
	WarehouseID  string            `json:"warehouse_id"`
	Reason       string            `json:"reason"`
	UnapprovedBy string            `json:"unapproved_by"`
	Movements    []MovementPayload `json:"movements"`
}

// StockAdjustedEvent is published when stock is corrected outside a document
type StockAdjustedEvent struct {
	MovementID  string  `json:"movement_id"`
	ItemID      string  `json:"item_id"`
	LotID       *string `json:"lot_id,omitempty"`
	LocationID  *string `json:"location_id,omitempty"`
	Adjustment  int64   `json:"adjustment"`
	NewQuantity int64   `json:"new_quantity"`
	PerformedBy string  `json:"performed_by"`
	Reason      string  `json:"reason"`
}

// LowStockEvent is published when an item's issuable quantity drops below its minimum
type LowStockEvent struct {
	ItemID           string `json:"item_id"`
	ItemCode         string `json:"item_code"`
	ItemName         string `json:"item_name"`
	IssuableQuantity int64  `json:"issuable_quantity"`
	MinQuantity      int64  `json:"min_quantity"`
}

// Catalog Events

// CatalogItemUpsertedEvent carries an item definition from the catalog
type CatalogItemUpsertedEvent struct {
	ItemID      string `json:"item_id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Unit        string `json:"unit"`
	TracksLots  bool   `json:"tracks_lots"`
	HasExpiry   bool   `json:"has_expiry"`
	MinQuantity int64  `json:"min_quantity"`
	MaxQuantity int64  `json:"max_quantity"`
}

// CatalogLocationUpsertedEvent carries a storage location from the catalog
type CatalogLocationUpsertedEvent struct {
	LocationID  string `json:"location_id"`
	WarehouseID string `json:"warehouse_id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Capacity    int64  `json:"capacity"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.New().String()
}

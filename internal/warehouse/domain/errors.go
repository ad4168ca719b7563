package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/medflow/medflow-warehouse/pkg/errors"
)

// Holding describes stock of an item held outside the requested scope.
type Holding struct {
	LotID        string
	LotNumber    string
	LocationID   string
	LocationCode string
	Quantity     int64
}

func (h Holding) String() string {
	where := h.LocationCode
	if where == "" {
		where = h.LocationID
	}
	if h.LotNumber == "" {
		return fmt.Sprintf("%s: %d", where, h.Quantity)
	}
	return fmt.Sprintf("%s (lot %s): %d", where, h.LotNumber, h.Quantity)
}

// InsufficientStock names the item, the shortfall and where else the item is held.
func InsufficientStock(item *Item, required, available int64, holdings []Holding) *errors.AppError {
	msg := fmt.Sprintf("insufficient stock for item %s (%s): required %d, available %d",
		item.Code, item.Name, required, available)

	details := map[string]string{
		"item_id":   item.ID,
		"item_code": item.Code,
		"required":  strconv.FormatInt(required, 10),
		"available": strconv.FormatInt(available, 10),
	}

	if len(holdings) > 0 {
		parts := make([]string, len(holdings))
		for i, h := range holdings {
			parts[i] = h.String()
		}
		held := strings.Join(parts, ", ")
		msg += "; stock held at " + held
		details["holdings"] = held
	}

	return errors.InsufficientStock(msg, details)
}

// InvalidTransition names the document and the refused status change.
func InvalidTransition(t DocumentType, code string, from, to DocumentStatus) *errors.AppError {
	return errors.InvalidStateTransition(
		fmt.Sprintf("%s %s cannot move from %s to %s", strings.ToLower(string(t)), code, from, to),
		map[string]string{
			"document_type": string(t),
			"document_code": code,
			"from":          string(from),
			"to":            string(to),
		},
	)
}

// FieldErrors collects validation failures keyed by field path.
type FieldErrors map[string]string

// Add records a failure for field.
func (f FieldErrors) Add(field, msg string) {
	f[field] = msg
}

// Err returns a VALIDATION_ERROR when any failure was recorded.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return errors.Validation(f)
}

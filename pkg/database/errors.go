package database

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/medflow/medflow-warehouse/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// serialization_failure, deadlock_detected
	case "40001", "40P01":
		return errors.IntegrityConflict("concurrent stock update, retry the operation")

	case "23514":
		return mapCheckConstraint(pqErr)

	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	case "23503":
		return errors.BadRequest("referenced record does not exist")

	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	// invalid_text_representation, e.g. a malformed UUID
	case "22P02":
		return errors.BadRequest("malformed identifier")

	// raised by the append-only ledger trigger
	case "P0001":
		return errors.IntegrityConflict(pqErr.Message)

	default:
		return nil
	}
}

// MapError returns the AppError form of err when it is a known PostgreSQL
// error, and err unchanged otherwise.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if appErr := MapPQError(err); appErr != nil {
		// keep the sentinel matchable and the driver error inspectable
		appErr.Err = fmt.Errorf("%w: %w", appErr.Err, err)
		return appErr
	}
	return err
}

// mapCheckConstraint maps CHECK constraint names to user-friendly messages.
// Quantity checks guard the non-negativity of stock projections.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.HasSuffix(constraint, "_nonnegative"), strings.HasSuffix(constraint, "_positive"):
		return errors.IntegrityConflict("stock quantity constraint violated: " + constraint)

	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be a known status",
		})

	case strings.Contains(constraint, "expiry_after_manufacture"):
		return errors.Validation(map[string]string{
			"expiry_date": "must not be before manufacture date",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "items_code"):
		return "an item with this code already exists"
	case strings.Contains(constraint, "locations_code"):
		return "a location with this code already exists"
	case strings.Contains(constraint, "lots_item_lot_number"):
		return "this lot number is already registered for the item"
	case strings.Contains(constraint, "code"):
		return "a document with this code already exists"
	default:
		return "a record with these values already exists"
	}
}

package database

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/medflow/medflow-warehouse/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPQError(t *testing.T) {
	tests := []struct {
		name     string
		err      *pq.Error
		sentinel error
		status   int
		message  string
	}{
		{"deadlock", &pq.Error{Code: "40P01"}, errors.ErrIntegrityConflict, http.StatusConflict, ""},
		{"serialization", &pq.Error{Code: "40001"}, errors.ErrIntegrityConflict, http.StatusConflict, ""},
		{"negative lot quantity", &pq.Error{Code: "23514", Constraint: "lots_current_quantity_nonnegative"}, errors.ErrIntegrityConflict, http.StatusConflict, ""},
		{"unknown check", &pq.Error{Code: "23514", Constraint: "receipt_lines_odd"}, errors.ErrBadRequest, http.StatusBadRequest, "data validation failed: receipt_lines_odd"},
		{"expiry check", &pq.Error{Code: "23514", Constraint: "lots_expiry_after_manufacture"}, errors.ErrValidation, http.StatusBadRequest, "validation failed"},
		{"duplicate item code", &pq.Error{Code: "23505", Constraint: "items_code_key"}, errors.ErrConflict, http.StatusConflict, "an item with this code already exists"},
		{"duplicate lot", &pq.Error{Code: "23505", Constraint: "lots_item_lot_number_key"}, errors.ErrConflict, http.StatusConflict, "this lot number is already registered for the item"},
		{"missing reference", &pq.Error{Code: "23503"}, errors.ErrBadRequest, http.StatusBadRequest, "referenced record does not exist"},
		{"malformed uuid", &pq.Error{Code: "22P02"}, errors.ErrBadRequest, http.StatusBadRequest, "malformed identifier"},
		{"ledger trigger", &pq.Error{Code: "P0001", Message: "stock_movements is append-only"}, errors.ErrIntegrityConflict, http.StatusConflict, "stock_movements is append-only"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := MapPQError(fmt.Errorf("exec: %w", tt.err))
			require.NotNil(t, appErr)
			assert.ErrorIs(t, appErr, tt.sentinel)
			assert.Equal(t, tt.status, appErr.StatusCode)
			if tt.message != "" {
				assert.Equal(t, tt.message, appErr.Message)
			}
		})
	}
}

func TestMapPQError_Unmapped(t *testing.T) {
	assert.Nil(t, MapPQError(&pq.Error{Code: "53300"}))
	assert.Nil(t, MapPQError(fmt.Errorf("plain failure")))
}

func TestMapError_KeepsBothErrorsReachable(t *testing.T) {
	pqErr := &pq.Error{Code: "40001", Message: "could not serialize access"}

	err := MapError(pqErr)

	assert.ErrorIs(t, err, errors.ErrIntegrityConflict)
	var target *pq.Error
	require.ErrorAs(t, err, &target)
	assert.Equal(t, pq.ErrorCode("40001"), target.Code)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INTEGRITY_CONFLICT", appErr.Code)
}

func TestMapError_PassesThroughOtherErrors(t *testing.T) {
	assert.NoError(t, MapError(nil))

	plain := fmt.Errorf("connection reset")
	assert.Same(t, plain, MapError(plain))
}

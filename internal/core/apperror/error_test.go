package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"concurrent modification", NewConcurrentModification("stock_items", "x"), true},
		{"wrapped concurrent modification", fmt.Errorf("adjust: %w", NewConcurrentModification("stock_items", "x")), true},
		{"state conflict", NewStateConflict("order", "x", "approved"), false},
		{"already returned", NewAlreadyReturned("o", "i"), false},
		{"validation", NewValidation("bad"), false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsStateConflict(t *testing.T) {
	assert.True(t, IsStateConflict(NewStateConflict("order", "x", "rejected")))
	assert.True(t, IsStateConflict(NewAlreadyReturned("o", "i")))
	assert.False(t, IsStateConflict(NewConflict("other")))
}

func TestStatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, GetHTTPStatus(NewValidation("x")))
	assert.Equal(t, http.StatusNotFound, GetHTTPStatus(NewNotFound("order", "x")))
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(NewStateConflict("order", "x", "approved")))
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(NewAlreadyReturned("o", "i")))
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(NewConcurrentModification("stock_items", "x")))
	assert.Equal(t, http.StatusUnprocessableEntity, GetHTTPStatus(NewInsufficientStock("i", "5.0000", "1.0000")))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("boom")))
}

func TestWithDetail(t *testing.T) {
	err := NewValidation("quantity must be positive").
		WithDetail("field", "quantity").
		WithDetail("lineNo", 2)

	assert.Equal(t, "quantity", err.Details["field"])
	assert.Equal(t, 2, err.Details["lineNo"])
	assert.Equal(t, "VALIDATION_ERROR: quantity must be positive", err.Error())
}

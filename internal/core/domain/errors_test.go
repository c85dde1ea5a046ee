package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"not found", &ProductNotFoundError{ProductID: 7}, ErrProductNotFound},
		{"stock", &InsufficientStockError{Shortfalls: []StockError{{ProductID: 1, Available: 5}}}, ErrInsufficientStock},
		{"validation", NewValidationError("items: must not be empty"), ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("place order: %w", tt.err)
			if !errors.Is(wrapped, tt.target) {
				t.Errorf("expected %v to match %v", wrapped, tt.target)
			}
		})
	}
}

func TestInsufficientStockError_Message(t *testing.T) {
	err := &InsufficientStockError{Shortfalls: []StockError{{ProductID: 1, Available: 5}, {ProductID: 2, Available: 2}}}

	want := "insufficient stock: product 1 (available 5), product 2 (available 2)"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/dukerupert/famquest/internal/model"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &model.ValidationError{Field: "cost", Reason: "must be positive"}, http.StatusBadRequest},
		{"insufficient", &model.InsufficientPointsError{Available: 1, Required: 2}, http.StatusConflict},
		{"distribution", &model.DistributionError{Cost: 10, Remaining: 1}, http.StatusConflict},
		{"not found", &model.NotFoundError{Entity: "reward", ID: 1}, http.StatusNotFound},
		{"persistence", &model.PersistenceError{Op: "append", Err: errors.New("x")}, http.StatusServiceUnavailable},
		{"persistence wrapping validation", &model.PersistenceError{Op: "append", Err: &model.ValidationError{Reason: "x"}}, http.StatusServiceUnavailable},
		{"compensation", &model.CompensationError{OperationID: "op", Err: errors.New("x")}, http.StatusInternalServerError},
		{"unknown", context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsDigits(t *testing.T) {
	if !isDigits("0123") {
		t.Error("expected digits")
	}
	if isDigits("12a4") {
		t.Error("expected non-digits to fail")
	}
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dukerupert/famquest/internal/model"
)

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func parseFamilyID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("family_id"), 10, 64)
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy onto HTTP status codes. Persistence
// errors are checked first because they may wrap a client-looking cause.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrCompensation):
		return http.StatusInternalServerError
	case errors.Is(err, model.ErrPersistence):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInsufficientPoints), errors.Is(err, model.ErrDistribution):
		return http.StatusConflict
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

package handler

import (
	"net/http"

	"github.com/dukerupert/famquest/internal/model"
	"github.com/dukerupert/famquest/internal/points"
)

type RedemptionHandler struct {
	engine *points.Engine
}

func NewRedemptionHandler(engine *points.Engine) *RedemptionHandler {
	return &RedemptionHandler{engine: engine}
}

func (h *RedemptionHandler) List(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseFamilyID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid family id"})
		return
	}

	records, err := h.engine.ListRedemptionHistory(r.Context(), familyID)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]string{"error": "failed to list redemptions"})
		return
	}
	if records == nil {
		records = []model.RedeemedReward{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *RedemptionHandler) Use(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseFamilyID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid family id"})
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	rec, err := h.engine.MarkRedemptionUsed(r.Context(), familyID, id)
	if err != nil {
		status := statusFor(err)
		msg := err.Error()
		if status >= http.StatusInternalServerError {
			msg = "failed to mark redemption used"
		}
		writeJSON(w, status, map[string]string{"error": msg})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

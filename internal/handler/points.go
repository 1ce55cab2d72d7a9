package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/famquest/internal/model"
	"github.com/dukerupert/famquest/internal/points"
	"github.com/dukerupert/famquest/internal/store"
)

const defaultHistoryLimit = 50

type PointsHandler struct {
	points      *points.Aggregator
	memberStore *store.FamilyMemberStore
	logger      *slog.Logger
}

func NewPointsHandler(agg *points.Aggregator, ms *store.FamilyMemberStore, logger *slog.Logger) *PointsHandler {
	return &PointsHandler{points: agg, memberStore: ms, logger: logger}
}

func (h *PointsHandler) FamilyTotal(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseFamilyID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid family id"})
		return
	}

	total, err := h.points.GetFamilyPoints(r.Context(), familyID)
	if err != nil {
		h.logger.Error("get family points", "family_id", familyID, "error", err)
		writeJSON(w, statusFor(err), map[string]string{"error": "failed to get family points"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"family_id": familyID, "points": total})
}

func (h *PointsHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseFamilyID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid family id"})
		return
	}

	balances, err := h.points.MemberBalances(r.Context(), familyID)
	if err != nil {
		h.logger.Error("get leaderboard", "family_id", familyID, "error", err)
		writeJSON(w, statusFor(err), map[string]string{"error": "failed to get leaderboard"})
		return
	}
	if balances == nil {
		balances = []model.MemberBalance{}
	}
	writeJSON(w, http.StatusOK, balances)
}

// familyMember resolves {family_id} and {id} and writes a response when the
// member is not part of the family.
func (h *PointsHandler) familyMember(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	familyID, err := parseFamilyID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid family id"})
		return 0, 0, false
	}
	memberID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return 0, 0, false
	}
	m, err := h.memberStore.GetByID(r.Context(), memberID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get family member"})
		return 0, 0, false
	}
	if m == nil || m.FamilyID != familyID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "family member not found"})
		return 0, 0, false
	}
	return familyID, memberID, true
}

func (h *PointsHandler) MemberPoints(w http.ResponseWriter, r *http.Request) {
	_, memberID, ok := h.familyMember(w, r)
	if !ok {
		return
	}

	balance, err := h.points.GetMemberPoints(r.Context(), memberID)
	if err != nil {
		h.logger.Error("get member points", "member_id", memberID, "error", err)
		writeJSON(w, statusFor(err), map[string]string{"error": "failed to get member points"})
		return
	}

	writeJSON(w, http.StatusOK, model.MemberBalance{MemberID: memberID, Points: balance})
}

func (h *PointsHandler) History(w http.ResponseWriter, r *http.Request) {
	_, memberID, ok := h.familyMember(w, r)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	entries, err := h.points.History(r.Context(), memberID, limit)
	if err != nil {
		h.logger.Error("get ledger history", "member_id", memberID, "error", err)
		writeJSON(w, statusFor(err), map[string]string{"error": "failed to get ledger history"})
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type awardRequest struct {
	Delta  int            `json:"delta"`
	Source string         `json:"source"`
	Meta   map[string]any `json:"meta"`
}

func (h *PointsHandler) Award(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseFamilyID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid family id"})
		return
	}
	memberID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req awardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	entry, err := h.points.Award(r.Context(), familyID, memberID, req.Delta, req.Source, req.Meta)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("award points", "member_id", memberID, "error", err)
			writeJSON(w, status, map[string]string{"error": "failed to record points"})
			return
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

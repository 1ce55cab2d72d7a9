package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/famquest/internal/model"
	"github.com/dukerupert/famquest/internal/points"
	"github.com/dukerupert/famquest/internal/store"
	"github.com/dukerupert/famquest/internal/websocket"
)

type RewardHandler struct {
	rewardStore *store.RewardStore
	engine      *points.Engine
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewRewardHandler(rs *store.RewardStore, engine *points.Engine, hub *websocket.Hub, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewardStore: rs, engine: engine, hub: hub, logger: logger}
}

func (h *RewardHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type rewardRequest struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Cost        int                  `json:"cost"`
	Category    model.RewardCategory `json:"category"`
	Rarity      model.RewardRarity   `json:"rarity"`
	Active      *bool                `json:"active"`
}

func (req *rewardRequest) validate() string {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return "title is required"
	}
	if req.Cost <= 0 {
		return "cost must be positive"
	}
	if !req.Category.Valid() {
		return "category must be one of Family, Individual, Special"
	}
	if req.Rarity == "" {
		req.Rarity = model.RarityCommon
	}
	if !req.Rarity.Valid() {
		return "rarity must be one of common, rare, epic, legendary"
	}
	return ""
}

// reward loads the {id} reward scoped to {family_id}. It writes the error
// response itself and returns nil on failure.
func (h *RewardHandler) reward(w http.ResponseWriter, r *http.Request) (int64, *model.Reward) {
	familyID, err := parseFamilyID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid family id"})
		return 0, nil
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return 0, nil
	}
	reward, err := h.rewardStore.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get reward"})
		return 0, nil
	}
	if reward == nil || reward.FamilyID != familyID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reward not found"})
		return 0, nil
	}
	return familyID, reward
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseFamilyID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid family id"})
		return
	}

	rewards, err := h.rewardStore.ListByFamily(r.Context(), familyID, r.URL.Query().Get("active") == "true")
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list rewards"})
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseFamilyID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid family id"})
		return
	}

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	reward, err := h.rewardStore.Create(r.Context(), model.Reward{
		FamilyID:    familyID,
		Title:       req.Title,
		Description: req.Description,
		Cost:        req.Cost,
		Category:    req.Category,
		Rarity:      req.Rarity,
		Active:      active,
	})
	if err != nil {
		h.logger.Error("create reward", "family_id", familyID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create reward"})
		return
	}

	h.broadcast(websocket.NewMessage(familyID, "reward", "created", reward.ID, nil))
	writeJSON(w, http.StatusCreated, reward)
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	familyID, existing := h.reward(w, r)
	if existing == nil {
		return
	}

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	updated := *existing
	updated.Title = req.Title
	updated.Description = req.Description
	updated.Cost = req.Cost
	updated.Category = req.Category
	updated.Rarity = req.Rarity
	if req.Active != nil {
		updated.Active = *req.Active
	}

	reward, err := h.rewardStore.Update(r.Context(), updated)
	if err != nil {
		h.logger.Error("update reward", "reward_id", existing.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update reward"})
		return
	}

	h.broadcast(websocket.NewMessage(familyID, "reward", "updated", reward.ID, nil))
	writeJSON(w, http.StatusOK, reward)
}

func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	familyID, existing := h.reward(w, r)
	if existing == nil {
		return
	}

	if err := h.rewardStore.Delete(r.Context(), existing.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete reward"})
		return
	}

	h.broadcast(websocket.NewMessage(familyID, "reward", "deleted", existing.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

type redeemRequest struct {
	MemberIDs []int64 `json:"member_ids"`
}

// Redeem pays for a reward. Family rewards draw on the shared pool; other
// categories charge each selected member the full cost.
func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	familyID, reward := h.reward(w, r)
	if reward == nil {
		return
	}
	if !reward.Active {
		writeJSON(w, http.StatusConflict, model.RedemptionResult{Success: false, Message: "This reward is not available right now."})
		return
	}

	var req redeemRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}
	}

	var result model.RedemptionResult
	var err error
	if reward.Category == model.CategoryFamily {
		result, err = h.engine.RedeemFamilyReward(r.Context(), familyID, *reward)
	} else {
		result, err = h.engine.RedeemIndividualReward(r.Context(), familyID, *reward, req.MemberIDs)
	}
	if err != nil {
		writeJSON(w, statusFor(err), result)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

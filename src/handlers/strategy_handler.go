package handlers

import (
	"net/http"

	"github.com/gerenciause-netizen/smart-trader/src/config"
	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/models"
	"github.com/gerenciause-netizen/smart-trader/src/services"
	"github.com/gerenciause-netizen/smart-trader/src/utils"
	"github.com/go-chi/chi/v5"
)

// StrategyHandler manages the user's reference setups. Cards are shared by
// both partitions.
type StrategyHandler struct {
	strategies services.StrategyService
}

func NewStrategyHandler(strategies services.StrategyService) *StrategyHandler {
	return &StrategyHandler{strategies: strategies}
}

func (h *StrategyHandler) ListStrategies(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	cards, err := h.strategies.List(r.Context(), userID)
	if err != nil {
		sendServiceError(w, r, err, "Failed to retrieve strategies")
		return
	}
	if cards == nil {
		cards = []models.StrategyCard{}
	}
	utils.WriteJSONWithETag(w, r, cards)
}

// CreateStrategy takes a multipart form with "title", "description" and an "image".
func (h *StrategyHandler) CreateStrategy(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	limit := config.Cfg.MaxImageSizeBytes
	if err := r.ParseMultipartForm(limit); err != nil {
		utils.SendJSONError(w, "Failed to parse upload or image too large", http.StatusBadRequest)
		return
	}

	img, err := readImageField(r, "image", limit)
	if err != nil {
		if err == http.ErrMissingFile {
			utils.SendJSONError(w, "An 'image' file is required", http.StatusBadRequest)
			return
		}
		sendServiceError(w, r, err, "Failed to read strategy image")
		return
	}

	card, err := h.strategies.Create(r.Context(), userID, r.FormValue("title"), r.FormValue("description"), *img)
	if err != nil {
		sendServiceError(w, r, err, "Failed to create strategy")
		return
	}
	utils.WriteJSON(w, http.StatusCreated, card)
}

func (h *StrategyHandler) DeleteStrategy(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	if !requireConfirmation(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.strategies.Delete(r.Context(), userID, id); err != nil {
		sendServiceError(w, r, err, "Failed to delete strategy")
		return
	}
	logger.FromContext(r.Context()).Info("Strategy card deleted", "cardID", id)
	w.WriteHeader(http.StatusNoContent)
}

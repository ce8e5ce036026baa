package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/models"
	"github.com/gerenciause-netizen/smart-trader/src/security/validation"
	"github.com/gerenciause-netizen/smart-trader/src/services"
	"github.com/gerenciause-netizen/smart-trader/src/utils"
)

// DashboardHandler serves the derived views of a partition and its balance.
type DashboardHandler struct {
	dashboards services.DashboardService
	balances   services.BalanceService
}

func NewDashboardHandler(dashboards services.DashboardService, balances services.BalanceService) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards, balances: balances}
}

func (h *DashboardHandler) HandleGetDashboard(w http.ResponseWriter, r *http.Request) {
	userID, account, ok := identity(w, r)
	if !ok {
		return
	}
	dashboard, err := h.dashboards.Build(r.Context(), userID, account)
	if err != nil {
		sendServiceError(w, r, err, "Error building dashboard")
		return
	}
	utils.WriteJSONWithETag(w, r, dashboard)
}

// HandleGetTrades returns only the consolidated trade list.
func (h *DashboardHandler) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	userID, account, ok := identity(w, r)
	if !ok {
		return
	}
	dashboard, err := h.dashboards.Build(r.Context(), userID, account)
	if err != nil {
		sendServiceError(w, r, err, "Error retrieving trades")
		return
	}
	trades := dashboard.Trades
	if trades == nil {
		trades = []models.ConsolidatedTrade{}
	}
	utils.WriteJSONWithETag(w, r, trades)
}

func (h *DashboardHandler) HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	userID, account, ok := identity(w, r)
	if !ok {
		return
	}
	balance, err := h.balances.Get(r.Context(), userID, account)
	if err != nil {
		sendServiceError(w, r, err, "Error retrieving balance")
		return
	}
	utils.WriteJSON(w, http.StatusOK, balance)
}

func (h *DashboardHandler) HandleSetBalance(w http.ResponseWriter, r *http.Request) {
	userID, account, ok := identity(w, r)
	if !ok {
		return
	}

	var req struct {
		StartingCash *float64 `json:"starting_cash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StartingCash == nil {
		sendJSONError(w, "starting_cash is required", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStartingCash(*req.StartingCash); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	balance, err := h.balances.Set(r.Context(), userID, account, *req.StartingCash)
	if err != nil {
		sendServiceError(w, r, err, "Failed to save balance")
		return
	}
	logger.FromContext(r.Context()).Info("Starting cash updated", "startingCash", balance.StartingCash)
	utils.WriteJSON(w, http.StatusOK, balance)
}

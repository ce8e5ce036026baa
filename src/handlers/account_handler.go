package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/model"
	"github.com/gerenciause-netizen/smart-trader/src/models"
	"github.com/gerenciause-netizen/smart-trader/src/services"
	"github.com/gerenciause-netizen/smart-trader/src/utils"
)

type DeleteAccountRequest struct {
	Password string `json:"password"`
}

// DeleteAccountHandler removes the user, every row they own and every stored
// image. Local accounts must repeat their password.
func (h *UserHandler) DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	if !requireConfirmation(w, r) {
		return
	}

	var req DeleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByID(h.db, userID)
	if err != nil {
		log.Error("Failed to get user for account deletion", "error", err)
		sendJSONError(w, "Failed to retrieve user information", http.StatusInternalServerError)
		return
	}

	if user.AuthProvider == model.AuthProviderLocal {
		if err := h.authService.CompareHashAndPassword(user.Password, req.Password); err != nil {
			log.Warn("Password mismatch for account deletion")
			sendJSONError(w, "Incorrect password. Account deletion failed.", http.StatusForbidden)
			return
		}
	}

	if err := h.accounts.DeleteAccount(r.Context(), userID); err != nil {
		log.Error("Failed to delete account", "error", err)
		sendJSONError(w, "Failed to delete account", http.StatusInternalServerError)
		return
	}

	log.Info("Account deleted successfully")
	h.publish(userID, services.EventSignedOut)
	w.WriteHeader(http.StatusNoContent)
}

type workspaceResponse struct {
	ActiveAccount models.AccountLabel `json:"active_account"`
}

// HandleGetWorkspace reports the stored active partition.
func (h *UserHandler) HandleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	account, err := h.workspace.ActiveAccount(r.Context(), userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to load active account", "error", err)
		sendJSONError(w, "Failed to load workspace", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, workspaceResponse{ActiveAccount: account})
}

// HandleSetWorkspace switches the active partition.
func (h *UserHandler) HandleSetWorkspace(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		ActiveAccount string `json:"active_account"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	account, err := models.ParseAccountLabel(req.ActiveAccount)
	if err != nil {
		sendJSONError(w, "active_account must be 'demo' or 'real'", http.StatusBadRequest)
		return
	}

	if err := h.workspace.SetActiveAccount(r.Context(), userID, account); err != nil {
		logger.FromContext(r.Context()).Error("Failed to switch active account", "error", err)
		sendJSONError(w, "Failed to switch account", http.StatusInternalServerError)
		return
	}
	logger.FromContext(r.Context()).Info("Active account switched", "account", account)
	utils.WriteJSON(w, http.StatusOK, workspaceResponse{ActiveAccount: account})
}
